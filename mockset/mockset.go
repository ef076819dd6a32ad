// Package mockset is a deterministic in-process fake for SET's four SOAP
// endpoints, which an http.Server or httptest.Server can host so a caller
// can exercise a full validate-sign-send-parse round trip without a
// network call. No test in sender or soap uses it; its own tests are in
// mockset_test.go.
//
// The original Python client tested against a hand-written MockSoapClient
// (tests/test_mock_soap_client.py in the retained original source), but
// only that test file survived retrieval — the mock's own implementation
// did not. This package reconstructs the mock from the test file's
// observable behavior (call_count/call_history tracking, configurable
// failure_rate/timeout_rate/latency, force_error_response/
// force_timeout_response escape hatches, CDC extraction from the request
// body) expressed the way the teacher builds its own test doubles: a
// plain http.HandlerFunc closure in soap/client_test.go's TestSOAPClientCall,
// generalized here into a reusable type since this one needs to be driven
// from outside a single test function.
package mockset

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gaxoblanco/sifen-go/types"
)

var cdcAttrPattern = regexp.MustCompile(`<DE[^>]*\bId="([0-9]{44})"`)

// Behavior is a canned result the server returns instead of its default
// accept-everything response.
type Behavior struct {
	Code    int
	Message string
}

// CallRecord is one request the server observed, mirroring the Python
// mock's call_history entries.
type CallRecord struct {
	CDC           string
	SOAPAction    string
	Body          string
	RespondedCode int
	At            time.Time
}

// docState is what the server remembers about a document it has already
// accepted, so a later QueryByCDC/QueryBatchStatus call against the same
// CDC returns a consistent answer.
type docState struct {
	code     int
	message  string
	protocol string
}

// Server is a fake SET endpoint. The zero value accepts every document
// with SET code 260 and returns a fabricated protocol number; every field
// below is an optional behavior override. Server is safe for concurrent
// use, matching how a Sender under test shares it across goroutines.
type Server struct {
	// Latency, if set, is how long ServeHTTP sleeps before responding,
	// simulating network/processing delay (Python mock's simulate_latency).
	Latency time.Duration

	// FailureRate is the probability, in [0,1], that a call not otherwise
	// forced returns a transient SET 5000 "service unavailable" response.
	FailureRate float64

	// Rand drives FailureRate's coin flip. New sets a private source seeded
	// with 1, and a nil Rand is replaced by the same on first use; tests that need a fixed
	// outcome should set Rand to rand.New(rand.NewSource(fixedSeed)).
	Rand *rand.Rand

	mu          sync.Mutex
	calls       []CallRecord
	forcedNext  *Behavior
	timeoutNext bool
	protocolSeq int
	docs        map[string]docState
}

// New returns a Server with no forced behaviors and a private random
// source, ready to accept requests.
func New() *Server {
	return &Server{
		Rand: rand.New(rand.NewSource(1)),
		docs: make(map[string]docState),
	}
}

// ForceNext queues a single canned response for the very next call,
// regardless of which CDC it carries, mirroring the Python mock's
// force_error_response (and, for success codes, its counterpart for
// scripting an accept).
func (s *Server) ForceNext(code int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedNext = &Behavior{Code: code, Message: message}
}

// ForceNextTimeout arranges for the next call to hang until the caller's
// context is cancelled, mirroring the Python mock's force_timeout_response.
func (s *Server) ForceNextTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutNext = true
}

// CallCount returns how many requests ServeHTTP has handled.
func (s *Server) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Calls returns a copy of every request observed so far, oldest first.
func (s *Server) Calls() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.calls))
	copy(out, s.calls)
	return out
}

// LastCall returns the most recent call, or the zero value if none have
// arrived yet.
func (s *Server) LastCall() CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return CallRecord{}
	}
	return s.calls[len(s.calls)-1]
}

// Reset clears call history and forced behaviors, but keeps registered
// document state.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.forcedNext = nil
	s.timeoutNext = false
}

// ServeHTTP implements http.Handler, dispatching every request the same
// way regardless of which of the four SIFEN paths it arrived on: extract
// the document's CDC, decide an outcome, remember it, and write back a
// SOAP envelope response.Parse can decode.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cdcValue := extractCDC(string(body))
	action := r.Header.Get("SOAPAction")

	if wait, ok := s.takeTimeout(); ok && wait {
		<-r.Context().Done()
		return
	}

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-r.Context().Done():
			return
		}
	}

	code, message, protocol := s.resolve(cdcValue)

	s.mu.Lock()
	s.calls = append(s.calls, CallRecord{CDC: cdcValue, SOAPAction: action, Body: string(body), RespondedCode: code, At: time.Now()})
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, envelope(cdcValue, code, message, protocol))
}

func (s *Server) takeTimeout() (wait bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timeoutNext {
		return false, false
	}
	s.timeoutNext = false
	return true, true
}

// resolve decides the SET code, message, and protocol number for cdcValue,
// consulting (in order) a queued ForceNext behavior, an already-registered
// outcome for this CDC (so a later QueryByCDC call agrees with the SendOne
// that preceded it), a random failure injection, and finally the default
// accept.
func (s *Server) resolve(cdcValue string) (code int, message, protocol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forcedNext != nil {
		b := s.forcedNext
		s.forcedNext = nil
		if types.ClassifySETCode(b.Code) == types.CategorySuccess {
			protocol = s.nextProtocol()
			s.docs[cdcValue] = docState{code: b.Code, message: b.Message, protocol: protocol}
		}
		return b.Code, b.Message, protocol
	}

	if existing, ok := s.docs[cdcValue]; ok {
		return existing.code, existing.message, existing.protocol
	}

	if s.FailureRate > 0 && s.randFloat() < s.FailureRate {
		return 5000, "SET service temporarily unavailable", ""
	}

	protocol = s.nextProtocol()
	s.docs[cdcValue] = docState{code: 260, message: "Autorizado", protocol: protocol}
	return 260, "Autorizado", protocol
}

func (s *Server) randFloat() float64 {
	if s.Rand == nil {
		s.Rand = rand.New(rand.NewSource(1))
	}
	return s.Rand.Float64()
}

func (s *Server) nextProtocol() string {
	s.protocolSeq++
	return fmt.Sprintf("PROT%010d", s.protocolSeq)
}

func extractCDC(body string) string {
	m := cdcAttrPattern.FindStringSubmatch(body)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

func envelope(cdcValue string, code int, message, protocol string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <rRetEnviDe>
      <gResProc>
        <Id>%s</Id>
        <dCodRes>%04d</dCodRes>
        <dMsgRes>%s</dMsgRes>
        <dProtAut>%s</dProtAut>
      </gResProc>
    </rRetEnviDe>
  </soap:Body>
</soap:Envelope>`, cdcValue, code, message, protocol)
}

// StaticBehavior looks up one of a handful of named canned rejections,
// the Go equivalent of the Python mock's get_xml_with_error fixtures
// (e.g. "ruc_invalido", "timbrado_vencido").
func StaticBehavior(name string) (Behavior, bool) {
	b, ok := namedBehaviors[name]
	return b, ok
}

var namedBehaviors = map[string]Behavior{
	"ruc_invalido":     {Code: 1250, Message: "RUC del emisor no encontrado"},
	"timbrado_vencido": {Code: 1100, Message: "Timbrado vencido"},
	"cdc_invalido":     {Code: 1000, Message: "Estructura de CDC invalida"},
	"throttle_ruc":     {Code: 5002, Message: "Limite de solicitudes por RUC excedido"},
	"throttle_ip":      {Code: 5003, Message: "Limite de solicitudes por IP excedido"},
	"unavailable":      {Code: 5000, Message: "Servicio no disponible"},
}
