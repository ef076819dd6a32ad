// Package sender orchestrates validate->sign->send->parse->classify for a
// single document, a batch, and a CDC status lookup (spec §4.10). It is the
// one place classification turns into retry behavior and admission control,
// wiring together every other package: document, xmlbuilder, mapper,
// certificate, soap, webservices, response, retry, ratelimit.
//
// Grounded on the teacher's nfe.NFEClient: a config/certificate-holding
// struct with Authorize/QueryChave/QueryStatus as the direct analogues of
// SendOne/Query, and ActivateContingency/DeactivateContingency/
// IsContingencyActive as the structural analogue of this package's
// contingency admission window. Unlike NFEClient, contingency here is a
// property of each document (EmissionType) rather than client-wide session
// state, since SIFEN documents declare their own emission type in the CDC.
package sender

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gaxoblanco/sifen-go/certificate"
	"github.com/gaxoblanco/sifen-go/config"
	"github.com/gaxoblanco/sifen-go/document"
	nferrors "github.com/gaxoblanco/sifen-go/errors"
	"github.com/gaxoblanco/sifen-go/mapper"
	"github.com/gaxoblanco/sifen-go/ratelimit"
	"github.com/gaxoblanco/sifen-go/response"
	"github.com/gaxoblanco/sifen-go/retry"
	"github.com/gaxoblanco/sifen-go/soap"
	"github.com/gaxoblanco/sifen-go/types"
	"github.com/gaxoblanco/sifen-go/webservices"
	"github.com/gaxoblanco/sifen-go/xmlbuilder"
)

// localEgress is the rate-limit bucket key used for the per-IP token
// bucket. The sender never inspects its own outbound socket address — the
// OS picks the source IP per connection, and SET's published per-IP limit
// is a courtesy ceiling this process imposes on itself regardless of which
// address ends up on the wire, not a measurement of it.
const localEgress = "local-egress"

// SendResult is send_one's outcome (spec §4.10).
type SendResult struct {
	Success    bool                 `json:"success"`
	CDC        string               `json:"cdc"`
	Protocol   string               `json:"protocol,omitempty"`
	Status     types.DocumentStatus `json:"status"`
	Errors     []response.Detail    `json:"errors,omitempty"`
	Attempts   int                  `json:"attempts"`
	DurationMs int64                `json:"duration_ms"`
}

// DocResult is one document's outcome inside a BatchResult, in input order.
type DocResult struct {
	SendResult
	Err error `json:"-"`

	// extemporaneous records prepare()'s contingency-window verdict for
	// this document, consulted once the batch's SOAP response arrives.
	extemporaneous bool
}

// BatchResult is send_batch's outcome: one DocResult per input document, in
// input order. Protocol is the first non-empty protocol number among the
// per-document responses; no separate lote-level protocol is obtained.
type BatchResult struct {
	Protocol string      `json:"protocol,omitempty"`
	Results  []DocResult `json:"results"`
}

// QueryResult is query's outcome.
type QueryResult struct {
	CDC        string               `json:"cdc"`
	Status     types.DocumentStatus `json:"status"`
	Protocol   string               `json:"protocol,omitempty"`
	Errors     []response.Detail    `json:"errors,omitempty"`
	DurationMs int64                `json:"duration_ms"`
}

// Sender is the thread-safe orchestrator spec §5 requires ("one instance
// may be shared across callers"). Construct with New.
type Sender struct {
	cfg        *config.Config
	cert       certificate.Certificate
	signer     *certificate.XMLSigner
	soapClient *soap.SOAPClient
	limiter    *ratelimit.Manager
	policy     retry.Policy

	// MappingRules, when non-empty, is applied to the modular XML
	// xmlbuilder produces before signing (spec §4.4/§9 "dynamic XML
	// shapes"). Most callers leave this unset: xmlbuilder already emits
	// SET's official element order directly.
	MappingRules mapper.RuleSet

	journal *journal

	orderMu sync.Mutex
	order   map[string]*sync.Mutex
}

// New builds a Sender from cfg: loads the PKCS#12 certificate, configures
// the SOAP transport and TLS policy, and opens the submission journal if
// cfg.JournalPath is set.
func New(cfg *config.Config) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cert, err := certificate.LoadA1FromFile(cfg.Certificate.Path, cfg.Certificate.Password)
	if err != nil {
		return nil, nferrors.NewCertificateError("failed to load signing certificate", err)
	}

	signer := certificate.NewXMLSigner(cert, certificate.DefaultSignerConfig())

	soapConfig := soap.DefaultConfig()
	soapConfig.TLSConfig.InsecureSkipVerify = !cfg.VerifyTLS
	client := soap.NewSOAPClient(soapConfig)
	client.SetTimeout(cfg.Timeout())
	// The retry package owns every retry decision (it classifies SET
	// responses, not just transport failures); the transport layer's own
	// backoff loop would only duplicate that work blindly.
	client.SetMaxRetries(0)
	if err := client.LoadCertificate(cert); err != nil {
		cert.Close()
		return nil, err
	}

	limits := ratelimit.DefaultLimits()
	if cfg.RateLimits.PerRucPerSec > 0 {
		limits.PerRUCPerSecond = float64(cfg.RateLimits.PerRucPerSec)
		limits.PerRUCBurst = cfg.RateLimits.PerRucPerSec
	}
	if cfg.RateLimits.PerIPPerMinute > 0 {
		limits.PerIPPerMinute = float64(cfg.RateLimits.PerIPPerMinute)
		limits.PerIPBurst = cfg.RateLimits.PerIPPerMinute
	}
	if cfg.RateLimits.ConcurrentPerRuc > 0 {
		limits.ConcurrentPerRUC = int64(cfg.RateLimits.ConcurrentPerRuc)
	}
	if cfg.QueueDepth > 0 {
		limits.QueueDepth = int64(cfg.QueueDepth)
	}

	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy = policy.WithMaxAttempts(cfg.MaxRetries)
	}

	var j *journal
	if cfg.JournalPath != "" {
		j, err = openJournal(cfg.JournalPath)
		if err != nil {
			cert.Close()
			return nil, err
		}
	}

	return &Sender{
		cfg:        cfg,
		cert:       cert,
		signer:     signer,
		soapClient: client,
		limiter:    ratelimit.NewManager(limits),
		policy:     policy,
		journal:    j,
		order:      make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the certificate's key material and the submission journal.
func (s *Sender) Close() error {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			return err
		}
	}
	return s.cert.Close()
}

// orderingKey serializes submissions sharing (issuer, establishment,
// expedition point) so sequence numbers reach SET in the order the caller
// submitted them (spec §5's ordering guarantee); documents with a different
// triple never contend for the same lock and may complete in any order.
func (s *Sender) orderingKey(doc *document.Document) *sync.Mutex {
	key := fmt.Sprintf("%s|%s|%s", doc.IssuerRUCBase, doc.Establishment, doc.Expedition)
	s.orderMu.Lock()
	defer s.orderMu.Unlock()
	mu, ok := s.order[key]
	if !ok {
		mu = &sync.Mutex{}
		s.order[key] = mu
	}
	return mu
}

// contingencyCheck applies spec §4.10's admission window to a contingency
// document. A normal-emission document is always admitted. now is passed
// in rather than read from time.Now() at every call site so tests can pin
// the clock.
func contingencyCheck(doc *document.Document, now time.Time) (reject bool, extemporaneous bool) {
	if doc.Emission != types.Contingency {
		return false, false
	}
	age := now.Sub(doc.IssuanceDate)
	switch {
	case age > types.ContingencyAdmissionHours*time.Hour:
		return true, false
	case age > types.ExtemporaneousThresholdHours*time.Hour:
		return false, true
	default:
		return false, false
	}
}

// prepare validates, assigns the security code, and produces the signed DE
// XML ready for transmission. It does not touch the network.
func (s *Sender) prepare(doc *document.Document) (cdcValue, signedXML string, extemporaneous bool, err error) {
	if violations := doc.Validate(); len(violations) > 0 {
		return "", "", false, nferrors.NewValidationError(
			fmt.Sprintf("document failed validation with %d violation(s): %s", len(violations), violations[0].String()),
			"document", violations,
		)
	}

	reject, extemporaneous := contingencyCheck(doc, time.Now())
	if reject {
		return "", "", false, nferrors.NewRejectedError(
			fmt.Sprintf("contingency document is older than the %d-hour admission window", types.ContingencyAdmissionHours),
			"",
		)
	}

	if err := doc.GenerateSecurityCode(); err != nil {
		return "", "", false, err
	}
	cdcValue, err = doc.CDC()
	if err != nil {
		return "", "", false, err
	}

	modularXML, err := xmlbuilder.Build(doc, cdcValue)
	if err != nil {
		return "", "", false, err
	}

	if len(s.MappingRules.Rules) > 0 {
		modularXML, err = mapper.ModularToOfficial(modularXML, s.MappingRules)
		if err != nil {
			return "", "", false, err
		}
	}

	signedXML, err = s.signer.SignDE(string(modularXML))
	if err != nil {
		return "", "", false, err
	}

	return cdcValue, signedXML, extemporaneous, nil
}

// Sign validates and signs doc without submitting it, returning the CDC and
// the signed DE XML ready for transmission. This is prepare's public face,
// for callers (the sifen-cli sign subcommand) that want the signed document
// without sending it.
func (s *Sender) Sign(doc *document.Document) (cdcValue, signedXML string, err error) {
	cdcValue, signedXML, _, err = s.prepare(doc)
	return cdcValue, signedXML, err
}

// call wraps one SOAP round trip with admission control and classification,
// without retry; SendOne/Query layer retry.Do on top of this.
func (s *Sender) call(ctx context.Context, op webservices.Operation, bodyContent string) (*response.Response, error) {
	endpoint, err := webservices.Resolve(s.cfg.Environment, op)
	if err != nil {
		return nil, err
	}
	req, err := soap.CreateSIFENSOAPRequest(endpoint.URL, endpoint.SOAPAction, bodyContent)
	if err != nil {
		return nil, err
	}

	resp, err := s.soapClient.Call(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nferrors.NewCancelledError("SOAP call aborted by cancellation")
		}
		return nil, nferrors.NewTransientError(fmt.Sprintf("SOAP call to %s failed", op), "", err)
	}

	parsed, err := response.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

// SendOne validates, signs, and submits a single document, retrying
// transient and throttle outcomes per the configured retry policy.
func (s *Sender) SendOne(ctx context.Context, doc *document.Document) (*SendResult, error) {
	start := time.Now()

	cdcValue, signedXML, extemporaneous, err := s.prepare(doc)
	if err != nil {
		return nil, err
	}

	mu := s.orderingKey(doc)
	mu.Lock()
	defer mu.Unlock()

	release, err := s.limiter.Admit(ctx, doc.IssuerRUCBase, localEgress)
	if err != nil {
		return nil, err
	}
	defer release()

	var parsed *response.Response
	attempts, err := retry.Do(ctx, s.policy, ratelimit.RUCWaiter{Manager: s.limiter, RUC: doc.IssuerRUCBase}, func(int) error {
		r, callErr := s.call(ctx, webservices.SendOne, signedXML)
		if callErr != nil {
			return callErr
		}
		parsed = r
		return r.ToError()
	})

	result := &SendResult{CDC: cdcValue, DurationMs: time.Since(start).Milliseconds(), Attempts: len(attempts)}
	if parsed != nil {
		result.Protocol = parsed.ProtocolNumber
		result.Status = parsed.DocumentStatus
		result.Errors = parsed.Errors
		switch {
		case extemporaneous && result.Status == types.StatusAccepted:
			// spec §4.10: a contingency document inside the 72h-720h window
			// surfaces as extemporaneous, SET's own spelling of
			// success-with-observations for a late submission.
			result.Status = types.StatusExtemporaneous
		case parsed.Success && len(parsed.Errors) > 0:
			result.Status = types.StatusAcceptedObservations
		}
	}
	result.Success = err == nil

	s.recordJournal(doc, result, err)
	return result, err
}

// SendBatch submits up to 50 documents under one batch admission. Each
// document goes to SET's batch endpoint as its own SOAP request; the
// documents are not combined into a single lote request. It rejects the
// whole batch before touching the network if it exceeds spec §4.10's
// document-count or total-size ceilings; a document over the
// single-document limit fails on its own while the rest are sent.
func (s *Sender) SendBatch(ctx context.Context, docs []*document.Document) (*BatchResult, error) {
	if len(docs) == 0 {
		return &BatchResult{}, nferrors.NewValidationError("batch must contain at least one document", "docs", 0)
	}
	if len(docs) > types.MaxBatchDocuments {
		return nil, nferrors.NewValidationError(
			fmt.Sprintf("batch exceeds the %d-document limit", types.MaxBatchDocuments), "docs", len(docs),
		)
	}

	results := make([]DocResult, len(docs))
	signed := make([]string, len(docs))
	var totalBytes int64

	for i, doc := range docs {
		cdcValue, signedXML, extemporaneous, err := s.prepare(doc)
		if err != nil {
			results[i] = DocResult{SendResult: SendResult{CDC: cdcValue}, Err: err}
			continue
		}
		size := int64(len(signedXML))
		if size > types.MaxDocumentBytes {
			results[i] = DocResult{
				SendResult: SendResult{CDC: cdcValue},
				Err: nferrors.NewValidationError(
					fmt.Sprintf("document exceeds the %d-byte single-document limit", types.MaxDocumentBytes), fmt.Sprintf("docs[%d]", i), size,
				),
			}
			continue
		}
		totalBytes += size
		signed[i] = signedXML
		results[i] = DocResult{SendResult: SendResult{CDC: cdcValue}}
		results[i].extemporaneous = extemporaneous
	}
	if totalBytes > types.MaxBatchBytes {
		return nil, nferrors.NewValidationError(
			fmt.Sprintf("batch exceeds the %d-byte total size limit", types.MaxBatchBytes), "docs", totalBytes,
		)
	}

	ruc := s.cfg.RucEmisor
	release, err := s.limiter.AdmitBatch(ctx, ruc, localEgress)
	if err != nil {
		return nil, err
	}
	defer release()

	rucWaiter := ratelimit.RUCWaiter{Manager: s.limiter, RUC: ruc}
	concurrency := s.limiter.Limits().ConcurrentPerRUC
	if concurrency > int64(len(docs)) {
		concurrency = int64(len(docs))
	}
	batchErr := ratelimit.RunBatch(ctx, concurrency, len(docs), func(ctx context.Context, i int) error {
		if results[i].Err != nil {
			return nil // already failed preparation, nothing to submit
		}
		// Each document in the batch is still a distinct SOAP request
		// against SET, so it still spends one per-RUC token even though
		// AdmitBatch already reserved the batch-level queue/concurrency
		// slot once for the whole call.
		if err := rucWaiter.Wait(ctx); err != nil {
			results[i].Err = err
			return nil
		}

		start := time.Now()
		var parsed *response.Response
		attempts, err := retry.Do(ctx, s.policy, rucWaiter, func(int) error {
			r, callErr := s.call(ctx, webservices.SendBatch, signed[i])
			if callErr != nil {
				return callErr
			}
			parsed = r
			return r.ToError()
		})

		r := &results[i]
		r.DurationMs = time.Since(start).Milliseconds()
		r.Attempts = len(attempts)
		if parsed != nil {
			r.Protocol = parsed.ProtocolNumber
			r.Status = parsed.DocumentStatus
			r.Errors = parsed.Errors
			switch {
			case r.extemporaneous && r.Status == types.StatusAccepted:
				r.Status = types.StatusExtemporaneous
			case parsed.Success && len(parsed.Errors) > 0:
				r.Status = types.StatusAcceptedObservations
			}
		}
		r.Success = err == nil
		r.Err = err
		s.recordJournal(docs[i], &r.SendResult, err)
		return nil // per-document failures don't cancel the rest of the batch
	})
	if batchErr != nil {
		return nil, batchErr
	}

	batch := &BatchResult{Results: results}
	for _, r := range results {
		if r.Protocol != "" {
			batch.Protocol = r.Protocol
			break
		}
	}
	return batch, nil
}

// Query looks up a document's current state in SET by CDC.
func (s *Sender) Query(ctx context.Context, cdcValue string) (*QueryResult, error) {
	start := time.Now()

	ruc := s.cfg.RucEmisor
	release, err := s.limiter.Admit(ctx, ruc, localEgress)
	if err != nil {
		return nil, err
	}
	defer release()

	queryXML := fmt.Sprintf(`<rConsDE xmlns="http://ekuatia.set.gov.py/sifen/xsd"><dCDC>%s</dCDC></rConsDE>`, cdcValue)

	var parsed *response.Response
	_, err = retry.Do(ctx, s.policy, ratelimit.RUCWaiter{Manager: s.limiter, RUC: ruc}, func(int) error {
		r, callErr := s.call(ctx, webservices.QueryByCDC, queryXML)
		if callErr != nil {
			return callErr
		}
		parsed = r
		if r.Success {
			return nil
		}
		if nfErr := r.ToError(); nfErr.Retriable() {
			return nfErr
		}
		// A terminal status (rejected, cancelled, ...) is still a valid
		// answer to "what is this document's current state" - not a
		// failed query.
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &QueryResult{CDC: cdcValue, DurationMs: time.Since(start).Milliseconds()}
	if parsed != nil {
		result.Status = parsed.DocumentStatus
		result.Protocol = parsed.ProtocolNumber
		result.Errors = parsed.Errors
	}
	return result, nil
}

// recordJournal appends one outcome to the submission journal, when
// configured. Journal write failures are never surfaced to the caller: the
// journal is an audit trail, not a dependency of the send path.
func (s *Sender) recordJournal(doc *document.Document, result *SendResult, sendErr error) {
	if s.journal == nil {
		return
	}
	entry := journalEntry{
		ID:          uuid.NewString(),
		Fingerprint: doc.Fingerprint(),
		CDC:         result.CDC,
		Status:      string(result.Status),
		Success:     result.Success,
		Attempts:    result.Attempts,
		RecordedAt:  time.Now().UTC(),
	}
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	_ = s.journal.append(entry)
}
