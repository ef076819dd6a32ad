package mockset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gaxoblanco/sifen-go/response"
	"github.com/gaxoblanco/sifen-go/soap"
)

const sampleCDC = "01800000172001001000000120250101123456789123"

func sampleBody(cdcValue string) string {
	return `<?xml version="1.0"?><soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">` +
		`<soap:Body><rEnviDe><rDE><DE Id="` + cdcValue + `"><gOpeDE/></DE></rDE></rEnviDe></soap:Body></soap:Envelope>`
}

func TestServeHTTPAcceptsByDefault(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	req := &soap.SOAPRequest{URL: ts.URL, Action: "send", Body: sampleBody(sampleCDC)}
	soapResp, err := callMock(t, req)
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	parsed, err := response.Parse(soapResp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Success {
		t.Fatalf("expected a default success response, got code %d", parsed.Code)
	}
	if parsed.CDC != sampleCDC {
		t.Errorf("expected parsed CDC %q, got %q", sampleCDC, parsed.CDC)
	}
	if parsed.ProtocolNumber == "" {
		t.Error("expected a fabricated protocol number on acceptance")
	}
}

func TestServeHTTPTracksCallHistory(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	for i := 0; i < 3; i++ {
		if _, err := callMock(t, &soap.SOAPRequest{URL: ts.URL, Action: "send", Body: sampleBody(sampleCDC)}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	if got := srv.CallCount(); got != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", got)
	}
	if last := srv.LastCall(); last.CDC != sampleCDC {
		t.Errorf("expected last call CDC %q, got %q", sampleCDC, last.CDC)
	}
}

func TestForceNextReturnsCannedRejection(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	behavior, ok := StaticBehavior("ruc_invalido")
	if !ok {
		t.Fatal("expected a named ruc_invalido behavior")
	}
	srv.ForceNext(behavior.Code, behavior.Message)

	soapResp, err := callMock(t, &soap.SOAPRequest{URL: ts.URL, Action: "send", Body: sampleBody(sampleCDC)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	parsed, err := response.Parse(soapResp)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Success {
		t.Fatal("expected a forced rejection, got success")
	}
	if parsed.Code != behavior.Code {
		t.Errorf("expected forced code %d, got %d", behavior.Code, parsed.Code)
	}

	// The forced behavior only applies once; the next call falls back to
	// the default accept.
	soapResp2, err := callMock(t, &soap.SOAPRequest{URL: ts.URL, Action: "send", Body: sampleBody(sampleCDC)})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	parsed2, err := response.Parse(soapResp2)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed2.Success {
		t.Fatal("expected the second call to fall back to the default accept")
	}
}

func TestResolveRemembersAcceptedDocument(t *testing.T) {
	srv := New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	first, err := callMock(t, &soap.SOAPRequest{URL: ts.URL, Action: "send", Body: sampleBody(sampleCDC)})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	firstParsed, err := response.Parse(first)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// A query against the same CDC should agree with what SendOne recorded.
	second, err := callMock(t, &soap.SOAPRequest{URL: ts.URL, Action: "query", Body: sampleBody(sampleCDC)})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	secondParsed, err := response.Parse(second)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if secondParsed.ProtocolNumber != firstParsed.ProtocolNumber {
		t.Errorf("expected consistent protocol number across calls, got %q then %q", firstParsed.ProtocolNumber, secondParsed.ProtocolNumber)
	}
}

func TestExtractCDCIgnoresMalformedBody(t *testing.T) {
	if got := extractCDC("<not-xml>"); got != "" {
		t.Errorf("expected empty CDC for a body with no DE element, got %q", got)
	}
}

// callMock drives a SOAPClient against ts the same way sender.call does,
// so these tests exercise the same request path production code takes.
func callMock(t *testing.T, req *soap.SOAPRequest) (string, error) {
	t.Helper()
	client := soap.NewSOAPClient(soap.DefaultConfig())
	client.SetMaxRetries(0)
	resp, err := client.Call(context.Background(), req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
