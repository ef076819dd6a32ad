package webservices

import (
	"strings"
	"testing"

	"github.com/gaxoblanco/sifen-go/types"
)

func TestResolveTestEnvironment(t *testing.T) {
	ep, err := Resolve(types.Test, SendOne)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(ep.URL, "sifen-test.set.gov.py") {
		t.Errorf("expected test host in URL, got %q", ep.URL)
	}
	if ep.SOAPAction == "" {
		t.Error("expected a non-empty SOAPAction")
	}
}

func TestResolveProductionUsesLiveHost(t *testing.T) {
	ep, err := Resolve(types.Production, SendBatch)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if strings.Contains(ep.URL, "test") {
		t.Errorf("production URL should not reference the test host, got %q", ep.URL)
	}
}

func TestResolveAllFourOperations(t *testing.T) {
	for _, op := range []Operation{SendOne, SendBatch, QueryByCDC, QueryBatchStatus} {
		if _, err := Resolve(types.Test, op); err != nil {
			t.Errorf("Resolve(%v): %v", op, err)
		}
	}
}

func TestResolveRejectsUnknownOperation(t *testing.T) {
	if _, err := Resolve(types.Test, Operation("bogus")); err == nil {
		t.Fatal("expected an error for an unknown operation")
	}
}

func TestResolveRejectsUnknownEnvironment(t *testing.T) {
	if _, err := Resolve(types.Environment(99), SendOne); err == nil {
		t.Fatal("expected an error for an unknown environment")
	}
}
