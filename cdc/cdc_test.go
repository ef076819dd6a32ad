package cdc

import (
	"testing"
	"time"

	"github.com/gaxoblanco/sifen-go/types"
)

func sampleRequest() Request {
	return Request{
		IssuerRUC:      "80000001",
		IssuerRUCCheck: 0,
		TaxpayerType:   LegalEntity,
		Kind:           types.Invoice,
		Establishment:  "001",
		Expedition:     "001",
		DocumentNumber: "0000001",
		IssuanceDate:   time.Date(2025, 6, 30, 14, 30, 0, 0, time.UTC),
		Emission:       types.Normal,
		SecurityCode:   "000000001",
	}
}

func TestGenerateLengthAndValid(t *testing.T) {
	generated, err := Generate(sampleRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(generated) != types.CDCLength {
		t.Fatalf("expected CDC length %d, got %d", types.CDCLength, len(generated))
	}
	if err := Validate(generated); err != nil {
		t.Errorf("expected generated CDC to validate, got error: %v", err)
	}
}

func TestGenerateBeginsWithIssuerRUCAndKind(t *testing.T) {
	generated, err := Generate(sampleRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got := generated[:8]; got != "80000001" {
		t.Errorf("expected CDC to start with issuer RUC, got %q", got)
	}
	if got := generated[10:12]; got != "01" {
		t.Errorf("expected kind segment '01' for Invoice, got %q", got)
	}
}

func TestDecomposeReassembleRoundTrip(t *testing.T) {
	generated, err := Generate(sampleRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	components, err := Decompose(generated)
	if err != nil {
		t.Fatalf("Decompose error: %v", err)
	}

	if got := components.Reassemble(); got != generated {
		t.Errorf("round trip mismatch: generated=%q reassembled=%q", generated, got)
	}
}

func TestDecomposeRejectsWrongLength(t *testing.T) {
	if _, err := Decompose("123"); err == nil {
		t.Error("expected error for short CDC")
	}
}

func TestDecomposeRejectsBadCheckDigit(t *testing.T) {
	generated, err := Generate(sampleRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	lastDigit := generated[len(generated)-1]
	flipped := byte('0')
	if lastDigit == '0' {
		flipped = '1'
	}
	tampered := generated[:len(generated)-1] + string(flipped)

	if err := Validate(tampered); err == nil {
		t.Error("expected validation error for tampered check digit")
	}
}

func TestGenerateRejectsInvalidKind(t *testing.T) {
	req := sampleRequest()
	req.Kind = types.DocumentKind(99)
	if _, err := Generate(req); err == nil {
		t.Error("expected error for invalid document kind")
	}
}

func TestGenerateRejectsShortFields(t *testing.T) {
	req := sampleRequest()
	req.Establishment = "1"
	if _, err := Generate(req); err == nil {
		t.Error("expected error for short establishment field")
	}
}

func TestFormatGroupsDigits(t *testing.T) {
	generated, err := Generate(sampleRequest())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	formatted := Format(generated)
	if formatted == generated {
		t.Error("expected Format to insert separators")
	}
}
