package document

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gaxoblanco/sifen-go/types"
)

func sampleTimbrado() Timbrado {
	return Timbrado{
		Number:        "12345678",
		Establishment: "001",
		Expedition:    "001",
		ValidFrom:     time.Date(2026, 1, 1, 0, 0, 0, 0, Asuncion),
		ValidTo:       time.Date(2027, 1, 1, 0, 0, 0, 0, Asuncion),
	}
}

func sampleItems() []LineItem {
	return []LineItem{
		{Description: "widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(110000), Iva: types.Iva10},
		{Description: "gizmo", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(52500), Iva: types.Iva5},
	}
}

func validIssuerRUC(t *testing.T) string {
	t.Helper()
	return "80000001-7"
}

func TestNewInvoiceValidates(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000001", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	if v := inv.Validate(); len(v) != 0 {
		t.Fatalf("expected a valid invoice, got violations: %v", v)
	}
}

func TestValidateRejectsFutureIssuance(t *testing.T) {
	future := time.Now().In(Asuncion).Add(48 * time.Hour)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000001", future, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	v := inv.Validate()
	if !hasViolation(v, "issuance_date") {
		t.Fatalf("expected an issuance_date violation, got: %v", v)
	}
}

func TestValidateRejectsQuantityNotPositive(t *testing.T) {
	items := sampleItems()
	items[0].Quantity = decimal.Zero
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000001", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, items, types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	v := inv.Validate()
	if !hasViolation(v, "items[0].quantity") {
		t.Fatalf("expected a quantity violation, got: %v", v)
	}
}

func TestValidateRejectsTotalsDrift(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000001", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	inv.Totals.Total = inv.Totals.Total.Add(decimal.NewFromInt(500))

	v := inv.Validate()
	if !hasViolation(v, "totals.total") {
		t.Fatalf("expected a totals.total violation, got: %v", v)
	}
}

// TestCreditNoteRejectsSameOrLaterAssociatedDate exercises scenario S4: a
// credit note referencing a document issued on or after its own issuance
// timestamp must fail validation.
func TestCreditNoteRejectsSameOrLaterAssociatedDate(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	associated := AssociatedDocument{
		CDC:          sampleCDC(t),
		Kind:         types.Invoice,
		IssuanceDate: issuance, // same instant as the credit note itself
	}

	nce, err := NewCreditNote(validIssuerRUC(t), "001", "001", "0000002", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero, associated)
	if err != nil {
		t.Fatalf("NewCreditNote: %v", err)
	}

	v := nce.Validate()
	if !hasViolation(v, "associated_document.issuance_date") {
		t.Fatalf("expected an associated_document.issuance_date violation, got: %v", v)
	}
}

func TestCreditNoteAcceptsEarlierAssociatedDate(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	associated := AssociatedDocument{
		CDC:          sampleCDC(t),
		Kind:         types.Invoice,
		IssuanceDate: issuance.Add(-24 * time.Hour),
	}

	nce, err := NewCreditNote(validIssuerRUC(t), "001", "001", "0000002", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero, associated)
	if err != nil {
		t.Fatalf("NewCreditNote: %v", err)
	}

	if v := nce.Validate(); len(v) != 0 {
		t.Fatalf("expected a valid credit note, got violations: %v", v)
	}
}

func TestRemissionNoteRequiresTransportAndZeroTotals(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	nre, err := NewRemissionNote(validIssuerRUC(t), "001", "001", "0000003", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"},
		[]LineItem{{Description: "pallet", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.Zero, Iva: types.IvaExempt}},
		TransportRecord{})
	if err != nil {
		t.Fatalf("NewRemissionNote: %v", err)
	}

	v := nre.Validate()
	if !hasViolation(v, "transport.vehicles") {
		t.Fatalf("expected a transport.vehicles violation, got: %v", v)
	}
}

func TestRemissionNoteValidWithTransport(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	transport := TransportRecord{
		Mode:         "road",
		StartAddress: Address{Street: "Av. Mcal Lopez", City: "Asuncion", Country: "PY"},
		EndAddress:   Address{Street: "Ruta 2", City: "Coronel Oviedo", Country: "PY"},
		Vehicles:     []Vehicle{{Plate: "ABC123", DriverName: "Juan Perez", DriverDocument: "1234567"}},
	}
	nre, err := NewRemissionNote(validIssuerRUC(t), "001", "001", "0000003", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"},
		[]LineItem{{Description: "pallet", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.Zero, Iva: types.IvaExempt}},
		transport)
	if err != nil {
		t.Fatalf("NewRemissionNote: %v", err)
	}

	if v := nre.Validate(); len(v) != 0 {
		t.Fatalf("expected a valid remission note, got violations: %v", v)
	}
}

func TestAutoInvoiceRequiresMatchingReceiverAndForeignSeller(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	afe, err := NewAutoInvoice(validIssuerRUC(t), "001", "001", "0000004", issuance, sampleTimbrado(),
		sampleItems(), types.PYG, decimal.Zero, ForeignSeller{Name: "Acme Corp", Country: "US"})
	if err != nil {
		t.Fatalf("NewAutoInvoice: %v", err)
	}

	if v := afe.Validate(); len(v) != 0 {
		t.Fatalf("expected a valid auto-invoice, got violations: %v", v)
	}

	afe.ForeignSeller = nil
	v := afe.Validate()
	if !hasViolation(v, "foreign_seller") {
		t.Fatalf("expected a foreign_seller violation, got: %v", v)
	}
}

func TestFingerprintStableAcrossRetries(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000001", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	f1 := inv.Fingerprint()
	f2 := inv.Fingerprint()
	if f1 != f2 {
		t.Errorf("Fingerprint is not stable: %s != %s", f1, f2)
	}
}

func TestCDCRequiresSecurityCode(t *testing.T) {
	issuance := time.Date(2026, 7, 1, 9, 0, 0, 0, Asuncion)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000001", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}

	if _, err := inv.CDC(); err == nil {
		t.Fatal("expected an error computing CDC without a security code")
	}

	if err := inv.GenerateSecurityCode(); err != nil {
		t.Fatalf("GenerateSecurityCode: %v", err)
	}
	code, err := inv.CDC()
	if err != nil {
		t.Fatalf("CDC: %v", err)
	}
	if len(code) != types.CDCLength {
		t.Errorf("expected a %d-digit CDC, got %d digits", types.CDCLength, len(code))
	}
}

func hasViolation(vs []Violation, substr string) bool {
	for _, v := range vs {
		if v.Path == substr || (len(v.Path) >= len(substr) && v.Path[len(v.Path)-len(substr):] == substr) {
			return true
		}
	}
	return false
}

func sampleCDC(t *testing.T) string {
	t.Helper()
	issuance := time.Date(2026, 6, 1, 9, 0, 0, 0, Asuncion)
	inv, err := NewInvoice(validIssuerRUC(t), "001", "001", "0000099", issuance, sampleTimbrado(),
		Receiver{Name: "Acme SA", RUC: "80000002-5"}, sampleItems(), types.PYG, decimal.Zero)
	if err != nil {
		t.Fatalf("NewInvoice: %v", err)
	}
	if err := inv.GenerateSecurityCode(); err != nil {
		t.Fatalf("GenerateSecurityCode: %v", err)
	}
	code, err := inv.CDC()
	if err != nil {
		t.Fatalf("CDC: %v", err)
	}
	return code
}
