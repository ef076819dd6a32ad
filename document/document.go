// Package document models the five SET v150 document variants (spec §4.1):
// invoice, auto-invoice, credit note, debit note, and remission note. All
// five share a common head (issuer, receiver, line items, totals) and add a
// kind-specific sub-record, the shape spec §9 calls a "tagged alternative"
// rather than a deep inheritance hierarchy — mirrored here on the teacher's
// own shared-struct-plus-specialization layout (nfe/types.go's NFe carrying
// optional per-purpose blocks, nfe/cce.go and nfe/cancelamento.go each
// specializing a common shape).
//
// Validate never returns an error for a malformed document: it always
// returns a (possibly empty) slice of Violation, because a document that
// fails business rules is data, not a programming failure.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gaxoblanco/sifen-go/cdc"
	"github.com/gaxoblanco/sifen-go/csc"
	"github.com/gaxoblanco/sifen-go/errors"
	"github.com/gaxoblanco/sifen-go/ruc"
	"github.com/gaxoblanco/sifen-go/types"
)

// Asuncion is Paraguay's fixed UTC-3 offset. SET never observes daylight
// saving, so a fixed zone is correct where time.LoadLocation("America/Asuncion")
// would merely be slower and require a tzdata dependency the teacher doesn't
// carry.
var Asuncion = time.FixedZone("-03", -3*60*60)

// Address is a free-form postal address, used by both the receiver record
// and the remission note's transport record.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Timbrado is the printing authorization envelope granted by SET: a number
// valid for a given establishment/expedition point and date range.
type Timbrado struct {
	Number        string    `json:"number"`        // 8 digits
	Establishment string    `json:"establishment"` // 3 digits
	Expedition    string    `json:"expedition"`     // 3 digits
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
}

// Receiver is the document's counterparty.
type Receiver struct {
	RUC             string  `json:"ruc,omitempty"`
	Name            string  `json:"name"`
	IsFinalConsumer bool    `json:"is_final_consumer"`
	Address         Address `json:"address,omitempty"`
}

// LineItem is one line of the document's detail (gCamItem). TaxableBase,
// IvaAmount, and LineTotal are derived rather than stored, so they can never
// drift from Quantity/UnitPrice/Iva.
type LineItem struct {
	Code        string               `json:"code,omitempty"`
	Description string               `json:"description"`
	Quantity    decimal.Decimal      `json:"quantity"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	Iva         types.IvaAffectation `json:"iva"`
}

// LineTotal is Quantity * UnitPrice, unrounded.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// IvaAmount is the portion of LineTotal attributable to IVA. Exempt and
// "other" affectations carry no IVA amount.
func (li LineItem) IvaAmount() decimal.Decimal {
	rate := li.Iva.Rate()
	if rate == 0 {
		return decimal.Zero
	}
	total := li.LineTotal()
	divisor := decimal.NewFromInt(100 + int64(rate))
	base := total.Mul(decimal.NewFromInt(100)).DivRound(divisor, 4)
	return total.Sub(base)
}

// TaxableBase is LineTotal with IvaAmount removed. For exempt/other lines
// the whole line total is the base (it simply carries no IVA component).
func (li LineItem) TaxableBase() decimal.Decimal {
	return li.LineTotal().Sub(li.IvaAmount())
}

// Totals is the document's declared aggregate (gTotSub), checked for
// coherence against the line items during Validate.
type Totals struct {
	Currency       types.Currency  `json:"currency"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate,omitempty"`
	ExemptSubtotal decimal.Decimal `json:"exempt_subtotal"`
	Subtotal5      decimal.Decimal `json:"subtotal_5"`
	Subtotal10     decimal.Decimal `json:"subtotal_10"`
	Iva5Total      decimal.Decimal `json:"iva_5_total"`
	Iva10Total     decimal.Decimal `json:"iva_10_total"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Total          decimal.Decimal `json:"total"`
}

// ComputeTotals derives a Totals from items, the way a caller normally
// builds the Document.Totals field before calling Validate.
func ComputeTotals(items []LineItem, currency types.Currency, exchangeRate decimal.Decimal) Totals {
	t := Totals{Currency: currency, ExchangeRate: exchangeRate}
	for _, li := range items {
		base := li.TaxableBase()
		iva := li.IvaAmount()
		switch li.Iva {
		case types.Iva5:
			t.Subtotal5 = t.Subtotal5.Add(base)
			t.Iva5Total = t.Iva5Total.Add(iva)
		case types.Iva10:
			t.Subtotal10 = t.Subtotal10.Add(base)
			t.Iva10Total = t.Iva10Total.Add(iva)
		default:
			t.ExemptSubtotal = t.ExemptSubtotal.Add(base)
		}
		t.Subtotal = t.Subtotal.Add(base)
		t.Total = t.Total.Add(li.LineTotal())
	}
	return t
}

// ForeignSeller is the AFE-specific foreign-seller record (spec §4.1).
type ForeignSeller struct {
	Name                string `json:"name"`
	Country             string `json:"country"`
	DocumentType        string `json:"document_type,omitempty"`
	DocumentNumber      string `json:"document_number,omitempty"`
	TransactionLocation string `json:"transaction_location,omitempty"`
}

// AssociatedDocument links an NCE/NDE to the earlier document it adjusts,
// by CDC value rather than by pointer — spec §9 explicitly rules out
// pointer-based linkage so associated documents can never form a cycle.
type AssociatedDocument struct {
	CDC          string             `json:"cdc"`
	Kind         types.DocumentKind `json:"kind"`
	IssuanceDate time.Time          `json:"issuance_date"`
}

// Vehicle is one vehicle+driver pair in a remission note's transport record.
type Vehicle struct {
	Plate          string `json:"plate"`
	DriverName     string `json:"driver_name"`
	DriverDocument string `json:"driver_document"`
}

// TransportRecord is the NRE-specific transport block (spec §4.1): at least
// one vehicle and driver, and both endpoint addresses.
type TransportRecord struct {
	Mode         string    `json:"mode,omitempty"`
	Responsible  string    `json:"responsible,omitempty"`
	StartAddress Address   `json:"start_address"`
	EndAddress   Address   `json:"end_address"`
	Vehicles     []Vehicle `json:"vehicles"`
}

// Document is one of the five SET v150 document variants. Only the field
// set matching Kind is expected to be populated; Validate enforces that.
type Document struct {
	Kind types.DocumentKind `json:"kind"`

	IssuerRUCBase  string           `json:"issuer_ruc_base"`  // 8 digits
	IssuerRUCCheck int              `json:"issuer_ruc_check"` // 0-10
	TaxpayerType   cdc.TaxpayerType `json:"taxpayer_type"`
	IssuerName     string           `json:"issuer_name"`

	Establishment  string    `json:"establishment"` // 3 digits
	Expedition     string    `json:"expedition"`    // 3 digits
	DocumentNumber string    `json:"document_number"` // 7 digits
	IssuanceDate   time.Time `json:"issuance_date"`
	Emission       types.EmissionType `json:"emission"`
	SecurityCode   string    `json:"security_code"` // 9 digits, CSC

	Timbrado Timbrado `json:"timbrado"`
	Receiver Receiver `json:"receiver"`
	Items    []LineItem `json:"items"`
	Totals   Totals     `json:"totals"`

	AdditionalInfo string `json:"additional_info,omitempty"`

	ForeignSeller      *ForeignSeller      `json:"foreign_seller,omitempty"`
	AssociatedDocument *AssociatedDocument `json:"associated_document,omitempty"`
	Transport          *TransportRecord    `json:"transport,omitempty"`
}

// FormattedNumber renders the document number as SET's public
// "NNN-NNN-NNNNNNN" form.
func (d *Document) FormattedNumber() string {
	return fmt.Sprintf("%s-%s-%s", d.Establishment, d.Expedition, d.DocumentNumber)
}

// CDC computes the document's Code of Control. It requires SecurityCode to
// already be set; call GenerateSecurityCode first if the caller hasn't
// assigned one.
func (d *Document) CDC() (string, error) {
	if d.SecurityCode == "" {
		return "", errors.NewValidationError("security code must be generated before computing the CDC", "security_code", "")
	}
	return cdc.Generate(cdc.Request{
		IssuerRUC:      d.IssuerRUCBase,
		IssuerRUCCheck: d.IssuerRUCCheck,
		TaxpayerType:   d.TaxpayerType,
		Kind:           d.Kind,
		Establishment:  d.Establishment,
		Expedition:     d.Expedition,
		DocumentNumber: d.DocumentNumber,
		IssuanceDate:   d.IssuanceDate,
		Emission:       d.Emission,
		SecurityCode:   d.SecurityCode,
	})
}

// GenerateSecurityCode assigns a fresh CSC if one isn't already set.
func (d *Document) GenerateSecurityCode() error {
	if d.SecurityCode != "" {
		return nil
	}
	code, err := csc.Generate()
	if err != nil {
		return err
	}
	d.SecurityCode = code
	return nil
}

// Fingerprint derives a stable identifier for correlating retries and
// journal entries with a submission, independent of the CDC (which requires
// a security code the caller may not have generated yet). It is stable
// across retries of the exact same document and changes if the issuer,
// timbrado, sequence, or issuance timestamp changes.
func (d *Document) Fingerprint() string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%d",
		d.IssuerRUCBase, d.Establishment, d.Expedition, d.DocumentNumber,
		d.Timbrado.Number, d.IssuanceDate.UTC().Unix(),
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Violation is one structural or business-rule failure found by Validate.
// Kind groups related violations (e.g. "totals", "associated_document") for
// callers that want to render them by section; Path names the offending
// field.
type Violation struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Kind, v.Message, v.Path)
}

// amountTolerance is the maximum acceptable drift between a declared total
// and its recomputation from line items, in the currency's own units (so a
// 2-decimal-digit currency tolerates 0.01, PYG tolerates 1).
func amountTolerance(c types.Currency) decimal.Decimal {
	if c.DecimalDigits() == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.New(1, int32(-c.DecimalDigits()))
}

// maxIntegerDigits is the largest number of integer digits SET accepts in a
// monetary amount (spec §4.1).
const maxIntegerDigits = 15

// Validate checks d against every invariant in spec §4.1 and returns the
// full set of violations found. A nil/empty return means d is valid. kind
// dispatch lives in validateByKind; every other check applies uniformly.
func (d *Document) Validate() []Violation {
	var v []Violation

	if !d.Kind.IsValid() {
		v = append(v, Violation{"head", "kind", "unknown document kind"})
		return v // nothing else can be checked meaningfully without a kind
	}

	v = append(v, validateHead(d)...)
	v = append(v, validateItems(d)...)
	v = append(v, validateTotals(d)...)
	v = append(v, validateByKind(d)...)

	return v
}

func validateHead(d *Document) []Violation {
	var v []Violation

	if _, err := ruc.Parse(fmt.Sprintf("%s-%d", d.IssuerRUCBase, d.IssuerRUCCheck)); err != nil {
		v = append(v, Violation{"head", "issuer_ruc", err.Error()})
	}

	if len(d.Establishment) != 3 || len(d.Expedition) != 3 || len(d.DocumentNumber) != 7 {
		v = append(v, Violation{"head", "document_number", "document number must be NNN-NNN-NNNNNNN"})
	}
	if d.Establishment != d.Timbrado.Establishment || d.Expedition != d.Timbrado.Expedition {
		v = append(v, Violation{"head", "timbrado", "establishment/expedition must match the granted timbrado"})
	}
	seq := 0
	if _, err := fmt.Sscanf(d.DocumentNumber, "%d", &seq); err != nil || seq <= 0 {
		v = append(v, Violation{"head", "document_number", "document sequence must be a positive number"})
	}

	if d.IssuanceDate.IsZero() {
		v = append(v, Violation{"head", "issuance_date", "issuance timestamp is required"})
	} else if d.IssuanceDate.After(time.Now().In(Asuncion)) {
		v = append(v, Violation{"head", "issuance_date", "issuance timestamp cannot be in the future"})
	}

	if !d.Receiver.IsFinalConsumer && d.Receiver.RUC != "" {
		if _, err := ruc.Parse(d.Receiver.RUC); err != nil {
			v = append(v, Violation{"head", "receiver.ruc", err.Error()})
		}
	}

	return v
}

func validateItems(d *Document) []Violation {
	var v []Violation

	if len(d.Items) == 0 {
		v = append(v, Violation{"items", "items", "document must carry at least one line item"})
		return v
	}

	for i, li := range d.Items {
		path := fmt.Sprintf("items[%d]", i)
		if li.Quantity.LessThanOrEqual(decimal.Zero) {
			v = append(v, Violation{"items", path + ".quantity", "quantity must be greater than zero"})
		}
		if li.UnitPrice.LessThan(decimal.Zero) {
			v = append(v, Violation{"items", path + ".unit_price", "unit price cannot be negative"})
		}
		if !li.Iva.IsValid() {
			v = append(v, Violation{"items", path + ".iva", "unknown IVA affectation"})
		}
	}

	return v
}

func validateTotals(d *Document) []Violation {
	var v []Violation

	if !d.Totals.Currency.IsValid() {
		v = append(v, Violation{"totals", "totals.currency", "unknown currency"})
		return v
	}

	if d.Totals.Currency == types.PYG {
		if !d.Totals.ExchangeRate.IsZero() && !d.Totals.ExchangeRate.Equal(decimal.NewFromInt(1)) {
			v = append(v, Violation{"totals", "totals.exchange_rate", "PYG documents must not declare a non-unity exchange rate"})
		}
	} else if d.Totals.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		v = append(v, Violation{"totals", "totals.exchange_rate", "foreign-currency documents require a positive exchange rate"})
	}

	if d.Kind != types.RemissionNote {
		recomputed := ComputeTotals(d.Items, d.Totals.Currency, d.Totals.ExchangeRate)
		tol := amountTolerance(d.Totals.Currency)
		check := func(path string, declared, want decimal.Decimal) {
			if declared.Sub(want).Abs().GreaterThan(tol) {
				v = append(v, Violation{"totals", path, fmt.Sprintf("declared %s does not match computed %s", declared, want)})
			}
		}
		check("totals.exempt_subtotal", d.Totals.ExemptSubtotal, recomputed.ExemptSubtotal)
		check("totals.subtotal_5", d.Totals.Subtotal5, recomputed.Subtotal5)
		check("totals.subtotal_10", d.Totals.Subtotal10, recomputed.Subtotal10)
		check("totals.iva_5_total", d.Totals.Iva5Total, recomputed.Iva5Total)
		check("totals.iva_10_total", d.Totals.Iva10Total, recomputed.Iva10Total)
		check("totals.subtotal", d.Totals.Subtotal, recomputed.Subtotal)
		check("totals.total", d.Totals.Total, recomputed.Total)
	}

	if d.Totals.Total.Exponent() < -int32(d.Totals.Currency.DecimalDigits()) {
		v = append(v, Violation{"totals", "totals.total", "total carries more fractional digits than the currency allows"})
	}

	integerDigits := len(d.Totals.Total.Truncate(0).Abs().String())
	if integerDigits > maxIntegerDigits {
		v = append(v, Violation{"totals", "totals.total", "total exceeds the maximum integer digit count"})
	}

	return v
}

// validateByKind dispatches to the per-kind handler table (spec §9's
// tagged-alternative pattern): one small function per document kind rather
// than a type hierarchy.
var kindValidators = map[types.DocumentKind]func(*Document) []Violation{
	types.Invoice:       func(*Document) []Violation { return nil },
	types.AutoInvoice:   validateAutoInvoice,
	types.CreditNote:    validateAssociatedDocumentKind,
	types.DebitNote:     validateAssociatedDocumentKind,
	types.RemissionNote: validateRemissionNote,
}

func validateByKind(d *Document) []Violation {
	if fn, ok := kindValidators[d.Kind]; ok {
		return fn(d)
	}
	return []Violation{{"head", "kind", "no validator registered for this document kind"}}
}

func validateAutoInvoice(d *Document) []Violation {
	var v []Violation
	receiver, err := ruc.Parse(d.Receiver.RUC)
	if err != nil || receiver.Base != d.IssuerRUCBase {
		v = append(v, Violation{"auto_invoice", "receiver.ruc", "auto-invoice issuer and receiver RUC must match"})
	}
	if d.ForeignSeller == nil {
		v = append(v, Violation{"auto_invoice", "foreign_seller", "auto-invoice requires a foreign seller record"})
	} else if d.ForeignSeller.Name == "" || d.ForeignSeller.Country == "" {
		v = append(v, Violation{"auto_invoice", "foreign_seller", "foreign seller name and country are required"})
	}
	return v
}

func validateAssociatedDocumentKind(d *Document) []Violation {
	var v []Violation
	if d.AssociatedDocument == nil {
		v = append(v, Violation{"associated_document", "associated_document", "credit/debit notes require an associated document"})
		return v
	}
	if err := cdc.Validate(d.AssociatedDocument.CDC); err != nil {
		v = append(v, Violation{"associated_document", "associated_document.cdc", err.Error()})
	}
	if !d.AssociatedDocument.IssuanceDate.Before(d.IssuanceDate) {
		v = append(v, Violation{"associated_document", "associated_document.issuance_date", "associated document must have been issued strictly before this one"})
	}
	return v
}

func validateRemissionNote(d *Document) []Violation {
	var v []Violation
	if !d.Totals.Total.IsZero() {
		v = append(v, Violation{"remission_note", "totals.total", "remission notes must declare zero totals"})
	}
	if d.Transport == nil {
		v = append(v, Violation{"remission_note", "transport", "remission note requires a transport record"})
		return v
	}
	if len(d.Transport.Vehicles) == 0 {
		v = append(v, Violation{"remission_note", "transport.vehicles", "transport record requires at least one vehicle and driver"})
	}
	for i, veh := range d.Transport.Vehicles {
		path := fmt.Sprintf("transport.vehicles[%d]", i)
		if veh.Plate == "" {
			v = append(v, Violation{"remission_note", path + ".plate", "vehicle plate is required"})
		}
		if veh.DriverName == "" {
			v = append(v, Violation{"remission_note", path + ".driver_name", "driver name is required"})
		}
	}
	if d.Transport.StartAddress == (Address{}) || d.Transport.EndAddress == (Address{}) {
		v = append(v, Violation{"remission_note", "transport", "both start and end addresses are required"})
	}
	return v
}

// newHead builds the shared head struct shared by every constructor below.
func newHead(kind types.DocumentKind, issuerRUC string, est, exp, num string, issuance time.Time, timbrado Timbrado, receiver Receiver, items []LineItem, currency types.Currency, exchangeRate decimal.Decimal) (*Document, error) {
	r, err := ruc.Parse(issuerRUC)
	if err != nil {
		return nil, err
	}
	return &Document{
		Kind:           kind,
		IssuerRUCBase:  r.Base,
		IssuerRUCCheck: r.Check,
		TaxpayerType:   cdc.LegalEntity,
		Establishment:  est,
		Expedition:     exp,
		DocumentNumber: num,
		IssuanceDate:   issuance,
		Emission:       types.Normal,
		Timbrado:       timbrado,
		Receiver:       receiver,
		Items:          items,
		Totals:         ComputeTotals(items, currency, exchangeRate),
	}, nil
}

// NewInvoice builds an ordinary sale document (FE).
func NewInvoice(issuerRUC, est, exp, num string, issuance time.Time, timbrado Timbrado, receiver Receiver, items []LineItem, currency types.Currency, exchangeRate decimal.Decimal) (*Document, error) {
	return newHead(types.Invoice, issuerRUC, est, exp, num, issuance, timbrado, receiver, items, currency, exchangeRate)
}

// NewAutoInvoice builds an importer self-issued document (AFE), attaching
// the required foreign-seller record.
func NewAutoInvoice(issuerRUC, est, exp, num string, issuance time.Time, timbrado Timbrado, items []LineItem, currency types.Currency, exchangeRate decimal.Decimal, seller ForeignSeller) (*Document, error) {
	receiver := Receiver{RUC: issuerRUC, IsFinalConsumer: false}
	d, err := newHead(types.AutoInvoice, issuerRUC, est, exp, num, issuance, timbrado, receiver, items, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	d.ForeignSeller = &seller
	return d, nil
}

// NewCreditNote builds a credit note (NCE) referencing an earlier document.
func NewCreditNote(issuerRUC, est, exp, num string, issuance time.Time, timbrado Timbrado, receiver Receiver, items []LineItem, currency types.Currency, exchangeRate decimal.Decimal, associated AssociatedDocument) (*Document, error) {
	d, err := newHead(types.CreditNote, issuerRUC, est, exp, num, issuance, timbrado, receiver, items, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	d.AssociatedDocument = &associated
	return d, nil
}

// NewDebitNote builds a debit note (NDE) referencing an earlier document.
func NewDebitNote(issuerRUC, est, exp, num string, issuance time.Time, timbrado Timbrado, receiver Receiver, items []LineItem, currency types.Currency, exchangeRate decimal.Decimal, associated AssociatedDocument) (*Document, error) {
	d, err := newHead(types.DebitNote, issuerRUC, est, exp, num, issuance, timbrado, receiver, items, currency, exchangeRate)
	if err != nil {
		return nil, err
	}
	d.AssociatedDocument = &associated
	return d, nil
}

// NewRemissionNote builds a goods-transport document (NRE) with zero
// commercial totals and the required transport record.
func NewRemissionNote(issuerRUC, est, exp, num string, issuance time.Time, timbrado Timbrado, receiver Receiver, items []LineItem, transport TransportRecord) (*Document, error) {
	d, err := newHead(types.RemissionNote, issuerRUC, est, exp, num, issuance, timbrado, receiver, items, types.PYG, decimal.Zero)
	if err != nil {
		return nil, err
	}
	d.Totals = Totals{Currency: types.PYG}
	d.Transport = &transport
	return d, nil
}
