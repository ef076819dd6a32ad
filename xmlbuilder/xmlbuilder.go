// Package xmlbuilder assembles a document.Document into SET v150's modular
// XML shape (spec §4.3): rDE > DE > a fixed sequence of groups
// (gOpeDE, gTimb, gDatGralOpe, gDocAso, gDtipDE, gEmis, gDatRec, gCamItem*,
// gTotSub, gCamTrans, gCamGen). Group order is schema-significant, so the
// struct field order below IS the wire order — the same discipline the
// teacher's nfe/make.go uses (a struct tree walked by encoding/xml, not a
// DOM built element-by-element). Optional elements are plain nil pointers:
// encoding/xml omits a nil pointer field entirely, which is exactly the
// "omitted, not present-with-empty-value" behavior spec §4.3 requires.
package xmlbuilder

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/gaxoblanco/sifen-go/document"
	"github.com/gaxoblanco/sifen-go/errors"
	"github.com/gaxoblanco/sifen-go/types"
)

const (
	namespace = "http://ekuatia.set.gov.py/sifen/xsd"
	version   = "150"
)

type rDE struct {
	XMLName xml.Name  `xml:"rDE"`
	Xmlns   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	DE      deElement `xml:"DE"`
}

type deElement struct {
	Id string `xml:"Id,attr"`

	GOpeDE      gOpeDE       `xml:"gOpeDE"`
	GTimb       gTimb        `xml:"gTimb"`
	GDatGralOpe gDatGralOpe  `xml:"gDatGralOpe"`
	GDocAso     *gDocAso     `xml:"gDocAso"`
	GDtipDE     gDtipDE      `xml:"gDtipDE"`
	GEmis       gEmis        `xml:"gEmis"`
	GDatRec     gDatRec      `xml:"gDatRec"`
	GCamItem    []gCamItem   `xml:"gCamItem"`
	GTotSub     gTotSub      `xml:"gTotSub"`
	GCamTrans   *gCamTrans   `xml:"gCamTrans"`
	GCamGen     *gCamGen     `xml:"gCamGen"`
}

// gOpeDE carries the emission type and emission date; the document kind
// code (iTiDE) is carried in gTimb.
type gOpeDE struct {
	ITipEmi int `xml:"iTipEmi"` // emission type: 1 normal, 2 contingency
	DFecEm  string `xml:"dFecEm"`
}

type gTimb struct {
	ITiDE   int    `xml:"iTiDE"` // document kind code
	DNumTim string `xml:"dNumTim"`
	DEst    string `xml:"dEst"`
	DPunExp string `xml:"dPunExp"`
	DNumDoc string `xml:"dNumDoc"`
	DVigDesde string `xml:"dVigDesde,omitempty"`
	DVigHasta string `xml:"dVigHasta,omitempty"`
}

type gDatGralOpe struct {
	DFeEmiDE string `xml:"dFeEmiDE"`
}

// gDocAso is present only for credit/debit notes (NCE/NDE).
type gDocAso struct {
	CdCDERef   string `xml:"CdCDERef"`
	ITipDocAso int    `xml:"iTipDocAso"`
	DFeEmiDocAso string `xml:"dFeEmiDocAso"`
}

// gDtipDE holds exactly one kind-specific sub-record; every field but the
// one matching the document's kind is left nil and therefore omitted.
type gDtipDE struct {
	GCamFE  *gCamFE  `xml:"gCamFE"`
	GCamAE  *gCamAE  `xml:"gCamAE"`
	GCamNCE *gCamNCE `xml:"gCamNCE"`
	GCamNDE *gCamNDE `xml:"gCamNDE"`
	GCamNRE *gCamNRE `xml:"gCamNRE"`
}

type gCamFE struct {
	IIndPres int `xml:"iIndPres"`
}

type gCamAE struct {
	DNomVen  string `xml:"dNomVen"`
	CPaisVen string `xml:"cPaisVen"`
	DTipoIDVen string `xml:"dTipoIDVen,omitempty"`
	DNumIDVen  string `xml:"dNumIDVen,omitempty"`
	DDirProv   string `xml:"dDirProv,omitempty"`
}

type gCamNCE struct {
	IMotEmi int `xml:"iMotEmi"`
}

type gCamNDE struct {
	IMotEmi int `xml:"iMotEmi"`
}

type gCamNRE struct {
	IMotEmi int `xml:"iMotEmi"`
}

type gEmis struct {
	DRucEm  string `xml:"dRUCEm"`
	DDVEmi  int    `xml:"dDVEmi"`
	DNomEmi string `xml:"dNomEmi"`
}

type gDatRec struct {
	DRucRec  string `xml:"dRucRec,omitempty"`
	DNomRec  string `xml:"dNomRec"`
	INatRec  int    `xml:"iNatRec"` // 1 contributor, 2 final consumer
}

type gCamItem struct {
	DDesProSer string `xml:"dDesProSer"`
	DCantProSer string `xml:"dCantProSer"`
	DPUniProSer string `xml:"dPUniProSer"`
	DTotBruOpeItem string `xml:"dTotBruOpeItem"`
	ITiAfIVA int `xml:"iAfecIVA"`
	DBasGravIVA string `xml:"dBasGravIVA"`
	DLiqIVAItem string `xml:"dLiqIVAItem"`
}

type gTotSub struct {
	DSubExe string `xml:"dSubExe"`
	DSub5   string `xml:"dSub5"`
	DSub10  string `xml:"dSub10"`
	DIVA5   string `xml:"dIVA5"`
	DIVA10  string `xml:"dIVA10"`
	DTotOpe string `xml:"dTotOpe"`
	DTotGralOpe string `xml:"dTotGralOpe"`
}

// gCamTrans is present only for remission notes (NRE).
type gCamTrans struct {
	ITipTrans  string    `xml:"iTipTrans,omitempty"`
	DDirLocSal string    `xml:"dDirLocSal,omitempty"`
	DDirLocEnt string    `xml:"dDirLocEnt,omitempty"`
	GVehTras   []gVehTras `xml:"gVehTras"`
}

type gVehTras struct {
	DNumPla string `xml:"dNumPla"`
	DNomCho string `xml:"dNomCho"`
	DNumIDCho string `xml:"dNumIDCho,omitempty"`
}

type gCamGen struct {
	DInfAdic string `xml:"dInfAdic,omitempty"`
}

// Build assembles doc into the final modular XML document, with cdcValue
// bound as the DE element's Id attribute. UTF-8, no BOM, no indentation —
// the element text is produced exactly as SET expects it handed to the
// signer, which will canonicalize over these same bytes.
func Build(doc *document.Document, cdcValue string) ([]byte, error) {
	if doc == nil {
		return nil, errors.NewXMLError("cannot build XML for a nil document", "document", nil)
	}

	de := deElement{
		Id: cdcValue,
		GOpeDE: gOpeDE{
			ITipEmi: int(doc.Emission),
			DFecEm:  doc.IssuanceDate.Format("2006-01-02"),
		},
		GTimb: gTimb{
			ITiDE:     int(doc.Kind),
			DNumTim:   doc.Timbrado.Number,
			DEst:      doc.Establishment,
			DPunExp:   doc.Expedition,
			DNumDoc:   doc.DocumentNumber,
			DVigDesde: formatDateIfSet(doc.Timbrado.ValidFrom),
			DVigHasta: formatDateIfSet(doc.Timbrado.ValidTo),
		},
		GDatGralOpe: gDatGralOpe{
			DFeEmiDE: doc.IssuanceDate.Format("2006-01-02T15:04:05"),
		},
		GEmis: gEmis{
			DRucEm:  doc.IssuerRUCBase,
			DDVEmi:  doc.IssuerRUCCheck,
			DNomEmi: doc.IssuerName,
		},
		GDatRec: gDatRec{
			DRucRec: doc.Receiver.RUC,
			DNomRec: doc.Receiver.Name,
			INatRec: natRec(doc.Receiver.IsFinalConsumer),
		},
		GTotSub: gTotSub{
			DSubExe:     doc.Totals.ExemptSubtotal.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
			DSub5:       doc.Totals.Subtotal5.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
			DSub10:      doc.Totals.Subtotal10.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
			DIVA5:       doc.Totals.Iva5Total.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
			DIVA10:      doc.Totals.Iva10Total.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
			DTotOpe:     doc.Totals.Subtotal.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
			DTotGralOpe: doc.Totals.Total.StringFixed(int32(doc.Totals.Currency.DecimalDigits())),
		},
		GCamGen: &gCamGen{DInfAdic: doc.AdditionalInfo},
	}

	if err := assignKindBlock(&de, doc); err != nil {
		return nil, err
	}

	digits := doc.Totals.Currency.DecimalDigits()
	for _, li := range doc.Items {
		de.GCamItem = append(de.GCamItem, gCamItem{
			DDesProSer:     li.Description,
			DCantProSer:    li.Quantity.String(),
			DPUniProSer:    li.UnitPrice.StringFixed(int32(digits)),
			DTotBruOpeItem: li.LineTotal().StringFixed(int32(digits)),
			ITiAfIVA:       int(li.Iva),
			DBasGravIVA:    li.TaxableBase().StringFixed(int32(digits)),
			DLiqIVAItem:    li.IvaAmount().StringFixed(int32(digits)),
		})
	}

	root := rDE{Xmlns: namespace, Version: version, DE: de}

	body, err := xml.Marshal(root)
	if err != nil {
		return nil, errors.NewXMLError("failed to marshal document XML", "", err)
	}

	out := append([]byte(xml.Header), body...)
	return out, nil
}

func assignKindBlock(de *deElement, doc *document.Document) error {
	switch doc.Kind {
	case types.Invoice:
		de.GDtipDE.GCamFE = &gCamFE{IIndPres: 1}
	case types.AutoInvoice:
		if doc.ForeignSeller == nil {
			return errors.NewXMLError("auto-invoice document is missing its foreign seller record", "foreign_seller", nil)
		}
		de.GDtipDE.GCamAE = &gCamAE{
			DNomVen:    doc.ForeignSeller.Name,
			CPaisVen:   doc.ForeignSeller.Country,
			DTipoIDVen: doc.ForeignSeller.DocumentType,
			DNumIDVen:  doc.ForeignSeller.DocumentNumber,
			DDirProv:   doc.ForeignSeller.TransactionLocation,
		}
	case types.CreditNote, types.DebitNote:
		if doc.AssociatedDocument == nil {
			return errors.NewXMLError("credit/debit note is missing its associated document", "associated_document", nil)
		}
		de.GDocAso = &gDocAso{
			CdCDERef:     doc.AssociatedDocument.CDC,
			ITipDocAso:   1,
			DFeEmiDocAso: doc.AssociatedDocument.IssuanceDate.Format("2006-01-02"),
		}
		if doc.Kind == types.CreditNote {
			de.GDtipDE.GCamNCE = &gCamNCE{IMotEmi: 1}
		} else {
			de.GDtipDE.GCamNDE = &gCamNDE{IMotEmi: 1}
		}
	case types.RemissionNote:
		if doc.Transport == nil {
			return errors.NewXMLError("remission note is missing its transport record", "transport", nil)
		}
		de.GDtipDE.GCamNRE = &gCamNRE{IMotEmi: 1}
		trans := &gCamTrans{
			ITipTrans:  doc.Transport.Mode,
			DDirLocSal: formatAddress(doc.Transport.StartAddress),
			DDirLocEnt: formatAddress(doc.Transport.EndAddress),
		}
		for _, veh := range doc.Transport.Vehicles {
			trans.GVehTras = append(trans.GVehTras, gVehTras{
				DNumPla:   veh.Plate,
				DNomCho:   veh.DriverName,
				DNumIDCho: veh.DriverDocument,
			})
		}
		de.GCamTrans = trans
	default:
		return errors.NewXMLError(fmt.Sprintf("unsupported document kind %d", int(doc.Kind)), "kind", int(doc.Kind))
	}
	return nil
}

func natRec(finalConsumer bool) int {
	if finalConsumer {
		return 2
	}
	return 1
}

func formatDateIfSet(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAddress(a document.Address) string {
	if a.Street == "" && a.City == "" {
		return ""
	}
	return fmt.Sprintf("%s, %s, %s", a.Street, a.City, a.Country)
}
