// Package response parses SET SOAP bodies into a normalized Response and
// classifies SET error codes per spec §4.8. The teacher's closest analogue,
// factories.Parser, imports TXT layouts from refs/sped-nfe — a Brazilian
// format with no SIFEN equivalent — so this package is grounded on the
// shape of soap.SOAPResponse (the raw Body string this package consumes)
// and on types.ClassifySETCode/types.DocumentStatus, which already carry
// the code-range table this package applies.
package response

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/gaxoblanco/sifen-go/errors"
	"github.com/gaxoblanco/sifen-go/types"
)

// Detail is one typed sub-code SET attached to a rejection (spec §4.8's
// errors[] field).
type Detail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the normalized shape every SET SOAP body is parsed into,
// regardless of which of the four operations produced it.
type Response struct {
	Success        bool                 `json:"success"`
	Code           int                  `json:"code"`
	Message        string               `json:"message"`
	DocumentStatus types.DocumentStatus `json:"document_status"`
	Category       types.ErrorCategory  `json:"category"`
	CDC            string               `json:"cdc,omitempty"`
	ProtocolNumber string               `json:"protocol_number,omitempty"`
	Errors         []Detail             `json:"errors,omitempty"`
}

// gResProc is SET's per-document result block, repeated once per document
// inside a batch response and present exactly once inside a single-document
// response.
type gResProc struct {
	Id       string `xml:"Id"`
	DCodRes  string `xml:"dCodRes"`
	DMsgRes  string `xml:"dMsgRes"`
	DProtAut string `xml:"dProtAut"`
}

// Parse decodes a raw SET SOAP response body into a Response. body is
// soap.SOAPResponse.Body — already-read XML text, not a live stream.
//
// gResProc nests at a different depth under soap:Envelope/soap:Body
// depending on which of the four operations produced the body (a single
// send wraps one block directly, a batch status query wraps a list inside
// an extra level), so this walks tokens rather than decoding into a fixed
// struct shape: any element whose local name is "gResProc" is collected,
// regardless of how deep it sits or what its parent is named.
func Parse(body string) (*Response, error) {
	results, err := findResultBlocks(body)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.NewXMLError("SET response contains no gResProc result block", "gResProc", nil)
	}

	primary := results[0]
	code, err := types.ParseSETCode(primary.DCodRes)
	if err != nil {
		return nil, errors.NewXMLError("SET response carries a malformed result code", "dCodRes", err)
	}

	resp := &Response{
		Code:           code,
		Message:        strings.TrimSpace(primary.DMsgRes),
		Category:       types.ClassifySETCode(code),
		CDC:            primary.Id,
		ProtocolNumber: primary.DProtAut,
	}
	resp.Success = resp.Category == types.CategorySuccess
	resp.DocumentStatus = statusForCode(code, resp.Category)

	for _, r := range results[1:] {
		subCode, err := types.ParseSETCode(r.DCodRes)
		if err != nil {
			continue
		}
		resp.Errors = append(resp.Errors, Detail{Code: subCode, Message: strings.TrimSpace(r.DMsgRes)})
	}

	return resp, nil
}

// findResultBlocks scans body for every gResProc element, decoding each one
// independently via DecodeElement once its start tag is found.
func findResultBlocks(body string) ([]gResProc, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var results []gResProc
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewXMLError("SET response is not well-formed XML", "", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "gResProc" {
			continue
		}
		var block gResProc
		if err := dec.DecodeElement(&block, &start); err != nil {
			return nil, errors.NewXMLError("malformed gResProc block in SET response", "gResProc", err)
		}
		results = append(results, block)
	}
	return results, nil
}

// statusForCode maps a classified SET code to the document status taxonomy
// (spec §4.8). Only code 260 is a literal SET code in the spec's table; the
// remaining statuses (pending, processing, extemporaneous, cancelled,
// annulled) are outcomes the sender assigns from context the bare code
// doesn't carry (a pending query, the contingency admission window,
// a cancellation request) rather than from the classifier table, so this
// function only ever returns accepted/rejected/technical-error — callers
// that need the richer statuses set them explicitly (see sender).
func statusForCode(code int, category types.ErrorCategory) types.DocumentStatus {
	switch category {
	case types.CategorySuccess:
		return types.StatusAccepted
	case types.CategoryCommunication, types.CategoryUnavailable, types.CategoryThrottleRUC, types.CategoryThrottleIP:
		return types.StatusTechnicalError
	case types.CategoryUnknown:
		return types.StatusTechnicalError
	default:
		return types.StatusRejected
	}
}

// ToError converts a non-success Response into the structured *errors.NFError
// the retry manager and sender operate on, classified per spec §7.
func (r *Response) ToError() *errors.NFError {
	if r.Success {
		return nil
	}
	switch r.Category {
	case types.CategoryCommunication, types.CategoryUnavailable:
		return errors.NewTransientError(r.Message, rawCode(r.Code), nil)
	case types.CategoryThrottleRUC, types.CategoryThrottleIP:
		return errors.NewThrottleError(r.Message, rawCode(r.Code))
	case types.CategorySigning, types.CategoryCDCStructure, types.CategoryTimbrado,
		types.CategoryIssuerRUC, types.CategoryDates, types.CategoryAmounts:
		return errors.NewRejectedError(r.Message, rawCode(r.Code))
	default:
		return errors.NewRejectedError(r.Message, rawCode(r.Code))
	}
}

func rawCode(code int) string {
	return strconv.Itoa(code)
}
