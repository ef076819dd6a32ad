// Package webservices resolves the SIFEN SOAP endpoint for each of the
// four operations spec §4.7 names, keyed by environment rather than by
// Brazilian state (SIFEN is a single national service, so the teacher's
// UF-keyed resolver.Resolver/GetWebserviceURL table collapses to a flat
// environment lookup). Grounded on the teacher's webservices package for
// the shape of the idea — "a small static table mapping a key to a URL +
// SOAPAction" — not its content, which encoded 27 Brazilian UF codes this
// module has no use for.
package webservices

import (
	"fmt"

	"github.com/gaxoblanco/sifen-go/errors"
	"github.com/gaxoblanco/sifen-go/types"
)

// Operation names one of the four SIFEN SOAP operations spec §4.7 defines.
type Operation string

const (
	SendOne          Operation = "send-single"
	SendBatch        Operation = "send-batch"
	QueryByCDC       Operation = "query-by-cdc"
	QueryBatchStatus Operation = "query-batch-status"
)

// Endpoint is a resolved SOAP target: the URL to POST to and the
// SOAPAction header value the operation expects.
type Endpoint struct {
	URL        string
	SOAPAction string
}

const (
	testBase = "https://sifen-test.set.gov.py/de/ws"
	prodBase = "https://sifen.set.gov.py/de/ws"
)

var paths = map[Operation]string{
	SendOne:          "/sync/ws/sync-services.wsdl",
	SendBatch:        "/async/ws/async-services.wsdl",
	QueryByCDC:       "/consultas/ws/consulta-services.wsdl",
	QueryBatchStatus: "/consultas/ws/consulta-lote-services.wsdl",
}

var soapActions = map[Operation]string{
	SendOne:          "http://ekuatia.set.gov.py/sifen/xsd/rSiRecepDE",
	SendBatch:        "http://ekuatia.set.gov.py/sifen/xsd/rSiRecepLoteDE",
	QueryByCDC:       "http://ekuatia.set.gov.py/sifen/xsd/rSiConsDE",
	QueryBatchStatus: "http://ekuatia.set.gov.py/sifen/xsd/rSiConsLoteDE",
}

// Resolve returns the endpoint for op in env.
func Resolve(env types.Environment, op Operation) (Endpoint, error) {
	path, ok := paths[op]
	if !ok {
		return Endpoint{}, errors.NewConfigError("unknown SIFEN operation", "operation", string(op))
	}

	var base string
	switch env {
	case types.Test:
		base = testBase
	case types.Production:
		base = prodBase
	default:
		return Endpoint{}, errors.NewConfigError("unknown environment", "environment", env)
	}

	return Endpoint{
		URL:        fmt.Sprintf("%s%s", base, path),
		SOAPAction: soapActions[op],
	}, nil
}
