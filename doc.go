/*
Package sifen provides a client library for Paraguay's SIFEN electronic
invoicing service (Sistema Integrado de Facturación Electrónica Nacional).

It builds typed SET v150 documents (invoice, auto-invoice, credit note, debit
note, remission note), assembles and canonicalizes their XML representation,
signs them with an enveloped XMLDSig signature, and transports them to the
SET endpoint with the retry, rate-limit, and error-classification semantics
the service contract requires.

Basic usage:

	cfg := config.Default(types.Test)
	cfg.RucEmisor = "80000001"
	cfg.Certificate.Path = "issuer.p12"
	cfg.Certificate.Password = "secret"

	s, err := sender.New(cfg)
	if err != nil {
		log.Fatal(err)
	}

	result, err := s.SendOne(ctx, invoice)

See the sub-packages for each component: document, xmlbuilder, mapper,
validation, certificate, soap, webservices, response, retry, ratelimit,
sender, and mockset.
*/
package sifen
