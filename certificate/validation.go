// Package certificate provides trusted-chain certificate validation functions
// for SIFEN e-invoicing signing certificates.
package certificate

import (
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/gaxoblanco/sifen-go/errors"
)

// ValidateTrustedCertificateChain validates a certificate chain for structural
// correctness: non-expired links, and each intermediate signed by the next
// certificate up the chain. It does not pin to a specific national root —
// SIFEN accepts certificates from any certifier authorized by Paraguay's
// regulator — and checks the chain against no trust anchor at all; anchoring
// to GetTrustedRootCertificates happens in SignatureValidator, not here.
func ValidateTrustedCertificateChain(chain []*x509.Certificate) error {
	if len(chain) == 0 {
		return errors.NewValidationError("certificate chain cannot be empty", "chain", "")
	}

	for i, cert := range chain {
		if time.Now().After(cert.NotAfter) {
			return errors.NewCertificateError(fmt.Sprintf("certificate %d in chain is expired", i), nil)
		}
		if time.Now().Before(cert.NotBefore) {
			return errors.NewCertificateError(fmt.Sprintf("certificate %d in chain is not yet valid", i), nil)
		}
		if i < len(chain)-1 {
			if err := cert.CheckSignatureFrom(chain[i+1]); err != nil {
				return errors.NewCertificateError(fmt.Sprintf("certificate %d is not signed by certificate %d", i, i+1), err)
			}
		}
	}

	return validateSigningRequirements(chain[0])
}

// validateSigningRequirements checks the key usage flags a SIFEN signing
// certificate must carry.
func validateSigningRequirements(cert *x509.Certificate) error {
	if cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return errors.NewCertificateError("certificate must have digital signature key usage", nil)
	}

	hasClientAuth := false
	hasEmailProtection := false
	for _, eku := range cert.ExtKeyUsage {
		switch eku {
		case x509.ExtKeyUsageClientAuth:
			hasClientAuth = true
		case x509.ExtKeyUsageEmailProtection:
			hasEmailProtection = true
		}
	}

	if !hasClientAuth && !hasEmailProtection {
		return errors.NewCertificateError("certificate must have client authentication or email protection extended key usage", nil)
	}

	return nil
}

// GetCertificateType returns the A1/A3 type of a certificate based on its
// key storage, not its issuer policy — SIFEN does not mandate a specific
// policy OID the way ICP-Brasil does, so this falls back to A1 unless the
// caller already knows otherwise from how it was loaded.
func GetCertificateType(cert *x509.Certificate) (CertificateType, error) {
	if cert == nil {
		return TypeA1, errors.NewValidationError("certificate cannot be nil", "certificate", "")
	}
	return TypeA1, nil
}

// ValidateForSigningUse validates that a certificate is usable to sign
// SIFEN documents: currently valid, not a CA certificate, with digital
// signature and client authentication key usage.
func ValidateForSigningUse(cert *x509.Certificate) error {
	if cert == nil {
		return errors.NewValidationError("certificate cannot be nil", "certificate", "")
	}

	now := time.Now()
	if now.Before(cert.NotBefore) {
		return errors.NewCertificateError("certificate is not yet valid", nil)
	}
	if now.After(cert.NotAfter) {
		return errors.NewCertificateError("certificate has expired", nil)
	}

	if cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return errors.NewCertificateError("certificate must have digital signature capability", nil)
	}

	if cert.IsCA {
		return errors.NewCertificateError("CA certificates cannot be used for document signing", nil)
	}

	hasClientAuth := false
	for _, eku := range cert.ExtKeyUsage {
		if eku == x509.ExtKeyUsageClientAuth {
			hasClientAuth = true
			break
		}
	}
	if !hasClientAuth {
		return errors.NewCertificateError("certificate must have client authentication extended key usage", nil)
	}

	return nil
}

// ExtractRUCFromCertificate pulls a Paraguay RUC (6-8 digits, a dash, then
// the check digit, e.g. "80012345-6") out of a certificate's common name, the way
// issuers typically embed it as "Name:RUC".
func ExtractRUCFromCertificate(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}

	cn := cert.Subject.CommonName
	if cn == "" {
		return ""
	}
	parts := strings.Split(cn, ":")
	if len(parts) < 2 {
		return ""
	}
	candidate := parts[len(parts)-1]
	if looksLikeRUC(candidate) {
		return candidate
	}
	return ""
}

func looksLikeRUC(s string) bool {
	dash := strings.Index(s, "-")
	if dash < 6 || dash > 8 || dash == len(s)-1 {
		return false
	}
	return isNumeric(s[:dash]) && isNumeric(s[dash+1:])
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// GetCertificateFingerprint returns the SHA-256 fingerprint of a certificate.
func GetCertificateFingerprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	return getCertificateFingerprint(cert)
}
