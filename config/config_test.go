package config

import (
	"encoding/json"
	"testing"

	"github.com/gaxoblanco/sifen-go/types"
)

func validConfig() *Config {
	cfg := Default(types.Test)
	cfg.RucEmisor = "80000001"
	cfg.Certificate = CertificateConfig{Path: "issuer.p12", Password: "secret"}
	return cfg
}

func TestDefaultIsValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected default+required fields to validate, got: %v", err)
	}
}

func TestValidateRejectsMissingRuc(t *testing.T) {
	cfg := validConfig()
	cfg.RucEmisor = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing ruc_emisor")
	}
}

func TestValidateRejectsMissingCertificate(t *testing.T) {
	cfg := validConfig()
	cfg.Certificate = CertificateConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing certificate")
	}
}

func TestValidateRejectsTLSOffInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = types.Production
	cfg.VerifyTLS = false
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for verify_tls=false in production")
	}
}

func TestValidateAllowsTLSOffInTest(t *testing.T) {
	cfg := validConfig()
	cfg.VerifyTLS = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("verify_tls=false should be allowed in test, got: %v", err)
	}
}

func TestValidateRejectsOutOfRangeRetries(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = 11
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_retries > 10")
	}
}

func TestParseJSONRoundTrip(t *testing.T) {
	cfg := validConfig()
	// ToJSON blanks the password and ParseJSON requires one, so the full
	// config is marshalled directly for the round trip.
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}

	parsed, err := ParseJSON(data)
	if err != nil {
		t.Fatalf("ParseJSON error: %v", err)
	}
	if parsed.RucEmisor != cfg.RucEmisor {
		t.Errorf("RucEmisor = %q, want %q", parsed.RucEmisor, cfg.RucEmisor)
	}
}

func TestToJSONRedactsPassword(t *testing.T) {
	cfg := validConfig()
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON error: %v", err)
	}
	if contains(data, []byte(cfg.Certificate.Password)) {
		t.Error("ToJSON should not include the certificate password")
	}
}

func contains(haystack, needle []byte) bool {
	return len(needle) > 0 && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
