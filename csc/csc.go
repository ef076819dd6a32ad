// Package csc generates the Código de Seguridad del Contribuyente (CSC), the
// 9-digit per-document security code embedded in the CDC.
package csc

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/gaxoblanco/sifen-go/errors"
)

const (
	// Digits is the fixed width of a CSC.
	Digits = 9
	// Max is the inclusive upper bound of the uniform sampling range.
	Max = 999_999_999
)

// Generate returns a cryptographically random CSC uniformly sampled from
// [1, 999_999_999], zero-padded to 9 digits.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(Max))
	if err != nil {
		return "", errors.NewSystemError("failed to generate security code", err)
	}
	// n is in [0, Max-1]; shift to [1, Max].
	value := n.Int64() + 1
	return fmt.Sprintf("%0*d", Digits, value), nil
}

// IsValid reports whether s is a well-formed 9-digit CSC within range.
func IsValid(s string) bool {
	if len(s) != Digits {
		return false
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return false
	}
	return n >= 1 && n <= Max
}
