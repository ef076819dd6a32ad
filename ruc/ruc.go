// Package ruc validates and formats Paraguay's RUC (Registro Único del
// Contribuyente) taxpayer identifier: eight base digits plus one check
// digit computed with Paraguay's modulo-11 variant.
package ruc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gaxoblanco/sifen-go/errors"
)

// factors are the modulo-11 weights applied right-to-left over the eight
// base digits (spec §3.2).
var factors = [8]int{2, 3, 4, 5, 6, 7, 2, 3}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// RUC is a validated, normalized RUC value: eight base digits and their
// check digit.
type RUC struct {
	Base    string // 8 digits
	Check   int    // 0-9; a remainder below 2 yields 0
	Display string // "XXXXXXXX-D" normalized presentation
}

// CheckDigit computes the modulo-11 check digit for an 8-digit RUC base
// using the factor sequence 2,3,4,5,6,7,2,3 applied right to left.
//
// Let r = sum mod 11. If r<2, DV=0, else DV=11-r.
func CheckDigit(base string) (int, error) {
	if len(base) != 8 || nonDigit.MatchString(base) {
		return 0, errors.NewValidationError("RUC base must be exactly 8 digits", "base", base)
	}

	sum := 0
	for i := 0; i < 8; i++ {
		digit := int(base[len(base)-1-i] - '0')
		sum += digit * factors[i]
	}
	r := sum % 11
	if r < 2 {
		return 0, nil
	}
	return 11 - r, nil
}

// Parse validates a RUC string in either "XXXXXXXX-D" or "XXXXXXXXD" form
// (dashes and spaces are stripped before parsing) and returns its
// normalized value.
func Parse(s string) (*RUC, error) {
	clean := strings.ReplaceAll(s, "-", "")
	clean = nonDigit.ReplaceAllString(clean, "")

	if len(clean) != 9 {
		return nil, errors.NewValidationError("RUC must have 8 base digits plus check digit", "ruc", s)
	}

	base := clean[:8]
	declared, err := strconv.Atoi(clean[8:9])
	if err != nil {
		return nil, errors.NewValidationError("RUC check digit must be numeric", "ruc", s)
	}

	expected, err := CheckDigit(base)
	if err != nil {
		return nil, err
	}
	if declared != expected {
		return nil, errors.NewValidationError(
			fmt.Sprintf("invalid RUC check digit: expected %d, got %d", expected, declared),
			"ruc", s,
		)
	}

	return &RUC{
		Base:    base,
		Check:   expected,
		Display: fmt.Sprintf("%s-%d", base, expected),
	}, nil
}

// IsValid reports whether s is a well-formed RUC with a correct check digit.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Format renders an 8-digit base with its computed check digit as
// "XXXXXXXX-D", computing the check digit if it is not already known.
func Format(base string) (string, error) {
	dv, err := CheckDigit(base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", base, dv), nil
}
