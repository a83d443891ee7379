// Package personalid implements the PersonalId value type (§3) and the BSN
// 11-proef validator carried over from the original Python implementation's
// app/bsn.py, which the distilled core spec only documents in the glossary.
package personalid

import (
	"fmt"
	"strings"

	"github.com/minvws/nl-rdo-prs-go/internal/prserr"
)

// allowedIDTypes enumerates the id_type values this deployment accepts.
var allowedIDTypes = map[string]bool{"bsn": true}

// PersonalId is the immutable (country_code, id_type, id_number) triple.
type PersonalId struct {
	countryCode string
	idType      string
	idNumber    string
}

// New validates and constructs a PersonalId. The `|` character is rejected
// anywhere in country_code, id_type or id_number since it is the field
// separator used in the canonical subject string.
func New(countryCode, idType, idNumber string) (PersonalId, error) {
	if len(countryCode) != 2 || !isAlpha(countryCode) {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "country_code must be a 2-letter ISO country code")
	}
	lowerType := strings.ToLower(idType)
	if !allowedIDTypes[lowerType] {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "id_type must be one of the supported identifier types")
	}
	idNumber = strings.TrimSpace(idNumber)
	if idNumber == "" {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "id_number must not be empty")
	}
	if strings.Contains(countryCode, "|") || strings.Contains(lowerType, "|") || strings.Contains(idNumber, "|") {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "personal id fields must not contain '|'")
	}
	if lowerType == "bsn" && !ValidateBSN(idNumber) {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "id_number is not a valid BSN")
	}

	return PersonalId{
		countryCode: strings.ToUpper(countryCode),
		idType:      lowerType,
		idNumber:    idNumber,
	}, nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// CountryCode returns the 2-letter ISO country code.
func (p PersonalId) CountryCode() string { return p.countryCode }

// IDType returns the identifier type.
func (p PersonalId) IDType() string { return p.idType }

// IDNumber returns the raw identifier value.
func (p PersonalId) IDNumber() string { return p.idNumber }

// String returns the canonical "CC:type:value" form used as a pseudonym
// input and as the wire representation of the identifier.
func (p PersonalId) String() string {
	return fmt.Sprintf("%s:%s:%s", p.countryCode, p.idType, p.idNumber)
}

// FromString parses the canonical "CC:type:value" form.
func FromString(s string) (PersonalId, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "invalid personal id format")
	}
	return New(parts[0], parts[1], parts[2])
}

// AsDict mirrors the original landCode/type/value JSON shape, for callers
// that serialize PersonalId as a structured object rather than a string.
func (p PersonalId) AsDict() map[string]string {
	return map[string]string{
		"landCode": p.countryCode,
		"type":     p.idType,
		"value":    p.idNumber,
	}
}

// FromDict is the inverse of AsDict.
func FromDict(d map[string]string) (PersonalId, error) {
	cc, ok1 := d["landCode"]
	t, ok2 := d["type"]
	v, ok3 := d["value"]
	if !ok1 || !ok2 || !ok3 {
		return PersonalId{}, prserr.New(prserr.InvalidInput, "missing key in personal id object")
	}
	return New(cc, t, v)
}

// ValidateBSN applies the Dutch 11-proef to a 9-digit BSN: with digits
// d1..d9, (9*d1+8*d2+...+2*d8-d9) mod 11 == 0.
func ValidateBSN(bsn string) bool {
	if len(bsn) != 9 {
		return false
	}
	digits := make([]int, 9)
	for i, r := range bsn {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
	}
	total := 0
	for i := 0; i < 8; i++ {
		total += digits[i] * (9 - i)
	}
	total -= digits[8]
	return total%11 == 0
}
