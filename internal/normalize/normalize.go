// Package normalize canonicalizes free-text identifiers extracted from
// documents so that noisy spellings of the same entity compare equal.
// Every function here is pure and total: arbitrary input, no errors.
package normalize

import "strings"

// legalSuffixes are legal-entity tokens stripped from company names.
// Matched as whole tokens only, after punctuation removal (which also folds
// the punctuated variant "L.L.C" into "LLC").
var legalSuffixes = map[string]bool{
	"INC":         true,
	"LLC":         true,
	"CORP":        true,
	"CO":          true,
	"LTD":         true,
	"CORPORATION": true,
	"PLLC":        true,
}

const punctuation = ".,/#!$%^&*;:{}=-_`~()"

// CompanyName canonicalizes a company name for comparison:
// uppercase, strip punctuation, collapse whitespace, drop legal-entity
// suffix tokens, trim. Idempotent: CompanyName(CompanyName(s)) == CompanyName(s).
func CompanyName(raw string) string {
	upper := strings.ToUpper(raw)

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if legalSuffixes[tok] {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// AccountNumber strips every non-digit character from an account number.
// Empty output means the input carried no digits; callers must reject that
// before hashing.
func AccountNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskedNumber returns the display form of a normalized account number:
// "****" followed by the last four digits.
func MaskedNumber(digits string) string {
	if len(digits) <= 4 {
		return "****" + digits
	}
	return "****" + digits[len(digits)-4:]
}
