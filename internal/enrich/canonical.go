// Package enrich implements the interim → processed stage: reference joins,
// canonicalization and the derived aggregate tables.
package enrich

import "strings"

// districtSpellings maps portal spelling variants to the canonical district
// name. Canonicalization happens before any group-by, never after.
var districtSpellings = map[string]string{
	"Anugul":       "Angul",
	"Baleswar":     "Balasore",
	"Jagatsingpur": "Jagatsinghpur",
}

// CanonicalDistrict normalizes a district name: trims whitespace and folds
// known spelling variants.
func CanonicalDistrict(s string) string {
	s = strings.TrimSpace(s)
	if canonical, ok := districtSpellings[s]; ok {
		return canonical
	}
	return s
}

// RefactorSocialCategory collapses the reservation flags and the base social
// category into one label. Precedence: ORPHAN > GC > PWD > ES > EWS, then the
// base category folds to UR/SC/ST.
func RefactorSocialCategory(category string, orphan, gc, pwd, es, ews bool) string {
	switch {
	case orphan:
		return "ORPHAN"
	case gc:
		return "GC"
	case pwd:
		return "PWD"
	case es:
		return "ES"
	case ews:
		return "EWS"
	}
	category = strings.TrimSpace(category)
	switch {
	case category == "General" || category == "OBC/SEBC":
		return "UR"
	case strings.Contains(category, "SC"):
		return "SC"
	case strings.Contains(category, "ST"):
		return "ST"
	}
	return category
}
