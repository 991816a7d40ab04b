package tariff

import "strings"

// CategoryFields carries the three tier-bearing fields read from a visit or
// patient record. Zero values mean "not set".
type CategoryFields struct {
	BillingCategory string
	PatientType     string
	InsuranceType   string
}

// ResolveCategory derives the billing category for a visit. The priority
// order is a hard contract: visit billing category, visit patient type,
// visit insurance type, then the same three fields on the patient record,
// then PRIVATE. Changing this order changes which tariff every later
// computation uses, so it lives here and nowhere else.
func ResolveCategory(visit, patient CategoryFields) PatientCategory {
	fields := []string{
		visit.BillingCategory, visit.PatientType, visit.InsuranceType,
		patient.BillingCategory, patient.PatientType, patient.InsuranceType,
	}
	for _, f := range fields {
		if cat, ok := ParseCategory(f); ok {
			return cat
		}
	}
	return CategoryPrivate
}

// ParseCategory normalizes a free-text tier field to a PatientCategory.
// Unset or unrecognized values return ok=false so the caller can fall
// through to the next field in the priority order.
func ParseCategory(s string) (PatientCategory, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "private", "general", "self", "cash":
		return CategoryPrivate, true
	case "tpa", "insurance", "insured":
		return CategoryTPA, true
	case "cghs":
		return CategoryCGHS, true
	case "non_cghs":
		return CategoryNonCGHS, true
	case "nabh":
		return CategoryNABH, true
	case "non_nabh":
		return CategoryNonNABH, true
	default:
		return "", false
	}
}
