// Package query provides the search and filter predicates run over the
// in-memory medication catalog. Every function is pure: the input slice is
// never modified and the relative order of records is preserved.
package query

import (
	"fmt"
	"strings"

	"github.com/MLotfy88/Medi-Tempo/entities"
)

// SearchMode selects the field a search runs against
type SearchMode string

const (
	ModeBrand      SearchMode = "brand"
	ModeIngredient SearchMode = "ingredient"
)

// Price bucket, availability and category tokens understood by Filter
const (
	PriceLow    = "Low"
	PriceMedium = "Medium"
	PriceHigh   = "High"

	InStock          = "In Stock"
	PrescriptionOnly = "Prescription Only"
	OverTheCounter   = "Over the Counter"

	lowPriceCeiling    = 15.0
	mediumPriceCeiling = 25.0

	prescriptionCategory = "antibiotic"
)

// ParseSearchMode maps user input to a SearchMode. An empty string selects
// the brand mode.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeBrand):
		return ModeBrand, nil
	case string(ModeIngredient):
		return ModeIngredient, nil
	default:
		return "", fmt.Errorf("invalid search mode %q: must be %q or %q", s, ModeBrand, ModeIngredient)
	}
}

// Search returns the records whose name (brand mode) or active ingredient
// (ingredient mode) contains q, ignoring case. An empty q returns records
// unchanged.
func Search(records []entities.Medication, q string, mode SearchMode) []entities.Medication {
	if q == "" {
		return records
	}

	needle := strings.ToLower(q)
	results := make([]entities.Medication, 0)

	for _, med := range records {
		field := med.Name
		if mode == ModeIngredient {
			field = med.ActiveIngredient
		}
		if strings.Contains(strings.ToLower(field), needle) {
			results = append(results, med)
		}
	}

	return results
}

// Filter returns the records matching every non-empty dimension of c.
// Within a dimension a single matching token is enough.
func Filter(records []entities.Medication, c entities.FilterCriteria) []entities.Medication {
	if c.IsEmpty() {
		return records
	}

	categories := lowerAll(c.Category)
	results := make([]entities.Medication, 0)

	for _, med := range records {
		if len(c.Price) > 0 && !matchesPrice(med, c.Price) {
			continue
		}
		if len(categories) > 0 && !matchesCategory(med, categories) {
			continue
		}
		if len(c.Availability) > 0 && !matchesAvailability(med, c.Availability) {
			continue
		}
		results = append(results, med)
	}

	return results
}

// PriceBucket returns the bucket a price falls into
func PriceBucket(price float64) string {
	switch {
	case price < lowPriceCeiling:
		return PriceLow
	case price < mediumPriceCeiling:
		return PriceMedium
	default:
		return PriceHigh
	}
}

func matchesPrice(med entities.Medication, buckets []string) bool {
	bucket := PriceBucket(med.Price)
	for _, b := range buckets {
		if b == bucket {
			return true
		}
	}
	return false
}

func matchesCategory(med entities.Medication, categories []string) bool {
	category := strings.ToLower(med.Category)
	for _, c := range categories {
		if strings.Contains(category, c) {
			return true
		}
	}
	return false
}

// matchesAvailability keeps the catalog's historical heuristic: prescription
// status is inferred from an antibiotic category, not from a record field.
func matchesAvailability(med entities.Medication, tokens []string) bool {
	antibiotic := strings.Contains(strings.ToLower(med.Category), prescriptionCategory)
	for _, t := range tokens {
		switch t {
		case InStock:
			if med.IsAvailable {
				return true
			}
		case PrescriptionOnly:
			if antibiotic {
				return true
			}
		case OverTheCounter:
			if !antibiotic {
				return true
			}
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
