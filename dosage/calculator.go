// Package dosage computes weight-based dosage recommendations from an
// explicit per-drug rule table.
package dosage

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/MLotfy88/Medi-Tempo/entities"
)

const (
	// PoundsToKilograms converts a weight in pounds to kilograms
	PoundsToKilograms = 0.453592

	// DefaultRuleName identifies results produced by the fallback rule
	DefaultRuleName = "default"

	doseUnit = "mg"
)

// Calculator resolves a rule for a medication and applies it to a weight
type Calculator struct {
	rules RuleSet
	index map[string]int
}

// NewCalculator builds a calculator over a validated rule table
func NewCalculator(rules RuleSet) *Calculator {
	index := make(map[string]int)
	for i, r := range rules.Rules {
		index[r.Drug] = i
		for _, alias := range r.Aliases {
			index[alias] = i
		}
	}
	return &Calculator{rules: rules, index: index}
}

// NewDefaultCalculator builds a calculator over the built-in rule table
func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultRules())
}

// ToKilograms converts a weight expressed in unit to kilograms
func ToKilograms(weight float64, unit entities.WeightUnit) float64 {
	if unit == entities.Pounds {
		return weight * PoundsToKilograms
	}
	return weight
}

// Calculate returns the recommended single dose for req. It assumes a
// positive, finite weight: validation belongs to the caller.
func (c *Calculator) Calculate(req entities.DosageRequest) entities.DosageResult {
	rule := c.Resolve(req.MedicationName, req.ActiveIngredient)
	weightKg := ToKilograms(req.Weight, req.Unit)

	amount := int(math.Round(weightKg * rule.MgPerKg))

	result := entities.DosageResult{
		DosageAmount: amount,
		Unit:         doseUnit,
		Frequency:    rule.Frequency,
		IsSafe:       true,
		Rule:         rule.Drug,
	}

	if rule.MaxSingleDoseMg > 0 && amount > rule.MaxSingleDoseMg {
		result.IsSafe = false
		result.Warning = fmt.Sprintf("Dose exceeds recommended maximum of %dmg", rule.MaxSingleDoseMg)
	}

	return result
}

// Resolve picks the rule for a medication. The active ingredient wins when
// it names a known drug; otherwise the first rule, in table order, whose key
// equals a word of the name applies. Unknown medications get the default.
func (c *Calculator) Resolve(name, activeIngredient string) Rule {
	if i, ok := c.index[normalize(activeIngredient)]; ok {
		return c.rules.Rules[i]
	}

	best := -1
	for _, word := range words(name) {
		if i, ok := c.index[word]; ok && (best == -1 || i < best) {
			best = i
		}
	}
	if best >= 0 {
		return c.rules.Rules[best]
	}

	return c.rules.Default
}

// words splits a medication name into lower-case letter runs, so that
// "Paracetamol 500mg" yields "paracetamol" and "mg".
func words(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
