// Package validation checks user input at the API and CLI boundary and
// reports on the quality of the catalog.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/MLotfy88/Medi-Tempo/dosage"
	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/logging"
)

// MaxWeightKg is the heaviest accepted patient weight
const MaxWeightKg = 650.0

var (
	// Letters of any script, digits, spaces and the punctuation found in
	// medication names ("Co-amoxiclav 500/125mg", "Tylenol (Paracetamol) 500mg")
	inputRegex = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\s\-\.\+',/%()\[\]]+$`)

	idRegex = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "eval(", "expression(", "url(",
		"@import",
		// SQL injection
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "exec(",
		// Command injection
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection
		"{$ne:", "{$gt:", "{$where:", "{$regex:",
	}
)

// DataValidatorImpl implements interfaces.DataValidator
type DataValidatorImpl struct{}

var _ interfaces.DataValidator = (*DataValidatorImpl)(nil)

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateInput validates free-text search input
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > 50 {
		return fmt.Errorf("input too long: maximum 50 characters")
	}

	if len(strings.Fields(input)) > 6 {
		return fmt.Errorf("search query too complex: maximum 6 words allowed")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and - . + ' , / %% ( ) [ ] are allowed")
	}

	if hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateID validates a record identifier: catalog ids such as "1",
// "csv-3" or generated UUIDs
func (v *DataValidatorImpl) ValidateID(input string) error {
	if input == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if len(input) > 64 {
		return fmt.Errorf("id too long: maximum 64 characters")
	}
	if !idRegex.MatchString(input) {
		return fmt.Errorf("id contains invalid characters. Only letters, numbers and . _ : - are allowed")
	}
	return nil
}

// ValidateWeight rejects weights the calculator cannot dose safely
func (v *DataValidatorImpl) ValidateWeight(weight float64, unit entities.WeightUnit) error {
	if unit != entities.Kilograms && unit != entities.Pounds {
		return fmt.Errorf("unit must be %q or %q, got %q", entities.Kilograms, entities.Pounds, unit)
	}

	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("weight must be a finite number")
	}

	if weight <= 0 {
		return fmt.Errorf("weight must be greater than zero")
	}

	if kg := dosage.ToKilograms(weight, unit); kg > MaxWeightKg {
		return fmt.Errorf("weight too large: maximum %.0f kg", MaxWeightKg)
	}

	return nil
}

// ValidateMedication checks one record against the entity constraints
func (v *DataValidatorImpl) ValidateMedication(m *entities.Medication) error {
	if m == nil {
		return fmt.Errorf("medication is nil")
	}

	if err := JoinFieldErrors(ValidateStruct(m)); err != nil {
		return fmt.Errorf("invalid medication %q: %w", m.ID, err)
	}

	if math.IsNaN(m.Price) || math.IsInf(m.Price, 0) {
		return fmt.Errorf("invalid medication %q: price must be a finite number", m.ID)
	}

	return nil
}

// ReportDataQuality inspects the catalog and logs a summary of what it found
func (v *DataValidatorImpl) ReportDataQuality(meds []entities.Medication) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		TotalRecords: len(meds),
		DuplicateIDs: []string{},
	}

	known := make(map[string]bool, len(meds))
	for _, med := range meds {
		if known[med.ID] {
			report.DuplicateIDs = append(report.DuplicateIDs, med.ID)
		}
		known[med.ID] = true
	}

	for _, med := range meds {
		if strings.TrimSpace(med.ActiveIngredient) == "" {
			report.MissingActiveIngredient++
		}
		if med.Price == 0 {
			report.ZeroPrice++
		}
		if !med.IsAvailable {
			report.Unavailable++
		}
		if len(med.Alternatives) == 0 {
			report.WithoutAlternatives++
		}
		for _, alt := range med.Alternatives {
			if !known[alt.ID] {
				report.AlternativesUnknownToStore++
			}
		}
	}

	if len(report.DuplicateIDs) > 0 {
		logging.Error("Duplicate medication ids detected",
			"count", len(report.DuplicateIDs),
			"duplicates", report.DuplicateIDs)
	}

	return report
}

// hasExcessiveRepetition reports the same character repeated more than 10
// times in a row
func hasExcessiveRepetition(input string) bool {
	run := 1
	var prev rune = -1
	for _, r := range input {
		if r == prev {
			run++
			if run > 10 {
				return true
			}
		} else {
			run = 1
			prev = r
		}
	}
	return false
}
