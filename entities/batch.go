package entities

import "fmt"

// RowError describes one rejected line of an import file
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
}

// ParseResult is the outcome of parsing an import file. Rows counts data
// lines read, accepted or not.
type ParseResult struct {
	Medications []Medication `json:"-"`
	RowErrors   []RowError   `json:"rowErrors"`
	Rows        int          `json:"rows"`
}
