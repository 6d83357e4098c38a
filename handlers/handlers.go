// Package handlers provides the HTTP endpoints of the medication API:
// search and lookup, catalog dumps, CSV import, dosage calculation and
// health reporting.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/logging"
)

// DefaultPageSize is the number of records per /database/{pageNumber} page
const DefaultPageSize = 10

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SearchResponse wraps search results
type SearchResponse struct {
	Data  []entities.Medication `json:"data"`
	Count int                   `json:"count"`
}

// PageResponse is one page of the catalog
type PageResponse struct {
	Data       []entities.Medication `json:"data"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalItems int                   `json:"totalItems"`
	MaxPage    int                   `json:"maxPage"`
}

// DatabaseInfoResponse describes the catalog
type DatabaseInfoResponse struct {
	Records        int    `json:"records"`
	LastUpdated    string `json:"lastUpdated"`
	Size           string `json:"size"`
	SizeBytes      int64  `json:"sizeBytes"`
	FallbackActive bool   `json:"fallbackActive"`
	IsUpdating     bool   `json:"isUpdating"`
}

// ImportResponse reports what an upload changed
type ImportResponse struct {
	entities.AddResult
	Rows      int                 `json:"rows"`
	RowErrors []entities.RowError `json:"rowErrors"`
}

// ImportErrorResponse is returned when no row of an upload was usable
type ImportErrorResponse struct {
	ErrorResponse
	Rows      int                 `json:"rows"`
	RowErrors []entities.RowError `json:"rowErrors"`
}

// DosageRequestBody is the POST /dosage payload. Either medicationId or
// medicationName identifies the drug.
type DosageRequestBody struct {
	MedicationID   string              `json:"medicationId" validate:"required_without=MedicationName,omitempty,max=64"`
	MedicationName string              `json:"medicationName" validate:"required_without=MedicationID,omitempty,max=200"`
	Weight         float64             `json:"weight" validate:"gt=0"`
	Unit           entities.WeightUnit `json:"unit" validate:"omitempty,oneof=kg lb"`
}

// DosageResponse is a dosage result with the medication it was computed for
type DosageResponse struct {
	MedicationID   string `json:"medicationId,omitempty"`
	MedicationName string `json:"medicationName"`
	entities.DosageResult
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

// RespondWithJSON writes payload as JSON with the given status code
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// splitTokens reads a comma-separated query parameter, dropping blanks
func splitTokens(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
