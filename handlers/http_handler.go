package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MLotfy88/Medi-Tempo/data"
	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/importer"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/MLotfy88/Medi-Tempo/metrics"
	"github.com/MLotfy88/Medi-Tempo/query"
	"github.com/MLotfy88/Medi-Tempo/validation"
)

// DefaultMaxImportBody caps uploads when no limit is configured
const DefaultMaxImportBody = 10 * 1024 * 1024

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	importer      interfaces.Importer
	calculator    interfaces.DosageCalculator
	healthChecker interfaces.HealthChecker
	maxImportBody int64
}

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(
	dataStore interfaces.DataStore,
	validator interfaces.DataValidator,
	importer interfaces.Importer,
	calculator interfaces.DosageCalculator,
	healthChecker interfaces.HealthChecker,
	maxImportBody int64,
) *HTTPHandlerImpl {
	if maxImportBody <= 0 {
		maxImportBody = DefaultMaxImportBody
	}
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		importer:      importer,
		calculator:    calculator,
		healthChecker: healthChecker,
		maxImportBody: maxImportBody,
	}
}

// SearchMedications searches by name or ingredient, then filters by price
// bucket, category and availability
func (h *HTTPHandlerImpl) SearchMedications(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := strings.TrimSpace(params.Get("q"))
	if q != "" {
		if err := h.validator.ValidateInput(q); err != nil {
			logging.Warn("Unusual user input", "q", q, "error", err)
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	mode, err := query.ParseSearchMode(params.Get("mode"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	criteria := entities.FilterCriteria{
		Price:        splitTokens(strings.Join(params["price"], ",")),
		Category:     splitTokens(strings.Join(params["category"], ",")),
		Availability: splitTokens(strings.Join(params["availability"], ",")),
	}
	for _, tokens := range [][]string{criteria.Price, criteria.Category, criteria.Availability} {
		for _, tok := range tokens {
			if err := h.validator.ValidateInput(tok); err != nil {
				logging.Warn("Unusual filter input", "token", tok, "error", err)
				RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter %q: %v", tok, err))
				return
			}
		}
	}

	results := query.Filter(h.dataStore.Search(q, mode), criteria)
	if results == nil {
		results = []entities.Medication{}
	}

	RespondWithJSON(w, http.StatusOK, SearchResponse{Data: results, Count: len(results)})
}

// GetMedication returns one record by id
func (h *HTTPHandlerImpl) GetMedication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.validator.ValidateID(id); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	med, ok := h.dataStore.GetByID(id)
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Medication not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, med)
}

// ServeDatabase returns the whole catalog
func (h *HTTPHandlerImpl) ServeDatabase(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, h.dataStore.Medications())
}

// ServeDatabasePage returns paginated records
func (h *HTTPHandlerImpl) ServeDatabasePage(w http.ResponseWriter, r *http.Request) {
	pageNumber := chi.URLParam(r, "pageNumber")
	page, err := strconv.Atoi(pageNumber)
	if err != nil || page < 1 {
		logging.Warn("Unusual user input", "pageNumber", pageNumber)
		RespondWithError(w, http.StatusBadRequest, "Invalid page number")
		return
	}

	medications := h.dataStore.Medications()
	start := (page - 1) * DefaultPageSize
	end := start + DefaultPageSize

	if start >= len(medications) {
		RespondWithError(w, http.StatusNotFound, "Page not found")
		return
	}

	if end > len(medications) {
		end = len(medications)
	}

	totalItems := len(medications)
	RespondWithJSON(w, http.StatusOK, PageResponse{
		Data:       medications[start:end],
		Page:       page,
		PageSize:   DefaultPageSize,
		TotalItems: totalItems,
		MaxPage:    (totalItems + DefaultPageSize - 1) / DefaultPageSize,
	})
}

// DatabaseInfo reports the size and freshness of the catalog
func (h *HTTPHandlerImpl) DatabaseInfo(w http.ResponseWriter, r *http.Request) {
	info := DatabaseInfoResponse{
		Records:        len(h.dataStore.Medications()),
		Size:           h.dataStore.DatabaseSize(),
		SizeBytes:      h.dataStore.SizeBytes(),
		FallbackActive: h.dataStore.FallbackActive(),
		IsUpdating:     h.dataStore.IsUpdating(),
	}
	if lastUpdated := h.dataStore.LastUpdated(); !lastUpdated.IsZero() {
		info.LastUpdated = data.FormatTimestamp(lastUpdated)
	}

	RespondWithJSON(w, http.StatusOK, info)
}

// ImportMedications appends the records of an uploaded CSV file. The file is
// either the raw body (text/csv) or the "file" part of a multipart form.
func (h *HTTPHandlerImpl) ImportMedications(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImportBody)

	body, closeBody, status, err := h.uploadReader(r)
	if err != nil {
		RespondWithError(w, status, err.Error())
		return
	}
	defer closeBody()

	if !h.dataStore.BeginUpdate() {
		RespondWithError(w, http.StatusConflict, "An import is already in progress")
		return
	}
	defer h.dataStore.EndUpdate()

	res, err := h.importer.ParseReader(r.Context(), body)
	if err != nil {
		metrics.RecordImportFailure(metrics.SourceUpload)
		h.respondImportError(w, res, err)
		return
	}

	result, err := h.dataStore.AddMedications(r.Context(), res.Medications)
	if err != nil {
		metrics.RecordImportFailure(metrics.SourceUpload)
		if errors.Is(err, data.ErrFallbackActive) {
			RespondWithError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		logging.Error("Failed to store uploaded medications", "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Failed to store medications")
		return
	}

	metrics.RecordImport(metrics.SourceUpload, result.Added, result.Skipped, len(res.RowErrors))
	logging.Info("Medications imported from upload",
		"added", result.Added,
		"skipped", result.Skipped,
		"rejected", len(res.RowErrors),
		"total", result.Total)

	rowErrors := res.RowErrors
	if rowErrors == nil {
		rowErrors = []entities.RowError{}
	}
	RespondWithJSON(w, http.StatusOK, ImportResponse{AddResult: result, Rows: res.Rows, RowErrors: rowErrors})
}

// uploadReader locates the CSV document in the request
func (h *HTTPHandlerImpl) uploadReader(r *http.Request) (io.Reader, func(), int, error) {
	noop := func() {}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return r.Body, noop, 0, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, noop, http.StatusBadRequest, fmt.Errorf("invalid Content-Type: %v", err)
	}

	switch mediaType {
	case "text/csv", "text/plain", "application/csv", "application/octet-stream":
		return r.Body, noop, 0, nil

	case "multipart/form-data":
		mr, err := r.MultipartReader()
		if err != nil {
			return nil, noop, http.StatusBadRequest, fmt.Errorf("invalid multipart body: %v", err)
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil, noop, http.StatusBadRequest, errors.New("missing \"file\" form field")
			}
			if err != nil {
				return nil, noop, statusForBodyError(err), fmt.Errorf("invalid multipart body: %v", err)
			}
			if part.FormName() == "file" {
				return part, func() { _ = part.Close() }, 0, nil
			}
			_ = part.Close()
		}

	default:
		return nil, noop, http.StatusUnsupportedMediaType, fmt.Errorf("unsupported Content-Type %q, send text/csv or multipart/form-data", mediaType)
	}
}

func (h *HTTPHandlerImpl) respondImportError(w http.ResponseWriter, res *entities.ParseResult, err error) {
	switch {
	case errors.Is(err, importer.ErrNoValidRows):
		body := ImportErrorResponse{
			ErrorResponse: ErrorResponse{
				Error:   http.StatusText(http.StatusUnprocessableEntity),
				Message: err.Error(),
				Code:    http.StatusUnprocessableEntity,
			},
			RowErrors: []entities.RowError{},
		}
		if res != nil {
			body.Rows = res.Rows
			if res.RowErrors != nil {
				body.RowErrors = res.RowErrors
			}
		}
		logging.Warn("Upload contained no valid rows", "rows", body.Rows)
		RespondWithJSON(w, http.StatusUnprocessableEntity, body)
	case errors.Is(err, importer.ErrInvalidHeader):
		RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		status := statusForBodyError(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		RespondWithError(w, status, err.Error())
	}
}

func statusForBodyError(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, importer.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// CalculateDosage computes a weight-based dose for a catalog record or a
// free-text medication name
func (h *HTTPHandlerImpl) CalculateDosage(w http.ResponseWriter, r *http.Request) {
	var body DosageRequestBody
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		RespondWithError(w, statusForBodyError(err), fmt.Sprintf("Invalid JSON body: %v", err))
		return
	}

	if err := validation.JoinFieldErrors(validation.ValidateStruct(body)); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Unit == "" {
		body.Unit = entities.Kilograms
	}
	if err := h.validator.ValidateWeight(body.Weight, body.Unit); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := entities.DosageRequest{
		MedicationName: strings.TrimSpace(body.MedicationName),
		Weight:         body.Weight,
		Unit:           body.Unit,
	}
	response := DosageResponse{MedicationName: req.MedicationName}

	if body.MedicationID != "" {
		if err := h.validator.ValidateID(body.MedicationID); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// A name equal to a catalog entry is accepted as is; free text goes
	// through the search input rules
	med, err := h.dataStore.Resolve(body.MedicationID, req.MedicationName)
	switch {
	case err == nil:
		req.MedicationName = med.Name
		req.ActiveIngredient = med.ActiveIngredient
		response.MedicationID = med.ID
		response.MedicationName = med.Name
	case body.MedicationID != "":
		RespondWithError(w, http.StatusNotFound, "Medication not found")
		return
	default:
		if err := h.validator.ValidateInput(req.MedicationName); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Debug("Dosing medication not in catalog", "name", req.MedicationName)
	}

	response.DosageResult = h.calculator.Calculate(req)
	metrics.DosageCalculationsTotal.WithLabelValues(strconv.FormatBool(response.IsSafe)).Inc()

	RespondWithJSON(w, http.StatusOK, response)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, details, err := h.healthChecker.HealthCheck()
	httpStatus := http.StatusOK
	if err != nil {
		logging.Warn("Health check failed", "status", status, "error", err)
		httpStatus = http.StatusServiceUnavailable
	}

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status: status,
		Data:   details,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}
