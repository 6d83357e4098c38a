// Package interfaces defines the contracts between the catalog, the
// importer, the scheduler and the HTTP layer so each can be replaced by a
// mock in tests.
package interfaces

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/query"
)

// DataQualityReport summarizes data quality issues in the catalog
type DataQualityReport struct {
	TotalRecords               int      `json:"totalRecords"`
	DuplicateIDs               []string `json:"duplicateIds,omitempty"`
	MissingActiveIngredient    int      `json:"missingActiveIngredient"`
	ZeroPrice                  int      `json:"zeroPrice"`
	Unavailable                int      `json:"unavailable"`
	WithoutAlternatives        int      `json:"withoutAlternatives"`
	AlternativesUnknownToStore int      `json:"alternativesUnknownToStore"`
}

// DataStore is the medication catalog. Reads never block writers.
type DataStore interface {
	// Reads
	Medications() []entities.Medication
	GetByID(id string) (entities.Medication, bool)
	Resolve(id, name string) (entities.Medication, error)
	Search(q string, mode query.SearchMode) []entities.Medication
	Filter(c entities.FilterCriteria) []entities.Medication
	LastUpdated() time.Time
	DatabaseSize() string
	SizeBytes() int64
	FallbackActive() bool
	IsUpdating() bool
	UpdateStartedAt() time.Time

	// Writes
	Load(ctx context.Context)
	AddMedications(ctx context.Context, batch []entities.Medication) (entities.AddResult, error)
	BeginUpdate() bool
	EndUpdate()
}

// Importer turns CSV sources into medication batches
type Importer interface {
	ParseReader(ctx context.Context, r io.Reader) (*entities.ParseResult, error)
	ParseFile(ctx context.Context, path string) (*entities.ParseResult, error)
	Download(ctx context.Context, url string) (*entities.ParseResult, error)
}

// DosageCalculator computes weight-based doses
type DosageCalculator interface {
	Calculate(req entities.DosageRequest) entities.DosageResult
}

// Scheduler runs background imports and monitoring
type Scheduler interface {
	Start() error
	Stop()
	NextImport() time.Time
}

// HTTPHandler defines the API endpoints
type HTTPHandler interface {
	SearchMedications(w http.ResponseWriter, r *http.Request)
	GetMedication(w http.ResponseWriter, r *http.Request)
	ServeDatabase(w http.ResponseWriter, r *http.Request)
	ServeDatabasePage(w http.ResponseWriter, r *http.Request)
	DatabaseInfo(w http.ResponseWriter, r *http.Request)
	ImportMedications(w http.ResponseWriter, r *http.Request)
	CalculateDosage(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, err error)
}

// DataValidator validates user input and catalog contents
type DataValidator interface {
	// ValidateInput checks free-text search input
	ValidateInput(input string) error

	// ValidateID checks a record identifier from a URL or request body
	ValidateID(input string) error

	// ValidateWeight checks a patient weight before dosing
	ValidateWeight(weight float64, unit entities.WeightUnit) error

	// ValidateMedication checks one record before it enters the catalog
	ValidateMedication(m *entities.Medication) error

	// ReportDataQuality inspects the whole catalog
	ReportDataQuality(meds []entities.Medication) *DataQualityReport
}
