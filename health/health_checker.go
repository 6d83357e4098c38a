// Package health reports whether the catalog is usable and fresh.
package health

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MLotfy88/Medi-Tempo/data"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultStaleAfter is used when no staleness threshold is configured
const DefaultStaleAfter = 24 * time.Hour

var (
	ErrEmptyCatalog = errors.New("catalog is empty")
	ErrStaleData    = errors.New("catalog data is stale")
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore  interfaces.DataStore
	scheduler  interfaces.Scheduler
	staleAfter time.Duration
	startTime  time.Time
	now        func() time.Time
}

var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// NewHealthChecker creates a health checker. scheduler may be nil when
// background imports are disabled.
func NewHealthChecker(dataStore interfaces.DataStore, scheduler interfaces.Scheduler, staleAfter time.Duration) *HealthCheckerImpl {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &HealthCheckerImpl{
		dataStore:  dataStore,
		scheduler:  scheduler,
		staleAfter: staleAfter,
		startTime:  time.Now(),
		now:        time.Now,
	}
}

// HealthCheck returns the overall status and the data behind it. err is
// non-nil only when the status is unhealthy.
//
// The catalog is unhealthy when empty or older than twice the staleness
// threshold, and degraded when older than the threshold, when serving the
// seed set after a storage failure, or when an import has been running for
// over an hour.
func (h *HealthCheckerImpl) HealthCheck() (status string, details map[string]any, err error) {
	now := h.now()
	records := len(h.dataStore.Medications())
	lastUpdated := h.dataStore.LastUpdated()
	fallback := h.dataStore.FallbackActive()
	updating := h.dataStore.IsUpdating()
	updateStart := h.dataStore.UpdateStartedAt()

	var dataAge time.Duration
	if !lastUpdated.IsZero() {
		dataAge = now.Sub(lastUpdated)
	}

	switch {
	case records == 0:
		status = StatusUnhealthy
		err = ErrEmptyCatalog

	case fallback:
		status = StatusDegraded

	case dataAge > 2*h.staleAfter:
		status = StatusUnhealthy
		err = fmt.Errorf("%w: last updated %s ago", ErrStaleData, dataAge.Round(time.Minute))

	case dataAge > h.staleAfter:
		status = StatusDegraded

	case updating && !updateStart.IsZero() && now.Sub(updateStart) > time.Hour:
		status = StatusDegraded

	default:
		status = StatusHealthy
	}

	details = map[string]any{
		"records":         records,
		"last_updated":    "",
		"data_age_hours":  math.Round(dataAge.Hours()*10) / 10,
		"size":            h.dataStore.DatabaseSize(),
		"is_updating":     updating,
		"fallback_active": fallback,
		"uptime":          now.Sub(h.startTime).Round(time.Second).String(),
	}
	if !lastUpdated.IsZero() {
		details["last_updated"] = data.FormatTimestamp(lastUpdated)
	}
	if h.scheduler != nil {
		if next := h.scheduler.NextImport(); !next.IsZero() {
			details["next_import"] = next.Format(time.RFC3339)
		}
	}

	return status, details, err
}
