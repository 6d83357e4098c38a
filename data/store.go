// Package data holds the medication catalog in memory and keeps it in sync
// with the key-value storage backend. Reads are lock-free snapshots; writers
// are serialized and persist before they publish.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/MLotfy88/Medi-Tempo/metrics"
	"github.com/MLotfy88/Medi-Tempo/query"
	"github.com/MLotfy88/Medi-Tempo/storage"
)

// TimestampLayout is the persisted form of lastUpdated
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrNotFound is returned when no record matches a lookup
	ErrNotFound = errors.New("medication not found")
	// ErrFallbackActive rejects writes while the catalog is the built-in
	// seed set standing in for an unreadable snapshot
	ErrFallbackActive = errors.New("catalog is running on fallback data, writes are disabled")
)

// Compile-time check to ensure Store implements DataStore
var _ interfaces.DataStore = (*Store)(nil)

// Store is the medication catalog
type Store struct {
	kv      storage.KeyValue
	writeMu sync.Mutex
	now     func() time.Time

	medications atomic.Value // []entities.Medication
	lastUpdated atomic.Value // time.Time
	sizeBytes   atomic.Int64
	updating    atomic.Bool
	updateStart atomic.Int64 // unix nanoseconds, 0 when idle
	fallback    atomic.Bool
}

// NewStore creates an empty catalog backed by kv. Call Load before serving.
func NewStore(kv storage.KeyValue) *Store {
	s := &Store{kv: kv, now: time.Now}
	s.medications.Store(make([]entities.Medication, 0))
	s.lastUpdated.Store(time.Time{})
	return s
}

// Load reads the persisted snapshot. With nothing persisted the seed set is
// installed and written back. When the snapshot cannot be read or decoded,
// the seed set is served from memory only, the stored data is left alone and
// FallbackActive reports true until a later Load succeeds.
func (s *Store) Load(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, found, err := s.kv.GetItem(ctx, storage.KeyMedications)
	if err != nil {
		s.useFallback("Failed to read medications from storage", err)
		return
	}

	if !found {
		s.installSeed(ctx)
		return
	}

	var meds []entities.Medication
	if err := json.Unmarshal(raw, &meds); err != nil {
		s.useFallback("Persisted medications are not valid JSON", err)
		return
	}
	if meds == nil {
		meds = make([]entities.Medication, 0)
	}

	lastUpdated := time.Time{}
	if ts, ok, err := s.kv.GetItem(ctx, storage.KeyLastUpdated); err != nil {
		logging.Warn("Failed to read lastUpdated, leaving it unset", "error", err)
	} else if ok {
		if parsed, err := ParseTimestamp(string(ts)); err != nil {
			logging.Warn("Persisted lastUpdated is malformed, leaving it unset", "value", string(ts), "error", err)
		} else {
			lastUpdated = parsed
		}
	}

	s.fallback.Store(false)
	s.publish(meds, lastUpdated, len(raw))
	logging.Info("Medication catalog loaded",
		"records", len(meds),
		"last_updated", lastUpdated,
		"size", FormatFileSize(int64(len(raw))))
}

// installSeed publishes the seed set and persists it. Caller holds writeMu.
func (s *Store) installSeed(ctx context.Context) {
	seed := SeedMedications()
	now := s.now().UTC()

	raw, err := json.Marshal(seed)
	if err != nil {
		s.useFallback("Failed to encode seed medications", err)
		return
	}

	if err := s.kv.SetItems(ctx, map[string][]byte{
		storage.KeyMedications: raw,
		storage.KeyLastUpdated: []byte(FormatTimestamp(now)),
	}); err != nil {
		// Nothing was persisted before, so serving the seed is safe; the next
		// successful write persists the catalog.
		logging.Error("Failed to persist seed medications", "error", err)
	}

	s.fallback.Store(false)
	s.publish(seed, now, len(raw))
	logging.Info("Medication catalog initialized from seed set", "records", len(seed))
}

// useFallback serves the seed set without touching storage. Caller holds writeMu.
func (s *Store) useFallback(msg string, err error) {
	logging.Error(msg+", serving built-in medications", "error", err)

	seed := SeedMedications()
	raw, _ := json.Marshal(seed)

	s.fallback.Store(true)
	s.publish(seed, time.Time{}, len(raw))
}

func (s *Store) publish(meds []entities.Medication, lastUpdated time.Time, size int) {
	s.medications.Store(meds)
	s.lastUpdated.Store(lastUpdated)
	s.sizeBytes.Store(int64(size))

	metrics.CatalogRecords.Set(float64(len(meds)))
	metrics.CatalogBytes.Set(float64(size))
}

// AddMedications appends the records of batch whose id is not in the catalog
// yet. Repeated ids inside the batch keep their first occurrence. The merged
// catalog is persisted before it becomes visible; on a persistence error the
// in-memory catalog is unchanged.
func (s *Store) AddMedications(ctx context.Context, batch []entities.Medication) (entities.AddResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.fallback.Load() {
		return entities.AddResult{}, ErrFallbackActive
	}

	current := s.Medications()
	seen := make(map[string]struct{}, len(current)+len(batch))
	for _, med := range current {
		seen[med.ID] = struct{}{}
	}

	merged := make([]entities.Medication, len(current), len(current)+len(batch))
	copy(merged, current)

	added := 0
	for _, med := range batch {
		if _, dup := seen[med.ID]; dup {
			continue
		}
		seen[med.ID] = struct{}{}
		merged = append(merged, med)
		added++
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		return entities.AddResult{}, fmt.Errorf("failed to encode medications: %w", err)
	}

	now := s.now().UTC()
	if err := s.kv.SetItems(ctx, map[string][]byte{
		storage.KeyMedications: raw,
		storage.KeyLastUpdated: []byte(FormatTimestamp(now)),
	}); err != nil {
		return entities.AddResult{}, fmt.Errorf("failed to persist medications: %w", err)
	}

	s.publish(merged, now, len(raw))

	result := entities.AddResult{Added: added, Skipped: len(batch) - added, Total: len(merged)}
	logging.Info("Medications added",
		"added", result.Added,
		"skipped", result.Skipped,
		"total", result.Total)
	return result, nil
}

// Medications returns the current catalog. Callers must not modify it.
func (s *Store) Medications() []entities.Medication {
	if v := s.medications.Load(); v != nil {
		if meds, ok := v.([]entities.Medication); ok {
			return meds
		}
	}

	logging.Warn("Medications list is empty or invalid")
	return []entities.Medication{}
}

// GetByID returns the first record with the given id
func (s *Store) GetByID(id string) (entities.Medication, bool) {
	for _, med := range s.Medications() {
		if med.ID == id {
			return med, true
		}
	}
	return entities.Medication{}, false
}

// Resolve finds a record by id, or by case-insensitive exact name when id is
// empty.
func (s *Store) Resolve(id, name string) (entities.Medication, error) {
	if id != "" {
		if med, ok := s.GetByID(id); ok {
			return med, nil
		}
		return entities.Medication{}, fmt.Errorf("id %s: %w", id, ErrNotFound)
	}

	name = strings.TrimSpace(name)
	for _, med := range s.Medications() {
		if strings.EqualFold(med.Name, name) {
			return med, nil
		}
	}
	return entities.Medication{}, fmt.Errorf("name %q: %w", name, ErrNotFound)
}

// Search runs query.Search over the current catalog
func (s *Store) Search(q string, mode query.SearchMode) []entities.Medication {
	return query.Search(s.Medications(), q, mode)
}

// Filter runs query.Filter over the current catalog
func (s *Store) Filter(c entities.FilterCriteria) []entities.Medication {
	return query.Filter(s.Medications(), c)
}

// LastUpdated returns the time of the last persisted change, zero if unknown
func (s *Store) LastUpdated() time.Time {
	if v := s.lastUpdated.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

// SizeBytes is the length of the serialized catalog
func (s *Store) SizeBytes() int64 {
	return s.sizeBytes.Load()
}

// DatabaseSize is SizeBytes in human-readable form
func (s *Store) DatabaseSize() string {
	return FormatFileSize(s.SizeBytes())
}

// FallbackActive reports whether the seed set stands in for unreadable data
func (s *Store) FallbackActive() bool {
	return s.fallback.Load()
}

// IsUpdating returns true if an import is in progress
func (s *Store) IsUpdating() bool {
	return s.updating.Load()
}

// BeginUpdate marks the start of an import.
// Returns false if another import is in progress.
func (s *Store) BeginUpdate() bool {
	if !s.updating.CompareAndSwap(false, true) {
		return false
	}
	s.updateStart.Store(s.now().UnixNano())
	return true
}

// EndUpdate marks the end of an import
func (s *Store) EndUpdate() {
	s.updateStart.Store(0)
	s.updating.Store(false)
}

// UpdateStartedAt returns when the running import began, zero when idle
func (s *Store) UpdateStartedAt() time.Time {
	if ns := s.updateStart.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// FormatTimestamp renders t in the persisted lastUpdated layout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with 1024-based units and at most two
// decimals, e.g. "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	i := 0
	for i < len(sizeUnits)-1 && value >= 1024 {
		value /= 1024
		i++
	}

	rounded := float64(int64(value*100+0.5)) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[i]
}
