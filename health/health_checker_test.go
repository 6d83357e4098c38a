package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/query"
)

// MockHealthDataStore for testing
type MockHealthDataStore struct {
	medications []entities.Medication
	lastUpdated time.Time
	isUpdating  bool
	updateStart time.Time
	fallback    bool
}

func (m *MockHealthDataStore) Medications() []entities.Medication { return m.medications }

func (m *MockHealthDataStore) GetByID(id string) (entities.Medication, bool) {
	return entities.Medication{}, false
}

func (m *MockHealthDataStore) Resolve(id, name string) (entities.Medication, error) {
	return entities.Medication{}, errors.New("not found")
}

func (m *MockHealthDataStore) Search(q string, mode query.SearchMode) []entities.Medication {
	return nil
}

func (m *MockHealthDataStore) Filter(c entities.FilterCriteria) []entities.Medication { return nil }
func (m *MockHealthDataStore) LastUpdated() time.Time                                  { return m.lastUpdated }
func (m *MockHealthDataStore) DatabaseSize() string                                    { return "1.5 KB" }
func (m *MockHealthDataStore) SizeBytes() int64                                        { return 1536 }
func (m *MockHealthDataStore) FallbackActive() bool                                    { return m.fallback }
func (m *MockHealthDataStore) IsUpdating() bool                                        { return m.isUpdating }
func (m *MockHealthDataStore) UpdateStartedAt() time.Time                              { return m.updateStart }
func (m *MockHealthDataStore) Load(ctx context.Context)                                {}

func (m *MockHealthDataStore) AddMedications(ctx context.Context, batch []entities.Medication) (entities.AddResult, error) {
	return entities.AddResult{}, nil
}

func (m *MockHealthDataStore) BeginUpdate() bool { return true }
func (m *MockHealthDataStore) EndUpdate()        {}

var _ interfaces.DataStore = (*MockHealthDataStore)(nil)

type mockScheduler struct {
	next time.Time
}

func (m *mockScheduler) Start() error          { return nil }
func (m *mockScheduler) Stop()                 {}
func (m *mockScheduler) NextImport() time.Time { return m.next }

func newChecker(store interfaces.DataStore, sched interfaces.Scheduler, now time.Time) *HealthCheckerImpl {
	h := NewHealthChecker(store, sched, 24*time.Hour)
	h.startTime = now.Add(-90 * time.Minute)
	h.now = func() time.Time { return now }
	return h
}

func TestHealthCheckStatus(t *testing.T) {
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	records := []entities.Medication{{ID: "1", Name: "Paracetamol 500mg"}}

	tests := []struct {
		name       string
		store      *MockHealthDataStore
		wantStatus string
		wantErr    error
	}{
		{
			name:       "fresh data",
			store:      &MockHealthDataStore{medications: records, lastUpdated: now.Add(-2 * time.Hour)},
			wantStatus: StatusHealthy,
		},
		{
			name:       "empty catalog",
			store:      &MockHealthDataStore{lastUpdated: now},
			wantStatus: StatusUnhealthy,
			wantErr:    ErrEmptyCatalog,
		},
		{
			name:       "fallback mode",
			store:      &MockHealthDataStore{medications: records, fallback: true},
			wantStatus: StatusDegraded,
		},
		{
			name:       "stale data",
			store:      &MockHealthDataStore{medications: records, lastUpdated: now.Add(-30 * time.Hour)},
			wantStatus: StatusDegraded,
		},
		{
			name:       "very stale data",
			store:      &MockHealthDataStore{medications: records, lastUpdated: now.Add(-49 * time.Hour)},
			wantStatus: StatusUnhealthy,
			wantErr:    ErrStaleData,
		},
		{
			name: "long running import",
			store: &MockHealthDataStore{medications: records, lastUpdated: now.Add(-10 * time.Minute),
				isUpdating: true, updateStart: now.Add(-61 * time.Minute)},
			wantStatus: StatusDegraded,
		},
		{
			name: "short import on older data",
			store: &MockHealthDataStore{medications: records, lastUpdated: now.Add(-3 * time.Hour),
				isUpdating: true, updateStart: now.Add(-5 * time.Minute)},
			wantStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, err := newChecker(tt.store, nil, now).HealthCheck()
			if status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, status)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestHealthCheckDetails(t *testing.T) {
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	next := time.Date(2024, 5, 6, 18, 0, 0, 0, time.UTC)
	store := &MockHealthDataStore{
		medications: []entities.Medication{{ID: "1"}, {ID: "2"}},
		lastUpdated: now.Add(-3 * time.Hour),
	}

	_, details, err := newChecker(store, &mockScheduler{next: next}, now).HealthCheck()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := map[string]any{
		"records":         2,
		"last_updated":    "2024-05-06T09:00:00.000Z",
		"data_age_hours":  3.0,
		"size":            "1.5 KB",
		"is_updating":     false,
		"fallback_active": false,
		"uptime":          "1h30m0s",
		"next_import":     "2024-05-06T18:00:00Z",
	}
	for key, want := range expected {
		if got := details[key]; got != want {
			t.Errorf("details[%q] = %v (%T), want %v (%T)", key, got, got, want, want)
		}
	}
}

func TestHealthCheckWithoutSchedule(t *testing.T) {
	now := time.Now()
	store := &MockHealthDataStore{medications: []entities.Medication{{ID: "1"}}, fallback: true}

	_, details, _ := newChecker(store, &mockScheduler{}, now).HealthCheck()
	if _, ok := details["next_import"]; ok {
		t.Error("Expected no next_import when nothing is scheduled")
	}
	if details["last_updated"] != "" {
		t.Errorf("Expected empty last_updated in fallback mode, got %v", details["last_updated"])
	}
}

func TestNewHealthCheckerDefaultThreshold(t *testing.T) {
	h := NewHealthChecker(&MockHealthDataStore{}, nil, 0)
	if h.staleAfter != DefaultStaleAfter {
		t.Errorf("Expected default threshold %v, got %v", DefaultStaleAfter, h.staleAfter)
	}
}
