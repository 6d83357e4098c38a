package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a counter or gauge
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/medications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := value(t, HTTPRequestTotals.WithLabelValues(http.MethodGet, "/medications/{id}", "404"))

	for _, id := range []string{"1", "2", "3"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/medications/"+id, nil))
	}

	after := value(t, HTTPRequestTotals.WithLabelValues(http.MethodGet, "/medications/{id}", "404"))
	if after-before != 3 {
		t.Errorf("Expected 3 requests under the route pattern, got %v", after-before)
	}
	if got := value(t, HTTPRequestInFlight); got != 0 {
		t.Errorf("Expected no in-flight requests, got %v", got)
	}
}

func TestRecordImport(t *testing.T) {
	before := value(t, ImportRecordsTotal.WithLabelValues("added"))
	beforeRuns := value(t, ImportsTotal.WithLabelValues(SourceUpload, OutcomeSuccess))

	RecordImport(SourceUpload, 4, 1, 2)

	if got := value(t, ImportRecordsTotal.WithLabelValues("added")) - before; got != 4 {
		t.Errorf("Expected 4 added records, got %v", got)
	}
	if got := value(t, ImportsTotal.WithLabelValues(SourceUpload, OutcomeSuccess)) - beforeRuns; got != 1 {
		t.Errorf("Expected one successful upload, got %v", got)
	}
}
