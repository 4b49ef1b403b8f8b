package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.RecordQuery("affected", OutcomeOK, time.Millisecond, 3)

	if got := testutil.ToFloat64(a.QueriesTotal.WithLabelValues("affected", OutcomeOK)); got != 1 {
		t.Fatalf("expected 1 query on a, got %v", got)
	}
	if got := testutil.ToFloat64(b.QueriesTotal.WithLabelValues("affected", OutcomeOK)); got != 0 {
		t.Fatalf("expected 0 queries on b, got %v", got)
	}
}

func TestRecordQuery_Outcomes(t *testing.T) {
	m := NewMetrics()
	m.RecordQuery("downstream", OutcomeOK, 2*time.Millisecond, 4)
	m.RecordQuery("downstream", OutcomeUnavailable, time.Millisecond, 0)
	m.RecordQuery("downstream", OutcomeInvalid, 0, 0)

	for _, outcome := range []string{OutcomeOK, OutcomeUnavailable, OutcomeInvalid} {
		if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("downstream", outcome)); got != 1 {
			t.Fatalf("outcome %s: expected 1, got %v", outcome, got)
		}
	}
}

func TestRecordLoad(t *testing.T) {
	m := NewMetrics()
	m.RecordLoad("neo4j", time.Millisecond, 12, nil)
	m.RecordLoad("neo4j", time.Millisecond, 0, errors.New("down"))

	if got := testutil.ToFloat64(m.LoadsTotal.WithLabelValues("neo4j", OutcomeOK)); got != 1 {
		t.Fatalf("expected 1 ok load, got %v", got)
	}
	if got := testutil.ToFloat64(m.LoadsTotal.WithLabelValues("neo4j", "error")); got != 1 {
		t.Fatalf("expected 1 failed load, got %v", got)
	}
	if got := testutil.ToFloat64(m.SnapshotSystems); got != 12 {
		t.Fatalf("failed load must not reset the snapshot gauge, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordQuery("systems", OutcomeOK, time.Millisecond, 2)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `impact_queries_total{operation="systems",outcome="ok"} 1`) {
		t.Fatalf("missing query counter in:\n%s", body)
	}
	if !strings.Contains(body, "impact_query_duration_seconds_bucket") {
		t.Fatal("missing duration histogram")
	}
}
