package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"BreakoutSentinel/internal/model"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAnalysis(OutcomeOK, time.Millisecond)
	m.ObserveAnalysis(OutcomeOK, time.Millisecond)
	m.ObserveAnalysis(OutcomeNoPeaks, time.Millisecond)
	m.Skip(SkipWeekend)
	m.FetchFailed()
	m.FreshBreakout()

	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(OutcomeOK)); got != 2 {
		t.Errorf("expected 2 ok analyses, got %v", got)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(OutcomeNoPeaks)); got != 1 {
		t.Errorf("expected 1 no_peaks analysis, got %v", got)
	}
	if got := testutil.ToFloat64(m.SkippedTotal.WithLabelValues(SkipWeekend)); got != 1 {
		t.Errorf("expected 1 weekend skip, got %v", got)
	}
	if got := testutil.ToFloat64(m.FetchFailures); got != 1 {
		t.Errorf("expected 1 fetch failure, got %v", got)
	}

	m.RecordRun(&model.RunSummary{Kind: model.RunDaily, Total: 4, Succeeded: 3, Finished: time.Unix(1700000000, 0)})
	if got := testutil.ToFloat64(m.RunSuccessRatio.WithLabelValues("DAILY")); got != 75 {
		t.Errorf("expected success ratio 75, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis(OutcomeError, time.Second)
	m.Skip(SkipMissing)
	m.FetchFailed()
	m.FreshBreakout()
	m.RecordRun(&model.RunSummary{})
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 before any run, got %d", rec.Code)
	}

	h.SetLastRun(model.RunSummary{RunID: "r1", Kind: model.RunDaily, Total: 2, Succeeded: 0})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after a fully failed run, got %d", rec.Code)
	}
	var body struct {
		Status    string `json:"status"`
		LastRunID string `json:"last_run_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.LastRunID != "r1" {
		t.Errorf("unexpected body: %+v", body)
	}
}
