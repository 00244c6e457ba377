package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BreakoutSentinel/internal/model"
)

// Analysis outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeNoPeaks = "no_peaks"
	OutcomeError   = "error"
)

// Skip reasons.
const (
	SkipWeekend = "weekend"
	SkipMissing = "missing"
)

// Metrics holds the Prometheus collectors for analysis runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AnalysesTotal    *prometheus.CounterVec // labels: outcome
	SkippedTotal     *prometheus.CounterVec // labels: reason
	FetchFailures    prometheus.Counter
	FreshBreakouts   prometheus.Counter
	AnalysisDuration prometheus.Histogram
	RunSuccessRatio  *prometheus.GaugeVec // labels: kind
	RunFinished      *prometheus.GaugeVec // labels: kind
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_analyses_total",
			Help: "Signal engine runs by outcome",
		}, []string{"outcome"}),
		SkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breakout_skipped_dates_total",
			Help: "Backtest dates skipped by reason",
		}, []string{"reason"}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakout_fetch_failures_total",
			Help: "Price series fetches that failed or returned no data",
		}),
		FreshBreakouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breakout_fresh_breakouts_total",
			Help: "First-day breakouts found",
		}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breakout_analysis_duration_seconds",
			Help:    "Signal engine latency per evaluation date",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		RunSuccessRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakout_run_success_ratio_percent",
			Help: "Share of successfully analysed items in the last run",
		}, []string{"kind"}),
		RunFinished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "breakout_run_finished_timestamp_seconds",
			Help: "Unix time the last run finished",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.SkippedTotal,
		m.FetchFailures,
		m.FreshBreakouts,
		m.AnalysisDuration,
		m.RunSuccessRatio,
		m.RunFinished,
	)
	return m
}

// ObserveAnalysis counts one engine run and its latency.
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

func (m *Metrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) FetchFailed() {
	if m == nil {
		return
	}
	m.FetchFailures.Inc()
}

func (m *Metrics) FreshBreakout() {
	if m == nil {
		return
	}
	m.FreshBreakouts.Inc()
}

// RecordRun publishes the outcome of a finished run.
func (m *Metrics) RecordRun(s *model.RunSummary) {
	if m == nil {
		return
	}
	m.RunSuccessRatio.WithLabelValues(string(s.Kind)).Set(s.SuccessRatio())
	m.RunFinished.WithLabelValues(string(s.Kind)).Set(float64(s.Finished.Unix()))
}

// HealthStatus tracks the last run for the /healthz endpoint.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt time.Time
	LastRun   *model.RunSummary
}

// NewHealthStatus returns a health status with no completed run.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetLastRun stores a copy of the last finished run.
func (h *HealthStatus) SetLastRun(s model.RunSummary) {
	h.mu.Lock()
	s.Breakouts = nil
	h.LastRun = &s
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint. A run in which every item failed
// reports degraded.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := struct {
		Status       string  `json:"status"`
		Uptime       string  `json:"uptime"`
		LastRunID    string  `json:"last_run_id,omitempty"`
		LastRunKind  string  `json:"last_run_kind,omitempty"`
		LastRunAt    string  `json:"last_run_at,omitempty"`
		SuccessRatio float64 `json:"success_ratio"`
	}{
		Status: "starting",
		Uptime: time.Since(h.StartedAt).Round(time.Second).String(),
	}
	httpCode := http.StatusOK

	if run := h.LastRun; run != nil {
		status.Status = "healthy"
		status.LastRunID = run.RunID
		status.LastRunKind = string(run.Kind)
		status.LastRunAt = run.Finished.Format(time.RFC3339)
		status.SuccessRatio = run.SuccessRatio()
		if run.Total > 0 && run.Succeeded == 0 {
			status.Status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server over the collectors in gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[INFO] metrics server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[ERROR] metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
