package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"BreakoutSentinel/internal/batch"
	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/recorder"
	"BreakoutSentinel/internal/strategy"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// breakoutBars returns 40 weekday bars ending 2024-02-23 where only the last close
// clears the resistance line.
func breakoutBars() []model.OHLCV {
	highs := make([]float64, 40)
	for i := range highs {
		highs[i] = 100
	}
	highs[5] = 120
	highs[12] = 116
	highs[19] = 108
	highs[26] = 111
	highs[33] = 110
	highs[39] = 120

	bars := make([]model.OHLCV, 0, len(highs))
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, h := range highs {
		for model.IsWeekend(d) {
			d = d.AddDate(0, 0, 1)
		}
		bars = append(bars, model.OHLCV{Date: d, Open: h - 1, High: h, Low: h - 2, Close: h - 0.5, Volume: 1e6})
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func newTestScheduler(t *testing.T, now time.Time) (*Scheduler, *fakeNotifier) {
	t.Helper()
	ctx := context.Background()
	store, err := recorder.Open(ctx, recorder.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	if _, err := store.UpsertStock(ctx, &model.Stock{Symbol: "AAA"}); err != nil {
		t.Fatal(err)
	}

	mock := &collector.MockFetcher{DailyData: map[string][]model.OHLCV{"AAA": breakoutBars()}}
	engine := strategy.NewEngine(collector.NewCollector(mock, time.Second))
	n := &fakeNotifier{}
	s := NewScheduler(ctx, batch.NewDaily(engine, store, nil, 1), store, n, metrics.NewHealthStatus())
	s.now = func() time.Time { return now }
	return s, n
}

func TestScheduler_DailyTaskNotifiesSummary(t *testing.T) {
	s, n := newTestScheduler(t, time.Date(2024, 2, 23, 22, 30, 0, 0, time.UTC))
	s.RunDailyNow()

	sent := n.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(sent))
	}
	for _, want := range []string{"1 out of 1 successfully analysed", "AAA 2024-02-23"} {
		if !strings.Contains(sent[0], want) {
			t.Errorf("summary missing %q:\n%s", want, sent[0])
		}
	}
}

func TestScheduler_DailyTaskSkipsWeekend(t *testing.T) {
	s, n := newTestScheduler(t, time.Date(2024, 2, 24, 22, 30, 0, 0, time.UTC))
	s.RunDailyNow()
	if len(n.messages()) != 0 {
		t.Errorf("weekend run must not notify")
	}
}

func TestScheduler_HandleCommand(t *testing.T) {
	s, _ := newTestScheduler(t, time.Date(2024, 2, 23, 22, 30, 0, 0, time.UTC))
	s.RunDailyNow()
	ctx := context.Background()

	tests := []struct {
		command string
		want    string
	}{
		{"/top 2024-02-23", "1. AAA 2024-02-23"},
		{"/top", "Top breakouts"},
		{"/top 23.02.2024", "Invalid date"},
		{"/top 2024-02-22", "No analyses with a trendline on 2024-02-22"},
		{"/analyze aaa", "Signal: 🚀 fresh breakout"},
		{"/analyze", "Usage: /analyze SYMBOL"},
		{"/fresh AAA", "max 1d - | 5d - | 20d -"},
		{"/fresh MSFT", "No fresh breakouts found for MSFT"},
		{"/unknown", "Available commands"},
		{"", "Available commands"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got := s.HandleCommand(ctx, tt.command)
			if !strings.Contains(got, tt.want) {
				t.Errorf("HandleCommand(%q) = %q, want substring %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestScheduler_RegisterAllRejectsBadExpression(t *testing.T) {
	s, _ := newTestScheduler(t, time.Now())
	if err := s.RegisterAll("not a cron"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if err := s.RegisterAll("0 30 22 * * 1-5"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
