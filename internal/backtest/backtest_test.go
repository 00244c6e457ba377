package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/strategy"
)

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// cyclicBars returns one bar per weekday in [from, to] except holidays, with a
// six-bar high cycle on a gentle uptrend so every month-long slice has peaks.
func cyclicBars(from, to string, holidays ...string) []model.OHLCV {
	skip := map[string]bool{}
	for _, h := range holidays {
		skip[h] = true
	}
	cycle := []float64{100, 102, 104, 103, 101, 99}
	var bars []model.OHLCV
	i := 0
	for d := day(from); !d.After(day(to)); d = d.AddDate(0, 0, 1) {
		if model.IsWeekend(d) || skip[d.Format(model.DateLayout)] {
			continue
		}
		h := cycle[i%len(cycle)] + float64(i)*0.1
		bars = append(bars, model.OHLCV{Date: d, Open: h - 1, High: h, Low: h - 2, Close: h - 0.5, Volume: 1e6})
		i++
	}
	return bars
}

// memStore records writes and resolves symbols from a fixed directory.
type memStore struct {
	mu       sync.Mutex
	ids      map[string]int64
	analyses map[string][]time.Time
	periods  map[string][]int
	forward  map[string]*model.ForwardReturnRecord
}

func newMemStore(symbols ...string) *memStore {
	s := &memStore{ids: map[string]int64{}, analyses: map[string][]time.Time{}, periods: map[string][]int{}, forward: map[string]*model.ForwardReturnRecord{}}
	for i, sym := range symbols {
		s.ids[sym] = int64(i + 1)
	}
	return s
}

func (s *memStore) SaveAnalysis(_ context.Context, _ int64, rec *model.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[rec.Symbol] = append(s.analyses[rec.Symbol], rec.Date)
	s.periods[rec.Symbol] = append(s.periods[rec.Symbol], rec.PeriodDays)
	return nil
}

func (s *memStore) SaveForwardReturns(_ context.Context, _ int64, rec *model.ForwardReturnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forward[rec.Symbol+"@"+rec.Date.Format(model.DateLayout)] = rec
	return nil
}

func (s *memStore) StockID(_ context.Context, symbol string) (int64, error) {
	if id, ok := s.ids[symbol]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%s: %w", symbol, model.ErrStockNotFound)
}

func (s *memStore) ListStocks(context.Context) ([]model.Stock, error) { return nil, nil }

func (s *memStore) UpsertStock(context.Context, *model.Stock) (int64, error) { return 0, nil }

func newTestWindower(f collector.Fetcher, store *memStore, m *metrics.Metrics, workers int) *Windower {
	return &Windower{
		Engine:   strategy.NewEngine(f),
		Fetcher:  collector.NewCollector(f, time.Second),
		Analyses: store,
		Forward:  store,
		Stocks:   store,
		Metrics:  m,
		Workers:  workers,
	}
}

func TestWindower_SkipsWeekendsAndMissingDates(t *testing.T) {
	mock := &collector.MockFetcher{DailyData: map[string][]model.OHLCV{
		"AAA": cyclicBars("2024-01-01", "2024-03-01", "2024-02-19"),
	}}
	store := newMemStore("AAA")
	m := metrics.New(prometheus.NewRegistry())
	w := newTestWindower(mock, store, m, 1)

	// Evaluation dates run from 2024-01-31 to 2024-03-01: 31 days, 8 weekend
	// days and one holiday.
	sum := w.Run(context.Background(), []string{"AAA"}, day("2024-01-01"), 60, 30)

	if sum.Kind != model.RunBacktest || sum.RunID == "" {
		t.Errorf("unexpected run identity: %q %q", sum.Kind, sum.RunID)
	}
	if sum.Skipped != 9 {
		t.Errorf("expected 9 skipped dates, got %d", sum.Skipped)
	}
	if sum.Total != 22 || sum.Succeeded != 22 || sum.Failed != 0 {
		t.Errorf("expected 22/22 analysed, got %d/%d (failed %d)", sum.Succeeded, sum.Total, sum.Failed)
	}
	if got := testutil.ToFloat64(m.SkippedTotal.WithLabelValues(metrics.SkipWeekend)); got != 8 {
		t.Errorf("expected 8 weekend skips, got %v", got)
	}
	if got := testutil.ToFloat64(m.SkippedTotal.WithLabelValues(metrics.SkipMissing)); got != 1 {
		t.Errorf("expected 1 missing-date skip, got %v", got)
	}

	dates := store.analyses["AAA"]
	if len(dates) != 22 {
		t.Fatalf("expected 22 stored analyses, got %d", len(dates))
	}
	for i, d := range dates {
		if model.IsWeekend(d) || d.Equal(day("2024-02-19")) {
			t.Errorf("analysed a skipped date %s", d.Format(model.DateLayout))
		}
		if i > 0 && !d.After(dates[i-1]) {
			t.Errorf("dates out of order at %d: %s after %s", i, d, dates[i-1])
		}
		if _, ok := store.forward["AAA@"+d.Format(model.DateLayout)]; !ok {
			t.Errorf("missing forward returns for %s", d.Format(model.DateLayout))
		}
	}
	if mock.Calls() != 1 {
		t.Errorf("expected a single fetch for the symbol, got %d", mock.Calls())
	}
}

func TestWindower_SymbolFailuresDoNotAbort(t *testing.T) {
	mock := &collector.MockFetcher{DailyData: map[string][]model.OHLCV{
		"AAA": cyclicBars("2024-01-01", "2024-03-01"),
		"BBB": cyclicBars("2024-01-01", "2024-03-01"),
	}}
	// BBB has data but no directory entry; CCC has no data.
	store := newMemStore("AAA", "CCC")
	w := newTestWindower(mock, store, nil, 3)

	sum := w.Run(context.Background(), []string{"AAA", "BBB", "CCC"}, day("2024-01-01"), 60, 30)

	if sum.Failed != 2 {
		t.Errorf("expected 2 failed symbols, got %d", sum.Failed)
	}
	if sum.Succeeded != 23 {
		t.Errorf("expected 23 analysed dates for AAA, got %d", sum.Succeeded)
	}
	if len(store.analyses["BBB"]) != 0 || len(store.analyses["CCC"]) != 0 {
		t.Errorf("failed symbols must not store analyses")
	}
}

func TestWindower_ShortSpanRunsNothing(t *testing.T) {
	mock := &collector.MockFetcher{DailyData: map[string][]model.OHLCV{
		"AAA": cyclicBars("2024-01-01", "2024-03-01"),
	}}
	w := newTestWindower(mock, newMemStore("AAA"), nil, 1)
	sum := w.Run(context.Background(), []string{"AAA"}, day("2024-01-01"), 20, 30)
	if sum.Total != 0 || sum.Skipped != 0 {
		t.Errorf("expected no evaluation dates, got total=%d skipped=%d", sum.Total, sum.Skipped)
	}
}

func TestWindower_FlatWindowsFailWithoutStopping(t *testing.T) {
	// Highs are flat until 2024-02-09; the cycle starting 2024-02-12 gives its
	// first peak on 2024-02-14.
	flat := cyclicBars("2024-01-01", "2024-02-09")
	for i := range flat {
		flat[i].Open, flat[i].High, flat[i].Low, flat[i].Close = 99, 100, 98, 99.5
	}
	bars := append(flat, cyclicBars("2024-02-12", "2024-03-01")...)
	mock := &collector.MockFetcher{DailyData: map[string][]model.OHLCV{"AAA": bars}}
	store := newMemStore("AAA")
	m := metrics.New(prometheus.NewRegistry())
	w := newTestWindower(mock, store, m, 1)

	sum := w.Run(context.Background(), []string{"AAA"}, day("2024-01-01"), 60, 30)

	if sum.Failed == 0 || sum.Succeeded == 0 {
		t.Fatalf("expected both failed and analysed dates, got %d failed, %d succeeded", sum.Failed, sum.Succeeded)
	}
	if sum.Total != sum.Failed+sum.Succeeded {
		t.Errorf("total %d != failed %d + succeeded %d", sum.Total, sum.Failed, sum.Succeeded)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(metrics.OutcomeNoPeaks)); got != float64(sum.Failed) {
		t.Errorf("expected %d no-peak outcomes, got %v", sum.Failed, got)
	}

	dates := store.analyses["AAA"]
	if len(dates) != sum.Succeeded {
		t.Fatalf("expected %d stored analyses, got %d", sum.Succeeded, len(dates))
	}
	for _, d := range dates {
		if !d.After(day("2024-02-14")) {
			t.Errorf("stored analysis for %s, before any peak exists", d.Format(model.DateLayout))
		}
	}
	if len(store.forward) != sum.Succeeded {
		t.Errorf("expected forward returns only for analysed dates, got %d", len(store.forward))
	}
}

func TestWindower_StoresWindowDaysAsPeriod(t *testing.T) {
	mock := &collector.MockFetcher{DailyData: map[string][]model.OHLCV{
		"AAA": cyclicBars("2024-01-01", "2024-03-01"),
	}}
	store := newMemStore("AAA")
	w := newTestWindower(mock, store, nil, 1)

	sum := w.Run(context.Background(), []string{"AAA"}, day("2024-01-01"), 60, 45)
	if sum.Succeeded == 0 {
		t.Fatal("expected analysed dates")
	}
	for _, p := range store.periods["AAA"] {
		if p != 45 {
			t.Fatalf("expected analysis period 45, got %d", p)
		}
	}
}

func forwardSeries(n int) *model.PriceSeries {
	bars := make([]model.OHLCV, n)
	d := day("2024-01-01")
	for i := range bars {
		// Highs rise then fall so window maxima differ from the last bar.
		h := 100 + float64(i%7)
		bars[i] = model.OHLCV{Date: d.AddDate(0, 0, i), High: h, Low: h - 5, Close: h - 1}
	}
	return &model.PriceSeries{Symbol: "FWD", Bars: bars}
}

func TestForwardReturns_AllHorizons(t *testing.T) {
	series := forwardSeries(40)
	pos := 5
	rec, err := ForwardReturns(series, series.Bars[pos].Date)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range model.ForwardHorizons {
		f := rec.Horizon(n)
		if !f.Valid {
			t.Errorf("horizon %d: expected a value", n)
			continue
		}
		want := series.Bars[pos].High
		for _, b := range series.Bars[pos : pos+n] {
			want = max(want, b.High)
		}
		if f.Float64 != want {
			t.Errorf("horizon %d: expected %v, got %v", n, want, f.Float64)
		}
	}
}

func TestForwardReturns_ThreeFutureBars(t *testing.T) {
	series := forwardSeries(10)
	pos := 6 // bars 7, 8 and 9 follow
	rec, err := ForwardReturns(series, series.Bars[pos].Date)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.MaxPrice1d.Valid || !rec.MaxPrice2d.Valid {
		t.Error("expected 1d and 2d horizons")
	}
	for _, n := range []int{5, 10, 15, 20} {
		if rec.Horizon(n).Valid {
			t.Errorf("horizon %d: expected null", n)
		}
	}
	if rec.MaxPrice1d.Float64 != series.Bars[pos].High {
		t.Errorf("1d horizon should be the evaluation bar's high, got %v", rec.MaxPrice1d.Float64)
	}
}

func TestForwardReturns_DateNotInSeries(t *testing.T) {
	_, err := ForwardReturns(forwardSeries(10), day("2023-06-01"))
	if !errors.Is(err, model.ErrDateNotInSeries) {
		t.Errorf("expected ErrDateNotInSeries, got %v", err)
	}
}
