package collector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"BreakoutSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData map[string][]model.OHLCV // keyed by symbol
	Err       error

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.DailyData != nil {
		full := &model.PriceSeries{Symbol: symbol, Bars: m.DailyData[symbol]}
		return full.Slice(start, end), nil
	}
	return &model.PriceSeries{Symbol: symbol, Bars: generateMockBars(m.Price, start, end)}, nil
}

// Calls returns how many times FetchDailyBars was invoked.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// generateMockBars produces one weekday bar per calendar day in [start, end].
func generateMockBars(basePrice float64, start, end time.Time) []model.OHLCV {
	var bars []model.OHLCV
	i := 0
	for d := model.Day(start); !d.After(model.Day(end)); d = d.AddDate(0, 0, 1) {
		if model.IsWeekend(d) {
			continue
		}
		p := basePrice * (1 + 0.02*float64(i%7-3)/3 + float64(i)*0.001)
		bars = append(bars, model.OHLCV{
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
		i++
	}
	return bars
}

// Collector wraps a Fetcher with a per-call timeout and normalizes its output.
type Collector struct {
	Fetcher Fetcher
	Timeout time.Duration
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, timeout time.Duration) *Collector {
	return &Collector{Fetcher: fetcher, Timeout: timeout}
}

func (c *Collector) Name() string { return c.Fetcher.Name() }

// FetchDailyBars fetches the bars of symbol within [start, end]. Bars are sorted,
// deduplicated by date and clipped to the range; an empty result is ErrDataUnavailable.
func (c *Collector) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	started := time.Now()
	series, err := c.Fetcher.FetchDailyBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", symbol, c.Fetcher.Name(), err)
	}
	series = normalize(symbol, series, start, end)
	if series.Len() == 0 {
		return nil, fmt.Errorf("%s %s..%s: %w", symbol,
			start.Format(model.DateLayout), end.Format(model.DateLayout), model.ErrDataUnavailable)
	}
	log.Printf("[INFO] fetched %d bars for %s (%s..%s) in %v", series.Len(), symbol,
		start.Format(model.DateLayout), end.Format(model.DateLayout), time.Since(started).Round(time.Millisecond))
	return series, nil
}

func normalize(symbol string, series *model.PriceSeries, start, end time.Time) *model.PriceSeries {
	if series == nil {
		return &model.PriceSeries{Symbol: symbol}
	}
	bars := make([]model.OHLCV, 0, len(series.Bars))
	for _, b := range series.Bars {
		b.Date = model.Day(b.Date)
		bars = append(bars, b)
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Date.Equal(b.Date) {
			out[len(out)-1] = b // keep the latest print of a day
			continue
		}
		out = append(out, b)
	}
	clean := &model.PriceSeries{Symbol: symbol, Bars: out}
	return clean.Slice(start, end)
}
