package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"BreakoutSentinel/internal/calculator"
	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/trendline"
)

// DaysPerMonth converts an analysis period in months to calendar days.
const DaysPerMonth = 30

// Engine produces one AnalysisRecord per (symbol, evaluation date, period).
type Engine struct {
	Fetcher      collector.Fetcher
	PeakDistance int
}

// NewEngine creates an engine that fetches through f when no series is supplied.
func NewEngine(f collector.Fetcher) *Engine {
	return &Engine{Fetcher: f, PeakDistance: trendline.DefaultPeakDistance}
}

// Analyze runs peak detection, trendline fitting, breakout scoring and the
// indicator bank. When series is nil, the window [evalDate - periodMonths*30d,
// evalDate] is fetched first; otherwise series is analysed as given.
// The result depends only on the bars, evalDate and periodMonths.
func (e *Engine) Analyze(ctx context.Context, symbol string, evalDate time.Time, periodMonths int, series *model.PriceSeries) (*model.AnalysisRecord, error) {
	if periodMonths < 1 {
		return nil, fmt.Errorf("analyze %s: period must be at least one month, got %d", symbol, periodMonths)
	}
	evalDate = model.Day(evalDate)
	periodDays := periodMonths * DaysPerMonth

	if series == nil {
		if e.Fetcher == nil {
			return nil, errors.New("analyze: no series and no fetcher")
		}
		var err error
		series, err = e.Fetcher.FetchDailyBars(ctx, symbol, evalDate.AddDate(0, 0, -periodDays), evalDate)
		if err != nil {
			return nil, err
		}
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("analyze %s %s: %w", symbol, evalDate.Format(model.DateLayout), model.ErrDataUnavailable)
	}

	bars := series.Bars
	peaks, ref, err := trendline.FindPeaks(bars, e.peakDistance())
	if err != nil {
		return nil, fmt.Errorf("analyze %s %s: %w", symbol, evalDate.Format(model.DateLayout), err)
	}
	line, _ := trendline.Fit(peaks, ref)

	ind, err := calculator.ComputeIndicators(series)
	if err != nil {
		return nil, fmt.Errorf("indicators %s: %w", symbol, err)
	}

	return &model.AnalysisRecord{
		Symbol:     symbol,
		Date:       evalDate,
		PeriodDays: periodDays,
		ClosePrice: series.Last().Close,
		Breakout:   trendline.Evaluate(bars, peaks, line),
		Indicators: ind,
	}, nil
}

func (e *Engine) peakDistance() int {
	if e.PeakDistance > 0 {
		return e.PeakDistance
	}
	return trendline.DefaultPeakDistance
}
