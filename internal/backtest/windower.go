package backtest

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"BreakoutSentinel/internal/collector"
	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/recorder"
	"BreakoutSentinel/internal/strategy"
)

// Backtest defaults.
const (
	DefaultTotalDays  = 365
	DefaultWindowDays = 90
)

// Windower replays the signal engine over sliding historical windows.
type Windower struct {
	Engine   *strategy.Engine
	Fetcher  collector.Fetcher
	Analyses recorder.AnalysisStore
	Forward  recorder.ForwardReturnStore
	Stocks   recorder.StockDirectory
	Metrics  *metrics.Metrics
	Workers  int
}

// NewWindower wires a windower whose engine analyses the slices it is handed.
func NewWindower(fetcher collector.Fetcher, rec recorder.Recorder, m *metrics.Metrics, workers int) *Windower {
	return &Windower{
		Engine:   strategy.NewEngine(fetcher),
		Fetcher:  fetcher,
		Analyses: rec,
		Forward:  rec,
		Stocks:   rec,
		Metrics:  m,
		Workers:  workers,
	}
}

// Run backtests every symbol over [start, start+totalDays]. For each offset i in
// 0..totalDays-windowDays the window [start+i, start+i+windowDays] is analysed
// as of its last day. Evaluation dates on weekends or missing from the series
// are skipped. Failures are logged and counted; they never stop the run.
//
// Every analysed date and every symbol that could not be fetched or resolved
// counts towards Total. Records are stored with windowDays as their analysis
// period, so windows that are not whole months keep distinct keys.
func (w *Windower) Run(ctx context.Context, symbols []string, start time.Time, totalDays, windowDays int) model.RunSummary {
	summary := model.RunSummary{
		RunID:   uuid.NewString(),
		Kind:    model.RunBacktest,
		Started: time.Now(),
	}
	start = model.Day(start)
	log.Printf("[INFO] backtest %s: %d symbols from %s, span %dd, window %dd",
		summary.RunID, len(symbols), start.Format(model.DateLayout), totalDays, windowDays)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(w.Workers, 1))
	for _, symbol := range symbols {
		g.Go(func() error {
			res := w.runSymbol(ctx, symbol, start, totalDays, windowDays)
			mu.Lock()
			summary.Merge(res)
			mu.Unlock()
			return nil
		})
	}
	// Symbol runs merge into summary and never return an error.
	_ = g.Wait()

	sort.SliceStable(summary.Breakouts, func(i, j int) bool {
		a, b := summary.Breakouts[i], summary.Breakouts[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Symbol < b.Symbol
	})
	summary.Finished = time.Now()
	w.Metrics.RecordRun(&summary)
	log.Printf("[INFO] backtest %s done: %d out of %d successfully analysed (%.2f%%), %d dates skipped, %d fresh breakouts",
		summary.RunID, summary.Succeeded, summary.Total, summary.SuccessRatio(), summary.Skipped, len(summary.Breakouts))
	return summary
}

func (w *Windower) runSymbol(ctx context.Context, symbol string, start time.Time, totalDays, windowDays int) model.RunSummary {
	var res model.RunSummary

	series, err := w.Fetcher.FetchDailyBars(ctx, symbol, start, start.AddDate(0, 0, totalDays))
	if err != nil {
		log.Printf("[ERROR] backtest %s: %v", symbol, err)
		w.Metrics.FetchFailed()
		res.Total, res.Failed = 1, 1
		return res
	}
	stockID, err := w.Stocks.StockID(ctx, symbol)
	if err != nil {
		log.Printf("[ERROR] backtest %s: %v", symbol, err)
		res.Total, res.Failed = 1, 1
		return res
	}

	periodMonths := max(windowDays/strategy.DaysPerMonth, 1)
	for i := 0; i <= totalDays-windowDays; i++ {
		if ctx.Err() != nil {
			log.Printf("[WARN] backtest %s stopped: %v", symbol, ctx.Err())
			break
		}
		candidate := start.AddDate(0, 0, i)
		evalDate := candidate.AddDate(0, 0, windowDays)

		if model.IsWeekend(evalDate) {
			res.Skipped++
			w.Metrics.Skip(metrics.SkipWeekend)
			continue
		}
		if _, ok := series.IndexOf(evalDate); !ok {
			res.Skipped++
			w.Metrics.Skip(metrics.SkipMissing)
			continue
		}

		res.Total++
		rec, err := w.evaluate(ctx, symbol, stockID, series, candidate, evalDate, periodMonths, windowDays)
		if err != nil {
			res.Failed++
			log.Printf("[WARN] backtest %s %s: %v", symbol, evalDate.Format(model.DateLayout), err)
			continue
		}
		res.Succeeded++
		if strategy.IsFreshBreakout(rec) {
			w.Metrics.FreshBreakout()
			res.Breakouts = append(res.Breakouts, *rec)
		}
	}
	log.Printf("[INFO] backtest %s: %d/%d dates analysed, %d skipped", symbol, res.Succeeded, res.Total, res.Skipped)
	return res
}

func (w *Windower) evaluate(ctx context.Context, symbol string, stockID int64, series *model.PriceSeries, candidate, evalDate time.Time, periodMonths, windowDays int) (*model.AnalysisRecord, error) {
	started := time.Now()
	rec, err := w.Engine.Analyze(ctx, symbol, evalDate, periodMonths, series.Slice(candidate, evalDate))
	switch {
	case errors.Is(err, model.ErrNoPeaksFound):
		w.Metrics.ObserveAnalysis(metrics.OutcomeNoPeaks, time.Since(started))
		return nil, err
	case err != nil:
		w.Metrics.ObserveAnalysis(metrics.OutcomeError, time.Since(started))
		return nil, err
	}
	w.Metrics.ObserveAnalysis(metrics.OutcomeOK, time.Since(started))
	rec.PeriodDays = windowDays

	if err := w.Analyses.SaveAnalysis(ctx, stockID, rec); err != nil {
		return nil, err
	}
	fwd, err := ForwardReturns(series, evalDate)
	if err != nil {
		return nil, err
	}
	if err := w.Forward.SaveForwardReturns(ctx, stockID, fwd); err != nil {
		return nil, err
	}
	return rec, nil
}
