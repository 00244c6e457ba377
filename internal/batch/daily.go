package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/recorder"
	"BreakoutSentinel/internal/strategy"
)

// DefaultPeriodMonths is the look-back of the daily analysis.
const DefaultPeriodMonths = 3

// ErrWeekend is returned when a daily run is requested for a Saturday or Sunday.
var ErrWeekend = errors.New("analysis date falls on a weekend")

// Store is the persistence a daily run needs.
type Store interface {
	recorder.StockDirectory
	recorder.AnalysisStore
}

// Daily analyses every stock of the directory as of one date and stores the results.
type Daily struct {
	Engine       *strategy.Engine
	Store        Store
	Metrics      *metrics.Metrics
	Workers      int
	PeriodMonths int
}

// NewDaily creates a daily runner. The engine must carry a Fetcher.
func NewDaily(engine *strategy.Engine, store Store, m *metrics.Metrics, workers int) *Daily {
	return &Daily{
		Engine:       engine,
		Store:        store,
		Metrics:      m,
		Workers:      workers,
		PeriodMonths: DefaultPeriodMonths,
	}
}

type outcome struct {
	rec *model.AnalysisRecord
	err error
}

// Run analyses all stocks as of date. A failing stock is logged and counted; the
// returned error is reserved for runs that cannot start at all.
func (d *Daily) Run(ctx context.Context, date time.Time) (model.RunSummary, error) {
	date = model.Day(date)
	summary := model.RunSummary{
		RunID:   uuid.NewString(),
		Kind:    model.RunDaily,
		Started: time.Now(),
	}
	if model.IsWeekend(date) {
		log.Printf("[WARN] %s falls on a weekend, no analysis will be performed", date.Format(model.DateLayout))
		return summary, fmt.Errorf("%s: %w", date.Format(model.DateLayout), ErrWeekend)
	}

	stocks, err := d.Store.ListStocks(ctx)
	if err != nil {
		return summary, fmt.Errorf("daily run: %w", err)
	}
	log.Printf("[INFO] daily run %s: analysing %d stocks for %s", summary.RunID, len(stocks), date.Format(model.DateLayout))

	results := make([]outcome, len(stocks))
	var g errgroup.Group
	g.SetLimit(max(d.Workers, 1))
	for i, stock := range stocks {
		g.Go(func() error {
			rec, err := d.analyse(ctx, stock, date)
			results[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	// Workers report through results and never return an error.
	_ = g.Wait()

	summary.Total = len(stocks)
	for i, res := range results {
		if res.err != nil {
			summary.Failed++
			log.Printf("[WARN] error analysing %s: %v", stocks[i].Symbol, res.err)
			continue
		}
		summary.Succeeded++
	}
	summary.Breakouts = lo.FilterMap(results, func(res outcome, _ int) (model.AnalysisRecord, bool) {
		if res.err != nil || !strategy.IsFreshBreakout(res.rec) {
			return model.AnalysisRecord{}, false
		}
		return *res.rec, true
	})
	for range summary.Breakouts {
		d.Metrics.FreshBreakout()
	}

	summary.Finished = time.Now()
	d.Metrics.RecordRun(&summary)
	log.Printf("[INFO] %d out of %d successfully analysed (%.2f%%)", summary.Succeeded, summary.Total, summary.SuccessRatio())
	return summary, nil
}

func (d *Daily) analyse(ctx context.Context, stock model.Stock, date time.Time) (*model.AnalysisRecord, error) {
	started := time.Now()
	rec, err := d.Engine.Analyze(ctx, stock.Symbol, date, d.periodMonths(), nil)
	switch {
	case errors.Is(err, model.ErrDataUnavailable):
		d.Metrics.FetchFailed()
		d.Metrics.ObserveAnalysis(metrics.OutcomeError, time.Since(started))
		return nil, err
	case errors.Is(err, model.ErrNoPeaksFound):
		d.Metrics.ObserveAnalysis(metrics.OutcomeNoPeaks, time.Since(started))
		return nil, err
	case err != nil:
		d.Metrics.ObserveAnalysis(metrics.OutcomeError, time.Since(started))
		return nil, err
	}
	d.Metrics.ObserveAnalysis(metrics.OutcomeOK, time.Since(started))

	if err := d.Store.SaveAnalysis(ctx, stock.ID, rec); err != nil {
		return nil, err
	}
	log.Printf("[INFO] stored analysis for %s on %s (%s)", stock.Symbol, date.Format(model.DateLayout), strategy.Classify(rec))
	return rec, nil
}

func (d *Daily) periodMonths() int {
	if d.PeriodMonths > 0 {
		return d.PeriodMonths
	}
	return DefaultPeriodMonths
}
