package recorder

import (
	"context"
	"time"

	"BreakoutSentinel/internal/model"
)

// AnalysisStore persists signal-engine output. Writes are insert-or-ignore
// on (stock, date, period).
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, stockID int64, rec *model.AnalysisRecord) error
}

// ForwardReturnStore persists forward-return labels. Writes overwrite an
// existing row for the same (stock, date).
type ForwardReturnStore interface {
	SaveForwardReturns(ctx context.Context, stockID int64, rec *model.ForwardReturnRecord) error
}

// StockDirectory resolves symbols to stock ids.
type StockDirectory interface {
	StockID(ctx context.Context, symbol string) (int64, error)
	ListStocks(ctx context.Context) ([]model.Stock, error)
	UpsertStock(ctx context.Context, stock *model.Stock) (int64, error)
}

// BreakoutReader answers the read-side queries over stored analyses.
type BreakoutReader interface {
	// TopBreakouts returns the analyses of date that have a trendline, ordered by
	// breakout percentage descending.
	TopBreakouts(ctx context.Context, date time.Time, limit, offset int) ([]model.AnalysisRecord, error)
	// FreshBreakouts returns first-day breakouts within [from, to] joined with their
	// forward returns. An empty symbol matches every stock.
	FreshBreakouts(ctx context.Context, symbol string, from, to time.Time) ([]model.BreakoutOutcome, error)
}

// Recorder is the full persistence surface used by the binaries.
type Recorder interface {
	AnalysisStore
	ForwardReturnStore
	StockDirectory
	BreakoutReader
	Close() error
}
