package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"BreakoutSentinel/internal/model"
)

// NoopRecorder is a dry-run implementation used when no database is configured.
// It resolves symbols from an in-memory directory and discards every write.
type NoopRecorder struct {
	mu     sync.Mutex
	stocks []model.Stock
}

// NewNoopRecorder seeds the in-memory directory with stocks, numbering them from 1.
func NewNoopRecorder(stocks []model.Stock) *NoopRecorder {
	n := &NoopRecorder{}
	for i := range stocks {
		s := stocks[i]
		n.upsert(&s)
	}
	return n
}

func (n *NoopRecorder) upsert(stock *model.Stock) int64 {
	for i := range n.stocks {
		if n.stocks[i].Symbol == stock.Symbol {
			id := n.stocks[i].ID
			n.stocks[i] = *stock
			n.stocks[i].ID = id
			return id
		}
	}
	stock.ID = int64(len(n.stocks) + 1)
	n.stocks = append(n.stocks, *stock)
	return stock.ID
}

func (n *NoopRecorder) SaveAnalysis(_ context.Context, _ int64, _ *model.AnalysisRecord) error {
	return nil
}

func (n *NoopRecorder) SaveForwardReturns(_ context.Context, _ int64, _ *model.ForwardReturnRecord) error {
	return nil
}

func (n *NoopRecorder) StockID(_ context.Context, symbol string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.stocks {
		if s.Symbol == symbol {
			return s.ID, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", symbol, model.ErrStockNotFound)
}

func (n *NoopRecorder) ListStocks(_ context.Context) ([]model.Stock, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.Stock, len(n.stocks))
	copy(out, n.stocks)
	return out, nil
}

func (n *NoopRecorder) UpsertStock(_ context.Context, stock *model.Stock) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := *stock
	return n.upsert(&s), nil
}

func (n *NoopRecorder) TopBreakouts(_ context.Context, _ time.Time, _, _ int) ([]model.AnalysisRecord, error) {
	return nil, nil
}

func (n *NoopRecorder) FreshBreakouts(_ context.Context, _ string, _, _ time.Time) ([]model.BreakoutOutcome, error) {
	return nil, nil
}

func (n *NoopRecorder) Close() error { return nil }
