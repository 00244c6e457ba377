package collector

import (
	"context"
	"time"

	"BreakoutSentinel/internal/model"
)

// Fetcher defines the interface for fetching daily market data.
// Both start and end are inclusive calendar dates.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error)
	Name() string
}
