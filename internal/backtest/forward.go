package backtest

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"

	"BreakoutSentinel/internal/calculator"
	"BreakoutSentinel/internal/model"
)

// ForwardReturns labels date with the highest High reached over the next N bars,
// for each N in model.ForwardHorizons. The window for N covers bars
// [pos, pos+N) where pos is the position of date, so it includes the analysed bar.
// A horizon is null when the series ends before the window does.
func ForwardReturns(series *model.PriceSeries, date time.Time) (*model.ForwardReturnRecord, error) {
	pos, ok := series.IndexOf(date)
	if !ok {
		return nil, fmt.Errorf("forward returns %s %s: %w", series.Symbol, date.Format(model.DateLayout), model.ErrDateNotInSeries)
	}
	rec := &model.ForwardReturnRecord{Symbol: series.Symbol, Date: model.Day(date)}
	for _, n := range model.ForwardHorizons {
		if pos+n > series.Len() {
			continue
		}
		high, _, err := calculator.CalculateHighLow(series.Bars[pos : pos+n])
		if err != nil {
			return nil, err
		}
		*rec.Horizon(n) = null.FloatFrom(high)
	}
	return rec, nil
}
