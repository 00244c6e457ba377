package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// SignalKind classifies where the latest close sits relative to the resistance trendline.
type SignalKind string

const (
	SignalFreshBreakout    SignalKind = "FRESH_BREAKOUT"
	SignalExtendedBreakout SignalKind = "EXTENDED_BREAKOUT"
	SignalBelowTrendline   SignalKind = "BELOW_TRENDLINE"
	SignalNoTrendline      SignalKind = "NO_TRENDLINE"
)

// BreakoutMetrics groups every trendline-dependent field of an analysis.
// It exists as a whole or not at all: an AnalysisRecord without a trendline
// carries a nil *BreakoutMetrics.
type BreakoutMetrics struct {
	TrendlineValue     float64
	BreakoutPercentage float64
	ConsecutiveDays    int
	Accuracy           int
}

// AnalysisRecord is the output of one signal-engine run.
// Unique key: (Symbol, Date, PeriodDays).
type AnalysisRecord struct {
	Symbol     string
	Date       time.Time
	PeriodDays int
	ClosePrice float64
	Breakout   *BreakoutMetrics
	Indicators
}

// HasTrendline reports whether a resistance trendline could be built.
func (r *AnalysisRecord) HasTrendline() bool {
	return r.Breakout != nil
}

// ForwardHorizons lists the forward-return horizons in trading bars.
var ForwardHorizons = []int{1, 2, 5, 10, 15, 20}

// ForwardReturnRecord holds the realized maximum High after an analysis date.
// Unique key: (Symbol, Date). A horizon is null when fewer bars than required exist.
type ForwardReturnRecord struct {
	Symbol      string
	Date        time.Time
	MaxPrice1d  null.Float
	MaxPrice2d  null.Float
	MaxPrice5d  null.Float
	MaxPrice10d null.Float
	MaxPrice15d null.Float
	MaxPrice20d null.Float
}

// Horizon returns the field for horizon n, or nil if n is not a known horizon.
func (f *ForwardReturnRecord) Horizon(n int) *null.Float {
	switch n {
	case 1:
		return &f.MaxPrice1d
	case 2:
		return &f.MaxPrice2d
	case 5:
		return &f.MaxPrice5d
	case 10:
		return &f.MaxPrice10d
	case 15:
		return &f.MaxPrice15d
	case 20:
		return &f.MaxPrice20d
	}
	return nil
}

// BreakoutOutcome joins a stored analysis with its forward returns.
type BreakoutOutcome struct {
	Analysis AnalysisRecord
	Forward  ForwardReturnRecord
}
