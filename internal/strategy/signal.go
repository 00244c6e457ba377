package strategy

import "BreakoutSentinel/internal/model"

// Classify maps an analysis to its breakout state. A fresh breakout is the
// first close above the trendline after at least one close at or below it.
func Classify(rec *model.AnalysisRecord) model.SignalKind {
	b := rec.Breakout
	switch {
	case b == nil:
		return model.SignalNoTrendline
	case b.BreakoutPercentage > 0 && b.ConsecutiveDays == 1:
		return model.SignalFreshBreakout
	case b.BreakoutPercentage > 0:
		return model.SignalExtendedBreakout
	default:
		return model.SignalBelowTrendline
	}
}

// IsFreshBreakout reports whether rec is a first-day breakout.
func IsFreshBreakout(rec *model.AnalysisRecord) bool {
	return Classify(rec) == model.SignalFreshBreakout
}
