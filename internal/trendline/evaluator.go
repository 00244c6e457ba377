package trendline

import (
	"math"

	"BreakoutSentinel/internal/model"
)

// AccuracyTolerance is the relative distance from the line within which a peak
// counts as touching it.
const AccuracyTolerance = 0.02

// Evaluate scores a series against its trendline. It returns nil when line is
// nil, so the trendline-dependent fields are always absent together.
func Evaluate(bars []model.OHLCV, peaks []Peak, line *Line) *model.BreakoutMetrics {
	if line == nil || len(bars) == 0 {
		return nil
	}
	last := len(bars) - 1
	tl := line.ValueAt(last)
	return &model.BreakoutMetrics{
		TrendlineValue:     tl,
		BreakoutPercentage: (bars[last].Close - tl) / tl * 100,
		ConsecutiveDays:    ConsecutiveDaysAbove(bars, line),
		Accuracy:           Accuracy(bars, peaks, line),
	}
}

// Accuracy returns the integer percentage of peaks whose High lies within
// AccuracyTolerance of the trendline.
func Accuracy(bars []model.OHLCV, peaks []Peak, line *Line) int {
	if len(peaks) == 0 {
		return 0
	}
	within := 0
	for _, p := range peaks {
		tl := line.ValueAt(p.Index)
		if math.Abs((bars[p.Index].High-tl)/tl) <= AccuracyTolerance {
			within++
		}
	}
	return int(float64(within) / float64(len(peaks)) * 100)
}

// ConsecutiveDaysAbove counts the run of most recent bars closing above the line.
func ConsecutiveDaysAbove(bars []model.OHLCV, line *Line) int {
	days := 0
	for i := len(bars) - 1; i >= 0; i-- {
		if !(bars[i].Close > line.ValueAt(i)) {
			break
		}
		days++
	}
	return days
}
