package trendline

import (
	"math"

	"github.com/samber/lo"
)

// Line is a resistance trendline over bar indices.
type Line struct {
	Slope     float64
	Intercept float64
}

// ValueAt returns the trendline value at bar index i.
func (l *Line) ValueAt(i int) float64 {
	return l.Slope*float64(i) + l.Intercept
}

// Fit anchors a line on the reference peak and aims it at the later peak that
// gives the steepest slope. It returns false when no peak follows the reference.
func Fit(peaks []Peak, ref Peak) (*Line, bool) {
	later := lo.Filter(peaks, func(p Peak, _ int) bool { return p.Index > ref.Index })
	if len(later) == 0 {
		return nil, false
	}

	best := math.Inf(-1)
	for _, p := range later {
		slope := (p.Price - ref.Price) / float64(p.Index-ref.Index)
		if slope > best {
			best = slope
		}
	}
	return &Line{
		Slope:     best,
		Intercept: ref.Price - best*float64(ref.Index),
	}, true
}
