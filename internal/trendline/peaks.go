package trendline

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"BreakoutSentinel/internal/model"
)

// DefaultPeakDistance is the minimum spacing, in bars, between two retained peaks.
const DefaultPeakDistance = 5

// Peak is a local maximum of the High series.
type Peak struct {
	Index int
	Price float64
}

// FindPeaks locates local maxima of High, excluding the most recent bar, keeps
// only peaks at least distance bars apart (higher peaks win), and returns them in
// chronological order together with the highest of them.
func FindPeaks(bars []model.OHLCV, distance int) ([]Peak, Peak, error) {
	if distance < 1 {
		distance = 1
	}
	highs := make([]float64, 0, len(bars))
	for i := 0; i < len(bars)-1; i++ {
		highs = append(highs, bars[i].High)
	}

	candidates := localMaxima(highs)
	peaks := filterByDistance(highs, candidates, distance)
	if len(peaks) == 0 {
		return nil, Peak{}, fmt.Errorf("%d bars: %w", len(bars), model.ErrNoPeaksFound)
	}

	out := lo.Map(peaks, func(idx int, _ int) Peak {
		return Peak{Index: idx, Price: highs[idx]}
	})
	ref := lo.MaxBy(out, func(a, b Peak) bool { return a.Price > b.Price })
	return out, ref, nil
}

// localMaxima returns indices that are strictly higher than the sample before
// and after them. A flat top counts once, at the middle of the plateau. The
// first and last samples are never maxima.
func localMaxima(x []float64) []int {
	var out []int
	last := len(x) - 1
	for i := 1; i < last; i++ {
		if !(x[i-1] < x[i]) {
			continue
		}
		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			out = append(out, (i+ahead-1)/2)
			i = ahead
		}
	}
	return out
}

// filterByDistance drops peaks closer than distance to a higher retained peak.
// Peaks are visited from highest to lowest; among equal heights the later peak
// is visited first.
func filterByDistance(x []float64, peaks []int, distance int) []int {
	if len(peaks) < 2 || distance <= 1 {
		return peaks
	}
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[peaks[order[a]]] < x[peaks[order[b]]] })

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
