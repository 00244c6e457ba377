package trendline

import (
	"errors"
	"math"
	"testing"
	"time"

	"BreakoutSentinel/internal/model"
)

func barsFromHighs(highs []float64) []model.OHLCV {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.OHLCV, len(highs))
	for i, h := range highs {
		bars[i] = model.OHLCV{Date: start.AddDate(0, 0, i), Open: h - 1, High: h, Low: h - 2, Close: h - 0.5, Volume: 1e6}
	}
	return bars
}

// breakoutHighs builds 40 bars: five descending resistance peaks followed by a
// five-bar rally through the line.
func breakoutHighs() []float64 {
	highs := make([]float64, 40)
	for i := range highs {
		highs[i] = 100
	}
	highs[5] = 120
	highs[12] = 116
	highs[19] = 108
	highs[26] = 111
	highs[33] = 110
	for i, h := range []float64{112, 114, 116, 118, 120} {
		highs[35+i] = h
	}
	return highs
}

func TestFindPeaks_BreakoutScenario(t *testing.T) {
	bars := barsFromHighs(breakoutHighs())
	peaks, ref, err := FindPeaks(bars, DefaultPeakDistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIdx := []int{5, 12, 19, 26, 33}
	if len(peaks) != len(wantIdx) {
		t.Fatalf("expected %d peaks, got %d (%v)", len(wantIdx), len(peaks), peaks)
	}
	for i, p := range peaks {
		if p.Index != wantIdx[i] {
			t.Errorf("peak %d: expected index %d, got %d", i, wantIdx[i], p.Index)
		}
	}
	if ref.Index != 5 || ref.Price != 120 {
		t.Errorf("expected reference peak 5@120, got %d@%.1f", ref.Index, ref.Price)
	}
}

func TestFindPeaks_NoPeaks(t *testing.T) {
	decreasing := make([]float64, 30)
	for i := range decreasing {
		decreasing[i] = 200 - float64(i)
	}
	tests := []struct {
		name  string
		highs []float64
	}{
		{"monotonically decreasing", decreasing},
		{"too short", []float64{10, 11}},
		{"empty", nil},
		{"flat", []float64{5, 5, 5, 5, 5, 5}},
	}
	for _, tt := range tests {
		_, _, err := FindPeaks(barsFromHighs(tt.highs), DefaultPeakDistance)
		if !errors.Is(err, model.ErrNoPeaksFound) {
			t.Errorf("%s: expected ErrNoPeaksFound, got %v", tt.name, err)
		}
	}
}

func TestFindPeaks_ExcludesFinalBar(t *testing.T) {
	// The only local maximum would be the final bar.
	highs := []float64{10, 9, 8, 7, 6, 5, 50}
	_, _, err := FindPeaks(barsFromHighs(highs), 1)
	if !errors.Is(err, model.ErrNoPeaksFound) {
		t.Fatalf("expected ErrNoPeaksFound, got %v", err)
	}

	highs = []float64{10, 12, 10, 9, 8, 7, 50, 40, 45}
	peaks, _, err := FindPeaks(barsFromHighs(highs), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(peaks) != 2 || peaks[1].Index != 6 {
		t.Errorf("expected peaks at 1 and 6, got %v", peaks)
	}
}

func TestFindPeaks_Distance(t *testing.T) {
	highs := []float64{1, 2, 3, 10, 4, 12, 5, 4, 3, 2, 1, 1}
	peaks, ref, err := FindPeaks(barsFromHighs(highs), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(peaks) != 1 || peaks[0].Index != 5 {
		t.Errorf("distance 5: expected only the higher peak at 5, got %v", peaks)
	}
	if ref.Index != 5 {
		t.Errorf("expected reference at 5, got %d", ref.Index)
	}

	peaks, _, err = FindPeaks(barsFromHighs(highs), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(peaks) != 2 {
		t.Errorf("distance 1: expected both peaks, got %v", peaks)
	}
}

func TestFindPeaks_Plateau(t *testing.T) {
	highs := []float64{1, 3, 3, 3, 1, 1, 1}
	peaks, _, err := FindPeaks(barsFromHighs(highs), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(peaks) != 1 || peaks[0].Index != 2 {
		t.Errorf("expected plateau peak at middle index 2, got %v", peaks)
	}
}

func TestFit_SteepestSlope(t *testing.T) {
	bars := barsFromHighs(breakoutHighs())
	peaks, ref, err := FindPeaks(bars, DefaultPeakDistance)
	if err != nil {
		t.Fatal(err)
	}
	line, ok := Fit(peaks, ref)
	if !ok {
		t.Fatal("expected a trendline")
	}
	wantSlope := (110.0 - 120.0) / 28.0
	if math.Abs(line.Slope-wantSlope) > 1e-12 {
		t.Errorf("expected slope %f, got %f", wantSlope, line.Slope)
	}
	if math.Abs(line.ValueAt(5)-120) > 1e-9 {
		t.Errorf("line must pass through the reference peak, got %f", line.ValueAt(5))
	}
}

func TestFit_AbsentWhenReferenceIsLastPeak(t *testing.T) {
	peaks := []Peak{{Index: 3, Price: 10}, {Index: 9, Price: 12}, {Index: 15, Price: 14}}
	line, ok := Fit(peaks, peaks[2])
	if ok || line != nil {
		t.Fatalf("expected absent trendline, got %+v", line)
	}
	if m := Evaluate(barsFromHighs(make([]float64, 20)), peaks, line); m != nil {
		t.Errorf("expected nil metrics without a trendline, got %+v", m)
	}
}

func TestEvaluate_BreakoutScenario(t *testing.T) {
	bars := barsFromHighs(breakoutHighs())
	peaks, ref, _ := FindPeaks(bars, DefaultPeakDistance)
	line, _ := Fit(peaks, ref)

	m := Evaluate(bars, peaks, line)
	if m == nil {
		t.Fatal("expected metrics")
	}
	tl := line.ValueAt(39)
	if math.Abs(m.TrendlineValue-tl) > 1e-12 {
		t.Errorf("trendline value: expected %f, got %f", tl, m.TrendlineValue)
	}
	wantBreakout := (119.5 - tl) / tl * 100
	if math.Abs(m.BreakoutPercentage-wantBreakout) > 1e-9 || m.BreakoutPercentage <= 0 {
		t.Errorf("breakout: expected %f, got %f", wantBreakout, m.BreakoutPercentage)
	}
	if m.ConsecutiveDays != 5 {
		t.Errorf("expected 5 consecutive days above, got %d", m.ConsecutiveDays)
	}
	// Peak 19 sits about 6% under the line; the other four touch it.
	if m.Accuracy != 80 {
		t.Errorf("expected accuracy 80, got %d", m.Accuracy)
	}
}

func TestConsecutiveDaysAbove_StopsAtFirstBreak(t *testing.T) {
	line := &Line{Slope: 0, Intercept: 100}
	closes := []float64{101, 102, 99, 103, 104, 100, 105}
	bars := make([]model.OHLCV, len(closes))
	for i, c := range closes {
		bars[i] = model.OHLCV{Close: c, High: c}
	}
	if got := ConsecutiveDaysAbove(bars, line); got != 1 {
		t.Errorf("expected streak 1 (close equal to line breaks it), got %d", got)
	}
	bars[len(bars)-1].Close = 95
	if got := ConsecutiveDaysAbove(bars, line); got != 0 {
		t.Errorf("expected streak 0, got %d", got)
	}
}

func TestAccuracy_Range(t *testing.T) {
	bars := barsFromHighs(breakoutHighs())
	peaks, ref, _ := FindPeaks(bars, DefaultPeakDistance)
	line, _ := Fit(peaks, ref)
	first := Accuracy(bars, peaks, line)
	second := Accuracy(bars, peaks, line)
	if first != second {
		t.Errorf("accuracy not deterministic: %d vs %d", first, second)
	}
	if first < 0 || first > 100 {
		t.Errorf("accuracy out of range: %d", first)
	}
	far := &Line{Slope: 0, Intercept: 1000}
	if got := Accuracy(bars, peaks, far); got != 0 {
		t.Errorf("expected 0 accuracy for a distant line, got %d", got)
	}
}
