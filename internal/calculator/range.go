package calculator

import (
	"errors"
	"math"

	"BreakoutSentinel/internal/model"
)

// CalculateHighLow scans the given bars and returns the highest High and lowest Low.
func CalculateHighLow(bars []model.OHLCV) (high, low float64, err error) {
	if len(bars) == 0 {
		return 0, 0, errors.New("no bars provided")
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
	}
	return high, low, nil
}

// CalculateBollinger returns the Bollinger bands over the last period closes:
// the SMA as middle band and the middle band plus/minus k sample deviations.
func CalculateBollinger(closes []float64, period int, k float64) (upper, middle, lower float64, err error) {
	middle, err = CalculateSMA(closes, period)
	if err != nil {
		return 0, 0, 0, err
	}
	sd, err := CalculateStdDev(closes, period)
	if err != nil {
		return 0, 0, 0, err
	}
	return middle + k*sd, middle, middle - k*sd, nil
}

// CalculateVolumeRatio divides the latest volume by the period-average volume.
func CalculateVolumeRatio(volumes []float64, period int) (float64, error) {
	avg, err := CalculateSMA(volumes, period)
	if err != nil {
		return 0, err
	}
	if avg == 0 {
		return 0, nil
	}
	return volumes[len(volumes)-1] / avg, nil
}
