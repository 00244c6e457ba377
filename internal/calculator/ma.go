package calculator

import (
	"errors"
	"math"
)

var (
	errPeriod = errors.New("period must be positive")
	errEmpty  = errors.New("no values provided")
)

// CalculateSMA computes the simple moving average of the last period values.
// With fewer than period values it averages what is available.
func CalculateSMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(values) == 0 {
		return 0, errEmpty
	}
	window := tail(values, period)
	sum := 0.0
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window)), nil
}

// CalculateStdDev computes the sample standard deviation (n-1) of the last period values.
// A window of a single value has zero deviation.
func CalculateStdDev(values []float64, period int) (float64, error) {
	mean, err := CalculateSMA(values, period)
	if err != nil {
		return 0, err
	}
	window := tail(values, period)
	if len(window) < 2 {
		return 0, nil
	}
	sq := 0.0
	for _, v := range window {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(window)-1)), nil
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
