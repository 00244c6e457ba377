package calculator

// CalculateRSI computes RSI from simple averages of the last period close-to-close
// gains and losses. With fewer than period+1 closes it uses every available change.
// Returns 50.0 when there is no change at all, and 100.0 when the average loss is zero.
func CalculateRSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errPeriod
	}
	if len(closes) < 2 {
		return 50.0, nil // no deltas to average
	}

	start := len(closes) - period
	if start < 1 {
		start = 1
	}
	var avgGain, avgLoss float64
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change // make positive
		}
	}
	n := float64(len(closes) - start)
	avgGain /= n
	avgLoss /= n

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
