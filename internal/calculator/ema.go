package calculator

// EMASeries returns the exponential moving average of values for the given span.
// EMA[0] is the first value; EMA[t] = v[t]*a + EMA[t-1]*(1-a) with a = 2/(span+1).
func EMASeries(values []float64, span int) []float64 {
	if span <= 0 || len(values) == 0 {
		return nil
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for t := 1; t < len(values); t++ {
		out[t] = values[t]*alpha + out[t-1]*(1-alpha)
	}
	return out
}

// CalculateEMA returns the most recent EMA value for the given span.
func CalculateEMA(values []float64, span int) (float64, error) {
	if span <= 0 {
		return 0, errPeriod
	}
	if len(values) == 0 {
		return 0, errEmpty
	}
	series := EMASeries(values, span)
	return series[len(series)-1], nil
}

// CalculateMACD returns the latest MACD line (fast EMA minus slow EMA) and its
// signal line (EMA of the MACD line).
func CalculateMACD(closes []float64, fast, slow, signal int) (macd, sig float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return 0, 0, errPeriod
	}
	if len(closes) == 0 {
		return 0, 0, errEmpty
	}
	fastEMA := EMASeries(closes, fast)
	slowEMA := EMASeries(closes, slow)
	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	signalEMA := EMASeries(line, signal)
	n := len(line) - 1
	return line[n], signalEMA[n], nil
}
