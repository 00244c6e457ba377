package calculator

import (
	"errors"

	"BreakoutSentinel/internal/model"
)

// Indicator bank parameters.
const (
	RSIPeriod       = 14
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	BollingerPeriod = 20
	BollingerWidth  = 2.0
	VolumePeriod    = 20
)

// ComputeIndicators runs the whole indicator bank over a price series.
func ComputeIndicators(series *model.PriceSeries) (model.Indicators, error) {
	if series.Len() == 0 {
		return model.Indicators{}, errors.New("empty price series")
	}
	closes := series.Closes()
	volumes := series.Volumes()

	var ind model.Indicators
	var err error

	if ind.RSI, err = CalculateRSI(closes, RSIPeriod); err != nil {
		return ind, err
	}
	if ind.MACD, ind.MACDSignal, err = CalculateMACD(closes, MACDFast, MACDSlow, MACDSignal); err != nil {
		return ind, err
	}
	if ind.BollingerUpper, ind.BollingerMiddle, ind.BollingerLower, err = CalculateBollinger(closes, BollingerPeriod, BollingerWidth); err != nil {
		return ind, err
	}
	ind.Volume = volumes[len(volumes)-1]
	if ind.VolumeRatio, err = CalculateVolumeRatio(volumes, VolumePeriod); err != nil {
		return ind, err
	}

	emas := []struct {
		span int
		dst  *float64
	}{
		{9, &ind.EMA9},
		{12, &ind.EMA12},
		{21, &ind.EMA21},
		{50, &ind.EMA50},
	}
	for _, e := range emas {
		if *e.dst, err = CalculateEMA(closes, e.span); err != nil {
			return ind, err
		}
	}
	return ind, nil
}
