package model

// Indicators holds the indicator bank computed from a price series.
// Every field is always populated; none of them depend on the trendline.
type Indicators struct {
	RSI             float64
	MACD            float64
	MACDSignal      float64
	BollingerUpper  float64
	BollingerMiddle float64
	BollingerLower  float64
	Volume          float64
	VolumeRatio     float64
	EMA9            float64
	EMA12           float64
	EMA21           float64
	EMA50           float64
}
