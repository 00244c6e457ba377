package model

import "errors"

var (
	// ErrNoPeaksFound means the series has no local maxima to anchor a trendline.
	ErrNoPeaksFound = errors.New("no peaks found in the data")
	// ErrDataUnavailable means the data source returned no bars for the range.
	ErrDataUnavailable = errors.New("no data available")
	// ErrDateNotInSeries means the requested date is not a bar of the series.
	ErrDateNotInSeries = errors.New("date not in series")
	// ErrStockNotFound means the symbol is not in the stock directory.
	ErrStockNotFound = errors.New("stock not found")
)
