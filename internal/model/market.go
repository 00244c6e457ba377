package model

import (
	"sort"
	"time"
)

// DateLayout is the calendar-date format used for keys, logs and persistence.
const DateLayout = "2006-01-02"

// OHLCV represents a single daily bar.
type OHLCV struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries holds daily bars for one symbol, ordered by strictly increasing date.
// A series is never mutated after it is fetched; Slice returns views over the same bars.
type PriceSeries struct {
	Symbol string  `json:"symbol"`
	Bars   []OHLCV `json:"bars"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar. The series must not be empty.
func (s *PriceSeries) Last() OHLCV {
	return s.Bars[len(s.Bars)-1]
}

// IndexOf returns the position of the bar dated on date's calendar day.
func (s *PriceSeries) IndexOf(date time.Time) (int, bool) {
	if s.Len() == 0 {
		return -1, false
	}
	day := Day(date)
	i := sort.Search(len(s.Bars), func(i int) bool { return !Day(s.Bars[i].Date).Before(day) })
	if i < len(s.Bars) && Day(s.Bars[i].Date).Equal(day) {
		return i, true
	}
	return -1, false
}

// Slice returns a view of the bars dated within [from, to], both ends inclusive.
func (s *PriceSeries) Slice(from, to time.Time) *PriceSeries {
	from, to = Day(from), Day(to)
	lo := sort.Search(len(s.Bars), func(i int) bool { return !Day(s.Bars[i].Date).Before(from) })
	hi := sort.Search(len(s.Bars), func(i int) bool { return Day(s.Bars[i].Date).After(to) })
	if hi < lo {
		hi = lo
	}
	return &PriceSeries{Symbol: s.Symbol, Bars: s.Bars[lo:hi:hi]}
}

// Closes extracts the close prices.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high prices.
func (s *PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Volumes extracts the traded volumes.
func (s *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}
