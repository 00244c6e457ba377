package model

import "time"

// Stock is an entry of the stock directory.
type Stock struct {
	ID       int64  `db:"stock_id" yaml:"-"`
	Symbol   string `db:"stock_symbol" yaml:"symbol"`
	Name     string `db:"stock_name" yaml:"name"`
	Sector   string `db:"sector" yaml:"sector"`
	Exchange string `db:"exchange" yaml:"exchange"`
}

// RunKind identifies what produced a RunSummary.
type RunKind string

const (
	RunDaily    RunKind = "DAILY"
	RunBacktest RunKind = "BACKTEST"
)

// RunSummary counts the outcome of a batch or backtest run.
type RunSummary struct {
	RunID     string
	Kind      RunKind
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Started   time.Time
	Finished  time.Time
	Breakouts []AnalysisRecord // fresh breakouts found during the run
}

// SuccessRatio returns Succeeded/Total as a percentage, 0 for an empty run.
func (s *RunSummary) SuccessRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

// Merge adds the counters of other into s.
func (s *RunSummary) Merge(other RunSummary) {
	s.Total += other.Total
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Breakouts = append(s.Breakouts, other.Breakouts...)
}
