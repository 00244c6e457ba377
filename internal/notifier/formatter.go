package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/strategy"
)

var kindLabels = map[model.SignalKind]string{
	model.SignalFreshBreakout:    "🚀 fresh breakout",
	model.SignalExtendedBreakout: "📈 above trendline",
	model.SignalBelowTrendline:   "📉 below trendline",
	model.SignalNoTrendline:      "➖ no trendline",
}

// FormatRunSummary formats a finished daily or backtest run.
func FormatRunSummary(s *model.RunSummary) string {
	var b strings.Builder

	title := "Daily analysis"
	if s.Kind == model.RunBacktest {
		title = "Backtest"
	}
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n\n", title, s.Started.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("%d out of %d successfully analysed (%.2f%%)\n", s.Succeeded, s.Total, s.SuccessRatio()))
	if s.Failed > 0 {
		b.WriteString(fmt.Sprintf("Failed: %d\n", s.Failed))
	}
	if s.Skipped > 0 {
		b.WriteString(fmt.Sprintf("Skipped dates: %d\n", s.Skipped))
	}
	b.WriteString(fmt.Sprintf("Duration: %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond)))

	if len(s.Breakouts) == 0 {
		b.WriteString("\nNo fresh breakouts.\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("\n🚀 <b>Fresh breakouts (%d):</b>\n", len(s.Breakouts)))
	for i := range s.Breakouts {
		b.WriteString(breakoutLine(&s.Breakouts[i]))
	}
	return b.String()
}

// FormatBreakouts lists the analyses of one date ranked by breakout percentage.
func FormatBreakouts(date string, recs []model.AnalysisRecord) string {
	if len(recs) == 0 {
		return fmt.Sprintf("No analyses with a trendline on %s.", date)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏁 <b>Top breakouts</b> | %s\n\n", date))
	for i := range recs {
		b.WriteString(fmt.Sprintf("%d. ", i+1))
		b.WriteString(breakoutLine(&recs[i]))
	}
	return b.String()
}

func breakoutLine(rec *model.AnalysisRecord) string {
	if rec.Breakout == nil {
		return fmt.Sprintf("%s %s close %.2f, no trendline\n", rec.Symbol, rec.Date.Format(model.DateLayout), rec.ClosePrice)
	}
	return fmt.Sprintf("%s %s %+.2f%% over %.2f (%dd, accuracy %d%%)\n",
		rec.Symbol, rec.Date.Format(model.DateLayout), rec.Breakout.BreakoutPercentage,
		rec.Breakout.TrendlineValue, rec.Breakout.ConsecutiveDays, rec.Breakout.Accuracy)
}

// FormatAnalysis formats a single analysis with its indicator bank.
func FormatAnalysis(rec *model.AnalysisRecord) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 <b>%s</b> | %s | %dd\n\n", rec.Symbol, rec.Date.Format(model.DateLayout), rec.PeriodDays))
	b.WriteString(fmt.Sprintf("Close: %.2f\n", rec.ClosePrice))
	b.WriteString(fmt.Sprintf("Signal: %s\n", kindLabels[strategy.Classify(rec)]))
	if br := rec.Breakout; br != nil {
		b.WriteString(fmt.Sprintf("Trendline: %.2f (%+.2f%%)\n", br.TrendlineValue, br.BreakoutPercentage))
		b.WriteString(fmt.Sprintf("Days above: %d | Accuracy: %d%%\n", br.ConsecutiveDays, br.Accuracy))
	}
	b.WriteString(fmt.Sprintf("\nRSI(14): %.1f\n", rec.RSI))
	b.WriteString(fmt.Sprintf("MACD: %.3f | Signal: %.3f\n", rec.MACD, rec.MACDSignal))
	b.WriteString(fmt.Sprintf("Bollinger: %.2f / %.2f / %.2f\n", rec.BollingerUpper, rec.BollingerMiddle, rec.BollingerLower))
	b.WriteString(fmt.Sprintf("EMA 9/12/21/50: %.2f / %.2f / %.2f / %.2f\n", rec.EMA9, rec.EMA12, rec.EMA21, rec.EMA50))
	b.WriteString(fmt.Sprintf("Volume: %.0f (×%.2f of 20d avg)\n", rec.Volume, rec.VolumeRatio))
	return b.String()
}

// FormatOutcomes lists fresh breakouts with the highest price reached afterwards.
func FormatOutcomes(symbol string, outcomes []model.BreakoutOutcome) string {
	if len(outcomes) == 0 {
		return fmt.Sprintf("No fresh breakouts found for %s.", symbol)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧾 <b>Fresh breakouts</b> | %s\n\n", symbol))
	for _, o := range outcomes {
		a, f := o.Analysis, o.Forward
		b.WriteString(fmt.Sprintf("%s %s close %.2f %+.2f%%\n", a.Symbol, a.Date.Format(model.DateLayout), a.ClosePrice, breakoutPct(&a)))
		b.WriteString(fmt.Sprintf("   max 1d %s | 5d %s | 20d %s\n",
			upside(a.ClosePrice, f.MaxPrice1d), upside(a.ClosePrice, f.MaxPrice5d), upside(a.ClosePrice, f.MaxPrice20d)))
	}
	return b.String()
}

func breakoutPct(rec *model.AnalysisRecord) float64 {
	if rec.Breakout == nil {
		return 0
	}
	return rec.Breakout.BreakoutPercentage
}

// upside renders a forward max price relative to the close, "-" when unknown.
func upside(closePrice float64, v null.Float) string {
	if !v.Valid || closePrice == 0 {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", (v.Float64-closePrice)/closePrice*100)
}
