// cmd/backtest replays the signal engine over sliding historical windows and
// stores every analysis with its forward returns.
//
// Usage:
//
//	go run ./cmd/backtest -symbols=AAPL,MSFT -start=2023-01-02 -total=365 -window=90
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"BreakoutSentinel/internal/app"
	"BreakoutSentinel/internal/backtest"
	"BreakoutSentinel/internal/config"
	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/notifier"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	symbols := flag.String("symbols", "", "comma-separated symbols (default: the configured stock directory)")
	start := flag.String("start", "", "first calendar date of the backtest, YYYY-MM-DD (default: one total span ago)")
	totalDays := flag.Int("total", 0, "backtest span in calendar days (default from config)")
	windowDays := flag.Int("window", 0, "analysis window in calendar days (default from config)")
	workers := flag.Int("workers", 0, "symbols backtested in parallel (default from config)")
	notify := flag.Bool("notify", false, "send the summary to Telegram")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if *totalDays > 0 {
		cfg.Backtest.TotalDays = *totalDays
	}
	if *windowDays > 0 {
		cfg.Backtest.WindowDays = *windowDays
	}
	if *workers > 0 {
		cfg.Concurrency.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	startDate := model.Day(time.Now()).AddDate(0, 0, -cfg.Backtest.TotalDays)
	if *start != "" {
		startDate, err = time.Parse(model.DateLayout, *start)
		if err != nil {
			log.Fatalf("[FATAL] invalid -start %q: %v", *start, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, closeFetcher := app.NewFetcher(cfg)
	defer closeFetcher()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer store.Close()

	list := lo.Uniq(lo.Compact(lo.Map(strings.Split(*symbols, ","), func(s string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})))
	if len(list) == 0 {
		stocks, err := store.ListStocks(ctx)
		if err != nil {
			log.Fatalf("[FATAL] list stocks: %v", err)
		}
		list = lo.Map(stocks, func(s model.Stock, _ int) string { return s.Symbol })
	}
	if len(list) == 0 {
		log.Println("[WARN] no symbols to backtest")
		return
	}

	w := backtest.NewWindower(fetcher, store, metrics.New(prometheus.NewRegistry()), cfg.Concurrency.Workers)
	log.Printf("[INFO] backtesting %d symbols from %s over %d days (window %d)",
		len(list), startDate.Format(model.DateLayout), cfg.Backtest.TotalDays, cfg.Backtest.WindowDays)
	summary := w.Run(ctx, list, startDate, cfg.Backtest.TotalDays, cfg.Backtest.WindowDays)

	if *notify && cfg.NotificationsEnabled() {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		if err := tn.SendWithRetry(ctx, notifier.FormatRunSummary(&summary), 3); err != nil {
			log.Printf("[ERROR] send backtest summary: %v", err)
		}
	}
	if summary.Total > 0 && summary.Succeeded == 0 {
		log.Printf("[WARN] backtest %s produced no analyses", summary.RunID)
	}
}
