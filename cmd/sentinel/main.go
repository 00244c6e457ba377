package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"BreakoutSentinel/internal/app"
	"BreakoutSentinel/internal/batch"
	"BreakoutSentinel/internal/config"
	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/notifier"
	"BreakoutSentinel/internal/scheduler"
	"BreakoutSentinel/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] BreakoutSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init fetcher
	fetcher, closeFetcher := app.NewFetcher(cfg)
	defer closeFetcher()

	// Init store
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer store.Close()

	// Init metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	health := metrics.NewHealthStatus()
	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr, reg, health)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Printf("[WARN] metrics server shutdown: %v", err)
			}
		}()
	}

	// Init daily batch
	daily := batch.NewDaily(strategy.NewEngine(fetcher), store, m, cfg.Concurrency.Workers)
	daily.PeriodMonths = cfg.Analysis.PeriodMonths

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	var n notifier.Notifier
	if cfg.NotificationsEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = tn
	} else {
		log.Println("[WARN] Telegram not configured, notifications disabled")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, daily, store, n, health)
	if err := sched.RegisterAll(cfg.Schedule.DailyCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing daily analysis now")
		go sched.RunDailyNow()
	}

	log.Println("[INFO] BreakoutSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()
	log.Println("[INFO] BreakoutSentinel stopped")
}
