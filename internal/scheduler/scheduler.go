package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"BreakoutSentinel/internal/batch"
	"BreakoutSentinel/internal/metrics"
	"BreakoutSentinel/internal/model"
	"BreakoutSentinel/internal/notifier"
	"BreakoutSentinel/internal/recorder"
)

// topLimit is the number of rows returned by /top.
const topLimit = 10

// Scheduler runs the daily batch on a cron schedule and answers chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Daily    *batch.Daily
	Reader   recorder.BreakoutReader
	Notifier notifier.Notifier // nil disables notifications
	Health   *metrics.HealthStatus
	Ctx      context.Context

	now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, daily *batch.Daily, reader recorder.BreakoutReader, n notifier.Notifier, health *metrics.HealthStatus) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Daily:    daily,
		Reader:   reader,
		Notifier: n,
		Health:   health,
		Ctx:      ctx,
		now:      time.Now,
	}
}

// RegisterAll registers the daily analysis task.
func (s *Scheduler) RegisterAll(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDailyNow executes the daily task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunDailyNow() {
	s.dailyTask()
}

func (s *Scheduler) dailyTask() {
	log.Println("[INFO] running daily analysis")
	summary, err := s.Daily.Run(s.Ctx, s.now())
	if errors.Is(err, batch.ErrWeekend) {
		return
	}
	if err != nil {
		log.Printf("[ERROR] daily analysis: %v", err)
		s.trySend(fmt.Sprintf("❌ Daily analysis failed: %v", err))
		return
	}
	if s.Health != nil {
		s.Health.SetLastRun(summary)
	}
	s.trySend(notifier.FormatRunSummary(&summary))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return help()
	}
	args := fields[1:]

	switch fields[0] {
	case "/run":
		go s.dailyTask()
		return "⏳ Daily analysis started."
	case "/top":
		date := model.Day(s.now())
		if len(args) > 0 {
			d, err := time.Parse(model.DateLayout, args[0])
			if err != nil {
				return fmt.Sprintf("Invalid date %q, expected YYYY-MM-DD.", args[0])
			}
			date = d
		}
		recs, err := s.Reader.TopBreakouts(ctx, date, topLimit, 0)
		if err != nil {
			log.Printf("[ERROR] top breakouts: %v", err)
			return "❌ Could not load breakouts."
		}
		return notifier.FormatBreakouts(date.Format(model.DateLayout), recs)
	case "/analyze":
		if len(args) != 1 {
			return "Usage: /analyze SYMBOL"
		}
		symbol := strings.ToUpper(args[0])
		rec, err := s.Daily.Engine.Analyze(ctx, symbol, s.now(), s.Daily.PeriodMonths, nil)
		if err != nil {
			return fmt.Sprintf("❌ %s: %v", symbol, err)
		}
		return notifier.FormatAnalysis(rec)
	case "/fresh":
		if len(args) != 1 {
			return "Usage: /fresh SYMBOL"
		}
		symbol := strings.ToUpper(args[0])
		to := model.Day(s.now())
		outcomes, err := s.Reader.FreshBreakouts(ctx, symbol, to.AddDate(-1, 0, 0), to)
		if err != nil {
			log.Printf("[ERROR] fresh breakouts %s: %v", symbol, err)
			return "❌ Could not load breakouts."
		}
		return notifier.FormatOutcomes(symbol, outcomes)
	default:
		return help()
	}
}

func help() string {
	return "Available commands:\n" +
		"• /top [YYYY-MM-DD] - strongest breakouts of a day\n" +
		"• /analyze SYMBOL - analyse a stock now\n" +
		"• /fresh SYMBOL - fresh breakouts of the last year\n" +
		"• /run - run the daily analysis"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
