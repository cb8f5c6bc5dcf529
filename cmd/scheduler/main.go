package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/segyhp/microcredit-engine/internal/config"
	"github.com/segyhp/microcredit-engine/internal/repository"
	"github.com/segyhp/microcredit-engine/internal/service"
	"github.com/segyhp/microcredit-engine/pkg/logger"
)

func main() {
	boot := zap.NewExample()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	if cfg.IsDevelopment() {
		log = log.WithOptions(zap.Development())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	log.Info("starting loan scheduler")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	cancel()
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	reports := service.NewReportService(repository.NewLoanRepository(db), log.Named("reports"))
	j := newJobs(reports, cfg.Scheduler.ReminderWindowDays, log.Named("jobs"))

	cronLogger := cronLogger{log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	// Schedule tasks
	if err := setupCronJobs(c, cfg, j); err != nil {
		log.Fatal("failed to schedule jobs", zap.Error(err))
	}

	// Start the scheduler
	c.Start()
	log.Info("scheduler started",
		zap.String("overdue_cron", cfg.Scheduler.OverdueCron),
		zap.String("reminder_cron", cfg.Scheduler.ReminderCron),
		zap.String("timezone", cfg.Scheduler.Timezone),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down scheduler")
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, j *jobs) error {
	// Daily overdue sweep (midnight by default)
	if _, err := c.AddFunc(cfg.Scheduler.OverdueCron, j.reportOverdue); err != nil {
		return err
	}

	// Daily reminders for installments falling due soon
	if _, err := c.AddFunc(cfg.Scheduler.ReminderCron, j.sendReminders); err != nil {
		return err
	}

	return nil
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
