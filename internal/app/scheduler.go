/**
 * @description
 * Cron wiring for the billing engine tick.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/rastrotech/billing-service/internal/config"
)

// Scheduler drives the engine on the configured tick schedule.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(engine *Engine, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		engine: engine,
		logger: logger,
		config: cfg,
	}
}

// Start registers the engine tick and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.EngineTickSchedule, s.runTick); err != nil {
		s.logger.Error("failed to schedule engine tick", "error", err)
	} else {
		s.logger.Info("scheduled engine tick", "schedule", s.config.EngineTickSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runTick() {
	s.logger.Info("starting billing engine tick")
	ctx := context.Background()

	res := s.engine.RunTick(ctx)

	s.logger.Info("billing engine tick finished",
		"period", res.PeriodKey,
		"promoted", res.Promoted,
		"created", res.Created,
		"already_started", res.AlreadyStarted,
	)
}
