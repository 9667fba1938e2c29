package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobpulse/notifier/pkg/logger"
)

// SchedulerConfig gates when scheduled cycles may run. Start and End
// are hours of day; a run starting outside [Start, End) is skipped,
// not queued.
type SchedulerConfig struct {
	Interval         time.Duration
	ActiveHoursStart int
	ActiveHoursEnd   int
	RunOnStartup     bool
}

// Scheduler drives the engine on a fixed interval.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	logger *logger.Logger
	cfg    SchedulerConfig
	now    func() time.Time
}

func NewScheduler(engine *Engine, cfg SchedulerConfig, log *logger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	return &Scheduler{
		engine: engine,
		cron:   cron.New(),
		logger: log.WithComponent("scheduler"),
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start registers the interval job and launches the cron loop. The
// context bounds every run it triggers.
func (s *Scheduler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule cycles: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval.String(),
		"active_hours", fmt.Sprintf("%02d:00-%02d:00", s.cfg.ActiveHoursStart, s.cfg.ActiveHoursEnd))

	if s.cfg.RunOnStartup {
		go s.tick(ctx)
	}
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.withinActiveHours(s.now()) {
		s.logger.Debug("skipping cycle outside active hours")
		return
	}

	if _, err := s.engine.Run(ctx, RunOptions{TriggeredBy: "scheduler"}); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn("skipping cycle, previous run still in progress")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error(err, "scheduled cycle failed")
	}
}

// withinActiveHours treats [Start, End) as a daily window; Start==End
// means always active, Start>End wraps past midnight.
func (s *Scheduler) withinActiveHours(now time.Time) bool {
	start, end := s.cfg.ActiveHoursStart, s.cfg.ActiveHoursEnd
	if start == end {
		return true
	}
	hour := now.Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
