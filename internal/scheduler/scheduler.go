// Package scheduler runs the periodic SLA breach checks and idle ticket
// scans.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/automation"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/sla"
)

// Scheduler ticks the breach detector and the idle scanner on their own
// intervals. Passes never overlap themselves: a slow pass simply delays
// its next tick.
type Scheduler struct {
	detector *sla.Detector
	scanner  *automation.IdleScanner
	cfg      config.SchedulerConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a scheduler.
func New(detector *sla.Detector, scanner *automation.IdleScanner, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{detector: detector, scanner: scanner, cfg: cfg, logger: logger}
}

// Start launches both loops.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.loop(ctx, "sla_check", s.cfg.BreachCheckInterval(), func(ctx context.Context) (int, error) {
		return s.detector.Check(ctx)
	})
	go s.loop(ctx, "idle_scan", s.cfg.IdleScanInterval(), func(ctx context.Context) (int, error) {
		return s.scanner.Scan(ctx)
	})

	s.logger.Info("scheduler started",
		zap.Duration("sla_check_interval", s.cfg.BreachCheckInterval()),
		zap.Duration("idle_scan_interval", s.cfg.IdleScanInterval()))
}

// Stop cancels the loops and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, pass func(context.Context) (int, error)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := pass(ctx)
			if err != nil {
				s.logger.Error("scheduled pass failed",
					zap.String("pass", name),
					zap.Error(err))
				continue
			}
			if processed > 0 {
				s.logger.Info("scheduled pass completed",
					zap.String("pass", name),
					zap.Int("processed", processed))
			}
		}
	}
}
