package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatstore/pkg/logger"
)

// Start runs the sweep scheduler on the configured cron cadence and
// returns a cancel func. A disabled config returns a no-op cancel.
func (s *Sweeper) Start(ctx context.Context) (context.CancelFunc, error) {
	if !s.cfg.Enabled {
		logger.Info("sweeper_disabled")
		return func() {}, nil
	}
	cronExpr := s.cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("sweeper_invalid_cron", "cron", s.cfg.Cron)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", s.cfg.Cron)
	}
	logger.Info("sweeper_enabled", "cron", cronExpr,
		"expire_after", s.cfg.ExpireAfterDuration().String(),
		"archive_after", s.cfg.ArchiveAfterDuration().String())
	ctx2, cancel := context.WithCancel(ctx)
	go s.runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// runScheduler sleeps until the next cron tick and runs both jobs. gronx
// computes ticks, so full cron syntax is available.
func (s *Sweeper) runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("sweeper_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("sweeper_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			s.runOnce(ctx)
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	reports, err := s.RunAll(ctx)
	if err != nil {
		logger.Error("sweep_run_error", "error", err)
		return
	}
	for _, rep := range reports {
		if rep.Failed != nil {
			logger.Warn("sweep_partial_failure", "job", rep.Job, "error", rep.Failed)
		}
	}
}
