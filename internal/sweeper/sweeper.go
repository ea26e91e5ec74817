// Package sweeper runs the chat lifecycle batch jobs: active chats past
// the expiry age gain the auto_expired marker, and auto-expired chats past
// the archive age gain archived_at. Both jobs are full-table scans paced
// by a rate limiter, scheduled on a cron cadence rather than triggered by
// reads or writes.
package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"chatstore/pkg/chat"
	"chatstore/pkg/config"
	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
	"chatstore/pkg/models"
	"chatstore/pkg/store"
)

var (
	sweepRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstore_sweep_rows_total",
		Help: "Rows touched by lifecycle sweeps, by job and result.",
	}, []string{"job", "result"})
	sweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatstore_sweep_runs_total",
		Help: "Completed sweep runs by job.",
	}, []string{"job"})
)

// Sweeper owns the lifecycle jobs. Sweeps are idempotent: a re-run over
// rows already swept changes nothing.
type Sweeper struct {
	st      *store.Store
	cfg     config.SweepConfig
	limiter *rate.Limiter

	// now is swappable so tests can sweep at a fixed instant.
	now func() time.Time
}

// New builds a Sweeper over an opened store.
func New(st *store.Store, cfg config.SweepConfig) *Sweeper {
	rps := cfg.RowsPerSec
	if rps <= 0 {
		rps = 200
	}
	return &Sweeper{
		st:      st,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
		now:     time.Now,
	}
}

// Report summarizes one sweep run. Failed carries nil when every row
// succeeded, otherwise a PartialBatchFailure listing the rows that did
// not; a row failure never aborts the rest of the batch.
type Report struct {
	Job     string
	Scanned int
	Updated int
	Failed  error
}

// ExpireOldChats marks active chats older than the expiry threshold with
// the auto_expired flag. Archived and already-expired chats are skipped,
// so the job converges.
func (s *Sweeper) ExpireOldChats(ctx context.Context) (Report, error) {
	cutoff := s.now().UTC().Add(-s.cfg.ExpireAfterDuration()).UnixNano()
	return s.sweep(ctx, "expire", func(c models.Chat) (store.Item, bool) {
		if c.State() != models.StateActive {
			return nil, false
		}
		if c.CreatedAt == 0 || c.CreatedAt >= cutoff {
			return nil, false
		}
		return store.Item{"auto_expired": true}, true
	})
}

// ArchiveExpiredChats stamps archived_at on auto-expired chats older than
// the archive threshold. archived_at is written once and never changed.
func (s *Sweeper) ArchiveExpiredChats(ctx context.Context) (Report, error) {
	cutoff := s.now().UTC().Add(-s.cfg.ArchiveAfterDuration()).UnixNano()
	stamp := s.now().UTC().UnixNano()
	return s.sweep(ctx, "archive", func(c models.Chat) (store.Item, bool) {
		if c.State() != models.StateAutoExpired {
			return nil, false
		}
		if c.CreatedAt == 0 || c.CreatedAt >= cutoff {
			return nil, false
		}
		return store.Item{"archived_at": stamp}, true
	})
}

// RunAll runs both lifecycle jobs in order and returns their reports.
func (s *Sweeper) RunAll(ctx context.Context) ([]Report, error) {
	expire, err := s.ExpireOldChats(ctx)
	if err != nil {
		return nil, err
	}
	archive, err := s.ArchiveExpiredChats(ctx)
	if err != nil {
		return []Report{expire}, err
	}
	return []Report{expire, archive}, nil
}

// sweep scans the chats table and applies update to every row decide
// selects. Per-row failures are collected, counted, and reported without
// stopping the scan.
func (s *Sweeper) sweep(ctx context.Context, job string, decide func(models.Chat) (store.Item, bool)) (Report, error) {
	rep := Report{Job: job}
	items, err := s.st.Scan(chat.TableChats, nil)
	if err != nil {
		return rep, err
	}
	var failures []errs.RowFailure
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return rep, errs.Transient("sweep canceled", err)
		}
		rep.Scanned++
		c, err := decodeChat(it)
		if err != nil {
			failures = append(failures, errs.RowFailure{Key: keyOf(it), Err: err})
			sweepRows.WithLabelValues(job, "error").Inc()
			continue
		}
		attrs, ok := decide(c)
		if !ok {
			sweepRows.WithLabelValues(job, "skipped").Inc()
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return rep, errs.Transient("sweep canceled", err)
		}
		if _, err := s.st.UpdateItem(chat.TableChats, store.Item{"chat_id": c.ChatID}, attrs); err != nil {
			failures = append(failures, errs.RowFailure{Key: c.ChatID, Err: err})
			sweepRows.WithLabelValues(job, "error").Inc()
			logger.Warn("sweep_row_failed", "job", job, "chat_id", c.ChatID, "error", err)
			continue
		}
		rep.Updated++
		sweepRows.WithLabelValues(job, "updated").Inc()
	}
	if len(failures) > 0 {
		rep.Failed = &errs.PartialBatchFailure{Op: "sweep_" + job, Failures: failures}
	}
	sweepRuns.WithLabelValues(job).Inc()
	logger.Info("sweep_done", "job", job, "scanned", rep.Scanned, "updated", rep.Updated, "failed", len(failures))
	return rep, nil
}

func decodeChat(it store.Item) (models.Chat, error) {
	var c models.Chat
	id, _ := it["chat_id"].(string)
	c.ChatID = id
	if c.ChatID == "" {
		return c, errs.Validation("row has no chat_id")
	}
	if raw, ok := it["created_at"]; ok {
		v, numeric := store.AsInt64(raw)
		if !numeric {
			return c, errs.Validation("chat %s has malformed created_at", c.ChatID)
		}
		c.CreatedAt = v
	}
	if v, ok := store.AsInt64(it["archived_at"]); ok {
		c.ArchivedAt = v
	}
	if v, ok := it["auto_expired"].(bool); ok {
		c.AutoExpired = v
	}
	return c, nil
}

func keyOf(it store.Item) string {
	if id, ok := it["chat_id"].(string); ok {
		return id
	}
	return "?"
}
