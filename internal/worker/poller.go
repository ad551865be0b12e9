// Package worker feeds pending queue items to the pipeline.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/pipeline"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

// ItemProcessor runs one queue item.
type ItemProcessor interface {
	Process(ctx context.Context, itemID string) (pipeline.Outcome, error)
}

// Config controls polling.
type Config struct {
	PollInterval time.Duration
	// StaleAfter returns items stuck in processing for longer than this to
	// pending on startup. Zero disables recovery.
	StaleAfter  time.Duration
	Concurrency int
	BatchSize   int
}

// DefaultConfig returns the default polling configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		StaleAfter:   10 * time.Minute,
		Concurrency:  4,
		BatchSize:    50,
	}
}

// Stats counts outcomes across one or more batches.
type Stats struct {
	Processed int
	Completed int
	Rejected  int
	Requeued  int
	Failed    int
	Skipped   int
	Errors    int
}

func (s *Stats) add(out pipeline.Outcome, err error) {
	s.Processed++
	if err != nil {
		s.Errors++
		return
	}
	switch out.Kind {
	case pipeline.OutcomeCompleted:
		s.Completed++
	case pipeline.OutcomeRejected:
		s.Rejected++
	case pipeline.OutcomeRequeued:
		s.Requeued++
	case pipeline.OutcomeFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

func (s *Stats) merge(other Stats) {
	s.Processed += other.Processed
	s.Completed += other.Completed
	s.Rejected += other.Rejected
	s.Requeued += other.Requeued
	s.Failed += other.Failed
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

// Poller lists pending items and processes them with bounded concurrency.
// Each item is handled by exactly one goroutine.
type Poller struct {
	queue     service.QueueStore
	processor ItemProcessor
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config
}

// NewPoller creates a Poller. Non-positive config values take defaults.
func NewPoller(queue service.QueueStore, processor ItemProcessor, cfg Config, logger *slog.Logger) *Poller {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		queue:     queue,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.cfg.StaleAfter > 0 {
		if _, err := p.RecoverStale(ctx); err != nil {
			return err
		}
	}

	p.logger.Info("worker started",
		"poll_interval", p.cfg.PollInterval,
		"concurrency", p.cfg.Concurrency,
		"batch_size", p.cfg.BatchSize)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		stats, err := p.RunOnce(ctx, nil)
		if err != nil && ctx.Err() == nil {
			p.logger.Error("poll failed", "error", err)
		}
		if stats.Processed > 0 {
			p.logger.Info("batch processed",
				"processed", stats.Processed,
				"completed", stats.Completed,
				"rejected", stats.Rejected,
				"requeued", stats.Requeued,
				"failed", stats.Failed,
				"errors", stats.Errors)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RecoverStale returns abandoned processing items to pending.
func (p *Poller) RecoverStale(ctx context.Context) (int, error) {
	n, err := p.queue.RecoverStaleQueueItems(ctx, p.now().Add(-p.cfg.StaleAfter))
	if err != nil {
		return 0, fmt.Errorf("recover stale queue items: %w", err)
	}
	if n > 0 {
		p.logger.Warn("recovered stale queue items", "count", n)
	}
	return n, nil
}

// RunOnce processes one batch of pending items. onOutcome, when set, is
// called after each item.
func (p *Poller) RunOnce(ctx context.Context, onOutcome func(pipeline.Outcome, error)) (Stats, error) {
	items, err := p.queue.ListQueueItems(ctx, service.QueueFilter{
		Status: model.QueuePending,
		Limit:  p.cfg.BatchSize,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("list pending items: %w", err)
	}
	return p.process(ctx, ids(items), onOutcome), nil
}

// Drain processes pending items until none are left that have not already
// been attempted in this call. Each item runs at most once per Drain.
func (p *Poller) Drain(ctx context.Context, onOutcome func(pipeline.Outcome, error)) (Stats, error) {
	var total Stats
	attempted := make(map[string]bool)

	for ctx.Err() == nil {
		items, err := p.queue.ListQueueItems(ctx, service.QueueFilter{Status: model.QueuePending})
		if err != nil {
			return total, fmt.Errorf("list pending items: %w", err)
		}

		var fresh []string
		for _, id := range ids(items) {
			if !attempted[id] {
				attempted[id] = true
				fresh = append(fresh, id)
			}
			if len(fresh) == p.cfg.BatchSize {
				break
			}
		}
		if len(fresh) == 0 {
			return total, nil
		}
		total.merge(p.process(ctx, fresh, onOutcome))
	}
	return total, ctx.Err()
}

// CountPending reports how many items are waiting.
func (p *Poller) CountPending(ctx context.Context) (int, error) {
	items, err := p.queue.ListQueueItems(ctx, service.QueueFilter{Status: model.QueuePending})
	if err != nil {
		return 0, fmt.Errorf("list pending items: %w", err)
	}
	return len(items), nil
}

func (p *Poller) process(ctx context.Context, itemIDs []string, onOutcome func(pipeline.Outcome, error)) Stats {
	var (
		stats Stats
		mu    sync.Mutex
		g     errgroup.Group
	)
	g.SetLimit(p.cfg.Concurrency)

	for _, id := range itemIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := p.processor.Process(ctx, id)
			if err != nil {
				p.logger.Error("failed to process queue item", "item_id", id, "error", err)
			}

			mu.Lock()
			stats.add(out, err)
			if onOutcome != nil {
				onOutcome(out, err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return stats
}

func ids(items []model.QueueItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
