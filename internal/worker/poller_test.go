package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/pipeline"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

type memoryQueue struct {
	recoveredBefore time.Time
	items           []model.QueueItem
	mu              sync.Mutex
}

func (q *memoryQueue) EnqueueMessage(context.Context, *model.QueueItem) error { return nil }

func (q *memoryQueue) GetQueueItem(context.Context, string) (*model.QueueItem, error) {
	return nil, errors.New("not used")
}

func (q *memoryQueue) ClaimQueueItem(context.Context, string, time.Time) (bool, error) {
	return true, nil
}

func (q *memoryQueue) UpdateQueueItem(context.Context, *model.QueueItem) error { return nil }

func (q *memoryQueue) ListQueueItems(_ context.Context, filter service.QueueFilter) ([]model.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.QueueItem
	for _, item := range q.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, item)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (q *memoryQueue) RecoverStaleQueueItems(_ context.Context, olderThan time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recoveredBefore = olderThan
	return 0, nil
}

func (q *memoryQueue) setStatus(id string, status model.QueueStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.items[i].Status = status
		}
	}
}

// scriptedProcessor completes items unless told to requeue them.
type scriptedProcessor struct {
	queue    *memoryQueue
	requeue  map[string]bool
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
}

func (s *scriptedProcessor) Process(_ context.Context, id string) (pipeline.Outcome, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if cur <= peak || s.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.mu.Unlock()

	if id == "boom" {
		return pipeline.Outcome{ItemID: id}, errors.New("database is locked")
	}
	if s.requeue[id] {
		return pipeline.Outcome{ItemID: id, Kind: pipeline.OutcomeRequeued, Status: model.QueuePending}, nil
	}
	s.queue.setStatus(id, model.QueueCompleted)
	return pipeline.Outcome{ItemID: id, Kind: pipeline.OutcomeCompleted, Status: model.QueueCompleted}, nil
}

func pendingItems(ids ...string) []model.QueueItem {
	items := make([]model.QueueItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, model.QueueItem{ID: id, ChannelIdentity: "+1", Status: model.QueuePending})
	}
	return items
}

func TestRunOnce_BoundedConcurrency(t *testing.T) {
	queue := &memoryQueue{items: pendingItems("a", "b", "c", "d", "e", "f")}
	proc := &scriptedProcessor{queue: queue}
	poller := NewPoller(queue, proc, Config{Concurrency: 2, BatchSize: 4}, nil)

	var seen []string
	stats, err := poller.RunOnce(context.Background(), func(out pipeline.Outcome, _ error) {
		seen = append(seen, out.ItemID)
	})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 4, stats.Completed)
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
	sort.Strings(seen)
	assert.Equal(t, []string{"a", "b", "c", "d"}, seen)
}

func TestDrain_AttemptsEachItemOnce(t *testing.T) {
	queue := &memoryQueue{items: pendingItems("a", "retry", "boom", "b")}
	proc := &scriptedProcessor{queue: queue, requeue: map[string]bool{"retry": true}}
	poller := NewPoller(queue, proc, Config{Concurrency: 3, BatchSize: 2}, nil)

	stats, err := poller.Drain(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Requeued)
	assert.Equal(t, 1, stats.Errors)

	sort.Strings(proc.calls)
	assert.Equal(t, []string{"a", "b", "boom", "retry"}, proc.calls)

	pending, err := poller.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pending, "requeued and errored items stay pending")
}

func TestRun_StopsOnCancel(t *testing.T) {
	queue := &memoryQueue{items: pendingItems("a")}
	proc := &scriptedProcessor{queue: queue}
	poller := NewPoller(queue, proc, Config{PollInterval: 10 * time.Millisecond, StaleAfter: time.Minute}, nil)
	fixed := time.Date(2025, 11, 25, 12, 0, 0, 0, time.UTC)
	poller.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return len(proc.calls) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Equal(t, fixed.Add(-time.Minute), queue.recoveredBefore)
}

func TestNewPoller_Defaults(t *testing.T) {
	poller := NewPoller(&memoryQueue{}, &scriptedProcessor{}, Config{}, nil)
	assert.Equal(t, DefaultConfig().PollInterval, poller.cfg.PollInterval)
	assert.Equal(t, DefaultConfig().Concurrency, poller.cfg.Concurrency)
	assert.Equal(t, DefaultConfig().BatchSize, poller.cfg.BatchSize)
}
