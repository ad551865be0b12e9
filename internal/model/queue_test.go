package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from QueueStatus
		to   QueueStatus
		want bool
	}{
		{QueuePending, QueueProcessing, true},
		{QueuePending, QueueCompleted, false},
		{QueuePending, QueueFailed, false},
		{QueueProcessing, QueueCompleted, true},
		{QueueProcessing, QueuePending, true},
		{QueueProcessing, QueueFailed, true},
		{QueueProcessing, QueueProcessing, false},
		{QueueCompleted, QueueProcessing, false},
		{QueueCompleted, QueuePending, false},
		{QueueFailed, QueuePending, false},
		{QueueFailed, QueueProcessing, false},
		{QueueStatus("bogus"), QueueProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestQueueStatus_IsTerminal(t *testing.T) {
	assert.False(t, QueuePending.IsTerminal())
	assert.False(t, QueueProcessing.IsTerminal())
	assert.True(t, QueueCompleted.IsTerminal())
	assert.True(t, QueueFailed.IsTerminal())
	assert.True(t, QueueFailed.IsValid())
	assert.False(t, QueueStatus("done").IsValid())
}

func TestQueueItem_TransitionTo(t *testing.T) {
	now := time.Date(2025, 11, 25, 10, 30, 0, 0, time.UTC)

	t.Run("processing stamps processedAt", func(t *testing.T) {
		item := &QueueItem{Status: QueuePending}
		require.NoError(t, item.TransitionTo(QueueProcessing, now))
		assert.Equal(t, QueueProcessing, item.Status)
		require.NotNil(t, item.ProcessedAt)
		assert.Equal(t, now, *item.ProcessedAt)
	})

	t.Run("completed cannot be reprocessed", func(t *testing.T) {
		item := &QueueItem{Status: QueueCompleted}
		err := item.TransitionTo(QueueProcessing, now)
		require.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, QueueCompleted, item.Status)
		assert.Nil(t, item.ProcessedAt)
	})
}

func TestQueueItem_RequeueAndFail(t *testing.T) {
	now := time.Now()

	item := &QueueItem{Status: QueueProcessing, RetryCount: 1}
	require.NoError(t, item.Requeue("db locked", now))
	assert.Equal(t, QueuePending, item.Status)
	assert.Equal(t, 2, item.RetryCount)
	assert.Equal(t, "db locked", item.LastError)

	// Requeue from pending is illegal and must not bump the counter.
	err := item.Requeue("again", now)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, 2, item.RetryCount)

	item.Status = QueueProcessing
	item.RetryCount = MaxRetries
	assert.True(t, item.RetriesExhausted())
	require.NoError(t, item.Fail("gave up", now))
	assert.Equal(t, QueueFailed, item.Status)
	assert.Equal(t, "gave up", item.LastError)
}

func TestQueueItem_HasMedia(t *testing.T) {
	assert.False(t, (&QueueItem{}).HasMedia())
	assert.False(t, (&QueueItem{Media: &MediaReference{}}).HasMedia())
	assert.True(t, (&QueueItem{Media: &MediaReference{URL: "https://api.twilio.com/x"}}).HasMedia())
}
