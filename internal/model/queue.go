package model

import (
	"errors"
	"fmt"
	"time"
)

// MaxRetries is the number of failure requeues an item gets before it is
// marked failed.
const MaxRetries = 3

// ErrIllegalTransition is returned when a queue item is moved between two
// statuses that the transition table does not connect.
var ErrIllegalTransition = errors.New("illegal queue status transition")

// QueueStatus is the processing state of a queue item.
type QueueStatus string

// Queue status constants.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// transitions lists every legal move. Completed and failed are terminal.
var transitions = map[QueueStatus][]QueueStatus{
	QueuePending:    {QueueProcessing},
	QueueProcessing: {QueueCompleted, QueuePending, QueueFailed},
	QueueCompleted:  nil,
	QueueFailed:     nil,
}

// IsValid reports whether s is one of the known statuses.
func (s QueueStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible from s.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueCompleted || s == QueueFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s QueueStatus) CanTransition(next QueueStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MediaReference points at an attachment hosted by the messaging gateway.
type MediaReference struct {
	URL      string
	MimeType string
}

// QueueItem is one inbound chat event awaiting processing.
type QueueItem struct {
	CreatedAt       time.Time
	ProcessedAt     *time.Time
	Media           *MediaReference
	ID              string
	ChannelIdentity string
	RawMessage      string
	ProfileName     string
	MessageSID      string
	Status          QueueStatus
	LastError       string
	RetryCount      int
}

// TransitionTo moves the item to next, stamping ProcessedAt when processing
// starts. Illegal moves leave the item untouched.
func (q *QueueItem) TransitionTo(next QueueStatus, now time.Time) error {
	if !q.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, q.Status, next)
	}
	q.Status = next
	if next == QueueProcessing {
		stamped := now
		q.ProcessedAt = &stamped
	}
	return nil
}

// Requeue returns a processing item to pending after an infrastructure fault.
func (q *QueueItem) Requeue(cause string, now time.Time) error {
	if err := q.TransitionTo(QueuePending, now); err != nil {
		return err
	}
	q.RetryCount++
	q.LastError = cause
	return nil
}

// Fail marks a processing item as permanently failed.
func (q *QueueItem) Fail(cause string, now time.Time) error {
	if err := q.TransitionTo(QueueFailed, now); err != nil {
		return err
	}
	q.LastError = cause
	return nil
}

// RetriesExhausted reports whether another fault must fail the item rather
// than requeue it.
func (q *QueueItem) RetriesExhausted() bool {
	return q.RetryCount >= MaxRetries
}

// HasMedia reports whether the item carries an attachment reference.
func (q *QueueItem) HasMedia() bool {
	return q.Media != nil && q.Media.URL != ""
}
