// Package service defines the contracts between the expense pipeline and its
// collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/model"
)

// QueueStore is the work queue of inbound chat events.
type QueueStore interface {
	EnqueueMessage(ctx context.Context, item *model.QueueItem) error
	GetQueueItem(ctx context.Context, id string) (*model.QueueItem, error)
	// ClaimQueueItem moves a pending item to processing. It reports false
	// when another worker got there first.
	ClaimQueueItem(ctx context.Context, id string, now time.Time) (bool, error)
	UpdateQueueItem(ctx context.Context, item *model.QueueItem) error
	ListQueueItems(ctx context.Context, filter QueueFilter) ([]model.QueueItem, error)
	RecoverStaleQueueItems(ctx context.Context, olderThan time.Time) (int, error)
}

// QueueFilter narrows ListQueueItems.
type QueueFilter struct {
	Status model.QueueStatus
	Limit  int
}

// UserDirectory resolves channel identities to users and their taxonomy.
type UserDirectory interface {
	GetUserByChannelIdentity(ctx context.Context, identity string) (*model.User, error)
	GetTaxonomy(ctx context.Context, userID string) (model.Taxonomy, error)
}

// ExpenseFilter narrows expense queries for one owner. Zero times are open.
type ExpenseFilter struct {
	Start time.Time
	End   time.Time
	Limit int
}

// ExpenseStore persists expense records.
type ExpenseStore interface {
	SaveExpense(ctx context.Context, record *model.ExpenseRecord) error
	ListExpenses(ctx context.Context, ownerID string, filter ExpenseFilter) ([]model.ExpenseRecord, error)
}

// Gateway delivers plain-text replies over the chat channel.
type Gateway interface {
	Send(ctx context.Context, identity, text string) error
}

// Media is a downloaded attachment.
type Media struct {
	MimeType string
	Data     []byte
}

// MediaFetcher downloads attachment bytes from the gateway.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (*Media, error)
}
