package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

type fakeQueue struct {
	items     map[string]*model.QueueItem
	updateErr error
	mu        sync.Mutex
}

func newFakeQueue(items ...*model.QueueItem) *fakeQueue {
	q := &fakeQueue{items: make(map[string]*model.QueueItem)}
	for _, item := range items {
		copied := *item
		q.items[item.ID] = &copied
	}
	return q
}

func (q *fakeQueue) EnqueueMessage(_ context.Context, item *model.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	copied := *item
	q.items[item.ID] = &copied
	return nil
}

func (q *fakeQueue) GetQueueItem(_ context.Context, id string) (*model.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, id)
	}
	copied := *item
	return &copied, nil
}

func (q *fakeQueue) ClaimQueueItem(_ context.Context, id string, now time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok || item.Status != model.QueuePending {
		return false, nil
	}
	item.Status = model.QueueProcessing
	item.ProcessedAt = &now
	return true, nil
}

func (q *fakeQueue) UpdateQueueItem(_ context.Context, item *model.QueueItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.updateErr != nil {
		return q.updateErr
	}
	copied := *item
	q.items[item.ID] = &copied
	return nil
}

func (q *fakeQueue) ListQueueItems(_ context.Context, filter service.QueueFilter) ([]model.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.QueueItem
	for _, item := range q.items {
		if filter.Status == "" || item.Status == filter.Status {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (q *fakeQueue) RecoverStaleQueueItems(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (q *fakeQueue) get(id string) model.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.items[id]
}

type fakeUsers struct {
	byIdentity  map[string]*model.User
	taxonomies  map[string]model.Taxonomy
	lookupErr   error
	taxonomyErr error
}

func (u *fakeUsers) GetUserByChannelIdentity(_ context.Context, identity string) (*model.User, error) {
	if u.lookupErr != nil {
		return nil, u.lookupErr
	}
	user, ok := u.byIdentity[identity]
	if !ok {
		return nil, fmt.Errorf("%w: user", common.ErrNotFound)
	}
	return user, nil
}

func (u *fakeUsers) GetTaxonomy(_ context.Context, userID string) (model.Taxonomy, error) {
	if u.taxonomyErr != nil {
		return model.Taxonomy{}, u.taxonomyErr
	}
	return u.taxonomies[userID], nil
}

type fakeExpenses struct {
	saveErr error
	listErr error
	records []model.ExpenseRecord
	filters []service.ExpenseFilter
	mu      sync.Mutex
}

func (e *fakeExpenses) SaveExpense(_ context.Context, record *model.ExpenseRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saveErr != nil {
		return e.saveErr
	}
	e.records = append(e.records, *record)
	return nil
}

func (e *fakeExpenses) ListExpenses(_ context.Context, ownerID string, filter service.ExpenseFilter) ([]model.ExpenseRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = append(e.filters, filter)
	if e.listErr != nil {
		return nil, e.listErr
	}
	var out []model.ExpenseRecord
	for _, r := range e.records {
		if r.OwnerID != ownerID {
			continue
		}
		if !filter.Start.IsZero() && r.Date.Before(filter.Start) {
			continue
		}
		if !filter.End.IsZero() && !r.Date.Before(filter.End) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type sentMessage struct {
	identity string
	text     string
}

type fakeGateway struct {
	err  error
	sent []sentMessage
	mu   sync.Mutex
}

func (g *fakeGateway) Send(_ context.Context, identity, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{identity: identity, text: text})
	return g.err
}

type fakeMedia struct {
	media *service.Media
	err   error
	urls  []string
}

func (m *fakeMedia) Fetch(_ context.Context, url string) (*service.Media, error) {
	m.urls = append(m.urls, url)
	if m.err != nil {
		return nil, m.err
	}
	return m.media, nil
}

type fakeExtractor struct {
	text       model.ExtractedExpense
	textErr    error
	receipt    model.ExtractedExpense
	receiptErr error
	panicWith  any
	textCalls  []string
	imageTypes []string
}

func (f *fakeExtractor) ExtractExpense(_ context.Context, text string) (model.ExtractedExpense, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	f.textCalls = append(f.textCalls, text)
	return f.text, f.textErr
}

func (f *fakeExtractor) ExtractReceipt(_ context.Context, _ []byte, mimeType string) (model.ExtractedExpense, error) {
	f.imageTypes = append(f.imageTypes, mimeType)
	return f.receipt, f.receiptErr
}
