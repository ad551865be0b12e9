package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
	"github.com/Veraticus/gastos-must-flow/internal/storage"
)

// cancellingExtractor cancels the worker's context mid-item, the way a
// shutdown signal would.
type cancellingExtractor struct {
	cancel context.CancelFunc
	result model.ExtractedExpense
	fail   bool
}

func (e *cancellingExtractor) ExtractExpense(context.Context, string) (model.ExtractedExpense, error) {
	e.cancel()
	if e.fail {
		return model.ExtractedExpense{}, context.Canceled
	}
	return e.result, nil
}

func (e *cancellingExtractor) ExtractReceipt(context.Context, []byte, string) (model.ExtractedExpense, error) {
	e.cancel()
	return model.ExtractedExpense{}, context.Canceled
}

func newStoreProcessor(t *testing.T, extractor Extractor) (*storage.SQLiteStorage, *fakeGateway, *Processor) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	require.NoError(t, store.CreateUser(context.Background(), &model.User{
		ID:                    "u1",
		DisplayName:           "Ana",
		LinkedChannelIdentity: anaIdentity,
	}))

	gateway := &fakeGateway{}
	proc, err := NewProcessor(Dependencies{
		Queue:     store,
		Users:     store,
		Expenses:  store,
		Gateway:   gateway,
		Media:     &fakeMedia{},
		Extractor: extractor,
		Location:  time.FixedZone("PET", -5*60*60),
	})
	require.NoError(t, err)
	return store, gateway, proc
}

func TestProcess_ShutdownMidItemRequeues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, _, proc := newStoreProcessor(t, &cancellingExtractor{cancel: cancel, fail: true})
	item := textItem("q1", "compré algo rico")
	require.NoError(t, store.EnqueueMessage(context.Background(), item))

	out, err := proc.Process(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRequeued, out.Kind)
	assert.Equal(t, 1, out.RetryCount)

	stored, err := store.GetQueueItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueuePending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, context.Canceled.Error())
}

func TestProcess_ShutdownAfterExtractionCompletesOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, gateway, proc := newStoreProcessor(t, &cancellingExtractor{
		cancel: cancel,
		result: model.ExtractedExpense{
			Amount:      decimal.NewFromInt(18),
			Description: "algo rico",
			Source:      model.SourceLLMText,
		},
	})
	item := textItem("q2", "compré algo rico por dieciocho")
	require.NoError(t, store.EnqueueMessage(context.Background(), item))

	out, err := proc.Process(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, out.Kind)
	assert.True(t, out.Replied)
	assert.Len(t, gateway.sent, 1)

	stored, err := store.GetQueueItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, stored.Status)

	records, err := store.ListExpenses(context.Background(), "u1", service.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(18)))
}

func TestProcess_CancelledBeforeClaimLeavesItemPending(t *testing.T) {
	store, _, proc := newStoreProcessor(t, &fakeExtractor{})
	item := textItem("q3", "50 almuerzo")
	require.NoError(t, store.EnqueueMessage(context.Background(), item))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := proc.Process(ctx, item.ID)
	require.Error(t, err)

	stored, err := store.GetQueueItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueuePending, stored.Status)
	assert.Zero(t, stored.RetryCount)
}
