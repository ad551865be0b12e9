// Package pipeline runs one queue item through identity resolution, parsing,
// inference and registration, and drives its status to a terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/expense"
	"github.com/Veraticus/gastos-must-flow/internal/inference"
	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

// ErrPanic wraps a panic recovered while processing an item.
var ErrPanic = errors.New("panic while processing item")

// Extractor reads expenses out of text the pattern parser missed and out of
// receipt images.
type Extractor interface {
	ExtractExpense(ctx context.Context, text string) (model.ExtractedExpense, error)
	ExtractReceipt(ctx context.Context, image []byte, mimeType string) (model.ExtractedExpense, error)
}

// OutcomeKind summarizes what happened to an item in one Process call.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeSkipped   OutcomeKind = "skipped"
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeRejected  OutcomeKind = "rejected"
	OutcomeRequeued  OutcomeKind = "requeued"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome reports the result of processing one item. NotifyErr is set when
// the reply could not be delivered; it never changes Status.
type Outcome struct {
	NotifyErr  error
	ItemID     string
	Status     model.QueueStatus
	Kind       OutcomeKind
	RetryCount int
	Replied    bool
}

// Dependencies are the collaborators a Processor needs.
type Dependencies struct {
	Queue     service.QueueStore
	Users     service.UserDirectory
	Expenses  service.ExpenseStore
	Gateway   service.Gateway
	Media     service.MediaFetcher
	Extractor Extractor
	Logger    *slog.Logger
	Location  *time.Location
}

// Processor handles one queue item at a time. It keeps no per-item state
// between calls and is safe for concurrent use on distinct items.
type Processor struct {
	queue     service.QueueStore
	users     service.UserDirectory
	gateway   service.Gateway
	media     service.MediaFetcher
	extractor Extractor
	registrar *expense.Registrar
	commands  *CommandHandler
	logger    *slog.Logger
	now       func() time.Time
}

// NewProcessor validates deps and builds a Processor.
func NewProcessor(deps Dependencies) (*Processor, error) {
	switch {
	case deps.Queue == nil:
		return nil, fmt.Errorf("%w: queue store", common.ErrMissingConfig)
	case deps.Users == nil:
		return nil, fmt.Errorf("%w: user directory", common.ErrMissingConfig)
	case deps.Expenses == nil:
		return nil, fmt.Errorf("%w: expense store", common.ErrMissingConfig)
	case deps.Gateway == nil:
		return nil, fmt.Errorf("%w: messaging gateway", common.ErrMissingConfig)
	case deps.Media == nil:
		return nil, fmt.Errorf("%w: media fetcher", common.ErrMissingConfig)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: extractor", common.ErrMissingConfig)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		queue:     deps.Queue,
		users:     deps.Users,
		gateway:   deps.Gateway,
		media:     deps.Media,
		extractor: deps.Extractor,
		registrar: expense.NewRegistrar(deps.Expenses, logger, deps.Location),
		commands:  NewCommandHandler(deps.Expenses, logger, deps.Location),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Process runs the item with the given ID if it is still pending. Errors are
// returned only when the queue itself cannot be read or written; everything
// that goes wrong inside the item is reflected in the Outcome. Cancelling ctx
// stops Process only before the item is claimed.
func (p *Processor) Process(ctx context.Context, itemID string) (Outcome, error) {
	item, err := p.queue.GetQueueItem(ctx, itemID)
	if err != nil {
		return Outcome{ItemID: itemID}, fmt.Errorf("load queue item: %w", err)
	}
	if item.Status != model.QueuePending {
		return skipped(item), nil
	}

	now := p.now()
	claimed, err := p.queue.ClaimQueueItem(ctx, item.ID, now)
	if err != nil {
		return skipped(item), fmt.Errorf("claim queue item: %w", err)
	}
	if !claimed {
		p.logger.Debug("queue item claimed elsewhere", "item_id", item.ID)
		return skipped(item), nil
	}

	// A claimed item always reaches a persisted status. Collaborators keep
	// their own timeouts.
	ctx = context.WithoutCancel(ctx)
	if err := item.TransitionTo(model.QueueProcessing, now); err != nil {
		return skipped(item), err
	}

	res := p.safeRun(ctx, item)
	return p.finish(ctx, item, res)
}

func skipped(item *model.QueueItem) Outcome {
	return Outcome{
		ItemID:     item.ID,
		Status:     item.Status,
		Kind:       OutcomeSkipped,
		RetryCount: item.RetryCount,
	}
}

// result is what running an item produced before its status is settled.
type result struct {
	err    error
	user   *model.User
	reply  string
	record *model.ExpenseRecord
}

func (p *Processor) safeRun(ctx context.Context, item *model.QueueItem) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{user: res.user, err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	p.run(ctx, item, &res)
	return res
}

func (p *Processor) run(ctx context.Context, item *model.QueueItem, res *result) {
	identity := message.NormalizeIdentity(item.ChannelIdentity)
	user, err := p.users.GetUserByChannelIdentity(ctx, identity)
	if errors.Is(err, common.ErrNotFound) {
		res.err = common.NewRejection(common.RejectUnregistered, fmt.Errorf("identity %s: %w", identity, err))
		return
	}
	if err != nil {
		res.err = fmt.Errorf("resolve user: %w", err)
		return
	}
	res.user = user

	tax, err := p.users.GetTaxonomy(ctx, user.ID)
	if err != nil {
		p.logger.Warn("taxonomy unavailable, using defaults",
			"item_id", item.ID,
			"user_id", user.ID,
			"error", err)
		tax = model.Taxonomy{}
	}

	var extracted model.ExtractedExpense
	switch in := message.Classify(item).(type) {
	case model.CommandEvent:
		res.reply, res.err = p.commands.Handle(ctx, user, tax, in)
		return
	case model.EmptyEvent:
		res.err = common.NewRejection(common.RejectEmptyMessage, errors.New("message has no text or media"))
		return
	case model.TextCandidate:
		extracted, err = p.extractText(ctx, in.Text)
	case model.ImageCandidate:
		extracted, err = p.extractImage(ctx, in)
	default:
		err = fmt.Errorf("unhandled inbound %T", in)
	}
	if err != nil {
		res.err = err
		return
	}

	inferred := inference.Infer(tax, extracted)
	reg := p.registrar.Register(ctx, user.ID, extracted, inferred)
	if !reg.Saved {
		res.err = fmt.Errorf("register expense: %w", reg.Err)
		return
	}

	res.record = &reg.Record
	res.reply = confirmationReply(reg.Record, extracted, tax)
}

func (p *Processor) extractText(ctx context.Context, text string) (model.ExtractedExpense, error) {
	if extracted, ok := message.ParseExpense(text); ok {
		return extracted, nil
	}
	return p.extractor.ExtractExpense(ctx, text)
}

func (p *Processor) extractImage(ctx context.Context, in model.ImageCandidate) (model.ExtractedExpense, error) {
	media, err := p.media.Fetch(ctx, in.Media.URL)
	if errors.Is(err, common.ErrMediaTooBig) {
		return model.ExtractedExpense{}, common.NewRejection(common.RejectUnsupportedMedia, err)
	}
	if err != nil {
		return model.ExtractedExpense{}, fmt.Errorf("fetch media: %w", err)
	}

	mimeType := media.MimeType
	if mimeType == "" {
		mimeType = in.Media.MimeType
	}
	return p.extractor.ExtractReceipt(ctx, media.Data, mimeType)
}

// finish settles the item's status, persists it, then sends at most one
// reply.
func (p *Processor) finish(ctx context.Context, item *model.QueueItem, res result) (Outcome, error) {
	now := p.now()
	out := Outcome{ItemID: item.ID}
	reply := res.reply

	fields := common.Fields{"item_id": item.ID}
	if res.user != nil {
		fields["user_id"] = res.user.ID
	}

	switch {
	case res.err == nil:
		if err := item.TransitionTo(model.QueueCompleted, now); err != nil {
			return out, err
		}
		item.LastError = ""
		out.Kind = OutcomeCompleted

	case common.IsRejection(res.err):
		if err := item.TransitionTo(model.QueueCompleted, now); err != nil {
			return out, err
		}
		item.LastError = res.err.Error()
		kind, _ := common.RejectionKindOf(res.err)
		reply = rejectionReply(kind)
		out.Kind = OutcomeRejected

	case item.RetriesExhausted():
		if err := item.Fail(res.err.Error(), now); err != nil {
			return out, err
		}
		reply = replyFinalFailure
		out.Kind = OutcomeFailed

	default:
		if err := item.Requeue(res.err.Error(), now); err != nil {
			return out, err
		}
		reply = ""
		out.Kind = OutcomeRequeued
	}

	out.Status = item.Status
	out.RetryCount = item.RetryCount

	if err := p.queue.UpdateQueueItem(ctx, item); err != nil {
		return out, fmt.Errorf("update queue item: %w", err)
	}

	fields["kind"] = out.Kind
	fields["retry_count"] = item.RetryCount
	switch out.Kind {
	case OutcomeRequeued:
		common.LogWarn(ctx, p.logger, res.err, "queue item fault", fields)
	case OutcomeFailed:
		common.LogError(ctx, p.logger, res.err, "queue item failed", fields)
	case OutcomeRejected:
		fields["reason"] = item.LastError
		common.LogInfo(ctx, p.logger, "queue item rejected", fields)
	default:
		if res.record != nil {
			fields["expense_id"] = res.record.ID
		}
		common.LogInfo(ctx, p.logger, "queue item completed", fields)
	}

	if reply == "" {
		return out, nil
	}

	if err := p.gateway.Send(ctx, message.NormalizeIdentity(item.ChannelIdentity), reply); err != nil {
		out.NotifyErr = err
		common.LogError(ctx, p.logger, err, "failed to send reply", fields)
		return out, nil
	}
	out.Replied = true
	return out, nil
}
