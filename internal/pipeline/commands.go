package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/message"
	"github.com/Veraticus/gastos-must-flow/internal/model"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

// CommandHandler answers chat commands. It never writes.
type CommandHandler struct {
	expenses service.ExpenseStore
	logger   *slog.Logger
	loc      *time.Location
}

// NewCommandHandler creates a handler. Month filters are interpreted in loc.
func NewCommandHandler(expenses service.ExpenseStore, logger *slog.Logger, loc *time.Location) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CommandHandler{expenses: expenses, logger: logger, loc: loc}
}

// Handle returns the reply for cmd. Store failures are returned as errors.
func (h *CommandHandler) Handle(ctx context.Context, user *model.User, tax model.Taxonomy, cmd model.CommandEvent) (string, error) {
	switch cmd.Command {
	case model.CommandSummary:
		return h.summary(ctx, user, tax, cmd.Month)
	case model.CommandHelp:
		return replyHelp, nil
	case model.CommandWelcome:
		return welcomeReply(user), nil
	default:
		return "", common.NewRejection(common.RejectUnparseableText, fmt.Errorf("unknown command %q", cmd.Command))
	}
}

func (h *CommandHandler) summary(ctx context.Context, user *model.User, tax model.Taxonomy, month string) (string, error) {
	var filter service.ExpenseFilter
	if month != "" {
		start, err := time.ParseInLocation(message.MonthLayout, month, h.loc)
		if err != nil {
			return "", common.NewRejection(common.RejectUnparseableText, fmt.Errorf("invalid month %q: %w", month, err))
		}
		filter.Start = start
		filter.End = start.AddDate(0, 1, 0)
	}

	records, err := h.expenses.ListExpenses(ctx, user.ID, filter)
	if err != nil {
		return "", fmt.Errorf("list expenses for summary: %w", err)
	}

	summary := model.Summarize(records)
	h.logger.Debug("summary computed",
		"user_id", user.ID,
		"month", month,
		"count", summary.Count,
		"total", summary.Total.StringFixed(2))

	return summaryReply(summary, tax, month), nil
}
