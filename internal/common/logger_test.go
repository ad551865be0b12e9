package common

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx := context.Background()

	LogError(ctx, logger, errors.New("disk full"), "save failed", Fields{"user_id": "u1", "expense_id": "e1"})
	assert.Contains(t, buf.String(), `level=ERROR msg="save failed" expense_id=e1 user_id=u1 error="disk full"`)

	buf.Reset()
	LogWarn(ctx, logger, errors.New("timeout"), "fault", Fields{"retry_count": 2})
	assert.Contains(t, buf.String(), `level=WARN msg=fault retry_count=2 error=timeout`)

	buf.Reset()
	LogInfo(ctx, logger, "done", nil)
	assert.Contains(t, buf.String(), "level=INFO msg=done")

	buf.Reset()
	LogError(ctx, logger, nil, "no cause", Fields{"kind": "failed"})
	assert.NotContains(t, buf.String(), "error=")
}
