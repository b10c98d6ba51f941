package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthacademy/subscriptions/pkg/audit"
)

type failingStorage struct{}

func (failingStorage) Store(ctx context.Context, entry audit.Entry) error {
	return errors.New("table on fire")
}

func TestLogger_Record(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	logger := audit.NewLogger(storage, slog.New(slog.DiscardHandler))

	logger.Record(context.Background(), "user_1", "checkout.completed", map[string]any{
		"tier": "pro",
	})

	entries := storage.ByUser("user_1")
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "checkout.completed", entries[0].Action)
	assert.Equal(t, "pro", entries[0].Details["tier"])
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestLogger_Record_SwallowsStorageFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := audit.NewLogger(failingStorage{}, slog.New(slog.NewTextHandler(&buf, nil)))

	require.NotPanics(t, func() {
		logger.Record(context.Background(), "user_1", "identity.created", nil)
	})

	// Failure is observable in the log, invisible to the caller.
	assert.Contains(t, buf.String(), "audit write failed")
	assert.Contains(t, buf.String(), "identity.created")
}

func TestNewLogger_NilStorage(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		audit.NewLogger(nil, slog.New(slog.DiscardHandler))
	})
}
