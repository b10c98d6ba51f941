package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Entry is a single audit log record.
type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Storage persists audit entries.
type Storage interface {
	Store(ctx context.Context, entry Entry) error
}

// Logger writes audit entries best-effort.
type Logger struct {
	storage Storage
	log     *slog.Logger
}

// NewLogger creates an audit logger. Panics on a nil storage to fail
// fast during initialization.
func NewLogger(storage Storage, log *slog.Logger) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Logger{storage: storage, log: log}
}

// Record appends an audit entry. Storage failures are logged and
// dropped; the triggering operation already committed and must not be
// reported as failed because of its audit trail.
func (l *Logger) Record(ctx context.Context, userID, action string, details map[string]any) {
	entry := Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	if err := l.storage.Store(ctx, entry); err != nil {
		l.log.ErrorContext(ctx, "audit write failed",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}
