package notify

import (
	"context"
	"log/slog"
)

// Transport delivers a text message to a user.
type Transport interface {
	Send(ctx context.Context, userID int64, text string) error
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, userID int64, text string) error {
	t.logger.InfoContext(ctx, "notification", "user_id", userID, "text", text)
	return nil
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, userID int64, text string) error

func (f TransportFunc) Send(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}
