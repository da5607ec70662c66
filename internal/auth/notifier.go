package auth

import (
	"context"

	slogctx "github.com/veqryn/slog-context"
)

// Notifier carries non-blocking, user-visible outcome messages. Nothing in
// this package fails a caller just because a notification could not be
// shown.
type Notifier interface {
	Success(ctx context.Context, message string)
	Error(ctx context.Context, message string)
}

// LogNotifier writes notifications to the log. It is the fallback when a
// transport has nowhere user-facing to put them.
type LogNotifier struct{}

func (LogNotifier) Success(ctx context.Context, message string) {
	slogctx.Info(ctx, "User notification", "kind", "success", "message", message)
}

func (LogNotifier) Error(ctx context.Context, message string) {
	slogctx.Warn(ctx, "User notification", "kind", "error", "message", message)
}
