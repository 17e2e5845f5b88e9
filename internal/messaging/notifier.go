package messaging

import (
	"context"

	"dm-service/internal/models"
)

// Notifier pushes a live event to a user's active connection. It reports
// whether the event was handed to a connection; absence is not an error.
type Notifier interface {
	Notify(ctx context.Context, userID int, event models.LiveEvent) bool
}

// NopNotifier drops every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, int, models.LiveEvent) bool { return false }

// Auditor records security-relevant actions.
type Auditor interface {
	Emit(ctx context.Context, level, text string, userID int)
}

type nopAuditor struct{}

func (nopAuditor) Emit(context.Context, string, string, int) {}
