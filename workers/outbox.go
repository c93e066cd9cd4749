package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentwatch/models"
	"rentwatch/notify"
)

// OutboxStore is the queue side of the notification outbox.
type OutboxStore interface {
	GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error)
	UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus, attempts int) error
}

// OutboxWorker delivers queued notifications through a transport. Messages
// that keep failing are marked failed after maxAttempts.
type OutboxWorker struct {
	store       OutboxStore
	sender      notify.Transport
	maxAttempts int
	triggerCh   chan struct{}
	logFunc     LogFunc
}

func NewOutboxWorker(store OutboxStore, sender notify.Transport, maxAttempts int) *OutboxWorker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OutboxWorker{
		store:       store,
		sender:      sender,
		maxAttempts: maxAttempts,
		triggerCh:   make(chan struct{}, 1),
		logFunc:     NoOpLogger,
	}
}

func (w *OutboxWorker) SetLogger(fn LogFunc) {
	if fn != nil {
		w.logFunc = fn
	}
}

// Trigger causes the worker to drain the queue immediately
func (w *OutboxWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *OutboxWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.ProcessBatch(ctx, batchSize)
		}
	}
}

// ProcessBatch sends up to batchSize pending messages and returns how many
// were delivered and how many failed.
func (w *OutboxWorker) ProcessBatch(ctx context.Context, batchSize int) (sent, failed int) {
	pending, err := w.store.GetPendingNotifications(ctx, batchSize)
	if err != nil {
		slog.Error("outbox worker: query failed", "error", err)
		return 0, 0
	}
	if len(pending) == 0 {
		return 0, 0
	}

	for i := range pending {
		n := &pending[i]
		attempts := n.Attempts + 1

		if err := w.sender.Send(ctx, n.UserID, n.Text); err != nil {
			failed++
			status := models.NotificationPending
			if attempts >= w.maxAttempts {
				status = models.NotificationFailed
				w.logFunc(models.LogLevelError, n.UserID, fmt.Sprintf("notification %s dropped after %d attempts: %v", n.ID, attempts, err))
			}
			slog.Warn("outbox worker: send failed", "id", n.ID, "user_id", n.UserID, "attempts", attempts, "error", err)
			if err := w.store.UpdateNotificationStatus(ctx, n.ID, status, attempts); err != nil {
				slog.Error("outbox worker: update failed", "id", n.ID, "error", err)
			}
			continue
		}

		if err := w.store.UpdateNotificationStatus(ctx, n.ID, models.NotificationSent, attempts); err != nil {
			slog.Error("outbox worker: update failed", "id", n.ID, "error", err)
		}
		sent++
	}

	slog.Info("outbox worker: batch done", "sent", sent, "failed", failed)
	return sent, failed
}
