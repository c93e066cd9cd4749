package workers

import (
	"context"
	"errors"
	"testing"

	"rentwatch/models"
	"rentwatch/notify"
)

type fakeOutbox struct {
	pending  []models.Notification
	statuses map[string]models.NotificationStatus
	attempts map[string]int
}

func newFakeOutbox(ns ...models.Notification) *fakeOutbox {
	return &fakeOutbox{
		pending:  ns,
		statuses: make(map[string]models.NotificationStatus),
		attempts: make(map[string]int),
	}
}

func (f *fakeOutbox) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.pending {
		if s, ok := f.statuses[n.ID]; ok && s != models.NotificationPending {
			continue
		}
		n.Attempts = f.attempts[n.ID]
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus, attempts int) error {
	f.statuses[id] = status
	f.attempts[id] = attempts
	return nil
}

func TestOutboxWorker_DeliversInOrder(t *testing.T) {
	store := newFakeOutbox(
		models.Notification{ID: "a", UserID: 1, Text: "one"},
		models.Notification{ID: "b", UserID: 1, Text: "two"},
	)
	var got []string
	sender := notify.TransportFunc(func(ctx context.Context, userID int64, text string) error {
		got = append(got, text)
		return nil
	})

	w := NewOutboxWorker(store, sender, 3)
	sent, failed := w.ProcessBatch(context.Background(), 10)
	if sent != 2 || failed != 0 {
		t.Fatalf("expected 2 sent, got %d sent %d failed", sent, failed)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected delivery order %v", got)
	}
	if store.statuses["a"] != models.NotificationSent || store.statuses["b"] != models.NotificationSent {
		t.Fatalf("expected both marked sent, got %v", store.statuses)
	}
}

func TestOutboxWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newFakeOutbox(models.Notification{ID: "a", UserID: 1, Text: "one"})
	sender := notify.TransportFunc(func(ctx context.Context, userID int64, text string) error {
		return errors.New("endpoint down")
	})

	var dropped int
	w := NewOutboxWorker(store, sender, 2)
	w.SetLogger(func(level models.LogLevel, userID int64, message string) {
		if level == models.LogLevelError {
			dropped++
		}
	})

	w.ProcessBatch(context.Background(), 10)
	if store.statuses["a"] != models.NotificationPending || store.attempts["a"] != 1 {
		t.Fatalf("expected retry after first failure, got %s/%d", store.statuses["a"], store.attempts["a"])
	}

	w.ProcessBatch(context.Background(), 10)
	if store.statuses["a"] != models.NotificationFailed || store.attempts["a"] != 2 {
		t.Fatalf("expected failed after max attempts, got %s/%d", store.statuses["a"], store.attempts["a"])
	}
	if dropped != 1 {
		t.Fatalf("expected one drop logged, got %d", dropped)
	}

	if sent, failed := w.ProcessBatch(context.Background(), 10); sent != 0 || failed != 0 {
		t.Fatalf("failed message must not be retried, got %d/%d", sent, failed)
	}
}

func TestOutboxWorker_TriggerDoesNotBlock(t *testing.T) {
	w := NewOutboxWorker(newFakeOutbox(), notify.NewLogTransport(nil), 1)
	w.Trigger()
	w.Trigger()
}
