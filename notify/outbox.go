package notify

import "context"

// Enqueuer persists a message for later delivery.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, userID int64, text string) error
}

// OutboxTransport queues messages instead of sending them. A worker drains
// the queue, so a slow or failing endpoint never holds up a tick.
type OutboxTransport struct {
	queue Enqueuer
}

func NewOutboxTransport(queue Enqueuer) *OutboxTransport {
	return &OutboxTransport{queue: queue}
}

func (t *OutboxTransport) Send(ctx context.Context, userID int64, text string) error {
	return t.queue.EnqueueNotification(ctx, userID, text)
}
