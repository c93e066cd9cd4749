package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type webhookPayload struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// WebhookTransport POSTs {user_id, text} as JSON to a fixed URL.
type WebhookTransport struct {
	client *http.Client
	url    string
}

func NewWebhookTransport(client *http.Client, url string) *WebhookTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookTransport{client: client, url: url}
}

func (t *WebhookTransport) Send(ctx context.Context, userID int64, text string) error {
	body, err := json.Marshal(webhookPayload{UserID: userID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook status: %d", resp.StatusCode)
	}
	return nil
}
