package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier envía el evento como JSON por POST a una URL externa.
type WebhookNotifier struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookNotifier devuelve nil si la URL está vacía.
func NewWebhookNotifier(url, token string, httpClient *http.Client) *WebhookNotifier {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, token: token, client: httpClient}
}

func (n *WebhookNotifier) PostCreated(ctx context.Context, event Event) error {
	if n == nil {
		return nil
	}
	body, err := json.Marshal(webhookPayload{Type: "post.created", Post: event})
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook http error: status=%d", resp.StatusCode)
	}
	return nil
}

type webhookPayload struct {
	Type string `json:"type"`
	Post Event  `json:"post"`
}
