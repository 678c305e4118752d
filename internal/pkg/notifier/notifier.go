package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"windback-be/pkg/signature"
)

const (
	SignatureHeader = "X-Windback-Signature"
	EventHeader     = "X-Windback-Event"
)

// Notification is the body delivered to every channel.
type Notification struct {
	ProjectId  string                 `json:"project_id"`
	Kind       string                 `json:"kind"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}

// Channel delivers one notification to one destination.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

func post(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return nil
}

// SlackChannel posts a text message to a Slack incoming webhook.
type SlackChannel struct {
	url    string
	client *http.Client
}

func NewSlackChannel(url string, client *http.Client) *SlackChannel {
	return &SlackChannel{url: url, client: client}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(map[string]string{"text": SlackText(n)})
	if err != nil {
		return err
	}
	return post(ctx, c.client, c.url, body, nil)
}

// SlackText renders the one-line summary shown in Slack.
func SlackText(n Notification) string {
	email, _ := n.Payload["customer_email"].(string)
	if email == "" {
		email = "unknown customer"
	}
	switch n.Kind {
	case "churn_created":
		return fmt.Sprintf(":warning: New churn: %s cancelled (%v)", email, n.Payload["cancel_reason"])
	case "churn_recovered":
		return fmt.Sprintf(":tada: Churn recovered: %s is back", email)
	case "payment_failed":
		return fmt.Sprintf(":credit_card: Payment failed for %s (%v)", email, n.Payload["amount"])
	case "payment_recovered":
		return fmt.Sprintf(":white_check_mark: Payment recovered for %s", email)
	}
	return fmt.Sprintf("%s: %s", n.Kind, email)
}

// WebhookChannel posts the JSON notification signed with the project's secret.
type WebhookChannel struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookChannel(url, secret string, client *http.Client) *WebhookChannel {
	return &WebhookChannel{url: url, secret: secret, client: client}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Deliver(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	headers := map[string]string{EventHeader: n.Kind}
	if c.secret != "" {
		headers[SignatureHeader] = signature.Sign(c.secret, body)
	}
	return post(ctx, c.client, c.url, body, headers)
}

// DeliverWithRetry tries a channel at most twice.
func DeliverWithRetry(ctx context.Context, ch Channel, n Notification, backoff time.Duration) error {
	err := ch.Deliver(ctx, n)
	if err == nil {
		return nil
	}
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return err
	}
	if retryErr := ch.Deliver(ctx, n); retryErr != nil {
		return fmt.Errorf("%s: %w", ch.Name(), retryErr)
	}
	return nil
}
