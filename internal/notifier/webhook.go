package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookPayload body POSTed to the webhook endpoint
type WebhookPayload struct {
	To         string         `json:"to"`
	TemplateID string         `json:"templateId"`
	Message    Message        `json:"message"`
	Vars       map[string]any `json:"vars"`
}

// WebhookNotifier hands messages to an HTTP relay (chat bot, mail gateway).
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookNotifier(url, token string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &WebhookNotifier{client: client, url: url, logger: logger}
}

var _ Notifier = (*WebhookNotifier)(nil)

func (n *WebhookNotifier) Send(ctx context.Context, to, templateID string, vars map[string]any) error {
	msg, err := Render(templateID, vars)
	if err != nil {
		return wrap("webhook", err)
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(WebhookPayload{To: to, TemplateID: templateID, Message: msg, Vars: vars}).
		Post(n.url)
	if err != nil {
		return wrap("webhook", err)
	}
	if resp.IsError() {
		n.logger.Warn("Webhook rejected notification",
			zap.String("to", to),
			zap.Int("status_code", resp.StatusCode()),
		)
		return wrap("webhook", fmt.Errorf("status %d", resp.StatusCode()))
	}
	return nil
}
