// Package notify delivers fire-and-forget operational alerts to a webhook.
// Its own failures are logged and swallowed, never propagated to callers.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"tradehistory/config"

	"go.uber.org/zap"
)

type Notifier struct {
	webhookURL string
	httpClient *http.Client
	log        *zap.Logger
}

func New(cfg config.NotifyConfig, log *zap.Logger) *Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Notify logs the message and posts it to the configured webhook. Delivery
// runs in the background; a slow or dead webhook never stalls the caller.
func (n *Notifier) Notify(message string) {
	n.log.Warn("alert", zap.String("message", message))

	if n.webhookURL == "" {
		return
	}

	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		n.log.Error("failed to marshal alert", zap.Error(err))
		return
	}

	go n.deliver(body)
}

func (n *Notifier) deliver(body []byte) {
	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		n.log.Error("failed to deliver alert", zap.Error(err))
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.log.Error("webhook rejected alert", zap.Int("status", resp.StatusCode))
	}
}
