// Package alert delivers trade notifications to a Discord webhook. Delivery
// is best-effort: failures are logged and never propagate, so an unreachable
// webhook cannot fail or delay a trade.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

type Discord struct {
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

// NewDiscord creates a notifier for the given webhook URL. An empty URL is
// valid: messages are then logged locally instead of sent.
func NewDiscord(webhookURL string, timeout time.Duration) *Discord {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Discord{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        slog.Default(),
	}
}

// Send posts a plain content message to the webhook.
func (d *Discord) Send(ctx context.Context, message string) {
	if d.webhookURL == "" {
		d.log.Info("discord webhook not configured, logging alert locally", "message", message)
		return
	}

	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		d.log.Error("marshal discord alert", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		d.log.Error("create discord request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.log.Error("send discord alert", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.log.Error("discord alert rejected", "error", fmt.Errorf("http %d", resp.StatusCode))
	}
}
