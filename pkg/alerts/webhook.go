package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook request headers.
const (
	EventHeader          = "X-ImageGen-Event"
	IdempotencyKeyHeader = "Idempotency-Key"
	SignatureHeader      = "X-Signature-256"
)

// WebhookNotifier posts budget alerts to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, request bodies are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// EventName returns the webhook event type for an alert, e.g. "budget.warning".
func EventName(alert Alert) string {
	return "budget." + string(alert.Level)
}

// IdempotencyKey identifies one level crossing in one month. A level is
// crossed at most once per month, so receivers can drop repeats.
func IdempotencyKey(alert Alert) string {
	return alert.Month + ":" + string(alert.Level)
}

// Send posts the alert. The event and idempotency key are sent both as
// headers and in the body.
func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := webhookPayload{
		Event:          EventName(alert),
		IdempotencyKey: IdempotencyKey(alert),
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		RemainingUSD:   max(alert.LimitUSD-alert.CurrentSpend, 0),
		UsagePct:       alert.UsagePct(),
		Alert:          alert,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ImageGen-Guardian/1.0")
	req.Header.Set(EventHeader, payload.Event)
	req.Header.Set(IdempotencyKeyHeader, payload.IdempotencyKey)

	if w.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+computeHMAC(body, []byte(w.secret)))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s webhook for %s: %w", payload.Event, alert.Month, err)
	}
	defer resp.Body.Close()

	// 409 means the receiver already processed this key.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d for %s", resp.StatusCode, payload.IdempotencyKey)
	}
	return nil
}

type webhookPayload struct {
	Event          string  `json:"event"`
	IdempotencyKey string  `json:"idempotency_key"`
	Timestamp      string  `json:"timestamp"`
	RemainingUSD   float64 `json:"remaining_usd"`
	UsagePct       float64 `json:"usage_pct"`
	Alert          Alert   `json:"alert"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
