package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/baxromumarov/pagewatch/internal/httpx"
	"github.com/baxromumarov/pagewatch/internal/urlutil"
)

// Doer sends a prepared request. *httpx.PoliteClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type webhookPayload struct {
	Content string `json:"content"`
}

// WebhookSink posts messages as {"content": message} JSON.
type WebhookSink struct {
	url    string
	name   string
	client Doer
}

func NewWebhookSink(rawURL string, client Doer) *WebhookSink {
	if client == nil {
		client = httpx.NewPoliteClient("", 0)
	}
	return &WebhookSink{url: rawURL, name: sinkName(rawURL), client: client}
}

// Name identifies the sink in logs without leaking path tokens, which
// webhook services commonly embed as credentials.
func (w *WebhookSink) Name() string {
	return w.name
}

func (w *WebhookSink) Deliver(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return &DeliveryError{Sink: w.name, Err: fmt.Errorf("encode payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Sink: w.name, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(ctx, req)
	if err != nil {
		return &DeliveryError{Sink: w.name, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			Sink:   w.name,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return nil
}

func sinkName(rawURL string) string {
	return "webhook " + urlutil.Redact(rawURL)
}
