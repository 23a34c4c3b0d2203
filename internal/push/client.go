// Package push sends device notifications through an Expo-compatible push gateway
// and stores the device tokens accounts register.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gatepass/backend/internal/metrics"
)

// MaxBatch is the most messages the gateway accepts in one request.
const MaxBatch = 100

// Message is one device notification.
type Message struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Ticket is the gateway verdict for one message. Status is "ok" or "error".
type Ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the gateway accepted the message.
func (t Ticket) OK() bool { return t.Status == "ok" }

// Client calls the push gateway.
type Client struct {
	URL         string
	AccessToken string
	Timeout     time.Duration
	HTTP        *http.Client
}

// NewClient creates a gateway client. Every call is bounded by timeout.
func NewClient(url, accessToken string, timeout time.Duration) *Client {
	return &Client{
		URL:         url,
		AccessToken: accessToken,
		Timeout:     timeout,
		HTTP:        &http.Client{},
	}
}

// SendBatch posts all messages in one request; callers keep batches within MaxBatch. A transport error, timeout or non-2xx status fails
// the whole batch; otherwise one ticket per message is returned in order.
func (c *Client) SendBatch(ctx context.Context, msgs []Message) ([]Ticket, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	body, err := json.Marshal(msgs)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	metrics.PushLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("push gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("push gateway error %s: %s", resp.Status, string(b))
	}

	var out struct {
		Data []Ticket `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	return out.Data, nil
}
