package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
)

// SignatureHeader carries the hex HMAC-SHA256 of the body when a secret is set.
const SignatureHeader = "X-Guard-Signature"

// WebhookChannel posts a JSON card to a chat webhook.
type WebhookChannel struct {
	name   string
	url    string
	secret string
	client *http.Client
	clock  clock.Clock
}

// NewWebhookChannel creates a webhook channel. A nil client uses
// http.DefaultClient; timeouts come from the send context.
func NewWebhookChannel(name, url, secret string, client *http.Client) *WebhookChannel {
	if name == "" {
		name = domain.ChannelWebhook
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookChannel{
		name:   name,
		url:    url,
		secret: secret,
		client: client,
		clock:  clock.Real,
	}
}

func (c *WebhookChannel) Name() string { return c.name }
func (c *WebhookChannel) Type() string { return domain.ChannelWebhook }

// Send posts the card. Non-2xx responses are errors.
func (c *WebhookChannel) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(BuildCard(msg, c.clock.Now().UTC().Truncate(time.Second)))
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SignatureHeader, Sign(c.secret, body))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
