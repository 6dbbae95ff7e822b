package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/message"
	"github.com/c360/alertstream/pkg/retry"
)

// WebhookClient posts rendered messages to webhook URLs. Posts are rate
// limited client-side and transient failures (429, 5xx, network errors) are
// retried with exponential backoff.
type WebhookClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	retryCfg   retry.Config
	logger     *slog.Logger

	// defaultURL is the configuration-supplied fallback used when a template
	// carries no webhook URL of its own.
	defaultURL string
}

// WebhookOption configures a WebhookClient.
type WebhookOption func(*WebhookClient)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(c *WebhookClient) { c.httpClient = client }
}

// WithRateLimit caps outgoing posts per second with the given burst.
func WithRateLimit(perSecond float64, burst int) WebhookOption {
	return func(c *WebhookClient) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithRetry overrides the retry policy for transient delivery failures.
func WithRetry(cfg retry.Config) WebhookOption {
	return func(c *WebhookClient) { c.retryCfg = cfg }
}

// WithDefaultURL sets the fallback webhook URL for templates without one.
func WithDefaultURL(url string) WebhookOption {
	return func(c *WebhookClient) { c.defaultURL = url }
}

// NewWebhookClient creates a client with a 10s request timeout, 5 posts/s
// rate limit and 3 delivery attempts by default.
func NewWebhookClient(opts ...WebhookOption) *WebhookClient {
	c := &WebhookClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		retryCfg:   retry.DefaultConfig(),
		logger:     slog.Default().With("component", "webhook-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts msg to url, honoring the rate limit and retry policy.
func (c *WebhookClient) Send(ctx context.Context, url string, msg *message.Template) error {
	if url == "" {
		return errors.WrapInvalid(errors.ErrNoTarget, "WebhookClient", "Send", "no webhook URL")
	}

	body, err := json.Marshal(buildPayload(msg, true))
	if err != nil {
		return errors.WrapInvalid(err, "WebhookClient", "Send", "encode payload")
	}

	err = retry.Do(ctx, c.retryCfg, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.NonRetryable(err)
		}
		return c.post(ctx, url, body)
	})
	if err != nil {
		return errors.WrapTransient(err, "WebhookClient", "Send", "post webhook")
	}
	return nil
}

func (c *WebhookClient) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.NonRetryable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Debug("webhook post will be retried", "status", resp.StatusCode)
		return fmt.Errorf("webhook post: %w (status %d)", errors.ErrRateLimited, resp.StatusCode)
	default:
		return retry.NonRetryable(fmt.Errorf("webhook post rejected with status %d", resp.StatusCode))
	}
}

// WebhookURL implements WebhookAddresser: the template's own URL wins over
// the configured default.
func (c *WebhookClient) WebhookURL(msg *message.Template) string {
	if msg.Webhook.URL != "" {
		return msg.Webhook.URL
	}
	return c.defaultURL
}

// DeliverWebhook implements Deliverer.
func (c *WebhookClient) DeliverWebhook(ctx context.Context, _ *Channel, msg *message.Template) error {
	return c.Send(ctx, c.WebhookURL(msg), msg)
}

// DeliverDirect implements Deliverer. A webhook-only bridge has no direct
// send path, so direct deliveries also go through the webhook with the
// channel name noted for operators.
func (c *WebhookClient) DeliverDirect(ctx context.Context, channel *Channel, msg *message.Template) error {
	if channel != nil {
		c.logger.Debug("delivering direct message via webhook", "channel", channel.Name, "channel_id", channel.ID)
	}
	return c.Send(ctx, c.WebhookURL(msg), msg)
}
