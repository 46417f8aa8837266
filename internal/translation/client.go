// Package translation is the widget-side client of the translation service.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrServiceUnavailable is the only failure callers ever see; the
	// underlying cause is logged.
	ErrServiceUnavailable = errors.New("translation service is currently unavailable, please try again later")
	// ErrEmptyText is returned without a network call for blank input.
	ErrEmptyText = errors.New("translation text is empty")
)

// Request is the JSON body of POST /translate.
type Request struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Response is the JSON body returned by POST /translate.
type Response struct {
	TranslatedText string `json:"translatedText,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Client issues exactly one request per Translate call. There is no retry.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	logger   *slog.Logger
	requests metric.Int64Counter
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its transport is still
// wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.http = &copied
	}
}

// WithTimeout bounds each request, whichever HTTP client is in use. Zero
// leaves the client's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + "/translate",
		http:     &http.Client{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		c.http.Timeout = c.timeout
	}
	transport := c.http.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.http.Transport = otelhttp.NewTransport(transport)
	c.logger = c.logger.With(slog.String("component", "translation-client"))

	counter, err := otel.Meter("github.com/loqalabs/talkez/translation").Int64Counter(
		"talkez.translation.client.requests",
		metric.WithDescription("Translation requests issued by the widget, by outcome"),
	)
	if err != nil {
		c.logger.Warn("failed to create request counter", slog.String("error", err.Error()))
	}
	c.requests = counter
	return c
}

// Translate sends text to the service. source and target are base codes
// ("fr", "en"). A response without translatedText echoes the input.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	translated, err := c.do(ctx, Request{Text: text, Source: source, Target: target})
	if err != nil {
		c.record(ctx, "failure")
		c.logger.Error("translation failed",
			slog.String("source", source),
			slog.String("target", target),
			slog.String("error", err.Error()))
		return "", ErrServiceUnavailable
	}
	c.record(ctx, "success")
	return translated, nil
}

func (c *Client) do(ctx context.Context, payload Request) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("translation service error: %d", resp.StatusCode)
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	if decoded.Error != "" {
		return "", errors.New(decoded.Error)
	}
	if decoded.TranslatedText == "" {
		return payload.Text, nil
	}
	return decoded.TranslatedText, nil
}

func (c *Client) record(ctx context.Context, outcome string) {
	if c.requests == nil {
		return
	}
	c.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
