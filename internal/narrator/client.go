// Package narrator calls the Gemini generateContent API for Estrella's
// readings and turns every failure into plain fallback text.
package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/starlightdeck/careon/internal/game"
	"github.com/starlightdeck/careon/pkg/config"
	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

const (
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel    = "gemini-2.0-flash"
	defaultTimeout  = 90 * time.Second
	errorBodyLimit  = 200
	initialInterval = 800 * time.Millisecond

	MissingKeyText = "Add CAREON_NARRATOR_API_KEY to hear Estrella's wisdom."
	QuietText      = "Estrella is quiet right now."
)

var errEmptyText = errors.New("empty text")

// Client is a game.Narrator backed by the remote model.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	interval   time.Duration
	logg       *logger.Logger
	metrics    *metrics.LedgerMetrics
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryInterval overrides the first retry delay.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithMetrics(m *metrics.LedgerMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a narrator. An empty API key is allowed; every call then
// returns MissingKeyText without touching the network.
func New(cfg config.NarratorConfig, logg *logger.Logger, opts ...Option) *Client {
	if logg == nil {
		logg = logger.Nop()
	}
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		interval:   initialInterval,
		logg:       logg,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Narrate never fails; errors are logged and replaced by fallback text.
func (c *Client) Narrate(ctx context.Context, prompt string) game.Narration {
	if c.apiKey == "" {
		c.metrics.ObserveNarration(0, true)
		return game.Narration{Text: MissingKeyText, Fallback: true}
	}

	started := time.Now()
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval

	text, err := backoff.Retry(ctx, func() (string, error) {
		return c.generate(ctx, prompt)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.maxRetries+1)))

	elapsed := time.Since(started)
	if err != nil {
		c.metrics.ObserveNarration(elapsed, true)
		if errors.Is(err, errEmptyText) {
			return game.Narration{Text: QuietText, Fallback: true}
		}
		c.logg.Error(c.logg.WithField(ctx, "model", c.model), "narrator request failed", err)
		return game.Narration{Text: fmt.Sprintf("Estrella is resting (%s)", reason(err)), Fallback: true}
	}
	c.metrics.ObserveNarration(elapsed, false)
	return game.Narration{Text: text}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// statusError is a non-200 reply from the API.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal narrator request"))
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", backoff.Permanent(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build narrator request"))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute narrator request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		statusErr := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
		if retryable(resp.StatusCode) {
			return "", statusErr
		}
		return "", backoff.Permanent(statusErr)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode narrator response")
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", backoff.Permanent(errEmptyText)
	}
	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", backoff.Permanent(errEmptyText)
	}
	return text, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// reason is the short, user-safe cause shown in the fallback text.
func reason(err error) string {
	var statusErr *statusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP %d", statusErr.status)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "network error"
	}
}
