package narrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/starlightdeck/careon/pkg/config"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func testConfig() config.NarratorConfig {
	return config.NarratorConfig{
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash",
		BaseURL:    "http://gemini.test/v1beta/",
		Timeout:    time.Second,
		MaxRetries: 2,
	}
}

func TestNarrateSendsPromptAndReturnsText(t *testing.T) {
	var capturedURL, capturedKey string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedKey = req.Header.Get("X-Goog-Api-Key")
		var payload generateRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if got := payload.Contents[0].Parts[0].Text; got != "hello" {
			t.Fatalf("unexpected prompt %q", got)
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"  Steady light.  "}]}}]}`), nil
	})

	c := New(testConfig(), logger.Nop(), WithHTTPClient(&http.Client{Transport: rt}))
	n := c.Narrate(context.Background(), "hello")
	if n.Fallback || n.Text != "Steady light." {
		t.Fatalf("unexpected narration %+v", n)
	}
	if capturedURL != "http://gemini.test/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedKey != "test-key" {
		t.Fatalf("api key header missing")
	}
}

func TestNarrateWithoutKeyIsOffline(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = " "
	called := false
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unexpected")
	})
	n := New(cfg, nil, WithHTTPClient(&http.Client{Transport: rt})).Narrate(context.Background(), "x")
	if !n.Fallback || n.Text != MissingKeyText {
		t.Fatalf("unexpected narration %+v", n)
	}
	if called {
		t.Fatalf("offline narrator must not call the API")
	}
}

func TestNarrateRetriesServerErrors(t *testing.T) {
	calls := 0
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return jsonResponse(http.StatusServiceUnavailable, "overloaded"), nil
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"third time"}]}}]}`), nil
	})
	c := New(testConfig(), logger.Nop(), WithHTTPClient(&http.Client{Transport: rt}), WithRetryInterval(time.Millisecond))
	n := c.Narrate(context.Background(), "x")
	if n.Fallback || n.Text != "third time" || calls != 3 {
		t.Fatalf("expected success on third call, calls=%d narration=%+v", calls, n)
	}
}

func TestNarrateFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		err       error
		wantText  string
		wantCalls int
	}{
		{name: "client error is not retried", status: http.StatusBadRequest, body: "bad", wantText: "Estrella is resting (HTTP 400)", wantCalls: 1},
		{name: "server error exhausts retries", status: http.StatusInternalServerError, body: "boom", wantText: "Estrella is resting (HTTP 500)", wantCalls: 3},
		{name: "network error", err: errors.New("dial tcp: refused"), wantText: "Estrella is resting (network error)", wantCalls: 3},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, wantText: QuietText, wantCalls: 1},
		{name: "blank text", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, wantText: QuietText, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
				calls++
				if tt.err != nil {
					return nil, tt.err
				}
				return jsonResponse(tt.status, tt.body), nil
			})
			c := New(testConfig(), logger.Nop(), WithHTTPClient(&http.Client{Transport: rt}), WithRetryInterval(time.Millisecond))
			n := c.Narrate(context.Background(), "x")
			if !n.Fallback || n.Text != tt.wantText {
				t.Fatalf("unexpected narration %+v", n)
			}
			if calls != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestNarrateRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewLedgerMetrics(reg)
	cfg := testConfig()
	cfg.APIKey = ""
	New(cfg, logger.Nop(), WithMetrics(m)).Narrate(context.Background(), "x")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "careon_narration_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if metric.GetHistogram().GetSampleCount() == 1 {
				return
			}
		}
	}
	t.Fatalf("expected one narration observation")
}
