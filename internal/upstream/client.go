package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/n0madic/go-tgi-worker/internal/codec"
)

// maxResponseBytes caps how much of a backend reply is buffered.
const maxResponseBytes = 32 << 20

// ErrBackendUnavailable is returned when the backend could not be reached.
var ErrBackendUnavailable = errors.New("backend unavailable")

// Response is a fully buffered backend reply.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Elapsed    time.Duration
}

// OK reports whether the backend answered 200.
func (r *Response) OK() bool { return r.StatusCode == http.StatusOK }

// Err returns the reply as an *UpstreamError, or nil for a 200.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &UpstreamError{StatusCode: r.StatusCode, Body: r.Body, Headers: r.Headers}
}

// Client posts canonical payloads to the model backend.
type Client struct {
	URL     string
	Verbose bool
	Debug   bool

	http   *http.Client
	dumpMu sync.Mutex
}

// NewClient creates a client for url. A non-empty token is sent as a bearer
// credential on every request.
func NewClient(url, token string, timeout time.Duration, verbose bool) *Client {
	hc := &http.Client{Timeout: timeout}
	if token != "" {
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		}
	}
	return &Client{URL: url, Verbose: verbose, http: hc}
}

// Forward sends body unchanged and buffers the reply. A non-200 status is not
// an error here; callers decide with Response.OK.
func (c *Client) Forward(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.Verbose {
		slog.Info("upstream.request", "url", c.URL, "bytes", len(body))
	}
	c.dumpRequest(req, body)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	out := &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Headers:    resp.Header,
		Elapsed:    time.Since(start),
	}
	c.dumpResponse(out)

	if c.Verbose {
		attrs := []any{"status", out.StatusCode, "elapsed", out.Elapsed}
		if id := codec.RequestID(resp.Header); id != "" {
			attrs = append(attrs, "request_id", id)
		}
		slog.Info("upstream.response", attrs...)
	}
	return out, nil
}
