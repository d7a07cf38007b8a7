package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TokenSource supplies the bearer token for authenticated calls. An empty
// string means the user is not logged in.
type TokenSource interface {
	Token() string
}

// Client talks to the chat backend's REST API
type Client struct {
	baseURL    *url.URL
	tokens     TokenSource
	httpClient *http.Client
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient uses a copy of hc for requests. Its cookie jar is kept if
// set, otherwise the default jar is installed on the copy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		if copied.Jar == nil {
			copied.Jar = c.httpClient.Jar
		}
		c.httpClient = &copied
	}
}

// WithTimeout sets a per-request timeout. Zero means none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTracer sets the tracer used for request spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, tokens TokenSource, logger *slog.Logger, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	c := &Client{
		baseURL:    u,
		tokens:     tokens,
		httpClient: &http.Client{Jar: jar},
		tracer:     otel.Tracer("chatsync/api"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	logger.Info("created API client", "url", u.String())
	return c, nil
}

// request describes one backend call
type request struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        bool
}

func jsonBody(v interface{}) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// send performs the request and returns the raw 2xx body. Non-2xx responses
// become *Error, transport failures wrap ErrNetwork.
func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "api."+req.op,
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("http.route", req.path),
		),
	)
	defer span.End()

	token := ""
	if req.auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			span.SetStatus(codes.Error, ErrAuthRequired.Error())
			return nil, ErrAuthRequired
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL.String()+req.path, req.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Error("request failed", "op", req.op, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrNetwork, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := errorFromBody(httpResp.StatusCode, body)
		span.SetStatus(codes.Error, apiErr.Message)
		c.logger.Warn("backend rejected request",
			"op", req.op,
			"status", httpResp.StatusCode,
			"message", apiErr.Message,
		)
		return nil, apiErr
	}

	c.logger.Debug("request completed", "op", req.op, "status", httpResp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// do sends the request and decodes a JSON response into out (if non-nil)
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	body, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

func sessionPath(id string, suffix string) string {
	return "/api/chat/session/" + url.PathEscape(id) + suffix
}
