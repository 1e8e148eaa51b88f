package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultTimeout       = 10 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second

	maxResponseBytes = 32 << 20
)

// Config describes how to reach the dashboard/inference API.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RetryAttempts is the number of retries after the first attempt.
	// Zero uses the default; a negative value disables retries.
	RetryAttempts int
	RetryDelay    time.Duration
	Token         string
	HTTPClient    *http.Client
	Hooks         Hooks
}

// Client issues JSON requests with a fixed retry budget and constant delay.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	hooks   Hooks
	now     func() time.Time
}

// New builds a client, filling defaults for zero values.
func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	retries := cfg.RetryAttempts
	switch {
	case retries == 0:
		retries = DefaultRetryAttempts
	case retries < 0:
		retries = 0
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.Logger = nil
	rc.RetryMax = retries
	rc.RetryWaitMin = delay
	rc.RetryWaitMax = delay
	rc.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return delay
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt == 0 {
			return
		}
		hooks.RequestRetried(req.Context(), RequestInfo{
			ID:      req.Header.Get("X-Request-ID"),
			Method:  req.Method,
			URL:     req.URL.String(),
			Attempt: attempt,
		})
	}

	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    rc,
		hooks:   hooks,
		now:     time.Now,
	}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON fetches path and decodes the (unwrapped) body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

// PostJSON sends payload as JSON and decodes the response into out.
func (c *Client) PostJSON(ctx context.Context, path string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, buf, "application/json", out)
}

// PostFile uploads content as a multipart form file.
func (c *Client) PostFile(ctx context.Context, path, field, filename string, content io.Reader, out any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, body.Bytes(), writer.FormDataContentType(), out)
}

// Health reports whether GET /health answered with a 2xx status.
func (c *Client) Health(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, "", nil) == nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, raw)
	if err != nil {
		return err
	}
	info := RequestInfo{ID: uuid.NewString(), Method: method, URL: endpoint}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", info.ID)
	req.Header.Set("X-Request-Timestamp", c.now().UTC().Format(time.RFC3339))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	c.hooks.RequestStarted(ctx, info)
	status, err := c.roundTrip(req, out)
	c.hooks.RequestFinished(ctx, info, status, time.Since(started), err)
	return err
}

func (c *Client) roundTrip(req *retryablehttp.Request, out any) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, &NetworkError{Method: req.Method, URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, &ServerError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    serverMessage(data),
		}
	}
	if out == nil {
		return resp.StatusCode, nil
	}

	payload, err := unwrapEnvelope(data, resp.StatusCode)
	if err != nil {
		return resp.StatusCode, err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return resp.StatusCode, nil
}

// unwrapEnvelope strips the envelopes the API family uses:
// {"success": bool, "data": ...}, a bare {"data": ...} and
// {"error": bool, "resultset": ...}. Anything else is returned untouched.
func unwrapEnvelope(data []byte, status int) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if flag, ok := env["error"]; ok && isTrue(flag) {
		return nil, envelopeError(env, status)
	}
	if result, ok := env["resultset"]; ok {
		return result, nil
	}
	if successRaw, ok := env["success"]; ok {
		if !isTrue(successRaw) {
			return nil, envelopeError(env, status)
		}
		if result, ok := env["data"]; ok {
			return result, nil
		}
	}
	if result, ok := env["data"]; ok && !bytes.Equal(bytes.TrimSpace(result), []byte("null")) {
		return result, nil
	}
	return trimmed, nil
}

func envelopeError(env map[string]json.RawMessage, status int) error {
	code := status
	if raw, ok := env["status_code"]; ok {
		var parsed int
		if json.Unmarshal(raw, &parsed) == nil && parsed != 0 {
			code = parsed
		}
	}
	buf, _ := json.Marshal(env)
	return &ServerError{StatusCode: code, Message: serverMessage(buf)}
}

func isTrue(raw json.RawMessage) bool {
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}
