// Package api is the typed client for the Expensia REST backend. Every call
// takes the request context, carries the caller's bearer token when one is
// attached to that context, and decodes the backend's single response
// envelope.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"expensia/internal/log"
	"expensia/internal/metrics"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"

	maxResponseBytes = 16 << 20
	requestIDHeader  = "X-Request-ID"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrEnvelopeMismatch = errors.New("response does not match the expected envelope")
)

// UnauthorizedHook is invoked once for every 401 answer, with the context
// of the request that received it.
type UnauthorizedHook func(ctx context.Context)

// Client talks to the Expensia backend.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	onUnauthorized UnauthorizedHook
	metrics        *metrics.Metrics
	logger         *log.StructuredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUnauthorizedHook sets the callback run on every 401.
func WithUnauthorizedHook(hook UnauthorizedHook) Option {
	return func(c *Client) { c.onUnauthorized = hook }
}

// WithMetrics records every call into the backend latency histogram.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for backend call records.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = log.NewStructuredLogger(l.WithComponent(log.ComponentAPI)) }
}

// New creates a client for baseURL (for example http://localhost:8080/expensia).
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.NewStructuredLogger(log.New(log.DefaultConfig()).WithComponent(log.ComponentAPI)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHook installs the 401 hook after construction. The session
// manager needs the client and the client needs the manager's teardown, so
// one side has to be wired late.
func (c *Client) SetUnauthorizedHook(hook UnauthorizedHook) {
	c.onUnauthorized = hook
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type tokenKey struct{}

// WithToken returns a context whose backend calls are authenticated with token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached to ctx, if any.
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// envelope is the one response shape every backend endpoint answers with.
type envelope struct {
	Status            string          `json:"status"`
	Message           string          `json:"message"`
	Response          json.RawMessage `json:"response"`
	ErrorCode         string          `json:"errorCode"`
	RetryAfterSeconds *int            `json:"retryAfterSeconds"`
}

func (e *envelope) validate() error {
	switch e.Status {
	case StatusSuccess, StatusFailed:
		return nil
	case "":
		return fmt.Errorf("%w: missing status", ErrEnvelopeMismatch)
	default:
		return fmt.Errorf("%w: unknown status %q", ErrEnvelopeMismatch, e.Status)
	}
}

// APIError is a failed backend call.
type APIError struct {
	Status     int
	Message    string
	Code       string
	RetryAfter time.Duration
	Endpoint   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: backend returned %d (%s): %s", e.Endpoint, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Endpoint, e.Status, msg)
}

// Is lets errors.Is match the status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// MessageOr returns the backend's message for err, or fallback when the
// error carries none.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusCode returns the HTTP status of a backend error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any

	// multipart bodies are pre-encoded
	raw         []byte
	contentType string
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query}, out)
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, request{method: http.MethodPost, path: path, query: query, body: body}, out)
}

func (c *Client) put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, request{method: http.MethodPut, path: path, query: query, body: body}, out)
}

func (c *Client) delete(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, request{method: http.MethodDelete, path: path, query: query}, out)
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	endpoint := req.method + " " + req.path

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := "application/json"
	switch {
	case req.raw != nil:
		body = bytes.NewReader(req.raw)
		contentType = req.contentType
	case req.body != nil:
		buf, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", endpoint, err)
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set(requestIDHeader, uuid.NewString())
	if tok := TokenFrom(ctx); tok != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveBackendCall(endpoint, 0, elapsed)
		c.logger.LogBackendCall(ctx, req.method, req.path, 0, elapsed.Milliseconds(), err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", endpoint, ctxErr)
		}
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveBackendCall(endpoint, resp.StatusCode, elapsed)
	c.logger.LogBackendCall(ctx, req.method, req.path, resp.StatusCode, elapsed.Milliseconds(), nil)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromResponse(endpoint, resp, payload)
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrEnvelopeMismatch, err)
	}
	if err := env.validate(); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	if env.Status == StatusFailed {
		return &APIError{
			Status:     resp.StatusCode,
			Message:    env.Message,
			Code:       env.ErrorCode,
			RetryAfter: retryAfter(&env, resp.Header),
			Endpoint:   endpoint,
		}
	}

	if out == nil || len(env.Response) == 0 || string(env.Response) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("%s: %w: %v", endpoint, ErrEnvelopeMismatch, err)
	}
	return nil
}

// errorFromResponse builds an APIError from a non-2xx answer. The body is
// read as an envelope when it is one; otherwise only the status is kept.
func errorFromResponse(endpoint string, resp *http.Response, payload []byte) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Endpoint: endpoint}

	var env envelope
	if len(payload) > 0 && json.Unmarshal(payload, &env) == nil {
		apiErr.Message = env.Message
		apiErr.Code = env.ErrorCode
	}
	apiErr.RetryAfter = retryAfter(&env, resp.Header)
	return apiErr
}

// retryAfter prefers the envelope's retryAfterSeconds over the HTTP header.
func retryAfter(env *envelope, h http.Header) time.Duration {
	if env != nil && env.RetryAfterSeconds != nil && *env.RetryAfterSeconds > 0 {
		return time.Duration(*env.RetryAfterSeconds) * time.Second
	}
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if d := time.Until(at); d > 0 {
				return d.Round(time.Second)
			}
		}
	}
	return 0
}

// FilePart is a file attached to a multipart upload.
type FilePart struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     io.Reader
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, file FilePart, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("POST %s: write field %s: %w", path, k, err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.FieldName, file.FileName))
	if file.ContentType != "" {
		h.Set("Content-Type", file.ContentType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("POST %s: create file part: %w", path, err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("POST %s: copy file: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("POST %s: close multipart: %w", path, err)
	}

	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		raw:         buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, out)
}

func params(kv ...string) url.Values {
	v := make(url.Values, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
