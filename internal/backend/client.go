package backend

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
)

const (
	// DefaultBaseURL is the local development address of the backend.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout is the hard ceiling for a buffered submit.
	DefaultTimeout = 60 * time.Second

	// DefaultStreamTimeout bounds a whole streamed answer.
	DefaultStreamTimeout = 5 * time.Minute

	maxErrorBodyBytes = 64 << 10
)

// QueryRequest is the JSON body of POST /anime and POST /anime/stream.
type QueryRequest struct {
	Input string `json:"input_"`
}

// Answer is a buffered reply.
type Answer struct {
	Text string
}

// envelope covers every reply shape the backend produces.
type envelope struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (e envelope) failureMessage() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return "Unknown error from backend."
	}
}

// Client talks to the Anime Q&A backend over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	streamTimeout time.Duration
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the buffered submit ceiling. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithStreamTimeout sets the streaming ceiling. Zero disables it.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Client) { c.streamTimeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for baseURL. An empty baseURL falls back to
// DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		timeout:       DefaultTimeout,
		streamTimeout: DefaultStreamTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the buffered submit ceiling.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// Submit sends question to POST /anime and waits for the whole answer.
func (c *Client) Submit(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyInput
	}

	reqCtx, cancel := withCeiling(ctx, c.timeout)
	defer cancel()

	req, err := c.newJSONRequest(reqCtx, http.MethodPost, "/anime", QueryRequest{Input: question})
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	c.logger.Info("anime_submit_start", "url", req.URL.String(), "input_len", len(question))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classifyTransport(reqCtx, err)
		c.logger.Error("anime_submit_error", "error", err, "kind", KindOf(err).String())
		return Answer{}, err
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		return Answer{}, c.httpError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if reqCtx.Err() != nil {
			return Answer{}, classifyTransport(reqCtx, err)
		}
		c.logger.Error("anime_submit_decode_error", "error", err)
		return Answer{}, fmt.Errorf("decode response: %w", err)
	}

	if env.Status != "success" {
		c.logger.Warn("anime_submit_failed", "status", env.Status, "message", env.failureMessage())
		return Answer{}, &BackendError{Message: env.failureMessage()}
	}

	c.logger.Info("anime_submit_done",
		"duration_ms", time.Since(start).Milliseconds(),
		"response_len", len(env.Response),
	)
	return Answer{Text: env.Response}, nil
}

// InitializeRequest mirrors the retrieval settings accepted by POST /initialize.
// Zero values are omitted so the backend keeps its current setting.
type InitializeRequest struct {
	DataDir        string `json:"data_dir,omitempty"`
	DBDir          string `json:"db_dir,omitempty"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	LLMModel       string `json:"llm_model,omitempty"`
	KDocs          int    `json:"k_docs,omitempty"`
}

// Initialize (re)builds the backend's retrieval pipeline and returns the
// backend's confirmation message. It has no built-in ceiling: indexing can
// take minutes, so the caller's context decides.
func (c *Client) Initialize(ctx context.Context, settings InitializeRequest) (string, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/initialize", settings)
	if err != nil {
		return "", err
	}

	c.logger.Info("initialize_start",
		"data_dir", settings.DataDir,
		"db_dir", settings.DBDir,
		"embedding_model", settings.EmbeddingModel,
		"llm_model", settings.LLMModel,
		"k_docs", settings.KDocs,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if !isSuccessStatus(resp.StatusCode) {
		return "", c.httpError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if ctx.Err() != nil {
			return "", classifyTransport(ctx, err)
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if env.Status != "success" {
		return "", &BackendError{Message: env.failureMessage()}
	}

	c.logger.Info("initialize_done", "message", env.Message)
	return env.Message, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// httpError drains a bounded amount of the body for diagnostics.
func (c *Client) httpError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	body := string(raw)
	c.logger.Error("backend_http_error",
		"url", resp.Request.URL.String(),
		"status", resp.StatusCode,
		"body", body,
	)

	httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: body}
	var env envelope
	if json.Unmarshal(raw, &env) == nil {
		httpErr.Message = env.Message
		if httpErr.Message == "" {
			httpErr.Message = env.Error
		}
	}
	return httpErr
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

func withCeiling(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, &TimeoutError{After: d})
}

// classifyTransport turns an error from the HTTP stack into the taxonomy,
// using the request context to tell a ceiling from a caller abort.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return &NetworkError{Err: err}
	}

	cause := context.Cause(ctx)
	var te *TimeoutError
	switch {
	case errors.As(cause, &te):
		return te
	case errors.Is(cause, context.DeadlineExceeded):
		return &TimeoutError{}
	default:
		return ErrCancelled
	}
}
