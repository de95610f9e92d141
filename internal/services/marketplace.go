package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/karatcart/internal/logging"
)

const defaultHTTPTimeout = 15 * time.Second

type bearerKey struct{}

// WithBearerToken attaches the customer's token to ctx; marketplace calls
// made with ctx forward it in the Authorization header.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// APIError is a non-2xx marketplace response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace %s %s failed: status %d, body: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsNotFound reports whether err is a 404 from the marketplace.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Marketplace is a JSON client for the marketplace REST backend.
type Marketplace struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewMarketplace builds a client rooted at baseURL (e.g. https://host/api).
func NewMarketplace(baseURL string, timeout time.Duration, log *zap.Logger) *Marketplace {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Marketplace{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        logging.OrNop(log).Named("marketplace"),
	}
}

type requestOpts struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

// do performs a request and decodes the unwrapped response payload into out
// when out is non-nil. It returns the raw payload for callers that need to
// inspect an empty response.
func (m *Marketplace) do(ctx context.Context, opts requestOpts, out any) (json.RawMessage, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}

	target, err := m.makeURL(opts.Path, opts.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := bearerToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute %s %s: %w", opts.Method, opts.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", opts.Method, opts.Path, err)
	}

	m.log.Debug("marketplace request",
		zap.String("method", opts.Method),
		zap.String("path", opts.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Method: opts.Method,
			Path:   opts.Path,
			Status: resp.StatusCode,
			Body:   truncate(string(respBody), 1024),
		}
	}

	payload := unwrapEnvelope(respBody)
	if out != nil && !isEmptyPayload(payload) {
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, fmt.Errorf("decode %s %s response: %w", opts.Method, opts.Path, err)
		}
	}
	return payload, nil
}

func (m *Marketplace) makeURL(path string, query map[string]string) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", errors.New("request path is required")
	}

	u, err := url.Parse(m.baseURL + "/" + path)
	if err != nil {
		return "", fmt.Errorf("parse marketplace URL: %w", err)
	}
	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

type responseEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Order json.RawMessage `json:"order"`
}

// unwrapEnvelope returns the document inside a {"data": ...} or
// {"order": ...} envelope, or the body itself when there is none.
func unwrapEnvelope(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}

	var env responseEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return trimmed
	}
	if len(env.Data) > 0 {
		return env.Data
	}
	if len(env.Order) > 0 {
		return env.Order
	}
	return trimmed
}

func isEmptyPayload(payload json.RawMessage) bool {
	p := bytes.TrimSpace(payload)
	return len(p) == 0 || bytes.Equal(p, []byte("null")) || bytes.Equal(p, []byte("{}"))
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
