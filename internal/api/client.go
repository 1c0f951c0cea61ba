package api

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
	"github.com/rs/zerolog"
	"github.com/shibinsp/ocrapillm/internal/clock"
	"github.com/shibinsp/ocrapillm/internal/logging"
	"github.com/shibinsp/ocrapillm/internal/metrics"
)

const (
	DefaultBaseURL       = "http://localhost:8000"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultUploadTimeout = 2 * time.Minute
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second

	maxBodyBytes = 64 << 20
)

// ErrBodyTooLarge reports a response body over the client's read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// Client talks to the OCR document service.
type Client struct {
	httpClient       *http.Client
	uploadClient     *http.Client
	baseURL          string
	retryMaxAttempts int
	retryDelay       time.Duration
	maxBody          int64
	clock            clock.Clock
	log              *zerolog.Logger
}

// Options customizes timeouts and the retry policy for idempotent reads.
type Options struct {
	BaseURL          string
	HTTPTimeout      time.Duration
	UploadTimeout    time.Duration
	RetryMaxAttempts int
	RetryDelay       time.Duration
	Clock            clock.Clock
	Logger           *zerolog.Logger
}

// RequestOptions tunes a single call.
type RequestOptions struct {
	Query  url.Values
	Header http.Header
}

// response is a raw successful reply.
type response struct {
	Body   []byte
	Header http.Header
}

// NewClient returns a client with default timeouts and retry strategy for
// anything left unset.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = DefaultHTTPTimeout
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = DefaultRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Client{
		httpClient:       &http.Client{Timeout: opts.HTTPTimeout},
		uploadClient:     &http.Client{Timeout: opts.UploadTimeout},
		baseURL:          strings.TrimRight(opts.BaseURL, "/"),
		retryMaxAttempts: opts.RetryMaxAttempts,
		retryDelay:       opts.RetryDelay,
		maxBody:          maxBodyBytes,
		clock:            opts.Clock,
		log:              opts.Logger,
	}
}

// BaseURL returns the service root this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Do issues a JSON request and returns the raw response body. GET requests
// are retried on transport failure only; a response that arrived is never
// retried, whatever its status.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts *RequestOptions) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	resp, err := c.do(ctx, c.httpClient, method, path, payload, "application/json", opts, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	body, err := c.Do(ctx, method, path, in, nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeJSON(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// do runs the attempt loop. wrapBody, when set, wraps the request body for
// each attempt (used for upload progress).
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, payload []byte, contentType string, opts *RequestOptions, wrapBody func(io.Reader) io.Reader) (*response, error) {
	endpoint := c.baseURL + path
	if opts != nil && len(opts.Query) > 0 {
		endpoint += "?" + opts.Query.Encode()
	}
	maxAttempts := 1
	if method == http.MethodGet {
		maxAttempts = c.retryMaxAttempts
	}

	for attempt := 1; ; attempt++ {
		// Respect context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
			if wrapBody != nil {
				rdr = wrapBody(rdr)
			}
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			httpReq.ContentLength = int64(len(payload))
			httpReq.Header.Set("Content-Type", contentType)
		}
		httpReq.Header.Set("Accept", "application/json")
		reqID := uuid.NewString()
		httpReq.Header.Set("X-Request-Id", reqID)
		if opts != nil {
			for k, vals := range opts.Header {
				for _, v := range vals {
					httpReq.Header.Add(k, v)
				}
			}
		}

		resp, err := hc.Do(httpReq)
		if err != nil {
			// caller abandoned the call; not a transport failure
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			terr := classifyTransportError(method, path, c.baseURL, err)
			metrics.ObserveRequest(method, transportOutcome(terr))
			if attempt < maxAttempts {
				metrics.IncRetry(method)
				c.log.Debug().Err(err).Str("method", method).Str("path", path).
					Int("attempt", attempt).Msg("transport failure, retrying")
				if err := c.sleep(ctx, c.retryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, terr
		}

		data, readErr := readBody(resp.Body, c.maxBody)
		resp.Body.Close()
		if errors.Is(readErr, ErrBodyTooLarge) {
			metrics.ObserveRequest(method, "too_large")
			return nil, fmt.Errorf("%s %s: %w", method, path, readErr)
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			terr := classifyTransportError(method, path, c.baseURL, readErr)
			metrics.ObserveRequest(method, transportOutcome(terr))
			if attempt < maxAttempts {
				metrics.IncRetry(method)
				if err := c.sleep(ctx, c.retryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, terr
		}

		metrics.ObserveRequest(method, fmt.Sprintf("%dxx", resp.StatusCode/100))
		c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).
			Str("request_id", reqID).Int("attempt", attempt).Msg("request finished")

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Body:       data,
				RequestID:  extractRequestID(resp, reqID),
			}
			var raw map[string]any
			if json.Unmarshal(data, &raw) == nil {
				apiErr.Raw = raw
				apiErr.Message = errorMessage(raw)
			} else if len(data) > 0 && len(data) < 512 {
				apiErr.Message = strings.TrimSpace(string(data))
			}
			return nil, classifyAPIError(apiErr)
		}
		return &response{Body: data, Header: resp.Header}, nil
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// readBody reads at most limit bytes and fails instead of truncating.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

func transportOutcome(err error) string {
	if _, ok := err.(*TimeoutError); ok {
		return "timeout"
	}
	return "network"
}

// extractRequestID prefers the server's echo of the correlation id.
func extractRequestID(resp *http.Response, fallback string) string {
	if resp == nil {
		return fallback
	}
	for _, k := range []string{"X-Request-Id", "X-Request-ID", "X-Correlation-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return fallback
}
