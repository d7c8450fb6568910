// Package dispatch pushes documents to customer endpoints over HTTP.
//
// The Sender is deliberately free of per-delivery state: everything fixed for
// the lifetime of the process (HTTP client, service API key, user agent,
// retry policy) is set once in NewSender and never mutated, and everything
// that varies per delivery arrives through the Request value passed to Send.
// There are no setters. A single Sender can therefore be shared as a
// singleton across concurrent callers, including queue workers that reuse
// the same instance for every job, without one call observing another's
// arguments.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docsend/internal/config"
)

// Header names for outbound delivery requests.
const (
	HeaderSignature  = "X-Docsend-Signature"
	HeaderTimestamp  = "X-Docsend-Timestamp"
	HeaderDeliveryID = "X-Docsend-Delivery-Id"
	HeaderDocumentID = "X-Docsend-Document-Id"
	HeaderFilename   = "X-Docsend-Filename"
)

var (
	// ErrEndpointRequired is returned when the per-call endpoint is missing.
	ErrEndpointRequired = errors.New("endpoint is required")
	// ErrBodyRequired is returned when the per-call payload is missing.
	ErrBodyRequired = errors.New("body is required")
)

// Request carries everything that varies per delivery. It is a value object:
// built fresh for each Send call, passed by value, and never stored on the
// Sender.
type Request struct {
	DeliveryID    string
	DocumentID    string
	CustomerID    string
	Endpoint      string
	SigningSecret string
	Filename      string
	ContentType   string
	Body          []byte
}

// Result describes the outcome of a successful Send.
type Result struct {
	StatusCode int
	Attempts   int
	Duration   time.Duration
}

// Sender delivers documents to customer endpoints. All fields are fixed at
// construction; Sender is safe for concurrent use.
type Sender struct {
	client          *http.Client
	apiKey          string
	userAgent       string
	maxAttempts     int
	initialInterval time.Duration
	metrics         *Metrics
}

// NewSender constructs a Sender from fixed configuration. The API key
// authenticates this service to customer endpoints and cannot be changed
// after construction. A nil client gets a default delivery client; a nil
// metrics gets a no-op.
func NewSender(client *http.Client, cfg config.DispatchConfig, m *Metrics) *Sender {
	if client == nil {
		client = NewHTTPClient(cfg.RequestTimeout)
	}
	if m == nil {
		m = NewNoopMetrics()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Sender{
		client:          client,
		apiKey:          cfg.APIKey,
		userAgent:       cfg.UserAgent,
		maxAttempts:     maxAttempts,
		initialInterval: 500 * time.Millisecond,
		metrics:         m,
	}
}

// Send pushes one document to one customer endpoint, retrying transient
// failures with exponential backoff up to the configured attempt budget.
// 408, 429, 5xx and transport errors are retried; any other non-2xx response
// fails permanently. All per-call state lives in r and on the stack.
func (s *Sender) Send(ctx context.Context, r Request) (Result, error) {
	if r.Endpoint == "" {
		return Result{}, ErrEndpointRequired
	}
	if len(r.Body) == 0 {
		return Result{}, ErrBodyRequired
	}

	start := time.Now()
	attempts := 0
	var statusCode int

	op := func() error {
		attempts++
		code, err := s.attempt(ctx, r)
		statusCode = code
		if err != nil {
			s.metrics.IncAttempt("retry")
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.maxAttempts-1)), ctx)

	err := backoff.Retry(op, policy)
	duration := time.Since(start)
	s.metrics.ObserveDuration(duration)

	if err != nil {
		s.metrics.IncSend("failure")
		return Result{StatusCode: statusCode, Attempts: attempts, Duration: duration},
			fmt.Errorf("send delivery %s: %w", r.DeliveryID, err)
	}

	s.metrics.IncSend("success")
	return Result{StatusCode: statusCode, Attempts: attempts, Duration: duration}, nil
}

// attempt performs a single HTTP push. It returns the response status code
// (0 if no response was received) and a retryable or permanent error.
func (s *Sender) attempt(ctx context.Context, r Request) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(r.Body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	timestamp := time.Now().Unix()
	signature := GenerateSignature(r.SigningSecret, timestamp, r.Body)

	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderDeliveryID, r.DeliveryID)
	req.Header.Set(HeaderDocumentID, r.DocumentID)
	if r.Filename != "" {
		req.Header.Set(HeaderFilename, r.Filename)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	if isRetryableStatus(resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, backoff.Permanent(fmt.Errorf("HTTP %d", resp.StatusCode))
}

// isRetryableStatus reports whether a response status warrants another attempt.
func isRetryableStatus(code int) bool {
	if code >= 500 {
		return true
	}
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}
