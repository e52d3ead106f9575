package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pollster/pkg/platform/circuit"
)

// ErrHostedAuthUnavailable is returned when the circuit to the hosted auth
// service is open.
var ErrHostedAuthUnavailable = errors.New("hosted auth unavailable")

// HostedClient calls the hosted auth service's REST API.
type HostedClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type HostedOption func(*HostedClient)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) HostedOption {
	return func(h *HostedClient) {
		h.http = c
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) HostedOption {
	return func(h *HostedClient) {
		h.breaker = b
	}
}

// NewHostedClient builds a client for baseURL (e.g. https://<project>.example.co).
// An empty baseURL yields a client whose calls are no-ops.
func NewHostedClient(baseURL, apiKey string, logger *slog.Logger, opts ...HostedOption) *HostedClient {
	h := &HostedClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuit.New("hosted_auth"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SignOut revokes accessToken and every refresh token of its session.
// A credential the service already rejects counts as revoked.
func (h *HostedClient) SignOut(ctx context.Context, accessToken string) error {
	if h.baseURL == "" || accessToken == "" {
		return nil
	}
	if !h.breaker.AllowPrimary() {
		return ErrHostedAuthUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/auth/v1/logout?scope=global", nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("apikey", h.apiKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := h.http.Do(req)
	if err != nil {
		h.recordFailure(ctx, err)
		return fmt.Errorf("logout request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode < 300,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		h.breaker.RecordSuccess()
		return nil
	case resp.StatusCode >= 500:
		err := fmt.Errorf("logout returned %d", resp.StatusCode)
		h.recordFailure(ctx, err)
		return err
	default:
		return fmt.Errorf("logout returned %d", resp.StatusCode)
	}
}

func (h *HostedClient) recordFailure(ctx context.Context, err error) {
	if _, change := h.breaker.RecordFailure(); change.Opened {
		h.logger.ErrorContext(ctx, "circuit breaker opened",
			"circuit", h.breaker.Name(),
			"error", err,
		)
	}
}
