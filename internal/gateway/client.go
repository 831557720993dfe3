// Package gateway talks to the mobile-money gateway: credential exchange,
// push and disbursement requests, status queries and callback wire shapes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
)

const maxResponseBytes = 1 << 20

// Grant is the result of a credential exchange
type Grant struct {
	Token    string
	Lifetime time.Duration
}

// Client sends authenticated JSON requests to the gateway
type Client struct {
	httpClient     *http.Client
	logger         *slog.Logger
	baseURL        string
	consumerKey    string
	consumerSecret string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a gateway client from configuration
func NewClient(cfg *config.GatewayConfig, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		logger:         logger.With("component", "gateway_client"),
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts payload to endpoint with the bearer token and decodes a 2xx body into out.
// out may be nil when the caller does not need the body.
func (c *Client) Send(ctx context.Context, endpoint string, payload any, token string, out Response) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	raw, status, err := c.do(req, endpoint)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		gwErr := newGatewayError(endpoint, status, raw)
		requestsCounter.WithLabelValues(endpoint, "gateway_error").Inc()
		c.logger.WarnContext(ctx, "gateway rejected request",
			"endpoint", endpoint,
			"status", status,
			"error_code", gwErr.ErrorCode,
		)
		return gwErr
	}

	if out == nil {
		requestsCounter.WithLabelValues(endpoint, "ok").Inc()
		return nil
	}

	if err := decode(raw, out); err != nil {
		requestsCounter.WithLabelValues(endpoint, "malformed").Inc()
		c.logger.ErrorContext(ctx, "malformed gateway response", "endpoint", endpoint, "error", err)
		return &MalformedResponseError{Endpoint: endpoint, Body: truncate(raw), Err: err}
	}

	requestsCounter.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

// ExchangeCredentials trades the consumer key and secret for a bearer token.
// Every failure is reported as *AuthError.
func (c *Client) ExchangeCredentials(ctx context.Context) (Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+EndpointOAuth, nil)
	if err != nil {
		return Grant{}, &AuthError{Err: err}
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Accept", "application/json")

	raw, status, err := c.do(req, EndpointOAuth)
	if err != nil {
		return Grant{}, &AuthError{Err: err}
	}

	if status < 200 || status >= 300 {
		requestsCounter.WithLabelValues(EndpointOAuth, "gateway_error").Inc()
		return Grant{}, &AuthError{HTTPStatus: status, Err: newGatewayError(EndpointOAuth, status, raw)}
	}

	var tokenResp TokenResponse
	if err := decode(raw, &tokenResp); err != nil {
		requestsCounter.WithLabelValues(EndpointOAuth, "malformed").Inc()
		return Grant{}, &AuthError{
			HTTPStatus: status,
			Err:        &MalformedResponseError{Endpoint: EndpointOAuth, Body: truncate(raw), Err: err},
		}
	}

	requestsCounter.WithLabelValues(EndpointOAuth, "ok").Inc()
	return Grant{
		Token:    tokenResp.AccessToken,
		Lifetime: time.Duration(tokenResp.ExpiresIn) * time.Second,
	}, nil
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDurationHist.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsCounter.WithLabelValues(endpoint, "transport").Inc()
		c.logger.WarnContext(req.Context(), "gateway request failed", "endpoint", endpoint, "error", err)
		return nil, 0, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // body already consumed
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		requestsCounter.WithLabelValues(endpoint, "transport").Inc()
		return nil, 0, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	c.logger.DebugContext(req.Context(), "gateway response received",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return raw, resp.StatusCode, nil
}

func decode(raw []byte, out Response) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return out.Validate()
}

func newGatewayError(endpoint string, status int, raw []byte) *GatewayError {
	gwErr := &GatewayError{
		Endpoint:   endpoint,
		HTTPStatus: status,
		Body:       truncate(raw),
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		gwErr.ErrorCode = body.ErrorCode
		gwErr.ErrorMessage = body.ErrorMessage
	}
	return gwErr
}

func truncate(raw []byte) string {
	const limit = 2048
	if len(raw) > limit {
		return string(raw[:limit])
	}
	return string(raw)
}
