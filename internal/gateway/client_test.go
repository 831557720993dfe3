package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.GatewayConfig{
		BaseURL:        server.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		RequestTimeout: timeout,
	}
	return NewClient(cfg, config.DiscardLogger())
}

func TestClient_Send(t *testing.T) {
	t.Run("accepted push decodes response", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, EndpointSTKPush, r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req STKPushRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, json.Number("100"), req.Amount)
			assert.Equal(t, "254712345678", req.PhoneNumber)

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success"}`)
		}, time.Second)

		var out STKPushResponse
		err := client.Send(context.Background(), EndpointSTKPush, STKPushRequest{
			Amount:      json.Number("100"),
			PhoneNumber: "254712345678",
		}, "tok", &out)

		require.NoError(t, err)
		assert.True(t, out.Accepted())
		assert.Equal(t, "ws_CO_1", out.CheckoutRequestID)
		assert.Equal(t, "m-1", out.MerchantRequestID)
	})

	t.Run("4xx returns gateway error with parsed code", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`)
		}, time.Second)

		err := client.Send(context.Background(), EndpointSTKPush, STKPushRequest{}, "tok", &STKPushResponse{})

		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, http.StatusBadRequest, gwErr.HTTPStatus)
		assert.Equal(t, "400.002.02", gwErr.ErrorCode)
		assert.True(t, gwErr.IsClientError())
		assert.False(t, IsRetryable(err))
	})

	t.Run("5xx is retryable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "upstream unavailable")
		}, time.Second)

		err := client.Send(context.Background(), EndpointSTKPush, STKPushRequest{}, "tok", &STKPushResponse{})

		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "upstream unavailable", gwErr.Body)
		assert.Empty(t, gwErr.ErrorCode)
		assert.True(t, IsRetryable(err))
	})

	t.Run("still processing query answer", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"requestId":"r-2","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`)
		}, time.Second)

		err := client.Send(context.Background(), EndpointSTKQuery, STKQueryRequest{}, "tok", &STKQueryResponse{})

		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.True(t, gwErr.IsStillProcessing())
	})

	t.Run("unparsable 2xx body is malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<html>ok</html>`)
		}, time.Second)

		err := client.Send(context.Background(), EndpointSTKPush, STKPushRequest{}, "tok", &STKPushResponse{})

		var malformed *MalformedResponseError
		require.ErrorAs(t, err, &malformed)
		assert.False(t, IsRetryable(err))
	})

	t.Run("accepted push without checkout id is malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"MerchantRequestID":"m-1","ResponseCode":"0"}`)
		}, time.Second)

		err := client.Send(context.Background(), EndpointSTKPush, STKPushRequest{}, "tok", &STKPushResponse{})

		var malformed *MalformedResponseError
		require.ErrorAs(t, err, &malformed)
	})

	t.Run("timeout surfaces as transport error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}, 50*time.Millisecond)

		err := client.Send(context.Background(), EndpointB2C, B2CRequest{}, "tok", &B2CResponse{})

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.True(t, IsRetryable(err))
	})

	t.Run("cancelled context surfaces as transport error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.Send(ctx, EndpointB2C, B2CRequest{}, "tok", &B2CResponse{})

		var transportErr *TransportError
		require.ErrorAs(t, err, &transportErr)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestClient_ExchangeCredentials(t *testing.T) {
	t.Run("string expires_in is accepted", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			_, _ = io.WriteString(w, `{"access_token":"abc","expires_in":"3599"}`)
		}, time.Second)

		grant, err := client.ExchangeCredentials(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "abc", grant.Token)
		assert.Equal(t, 3599*time.Second, grant.Lifetime)
	})

	t.Run("rejected credentials are an auth error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`)
		}, time.Second)

		_, err := client.ExchangeCredentials(context.Background())

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusBadRequest, authErr.HTTPStatus)

		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, "400.008.01", gwErr.ErrorCode)
	})

	t.Run("missing token is an auth error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"expires_in":3599}`)
		}, time.Second)

		_, err := client.ExchangeCredentials(context.Background())

		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
		var malformed *MalformedResponseError
		assert.ErrorAs(t, err, &malformed)
	})
}
