package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
)

func TestRetryPolicy_Do(t *testing.T) {
	policy := RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxRetries: 3}
	transport := &gateway.TransportError{Endpoint: gateway.EndpointSTKQuery, Err: errors.New("connection reset")}

	t.Run("retries until success", func(t *testing.T) {
		attempts := 0
		err := policy.Do(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return transport
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		err := policy.Do(context.Background(), func() error {
			attempts++
			return transport
		})

		assert.ErrorIs(t, err, transport)
		assert.Equal(t, 4, attempts)
	})

	t.Run("does not retry fatal errors", func(t *testing.T) {
		fatal := &gateway.GatewayError{Endpoint: gateway.EndpointSTKQuery, HTTPStatus: 400}
		attempts := 0
		err := policy.Do(context.Background(), func() error {
			attempts++
			return fatal
		})

		var gwErr *gateway.GatewayError
		assert.ErrorAs(t, err, &gwErr)
		assert.Equal(t, 1, attempts)
	})

	t.Run("stops when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		err := policy.Do(ctx, func() error {
			attempts++
			return transport
		})

		assert.Error(t, err)
		assert.LessOrEqual(t, attempts, 1)
	})
}
