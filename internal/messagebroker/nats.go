// Package messagebroker publishes transaction lifecycle events.
package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher delivers an event payload to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// NatsClient wraps a NATS connection
type NatsClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNatsClient connects to NATS.
// natsURL example: "nats://localhost:4222"
func NewNatsClient(natsURL, appName string, logger *slog.Logger) (*NatsClient, error) {
	logger = logger.With("component", "nats")

	nc, err := nats.Connect(natsURL,
		nats.Name(appName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed", "last_error", nc.LastError())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NatsClient{conn: nc, logger: logger}, nil
}

// Publish sends payload on subject. Delivery is at-most-once; the audit trail
// remains the record of truth.
func (c *NatsClient) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (c *NatsClient) Close() {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Drain(); err != nil {
			c.logger.Warn("NATS drain failed", "error", err)
			c.conn.Close()
		}
	}
}

// NopPublisher discards events; used when NATS is disabled
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }

var (
	_ Publisher = (*NatsClient)(nil)
	_ Publisher = NopPublisher{}
)
