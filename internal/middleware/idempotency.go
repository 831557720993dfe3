// Package middleware provides HTTP middleware for the payment gateway API.
package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "X-Idempotent-Replayed"
)

// idempotentPaths are the POST routes that create transactions
var idempotentPaths = map[string]bool{
	"/api/v1/payments":      true,
	"/api/v1/disbursements": true,
}

type responseCapture struct {
	http.ResponseWriter
	body       bytes.Buffer
	statusCode int
}

func newResponseCapture(w http.ResponseWriter) *responseCapture {
	return &responseCapture{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.statusCode = code
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

// Idempotency replays the first 2xx response recorded for an Idempotency-Key on the
// transaction-creating routes. Requests without the header pass through.
func Idempotency(repo repository.IdempotencyRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "idempotency")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !requiresIdempotency(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			requestPath := normalizeRequestPath(r.URL.Path)
			ctx := r.Context()

			cached, err := repo.Get(ctx, key, requestPath)
			if err != nil {
				logger.ErrorContext(ctx, "failed to check idempotency cache", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if cached != nil {
				logger.DebugContext(ctx, "replaying idempotent response",
					"key", key,
					"path", requestPath,
					"status", cached.ResponseStatus,
				)
				idempotentReplays.WithLabelValues(requestPath).Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(replayedHeader, "true")
				w.WriteHeader(cached.ResponseStatus)
				_, _ = w.Write([]byte(cached.ResponseBody)) //nolint:errcheck // Best effort response writing
				return
			}

			capture := newResponseCapture(w)
			next.ServeHTTP(capture, r)

			if !shouldCacheResponse(capture.statusCode) {
				return
			}

			// A transaction now exists; record the response even if the client went away.
			err = repo.Store(context.WithoutCancel(ctx), &models.IdempotencyKey{
				Key:            key,
				RequestPath:    requestPath,
				ResponseStatus: capture.statusCode,
				ResponseBody:   capture.body.String(),
				CreatedAt:      time.Now().UTC(),
			})
			if err != nil {
				logger.ErrorContext(ctx, "failed to store idempotency key",
					"error", err,
					"key", key,
				)
			}
		})
	}
}

func requiresIdempotency(r *http.Request) bool {
	return r.Method == http.MethodPost && idempotentPaths[normalizeRequestPath(r.URL.Path)]
}

func normalizeRequestPath(urlPath string) string {
	return strings.TrimSuffix(urlPath, "/")
}

func shouldCacheResponse(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
