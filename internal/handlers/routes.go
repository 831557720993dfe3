package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/api"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/middleware"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

// requestTimeout bounds API requests. It must exceed the gateway request timeout.
const requestTimeout = 60 * time.Second

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(h *Handler, idempotency repository.IdempotencyRepository, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

	api.RegisterDocsRoutes(r)
	r.Get("/health", h.GetHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Use(middleware.Idempotency(idempotency, logger))

		r.Post("/payments", h.CreatePayment)
		r.Get("/payments/{paymentId}", h.GetPayment)
		r.Post("/payments/{paymentId}/query", h.QueryPayment)

		r.Post("/disbursements", h.CreateDisbursement)
		r.Get("/disbursements/{disbursementId}", h.GetDisbursement)
	})

	r.Route("/callbacks/mpesa", func(r chi.Router) {
		r.Post("/stk", h.PushCallback)
		r.Post("/b2c/result", h.DisbursementResultCallback)
		r.Post("/b2c/timeout", h.DisbursementTimeoutCallback)
	})

	return r
}
