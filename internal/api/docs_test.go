package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)

	for _, path := range []string{
		"/api/v1/payments",
		"/api/v1/payments/{paymentId}",
		"/api/v1/payments/{paymentId}/query",
		"/api/v1/disbursements",
		"/api/v1/disbursements/{disbursementId}",
		"/callbacks/mpesa/stk",
		"/callbacks/mpesa/b2c/result",
		"/callbacks/mpesa/b2c/timeout",
		"/health",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "missing path %s", path)
	}
}

func TestDocsRoutes(t *testing.T) {
	r := chi.NewRouter()
	RegisterDocsRoutes(r)

	t.Run("root redirects to docs", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusMovedPermanently, rec.Code)
		assert.Equal(t, "/docs", rec.Header().Get("Location"))
	})

	t.Run("swagger ui", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "swagger-ui")
	})

	t.Run("openapi document as json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/openapi", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "3.0.3", body["openapi"])
	})
}
