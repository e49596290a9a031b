package httpmiddleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/unrolled/secure"

	"github.com/daracheol/lingotutor/pkg/logger"
)

func newTestLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestRouter(config Config) chi.Router {
	router := chi.NewRouter()
	ApplyToRouter(router, config)
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

func TestSecurityHeaders(t *testing.T) {
	router := newTestRouter(DefaultConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSecurityCustomOptions(t *testing.T) {
	config := DefaultConfig()
	config.Security = &secure.Options{FrameDeny: false, ContentTypeNosniff: true}
	router := newTestRouter(config)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRecoveryCatchesPanics(t *testing.T) {
	router := chi.NewRouter()
	ApplyToRouter(router, DefaultConfig())
	router.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	})

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHeartbeat(t *testing.T) {
	router := newTestRouter(DefaultConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoggingAssignsCorrelationID(t *testing.T) {
	config := DefaultConfig()
	config.Logger = newTestLogger()
	config.EnableLogging = true

	var captured string
	router := chi.NewRouter()
	ApplyToRouter(router, config)
	router.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		captured = logger.GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.NotEmpty(t, captured)
}

func TestDisabledMiddlewareLeavesResponseAlone(t *testing.T) {
	router := newTestRouter(Config{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}
