package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Healthz(t *testing.T) {
	s := NewService(":0")

	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "OK")

	s.failStatus = errors.New("listener died")
	rr = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "listener died")
	require.Error(t, s.Status())
}

func TestService_Metrics(t *testing.T) {
	s := NewService(":0")

	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Body.String())
}

func TestService_AdditionalHandlers(t *testing.T) {
	s := NewService(":0", Handler{Path: "/custom", Handler: func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("custom handler"))
	}})

	rr := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/custom", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "custom handler", rr.Body.String())
}
