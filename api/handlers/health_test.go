package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func setupHealthTest(t *testing.T, backendVersionURL string, webhookConfigured, searchEnabled, bypass bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupHealth(router, newTestLogger(), backendVersionURL, "llama3", webhookConfigured, searchEnabled, bypass)
	return router
}

func TestHealthAllDependenciesUp(t *testing.T) {
	assert := require.New(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version": "0.5.0"}`))
	}))
	defer backend.Close()

	router := setupHealthTest(t, backend.URL+"/api/version", true, true, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(http.StatusOK, w.Code)

	var response HealthResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal("ok", response.Status)
	assert.Equal("reachable", response.OllamaStatus)
	assert.Equal("configured", response.TeamsWebhookStatus)
	assert.Equal("enabled", response.SearchStatus)
	assert.Equal("enabled", response.VerificationStatus)
	assert.Equal("llama3", response.Model)
	assert.NotEmpty(response.Timestamp)
}

func TestHealthBackendDown(t *testing.T) {
	assert := require.New(t)

	router := setupHealthTest(t, "http://127.0.0.1:1/api/version", false, false, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(http.StatusServiceUnavailable, w.Code)

	var response HealthResponse
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal("degraded", response.Status)
	assert.Equal("unreachable", response.OllamaStatus)
	assert.Equal("not_configured", response.TeamsWebhookStatus)
	assert.Equal("disabled", response.SearchStatus)
	assert.Equal("bypassed", response.VerificationStatus)
}

func TestHealthRootStatusLine(t *testing.T) {
	assert := require.New(t)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version": "0.5.0"}`))
	}))
	defer backend.Close()

	router := setupHealthTest(t, backend.URL+"/api/version", true, true, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(http.StatusOK, w.Code)
	assert.True(strings.HasPrefix(w.Body.String(), "chatrelay: ok"))
	assert.Contains(w.Body.String(), "model: llama3")
}
