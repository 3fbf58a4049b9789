package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyoden/chatrelay/logger"
)

const backendProbeTimeout = 5 * time.Second

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
)

// HealthResponse reports the service status and the state of each backing
// dependency.
type HealthResponse struct {
	Status             string `json:"status"`
	Timestamp          string `json:"timestamp"`
	OllamaStatus       string `json:"ollama_status"`
	TeamsWebhookStatus string `json:"teams_webhook_status"`
	SearchStatus       string `json:"search_status"`
	VerificationStatus string `json:"verification_status"`
	Model              string `json:"model"`
}

type healthDeps struct {
	logger             logger.Logger
	backendVersionURL  string
	model              string
	webhookConfigured  bool
	searchEnabled      bool
	verificationBypass bool
	client             *http.Client
}

func SetupHealth(router *gin.Engine, logger logger.Logger, backendVersionURL, model string, webhookConfigured, searchEnabled, verificationBypass bool) {
	deps := &healthDeps{
		logger:             logger,
		backendVersionURL:  backendVersionURL,
		model:              model,
		webhookConfigured:  webhookConfigured,
		searchEnabled:      searchEnabled,
		verificationBypass: verificationBypass,
		client:             &http.Client{Timeout: backendProbeTimeout},
	}

	router.GET("/health", handleHealth(deps))
	router.GET("/", handleRoot(deps))
}

func handleHealth(deps *healthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := deps.check()

		code := http.StatusOK
		if response.Status != statusOK {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, response)
	}
}

// handleRoot answers with a one-line plain-text status for quick probes.
func handleRoot(deps *healthDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := deps.check()
		c.String(http.StatusOK, fmt.Sprintf("chatrelay: %s (model: %s, ollama: %s, search: %s, verification: %s)",
			response.Status, response.Model, response.OllamaStatus, response.SearchStatus, response.VerificationStatus))
	}
}

func (d *healthDeps) check() HealthResponse {
	ollamaStatus := d.probeBackend()

	status := statusOK
	if ollamaStatus != "reachable" {
		status = statusDegraded
	}

	webhookStatus := "not_configured"
	if d.webhookConfigured {
		webhookStatus = "configured"
	}

	searchStatus := "disabled"
	if d.searchEnabled {
		searchStatus = "enabled"
	}

	verificationStatus := "enabled"
	if d.verificationBypass {
		verificationStatus = "bypassed"
	}

	return HealthResponse{
		Status:             status,
		Timestamp:          time.Now().Format(time.RFC3339),
		OllamaStatus:       ollamaStatus,
		TeamsWebhookStatus: webhookStatus,
		SearchStatus:       searchStatus,
		VerificationStatus: verificationStatus,
		Model:              d.model,
	}
}

func (d *healthDeps) probeBackend() string {
	resp, err := d.client.Get(d.backendVersionURL)
	if err != nil {
		d.logger.Warn("model backend probe failed", "err", err.Error())
		return "unreachable"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("model backend probe returned error", "code", resp.StatusCode)
		return "unreachable"
	}

	return "reachable"
}
