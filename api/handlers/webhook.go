package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"

	"github.com/kyoden/chatrelay/logger"
	"github.com/kyoden/chatrelay/services/auth"
	"github.com/kyoden/chatrelay/services/relay"
	"github.com/kyoden/chatrelay/validation"
)

const ackMessage = "リクエストを受け付けました。回答を生成中です..."

const busyMessage = "現在処理が混み合っています。しばらく経ってから再度お試しください。"

// WebhookRequest is the incoming chat message. Only text matters; the rest
// of the platform envelope is ignored.
type WebhookRequest struct {
	Type string `json:"type"`
	Text string `json:"text" validate:"required,valid_query,max=10000"`
}

type webhookDeps struct {
	logger    logger.Logger
	verifier  *auth.Verifier
	pool      *relay.Pool
	validator *validation.Validator
	secret    string
	bypass    bool
}

func SetupWebhook(router *gin.Engine, logger logger.Logger, verifier *auth.Verifier, pool *relay.Pool, validator *validation.Validator, secret string, bypass bool) {
	deps := &webhookDeps{
		logger:    logger,
		verifier:  verifier,
		pool:      pool,
		validator: validator,
		secret:    secret,
		bypass:    bypass,
	}
	router.POST("/webhook", handleWebhook(deps))
}

func handleWebhook(deps *webhookDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			deps.logger.Warn("could not read webhook body", "err", err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}

		if !deps.bypass {
			signature := c.GetHeader("Authorization")
			if !deps.verifier.Verify(body, signature, deps.secret) {
				deps.logger.Warn("webhook signature verification failed")
				c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
				return
			}
		} else {
			deps.logger.Warn("signature verification bypassed")
		}

		var request WebhookRequest
		if err := json.Unmarshal(body, &request); err != nil {
			deps.logger.Warn("could not parse webhook body", "err", err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		if err := deps.validator.Validate(request); err != nil {
			deps.logger.Warn("could not validate webhook request", "err", err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		queryText := flattenMessageText(request.Text)
		deps.logger.Info("webhook accepted", "query", queryText)

		jobID, ok := deps.pool.Submit(queryText)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"type": "message", "text": busyMessage})
			return
		}

		c.Header("X-Job-ID", jobID)
		c.JSON(http.StatusOK, gin.H{"type": "message", "text": ackMessage})
	}
}

// flattenMessageText strips the HTML markup chat clients wrap mentions and
// formatting in, and collapses line breaks so the query is a single line.
func flattenMessageText(text string) string {
	if strings.Contains(text, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}

	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	return strings.TrimSpace(text)
}
