package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kyoden/chatrelay/logger"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	FormatAttachments = "attachments"
	FormatLegacy      = "legacy"
	FormatSimple      = "simple"
)

const (
	deliveryTimeout = 30 * time.Second
	// maxCardBytes is the serialized size above which the card body is
	// replaced with a single oversize notice.
	maxCardBytes = 25000

	oversizeNotice = "（回答が長すぎるため一部省略されています。全文は管理者にお問い合わせください）"

	cardSchema      = "http://adaptivecards.io/schemas/adaptive-card.json"
	cardContentType = "application/vnd.microsoft.card.adaptive"
)

// Result reports the outcome of a delivery and which payload shape was
// accepted.
type Result struct {
	Status  string
	Format  string
	Code    int
	Message string
}

type textBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Wrap     bool   `json:"wrap"`
	Size     string `json:"size,omitempty"`
	Weight   string `json:"weight,omitempty"`
	Color    string `json:"color,omitempty"`
	IsSubtle bool   `json:"isSubtle,omitempty"`
	Spacing  string `json:"spacing,omitempty"`
}

type adaptiveCard struct {
	Type    string      `json:"type"`
	Body    []textBlock `json:"body"`
	Schema  string      `json:"$schema"`
	Version string      `json:"version"`
}

type cardAttachment struct {
	ContentType string       `json:"contentType"`
	Content     adaptiveCard `json:"content"`
}

type attachmentsPayload struct {
	Attachments []cardAttachment `json:"attachments"`
}

type legacyPayload struct {
	Body attachmentsPayload `json:"body"`
}

type simplePayload struct {
	Text string `json:"text"`
}

// Dispatcher posts generated answers to the chat-delivery URL, trying three
// payload shapes in order until one is accepted.
type Dispatcher struct {
	logger     logger.Logger
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewDispatcher(logger logger.Logger, webhookURL string) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: deliveryTimeout},
		now:        time.Now,
	}
}

// Deliver sends the answer, falling back from the rich card shape through
// the legacy card shape to plain text. The first 2xx response wins; if all
// three attempts fail, the last status code and message are returned.
func (d *Dispatcher) Deliver(question, answer, searchPath string) Result {
	shortPath := ShortenPath(searchPath)
	timestamp := d.now().Format("2006年01月02日 15:04:05")

	answer = sanitize(answer)
	blocks := limitBlocks(answer)

	attempts := []struct {
		format  string
		payload interface{}
	}{
		{FormatAttachments, d.buildRichPayload(question, answer, shortPath, timestamp, blocks)},
		{FormatLegacy, buildLegacyPayload(question, answer, shortPath, timestamp)},
		{FormatSimple, simplePayload{
			Text: fmt.Sprintf("### Ollama回答\n\n**質問**: %s\n\n**検索対象**: %s\n\n%s\n\n*回答生成時刻: %s*",
				question, shortPath, answer, timestamp),
		}},
	}

	var lastCode int
	var lastMessage string
	for _, attempt := range attempts {
		code, body, err := d.post(attempt.payload)
		if err != nil {
			d.logger.Warn("delivery attempt failed", "format", attempt.format, "err", err.Error())
			lastMessage = err.Error()
			continue
		}
		if code >= 200 && code < 300 {
			d.logger.Info("delivery succeeded", "format", attempt.format, "code", code)
			return Result{Status: StatusSuccess, Format: attempt.format, Code: code}
		}
		d.logger.Warn("delivery attempt rejected", "format", attempt.format, "code", code)
		lastCode = code
		lastMessage = body
	}

	d.logger.Error("all delivery attempts failed", "code", lastCode, "message", lastMessage)
	return Result{Status: StatusError, Code: lastCode, Message: lastMessage}
}

func (d *Dispatcher) buildRichPayload(question, answer, shortPath, timestamp string, blocks []string) attachmentsPayload {
	cardColor := "Default"
	if strings.Contains(answer, "PDFファイル") &&
		(strings.Contains(answer, "見つかりました") || strings.Contains(answer, "存在します")) {
		cardColor = "Accent"
	}

	body := []textBlock{
		{Type: "TextBlock", Size: "Medium", Weight: "Bolder", Text: "Ollama回答", Wrap: true, Color: cardColor},
		{Type: "TextBlock", Text: fmt.Sprintf("質問: %s", question), Wrap: true, Weight: "Bolder", Color: "Accent"},
		{Type: "TextBlock", Text: fmt.Sprintf("検索対象: %s", shortPath), Wrap: true, IsSubtle: true, Size: "Small"},
	}
	for _, block := range blocks {
		body = append(body, textBlock{Type: "TextBlock", Text: block, Wrap: true, Spacing: "Medium"})
	}
	body = append(body, textBlock{
		Type: "TextBlock", Text: fmt.Sprintf("回答生成時刻: %s", timestamp), Wrap: true, Size: "Small", IsSubtle: true,
	})

	payload := attachmentsPayload{
		Attachments: []cardAttachment{{
			ContentType: cardContentType,
			Content: adaptiveCard{
				Type:    "AdaptiveCard",
				Body:    body,
				Schema:  cardSchema,
				Version: "1.0",
			},
		}},
	}

	if raw, err := json.Marshal(payload); err == nil && len(raw) > maxCardBytes {
		d.logger.Warn("card payload too large, replacing body with notice", "bytes", len(raw))
		payload.Attachments[0].Content.Body = []textBlock{
			{Type: "TextBlock", Text: oversizeNotice, Wrap: true, Spacing: "Medium"},
		}
	}

	return payload
}

func buildLegacyPayload(question, answer, shortPath, timestamp string) legacyPayload {
	return legacyPayload{
		Body: attachmentsPayload{
			Attachments: []cardAttachment{{
				ContentType: cardContentType,
				Content: adaptiveCard{
					Type: "AdaptiveCard",
					Body: []textBlock{
						{Type: "TextBlock", Size: "Medium", Weight: "Bolder", Text: "Ollama回答", Wrap: true},
						{Type: "TextBlock", Text: fmt.Sprintf("質問: %s", question), Wrap: true, Weight: "Bolder"},
						{Type: "TextBlock", Text: fmt.Sprintf("検索対象: %s", shortPath), Wrap: true, Size: "Small"},
						{Type: "TextBlock", Text: answer, Wrap: true},
						{Type: "TextBlock", Text: fmt.Sprintf("回答生成時刻: %s", timestamp), Wrap: true, Size: "Small", IsSubtle: true},
					},
					Schema:  cardSchema,
					Version: "1.0",
				},
			}},
		},
	}
}

func (d *Dispatcher) post(payload interface{}) (int, string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}
