package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/kyoden/chatrelay/logger"
	"github.com/kyoden/chatrelay/services/auth"
	"github.com/kyoden/chatrelay/services/extract"
	"github.com/kyoden/chatrelay/services/notify"
	"github.com/kyoden/chatrelay/services/relay"
	"github.com/kyoden/chatrelay/services/search"
	"github.com/kyoden/chatrelay/validation"
)

const testSecret = "dGVzdC1vdXRnb2luZy10b2tlbg"

func newTestLogger() logger.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler)
}

// deliveryRecorder captures payloads posted to the chat-delivery stub.
type deliveryRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (d *deliveryRecorder) record(body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bodies = append(d.bodies, body)
}

func (d *deliveryRecorder) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.bodies...)
}

type webhookTestEnv struct {
	router   *gin.Engine
	recorder *deliveryRecorder
	prompts  *deliveryRecorder
}

func setupWebhookTest(t *testing.T, assert *require.Assertions, backendAnswer string, bypass bool) *webhookTestEnv {
	testLogger := newTestLogger()

	prompts := &deliveryRecorder{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var generate struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&generate); err == nil {
			prompts.record(generate.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": backendAnswer})
	}))
	t.Cleanup(backend.Close)

	recorder := &deliveryRecorder{}
	workflow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		recorder.record(string(raw))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(workflow.Close)

	searchDir := t.TempDir()
	reportPath := filepath.Join(searchDir, "日報_20241026.txt")
	assert.NoError(os.WriteFile(reportPath, []byte("2024年10月26日: 定例会議と資料作成を実施"), 0644))

	client := relay.NewClient(testLogger, backend.URL+"/api/generate", "llama3", time.Minute)
	dispatcher := notify.NewDispatcher(testLogger, workflow.URL)
	searcher := search.New(testLogger, extract.New(testLogger), search.Config{
		BaseDir:    searchDir,
		MaxResults: 5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool := relay.NewPool(ctx, testLogger, 2, client, dispatcher, searcher, nil)

	validator, err := validation.New(testLogger)
	assert.NoError(err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupWebhook(router, testLogger, auth.New(testLogger), pool, validator, testSecret, bypass)

	return &webhookTestEnv{router: router, recorder: recorder, prompts: prompts}
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "HMAC " + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(router *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Authorization", signature)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsSignedRequest(t *testing.T) {
	assert := require.New(t)
	env := setupWebhookTest(t, assert, "2024年10月26日は定例会議と資料作成を行いました。", false)

	body := []byte(`{"type": "message", "text": "ollama質問 2024年10月26日の日報について"}`)
	w := postWebhook(env.router, body, signBody(body))

	assert.Equal(http.StatusOK, w.Code)

	var ack map[string]string
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal("message", ack["type"])
	assert.Equal(ackMessage, ack["text"])
	assert.NotEmpty(w.Header().Get("X-Job-ID"))

	// The answer is generated asynchronously and posted to the delivery URL.
	assert.Eventually(func() bool {
		for _, delivered := range env.recorder.all() {
			if bytes.Contains([]byte(delivered), []byte("定例会議と資料作成を行いました")) {
				return true
			}
		}
		return false
	}, 10*time.Second, 50*time.Millisecond)

	// The matched report file and its content preview were fed to the
	// backend as prompt context.
	prompts := env.prompts.all()
	assert.Len(prompts, 1)
	assert.Contains(prompts[0], "日報_20241026.txt")
	assert.Contains(prompts[0], "定例会議と資料作成を実施")
	assert.Contains(prompts[0], "2024年10月26日")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	assert := require.New(t)
	env := setupWebhookTest(t, assert, "回答", false)

	body := []byte(`{"type": "message", "text": "ollama質問 テスト"}`)
	w := postWebhook(env.router, body, "HMAC not-the-right-signature")

	assert.Equal(http.StatusForbidden, w.Code)

	var response map[string]string
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal("Unauthorized", response["error"])
	assert.Empty(env.recorder.all())
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	assert := require.New(t)
	env := setupWebhookTest(t, assert, "回答", false)

	body := []byte(`{"type": "message", "text": "ollama質問 テスト"}`)
	w := postWebhook(env.router, body, "")

	assert.Equal(http.StatusForbidden, w.Code)
}

func TestWebhookBypassSkipsVerification(t *testing.T) {
	assert := require.New(t)
	env := setupWebhookTest(t, assert, "バイパス時の回答として十分な長さです。", true)

	body := []byte(`{"type": "message", "text": "ollama質問 テスト"}`)
	w := postWebhook(env.router, body, "")

	assert.Equal(http.StatusOK, w.Code)
}

func TestWebhookRejectsMissingText(t *testing.T) {
	assert := require.New(t)
	env := setupWebhookTest(t, assert, "回答", false)

	body := []byte(`{"type": "message"}`)
	w := postWebhook(env.router, body, signBody(body))

	assert.Equal(http.StatusBadRequest, w.Code)
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	assert := require.New(t)
	env := setupWebhookTest(t, assert, "回答", false)

	body := []byte(`not json at all`)
	w := postWebhook(env.router, body, signBody(body))

	assert.Equal(http.StatusBadRequest, w.Code)
}

func TestFlattenMessageText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "ollama質問 会議について",
			expected: "ollama質問 会議について",
		},
		{
			name:     "html markup stripped",
			input:    `<p><span itemtype="http://schema.skype.com/Mention">ollama</span> 質問です</p>`,
			expected: "ollama 質問です",
		},
		{
			name:     "line breaks collapsed to spaces",
			input:    "一行目\r\n二行目\n三行目",
			expected: "一行目 二行目 三行目",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, flattenMessageText(tc.input))
		})
	}
}
