package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kyoden/chatrelay/logger"
	"github.com/kyoden/chatrelay/services/notify"
	"github.com/kyoden/chatrelay/services/query"
)

// commandTag is the mention prefix users address the bot with; it is not
// part of the actual question.
const commandTag = "ollama質問"

const foundFilesMarker = "件の関連ファイルが見つかりました"

const apologyAnswer = "申し訳ありませんが、有効な回答を生成できませんでした。"

// Searcher builds relevant file context for a query. Nil disables search.
type Searcher interface {
	RelevantContent(queryText string, maxFiles, maxChars int) string
	BaseDir() string
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Sampling parameters sized for context-heavy report questions; the fixed
// seed keeps repeated questions consistent.
var defaultOptions = map[string]interface{}{
	"num_predict": 1024,
	"temperature": 0.7,
	"top_k":       40,
	"top_p":       0.9,
	"num_ctx":     4096,
	"seed":        42,
}

// Client calls the model backend's generate endpoint. Transport failures
// never surface to the caller; they degrade to canned fallback answers.
type Client struct {
	logger logger.Logger
	url    string
	model  string
	client *http.Client
}

func NewClient(logger logger.Logger, url, model string, timeout time.Duration) *Client {
	return &Client{
		logger: logger,
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Model() string {
	return c.model
}

// VersionURL is the backend's version endpoint, used by the health check.
func (c *Client) VersionURL() string {
	return strings.Replace(c.url, "/api/generate", "/api/version", 1)
}

// CleanQuery strips the command tag from the raw webhook text.
func CleanQuery(rawQuery string) string {
	return strings.TrimSpace(strings.ReplaceAll(rawQuery, commandTag, ""))
}

// GenerateAnswer builds a prompt (enriched with file context when a searcher
// is supplied), calls the backend and returns the generated text. Every
// failure path returns a user-presentable answer.
func (c *Client) GenerateAnswer(ctx context.Context, rawQuery string, searcher Searcher) string {
	cleanQuery := CleanQuery(rawQuery)
	c.logger.Info("generating answer", "query", cleanQuery, "model", c.model)

	var searchPath, fileContext string
	if searcher != nil && cleanQuery != "" {
		searchPath = searcher.BaseDir()
		shortPath := notify.ShortenPath(searchPath)

		relevant := searcher.RelevantContent(cleanQuery, 0, 0)
		if strings.Contains(relevant, foundFilesMarker) {
			fileContext = fmt.Sprintf("\n\n参考資料（ファイル検索から取得 - %s）:\n%s", shortPath, relevant)
			c.logger.Info("file context attached", "chars", len(fileContext))
		} else {
			if date, ok := (query.Recognizer{}).Extract(cleanQuery); ok {
				fileContext = fmt.Sprintf("\n\n注意: %sの日報は検索ディレクトリ（%s）から見つかりませんでした。", date.Japanese(), shortPath)
			} else {
				fileContext = fmt.Sprintf("\n\n注意: 関連する日報ファイルは検索ディレクトリ（%s）から見つかりませんでした。", shortPath)
			}
			c.logger.Info("no relevant files found for query")
		}
	}

	isAboutOllama := aboutOllama(cleanQuery)
	prompt := buildPrompt(cleanQuery, fileContext, searchPath, isAboutOllama)

	payload := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: defaultOptions,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to marshal generate request", "err", err.Error())
		return fallbackAnswer(cleanQuery, isAboutOllama, searchPath)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		c.logger.Error("failed to build generate request", "err", err.Error())
		return fallbackAnswer(cleanQuery, isAboutOllama, searchPath)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("model backend unreachable", "err", err.Error())
		return fallbackAnswer(cleanQuery, isAboutOllama, searchPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("model backend returned error", "code", resp.StatusCode)
		return fallbackAnswer(cleanQuery, isAboutOllama, searchPath)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("failed to decode backend response", "err", err.Error())
		return fallbackAnswer(cleanQuery, isAboutOllama, searchPath)
	}

	if strings.TrimSpace(result.Response) == "" {
		return apologyAnswer
	}

	return result.Response
}

func aboutOllama(cleanQuery string) bool {
	lower := strings.ToLower(cleanQuery)
	return strings.Contains(lower, "ollama") &&
		(strings.Contains(cleanQuery, "とは") || strings.Contains(lower, "what"))
}

func buildPrompt(cleanQuery, fileContext, searchPath string, isAboutOllama bool) string {
	shortPath := notify.ShortenPath(searchPath)

	if isAboutOllama {
		return fmt.Sprintf(`以下の質問に正確に回答してください。Ollamaはビデオ共有プラットフォームではなく、
大規模言語モデル（LLM）をローカル環境で実行するためのオープンソースフレームワークです。

質問: %s

回答は以下のような正確な情報を含めてください:
- Ollamaは大規模言語モデルをローカルで実行するためのツール
- ローカルコンピュータでLlama、Mistral、Gemmaなどのモデルを実行できる
- プライバシーを保ちながらAI機能を利用できる
- APIを通じて他のアプリケーションから利用できる%s`, cleanQuery, fileContext)
	}

	isReportQuery := strings.Contains(cleanQuery, "日報")
	hasContext := strings.Contains(fileContext, foundFilesMarker)

	if isReportQuery && hasContext {
		return fmt.Sprintf(`以下の質問に日本語で丁寧に回答してください。

質問: %s

%s

上記の参考資料を基に具体的に回答してください。特に日付や内容を明確に述べてください。
ファイルから抽出した情報を正確に使用し、日付、報告者、作業内容、時間などの情報を具体的に引用してください。
参考資料に示された情報のみを使用し、ない情報は「資料には記載がありません」と正直に答えてください。`, cleanQuery, fileContext)
	}

	if isReportQuery {
		if date, ok := (query.Recognizer{}).Extract(cleanQuery); ok {
			return fmt.Sprintf(`以下の質問に日本語で丁寧に回答してください。

質問: %s

%s年%s月%s日の日報データは検索ディレクトリ（%s）から見つかりませんでした。
以下のいずれかの理由が考えられます：
1. 指定された日付の日報が存在しない
2. 検索可能な場所に保存されていない
3. ファイル名が通常と異なる形式で保存されている
4. アクセス権限の問題でファイルが見つけられない

この日付の日報内容については情報がないため、お答えできません。別の日付をお試しいただくか、システム管理者にお問い合わせください。`,
				cleanQuery, date.Year, date.Month, date.Day, shortPath)
		}

		return fmt.Sprintf(`以下の質問に日本語で丁寧に回答してください。

質問: %s

ご質問の日報データは検索ディレクトリ（%s）から見つかりませんでした。具体的な日付（例：2024年10月26日、2024/10/26、20241026など）を指定すると検索できる可能性があります。
日報検索には、日付を含めた形で質問していただくとより正確に検索できます。`, cleanQuery, shortPath)
	}

	if fileContext != "" {
		return fmt.Sprintf(`以下の質問に日本語で丁寧に回答してください。

質問: %s

%s

上記の参考資料を基に質問に回答してください。ファイル内容から抽出された情報を正確に引用し、具体的に説明してください。
参考資料に関連情報がない場合は、あなたの知識を使って回答してください。`, cleanQuery, fileContext)
	}

	return cleanQuery
}

// fallbackAnswer is returned when the backend times out, refuses the
// connection or answers non-200.
func fallbackAnswer(cleanQuery string, isAboutOllama bool, searchPath string) string {
	shortPath := notify.ShortenPath(searchPath)

	if isAboutOllama {
		return `Ollamaは、大規模言語モデル（LLM）をローカル環境で実行するためのオープンソースフレームワークです。

主な特徴:
1. ローカル実行: インターネット接続不要で自分のコンピュータ上でAIモデルを実行できます
2. 複数モデル対応: Llama2, Llama3, Mistral, Gemmaなど様々なモデルを利用できます
3. APIインターフェース: 他のアプリケーションから簡単に利用できるRESTful APIを提供します
4. 軽量設計: 一般的なハードウェアでも動作するよう最適化されています

Ollamaを使うと、プライバシーを保ちながら、AI機能を様々なソフトウェアに統合できます。
詳細は公式サイト: https://ollama.ai/ をご覧ください。`
	}

	if strings.Contains(cleanQuery, "日報") {
		if date, ok := (query.Recognizer{}).Extract(cleanQuery); ok {
			return fmt.Sprintf("%s年%s月%s日の日報データを取得できませんでした。サーバーの応答に問題があるか、該当する日報が検索ディレクトリ（%s）に存在しない可能性があります。時間をおいて再度お試しいただくか、システム管理者にお問い合わせください。",
				date.Year, date.Month, date.Day, shortPath)
		}
		return fmt.Sprintf("日報データを取得できませんでした。具体的な日付（例：2024年10月26日、2024/10/26、20241026）を指定して再度お試しください。検索ディレクトリ: %s", shortPath)
	}

	return fmt.Sprintf("「%s」についてのご質問ありがとうございます。ただいまOllamaサーバーの処理に時間がかかっています。少し時間をおいてから再度お試しいただくか、より具体的な質問を入力してください。", cleanQuery)
}
