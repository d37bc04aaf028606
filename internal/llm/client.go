// Package llm は外部テキスト生成サービス（OpenAI Chat Completions API）の
// クライアントを提供する。週次要約の本文生成に使用する。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// defaultEndpoint はChat Completions APIのエンドポイント。
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// systemPrompt は要約生成時のシステムプロンプト。
	// プロダクトの表示言語（韓国語）で教育コーチの役割を指示する。
	systemPrompt = "너는 학생의 학습 데이터를 분석하여 성실하고 따뜻한 피드백을 주는 교육 코치야."
)

// Config はクライアントの設定パラメータ。
type Config struct {
	// APIKey はBearer認証に使うAPIキー。
	APIKey string
	// Model は使用するモデル名（デフォルト: gpt-4o-mini）。
	Model string
	// MaxTokens は応答の最大トークン数（デフォルト: 400）。
	MaxTokens int
}

// Client はテキスト生成APIのクライアント。
// 非成功ステータスとタイムアウトはハードエラーとして返し、部分的な要約は返さない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	config     Config
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, config Config) *Client {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 400
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		config:     config,
		endpoint:   defaultEndpoint,
	}
}

// --- リクエスト/レスポンス型 ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate はプロンプトを送信し、生成されたテキストを返す。
// 非200応答、空の応答、デコード失敗はいずれもエラーとして返す
// （呼び出し元がFAILED状態への遷移を判断する）。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: c.config.MaxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("テキスト生成APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("model", c.config.Model),
		)
		return "", fmt.Errorf("テキスト生成APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("テキスト生成APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", c.config.Model),
		)
		return "", fmt.Errorf("テキスト生成APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("テキスト生成APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("テキスト生成APIが空の応答を返しました")
	}

	text := strings.TrimSpace(result.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("テキスト生成APIが空のテキストを返しました")
	}

	return text, nil
}
