// Package ai содержит клиент OpenAI-совместимого chat completions API
// с принудительным структурированным tool-вызовом.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
)

// ChatClient клиент LLM сервиса
type ChatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config конфигурация клиента
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewChatClient создает клиент chat completions
func NewChatClient(cfg Config) *ChatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	return &ChatClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: slog.Default().With("component", "ai_chat_client"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type functionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type toolDefinition struct {
	Type     string             `json:"type"`
	Function functionDefinition `json:"function"`
}

type toolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []chatMessage    `json:"messages"`
	Tools       []toolDefinition `json:"tools"`
	ToolChoice  toolChoice       `json:"tool_choice"`
	Temperature float64          `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// CallTool выполняет chat completions запрос с принудительным вызовом
// функции toolName по схеме schema. Температура всегда 0 для
// детерминированного вывода. Возвращает сырые аргументы единственного
// tool-вызова; ответ без принудительного вызова дает
// MalformedSelectionError.
func (c *ChatClient) CallTool(ctx context.Context, systemPrompt, userPrompt, toolName string, schema map[string]any) (json.RawMessage, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Tools: []toolDefinition{{
			Type: "function",
			Function: functionDefinition{
				Name:       toolName,
				Parameters: schema,
			},
		}},
		Temperature: 0,
	}
	reqBody.ToolChoice.Type = "function"
	reqBody.ToolChoice.Function.Name = toolName

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("llm completion: %w", resolution.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resolution.UpstreamError{
			Service:    "llm",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(decoded.Choices) == 0 || len(decoded.Choices[0].Message.ToolCalls) == 0 {
		return nil, &resolution.MalformedSelectionError{Reason: "response contained no forced tool call"}
	}
	call := decoded.Choices[0].Message.ToolCalls[0].Function
	if call.Name != toolName {
		return nil, &resolution.MalformedSelectionError{
			Reason: fmt.Sprintf("response called %q instead of %q", call.Name, toolName),
		}
	}
	if strings.TrimSpace(call.Arguments) == "" {
		return nil, &resolution.MalformedSelectionError{Reason: "tool call arguments are empty"}
	}

	c.logger.Debug("Chat completion succeeded",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds())
	return json.RawMessage(call.Arguments), nil
}
