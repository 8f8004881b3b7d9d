// Package vectorsearch содержит REST клиент сервиса векторного поиска.
// Одна и та же форма запроса обслуживает каталожные индексы поставщиков
// и пространство подтвержденных исправлений.
package vectorsearch

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

// Client клиент сервиса векторного поиска
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config конфигурация клиента
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient создает клиент векторного поиска.
// Transport с connection pooling переиспользует соединения между
// запросами конвейера.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: slog.Default().With("component", "vectorsearch_client"),
	}
}

type queryRequest struct {
	Namespace string         `json:"namespace"`
	Query     string         `json:"query"`
	TopK      int            `json:"top_k"`
	Rerank    *rerankOptions `json:"rerank,omitempty"`
}

type rerankOptions struct {
	TopN int `json:"top_n"`
}

type queryResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	PartNumber  string  `json:"part_number"`
	Description string  `json:"description"`
	Reason      string  `json:"reason,omitempty"`
	Score       float64 `json:"score"`
}

// Query выполняет один поисковый запрос к пространству namespace.
// Ответ 429 оборачивается в resolution.ErrRateLimited и подлежит повтору
// на уровне политики; любой другой неуспешный статус дает UpstreamError
// и поднимается немедленно.
func (c *Client) Query(ctx context.Context, namespace, text string, topK int, rerank bool, rerankTopN int) ([]resolution.SearchHit, error) {
	reqBody := queryRequest{
		Namespace: namespace,
		Query:     text,
		TopK:      topK,
	}
	if rerank {
		reqBody.Rerank = &rerankOptions{TopN: rerankTopN}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
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
		return nil, fmt.Errorf("vector search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("vector search namespace %s: %w", namespace, resolution.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resolution.UpstreamError{
			Service:    "vector-search",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode vector search response: %w", err)
	}

	hits := make([]resolution.SearchHit, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		hits = append(hits, resolution.SearchHit{
			PartNumber:  m.PartNumber,
			Description: m.Description,
			Reason:      m.Reason,
			Score:       m.Score,
		})
	}

	c.logger.Debug("Vector search query completed",
		"namespace", namespace,
		"hits", len(hits),
		"duration_ms", time.Since(start).Milliseconds())
	return hits, nil
}
