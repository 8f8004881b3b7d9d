package resolution

import (
	"context"
	"encoding/json"
	"sync"
)

// fakeStore тестовый StoreSearcher с записью запросов
type fakeStore struct {
	mu      sync.Mutex
	queries []storeQuery
	fn      func(namespace, text string) ([]SearchHit, error)
}

type storeQuery struct {
	Namespace  string
	Text       string
	TopK       int
	Rerank     bool
	RerankTopN int
}

func (f *fakeStore) Query(ctx context.Context, namespace, text string, topK int, rerank bool, rerankTopN int) ([]SearchHit, error) {
	f.mu.Lock()
	f.queries = append(f.queries, storeQuery{namespace, text, topK, rerank, rerankTopN})
	f.mu.Unlock()
	return f.fn(namespace, text)
}

func (f *fakeStore) queryCount(namespace string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, q := range f.queries {
		if q.Namespace == namespace {
			n++
		}
	}
	return n
}

// fakeLive тестовый LiveSearcher
type fakeLive struct {
	mu   sync.Mutex
	urls []string
	fn   func(pageURL string) ([]string, error)
}

func (f *fakeLive) SearchSKUs(ctx context.Context, pageURL string) ([]string, error) {
	f.mu.Lock()
	f.urls = append(f.urls, pageURL)
	f.mu.Unlock()
	return f.fn(pageURL)
}

// fakeLLM тестовый ToolCaller с записью промптов
type fakeLLM struct {
	mu      sync.Mutex
	prompts []string
	fn      func(userPrompt string) (json.RawMessage, error)
}

func (f *fakeLLM) CallTool(ctx context.Context, systemPrompt, userPrompt, toolName string, schema map[string]any) (json.RawMessage, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, userPrompt)
	f.mu.Unlock()
	return f.fn(userPrompt)
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// fakeHistory тестовый HistoryRecorder
type fakeHistory struct {
	mu      sync.Mutex
	records []ResolutionResult
	err     error
}

func (f *fakeHistory) RecordResolution(ctx context.Context, res ResolutionResult) error {
	f.mu.Lock()
	f.records = append(f.records, res)
	f.mu.Unlock()
	return f.err
}

func (f *fakeHistory) recorded() []ResolutionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ResolutionResult(nil), f.records...)
}

// fastRetry политика повторов с минимальными задержками для тестов
func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseDelay: 1, Multiplier: 2}
}

// testVendor поставщик с живым поиском и исправлениями
func testVendor() VendorConfig {
	return VendorConfig{
		Key:                  "graybar",
		DisplayName:          "Graybar",
		SearchNamespace:      "graybar-catalog",
		CorrectionsNamespace: "graybar-corrections",
		SearchURLTemplate:    "https://www.graybar.com/search/?text=%s",
		RealtimeWeight:       0.7,
		CorrectionsEnabled:   true,
	}
}
