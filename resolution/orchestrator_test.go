package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(store *fakeStore, live *fakeLive, llm *fakeLLM, history HistoryRecorder) *Orchestrator {
	return NewOrchestrator(
		DefaultVendors(),
		NewCorrectionResolver(store, fastRetry(), 10, DefaultCorrectionThresholds()),
		NewCandidateRetriever(store, fastRetry(), 100, true, 25),
		NewRealtimeReranker(live, fastRetry()),
		NewSelectionEngine(llm, fastRetry()),
		history,
	)
}

// catalogStore возвращает исправления только при exact=true, каталожные
// кандидаты всегда
func catalogStore(exact bool) *fakeStore {
	return &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		if strings.HasSuffix(namespace, "-corrections") {
			if exact {
				return []SearchHit{{PartNumber: "CORR1", Description: text, Score: 0.95}}, nil
			}
			return nil, nil
		}
		return []SearchHit{
			{PartNumber: "CAT1", Description: "catalog item", Score: 0.9},
			{PartNumber: "CAT2", Description: "catalog item two", Score: 0.8},
		}, nil
	}}
}

func selectingLLM() *fakeLLM {
	return &fakeLLM{fn: func(prompt string) (json.RawMessage, error) {
		return json.RawMessage(`{"vendorPartNumber":"CAT1","explanation":"best semantic match"}`), nil
	}}
}

func quietLive() *fakeLive {
	return &fakeLive{fn: func(pageURL string) ([]string, error) {
		return []string{"CAT2"}, nil
	}}
}

func TestResolveOneCorrectionShortCircuit(t *testing.T) {
	store := catalogStore(true)
	llm := selectingLLM()
	orch := newTestOrchestrator(store, quietLive(), llm, nil)

	vendor, _ := orch.FindVendor("graybar")
	res := orch.ResolveOne(context.Background(), vendor, "ground rod 5/8")

	assert.Equal(t, "CORR1", res.PartNumber)
	// Каталожный индекс и LLM не трогаются
	assert.Equal(t, 0, store.queryCount("graybar-catalog"))
	assert.Equal(t, 0, llm.callCount())
}

func TestResolveOneFullPipeline(t *testing.T) {
	store := catalogStore(false)
	llm := selectingLLM()
	orch := newTestOrchestrator(store, quietLive(), llm, nil)

	vendor, _ := orch.FindVendor("graybar")
	res := orch.ResolveOne(context.Background(), vendor, "100 - feet of THHN copper wire")

	assert.Equal(t, "graybar", res.Vendor)
	assert.Equal(t, "Graybar", res.VendorDisplayName)
	assert.Equal(t, "100 - feet of THHN copper wire", res.Description)
	assert.Equal(t, "CAT1", res.PartNumber)
	assert.Equal(t, "best semantic match", res.Explanation)
	assert.Equal(t, 1, store.queryCount("graybar-corrections"))
	assert.Equal(t, 1, store.queryCount("graybar-catalog"))
	assert.Equal(t, 1, llm.callCount())
}

func TestResolveOneSkipsLiveSearchForZeroWeight(t *testing.T) {
	store := catalogStore(false)
	live := quietLive()
	orch := newTestOrchestrator(store, live, selectingLLM(), nil)

	vendor, _ := orch.FindVendor("ces")
	orch.ResolveOne(context.Background(), vendor, "thhn wire")
	assert.Empty(t, live.urls)
}

func TestResolveOneSkipsCorrectionsWhenDisabled(t *testing.T) {
	store := catalogStore(true)
	orch := newTestOrchestrator(store, quietLive(), selectingLLM(), nil)

	vendor, _ := orch.FindVendor("wesco")
	res := orch.ResolveOne(context.Background(), vendor, "thhn wire")

	assert.Equal(t, 0, store.queryCount("wesco-corrections"))
	assert.Equal(t, "CAT1", res.PartNumber)
}

func TestResolveOneDegradesToSentinelOnFailure(t *testing.T) {
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		return nil, &UpstreamError{Service: "vector-search", StatusCode: 503}
	}}
	orch := newTestOrchestrator(store, quietLive(), selectingLLM(), nil)

	vendor, _ := orch.FindVendor("graybar")
	res := orch.ResolveOne(context.Background(), vendor, "thhn wire")

	assert.Equal(t, NoPartNumber, res.PartNumber)
	assert.Contains(t, res.Explanation, "503")
}

func TestResolveOneDegradesAfterRetryExhaustion(t *testing.T) {
	calls := 0
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		calls++
		return nil, fmt.Errorf("store: %w", ErrRateLimited)
	}}
	orch := newTestOrchestrator(store, quietLive(), selectingLLM(), nil)

	vendor, _ := orch.FindVendor("graybar")
	res := orch.ResolveOne(context.Background(), vendor, "thhn wire")

	assert.Equal(t, NoPartNumber, res.PartNumber)
	assert.Contains(t, res.Explanation, "retry budget exhausted")
	// Бюджет повторов тратится один раз: сбой первого же запроса к
	// хранилищу исправлений деградирует всю пару
	assert.Equal(t, 5, calls)
}

func TestResolveOneRecordsHistory(t *testing.T) {
	history := &fakeHistory{}
	orch := newTestOrchestrator(catalogStore(false), quietLive(), selectingLLM(), history)

	vendor, _ := orch.FindVendor("graybar")
	orch.ResolveOne(context.Background(), vendor, "thhn wire")

	records := history.recorded()
	require.Len(t, records, 1)
	assert.Equal(t, "CAT1", records[0].PartNumber)
}

func TestResolveBatchIsolatesVendorFailures(t *testing.T) {
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		if strings.HasPrefix(namespace, "rexel-") {
			return nil, &UpstreamError{Service: "vector-search", StatusCode: 500}
		}
		if strings.HasSuffix(namespace, "-corrections") {
			return nil, nil
		}
		return []SearchHit{{PartNumber: "CAT1", Description: "catalog item", Score: 0.9}}, nil
	}}
	orch := newTestOrchestrator(store, quietLive(), selectingLLM(), nil)

	graybar, _ := orch.FindVendor("graybar")
	rexel, _ := orch.FindVendor("rexel")
	results := orch.ResolveBatch(context.Background(), []VendorConfig{graybar, rexel}, []string{"thhn wire", "emt conduit"})

	require.Len(t, results, 2)
	assert.Equal(t, "graybar", results[0].Vendor)
	assert.Equal(t, "rexel", results[1].Vendor)
	require.Len(t, results[0].PartNumbers, 2)
	require.Len(t, results[1].PartNumbers, 2)

	// Сбой rexel не мешает graybar
	for _, res := range results[0].PartNumbers {
		assert.Equal(t, "CAT1", res.PartNumber)
	}
	for _, res := range results[1].PartNumbers {
		assert.Equal(t, NoPartNumber, res.PartNumber)
		assert.NotEmpty(t, res.Explanation)
	}
}

func TestFindVendorCaseInsensitive(t *testing.T) {
	vendors := DefaultVendors()

	v, ok := FindVendor(vendors, "GrayBar")
	require.True(t, ok)
	assert.Equal(t, "graybar", v.Key)

	_, ok = FindVendor(vendors, "unknown")
	assert.False(t, ok)
}
