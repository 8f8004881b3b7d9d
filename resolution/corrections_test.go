package resolution

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCorrectionResolver(store *fakeStore) *CorrectionResolver {
	return NewCorrectionResolver(store, fastRetry(), 10, DefaultCorrectionThresholds())
}

func TestCorrectionsExactBeatsHigherScoredInexact(t *testing.T) {
	desc := NewDescription("ground rod 5/8 x 8")
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		return []SearchHit{
			{PartNumber: "OTHER1", Description: "ground rod clamp 5/8", Score: 0.99},
			{PartNumber: "GR58X8", Description: "Ground Rod 5/8 x 8", Score: 0.90},
		}, nil
	}}

	match, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), desc)
	require.NoError(t, err)
	require.NotNil(t, match)

	// Приоритет яруса, не сырая оценка: точное совпадение побеждает
	assert.Equal(t, "GR58X8", match.PartNumber)
	assert.Contains(t, match.Explanation, "Exact match")
}

func TestCorrectionsGroupedTieBreakIsDeterministic(t *testing.T) {
	desc := NewDescription("thhn copper wire 12 awg")
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		// P1: max 0.94 + 0.01*1 = 0.95; P2: 0.95. Равенство — побеждает
		// группа, встреченная раньше
		return []SearchHit{
			{PartNumber: "P1", Description: "thhn wire 12awg copper", Score: 0.93},
			{PartNumber: "P1", Description: "thhn cu wire #12", Score: 0.94},
			{PartNumber: "P2", Description: "thhn copper conductor 12", Score: 0.95},
		}, nil
	}}
	resolver := newCorrectionResolver(store)

	for i := 0; i < 20; i++ {
		match, err := resolver.Resolve(context.Background(), testVendor(), desc)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "P1", match.PartNumber, "iteration %d", i)
		assert.Contains(t, match.Explanation, "group of 2")
	}
}

func TestCorrectionsFuzzyTier(t *testing.T) {
	desc := NewDescription("galvanized steel junction box 4x4")
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		// Оценка ниже групповых порогов, но текст почти совпадает
		return []SearchHit{
			{PartNumber: "JB44G", Description: "galvanized steel junction box 4x4s", Score: 0.80},
		}, nil
	}}

	match, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), desc)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "JB44G", match.PartNumber)
	assert.Contains(t, match.Explanation, "Close match")
}

func TestCorrectionsNoTierAccepts(t *testing.T) {
	desc := NewDescription("emergency exit sign led")
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		return []SearchHit{
			{PartNumber: "X1", Description: "completely unrelated breaker panel", Score: 0.50},
		}, nil
	}}

	match, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), desc)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestCorrectionsEmptyStore(t *testing.T) {
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		return nil, nil
	}}

	match, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), NewDescription("anything"))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestCorrectionsQueriesCorrectionsNamespace(t *testing.T) {
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		return nil, nil
	}}

	_, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), NewDescription("ground rod"))
	require.NoError(t, err)
	require.Len(t, store.queries, 1)
	assert.Equal(t, "graybar-corrections", store.queries[0].Namespace)
	assert.Equal(t, 10, store.queries[0].TopK)
	assert.False(t, store.queries[0].Rerank)
}

func TestCorrectionsRetriesRateLimit(t *testing.T) {
	calls := 0
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("store: %w", ErrRateLimited)
		}
		return []SearchHit{{PartNumber: "GR58", Description: "ground rod", Score: 0.95}}, nil
	}}

	match, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), NewDescription("ground rod"))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 3, calls)
}

func TestCorrectionsPropagatesUpstreamError(t *testing.T) {
	store := &fakeStore{fn: func(namespace, text string) ([]SearchHit, error) {
		return nil, &UpstreamError{Service: "vector-search", StatusCode: 503}
	}}

	match, err := newCorrectionResolver(store).Resolve(context.Background(), testVendor(), NewDescription("ground rod"))
	assert.Nil(t, match)
	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
}

func TestEditSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, editSimilarity("", ""))
	assert.Equal(t, 1.0, editSimilarity("Wire", "wire"))
	assert.Equal(t, 0.0, editSimilarity("abc", ""))
	assert.InDelta(t, 0.75, editSimilarity("wire", "wirx"), 1e-9)
}
