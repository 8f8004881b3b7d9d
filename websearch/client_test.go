package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
)

const searchResultsPage = `<html><body>
<div class="product" data-sku="THHN-12-STR"><span>THHN 12 AWG Stranded</span></div>
<div class="product"><span class="product-sku"> EMT-075 </span></div>
<div class="product" data-sku="THHN-12-STR"><span>duplicate card</span></div>
<div class="product"><span itemprop="sku">GR58X8</span></div>
</body></html>`

func fastClient(cacheEnabled bool) *Client {
	return NewClient(ClientConfig{
		Timeout:      time.Second,
		RateLimit:    rate.Inf,
		CacheTTL:     time.Minute,
		CacheEnabled: cacheEnabled,
	})
}

func TestSearchSKUsExtractsDocumentOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		w.Write([]byte(searchResultsPage))
	}))
	defer ts.Close()

	skus, err := fastClient(false).SearchSKUs(context.Background(), ts.URL)
	require.NoError(t, err)

	// Порядок документа, дубликаты отброшены с сохранением первого вхождения
	assert.Equal(t, []string{"THHN-12-STR", "EMT-075", "GR58X8"}, skus)
}

func TestSearchSKUsEmptyPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>No results found</p></body></html>`))
	}))
	defer ts.Close()

	skus, err := fastClient(false).SearchSKUs(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Empty(t, skus)
}

func TestSearchSKUsRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := fastClient(false).SearchSKUs(context.Background(), ts.URL)
	assert.ErrorIs(t, err, resolution.ErrRateLimited)
}

func TestSearchSKUsUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := fastClient(false).SearchSKUs(context.Background(), ts.URL)

	var ue *resolution.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "live-search", ue.Service)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
}

func TestSearchSKUsUsesCache(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(searchResultsPage))
	}))
	defer ts.Close()

	client := fastClient(true)
	for i := 0; i < 3; i++ {
		skus, err := client.SearchSKUs(context.Background(), ts.URL)
		require.NoError(t, err)
		assert.Len(t, skus, 3)
	}
	assert.Equal(t, int64(1), requests.Load())
}

func TestSearchSKUsDoesNotCacheEmptyExtraction(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			// Первый ответ без карточек товара
			w.Write([]byte(`<html><body><p>No results found</p></body></html>`))
			return
		}
		w.Write([]byte(searchResultsPage))
	}))
	defer ts.Close()

	client := fastClient(true)

	skus, err := client.SearchSKUs(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Empty(t, skus)

	// Пустая выдача не закрепляется в кэше: повторный вызов идет на сайт
	skus, err = client.SearchSKUs(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Len(t, skus, 3)
	assert.Equal(t, int64(2), requests.Load())
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	cache.Set("key", []string{"A1"})

	skus, found := cache.Get("key")
	require.True(t, found)
	assert.Equal(t, []string{"A1"}, skus)

	time.Sleep(20 * time.Millisecond)
	_, found = cache.Get("key")
	assert.False(t, found)
}

func TestSkuTokenPrefersAttributes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<div data-part-number="PN-1">visible text ignored</div>
			<div class="sku">  TEXT-SKU  </div>
		</body></html>`))
	}))
	defer ts.Close()

	skus, err := fastClient(false).SearchSKUs(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"PN-1", "TEXT-SKU"}, skus)
}

func TestSearchSKUsHonorsContextCancellation(t *testing.T) {
	client := NewClient(ClientConfig{
		Timeout:   time.Second,
		RateLimit: rate.Every(time.Hour),
	})
	// Первый токен лимитера уже есть, второй вызов ждет час
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchResultsPage))
	}))
	defer ts.Close()

	_, err := client.SearchSKUs(ctx, ts.URL)
	require.NoError(t, err)

	_, err = client.SearchSKUs(ctx, ts.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate limiter") || strings.Contains(err.Error(), "context"))
}
