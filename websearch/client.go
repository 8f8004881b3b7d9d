// Package websearch содержит клиент живого поиска по сайтам поставщиков.
// Страница результатов поиска поставщика разбирается на упорядоченный
// список артикулов; порядок в разметке = порядок ранжирования.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
)

// Селекторы узлов с артикулом в карточках товара. Комбинированный
// селектор сохраняет порядок следования в документе.
const skuSelector = "[data-sku], [data-part-number], [itemprop=sku], .product-sku, .sku"

// Client клиент живого поиска
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *Cache
	userAgent  string
	logger     *slog.Logger
}

// ClientConfig конфигурация клиента
type ClientConfig struct {
	Timeout      time.Duration
	RateLimit    rate.Limit
	CacheTTL     time.Duration
	CacheEnabled bool
}

// NewClient создает клиент живого поиска
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Every(time.Second) // 1 запрос в секунду
	}

	var cache *Cache
	if cfg.CacheEnabled {
		ttl := cfg.CacheTTL
		if ttl == 0 {
			ttl = 24 * time.Hour
		}
		cache = NewCache(ttl)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(cfg.RateLimit, 1),
		cache:      cache,
		userAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		logger:     slog.Default().With("component", "websearch_client"),
	}
}

// SearchSKUs загружает страницу живого поиска и извлекает артикулы в
// порядке следования в разметке. Пустой список не является ошибкой на
// этом уровне; решение о деградации принимает реранжировщик.
func (c *Client) SearchSKUs(ctx context.Context, pageURL string) ([]string, error) {
	if c.cache != nil {
		if skus, found := c.cache.Get(pageURL); found {
			return skus, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Заголовки браузера: витрины поставщиков отдают урезанную разметку
	// неопознанным клиентам
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("live search %s: %w", pageURL, resolution.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resolution.UpstreamError{
			Service:    "live-search",
			StatusCode: resp.StatusCode,
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse live search page: %w", err)
	}

	skus := extractSKUs(doc)
	c.logger.Debug("Live search page parsed",
		"url", pageURL,
		"skus", len(skus))

	// Пустая выдача не кэшируется: один неудачный разбор страницы не
	// должен закреплять чисто семантический порядок на весь TTL
	if c.cache != nil && len(skus) > 0 {
		c.cache.Set(pageURL, skus)
	}
	return skus, nil
}

// extractSKUs извлекает артикулы из карточек товара в порядке документа,
// отбрасывая повторы с сохранением первого вхождения
func extractSKUs(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var skus []string

	doc.Find(skuSelector).Each(func(_ int, sel *goquery.Selection) {
		token := skuToken(sel)
		if token == "" {
			return
		}
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		skus = append(skus, token)
	})

	return skus
}

// skuToken достает артикул из атрибута узла либо из его текста
func skuToken(sel *goquery.Selection) string {
	if v, ok := sel.Attr("data-sku"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := sel.Attr("data-part-number"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(sel.Text())
}
