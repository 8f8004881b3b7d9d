package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
)

// RealtimeReranker реранжирование кандидатов по живой выдаче сайта
// поставщика. Запускается только при VendorConfig.RealtimeWeight > 0.
type RealtimeReranker struct {
	live   LiveSearcher
	retry  RetryConfig
	logger *slog.Logger
}

// NewRealtimeReranker создает реранжировщик поверх живого поиска
func NewRealtimeReranker(live LiveSearcher, retry RetryConfig) *RealtimeReranker {
	return &RealtimeReranker{
		live:   live,
		retry:  retry,
		logger: slog.Default().With("component", "realtime_reranker"),
	}
}

// Rerank проставляет кандидатам позиции живой выдачи и сортирует их.
// Возвращает признак того, что живые данные реально были получены.
// Сбой скрейпа нефатален: порядок деградирует до чисто семантического,
// все позиции остаются сентинелом, конвейер не прерывается.
func (rr *RealtimeReranker) Rerank(ctx context.Context, vendor VendorConfig, desc Description, candidates []Candidate) ([]Candidate, bool) {
	pageURL := fmt.Sprintf(vendor.SearchURLTemplate, url.QueryEscape(desc.Normalized))

	var skus []string
	err := Do(ctx, rr.retry, "live-search", func(ctx context.Context) error {
		found, err := rr.live.SearchSKUs(ctx, pageURL)
		if err != nil {
			return err
		}
		skus = found
		return nil
	})
	if err != nil {
		scrapeErr := &ScrapeError{URL: pageURL, Err: err}
		rr.logger.Warn("Realtime rerank degraded to semantic-only ordering",
			"vendor", vendor.Key,
			"error", scrapeErr.Error())
		sortCandidates(candidates)
		return candidates, false
	}
	if len(skus) == 0 {
		rr.logger.Warn("Live search returned no SKU tokens",
			"vendor", vendor.Key,
			"url", pageURL)
		sortCandidates(candidates)
		return candidates, false
	}

	// Позиция в разметке страницы = позиция в ранжировании, счет с единицы
	ranks := make(map[string]int, len(skus))
	for i, sku := range skus {
		key := canonicalPartNumber(sku)
		if key == "" {
			continue
		}
		if _, ok := ranks[key]; !ok {
			ranks[key] = i + 1
		}
	}

	ranked := 0
	for i := range candidates {
		if rank, ok := ranks[canonicalPartNumber(candidates[i].PartNumber)]; ok {
			candidates[i].RealtimeRank = rank
			ranked++
		} else {
			candidates[i].RealtimeRank = UnrankedRealtime
		}
	}
	sortCandidates(candidates)

	rr.logger.Info("Realtime rerank applied",
		"vendor", vendor.Key,
		"live_skus", len(skus),
		"ranked_candidates", ranked)
	return candidates, true
}

// canonicalPartNumber каноническая форма артикула для сопоставления с
// живой выдачей: верхний регистр, только буквы и цифры
func canonicalPartNumber(part string) string {
	var b strings.Builder
	for _, r := range part {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
