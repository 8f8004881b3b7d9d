package resolution

import (
	"context"
	"log/slog"
	"sort"
)

const (
	// DefaultCandidateTopK размер выборки каталожного индекса
	DefaultCandidateTopK = 100
	// DefaultRerankTopN размер выборки после cross-encoder реранжирования
	DefaultRerankTopN = 25
)

// CandidateRetriever выборка кандидатов из каталожного индекса поставщика
type CandidateRetriever struct {
	search     StoreSearcher
	retry      RetryConfig
	topK       int
	rerank     bool
	rerankTopN int
	logger     *slog.Logger
}

// NewCandidateRetriever создает выборщик кандидатов.
// rerank включает cross-encoder стадию на стороне сервиса поиска.
func NewCandidateRetriever(search StoreSearcher, retry RetryConfig, topK int, rerank bool, rerankTopN int) *CandidateRetriever {
	if topK <= 0 {
		topK = DefaultCandidateTopK
	}
	if rerankTopN <= 0 {
		rerankTopN = DefaultRerankTopN
	}
	return &CandidateRetriever{
		search:     search,
		retry:      retry,
		topK:       topK,
		rerank:     rerank,
		rerankTopN: rerankTopN,
		logger:     slog.Default().With("component", "candidate_retriever"),
	}
}

// Retrieve выполняет один поиск по пространству поставщика.
// Пустой список кандидатов — валидный результат, не ошибка: он передается
// дальше, и движок выбора вернет сентинел NoPartNumber с пояснением.
func (cr *CandidateRetriever) Retrieve(ctx context.Context, vendor VendorConfig, desc Description) ([]Candidate, error) {
	var hits []SearchHit
	err := Do(ctx, cr.retry, "vendor-search", func(ctx context.Context) error {
		found, err := cr.search.Query(ctx, vendor.SearchNamespace, desc.Normalized, cr.topK, cr.rerank, cr.rerankTopN)
		if err != nil {
			return err
		}
		hits = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, Candidate{
			PartNumber:    h.PartNumber,
			Description:   h.Description,
			SemanticScore: h.Score,
			RealtimeRank:  UnrankedRealtime,
		})
	}
	sortCandidates(candidates)

	cr.logger.Debug("Candidates retrieved",
		"vendor", vendor.Key,
		"count", len(candidates))
	return candidates, nil
}

// sortCandidates документированный детерминированный порядок кандидатов:
// позиция живой выдачи по возрастанию (сентинел всегда последним), затем
// семантическая оценка по убыванию, затем артикул по возрастанию. Порядок
// вставки никогда не используется.
func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.RealtimeRank != b.RealtimeRank {
			return a.RealtimeRank < b.RealtimeRank
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		return a.PartNumber < b.PartNumber
	})
}
