package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultCorrectionTopK количество записей, запрашиваемых из хранилища исправлений
	DefaultCorrectionTopK = 10

	// Пороги уверенности ярусов. Исторические ревизии конвейера расходились
	// в значениях (0.89/0.925/0.935 против 0.93), поэтому пороги вынесены
	// в настройку и не зашиваются по поставщикам.
	DefaultExactThreshold = 0.89
	DefaultGroupThreshold = 0.925
	DefaultFuzzyThreshold = 0.93
	DefaultGroupBonus     = 0.01
)

// CorrectionThresholds пороги ярусов уверенности хранилища исправлений
type CorrectionThresholds struct {
	// Exact минимальная оценка для точного текстового совпадения (T1)
	Exact float64
	// Group минимальная оценка записи для группового яруса (T2, T2 > T1)
	Group float64
	// Fuzzy минимальная нормализованная редакционная близость (T3)
	Fuzzy float64
	// GroupBonus прибавка к оценке группы за каждую повторную запись (λ)
	GroupBonus float64
}

// DefaultCorrectionThresholds возвращает пороги по умолчанию
func DefaultCorrectionThresholds() CorrectionThresholds {
	return CorrectionThresholds{
		Exact:      DefaultExactThreshold,
		Group:      DefaultGroupThreshold,
		Fuzzy:      DefaultFuzzyThreshold,
		GroupBonus: DefaultGroupBonus,
	}
}

// CorrectionMatch принятый ярусом результат из хранилища исправлений
type CorrectionMatch struct {
	PartNumber  string
	Explanation string
}

// CorrectionResolver подбор по хранилищу подтвержденных исправлений.
// Ярусы применяются в строгом порядке приоритета: точный > групповой >
// нечеткий; на описание возвращается не более одного результата.
type CorrectionResolver struct {
	store      StoreSearcher
	retry      RetryConfig
	thresholds CorrectionThresholds
	topK       int
	logger     *slog.Logger
}

// NewCorrectionResolver создает резолвер исправлений
func NewCorrectionResolver(store StoreSearcher, retry RetryConfig, topK int, thresholds CorrectionThresholds) *CorrectionResolver {
	if topK <= 0 {
		topK = DefaultCorrectionTopK
	}
	return &CorrectionResolver{
		store:      store,
		retry:      retry,
		thresholds: thresholds,
		topK:       topK,
		logger:     slog.Default().With("component", "correction_resolver"),
	}
}

// Resolve запрашивает хранилище и применяет ярусную политику.
// (nil, nil) означает, что ни один ярус не принял запись и конвейер
// должен продолжить полный поиск с выбором через LLM.
func (r *CorrectionResolver) Resolve(ctx context.Context, vendor VendorConfig, desc Description) (*CorrectionMatch, error) {
	var hits []SearchHit
	err := Do(ctx, r.retry, "correction-store", func(ctx context.Context) error {
		found, err := r.store.Query(ctx, vendor.CorrectionsNamespace, desc.Normalized, r.topK, false, 0)
		if err != nil {
			return err
		}
		hits = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	records := make([]CorrectionRecord, 0, len(hits))
	for _, h := range hits {
		records = append(records, CorrectionRecord{
			MatchedText: h.Description,
			PartNumber:  h.PartNumber,
			Reason:      h.Reason,
			Score:       h.Score,
		})
	}

	if m := r.matchExact(records, desc); m != nil {
		r.logger.Info("Correction accepted",
			"tier", "exact",
			"vendor", vendor.Key,
			"part_number", m.PartNumber)
		return m, nil
	}
	if m := r.matchGrouped(records); m != nil {
		r.logger.Info("Correction accepted",
			"tier", "grouped",
			"vendor", vendor.Key,
			"part_number", m.PartNumber)
		return m, nil
	}
	if m := r.matchFuzzy(records, desc); m != nil {
		r.logger.Info("Correction accepted",
			"tier", "fuzzy",
			"vendor", vendor.Key,
			"part_number", m.PartNumber)
		return m, nil
	}

	return nil, nil
}

// matchExact ярус 1: текст записи равен описанию без учета регистра
// и оценка не ниже порога. Побеждает приоритет яруса, а не сырая оценка:
// точное совпадение принимается даже при наличии неточной записи с
// большей оценкой.
func (r *CorrectionResolver) matchExact(records []CorrectionRecord, desc Description) *CorrectionMatch {
	var best *CorrectionRecord
	for i := range records {
		rec := &records[i]
		if rec.Score < r.thresholds.Exact {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(rec.MatchedText), desc.Normalized) {
			continue
		}
		if best == nil || rec.Score > best.Score {
			best = rec
		}
	}
	if best == nil {
		return nil
	}
	return &CorrectionMatch{
		PartNumber:  best.PartNumber,
		Explanation: explainCorrection("Exact match in correction history", best),
	}
}

// matchGrouped ярус 2: записи с оценкой не ниже Group группируются по
// артикулу; оценка группы = max(score) + GroupBonus*(count-1). Побеждает
// группа с наибольшей оценкой; при равенстве — группа, встреченная раньше
// в ответе хранилища (детерминированный tie-break).
func (r *CorrectionResolver) matchGrouped(records []CorrectionRecord) *CorrectionMatch {
	type group struct {
		best  *CorrectionRecord
		count int
	}
	order := make([]string, 0, len(records))
	groups := make(map[string]*group, len(records))

	for i := range records {
		rec := &records[i]
		if rec.Score < r.thresholds.Group {
			continue
		}
		g, ok := groups[rec.PartNumber]
		if !ok {
			g = &group{}
			groups[rec.PartNumber] = g
			order = append(order, rec.PartNumber)
		}
		g.count++
		if g.best == nil || rec.Score > g.best.Score {
			g.best = rec
		}
	}
	if len(order) == 0 {
		return nil
	}

	var winner *group
	var winnerScore float64
	for _, part := range order {
		g := groups[part]
		score := g.best.Score + r.thresholds.GroupBonus*float64(g.count-1)
		// Строгое сравнение: при равных оценках остается более ранняя группа
		if winner == nil || score > winnerScore {
			winner = g
			winnerScore = score
		}
	}

	return &CorrectionMatch{
		PartNumber: winner.best.PartNumber,
		Explanation: explainCorrection(
			fmt.Sprintf("Matched a group of %d confirmed corrections (group score %.3f)", winner.count, winnerScore),
			winner.best),
	}
}

// matchFuzzy ярус 3: максимальная нормализованная редакционная близость
// 1 - dist/max(len) по всем записям, прием при значении не ниже Fuzzy
func (r *CorrectionResolver) matchFuzzy(records []CorrectionRecord, desc Description) *CorrectionMatch {
	var best *CorrectionRecord
	var bestSim float64
	for i := range records {
		rec := &records[i]
		sim := editSimilarity(rec.MatchedText, desc.Normalized)
		if best == nil || sim > bestSim {
			best = rec
			bestSim = sim
		}
	}
	if best == nil || bestSim < r.thresholds.Fuzzy {
		return nil
	}
	return &CorrectionMatch{
		PartNumber: best.PartNumber,
		Explanation: explainCorrection(
			fmt.Sprintf("Close match in correction history (similarity %.3f)", bestSim),
			best),
	}
}

func explainCorrection(prefix string, rec *CorrectionRecord) string {
	explanation := fmt.Sprintf("%s: %q was previously confirmed as %s (score %.3f).",
		prefix, rec.MatchedText, rec.PartNumber, rec.Score)
	if rec.Reason != "" {
		explanation += " " + rec.Reason
	}
	return explanation
}

// editSimilarity нормализованная редакционная близость строк без учета
// регистра: 1 - levenshtein/max(len). Для двух пустых строк возвращает 1.
func editSimilarity(a, b string) float64 {
	ar := []rune(strings.ToLower(a))
	br := []rune(strings.ToLower(b))
	longest := len(ar)
	if len(br) > longest {
		longest = len(br)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(ar, br))/float64(longest)
}

// levenshteinDistance классическое редакционное расстояние по рунам,
// двухстрочная динамика
func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
