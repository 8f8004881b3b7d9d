package resolution

import (
	"context"
	"log/slog"
)

// Orchestrator собирает конвейер подбора для пары (поставщик, описание)
// и изолирует сбои: отказ одной пары никогда не прерывает остальные
// пары, пакет или поток.
type Orchestrator struct {
	vendors     []VendorConfig
	corrections *CorrectionResolver
	retriever   *CandidateRetriever
	reranker    *RealtimeReranker
	selector    *SelectionEngine
	history     HistoryRecorder
	logger      *slog.Logger
}

// NewOrchestrator создает оркестратор. history может быть nil — журнал
// подборов ведется по возможности и не влияет на результат.
func NewOrchestrator(
	vendors []VendorConfig,
	corrections *CorrectionResolver,
	retriever *CandidateRetriever,
	reranker *RealtimeReranker,
	selector *SelectionEngine,
	history HistoryRecorder,
) *Orchestrator {
	return &Orchestrator{
		vendors:     vendors,
		corrections: corrections,
		retriever:   retriever,
		reranker:    reranker,
		selector:    selector,
		history:     history,
		logger:      slog.Default().With("component", "orchestrator"),
	}
}

// Vendors возвращает неизменяемую таблицу поставщиков
func (o *Orchestrator) Vendors() []VendorConfig {
	return o.vendors
}

// FindVendor ищет поставщика по ключу без учета регистра
func (o *Orchestrator) FindVendor(key string) (VendorConfig, bool) {
	return FindVendor(o.vendors, key)
}

// ResolveOne выполняет полный подбор для одной пары (поставщик, описание).
// Всегда возвращает результат: при сбое любой стадии он деградирует до
// NoPartNumber с текстом сбоя в Explanation.
func (o *Orchestrator) ResolveOne(ctx context.Context, vendor VendorConfig, raw string) ResolutionResult {
	desc := NewDescription(raw)

	res, err := o.resolve(ctx, vendor, desc)
	if err != nil {
		o.logger.Warn("Resolution degraded",
			"vendor", vendor.Key,
			"description", raw,
			"error", err.Error())
		res = ResolutionResult{
			Vendor:            vendor.Key,
			VendorDisplayName: vendor.DisplayName,
			Description:       raw,
			PartNumber:        NoPartNumber,
			Explanation:       err.Error(),
		}
	}

	if o.history != nil {
		if err := o.history.RecordResolution(ctx, res); err != nil {
			o.logger.Warn("Failed to record resolution history",
				"vendor", vendor.Key,
				"error", err.Error())
		}
	}
	return res
}

// resolve собственно конвейер: исправления с коротким замыканием, затем
// выборка кандидатов, условное реранжирование по живой выдаче и выбор
// через LLM
func (o *Orchestrator) resolve(ctx context.Context, vendor VendorConfig, desc Description) (ResolutionResult, error) {
	if vendor.CorrectionsEnabled && o.corrections != nil {
		match, err := o.corrections.Resolve(ctx, vendor, desc)
		if err != nil {
			return ResolutionResult{}, err
		}
		if match != nil {
			return ResolutionResult{
				Vendor:            vendor.Key,
				VendorDisplayName: vendor.DisplayName,
				Description:       desc.Raw,
				PartNumber:        match.PartNumber,
				Explanation:       match.Explanation,
			}, nil
		}
	}

	candidates, err := o.retriever.Retrieve(ctx, vendor, desc)
	if err != nil {
		return ResolutionResult{}, err
	}

	realtimeAvailable := false
	if vendor.RealtimeWeight > 0 && o.reranker != nil {
		candidates, realtimeAvailable = o.reranker.Rerank(ctx, vendor, desc, candidates)
	}

	sel, err := o.selector.Select(ctx, vendor, desc, candidates, realtimeAvailable)
	if err != nil {
		return ResolutionResult{}, err
	}

	return ResolutionResult{
		Vendor:            vendor.Key,
		VendorDisplayName: vendor.DisplayName,
		Description:       desc.Raw,
		PartNumber:        sel.VendorPartNumber,
		Explanation:       sel.Explanation,
	}, nil
}

// ResolveBatch обрабатывает пары в детерминированном порядке циклов:
// поставщики и описания в порядке входа, без обязательной параллельности.
// Порядок результатов в ответе совпадает с порядком входа.
func (o *Orchestrator) ResolveBatch(ctx context.Context, vendors []VendorConfig, descriptions []string) []VendorResults {
	results := make([]VendorResults, 0, len(vendors))
	for _, vendor := range vendors {
		vr := VendorResults{
			Vendor:            vendor.Key,
			VendorDisplayName: vendor.DisplayName,
			PartNumbers:       make([]ResolutionResult, 0, len(descriptions)),
		}
		for _, raw := range descriptions {
			vr.PartNumbers = append(vr.PartNumbers, o.ResolveOne(ctx, vendor, raw))
		}
		results = append(results, vr)
	}
	return results
}
