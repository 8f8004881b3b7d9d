package resolution

import (
	"context"
	"encoding/json"
)

const (
	// NoPartNumber сентинел для результата без подобранного артикула.
	// PartNumber в ResolutionResult никогда не бывает пустым.
	NoPartNumber = "N/A"

	// UnrankedRealtime сентинел позиции для кандидата, отсутствующего в живой выдаче.
	// Такие кандидаты всегда сортируются после всех ранжированных.
	UnrankedRealtime = 1 << 30
)

// Description описание позиции RFQ: исходный текст и нормализованный вариант.
// После нормализации значение не изменяется.
type Description struct {
	Raw        string
	Normalized string
}

// NewDescription создает описание с уже выполненной нормализацией
func NewDescription(raw string) Description {
	return Description{Raw: raw, Normalized: Normalize(raw)}
}

// Candidate кандидат из каталожного индекса поставщика.
// Живет только в рамках одного вызова подбора и отбрасывается после выбора.
type Candidate struct {
	PartNumber    string
	Description   string
	SemanticScore float64
	RealtimeRank  int
}

// SearchHit результат запроса к сервису векторного поиска.
// Для каталожных пространств Reason пустой, для пространства исправлений
// содержит причину подтвержденного сопоставления.
type SearchHit struct {
	PartNumber  string
	Description string
	Reason      string
	Score       float64
}

// CorrectionRecord запись хранилища подтвержденных исправлений.
// Только для чтения со стороны конвейера.
type CorrectionRecord struct {
	MatchedText string
	PartNumber  string
	Reason      string
	Score       float64
}

// ResolutionResult итог подбора артикула для пары (поставщик, описание).
// Производится ровно один раз на пару; при сбое любой стадии PartNumber
// деградирует до NoPartNumber, а Explanation содержит текст сбоя.
type ResolutionResult struct {
	Vendor            string `json:"vendor"`
	VendorDisplayName string `json:"vendorDisplayName"`
	Description       string `json:"description"`
	PartNumber        string `json:"partNumber"`
	Explanation       string `json:"explanation"`
}

// VendorResults результаты одного поставщика по всем описаниям запроса
type VendorResults struct {
	Vendor            string             `json:"vendor"`
	VendorDisplayName string             `json:"vendorDisplayName"`
	PartNumbers       []ResolutionResult `json:"partNumbers"`
}

// StoreSearcher запрос к сервису векторного поиска.
// Одна и та же форма запроса обслуживает каталожные пространства и
// пространство исправлений (см. vectorsearch.Client).
type StoreSearcher interface {
	Query(ctx context.Context, namespace, text string, topK int, rerank bool, rerankTopN int) ([]SearchHit, error)
}

// LiveSearcher живой поиск по сайту поставщика.
// Возвращает артикулы в порядке следования в разметке страницы.
type LiveSearcher interface {
	SearchSKUs(ctx context.Context, pageURL string) ([]string, error)
}

// ToolCaller вызов LLM сервиса с принудительным структурированным ответом.
// Возвращает сырые аргументы единственного tool-вызова.
type ToolCaller interface {
	CallTool(ctx context.Context, systemPrompt, userPrompt, toolName string, schema map[string]any) (json.RawMessage, error)
}

// HistoryRecorder журнал выполненных подборов (см. database.HistoryStore)
type HistoryRecorder interface {
	RecordResolution(ctx context.Context, res ResolutionResult) error
}
