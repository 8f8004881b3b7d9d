package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// selectionToolName имя принудительно вызываемой функции LLM
const selectionToolName = "selectPartNumber"

// selectionSchema схема аргументов принудительного tool-вызова.
// Оба поля обязательны.
var selectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"vendorPartNumber": map[string]any{
			"type":        "string",
			"description": "The single best catalog part number for the item description",
		},
		"explanation": map[string]any{
			"type":        "string",
			"description": "Short justification for why this part number was selected",
		},
	},
	"required": []string{"vendorPartNumber", "explanation"},
}

const selectionSystemPrompt = "You are a sourcing assistant for an electrical materials distributor. " +
	"You select the single best vendor catalog part number for a free-text RFQ item description. " +
	"Respond only by calling the selectPartNumber function. No additional text."

// Selection структурированный ответ движка выбора
type Selection struct {
	VendorPartNumber string `json:"vendorPartNumber"`
	Explanation      string `json:"explanation"`
}

// SelectionEngine окончательный выбор артикула через LLM со
// структурированным выводом
type SelectionEngine struct {
	llm    ToolCaller
	retry  RetryConfig
	logger *slog.Logger
}

// NewSelectionEngine создает движок выбора
func NewSelectionEngine(llm ToolCaller, retry RetryConfig) *SelectionEngine {
	return &SelectionEngine{
		llm:    llm,
		retry:  retry,
		logger: slog.Default().With("component", "selection_engine"),
	}
}

// Select выбирает лучший артикул из ранжированных кандидатов.
// Пустой список кандидатов обрабатывается без обращения к LLM: возвращается
// сентинел NoPartNumber с пояснением. Ответ без принудительного tool-вызова
// или с аргументами, не проходящими схему, дает MalformedSelectionError.
func (se *SelectionEngine) Select(ctx context.Context, vendor VendorConfig, desc Description, candidates []Candidate, realtimeAvailable bool) (*Selection, error) {
	if len(candidates) == 0 {
		se.logger.Info("No candidates to select from",
			"vendor", vendor.Key,
			"description", desc.Raw)
		return &Selection{
			VendorPartNumber: NoPartNumber,
			Explanation:      fmt.Sprintf("No catalog candidates were found in the %s index for this description.", vendor.DisplayName),
		}, nil
	}

	prompt := buildSelectionPrompt(vendor, desc, candidates, realtimeAvailable)

	var raw json.RawMessage
	err := Do(ctx, se.retry, "llm-selection", func(ctx context.Context) error {
		args, err := se.llm.CallTool(ctx, selectionSystemPrompt, prompt, selectionToolName, selectionSchema)
		if err != nil {
			return err
		}
		raw = args
		return nil
	})
	if err != nil {
		return nil, err
	}

	var sel Selection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, &MalformedSelectionError{Reason: "tool arguments failed to parse", Err: err}
	}
	if sel.VendorPartNumber == "" {
		return nil, &MalformedSelectionError{Reason: "tool arguments missing vendorPartNumber"}
	}
	if sel.Explanation == "" {
		return nil, &MalformedSelectionError{Reason: "tool arguments missing explanation"}
	}

	se.logger.Info("Selection completed",
		"vendor", vendor.Key,
		"part_number", sel.VendorPartNumber)
	return &sel, nil
}

// buildSelectionPrompt детерминированный текст промпта: рамка предметной
// области, описание, ключевые термины, перечисленные кандидаты и
// пронумерованные шаги оценки. Одинаковый вход всегда дает одинаковый
// промпт.
func buildSelectionPrompt(vendor VendorConfig, desc Description, candidates []Candidate, realtimeAvailable bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Select the best %s catalog part number for this RFQ item.\n\n", vendor.DisplayName)
	fmt.Fprintf(&b, "Item description: %q\n", desc.Raw)
	if keywords := Keywords(desc.Normalized); len(keywords) > 0 {
		fmt.Fprintf(&b, "Key terms: %s\n", strings.Join(keywords, ", "))
	}

	b.WriteString("\nCandidates (ranked):\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. part=%s score=%.4f", i+1, c.PartNumber, c.SemanticScore)
		if c.RealtimeRank != UnrankedRealtime {
			fmt.Fprintf(&b, " realtime_rank=%d", c.RealtimeRank)
		}
		fmt.Fprintf(&b, " description=%s\n", c.Description)
	}

	b.WriteString("\nEvaluation steps:\n")
	b.WriteString("1. Infer the product category from the item description.\n")
	b.WriteString("2. Discard candidates whose category is inconsistent with the description.\n")
	fmt.Fprintf(&b, "3. %s\n", realtimeEmphasis(vendor.RealtimeWeight, realtimeAvailable))
	b.WriteString("4. Weigh the semantic similarity scores among the remaining candidates.\n")
	b.WriteString("\nCall selectPartNumber exactly once with the chosen part number and a short explanation.\n")

	return b.String()
}

// realtimeEmphasis формулировка шага о живой выдаче в зависимости от
// настроенного веса поставщика; при недоступности живых данных вес
// сообщается только для калибровки акцента, конвейер не блокируется
func realtimeEmphasis(weight float64, available bool) string {
	if weight <= 0 {
		return "Live vendor search ranking is not used for this vendor; skip this step."
	}
	if !available {
		return fmt.Sprintf("Live vendor search results were unavailable for this query (configured weight %.1f); rely on semantic similarity instead.", weight)
	}
	switch {
	case weight >= 0.7:
		return fmt.Sprintf("Give the realtime_rank values heavy weight (configured weight %.1f): prefer candidates the vendor's own search ranked highly.", weight)
	case weight >= 0.4:
		return fmt.Sprintf("Give the realtime_rank values moderate weight (configured weight %.1f) alongside semantic similarity.", weight)
	default:
		return fmt.Sprintf("Give the realtime_rank values light weight (configured weight %.1f); semantic similarity dominates.", weight)
	}
}
