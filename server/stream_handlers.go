package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
	apperrors "github.com/rfq-hawkeye-materials/determine-part-numbers/server/errors"
)

// sseSink пишет события сессии в SSE поток. Flush после каждого кадра,
// чтобы клиент видел прогресс немедленно.
type sseSink struct {
	mu      sync.Mutex
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newSSESink(w http.ResponseWriter, f http.Flusher) *sseSink {
	return &sseSink{writer: w, flusher: f}
}

// Send сериализует событие в один SSE кадр
func (s *sseSink) Send(event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal stream event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.writer, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("failed to write stream event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// parseStreamParam разбирает значения query-параметра потокового запроса.
// Поддерживаются две формы: одно значение с URL-экранированным JSON
// массивом строк и повторение параметра по одному значению.
func parseStreamParam(values []string) ([]string, *apperrors.AppError) {
	if len(values) == 1 {
		if trimmed := strings.TrimSpace(values[0]); strings.HasPrefix(trimmed, "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
				return nil, apperrors.NewValidationError("Invalid JSON array parameter", err)
			}
			return decoded, nil
		}
	}
	return values, nil
}

// handleLookupStream отдает результаты подбора инкрементально через SSE:
// по одному кадру на описание, затем завершающий кадр. Разрыв соединения
// клиентом отменяет сессию на границе текущего описания.
// GET /api/parts/lookup/stream?descriptions=...&descriptions=...&vendors=...
func (s *Server) handleLookupStream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	rawDescriptions, appErr := parseStreamParam(c.QueryArray("descriptions"))
	if appErr != nil {
		s.respondError(c, appErr)
		return
	}
	vendorKeys, appErr := parseStreamParam(c.QueryArray("vendors"))
	if appErr != nil {
		s.respondError(c, appErr)
		return
	}
	if v := strings.TrimSpace(c.Query("vendor")); v != "" {
		vendorKeys = append(vendorKeys, v)
	}

	descriptions, vendors, appErr := s.resolveLookupInput(rawDescriptions, vendorKeys)
	if appErr != nil {
		s.respondError(c, appErr)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	session := resolution.NewStreamSession(s.orch, vendors, descriptions, s.config.HeartbeatInterval)
	if err := session.Run(c.Request.Context(), newSSESink(c.Writer, flusher)); err != nil {
		s.logger.Info("Stream session ended early",
			"state", session.State().String(),
			"error", err.Error())
	}
}
