package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
	apperrors "github.com/rfq-hawkeye-materials/determine-part-numbers/server/errors"
)

// lookupRequest тело запроса пакетного подбора.
// vendor ограничивает подбор одним поставщиком; vendors принимает
// несколько ключей. Оба поля можно сочетать, пустые — все поставщики.
type lookupRequest struct {
	Descriptions []string `json:"descriptions"`
	Vendor       string   `json:"vendor"`
	Vendors      []string `json:"vendors"`
}

// vendorKeys собирает ключи поставщиков из обоих полей запроса
func (r lookupRequest) vendorKeys() []string {
	keys := append([]string(nil), r.Vendors...)
	if strings.TrimSpace(r.Vendor) != "" {
		keys = append(keys, r.Vendor)
	}
	return keys
}

// lookupResponse ответ пакетного подбора: результаты по каждому
// поставщику в порядке запроса
type lookupResponse struct {
	Vendors []resolution.VendorResults `json:"vendors"`
}

// respondError отдает AppError пользовательским сообщением; детали
// остаются в логах
func (s *Server) respondError(c *gin.Context, appErr *apperrors.AppError) {
	if appErr.Code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Request.URL.Path, "error", appErr.Error())
	}
	c.JSON(appErr.StatusCode(), gin.H{"error": appErr.UserMessage()})
}

// handleLookup выполняет пакетный подбор артикулов
// POST /api/parts/lookup
func (s *Server) handleLookup(c *gin.Context) {
	var req lookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperrors.NewValidationError("Invalid request body", err))
		return
	}

	descriptions, vendors, appErr := s.resolveLookupInput(req.Descriptions, req.vendorKeys())
	if appErr != nil {
		s.respondError(c, appErr)
		return
	}

	results := s.orch.ResolveBatch(c.Request.Context(), vendors, descriptions)
	c.JSON(http.StatusOK, lookupResponse{Vendors: results})
}

// resolveLookupInput валидирует описания и разворачивает ключи
// поставщиков в конфигурации. Пустой список поставщиков означает всех.
func (s *Server) resolveLookupInput(descriptions, vendorKeys []string) ([]string, []resolution.VendorConfig, *apperrors.AppError) {
	cleaned := make([]string, 0, len(descriptions))
	for _, d := range descriptions {
		if strings.TrimSpace(d) != "" {
			cleaned = append(cleaned, d)
		}
	}
	if len(cleaned) == 0 {
		// Текст ошибки стабилен, на него завязаны клиенты
		return nil, nil, apperrors.NewValidationError("No descriptions provided.", nil)
	}

	if len(vendorKeys) == 0 {
		return cleaned, s.orch.Vendors(), nil
	}

	vendors := make([]resolution.VendorConfig, 0, len(vendorKeys))
	for _, key := range vendorKeys {
		vendor, ok := s.orch.FindVendor(key)
		if !ok {
			return nil, nil, apperrors.NewValidationError(fmt.Sprintf("Unknown vendor: %s", key), nil)
		}
		vendors = append(vendors, vendor)
	}
	return cleaned, vendors, nil
}

// handleHistory возвращает последние подборы из журнала
// GET /api/parts/history?limit=50
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		s.respondError(c, apperrors.NewNotFoundError("History is not enabled", nil))
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit <= 0 {
			s.respondError(c, apperrors.NewValidationError("Invalid limit", err))
			return
		}
	}
	if limit > 500 {
		limit = 500
	}

	entries, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, apperrors.NewInternalError("failed to read resolution history", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
