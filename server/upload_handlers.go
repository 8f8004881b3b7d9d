package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// maxUploadSize предел размера RFQ файла
const maxUploadSize = 10 << 20 // 10 MB

// handleLookupUpload принимает xlsx файл RFQ и выполняет пакетный подбор
// по описаниям из первой колонки первого листа.
// POST /api/parts/lookup/upload (multipart, поле file)
func (s *Server) handleLookupUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	descriptions, err := readDescriptionsFromWorkbook(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vendorKeys := c.PostFormArray("vendors")
	if v := strings.TrimSpace(c.PostForm("vendor")); v != "" {
		vendorKeys = append(vendorKeys, v)
	}

	descriptions, vendors, appErr := s.resolveLookupInput(descriptions, vendorKeys)
	if appErr != nil {
		s.respondError(c, appErr)
		return
	}

	s.logger.Info("RFQ file accepted",
		"filename", fileHeader.Filename,
		"descriptions", len(descriptions))

	results := s.orch.ResolveBatch(c.Request.Context(), vendors, descriptions)
	c.JSON(http.StatusOK, lookupResponse{Vendors: results})
}

// readDescriptionsFromWorkbook читает описания из первой колонки первого
// листа. Строка заголовка с текстом "description" пропускается.
func readDescriptionsFromWorkbook(r io.Reader) ([]string, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook contains no sheets")
	}

	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	descriptions := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell := strings.TrimSpace(row[0])
		if cell == "" {
			continue
		}
		if i == 0 && strings.EqualFold(cell, "description") {
			continue
		}
		descriptions = append(descriptions, cell)
	}
	return descriptions, nil
}
