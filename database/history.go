// Package database содержит SQLite хранилище истории подборов
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
)

// HistoryStore хранилище истории подборов артикулов
type HistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// HistoryEntry одна запись истории подбора
type HistoryEntry struct {
	ID          int64     `json:"id"`
	Vendor      string    `json:"vendor"`
	Description string    `json:"description"`
	PartNumber  string    `json:"partNumber"`
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"createdAt"`
}

const historySchema = `
CREATE TABLE IF NOT EXISTS resolution_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vendor TEXT NOT NULL,
	description TEXT NOT NULL,
	part_number TEXT NOT NULL,
	explanation TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_resolution_history_vendor ON resolution_history(vendor);
CREATE INDEX IF NOT EXISTS idx_resolution_history_created_at ON resolution_history(created_at);
`

// NewHistoryStore открывает базу по пути path и применяет схему.
// WAL режим позволяет читать историю, пока идут записи конвейера.
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &HistoryStore{
		db:     db,
		logger: slog.Default().With("component", "history_store"),
	}, nil
}

// RecordResolution сохраняет результат подбора
func (s *HistoryStore) RecordResolution(ctx context.Context, res resolution.ResolutionResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolution_history (vendor, description, part_number, explanation) VALUES (?, ?, ?, ?)`,
		res.Vendor, res.Description, res.PartNumber, res.Explanation)
	if err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}
	return nil
}

// Recent возвращает последние limit записей, новые первыми
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor, description, part_number, explanation, created_at
		 FROM resolution_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolution history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Vendor, &e.Description, &e.PartNumber, &e.Explanation, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return entries, nil
}

// Close закрывает базу
func (s *HistoryStore) Close() error {
	return s.db.Close()
}
