// Package config загружает конфигурацию сервиса из переменных окружения
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config конфигурация приложения
type Config struct {
	Server       ServerConfig
	VectorSearch VectorSearchConfig
	LLM          LLMConfig
	Retry        RetryConfig
	Candidates   CandidateConfig
	Corrections  CorrectionConfig
	Stream       StreamConfig
	WebSearch    WebSearchConfig
	History      HistoryConfig
	LogLevel     string
}

// ServerConfig настройки HTTP сервера
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// VectorSearchConfig настройки сервиса векторного поиска
type VectorSearchConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LLMConfig настройки LLM сервиса
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// RetryConfig политика повторов для лимитируемых сервисов
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// CandidateConfig параметры выборки кандидатов
type CandidateConfig struct {
	TopK          int
	RerankEnabled bool
	RerankTopN    int
}

// CorrectionConfig параметры подбора по исправлениям
type CorrectionConfig struct {
	TopK           int
	ExactThreshold float64
	GroupThreshold float64
	FuzzyThreshold float64
	GroupBonus     float64
}

// StreamConfig настройки потоковых сессий
type StreamConfig struct {
	HeartbeatInterval time.Duration
}

// WebSearchConfig настройки живого поиска
type WebSearchConfig struct {
	Timeout         time.Duration
	RateLimitPerSec float64
	CacheTTL        time.Duration
	CacheEnabled    bool
}

// HistoryConfig настройки хранилища истории подборов
type HistoryConfig struct {
	DatabasePath string
}

// Load читает конфигурацию из окружения, подставляя значения по умолчанию
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		VectorSearch: VectorSearchConfig{
			BaseURL: getEnv("VECTOR_SEARCH_BASE_URL", ""),
			APIKey:  getEnv("VECTOR_SEARCH_API_KEY", ""),
			Timeout: getEnvDuration("VECTOR_SEARCH_TIMEOUT", 15*time.Second),
		},
		LLM: LLMConfig{
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
			Timeout: getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 5),
			BaseDelay:   getEnvDuration("RETRY_BASE_DELAY", time.Second),
			Multiplier:  getEnvFloat("RETRY_MULTIPLIER", 2.0),
		},
		Candidates: CandidateConfig{
			TopK:          getEnvInt("CANDIDATE_TOP_K", 100),
			RerankEnabled: getEnvBool("CANDIDATE_RERANK_ENABLED", true),
			RerankTopN:    getEnvInt("CANDIDATE_RERANK_TOP_N", 25),
		},
		Corrections: CorrectionConfig{
			TopK:           getEnvInt("CORRECTION_TOP_K", 10),
			ExactThreshold: getEnvFloat("CORRECTION_EXACT_THRESHOLD", 0.89),
			GroupThreshold: getEnvFloat("CORRECTION_GROUP_THRESHOLD", 0.925),
			FuzzyThreshold: getEnvFloat("CORRECTION_FUZZY_THRESHOLD", 0.93),
			GroupBonus:     getEnvFloat("CORRECTION_GROUP_BONUS", 0.01),
		},
		Stream: StreamConfig{
			HeartbeatInterval: getEnvDuration("STREAM_HEARTBEAT_INTERVAL", 30*time.Second),
		},
		WebSearch: WebSearchConfig{
			Timeout:         getEnvDuration("WEB_SEARCH_TIMEOUT", 5*time.Second),
			RateLimitPerSec: getEnvFloat("WEB_SEARCH_RATE_LIMIT_PER_SEC", 1),
			CacheTTL:        getEnvDuration("WEB_SEARCH_CACHE_TTL", 24*time.Hour),
			CacheEnabled:    getEnvBool("WEB_SEARCH_CACHE_ENABLED", true),
		},
		History: HistoryConfig{
			DatabasePath: getEnv("HISTORY_DATABASE_PATH", "history.db"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.VectorSearch.BaseURL == "" {
		return fmt.Errorf("VECTOR_SEARCH_BASE_URL is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1, got %g", c.Retry.Multiplier)
	}
	if c.Candidates.TopK < 1 {
		return fmt.Errorf("CANDIDATE_TOP_K must be positive, got %d", c.Candidates.TopK)
	}
	if c.Candidates.RerankTopN > c.Candidates.TopK {
		return fmt.Errorf("CANDIDATE_RERANK_TOP_N (%d) cannot exceed CANDIDATE_TOP_K (%d)",
			c.Candidates.RerankTopN, c.Candidates.TopK)
	}
	for name, v := range map[string]float64{
		"CORRECTION_EXACT_THRESHOLD": c.Corrections.ExactThreshold,
		"CORRECTION_GROUP_THRESHOLD": c.Corrections.GroupThreshold,
		"CORRECTION_FUZZY_THRESHOLD": c.Corrections.FuzzyThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", name, v)
		}
	}
	// Групповой ярус строже точного; инверсия порогов ломает приоритет ярусов
	if c.Corrections.GroupThreshold <= c.Corrections.ExactThreshold {
		return fmt.Errorf("CORRECTION_GROUP_THRESHOLD (%g) must be greater than CORRECTION_EXACT_THRESHOLD (%g)",
			c.Corrections.GroupThreshold, c.Corrections.ExactThreshold)
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("STREAM_HEARTBEAT_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %t", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid value for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
