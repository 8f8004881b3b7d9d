package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/rfq-hawkeye-materials/determine-part-numbers/database"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/internal/config"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/internal/infrastructure/ai"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/resolution"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/server"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/vectorsearch"
	"github.com/rfq-hawkeye-materials/determine-part-numbers/websearch"
)

func main() {
	log.Println("Запуск сервиса подбора артикулов...")

	// Загружаем конфигурацию
	log.Println("[1/5] Загрузка конфигурации...")
	cfg, err := config.Load()
	if err != nil {
		log.Printf("✗ Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("Не удалось загрузить конфигурацию из переменных окружения")
	}
	setupLogging(cfg.LogLevel)
	log.Printf("✓ Конфигурация загружена. Порт: %d", cfg.Server.Port)

	// Открываем базу истории подборов
	log.Println("[2/5] Инициализация базы истории подборов...")
	history, err := database.NewHistoryStore(cfg.History.DatabasePath)
	if err != nil {
		log.Printf("✗ Ошибка создания базы истории: %v", err)
		log.Fatalf("Не удалось инициализировать базу истории по пути: %s", cfg.History.DatabasePath)
	}
	defer history.Close()
	log.Printf("✓ База истории инициализирована: %s", cfg.History.DatabasePath)

	// Создаем клиентов внешних сервисов
	log.Println("[3/5] Создание клиентов внешних сервисов...")
	searchClient := vectorsearch.NewClient(vectorsearch.Config{
		BaseURL: cfg.VectorSearch.BaseURL,
		APIKey:  cfg.VectorSearch.APIKey,
		Timeout: cfg.VectorSearch.Timeout,
	})
	liveClient := websearch.NewClient(websearch.ClientConfig{
		Timeout:      cfg.WebSearch.Timeout,
		RateLimit:    rate.Limit(cfg.WebSearch.RateLimitPerSec),
		CacheTTL:     cfg.WebSearch.CacheTTL,
		CacheEnabled: cfg.WebSearch.CacheEnabled,
	})
	chatClient := ai.NewChatClient(ai.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	log.Printf("✓ Клиенты созданы. Vector search: %s, LLM модель: %s",
		cfg.VectorSearch.BaseURL, cfg.LLM.Model)

	// Собираем конвейер подбора
	log.Println("[4/5] Сборка конвейера подбора...")
	retry := resolution.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
	}
	thresholds := resolution.CorrectionThresholds{
		Exact:      cfg.Corrections.ExactThreshold,
		Group:      cfg.Corrections.GroupThreshold,
		Fuzzy:      cfg.Corrections.FuzzyThreshold,
		GroupBonus: cfg.Corrections.GroupBonus,
	}
	vendors := resolution.DefaultVendors()
	orch := resolution.NewOrchestrator(
		vendors,
		resolution.NewCorrectionResolver(searchClient, retry, cfg.Corrections.TopK, thresholds),
		resolution.NewCandidateRetriever(searchClient, retry,
			cfg.Candidates.TopK, cfg.Candidates.RerankEnabled, cfg.Candidates.RerankTopN),
		resolution.NewRealtimeReranker(liveClient, retry),
		resolution.NewSelectionEngine(chatClient, retry),
		history,
	)
	log.Printf("✓ Конвейер собран. Поставщиков: %d", len(vendors))

	// Запускаем HTTP сервер
	log.Println("[5/5] Запуск HTTP сервера...")
	srv := server.NewServer(server.Config{
		Port:              cfg.Server.Port,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
	}, orch, history)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("✗ Сервер завершился с ошибкой: %v", err)
		}
	case sig := <-quit:
		log.Printf("Получен сигнал %s, останавливаем сервер...", sig)
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Printf("✗ Ошибка остановки сервера: %v", err)
		}
		log.Println("✓ Сервер остановлен")
	}
}

// setupLogging настраивает уровень логирования slog
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
