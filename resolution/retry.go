package resolution

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	// DefaultRetryAttempts количество попыток по умолчанию
	DefaultRetryAttempts = 5
	// DefaultRetryBaseDelay стартовая задержка перед повтором
	DefaultRetryBaseDelay = time.Second
	// DefaultRetryMultiplier множитель экспоненциальной задержки
	DefaultRetryMultiplier = 2.0
)

// RetryConfig политика повторов исходящих вызовов.
// Одно значение политики используется всеми компонентами конвейера
// (исправления, поиск кандидатов, живой поиск, LLM выбор) вместо
// разрозненных retry-циклов по месту вызова.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryConfig возвращает политику повторов по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultRetryAttempts,
		BaseDelay:   DefaultRetryBaseDelay,
		Multiplier:  DefaultRetryMultiplier,
	}
}

// RetryableFunc один исходящий вызов, пригодный для повтора
type RetryableFunc func(ctx context.Context) error

// Do выполняет fn с повторами по политике cfg.
// Повтор выполняется только при ErrRateLimited; любая другая ошибка
// поднимается немедленно. Исчерпание попыток дает RetryExhaustedError.
// Задержка между попытками блокирует только текущую единицу работы и
// прерывается отменой контекста.
func Do(ctx context.Context, cfg RetryConfig, operation string, fn RetryableFunc) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("Operation succeeded after retries",
					"operation", operation,
					"attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if !errors.Is(err, ErrRateLimited) {
			return err
		}

		if attempt < cfg.MaxAttempts {
			slog.Warn("Operation rate limited, retrying",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"delay", delay.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}
	}

	return &RetryExhaustedError{Operation: operation, Attempts: cfg.MaxAttempts, Err: lastErr}
}
