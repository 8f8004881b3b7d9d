package resolution

import (
	"errors"
	"fmt"
)

// ErrRateLimited признак ответа 429 от внешнего сервиса.
// Единственный класс ошибок, при котором выполняется повтор (см. retry.go);
// клиенты оборачивают его через fmt.Errorf("...: %w", ErrRateLimited).
var ErrRateLimited = errors.New("rate limited by upstream service")

// RetryExhaustedError исчерпан бюджет повторов при постоянном rate-limiting
type RetryExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: retry budget exhausted after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// UpstreamError неуспешный ответ внешнего сервиса, не являющийся rate-limiting.
// Не повторяется, сразу поднимается вызывающему.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: upstream returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream returned status %d: %s", e.Service, e.StatusCode, e.Message)
}

// MalformedSelectionError LLM не вернул принудительный tool-вызов
// либо его аргументы не прошли разбор по схеме
type MalformedSelectionError struct {
	Reason string
	Err    error
}

func (e *MalformedSelectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed selection: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed selection: %s", e.Reason)
}

func (e *MalformedSelectionError) Unwrap() error {
	return e.Err
}

// ScrapeError сбой живого поиска по сайту поставщика.
// Нефатален: реранжирование деградирует до no-op, конвейер продолжается
// только по семантическим оценкам.
type ScrapeError struct {
	URL string
	Err error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("live search scrape failed for %s: %v", e.URL, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}
