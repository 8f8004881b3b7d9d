package resolution

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultHeartbeatInterval интервал keep-alive кадров потока
const DefaultHeartbeatInterval = 30 * time.Second

// StreamState состояние потоковой сессии
type StreamState int32

const (
	StreamIdle StreamState = iota
	StreamStreaming
	StreamCancelled
	StreamCompleted
)

// String возвращает имя состояния для логов
func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "idle"
	case StreamStreaming:
		return "streaming"
	case StreamCancelled:
		return "cancelled"
	case StreamCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// EventSink приемник событий сессии (транспортный адаптер, например SSE)
type EventSink interface {
	Send(event any) error
}

// HeartbeatEvent пустой keep-alive кадр
type HeartbeatEvent struct{}

// ProgressEvent результаты одного описания по всем поставщикам и процент
// выполнения
type ProgressEvent struct {
	Description string             `json:"description"`
	Vendors     []ResolutionResult `json:"vendors"`
	Progress    int                `json:"progress"`
}

// CompleteEvent завершающий кадр со всеми результатами
type CompleteEvent struct {
	Complete bool            `json:"complete"`
	Results  []VendorResults `json:"results"`
}

// StreamSession кооперативная, конечная, неперезапускаемая последовательность
// событий подбора. Описания обрабатываются строго по одному для
// упорядоченной инкрементальной доставки. Отмена проверяется только на
// границе цикла описаний: текущий вызов внешнего сервиса всегда
// завершается, ничего не прерывается на середине.
type StreamSession struct {
	orch         *Orchestrator
	vendors      []VendorConfig
	descriptions []string
	heartbeat    time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	state StreamState
}

// NewStreamSession создает сессию для одного входящего запроса.
// Сессия одноразовая: после Cancelled или Completed она не перезапускается.
func NewStreamSession(orch *Orchestrator, vendors []VendorConfig, descriptions []string, heartbeat time.Duration) *StreamSession {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamSession{
		orch:         orch,
		vendors:      vendors,
		descriptions: descriptions,
		heartbeat:    heartbeat,
		logger:       slog.Default().With("component", "stream_session"),
		state:        StreamIdle,
	}
}

// State возвращает текущее состояние сессии
func (s *StreamSession) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StreamSession) setState(state StreamState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run прогоняет сессию до завершения или отмены.
// Heartbeat кадры идут через тот же сериализованный sink, что и события
// прогресса, и прекращаются вместе с сессией; после отмены не
// эмитируется ни одного кадра.
func (s *StreamSession) Run(ctx context.Context, sink EventSink) error {
	s.setState(StreamStreaming)

	var sinkMu sync.Mutex
	closed := false
	send := func(event any) error {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		if closed {
			return nil
		}
		return sink.Send(event)
	}
	finish := func() {
		sinkMu.Lock()
		closed = true
		sinkMu.Unlock()
	}
	defer finish()

	stopHeartbeat := make(chan struct{})
	defer close(stopHeartbeat)
	go func() {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-stopHeartbeat:
				return
			case <-ticker.C:
				if err := send(HeartbeatEvent{}); err != nil {
					return
				}
			}
		}
	}()

	aggregate := make([]VendorResults, len(s.vendors))
	for i, v := range s.vendors {
		aggregate[i] = VendorResults{
			Vendor:            v.Key,
			VendorDisplayName: v.DisplayName,
			PartNumbers:       make([]ResolutionResult, 0, len(s.descriptions)),
		}
	}

	total := len(s.descriptions)
	for i, raw := range s.descriptions {
		// Кооперативная отмена: только на границе цикла, находящийся в
		// полете вызов уже завершился
		select {
		case <-ctx.Done():
			finish()
			s.setState(StreamCancelled)
			s.logger.Info("Stream cancelled by client",
				"processed", i,
				"total", total)
			return ctx.Err()
		default:
		}

		vendorResults := make([]ResolutionResult, 0, len(s.vendors))
		for vi, vendor := range s.vendors {
			res := s.orch.ResolveOne(ctx, vendor, raw)
			vendorResults = append(vendorResults, res)
			aggregate[vi].PartNumbers = append(aggregate[vi].PartNumbers, res)
		}

		event := ProgressEvent{
			Description: raw,
			Vendors:     vendorResults,
			Progress:    (i + 1) * 100 / total,
		}
		if err := send(event); err != nil {
			finish()
			s.setState(StreamCancelled)
			s.logger.Warn("Stream sink failed, cancelling session",
				"error", err.Error())
			return err
		}
	}

	err := send(CompleteEvent{Complete: true, Results: aggregate})
	finish()
	s.setState(StreamCompleted)
	s.logger.Info("Stream completed", "descriptions", total)
	return err
}
