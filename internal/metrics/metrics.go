// Package metrics emits one flat diagnostic record per extraction attempt.
package metrics

import (
	"sync"
	"time"

	"tldr-buffer/internal/model"

	"go.uber.org/zap"
)

// Event describes a single strategy attempt.
type Event struct {
	At         time.Time    `json:"at"`
	URL        string       `json:"url"`
	Method     model.Method `json:"method"`
	Strategy   string       `json:"strategy"`
	Attempt    int          `json:"attempt"`
	Success    bool         `json:"success"`
	DurationMs int64        `json:"duration_ms"`
	Chars      int          `json:"chars,omitempty"`
	Error      string       `json:"error,omitempty"`
}

type Recorder interface {
	Record(Event)
}

type Nop struct{}

func (Nop) Record(Event) {}

// ZapRecorder writes events as structured log lines.
type ZapRecorder struct {
	logger *zap.Logger
}

func NewZapRecorder(logger *zap.Logger) *ZapRecorder {
	return &ZapRecorder{logger: logger.Named("metrics")}
}

func (z *ZapRecorder) Record(e Event) {
	z.logger.Info("extraction attempt",
		zap.String("url", e.URL),
		zap.String("method", string(e.Method)),
		zap.String("strategy", e.Strategy),
		zap.Int("attempt", e.Attempt),
		zap.Bool("success", e.Success),
		zap.Int64("duration_ms", e.DurationMs),
		zap.Int("chars", e.Chars),
		zap.String("error", e.Error),
	)
}

// Memory keeps events in memory. With Limit > 0 only the newest Limit
// events are kept.
type Memory struct {
	Limit int

	mu     sync.Mutex
	events []Event
}

func NewMemory(limit int) *Memory {
	return &Memory{Limit: limit}
}

func (m *Memory) Record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if m.Limit > 0 && len(m.events) > m.Limit {
		m.events = append(m.events[:0], m.events[len(m.events)-m.Limit:]...)
	}
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Multi fans an event out to several recorders.
type Multi []Recorder

func (m Multi) Record(e Event) {
	for _, r := range m {
		r.Record(e)
	}
}
