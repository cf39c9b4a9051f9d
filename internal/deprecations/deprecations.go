// Package deprecations delivers non-fatal deprecation signals raised while
// parsing test declarations. Sinks never fail and never block; emitting a
// signal must not affect the result of the operation that raised it.
package deprecations

import (
	"log/slog"
	"sync"
)

// Sink receives deprecation signals.
type Sink interface {
	Warn(event string, details map[string]any)
}

type discard struct{}

func (discard) Warn(string, map[string]any) {}

// Discard drops every signal.
var Discard Sink = discard{}

// SlogSink forwards signals to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink wraps logger as a Sink. A nil logger discards signals.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Warn(event string, details map[string]any) {
	attrs := make([]any, 0, 2+2*len(details))
	attrs = append(attrs, "event", event)
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	s.logger.Warn("deprecation", attrs...)
}

// Event is one recorded deprecation signal.
type Event struct {
	ID      string
	Details map[string]any
}

// Buffer records signals in memory. Used by tests to assert on emitted
// deprecations without capturing log output.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Warn(event string, details map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, Event{ID: event, Details: details})
}

// Events returns a copy of the recorded signals in emission order.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}
