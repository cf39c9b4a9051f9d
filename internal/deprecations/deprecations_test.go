package deprecations

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		Discard.Warn("some-event", map[string]any{"k": "v"})
		Discard.Warn("some-event", nil)
	})
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sink := NewSlogSink(logger)
	sink.Warn("missing-arguments-property-in-generic-test", map[string]any{"test_name": "unique"})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "event=missing-arguments-property-in-generic-test")
	assert.Contains(t, out, "test_name=unique")
}

func TestSlogSink_NilLogger(t *testing.T) {
	sink := NewSlogSink(nil)
	assert.NotPanics(t, func() {
		sink.Warn("event", map[string]any{"k": "v"})
	})
}

func TestBuffer(t *testing.T) {
	buf := &Buffer{}
	assert.Empty(t, buf.Events())

	buf.Warn("first", map[string]any{"a": 1})
	buf.Warn("second", nil)

	events := buf.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].ID)
	assert.Equal(t, 1, events[0].Details["a"])
	assert.Equal(t, "second", events[1].ID)

	events[0].ID = "mutated"
	assert.Equal(t, "first", buf.Events()[0].ID, "Events returns a copy")
}

func TestBuffer_Concurrent(t *testing.T) {
	buf := &Buffer{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				buf.Warn("event", nil)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, buf.Events(), 200)
}
