package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMemory_KeepsNewest(t *testing.T) {
	m := NewMemory(2)
	for i := 1; i <= 3; i++ {
		m.Record(Event{Attempt: i})
	}

	events := m.Events()
	assert.Len(t, events, 2)
	assert.Equal(t, 2, events[0].Attempt)
	assert.Equal(t, 3, events[1].Attempt)

	events[0].Attempt = 99
	assert.Equal(t, 2, m.Events()[0].Attempt)
}

func TestMemory_Unbounded(t *testing.T) {
	m := &Memory{}
	for i := 0; i < 50; i++ {
		m.Record(Event{})
	}
	assert.Len(t, m.Events(), 50)
}

func TestMulti(t *testing.T) {
	a, b := &Memory{}, &Memory{}
	Multi{a, Nop{}, b}.Record(Event{Strategy: "readability"})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestZapRecorder(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewZapRecorder(zap.New(core))

	rec.Record(Event{URL: "https://example.com", Strategy: "heuristic", Attempt: 2, Error: "too short"})

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "metrics", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, "heuristic", fields["strategy"])
	assert.Equal(t, int64(2), fields["attempt"])
	assert.Equal(t, "too short", fields["error"])
}
