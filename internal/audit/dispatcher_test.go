package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("boom") }

func TestDispatcher_DeliversToChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(DispatcherConfig{BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{ID: "e1", Action: ActionLoginSuccess, Success: true})

	select {
	case got := <-sink.Events():
		assert.Equal(t, "e1", got.ID)
		assert.Equal(t, ActionLoginSuccess, got.Action)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDispatcher_CloseDrainsBuffer(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(DispatcherConfig{BufferSize: 16}, NewJSONWriterSink(&buf))

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{ID: "e", Action: ActionLogout})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, ActionLogout, decoded.Action)
	assert.Equal(t, uint64(5), d.Delivered())
}

func TestDispatcher_EmitAfterCloseIsIgnored(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, sink)
	d.Close()

	d.Emit(context.Background(), Event{ID: "late"})
	assert.Len(t, sink.Events(), 0)
}

func TestDispatcher_SurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{BufferSize: 2}, panicSink{})
	d.Emit(context.Background(), Event{ID: "a"})
	d.Emit(context.Background(), Event{ID: "b"})
	d.Close()

	assert.Equal(t, uint64(0), d.Delivered())
}

func TestDispatcher_NilIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	assert.Zero(t, d.Dropped())
	assert.Nil(t, NewDispatcher(DispatcherConfig{}, nil))
}

func TestAction_Valid(t *testing.T) {
	assert.True(t, ActionSuspiciousActivity.Valid())
	assert.False(t, Action("LOGIN_SUCCESS").Valid())
}
