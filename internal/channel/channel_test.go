package channel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx, "theme.selectedId")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "theme.selectedId", "dark"))
	v, ok, err := s.Get(ctx, "theme.selectedId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)

	require.NoError(t, s.Remove(ctx, "theme.selectedId"))
	require.NoError(t, s.Remove(ctx, "theme.selectedId"), "removing a missing key is not an error")
	_, ok, _ = s.Get(ctx, "theme.selectedId")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Set(ctx, "", "x"), ErrEmptyKey)
}

func TestParseTopic(t *testing.T) {
	topic, err := ParseTopic("theme:changed")
	require.NoError(t, err)
	assert.Equal(t, ThemeChanged, topic)

	_, err = ParseTopic("theme:deleted")
	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.Len(t, Topics(), 2)
}

func TestLocalBus_FanOut(t *testing.T) {
	bus := NewLocalBus(nil)

	var mu sync.Mutex
	var got []string
	for _, name := range []string{"host", "preferences"} {
		name := name
		unsub, err := bus.Subscribe(ThemeChanged, func(ev Event) {
			var payload map[string]string
			require.NoError(t, json.Unmarshal(ev.Payload, &payload))
			mu.Lock()
			got = append(got, name+":"+payload["id"])
			mu.Unlock()
		})
		require.NoError(t, err)
		defer unsub()
	}

	require.NoError(t, bus.Publish(context.Background(), ThemeChanged, map[string]string{"id": "dark"}))
	assert.ElementsMatch(t, []string{"host:dark", "preferences:dark"}, got)
}

func TestLocalBus_Unsubscribe(t *testing.T) {
	bus := NewLocalBus(nil)
	calls := 0
	unsub, err := bus.Subscribe(ThemeChanged, func(Event) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, bus.Subscribers(ThemeChanged))

	unsub()
	unsub()
	assert.Equal(t, 0, bus.Subscribers(ThemeChanged))

	require.NoError(t, bus.Publish(context.Background(), ThemeChanged, nil))
	assert.Equal(t, 0, calls)
}

func TestLocalBus_ClosedTopics(t *testing.T) {
	bus := NewLocalBus(nil)
	_, err := bus.Subscribe("user:changed", func(Event) {})
	assert.ErrorIs(t, err, ErrUnknownTopic)
	assert.ErrorIs(t, bus.Publish(context.Background(), "user:changed", nil), ErrUnknownTopic)
}

func TestLocalBus_PanickingHandlerDoesNotStopFanOut(t *testing.T) {
	bus := NewLocalBus(nil)
	delivered := false
	_, err := bus.Subscribe(ThemeChanged, func(Event) { panic("bad subscriber") })
	require.NoError(t, err)
	_, err = bus.Subscribe(ThemeChanged, func(Event) { delivered = true })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), ThemeChanged, "light"))
	assert.True(t, delivered)
}

func TestLocalBus_RawPayload(t *testing.T) {
	bus := NewLocalBus(nil)
	var got Event
	_, err := bus.Subscribe(SharedChanged, func(ev Event) { got = ev })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), SharedChanged, json.RawMessage(`{"op":"clear"}`)))
	assert.JSONEq(t, `{"op":"clear"}`, string(got.Payload))

	assert.Error(t, bus.Publish(context.Background(), SharedChanged, json.RawMessage(`{`)))
}

func TestSharedData(t *testing.T) {
	bus := NewLocalBus(nil)
	var changes []SharedChange
	_, err := bus.Subscribe(SharedChanged, func(ev Event) {
		var c SharedChange
		require.NoError(t, json.Unmarshal(ev.Payload, &c))
		changes = append(changes, c)
	})
	require.NoError(t, err)

	s := NewSharedData(bus)
	require.NoError(t, s.Set("cart", 3))
	require.NoError(t, s.Set("filter", "open"))
	assert.Equal(t, 2, s.Len())

	v, ok := s.Get("cart")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	snap := s.Snapshot()
	snap["cart"] = 99
	v, _ = s.Get("cart")
	assert.Equal(t, 3, v, "snapshot is a copy")

	s.Delete("cart")
	s.Delete("cart")
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Set("", 1), ErrEmptyKey)

	ops := make([]string, len(changes))
	for i, c := range changes {
		ops[i] = c.Op
	}
	assert.Equal(t, []string{OpSet, OpSet, OpDelete, OpClear}, ops)
}

func TestSharedData_WithoutBus(t *testing.T) {
	s := NewSharedData(nil)
	require.NoError(t, s.Set("k", "v"))
	assert.Nil(t, s.Bus())
	s.Clear()
	assert.Equal(t, 0, s.Len())
}
