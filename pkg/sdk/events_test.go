package sdk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": connected",
		"",
		"event: theme:changed",
		`data: {"topic":"theme:changed","payload":{"id":"dark"},"published_at":"2026-01-02T03:04:05Z"}`,
		"",
		": ping",
		"",
		"event: shared:changed",
		`data: {"payload":{"op":"clear"}}`,
		"",
	}, "\n")

	out := make(chan Event, 4)
	require.NoError(t, readEvents(context.Background(), strings.NewReader(stream), out))
	close(out)

	var got []Event
	for ev := range out {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, TopicThemeChanged, got[0].Topic)
	assert.JSONEq(t, `{"id":"dark"}`, string(got[0].Payload))
	assert.Equal(t, 2026, got[0].PublishedAt.Year())

	// The event name fills in a missing topic.
	assert.Equal(t, TopicSharedChanged, got[1].Topic)
}

func TestReadEventsMalformed(t *testing.T) {
	out := make(chan Event, 1)
	err := readEvents(context.Background(), strings.NewReader("event: x\ndata: {nope\n\n"), out)
	assert.Error(t, err)
}
