package errmsg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type named string

func (n named) String() string { return string(n) }

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{name: "nil", input: nil, want: Unknown},
		{name: "error", input: errors.New("boom"), want: "boom"},
		{name: "wrapped error", input: fmt.Errorf("load: %w", errors.New("boom")), want: "load: boom"},
		{name: "string", input: "plain", want: "plain"},
		{name: "empty string", input: "", want: Unknown},
		{name: "stringer", input: named("stringer"), want: "stringer"},
		{name: "object with message", input: map[string]any{"message": "from object"}, want: "from object"},
		{name: "object with error", input: map[string]any{"error": "nested"}, want: "nested"},
		{name: "object without message", input: map[string]any{"code": 7}, want: Unknown},
		{name: "string map", input: map[string]string{"msg": "short"}, want: "short"},
		{name: "number", input: 42, want: "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.input))
		})
	}
}

func TestWrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	assert.Nil(t, Wrap(nil))
	assert.True(t, errors.Is(Wrap(sentinel), sentinel))
	assert.EqualError(t, Wrap(map[string]any{"message": "bad"}), "bad")
}
