package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunc(t *testing.T) {
	var got map[string]any
	boom := errors.New("boom")
	var task Task = Func{Name: "feed:test", Fn: func(_ context.Context, params map[string]any) error {
		got = params
		return boom
	}}

	assert.Equal(t, "feed:test", task.Identifier())
	assert.ErrorIs(t, task.Run(context.Background(), map[string]any{"k": 1}), boom)
	assert.Equal(t, map[string]any{"k": 1}, got)

	assert.NoError(t, Func{Name: "noop"}.Run(context.Background(), nil))
}
