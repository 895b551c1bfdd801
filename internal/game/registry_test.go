package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Halfgear/CS4530-final-project/internal/game"
	"github.com/Halfgear/CS4530-final-project/internal/game/nim"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := game.NewRegistry()
	require.NoError(t, r.Register(nim.New(nil)))

	got, ok := r.Get("nim")
	require.True(t, ok)
	assert.Equal(t, "nim", got.Key())
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []string{"nim"}, r.Keys())
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := game.NewRegistry()

	_, ok := r.Get("chess")
	assert.False(t, ok)
}

func TestRegistry_RejectsNil(t *testing.T) {
	r := game.NewRegistry()
	assert.Error(t, r.Register(nil))
}
