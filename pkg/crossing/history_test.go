package crossing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory(t *testing.T) {
	t.Parallel()

	t.Run("unknown id is absent", func(t *testing.T) {
		t.Parallel()
		h := NewHistory()
		_, ok := h.Get(7)
		assert.False(t, ok)
	})

	t.Run("set overwrites", func(t *testing.T) {
		t.Parallel()
		h := NewHistory()
		h.Set(7, 200)
		h.Set(7, 250)

		pos, ok := h.Get(7)
		require.True(t, ok)
		assert.Equal(t, 250.0, pos)
		assert.Equal(t, 1, h.Len())
	})

	t.Run("evict disabled keeps everything", func(t *testing.T) {
		t.Parallel()
		h := NewHistory()
		h.Set(1, 10)
		for i := 0; i < 100; i++ {
			h.Tick()
		}
		assert.Equal(t, 0, h.Evict(0))
		assert.Equal(t, 1, h.Len())
	})

	t.Run("evict drops idle tracks only", func(t *testing.T) {
		t.Parallel()
		h := NewHistory()
		h.Set(1, 10)
		h.Set(2, 20)
		for i := 0; i < 3; i++ {
			h.Tick()
			h.Set(2, 20)
		}

		assert.Equal(t, 1, h.Evict(2))
		_, ok := h.Get(1)
		assert.False(t, ok)
		_, ok = h.Get(2)
		assert.True(t, ok)
	})
}
