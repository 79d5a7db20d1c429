package frames

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameAt(i int) Frame {
	return Frame{Data: []byte{byte(i)}, CapturedAt: time.Unix(int64(i), 0)}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	b := NewBuffer(3)

	for i := range 3 {
		_, evicted := b.Push(frameAt(i))
		assert.False(t, evicted)
	}

	evicted, ok := b.Push(frameAt(3))
	require.True(t, ok)
	assert.Equal(t, byte(0), evicted.Data[0])

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 3)
	for i, frame := range snapshot {
		assert.Equal(t, byte(i+1), frame.Data[0])
	}
}

func TestBufferRandomizedInsertionsMatchFIFO(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := range 50 {
		capacity := 1 + rng.Intn(5)
		b := NewBuffer(capacity)
		var model []Frame

		inserts := rng.Intn(20)
		for i := range inserts {
			frame := frameAt(round*100 + i)
			evicted, ok := b.Push(frame)
			model = append(model, frame)
			if len(model) > capacity {
				require.True(t, ok)
				assert.Equal(t, model[0].CapturedAt, evicted.CapturedAt)
				model = model[1:]
			} else {
				require.False(t, ok)
			}
			require.LessOrEqual(t, b.Len(), capacity)
		}

		snapshot := b.Snapshot()
		require.Len(t, snapshot, len(model))
		for i := range model {
			assert.Equal(t, model[i].CapturedAt, snapshot[i].CapturedAt)
		}
	}
}

func TestBufferLatestAndClear(t *testing.T) {
	b := NewBuffer(DefaultCapacity)
	_, ok := b.Latest()
	assert.False(t, ok)

	b.Push(frameAt(1))
	b.Push(frameAt(2))
	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, byte(2), latest.Data[0])

	latest.Data[0] = 99
	again, _ := b.Latest()
	assert.Equal(t, byte(2), again.Data[0], "latest must return a copy")

	b.Clear()
	assert.Zero(t, b.Len())
	assert.Equal(t, DefaultCapacity, b.Cap())
}
