package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioBuffer_FlushAfterChunkCount(t *testing.T) {
	appends := 0
	b := NewAudioBuffer(10, time.Hour, func() { appends++ })

	for i := 0; i < 9; i++ {
		b.Append([]byte{1, 2})
		assert.False(t, b.ShouldFlush(), "chunk %d should not flush", i+1)
	}
	b.Append([]byte{3})
	assert.True(t, b.ShouldFlush())
	assert.Equal(t, 10, appends)
	assert.Equal(t, 19, b.Len())

	out := b.Drain()
	assert.Len(t, out, 19)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Chunks())
	assert.False(t, b.ShouldFlush())
	assert.Nil(t, b.Drain(), "draining an empty buffer yields nothing")
}

func TestAudioBuffer_FlushAfterInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := NewAudioBuffer(10, 3*time.Second, nil)
	b.now = func() time.Time { return now }
	b.lastDrain = now

	assert.False(t, b.ShouldFlush(), "nothing buffered")
	b.Append([]byte{1})
	assert.False(t, b.ShouldFlush())

	now = now.Add(3 * time.Second)
	assert.True(t, b.ShouldFlush())

	b.Drain()
	now = now.Add(10 * time.Second)
	assert.False(t, b.ShouldFlush(), "elapsed time alone never flushes an empty buffer")
}

func TestAudioBuffer_EmptyAppendStillSignalsActivity(t *testing.T) {
	appends := 0
	b := NewAudioBuffer(1, time.Hour, func() { appends++ })
	b.Append(nil)

	assert.Equal(t, 1, appends)
	assert.Equal(t, 0, b.Chunks())
	assert.False(t, b.ShouldFlush())
}

func TestAudioBuffer_DrainCopies(t *testing.T) {
	b := NewAudioBuffer(10, time.Hour, nil)
	src := []byte{1, 2, 3}
	b.Append(src)
	src[0] = 9

	out := b.Drain()
	require.Len(t, out, 3)
	assert.Equal(t, byte(1), out[0])
}
