package sessions

import (
	"bytes"
	"sync"
	"time"
)

// AudioBuffer accumulates raw audio between transcription passes. It asks to
// be flushed after flushEvery appended chunks or once flushInterval has passed
// since the last drain, whichever comes first.
type AudioBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	chunks    int
	lastDrain time.Time

	flushEvery    int
	flushInterval time.Duration
	now           func() time.Time
	onAppend      func()
}

// NewAudioBuffer builds a buffer. onAppend runs after every Append, outside
// the buffer lock; the session uses it as its liveness signal.
func NewAudioBuffer(flushEvery int, flushInterval time.Duration, onAppend func()) *AudioBuffer {
	return &AudioBuffer{
		flushEvery:    flushEvery,
		flushInterval: flushInterval,
		now:           time.Now,
		lastDrain:     time.Now(),
		onAppend:      onAppend,
	}
}

func (b *AudioBuffer) Append(p []byte) {
	b.mu.Lock()
	if len(p) > 0 {
		b.buf.Write(p)
		b.chunks++
	}
	b.mu.Unlock()

	if b.onAppend != nil {
		b.onAppend()
	}
}

func (b *AudioBuffer) ShouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chunks == 0 {
		return false
	}
	return b.chunks >= b.flushEvery || b.now().Sub(b.lastDrain) >= b.flushInterval
}

// Drain hands back everything buffered and leaves the buffer empty.
func (b *AudioBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastDrain = b.now()
	if b.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	b.buf.Reset()
	b.chunks = 0
	return out
}

// Len is the number of buffered bytes.
func (b *AudioBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Chunks is the number of appends since the last drain.
func (b *AudioBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunks
}
