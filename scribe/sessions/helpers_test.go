package sessions

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, audio []byte) (string, error)
}

func (e *fakeEngine) Transcribe(ctx context.Context, audio []byte) (string, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	return e.fn(call, audio)
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type memChunks struct {
	mu     sync.Mutex
	chunks []models.TranscriptChunk
	fail   atomic.Bool
}

func (m *memChunks) SaveChunk(ctx context.Context, c *models.TranscriptChunk) error {
	if m.fail.Load() {
		return errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, *c)
	return nil
}

func (m *memChunks) All() []models.TranscriptChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TranscriptChunk(nil), m.chunks...)
}

type countingActivity struct {
	n atomic.Int32
}

func (a *countingActivity) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	a.n.Add(1)
	return nil
}

type blockingActivity struct {
	release chan struct{}
	started atomic.Int32
}

func (a *blockingActivity) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	a.started.Add(1)
	select {
	case <-a.release:
	case <-ctx.Done():
	}
	return nil
}

type recordingSub struct {
	mu     sync.Mutex
	events []Event
	reject atomic.Bool
	closed atomic.Bool
}

func (r *recordingSub) Deliver(ev Event) bool {
	if r.reject.Load() || r.closed.Load() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingSub) Close() { r.closed.Store(true) }

func (r *recordingSub) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recordingSub) ofType(typ string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func testPolicy() config.Policy {
	p := config.DefaultPolicy()
	// only event-driven flushes unless a test says otherwise
	p.FlushInterval = time.Hour
	return p
}

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestSession(t *testing.T, engine SpeechToText, chunks ChunkStore, mutate func(*Options)) *Session {
	t.Helper()
	logging.InitNop()
	opts := Options{
		Policy:  testPolicy(),
		Engine:  engine,
		Chunks:  chunks,
		Metrics: testMetrics(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewSession(uuid.New(), opts)
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func sendChunks(t *testing.T, s *Session, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.ProcessAudioChunk([]byte{byte(i), 0x01}); err != nil {
			t.Fatalf("ProcessAudioChunk: %v", err)
		}
	}
}
