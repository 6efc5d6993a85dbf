package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Options struct {
	Policy   config.Policy
	Engine   SpeechToText
	Chunks   ChunkStore
	Activity ActivityRecorder
	Archive  AudioArchive
	Metrics  *metrics.Metrics

	// OnFailed runs in its own goroutine once the session gives up after
	// Policy.MaxTranscriptionFailures consecutive failed passes.
	OnFailed func(meetingID uuid.UUID, err error)

	// StartSequence is the last sequence number already persisted for the
	// meeting; the next chunk gets StartSequence+1.
	StartSequence int

	Now func() time.Time
}

// Status is a point-in-time view used by the realtime status action.
type Status struct {
	MeetingID           uuid.UUID
	State               State
	IsRecording         bool
	SequenceNumber      int
	BufferSize          int
	Subscribers         int
	ConsecutiveFailures int
}

// Session transcribes one meeting. It owns its buffer, sequence counter and
// subscriber set; nothing outside touches them except through its methods.
type Session struct {
	meetingID uuid.UUID
	opts      Options
	buffer    *AudioBuffer

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	quit   chan struct{}
	done   chan struct{}

	finished   chan struct{}
	finishOnce sync.Once

	// passMu serializes transcription passes, timer and event driven alike,
	// which keeps sequence numbers gap free.
	passMu   sync.Mutex
	seq      atomic.Int64
	failures atomic.Int32

	flushCh   chan struct{}
	lastTouch atomic.Int64

	subsMu     sync.Mutex
	subs       map[Subscriber]struct{}
	subsClosed bool
}

func NewSession(meetingID uuid.UUID, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		meetingID: meetingID,
		opts:      opts,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		flushCh:   make(chan struct{}, 1),
		subs:      make(map[Subscriber]struct{}),
	}
	s.seq.Store(int64(opts.StartSequence))
	s.buffer = NewAudioBuffer(opts.Policy.FlushChunkCount, opts.Policy.FlushInterval, s.Touch)
	s.buffer.now = opts.Now
	s.buffer.lastDrain = opts.Now()
	return s
}

func (s *Session) MeetingID() uuid.UUID {
	return s.meetingID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the flush loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Finished is closed once the session reached a terminal state and its
// final flush, if any, is persisted.
func (s *Session) Finished() <-chan struct{} {
	return s.finished
}

func (s *Session) finish() {
	s.finishOnce.Do(func() { close(s.finished) })
}

// Start launches the periodic flush loop.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCreated {
		return fmt.Errorf("start session %s in state %s: %w", s.meetingID, s.state, ErrSessionStopped)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateRunning
	go s.loop(ctx)

	logging.AppLogger.Info("Transcription session started", zap.String("meeting_id", s.meetingID.String()))
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.Policy.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.buffer.Len() == 0 {
				continue
			}
		case <-s.flushCh:
		}
		if !s.runPass(ctx) {
			return
		}
	}
}

// runPass reports whether the loop should keep going.
func (s *Session) runPass(ctx context.Context) bool {
	err := s.transcribePass(ctx)
	if err == nil {
		s.failures.Store(0)
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	attempt := int(s.failures.Add(1))
	terr := &TranscriptionError{MeetingID: s.meetingID, Attempt: attempt, Err: err}
	logging.ErrorLogger.Error("Transcription pass failed",
		zap.String("meeting_id", s.meetingID.String()),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", s.opts.Policy.MaxTranscriptionFailures),
		zap.Error(err),
	)
	if attempt >= s.opts.Policy.MaxTranscriptionFailures {
		s.fail(terr)
		return false
	}
	return true
}

// ProcessAudioChunk buffers audio and, once the flush policy says so, wakes
// the flush loop. It never transcribes on the caller's goroutine.
func (s *Session) ProcessAudioChunk(p []byte) error {
	if st := s.State(); st == StateStopped || st == StateFailed {
		return ErrSessionStopped
	}
	s.buffer.Append(p)
	s.opts.Metrics.AudioBytesTotal.Add(float64(len(p)))
	if s.buffer.ShouldFlush() {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Touch refreshes the meeting's last_activity, at most once per
// Policy.ActivityThrottle. The write runs on its own goroutine so a slow
// database never stalls audio ingestion; the throttle bounds how many
// writes can be in flight.
func (s *Session) Touch() {
	if s.opts.Activity == nil {
		return
	}
	now := s.opts.Now()
	last := s.lastTouch.Load()
	if last != 0 && now.Sub(time.Unix(0, last)) < s.opts.Policy.ActivityThrottle {
		return
	}
	if !s.lastTouch.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	go s.recordActivity(now.UTC())
}

func (s *Session) recordActivity(at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.opts.Activity.Touch(ctx, s.meetingID, at); err != nil {
		logging.ErrorLogger.Warn("Failed to record activity",
			zap.String("meeting_id", s.meetingID.String()), zap.Error(err))
	}
}

func (s *Session) transcribePass(ctx context.Context) error {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	audio := s.buffer.Drain()
	if len(audio) == 0 {
		return nil
	}
	defer logging.LogDuration(ctx, "transcription_pass",
		zap.String("meeting_id", s.meetingID.String()), zap.Int("audio_bytes", len(audio)))()

	at := s.opts.Now().UTC()
	if s.opts.Archive != nil {
		if err := s.opts.Archive.ArchiveSegment(ctx, s.meetingID, at, audio); err != nil {
			logging.ErrorLogger.Warn("Audio archive failed",
				zap.String("meeting_id", s.meetingID.String()), zap.Error(err))
		}
	}

	text, err := s.opts.Engine.Transcribe(ctx, audio)
	if err != nil {
		s.opts.Metrics.TranscriptionPasses.WithLabelValues("error").Inc()
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.opts.Metrics.TranscriptionPasses.WithLabelValues("empty").Inc()
		return nil
	}

	chunk := &models.TranscriptChunk{
		MeetingID:      s.meetingID,
		SequenceNumber: int(s.seq.Load()) + 1,
		Timestamp:      at,
		Text:           text,
		IsFinal:        true,
	}
	if err := s.opts.Chunks.SaveChunk(ctx, chunk); err != nil {
		s.opts.Metrics.TranscriptionPasses.WithLabelValues("error").Inc()
		return fmt.Errorf("persist chunk %d: %w", chunk.SequenceNumber, err)
	}
	s.seq.Store(int64(chunk.SequenceNumber))
	s.opts.Metrics.TranscriptionPasses.WithLabelValues("ok").Inc()
	s.opts.Metrics.ChunksPersisted.Inc()

	logging.AppLogger.Info("Transcribed chunk",
		zap.String("meeting_id", s.meetingID.String()),
		zap.Int("sequence_number", chunk.SequenceNumber),
		zap.Int("text_len", len(text)),
	)
	s.broadcast(transcriptEvent(chunk))
	return nil
}

// Stop ends the session: the flush loop exits, leftover audio gets one final
// pass and every subscriber is closed. Only the first call does the work; it
// returns true, later and concurrent calls return false.
func (s *Session) Stop(ctx context.Context) bool {
	s.mu.Lock()
	if s.state == StateStopped || s.state == StateFailed {
		s.mu.Unlock()
		return false
	}
	wasRunning := s.state == StateRunning
	s.state = StateStopped
	cancel := s.cancel
	s.mu.Unlock()

	if wasRunning {
		close(s.quit)
		select {
		case <-s.done:
		case <-ctx.Done():
			// the in-flight pass is abandoned
			cancel()
			<-s.done
		}
		defer cancel()
	} else {
		close(s.done)
	}

	if err := s.transcribePass(ctx); err != nil {
		logging.ErrorLogger.Error("Final flush failed",
			zap.String("meeting_id", s.meetingID.String()), zap.Error(err))
	}
	s.closeSubscribers("stopped")
	s.finish()

	logging.AppLogger.Info("Transcription session stopped",
		zap.String("meeting_id", s.meetingID.String()),
		zap.Int("sequence_number", int(s.seq.Load())),
	)
	return true
}

// fail runs on the loop goroutine once the failure budget is exhausted.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	cancel := s.cancel
	s.mu.Unlock()
	cancel()

	s.buffer.Drain()
	s.closeSubscribers("failed")
	s.finish()
	s.opts.Metrics.SessionsFailed.Inc()

	logging.ErrorLogger.Error("Transcription session failed",
		zap.String("meeting_id", s.meetingID.String()), zap.Error(err))
	if s.opts.OnFailed != nil {
		go s.opts.OnFailed(s.meetingID, err)
	}
}

// Subscribe adds sub to the broadcast set.
func (s *Session) Subscribe(sub Subscriber) error {
	s.subsMu.Lock()
	if s.subsClosed {
		s.subsMu.Unlock()
		return ErrSessionStopped
	}
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	s.opts.Metrics.Subscribers.Inc()
	return nil
}

// Unsubscribe removes sub. It does not stop the session.
func (s *Session) Unsubscribe(sub Subscriber) {
	s.subsMu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.subsMu.Unlock()
	if ok {
		s.opts.Metrics.Subscribers.Dec()
	}
}

func (s *Session) broadcast(ev Event) {
	s.subsMu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subsMu.Unlock()

	var dead []Subscriber
	for _, sub := range subs {
		if !sub.Deliver(ev) {
			dead = append(dead, sub)
		}
	}
	for _, sub := range dead {
		s.Unsubscribe(sub)
		sub.Close()
		logging.ErrorLogger.Warn("Dropped subscriber",
			zap.String("meeting_id", s.meetingID.String()))
	}
}

func (s *Session) closeSubscribers(reason string) {
	s.subsMu.Lock()
	subs := s.subs
	s.subs = make(map[Subscriber]struct{})
	s.subsClosed = true
	s.subsMu.Unlock()

	ev := Event{Type: EventSessionEnded, MeetingID: s.meetingID, Reason: reason}
	for sub := range subs {
		sub.Deliver(ev)
		sub.Close()
		s.opts.Metrics.Subscribers.Dec()
	}
}

func (s *Session) Status() Status {
	st := s.State()
	s.subsMu.Lock()
	n := len(s.subs)
	s.subsMu.Unlock()
	return Status{
		MeetingID:           s.meetingID,
		State:               st,
		IsRecording:         st == StateRunning,
		SequenceNumber:      int(s.seq.Load()),
		BufferSize:          s.buffer.Len(),
		Subscribers:         n,
		ConsecutiveFailures: int(s.failures.Load()),
	}
}
