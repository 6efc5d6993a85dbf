package meetings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/sessions"
	"scribe/scribe/services/summary"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/sources/psql/testdb"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond

	fourSections = "## Key Points\n- greeting exchanged\n\n## Decisions\n- keep it short\n\n## Action Items\n- ada sends notes\n- bob books room\n\n## Follow-ups\n- revisit next week"
)

type engineFunc func(ctx context.Context, audio []byte) (string, error)

func (f engineFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}

type countingCompleter struct {
	calls atomic.Int32
	fn    func(ctx context.Context, prompt string) (string, error)
}

func (c *countingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	return c.fn(ctx, prompt)
}

type memArchive struct {
	mu       sync.Mutex
	segments map[uuid.UUID]int
	purged   []uuid.UUID
}

func (a *memArchive) ArchiveSegment(ctx context.Context, id uuid.UUID, at time.Time, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.segments == nil {
		a.segments = map[uuid.UUID]int{}
	}
	a.segments[id]++
	return nil
}

func (a *memArchive) PurgeMeeting(ctx context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purged = append(a.purged, id)
	delete(a.segments, id)
	return nil
}

type env struct {
	db          *gorm.DB
	user        *models.User
	meetings    *dao.MeetingDAO
	transcripts *dao.TranscriptDAO
	summaries   *dao.MeetingSummaryDAO
	registry    *sessions.Registry
	completer   *countingCompleter
	archive     *memArchive
	metrics     *metrics.Metrics
	policy      config.Policy
	lifecycle   *Lifecycle
}

func newEnv(t *testing.T, engine sessions.SpeechToText, complete func(ctx context.Context, prompt string) (string, error)) *env {
	t.Helper()
	logging.InitNop()
	db := testdb.Open(t).DB
	user, err := dao.NewUserDAO(db).CreateUser(context.Background(), "ada", "ada@example.com", nil)
	require.NoError(t, err)

	policy := config.DefaultPolicy()
	policy.FlushInterval = time.Hour
	policy.CompletionAttempts = 1
	policy.CompletionTimeout = time.Second
	policy.FinalizeTimeout = 5 * time.Second

	e := &env{
		db:          db,
		user:        user,
		meetings:    dao.NewMeetingDAO(db),
		transcripts: dao.NewTranscriptDAO(db),
		summaries:   dao.NewMeetingSummaryDAO(db),
		metrics:     metrics.New(prometheus.NewRegistry()),
		completer:   &countingCompleter{fn: complete},
		archive:     &memArchive{},
		policy:      policy,
	}
	e.registry = sessions.NewRegistry(e.metrics)
	gen := summary.NewGenerator(e.transcripts, e.summaries, e.completer, policy, e.metrics)
	e.lifecycle = NewLifecycle(Options{
		Meetings:    e.meetings,
		Transcripts: e.transcripts,
		Registry:    e.registry,
		Engine:      engine,
		Archive:     e.archive,
		Summarizer:  gen,
		Policy:      policy,
		Metrics:     e.metrics,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = e.lifecycle.Shutdown(ctx)
	})
	return e
}

func helloEngine() sessions.SpeechToText {
	return engineFunc(func(ctx context.Context, audio []byte) (string, error) { return "hello world", nil })
}

func failingEngine() sessions.SpeechToText {
	return engineFunc(func(ctx context.Context, audio []byte) (string, error) {
		return "", errors.New("speech backend down")
	})
}

func goodCompletion(ctx context.Context, prompt string) (string, error) {
	return fourSections, nil
}

func (e *env) join(t *testing.T, link string) *JoinResult {
	t.Helper()
	res, err := e.lifecycle.CreateAndStart(context.Background(), JoinRequest{
		UserID: e.user.ID, ConferenceLink: link, Title: "Standup", IsManual: true,
	})
	require.NoError(t, err)
	return res
}

func (e *env) stream(t *testing.T, id uuid.UUID, n int) {
	t.Helper()
	s, err := e.lifecycle.Session(id)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, s.ProcessAudioChunk([]byte{0x01, 0x02, byte(i)}))
	}
}

func (e *env) status(t *testing.T, id uuid.UUID) models.MeetingStatus {
	t.Helper()
	m, err := e.meetings.GetMeetingByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m.Status
}

func (e *env) chunkCount(id uuid.UUID) int64 {
	n, _ := e.transcripts.CountChunks(context.Background(), id)
	return n
}
