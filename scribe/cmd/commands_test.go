package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/services/summary"
	"scribe/scribe/sources/psql"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const fourSections = "## Key Points\n- budget approved\n\n## Decisions\n- hire two\n\n## Action Items\n- ada posts the roles\n\n## Follow-ups\n- check in monday"

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// each command closes its database, so tests share a file instead of :memory:
func fileDB(t *testing.T) func(ctx context.Context) (*psql.Database, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scribe.db")
	return func(ctx context.Context) (*psql.Database, error) {
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, err
		}
		if err := psql.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return &psql.Database{DB: db}, nil
	}
}

type fixture struct {
	app   *app
	out   *bytes.Buffer
	db    *psql.Database
	user  *models.User
	calls int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logging.InitNop()
	open := fileDB(t)
	db, err := open(context.Background())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	user, err := dao.NewUserDAO(db.DB).CreateUser(context.Background(), "ada", "ada@example.com", nil)
	require.NoError(t, err)

	policy := config.DefaultPolicy()
	policy.CompletionAttempts = 1
	policy.CompletionTimeout = time.Second
	policy.FinalizeTimeout = 5 * time.Second

	f := &fixture{out: &bytes.Buffer{}, db: db, user: user}
	f.app = &app{
		cfg:    config.Config{Policy: policy},
		openDB: open,
		newCompleter: func(ctx context.Context) (summary.Completer, error) {
			return completerFunc(func(ctx context.Context, prompt string) (string, error) {
				f.calls++
				return fourSections, nil
			}), nil
		},
		out: f.out,
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	f.out.Reset()
	root := newRootCmd(f.app)
	root.SetArgs(args)
	root.SetOut(f.out)
	root.SetErr(f.out)
	return root.ExecuteContext(context.Background())
}

func (f *fixture) meeting(t *testing.T, title string, status models.MeetingStatus, lastActivity time.Time, texts ...string) *models.Meeting {
	t.Helper()
	ctx := context.Background()
	m := &models.Meeting{
		UserID:         f.user.ID,
		ConferenceLink: "https://meet.google.com/" + strings.ReplaceAll(title, " ", "-"),
		Title:          title,
		StartTime:      lastActivity.Add(-time.Hour),
		Status:         status,
		LastActivity:   lastActivity,
	}
	require.NoError(t, dao.NewMeetingDAO(f.db.DB).CreateMeeting(ctx, m))
	for i, text := range texts {
		require.NoError(t, dao.NewTranscriptDAO(f.db.DB).SaveChunk(ctx, &models.TranscriptChunk{
			MeetingID: m.ID, SequenceNumber: i + 1, Timestamp: lastActivity, Text: text, IsFinal: true,
		}))
	}
	return m
}

func TestMigrate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.run(t, "migrate"))
	assert.Contains(t, f.out.String(), "schema up to date")
}

func TestMeetingsList(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	f.meeting(t, "weekly sync", models.StatusCompleted, now.Add(-48*time.Hour))
	f.meeting(t, "design review", models.StatusActive, now)

	require.NoError(t, f.run(t, "meetings", "list", "--user", "ada"))
	out := f.out.String()
	assert.Contains(t, out, "weekly sync")
	assert.Contains(t, out, "design review")
	assert.Less(t, strings.Index(out, "design review"), strings.Index(out, "weekly sync"))

	require.NoError(t, f.run(t, "meetings", "list", "--user", "ada", "--status", "active"))
	assert.NotContains(t, f.out.String(), "weekly sync")

	assert.Error(t, f.run(t, "meetings", "list", "--user", "nobody"))
	assert.Error(t, f.run(t, "meetings", "list"))
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	m := f.meeting(t, "planning", models.StatusCompleted, time.Now().UTC(), "we approved the budget", "and agreed to hire")

	require.NoError(t, f.run(t, "summarize", m.ID.String()))
	assert.Contains(t, f.out.String(), "- budget approved")
	assert.Equal(t, 1, f.calls)

	require.NoError(t, f.run(t, "summarize", m.ID.String()))
	assert.Equal(t, 1, f.calls, "existing summary is reused")

	require.NoError(t, f.run(t, "summarize", m.ID.String(), "--retry"))
	assert.Equal(t, 2, f.calls)

	assert.Error(t, f.run(t, "summarize", "not-a-uuid"))
}

func TestSummarizeTooShort(t *testing.T) {
	f := newFixture(t)
	m := f.meeting(t, "silent", models.StatusCompleted, time.Now().UTC(), "ok")
	err := f.run(t, "summarize", m.ID.String())
	assert.ErrorIs(t, err, summary.ErrTranscriptTooShort)
}

func TestRecover(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	stranded := f.meeting(t, "crashed", models.StatusActive, now.Add(-10*time.Minute), "the server went down mid sentence")
	live := f.meeting(t, "ongoing", models.StatusActive, now)

	require.NoError(t, f.run(t, "recover", "--grace", "1m"))
	assert.Contains(t, f.out.String(), "finalized 1 stranded meeting(s)")

	meetingDAO := dao.NewMeetingDAO(f.db.DB)
	got, err := meetingDAO.GetMeetingByID(context.Background(), stranded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.EndTime)

	got, err = meetingDAO.GetMeetingByID(context.Background(), live.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)

	s, err := dao.NewMeetingSummaryDAO(f.db.DB).GetByMeetingID(context.Background(), stranded.ID)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.SummaryUnavailable)

	require.NoError(t, f.run(t, "recover", "--grace", "1m"))
	assert.Contains(t, f.out.String(), "no stranded meetings")
}
