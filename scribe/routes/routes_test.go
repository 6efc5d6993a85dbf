package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/controllers"
	"scribe/scribe/services/meetings"
	"scribe/scribe/services/summary"
	"scribe/scribe/sessions"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/testdb"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"
	"scribe/scribe/utils/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor      = 3 * time.Second
	tick         = 10 * time.Millisecond
	fourSections = "## Key Points\n- kickoff\n\n## Decisions\n- ship friday\n\n## Action Items\n- ada writes notes\n\n## Follow-ups\n- demo next week"
)

type engineFunc func(ctx context.Context, audio []byte) (string, error)

func (f engineFunc) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f(ctx, audio)
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type server struct {
	*httptest.Server
	lifecycle *meetings.Lifecycle
}

func newServer(t *testing.T) *server {
	t.Helper()
	logging.InitNop()
	database := testdb.Open(t)
	db := database.DB

	policy := config.DefaultPolicy()
	policy.FlushInterval = time.Hour
	policy.CompletionAttempts = 1
	policy.CompletionTimeout = time.Second
	policy.FinalizeTimeout = 5 * time.Second
	cfg := config.Config{JWTSecret: "test-secret", Policy: policy}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	meetingDAO := dao.NewMeetingDAO(db)
	transcriptDAO := dao.NewTranscriptDAO(db)
	summaryDAO := dao.NewMeetingSummaryDAO(db)
	userDAO := dao.NewUserDAO(db)

	gen := summary.NewGenerator(transcriptDAO, summaryDAO,
		completerFunc(func(ctx context.Context, prompt string) (string, error) { return fourSections, nil }),
		policy, m)
	lc := meetings.NewLifecycle(meetings.Options{
		Meetings:    meetingDAO,
		Transcripts: transcriptDAO,
		Registry:    sessions.NewRegistry(m),
		Engine: engineFunc(func(ctx context.Context, audio []byte) (string, error) {
			return "hello world", nil
		}),
		Summarizer: gen,
		Policy:     policy,
		Metrics:    m,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = lc.Shutdown(ctx)
	})

	router := NewRouter(Deps{
		Config:   cfg,
		Auth:     controllers.NewAuthController(userDAO, cfg.JWTSecret),
		Users:    controllers.NewUserController(userDAO),
		Meetings: controllers.NewMeetingController(meetingDAO, transcriptDAO, summaryDAO, lc),
		Health:   controllers.NewHealthController(database),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{Server: srv, lifecycle: lc}
}

func (s *server) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *server) login(t *testing.T, username string) string {
	t.Helper()
	var res types.LoginResponse
	code := s.do(t, http.MethodPost, "/auth/login", "", types.LoginRequest{Username: username}, &res)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func (s *server) join(t *testing.T, token, link string) (types.JoinMeetingResponse, int) {
	t.Helper()
	var res types.JoinMeetingResponse
	code := s.do(t, http.MethodPost, "/meetings/join", token, types.JoinMeetingRequest{ConferencingLink: link}, &res)
	return res, code
}

func (s *server) dial(t *testing.T, channel, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + channel + "?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func (s *server) waitStatus(t *testing.T, token, id, want string) types.MeetingStatusResponse {
	t.Helper()
	var st types.MeetingStatusResponse
	require.Eventually(t, func() bool {
		st = types.MeetingStatusResponse{}
		code := s.do(t, http.MethodGet, "/meetings/"+id+"/status", token, nil, &st)
		return code == http.StatusOK && string(st.Status) == want
	}, waitFor, tick)
	return st
}

func TestMeetingFlow(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")

	joined, code := s.join(t, token, "https://meet.google.com/abc")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "active", string(joined.Status))
	assert.Equal(t, "/ws/meeting/"+joined.SessionID.String(), joined.ChannelAddress)

	again, code := s.join(t, token, "https://meet.google.com/abc")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, joined.SessionID, again.SessionID)

	conn := s.dial(t, joined.ChannelAddress, token)
	hello := readFrame(t, conn)
	assert.Equal(t, "connection", hello["type"])
	assert.Equal(t, joined.SessionID.String(), hello["meeting_id"])

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	for i := 0; i < 10; i++ {
		require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{byte(i), 1, 2, 3}))
	}
	frame := readFrame(t, conn)
	assert.Equal(t, "transcript", frame["type"])
	assert.Equal(t, "hello world", frame["text"])
	assert.EqualValues(t, 1, frame["sequence_number"])
	assert.Equal(t, true, frame["is_final"])

	id := joined.SessionID.String()
	var stopped types.StopMeetingResponse
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/meetings/"+id+"/stop", token, nil, &stopped))
	assert.Equal(t, "finalizing", string(stopped.Status))

	ended := readFrame(t, conn)
	assert.Equal(t, "session_ended", ended["type"])

	st := s.waitStatus(t, token, id, "completed")
	assert.EqualValues(t, 1, st.ChunkCount)
	assert.True(t, st.HasSummary)
	assert.False(t, st.SummaryUnavailable)
	assert.False(t, st.IsActive)

	var sum map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/meetings/"+id+"/summary", token, nil, &sum))
	assert.Equal(t, "- kickoff", sum["key_points"])
	assert.Equal(t, "hello world", sum["full_transcript"])

	var tr types.TranscriptResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/meetings/"+id+"/transcript", token, nil, &tr))
	require.Len(t, tr.Chunks, 1)
	assert.Equal(t, 1, tr.Chunks[0].SequenceNumber)
	require.NotNil(t, tr.Summary)
	assert.False(t, tr.IsActive)

	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/meetings/"+id+"/stop", token, nil, &errRes))

	var retried map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/meetings/"+id+"/summary/retry", token, nil, &retried))
	assert.Equal(t, false, retried["summary_unavailable"])
}

func TestRequiresToken(t *testing.T) {
	s := newServer(t)
	resp, err := http.Get(s.URL + "/meetings/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeetingsAreScopedToOwner(t *testing.T) {
	s := newServer(t)
	ada := s.login(t, "ada")
	bob := s.login(t, "bob")

	joined, code := s.join(t, ada, "https://meet.google.com/own")
	require.Equal(t, http.StatusCreated, code)
	id := joined.SessionID.String()

	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/meetings/"+id+"/status", bob, nil, &errRes))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/meetings/"+id+"/stop", bob, nil, &errRes))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/meetings/not-a-uuid/status", ada, nil, &errRes))
}

func TestJoinRequiresLink(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")
	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPost, "/meetings/join", token, types.JoinMeetingRequest{ConferencingLink: "  "}, &errRes))
	assert.NotEmpty(t, errRes.Error)
}

func TestSummaryEndpointsBeforeStop(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")
	joined, _ := s.join(t, token, "https://meet.google.com/early")
	id := joined.SessionID.String()

	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/meetings/"+id+"/summary", token, nil, &errRes))
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/meetings/"+id+"/summary/retry", token, nil, &errRes))
}

func TestRetryRejectsShortTranscript(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")
	joined, _ := s.join(t, token, "https://meet.google.com/quiet")
	id := joined.SessionID.String()

	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/meetings/"+id+"/stop", token, nil, nil))
	st := s.waitStatus(t, token, id, "completed")
	assert.False(t, st.HasSummary)

	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/meetings/"+id+"/summary/retry", token, nil, &errRes))
}

func TestRealtimeWithoutSession(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")
	joined, _ := s.join(t, token, "https://meet.google.com/gone")
	id := joined.SessionID.String()
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/meetings/"+id+"/stop", token, nil, nil))

	conn := s.dial(t, joined.ChannelAddress, token)
	frame := readFrame(t, conn)
	assert.Equal(t, "Meeting transcription not started", frame["error"])
}

func TestDeleteMeeting(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")
	joined, _ := s.join(t, token, "https://meet.google.com/del")
	id := joined.SessionID.String()

	var msg types.MessageResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/meetings/"+id, token, nil, &msg))
	assert.Equal(t, "Meeting deleted successfully", msg.Message)

	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/meetings/"+id+"/status", token, nil, &errRes))
	_, err := s.lifecycle.Session(joined.SessionID)
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestListAndLive(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")
	for i := 0; i < 3; i++ {
		_, code := s.join(t, token, fmt.Sprintf("https://meet.google.com/m%d", i))
		require.Equal(t, http.StatusCreated, code)
	}
	first, _ := s.join(t, token, "https://meet.google.com/m0")
	require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/meetings/"+first.SessionID.String()+"/stop", token, nil, nil))
	s.waitStatus(t, token, first.SessionID.String(), "completed")

	var all []map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/meetings/", token, nil, &all))
	assert.Len(t, all, 3)

	var page []map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/meetings/?skip=1&limit=1", token, nil, &page))
	assert.Len(t, page, 1)

	var done []map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/meetings/?status=completed", token, nil, &done))
	require.Len(t, done, 1)
	assert.Equal(t, first.SessionID.String(), done[0]["id"])

	var live types.LiveMeetingsResponse
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/meetings/live", token, nil, &live))
	assert.Len(t, live.ActiveMeetings, 2)
	assert.Empty(t, live.UpcomingMeetings)
}

func TestUserEndpoints(t *testing.T) {
	s := newServer(t)
	token := s.login(t, "ada")

	var me map[string]any
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/users/me", token, nil, &me))
	assert.Equal(t, "ada", me["username"])

	var errRes types.ErrorResponse
	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPut, "/users/me/calendar", token, types.LinkCalendarRequest{}, &errRes))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/users/me/calendar", token,
		types.LinkCalendarRequest{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}, &me))
	_, leaked := me["GoogleAccessToken"]
	assert.False(t, leaked)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		resp, err := http.Get(s.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{meetings.ErrMeetingNotFound, http.StatusNotFound},
		{controllers.ErrSummaryNotFound, http.StatusNotFound},
		{fmt.Errorf("meeting is completed: %w", meetings.ErrMeetingNotActive), http.StatusConflict},
		{meetings.ErrSummaryNotReady, http.StatusConflict},
		{summary.ErrTranscriptTooShort, http.StatusBadRequest},
		{fmt.Errorf("%w: timeout", summary.ErrSummaryUnavailable), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
