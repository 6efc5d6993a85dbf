package meetings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/sessions"
	"scribe/scribe/services/summary"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTitle = "Ad-hoc meeting"

type Summarizer interface {
	Generate(ctx context.Context, meetingID uuid.UUID, retry bool) (*models.MeetingSummary, error)
}

// Archive stores drained audio and can drop everything kept for a meeting.
type Archive interface {
	sessions.AudioArchive
	PurgeMeeting(ctx context.Context, meetingID uuid.UUID) error
}

type Options struct {
	Meetings    *dao.MeetingDAO
	Transcripts *dao.TranscriptDAO
	Registry    *sessions.Registry
	Engine      sessions.SpeechToText
	Archive     Archive
	Summarizer  Summarizer
	Policy      config.Policy
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Lifecycle owns every meeting status transition that involves a live
// session: join, start, stop, failure and delete.
type Lifecycle struct {
	opts Options

	// joinMu serializes the find-or-create step of joins so two requests for
	// the same (user, link) cannot both create a meeting. Stop and Delete hold
	// it while they take a meeting out of active.
	joinMu sync.Mutex

	finalizers sync.WaitGroup
}

func NewLifecycle(opts Options) *Lifecycle {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Lifecycle{opts: opts}
}

type JoinRequest struct {
	UserID          int
	ConferenceLink  string
	Title           string
	IsManual        bool
	CalendarEventID *string
	StartTime       time.Time
	EndTime         *time.Time
}

type JoinResult struct {
	Meeting        *models.Meeting
	Created        bool
	ChannelAddress string
}

// ChannelAddress is the realtime endpoint clients stream a meeting's audio to.
func ChannelAddress(meetingID uuid.UUID) string {
	return "/ws/meeting/" + meetingID.String()
}

// CreateAndStart joins a meeting. An active or finalizing meeting for the
// same user and link is returned as is, with a fresh session registered if
// the process lost the previous one.
func (l *Lifecycle) CreateAndStart(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	link := strings.TrimSpace(req.ConferenceLink)
	if link == "" {
		return nil, ErrMissingLink
	}

	l.joinMu.Lock()
	defer l.joinMu.Unlock()

	existing, err := l.opts.Meetings.FindOpenMeeting(ctx, req.UserID, link)
	if err != nil {
		return nil, fmt.Errorf("find open meeting: %w", err)
	}
	if existing != nil {
		if existing.Status == models.StatusActive {
			if err := l.ensureSession(ctx, existing); err != nil {
				return nil, err
			}
		}
		return &JoinResult{Meeting: existing, ChannelAddress: ChannelAddress(existing.ID)}, nil
	}

	now := l.opts.Now().UTC()
	start := req.StartTime
	if start.IsZero() {
		start = now
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTitle
	}
	status := models.StatusScheduled
	if req.IsManual {
		status = models.StatusActive
	}
	m := &models.Meeting{
		UserID:          req.UserID,
		CalendarEventID: req.CalendarEventID,
		ConferenceLink:  link,
		Title:           title,
		StartTime:       start,
		EndTime:         req.EndTime,
		Status:          status,
		IsManual:        req.IsManual,
		LastActivity:    now,
	}
	if err := l.opts.Meetings.CreateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	logging.AppLogger.Info("Meeting created",
		zap.String("meeting_id", m.ID.String()),
		zap.Int("user_id", m.UserID),
		zap.Bool("is_manual", m.IsManual),
	)

	if err := l.start(ctx, m); err != nil {
		return nil, err
	}
	return &JoinResult{Meeting: m, Created: true, ChannelAddress: ChannelAddress(m.ID)}, nil
}

// Start moves a scheduled meeting to active and attaches a session. Starting
// an active meeting only makes sure its session exists.
func (l *Lifecycle) Start(ctx context.Context, meetingID uuid.UUID) (*models.Meeting, error) {
	l.joinMu.Lock()
	defer l.joinMu.Unlock()

	m, err := l.opts.Meetings.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMeetingNotFound
	}
	if m.Status != models.StatusScheduled && m.Status != models.StatusActive {
		return nil, fmt.Errorf("start meeting in status %s: %w", m.Status, ErrMeetingNotActive)
	}
	if err := l.start(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *Lifecycle) start(ctx context.Context, m *models.Meeting) error {
	if m.Status == models.StatusScheduled {
		ok, err := l.opts.Meetings.Transition(ctx, m.ID, models.StatusActive, nil, models.StatusScheduled)
		if err != nil {
			return fmt.Errorf("activate meeting: %w", err)
		}
		if !ok {
			return fmt.Errorf("activate meeting %s: %w", m.ID, ErrMeetingNotActive)
		}
		now := l.opts.Now().UTC()
		// the grace period counts from activation, not from scheduling
		if err := l.opts.Meetings.Touch(ctx, m.ID, now); err != nil {
			return fmt.Errorf("touch meeting: %w", err)
		}
		m.Status = models.StatusActive
		m.LastActivity = now
	}
	return l.ensureSession(ctx, m)
}

func (l *Lifecycle) ensureSession(ctx context.Context, m *models.Meeting) error {
	if _, err := l.opts.Registry.Lookup(m.ID); err == nil {
		return nil
	}
	last, err := l.opts.Transcripts.LastSequence(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("load last sequence: %w", err)
	}

	var archive sessions.AudioArchive
	if l.opts.Archive != nil {
		archive = l.opts.Archive
	}
	s := sessions.NewSession(m.ID, sessions.Options{
		Policy:        l.opts.Policy,
		Engine:        l.opts.Engine,
		Chunks:        l.opts.Transcripts,
		Activity:      l.opts.Meetings,
		Archive:       archive,
		Metrics:       l.opts.Metrics,
		OnFailed:      l.onSessionFailed,
		StartSequence: last,
		Now:           l.opts.Now,
	})
	if err := l.opts.Registry.Register(m.ID, s); err != nil {
		if errors.Is(err, sessions.ErrSessionAlreadyActive) {
			return nil
		}
		return err
	}
	if err := s.Start(); err != nil {
		l.opts.Registry.UnregisterSession(m.ID, s)
		return err
	}
	if last > 0 {
		logging.AppLogger.Info("Session resumed",
			zap.String("meeting_id", m.ID.String()), zap.Int("last_sequence", last))
	}
	return nil
}

// Stop ends a meeting's transcription and kicks off its summary. It tolerates
// a missing session. Only the caller that moves the meeting to finalizing
// gets true; everyone else, including repeat calls, is a no-op.
func (l *Lifecycle) Stop(ctx context.Context, meetingID uuid.UUID, forced bool) (bool, error) {
	m, err := l.opts.Meetings.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, ErrMeetingNotFound
	}

	won, err := l.haltAndPark(ctx, meetingID)
	if err != nil {
		return false, fmt.Errorf("finalize meeting: %w", err)
	}
	if !won {
		return false, nil
	}

	logging.AppLogger.Info("Meeting finalizing",
		zap.String("meeting_id", meetingID.String()), zap.Bool("forced", forced))

	l.finalizers.Add(1)
	go l.finalize(meetingID)
	return true, nil
}

// haltAndPark halts the session and moves the meeting to finalizing while
// holding joinMu. A join in between would otherwise still see the meeting
// active and register a fresh session for it.
func (l *Lifecycle) haltAndPark(ctx context.Context, meetingID uuid.UUID) (bool, error) {
	l.joinMu.Lock()
	defer l.joinMu.Unlock()

	l.haltSession(ctx, meetingID)
	end := l.opts.Now().UTC()
	return l.opts.Meetings.Transition(ctx, meetingID, models.StatusFinalizing, &end,
		models.StatusActive, models.StatusScheduled)
}

// haltSession stops and unregisters the meeting's session and waits for its
// final flush, so the transcript is complete before anyone summarizes it.
func (l *Lifecycle) haltSession(ctx context.Context, meetingID uuid.UUID) {
	s, err := l.opts.Registry.Lookup(meetingID)
	if err != nil {
		return
	}
	s.Stop(ctx)
	select {
	case <-s.Finished():
	case <-ctx.Done():
	}
	l.opts.Registry.UnregisterSession(meetingID, s)
}

func (l *Lifecycle) finalize(meetingID uuid.UUID) {
	defer l.finalizers.Done()
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("Finalize panicked",
				zap.String("meeting_id", meetingID.String()), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.Policy.FinalizeTimeout)
	defer cancel()
	ctx = logging.WithTraceID(ctx, "finalize-"+meetingID.String())

	_, err := l.opts.Summarizer.Generate(ctx, meetingID, false)
	switch {
	case err == nil:
	case errors.Is(err, summary.ErrTranscriptTooShort):
		logging.AppLogger.Info("Skipping summary, transcript too short",
			zap.String("meeting_id", meetingID.String()))
	case errors.Is(err, summary.ErrSummaryUnavailable):
		// recorded on the summary row
	default:
		logging.ErrorLogger.Error("Summary generation failed",
			zap.String("meeting_id", meetingID.String()), zap.Error(err))
	}

	// completed regardless of how the summary went
	doneCtx, doneCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer doneCancel()
	if _, err := l.opts.Meetings.Transition(doneCtx, meetingID, models.StatusCompleted, nil, models.StatusFinalizing); err != nil {
		logging.ErrorLogger.Error("Failed to complete meeting",
			zap.String("meeting_id", meetingID.String()), zap.Error(err))
		return
	}
	logging.AppLogger.Info("Meeting completed", zap.String("meeting_id", meetingID.String()))
}

// onSessionFailed runs when a session gives up on its transcription backend.
func (l *Lifecycle) onSessionFailed(meetingID uuid.UUID, cause error) {
	if s, err := l.opts.Registry.Lookup(meetingID); err == nil && s.State() == sessions.StateFailed {
		l.opts.Registry.UnregisterSession(meetingID, s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	end := l.opts.Now().UTC()
	ok, err := l.opts.Meetings.Transition(ctx, meetingID, models.StatusFailed, &end, models.StatusActive)
	if err != nil {
		logging.ErrorLogger.Error("Failed to mark meeting failed",
			zap.String("meeting_id", meetingID.String()), zap.Error(err))
		return
	}
	if ok {
		logging.ErrorLogger.Error("Meeting failed",
			zap.String("meeting_id", meetingID.String()), zap.Error(cause))
	}
}

// Delete force-stops a live meeting without summarizing it and removes it
// with its chunks, summary and archived audio.
func (l *Lifecycle) Delete(ctx context.Context, meetingID uuid.UUID) error {
	m, err := l.opts.Meetings.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrMeetingNotFound
	}

	// parks the meeting so a concurrent stop cannot start finalizing it
	if _, err := l.haltAndPark(ctx, meetingID); err != nil {
		return fmt.Errorf("park meeting: %w", err)
	}

	if l.opts.Archive != nil {
		if err := l.opts.Archive.PurgeMeeting(ctx, meetingID); err != nil {
			logging.ErrorLogger.Warn("Audio purge failed",
				zap.String("meeting_id", meetingID.String()), zap.Error(err))
		}
	}
	if err := l.opts.Meetings.DeleteMeeting(ctx, meetingID); err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	logging.AppLogger.Info("Meeting deleted", zap.String("meeting_id", meetingID.String()))
	return nil
}

// RetrySummary regenerates the summary of a stopped meeting.
func (l *Lifecycle) RetrySummary(ctx context.Context, meetingID uuid.UUID) (*models.MeetingSummary, error) {
	m, err := l.opts.Meetings.GetMeetingByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMeetingNotFound
	}
	if m.Status != models.StatusCompleted && m.Status != models.StatusFinalizing {
		return nil, fmt.Errorf("meeting is %s: %w", m.Status, ErrSummaryNotReady)
	}
	return l.opts.Summarizer.Generate(ctx, meetingID, true)
}

// Session returns the live session of a meeting.
func (l *Lifecycle) Session(meetingID uuid.UUID) (*sessions.Session, error) {
	return l.opts.Registry.Lookup(meetingID)
}

// Wait blocks until every finalization started so far is done.
func (l *Lifecycle) Wait() {
	l.finalizers.Wait()
}

// Shutdown force-stops every live session and waits for the resulting
// finalizations until ctx expires.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	for _, s := range l.opts.Registry.Snapshot() {
		if _, err := l.Stop(ctx, s.MeetingID(), true); err != nil {
			logging.ErrorLogger.Error("Shutdown stop failed",
				zap.String("meeting_id", s.MeetingID().String()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		l.finalizers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for finalizations: %w", ctx.Err())
	}
}
