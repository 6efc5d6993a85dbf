package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scribe/scribe/services/meetings"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/types"

	"github.com/google/uuid"
)

var ErrSummaryNotFound = errors.New("summary not available yet")

const defaultListLimit = 50

type MeetingController struct {
	meetings    *dao.MeetingDAO
	transcripts *dao.TranscriptDAO
	summaries   *dao.MeetingSummaryDAO
	lifecycle   *meetings.Lifecycle
	now         func() time.Time
}

func NewMeetingController(m *dao.MeetingDAO, t *dao.TranscriptDAO, s *dao.MeetingSummaryDAO, l *meetings.Lifecycle) *MeetingController {
	return &MeetingController{meetings: m, transcripts: t, summaries: s, lifecycle: l, now: time.Now}
}

// Join starts transcribing the user's meeting at the given link, or returns
// the one already running there. created reports whether a new meeting row
// was made.
func (c *MeetingController) Join(ctx context.Context, userID int, req types.JoinMeetingRequest) (*types.JoinMeetingResponse, bool, error) {
	res, err := c.lifecycle.CreateAndStart(ctx, meetings.JoinRequest{
		UserID:         userID,
		ConferenceLink: req.ConferencingLink,
		Title:          req.Title,
		IsManual:       true,
	})
	if err != nil {
		return nil, false, err
	}
	msg := "Meeting transcription started"
	if !res.Created {
		msg = "Meeting transcription already running"
	}
	return &types.JoinMeetingResponse{
		Message:        msg,
		SessionID:      res.Meeting.ID,
		MeetingID:      res.Meeting.ID,
		ChannelAddress: res.ChannelAddress,
		Status:         res.Meeting.Status,
	}, res.Created, nil
}

func (c *MeetingController) owned(ctx context.Context, userID int, id uuid.UUID) (*models.Meeting, error) {
	m, err := c.meetings.GetMeetingForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, meetings.ErrMeetingNotFound
	}
	return m, nil
}

// Stop ends transcription. The summary is generated in the background.
func (c *MeetingController) Stop(ctx context.Context, userID int, id uuid.UUID) (*types.StopMeetingResponse, error) {
	m, err := c.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m.Status != models.StatusActive && m.Status != models.StatusScheduled {
		return nil, fmt.Errorf("meeting is %s: %w", m.Status, meetings.ErrMeetingNotActive)
	}
	won, err := c.lifecycle.Stop(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, meetings.ErrMeetingNotActive
	}
	return &types.StopMeetingResponse{
		Message:   "Meeting transcription stopped. Summary will be generated.",
		MeetingID: id,
		Status:    models.StatusFinalizing,
	}, nil
}

func (c *MeetingController) Transcript(ctx context.Context, userID int, id uuid.UUID) (*types.TranscriptResponse, error) {
	m, err := c.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	chunks, err := c.transcripts.ListChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []models.TranscriptChunk{}
	}
	s, err := c.summaries.GetByMeetingID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &types.TranscriptResponse{
		Meeting:  *m,
		Chunks:   chunks,
		Summary:  s,
		IsActive: c.isLive(id),
	}, nil
}

func (c *MeetingController) Summary(ctx context.Context, userID int, id uuid.UUID) (*models.MeetingSummary, error) {
	if _, err := c.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	s, err := c.summaries.GetByMeetingID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSummaryNotFound
	}
	return s, nil
}

// RetrySummary regenerates the summary synchronously. A failed completion
// still returns the stored row alongside the error.
func (c *MeetingController) RetrySummary(ctx context.Context, userID int, id uuid.UUID) (*models.MeetingSummary, error) {
	if _, err := c.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	return c.lifecycle.RetrySummary(ctx, id)
}

func (c *MeetingController) Status(ctx context.Context, userID int, id uuid.UUID) (*types.MeetingStatusResponse, error) {
	m, err := c.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	count, err := c.transcripts.CountChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	s, err := c.summaries.GetByMeetingID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &types.MeetingStatusResponse{
		MeetingID:    id,
		Status:       m.Status,
		LastActivity: m.LastActivity,
		ChunkCount:   count,
		HasSummary:   s != nil,
		IsActive:     c.isLive(id),
	}
	if s != nil {
		res.SummaryUnavailable = s.SummaryUnavailable
	}
	return res, nil
}

func (c *MeetingController) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	if _, err := c.owned(ctx, userID, id); err != nil {
		return err
	}
	return c.lifecycle.Delete(ctx, id)
}

func (c *MeetingController) List(ctx context.Context, userID int, status models.MeetingStatus, skip, limit int) ([]models.Meeting, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if skip < 0 {
		skip = 0
	}
	list, err := c.meetings.ListMeetings(ctx, userID, status, skip, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Meeting{}
	}
	return list, nil
}

// Live lists the user's active meetings and the scheduled ones starting
// within the hour.
func (c *MeetingController) Live(ctx context.Context, userID int) (*types.LiveMeetingsResponse, error) {
	active, err := c.meetings.ListMeetings(ctx, userID, models.StatusActive, 0, defaultListLimit)
	if err != nil {
		return nil, err
	}
	now := c.now().UTC()
	upcoming, err := c.meetings.ListUpcoming(ctx, userID, now, now.Add(time.Hour))
	if err != nil {
		return nil, err
	}
	if active == nil {
		active = []models.Meeting{}
	}
	if upcoming == nil {
		upcoming = []models.Meeting{}
	}
	return &types.LiveMeetingsResponse{ActiveMeetings: active, UpcomingMeetings: upcoming}, nil
}

// Meeting returns the user's meeting for the realtime endpoint.
func (c *MeetingController) Meeting(ctx context.Context, userID int, id uuid.UUID) (*models.Meeting, error) {
	return c.owned(ctx, userID, id)
}

func (c *MeetingController) Lifecycle() *meetings.Lifecycle {
	return c.lifecycle
}

func (c *MeetingController) isLive(id uuid.UUID) bool {
	_, err := c.lifecycle.Session(id)
	return err == nil
}
