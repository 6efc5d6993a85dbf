package types

import (
	"time"

	"scribe/scribe/sources/psql/models"

	"github.com/google/uuid"
)

type JoinMeetingRequest struct {
	ConferencingLink string `json:"conferencing_link"`
	Title            string `json:"title,omitempty"`
}

// JoinMeetingResponse carries the meeting id twice: session_id is what
// realtime clients key on.
type JoinMeetingResponse struct {
	Message        string               `json:"message"`
	SessionID      uuid.UUID            `json:"session_id"`
	MeetingID      uuid.UUID            `json:"meeting_id"`
	ChannelAddress string               `json:"channel_address"`
	Status         models.MeetingStatus `json:"status"`
}

type StopMeetingResponse struct {
	Message   string               `json:"message"`
	MeetingID uuid.UUID            `json:"meeting_id"`
	Status    models.MeetingStatus `json:"status"`
}

type TranscriptResponse struct {
	Meeting  models.Meeting           `json:"meeting"`
	Chunks   []models.TranscriptChunk `json:"chunks"`
	Summary  *models.MeetingSummary   `json:"summary"`
	IsActive bool                     `json:"is_active"`
}

type MeetingStatusResponse struct {
	MeetingID          uuid.UUID            `json:"meeting_id"`
	Status             models.MeetingStatus `json:"status"`
	LastActivity       time.Time            `json:"last_activity"`
	ChunkCount         int64                `json:"chunk_count"`
	HasSummary         bool                 `json:"has_summary"`
	SummaryUnavailable bool                 `json:"summary_unavailable"`
	IsActive           bool                 `json:"is_active"`
}

type LiveMeetingsResponse struct {
	ActiveMeetings   []models.Meeting `json:"active_meetings"`
	UpcomingMeetings []models.Meeting `json:"upcoming_meetings"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
