// scribe/sources/psql/models/meeting.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MeetingStatus string

const (
	StatusScheduled  MeetingStatus = "scheduled"
	StatusActive     MeetingStatus = "active"
	StatusFinalizing MeetingStatus = "finalizing"
	StatusCompleted  MeetingStatus = "completed"
	StatusFailed     MeetingStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s MeetingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsOpen covers the statuses a join request attaches to instead of creating
// a second meeting.
func (s MeetingStatus) IsOpen() bool {
	return s == StatusActive || s == StatusFinalizing
}

// CanTransition encodes scheduled -> active -> finalizing -> completed|failed.
// active may fail directly when the transcription backend gives up.
func (s MeetingStatus) CanTransition(to MeetingStatus) bool {
	switch s {
	case StatusScheduled:
		return to == StatusActive || to == StatusFinalizing
	case StatusActive:
		return to == StatusFinalizing || to == StatusFailed
	case StatusFinalizing:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

type Meeting struct {
	ID              uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID          int           `json:"user_id" gorm:"not null;index"`
	User            User          `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	CalendarEventID *string       `json:"calendar_event_id,omitempty" gorm:"type:varchar(255);index"`
	ConferenceLink  string        `json:"conferencing_link" gorm:"type:varchar(1024);not null;index"`
	Title           string        `json:"title" gorm:"type:varchar(255);not null"`
	StartTime       time.Time     `json:"start_time" gorm:"not null"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	Status          MeetingStatus `json:"status" gorm:"type:varchar(32);not null;default:'scheduled';index"`
	IsManual        bool          `json:"is_manual" gorm:"not null;default:false"`
	LastActivity    time.Time     `json:"last_activity" gorm:"not null;index"`
	CreatedAt       time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Meeting) TableName() string {
	return "meetings"
}

func (m *Meeting) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TranscriptChunk rows are written once and never updated.
type TranscriptChunk struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MeetingID      uuid.UUID `json:"meeting_id" gorm:"type:uuid;not null;uniqueIndex:idx_chunk_meeting_seq"`
	Meeting        Meeting   `json:"-" gorm:"foreignKey:MeetingID;references:ID;constraint:OnDelete:CASCADE"`
	SequenceNumber int       `json:"sequence_number" gorm:"not null;uniqueIndex:idx_chunk_meeting_seq"`
	Timestamp      time.Time `json:"timestamp" gorm:"not null"`
	Speaker        *string   `json:"speaker,omitempty" gorm:"type:varchar(255)"`
	Text           string    `json:"text" gorm:"type:text;not null"`
	IsFinal        bool      `json:"is_final" gorm:"not null;default:false"`
}

func (TranscriptChunk) TableName() string {
	return "meeting_transcripts"
}

func (c *TranscriptChunk) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type MeetingSummary struct {
	ID                 uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MeetingID          uuid.UUID `json:"meeting_id" gorm:"type:uuid;not null;uniqueIndex"`
	Meeting            Meeting   `json:"-" gorm:"foreignKey:MeetingID;references:ID;constraint:OnDelete:CASCADE"`
	FullTranscript     string    `json:"full_transcript" gorm:"type:text;not null"`
	KeyPoints          *string   `json:"key_points,omitempty" gorm:"type:text"`
	Decisions          *string   `json:"decisions,omitempty" gorm:"type:text"`
	ActionItems        []string  `json:"action_items" gorm:"type:text;serializer:json"`
	FollowUps          *string   `json:"follow_ups,omitempty" gorm:"type:text"`
	SummaryUnavailable bool      `json:"summary_unavailable" gorm:"not null;default:false"`
	ErrorMessage       *string   `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt          time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (MeetingSummary) TableName() string {
	return "meeting_summaries"
}

func (s *MeetingSummary) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
