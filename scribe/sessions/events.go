package sessions

import (
	"context"
	"time"

	"scribe/scribe/sources/psql/models"

	"github.com/google/uuid"
)

const (
	EventTranscript   = "transcript"
	EventSessionEnded = "session_ended"
)

// Event is what a session fans out to its subscribers.
type Event struct {
	Type           string     `json:"type"`
	MeetingID      uuid.UUID  `json:"meeting_id"`
	SequenceNumber int        `json:"sequence_number,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	Text           string     `json:"text,omitempty"`
	IsFinal        bool       `json:"is_final,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

func transcriptEvent(c *models.TranscriptChunk) Event {
	ts := c.Timestamp
	return Event{
		Type:           EventTranscript,
		MeetingID:      c.MeetingID,
		SequenceNumber: c.SequenceNumber,
		Timestamp:      &ts,
		Text:           c.Text,
		IsFinal:        c.IsFinal,
	}
}

// Subscriber receives a session's events. Deliver must not block: a false
// return means the subscriber is gone or cannot keep up, and the session
// drops it.
type Subscriber interface {
	Deliver(ev Event) bool
	Close()
}

// SpeechToText turns a span of raw audio into text. Empty text is a valid
// result for silence.
type SpeechToText interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ChunkStore persists transcript chunks.
type ChunkStore interface {
	SaveChunk(ctx context.Context, chunk *models.TranscriptChunk) error
}

// ActivityRecorder records the meeting's last_activity timestamp.
type ActivityRecorder interface {
	Touch(ctx context.Context, meetingID uuid.UUID, at time.Time) error
}

// AudioArchive keeps a copy of every drained audio span.
type AudioArchive interface {
	ArchiveSegment(ctx context.Context, meetingID uuid.UUID, at time.Time, audio []byte) error
}
