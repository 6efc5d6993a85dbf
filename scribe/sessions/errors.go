package sessions

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyActive = errors.New("session already active")
	ErrSessionStopped       = errors.New("session stopped")
)

// TranscriptionError is a failed transcription pass. It is retryable until
// the session's consecutive failure budget runs out.
type TranscriptionError struct {
	MeetingID uuid.UUID
	Attempt   int
	Err       error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed for meeting %s (attempt %d): %v", e.MeetingID, e.Attempt, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}
