package meetings

import "errors"

var (
	ErrMeetingNotFound  = errors.New("meeting not found")
	ErrMeetingNotActive = errors.New("meeting is not active")
	// ErrSummaryNotReady is returned for a summary retry on a meeting that
	// has not been stopped yet.
	ErrSummaryNotReady = errors.New("summary not ready")
	ErrMissingLink     = errors.New("conferencing link is required")
)
