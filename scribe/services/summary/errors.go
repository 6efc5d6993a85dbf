package summary

import "errors"

var (
	// ErrTranscriptTooShort means there is not enough text to summarize.
	// No summary row is written.
	ErrTranscriptTooShort = errors.New("transcript too short to summarize")

	// ErrSummaryUnavailable wraps the completion failure. The stored summary
	// keeps the transcript and is flagged unavailable.
	ErrSummaryUnavailable = errors.New("summary unavailable")
)
