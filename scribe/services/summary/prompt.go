package summary

import (
	"fmt"
	"strings"

	"scribe/scribe/sources/psql/models"
)

const promptTemplate = `Summarize this meeting transcript into the following sections:

## Key Points
List the main topics and important points discussed.

## Decisions
List any decisions that were made during the meeting.

## Action Items
List specific tasks or action items that were assigned, including who is responsible if mentioned. Use one "- " bullet per item.

## Follow-ups
List any topics that need follow-up or future discussion.

Meeting Transcript:
%s
`

func buildPrompt(transcript string) string {
	return fmt.Sprintf(promptTemplate, transcript)
}

// BuildTranscript joins the non-empty chunk texts in sequence order, one per
// line. chunks must already be sorted by sequence number.
func BuildTranscript(chunks []models.TranscriptChunk) string {
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c.Text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}
