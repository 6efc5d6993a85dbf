package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"scribe/scribe/config"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChunkSource interface {
	ListChunks(ctx context.Context, meetingID uuid.UUID) ([]models.TranscriptChunk, error)
}

type Store interface {
	UpsertMeetingSummary(ctx context.Context, s *models.MeetingSummary) error
	GetByMeetingID(ctx context.Context, meetingID uuid.UUID) (*models.MeetingSummary, error)
}

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator builds a meeting's summary from its persisted transcript.
type Generator struct {
	chunks  ChunkSource
	store   Store
	llm     Completer
	policy  config.Policy
	metrics *metrics.Metrics
}

func NewGenerator(chunks ChunkSource, store Store, llm Completer, policy config.Policy, m *metrics.Metrics) *Generator {
	return &Generator{chunks: chunks, store: store, llm: llm, policy: policy, metrics: m}
}

// Generate returns the meeting's summary, creating it when needed. Without
// retry an existing summary, available or not, is returned untouched; with
// retry the completion runs again and overwrites it.
//
// On completion failure the summary is still stored with the full transcript
// and summary_unavailable set, and the returned error wraps
// ErrSummaryUnavailable alongside that row.
func (g *Generator) Generate(ctx context.Context, meetingID uuid.UUID, retry bool) (*models.MeetingSummary, error) {
	defer logging.LogDuration(ctx, "summary_generate", zap.String("meeting_id", meetingID.String()))()

	if !retry {
		existing, err := g.store.GetByMeetingID(ctx, meetingID)
		if err != nil {
			return nil, fmt.Errorf("load summary: %w", err)
		}
		if existing != nil {
			g.metrics.SummariesTotal.WithLabelValues("cached").Inc()
			return existing, nil
		}
	}

	chunks, err := g.chunks.ListChunks(ctx, meetingID)
	if err != nil {
		// the meeting is already finalizing, so it still gets a row the user can retry
		return g.storeUnavailable(ctx, &models.MeetingSummary{MeetingID: meetingID},
			fmt.Errorf("load transcript: %w", err))
	}
	transcript := BuildTranscript(chunks)
	if utf8.RuneCountInString(strings.TrimSpace(transcript)) < g.policy.MinTranscriptChars {
		g.metrics.SummariesTotal.WithLabelValues("too_short").Inc()
		return nil, ErrTranscriptTooShort
	}

	row := &models.MeetingSummary{
		MeetingID:      meetingID,
		FullTranscript: transcript,
	}

	text, cerr := g.complete(ctx, meetingID, buildPrompt(transcript))
	if cerr != nil {
		return g.storeUnavailable(ctx, row, cerr)
	}
	sections := Parse(text)
	row.KeyPoints = optional(sections.KeyPoints)
	row.Decisions = optional(sections.Decisions)
	row.FollowUps = optional(sections.FollowUps)
	row.ActionItems = sections.ActionItems
	if row.ActionItems == nil {
		row.ActionItems = []string{}
	}

	if err := g.upsert(ctx, row); err != nil {
		return nil, err
	}
	g.metrics.SummariesTotal.WithLabelValues("ok").Inc()
	logging.AppLogger.Info("Generated summary",
		zap.String("meeting_id", meetingID.String()),
		zap.Int("transcript_len", len(transcript)),
		zap.Int("action_items", len(row.ActionItems)),
	)
	return row, nil
}

// storeUnavailable persists row flagged unavailable with cause as its error
// message and returns it with an error wrapping ErrSummaryUnavailable.
func (g *Generator) storeUnavailable(ctx context.Context, row *models.MeetingSummary, cause error) (*models.MeetingSummary, error) {
	msg := cause.Error()
	row.SummaryUnavailable = true
	row.ErrorMessage = &msg
	if err := g.upsert(ctx, row); err != nil {
		return nil, err
	}
	g.metrics.SummariesTotal.WithLabelValues("unavailable").Inc()
	logging.ErrorLogger.Error("Summary unavailable",
		zap.String("meeting_id", row.MeetingID.String()), zap.Error(cause))
	return row, fmt.Errorf("%w: %v", ErrSummaryUnavailable, cause)
}

func (g *Generator) upsert(ctx context.Context, row *models.MeetingSummary) error {
	// the write must land even if the caller gave up on the completion
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := g.store.UpsertMeetingSummary(storeCtx, row); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

func (g *Generator) complete(ctx context.Context, meetingID uuid.UUID, prompt string) (string, error) {
	attempts := g.policy.CompletionAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		text, err := g.completeOnce(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		logging.ErrorLogger.Warn("Completion attempt failed",
			zap.String("meeting_id", meetingID.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return "", lastErr
}

func (g *Generator) completeOnce(ctx context.Context, prompt string) (string, error) {
	actx := ctx
	if g.policy.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.policy.CompletionTimeout)
		defer cancel()
	}
	start := time.Now()
	text, err := g.llm.Complete(actx, prompt)
	g.metrics.CompletionSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("completion timed out after %s: %w", g.policy.CompletionTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
