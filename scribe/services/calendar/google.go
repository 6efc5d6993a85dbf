package calendar

import (
	"context"
	"fmt"
	"time"

	"scribe/scribe/services/meetings"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// TokenStore persists refreshed credentials back to the user row.
type TokenStore interface {
	UpdateGoogleToken(ctx context.Context, userID int, accessToken, refreshToken string, expiry time.Time) error
}

// Google lists a user's upcoming events from their primary Google calendar.
type Google struct {
	oauth  *oauth2.Config
	tokens TokenStore
	opts   []option.ClientOption
	now    func() time.Time
}

func NewGoogle(clientID, clientSecret string, tokens TokenStore) *Google {
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gcal.CalendarReadonlyScope},
		},
		tokens: tokens,
		now:    time.Now,
	}
}

func (g *Google) ListUpcomingConferencedEvents(ctx context.Context, user models.User, window time.Duration) ([]meetings.CalendarEvent, error) {
	if !user.HasCalendar() {
		return nil, nil
	}
	defer logging.LogDuration(ctx, "calendar_list_events", zap.Int("user_id", user.ID))()

	tok := &oauth2.Token{AccessToken: *user.GoogleAccessToken}
	if user.GoogleRefreshToken != nil {
		tok.RefreshToken = *user.GoogleRefreshToken
	}
	if user.GoogleTokenExpiry != nil {
		tok.Expiry = *user.GoogleTokenExpiry
	}
	ts := g.oauth.TokenSource(ctx, tok)

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	now := g.now().UTC()
	list, err := svc.Events.List("primary").
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(window).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	g.persistRefreshed(ctx, user, tok, ts)

	var out []meetings.CalendarEvent
	for _, ev := range list.Items {
		link := ConferenceLink(ev)
		if link == "" || ev.Start == nil || ev.Start.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			logging.ErrorLogger.Warn("Skipping event with bad start time",
				zap.String("event_id", ev.Id), zap.Error(err))
			continue
		}
		ce := meetings.CalendarEvent{
			ID:             ev.Id,
			Title:          ev.Summary,
			ConferenceLink: link,
			Start:          start.UTC(),
		}
		if ev.End != nil && ev.End.DateTime != "" {
			if end, err := time.Parse(time.RFC3339, ev.End.DateTime); err == nil {
				end = end.UTC()
				ce.End = &end
			}
		}
		out = append(out, ce)
	}
	return out, nil
}

func (g *Google) persistRefreshed(ctx context.Context, user models.User, old *oauth2.Token, ts oauth2.TokenSource) {
	cur, err := ts.Token()
	if err != nil || cur.AccessToken == old.AccessToken {
		return
	}
	if err := g.tokens.UpdateGoogleToken(ctx, user.ID, cur.AccessToken, cur.RefreshToken, cur.Expiry); err != nil {
		logging.ErrorLogger.Warn("Failed to persist refreshed calendar token",
			zap.Int("user_id", user.ID), zap.Error(err))
		return
	}
	logging.AppLogger.Info("Calendar token refreshed", zap.Int("user_id", user.ID))
}

// ConferenceLink returns the Meet link or the first video entry point.
func ConferenceLink(ev *gcal.Event) string {
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return ""
}
