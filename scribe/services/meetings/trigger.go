package meetings

import (
	"context"
	"fmt"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/logging"

	"go.uber.org/zap"
)

// CalendarEvent is an upcoming event that carries a conferencing link.
type CalendarEvent struct {
	ID             string
	Title          string
	ConferenceLink string
	Start          time.Time
	End            *time.Time
}

type CalendarSource interface {
	ListUpcomingConferencedEvents(ctx context.Context, user models.User, window time.Duration) ([]CalendarEvent, error)
}

// CalendarTrigger starts transcription for calendar events that are about to
// begin.
type CalendarTrigger struct {
	users     *dao.UserDAO
	meetings  *dao.MeetingDAO
	lifecycle *Lifecycle
	source    CalendarSource
	policy    config.Policy
}

func NewCalendarTrigger(users *dao.UserDAO, meetings *dao.MeetingDAO, lifecycle *Lifecycle, source CalendarSource, policy config.Policy) *CalendarTrigger {
	return &CalendarTrigger{users: users, meetings: meetings, lifecycle: lifecycle, source: source, policy: policy}
}

func (ct *CalendarTrigger) Run(ctx context.Context) error {
	logging.AppLogger.Info("Calendar trigger started",
		zap.Duration("interval", ct.policy.CalendarPollInterval))

	ticker := time.NewTicker(ct.policy.CalendarPollInterval)
	defer ticker.Stop()
	for {
		ct.Poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one tick over every user with a linked calendar and returns how
// many meetings it started.
func (ct *CalendarTrigger) Poll(ctx context.Context) int {
	users, err := ct.users.ListCalendarUsers(ctx)
	if err != nil {
		logging.ErrorLogger.Error("Calendar poll: list users failed", zap.Error(err))
		return 0
	}
	started := 0
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		n, err := ct.pollUser(ctx, u)
		if err != nil {
			logging.ErrorLogger.Error("Calendar poll failed for user",
				zap.Int("user_id", u.ID), zap.Error(err))
		}
		started += n
	}
	return started
}

func (ct *CalendarTrigger) pollUser(ctx context.Context, u models.User) (started int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	events, err := ct.source.ListUpcomingConferencedEvents(ctx, u, ct.policy.CalendarWindow)
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		if ev.ConferenceLink == "" || ev.ID == "" {
			continue
		}
		ok, err := ct.handleEvent(ctx, u, ev)
		if err != nil {
			logging.ErrorLogger.Error("Calendar event start failed",
				zap.Int("user_id", u.ID), zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		if ok {
			started++
		}
	}
	return started, nil
}

func (ct *CalendarTrigger) handleEvent(ctx context.Context, u models.User, ev CalendarEvent) (bool, error) {
	existing, err := ct.meetings.FindByCalendarEvent(ctx, u.ID, ev.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		eventID := ev.ID
		res, err := ct.lifecycle.CreateAndStart(ctx, JoinRequest{
			UserID:          u.ID,
			ConferenceLink:  ev.ConferenceLink,
			Title:           ev.Title,
			IsManual:        false,
			CalendarEventID: &eventID,
			StartTime:       ev.Start,
			EndTime:         ev.End,
		})
		if err != nil {
			return false, err
		}
		if res.Created {
			logging.AppLogger.Info("Calendar meeting started",
				zap.String("meeting_id", res.Meeting.ID.String()), zap.String("event_id", ev.ID))
		}
		return res.Created, nil
	}

	switch existing.Status {
	case models.StatusScheduled:
		if _, err := ct.lifecycle.Start(ctx, existing.ID); err != nil {
			return false, err
		}
		logging.AppLogger.Info("Scheduled meeting started",
			zap.String("meeting_id", existing.ID.String()), zap.String("event_id", ev.ID))
		return true, nil
	default:
		// active is already running; finalizing and terminal meetings are
		// not restarted by the calendar
		return false, nil
	}
}
