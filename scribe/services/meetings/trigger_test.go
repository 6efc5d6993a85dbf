package meetings

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendar struct {
	events map[int][]CalendarEvent
	errs   map[int]error
	panics map[int]bool
}

func (f *fakeCalendar) ListUpcomingConferencedEvents(ctx context.Context, u models.User, window time.Duration) ([]CalendarEvent, error) {
	if f.panics[u.ID] {
		panic("calendar client exploded")
	}
	if err := f.errs[u.ID]; err != nil {
		return nil, err
	}
	return f.events[u.ID], nil
}

func linkCalendar(t *testing.T, users *dao.UserDAO, id int) {
	t.Helper()
	require.NoError(t, users.UpdateGoogleToken(context.Background(), id, "token", "refresh", time.Now().Add(time.Hour)))
}

func TestCalendarTrigger_Poll(t *testing.T) {
	e := newEnv(t, helloEngine(), goodCompletion)
	ctx := context.Background()
	users := dao.NewUserDAO(e.db)

	bob, err := users.CreateUser(ctx, "bob", "bob@example.com", nil)
	require.NoError(t, err)
	carol, err := users.CreateUser(ctx, "carol", "carol@example.com", nil)
	require.NoError(t, err)
	for _, id := range []int{e.user.ID, bob.ID, carol.ID} {
		linkCalendar(t, users, id)
	}

	start := time.Now().Add(30 * time.Second).UTC()
	cal := &fakeCalendar{
		events: map[int][]CalendarEvent{
			e.user.ID: {
				{ID: "ev-1", Title: "Planning", ConferenceLink: "https://meet.google.com/plan", Start: start},
				{ID: "ev-nolink", Title: "Lunch", Start: start},
			},
		},
		errs:   map[int]error{bob.ID: errors.New("token expired")},
		panics: map[int]bool{carol.ID: true},
	}
	trigger := NewCalendarTrigger(users, e.meetings, e.lifecycle, cal, e.policy)

	assert.Equal(t, 1, trigger.Poll(ctx))
	m, err := e.meetings.FindByCalendarEvent(ctx, e.user.ID, "ev-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.StatusActive, m.Status)
	assert.False(t, m.IsManual)
	assert.Equal(t, "Planning", m.Title)
	_, err = e.lifecycle.Session(m.ID)
	assert.NoError(t, err)

	assert.Zero(t, trigger.Poll(ctx), "an active meeting is left alone")
	assert.Equal(t, 1, e.registry.Len())
}

func TestCalendarTrigger_StartsScheduledAndSkipsFinished(t *testing.T) {
	e := newEnv(t, helloEngine(), goodCompletion)
	ctx := context.Background()
	users := dao.NewUserDAO(e.db)
	linkCalendar(t, users, e.user.ID)

	scheduledEvent, doneEvent := "ev-sched", "ev-done"
	now := time.Now().UTC()
	scheduled := &models.Meeting{
		UserID: e.user.ID, CalendarEventID: &scheduledEvent, ConferenceLink: "https://meet.google.com/s",
		Title: "Scheduled", StartTime: now, Status: models.StatusScheduled, LastActivity: now.Add(-time.Hour),
	}
	finished := &models.Meeting{
		UserID: e.user.ID, CalendarEventID: &doneEvent, ConferenceLink: "https://meet.google.com/d",
		Title: "Done", StartTime: now, Status: models.StatusCompleted, LastActivity: now,
	}
	require.NoError(t, e.meetings.CreateMeeting(ctx, scheduled))
	require.NoError(t, e.meetings.CreateMeeting(ctx, finished))

	cal := &fakeCalendar{events: map[int][]CalendarEvent{
		e.user.ID: {
			{ID: scheduledEvent, ConferenceLink: "https://meet.google.com/s", Start: now},
			{ID: doneEvent, ConferenceLink: "https://meet.google.com/d", Start: now},
		},
	}}
	trigger := NewCalendarTrigger(users, e.meetings, e.lifecycle, cal, e.policy)

	assert.Equal(t, 1, trigger.Poll(ctx))
	got, err := e.meetings.GetMeetingByID(ctx, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.WithinDuration(t, time.Now(), got.LastActivity, time.Minute, "activation resets the grace period")
	assert.Equal(t, models.StatusCompleted, e.status(t, finished.ID))
	assert.Equal(t, 1, e.registry.Len())
}

func TestCalendarTrigger_RunStopsOnCancel(t *testing.T) {
	e := newEnv(t, helloEngine(), goodCompletion)
	e.policy.CalendarPollInterval = 10 * time.Millisecond
	users := dao.NewUserDAO(e.db)
	trigger := NewCalendarTrigger(users, e.meetings, e.lifecycle, &fakeCalendar{}, e.policy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- trigger.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("trigger did not exit")
	}
}
