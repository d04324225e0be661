package service

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/database"
	"github.com/Shivanand-hulikatti/mentor-events/internal/logging"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseTime is "now" for every test unless a test moves the clock.
var baseTime = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type countingWaker struct {
	calls atomic.Int32
}

func (w *countingWaker) Wake() { w.calls.Add(1) }

type fixture struct {
	store  repository.Store
	clock  *testClock
	waker  *countingWaker
	events *EventService
	coord  *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPageSize(t, 0)
}

func newFixtureWithPageSize(t *testing.T, pageSize int) *fixture {
	t.Helper()
	log := logging.Discard()

	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "events.db"), log)
	require.NoError(t, err)
	store := sqlite.New(db)
	t.Cleanup(store.Close)

	clock := &testClock{now: baseTime}
	waker := &countingWaker{}
	return &fixture{
		store: store,
		clock: clock,
		waker: waker,
		events: NewEventService(store, log, Options{
			PageSize: pageSize,
			Now:      clock.Now,
			Waker:    waker,
		}),
		coord: NewCoordinator(store, log, clock.Now),
	}
}

func eventRequest(capacity int) model.CreateEventRequest {
	return model.CreateEventRequest{
		Title:       "Resume review night",
		Description: "Bring a printed CV",
		Location:    "Room 101",
		Campus:      "North",
		Date:        "2030-06-10",
		StartTime:   "18:00",
		EndTime:     "20:00",
		Capacity:    capacity,
	}
}

func (f *fixture) createEvent(t *testing.T, capacity int) *model.Event {
	t.Helper()
	event, err := f.events.CreateEvent(context.Background(), eventRequest(capacity), "admin-1")
	require.NoError(t, err)
	return event
}

// assertInvariant checks that the stored counter matches the live
// registrations and stays within capacity.
func (f *fixture) assertInvariant(t *testing.T, eventID string) *model.Event {
	t.Helper()
	ctx := context.Background()

	event, err := f.store.Events().GetByID(ctx, eventID)
	require.NoError(t, err)
	live, err := f.store.Registrations().CountByEvent(ctx, eventID)
	require.NoError(t, err)

	assert.Equal(t, live, event.AttendeesCount, "attendees_count must equal live registrations")
	assert.GreaterOrEqual(t, event.AttendeesCount, 0)
	assert.LessOrEqual(t, event.AttendeesCount, event.Capacity)
	return event
}

func (f *fixture) registrants(t *testing.T, eventID string) []string {
	t.Helper()
	regs, err := f.events.ListRegistrations(context.Background(), eventID)
	require.NoError(t, err)
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.RegistrantID)
	}
	return ids
}
