// Package service implements event lifecycle rules and the capacity
// coordinator that admits registrants to events.
package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/apperr"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	maxCapacity     = 100_000
	defaultPageSize = 200
)

// Waker is notified after a transaction that queued notifications commits.
type Waker interface {
	Wake()
}

// Options tunes an EventService. Zero values fall back to UTC, a page of
// 200 events and time.Now.
type Options struct {
	Location *time.Location
	PageSize int
	Now      func() time.Time
	Waker    Waker
}

// EventService manages event creation, updates, cancellation and the
// admin-facing registrant operations.
type EventService struct {
	store    repository.Store
	loc      *time.Location
	pageSize int
	now      func() time.Time
	waker    Waker
	log      *logrus.Entry
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(store repository.Store, log logrus.FieldLogger, opts Options) *EventService {
	s := &EventService{
		store:    store,
		loc:      opts.Location,
		pageSize: opts.PageSize,
		now:      opts.Now,
		waker:    opts.Waker,
		log:      log.WithField("component", "event_service"),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateEvent validates the request and persists a new published (or
// explicitly cancelled) event owned by organizer.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest, organizer string) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Campus = strings.TrimSpace(req.Campus)

	switch {
	case req.Title == "":
		return nil, apperr.Validation("title is required")
	case req.Location == "":
		return nil, apperr.Validation("location is required")
	case req.Campus == "":
		return nil, apperr.Validation("campus is required")
	}
	if err := validateCapacity(req.Capacity); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = model.StatusPublished
	}
	if !req.Status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("status must be %q or %q", model.StatusPublished, model.StatusCancelled))
	}

	now := s.now().UTC()
	startsAt, endsAt, err := s.schedule(req.Date, req.StartTime, req.EndTime, now)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Campus:      req.Campus,
		Date:        req.Date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Capacity:    req.Capacity,
		Status:      req.Status,
		CreatedBy:   organizer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Events().Create(ctx, event); err != nil {
		return nil, apperr.Internal("create event", err)
	}

	s.log.WithFields(logrus.Fields{
		"event_id":  event.ID,
		"capacity":  event.Capacity,
		"starts_at": event.StartsAt,
	}).Info("event created")
	return event, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("event id is required")
	}
	event, err := s.store.Events().GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Ensure(err, "get event")
	}
	return event, nil
}

// ListEvents returns one page of events with the requested status ordered
// by start time. Page numbers start at 1.
func (s *EventService) ListEvents(ctx context.Context, q model.ListEventsQuery) ([]model.Event, error) {
	if q.Status == "" {
		q.Status = model.StatusPublished
	}
	if !q.Status.Valid() {
		return nil, apperr.Validation("unknown status filter")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page-1 > math.MaxInt/s.pageSize {
		return nil, apperr.Validation("page is out of range")
	}

	filter := repository.EventFilter{
		Status: q.Status,
		Limit:  s.pageSize,
		Offset: (q.Page - 1) * s.pageSize,
	}
	if q.UpcomingOnly {
		filter.After = s.now().UTC()
	}

	events, err := s.store.Events().List(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("list events", err)
	}
	return events, nil
}

// UpdateEvent applies a partial update under the event row lock. Touching
// the date or either time re-derives and re-validates the schedule.
// Capacity may not drop below the current attendee count.
func (s *EventService) UpdateEvent(ctx context.Context, id string, req model.UpdateEventRequest) (*model.Event, error) {
	var updated *model.Event
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		if err := applyText(&event.Title, req.Title, "title", true); err != nil {
			return err
		}
		if err := applyText(&event.Description, req.Description, "description", false); err != nil {
			return err
		}
		if err := applyText(&event.Location, req.Location, "location", true); err != nil {
			return err
		}
		if err := applyText(&event.Campus, req.Campus, "campus", true); err != nil {
			return err
		}

		if req.Capacity != nil {
			if err := validateCapacity(*req.Capacity); err != nil {
				return err
			}
			if *req.Capacity < event.AttendeesCount {
				return apperr.Validation(fmt.Sprintf(
					"capacity cannot be lower than the %d registrants already holding a slot", event.AttendeesCount))
			}
			event.Capacity = *req.Capacity
		}

		if req.TouchesSchedule() {
			if req.Date != nil {
				event.Date = *req.Date
			}
			if req.StartTime != nil {
				event.StartTime = *req.StartTime
			}
			if req.EndTime != nil {
				event.EndTime = *req.EndTime
			}
			event.StartsAt, event.EndsAt, err = s.schedule(event.Date, event.StartTime, event.EndTime, now)
			if err != nil {
				return err
			}
		}

		event.UpdatedAt = now
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, apperr.Ensure(err, "update event")
	}
	s.log.WithField("event_id", updated.ID).Info("event updated")
	return updated, nil
}

// CancelEvent moves the event to cancelled. Registrations and the attendee
// count are left as they are. Current registrants are notified through the
// outbox. Cancelling a cancelled event returns it unchanged.
func (s *EventService) CancelEvent(ctx context.Context, id string) (*model.Event, error) {
	var (
		cancelled *model.Event
		queued    int
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, id)
		if err != nil {
			return err
		}
		cancelled = event
		if event.Status == model.StatusCancelled {
			return nil
		}

		now := s.now().UTC()
		event.Status = model.StatusCancelled
		event.UpdatedAt = now
		if err := tx.UpdateEvent(ctx, event); err != nil {
			return err
		}

		queued, err = s.enqueue(ctx, tx, event,
			"Event cancelled: "+event.Title,
			fmt.Sprintf("%s on %s at %s has been cancelled.", event.Title, event.Date, event.StartTime),
			now,
		)
		return err
	})
	if err != nil {
		return nil, apperr.Ensure(err, "cancel event")
	}
	if queued > 0 {
		s.wake()
	}
	s.log.WithField("event_id", cancelled.ID).Info("event cancelled")
	return cancelled, nil
}

// ListRegistrations returns the registrations of an event, oldest first.
func (s *EventService) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.store.Registrations().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperr.Internal("list registrations", err)
	}
	return regs, nil
}

// SendReminder queues a reminder to everyone registered for the event.
// Empty title or body are derived from the event.
func (s *EventService) SendReminder(ctx context.Context, eventID string, req model.ReminderRequest) (model.ReminderResult, error) {
	var result model.ReminderResult
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status != model.StatusPublished {
			return apperr.New(apperr.CodeNotOpen, "event is cancelled")
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = "Reminder: " + event.Title
		}
		body := strings.TrimSpace(req.Body)
		if body == "" {
			body = fmt.Sprintf("%s starts on %s at %s (%s, %s).",
				event.Title, event.Date, event.StartTime, event.Location, event.Campus)
		}

		result.Recipients, err = s.enqueue(ctx, tx, event, title, body, s.now().UTC())
		return err
	})
	if err != nil {
		return model.ReminderResult{}, apperr.Ensure(err, "send reminder")
	}
	if result.Recipients > 0 {
		s.wake()
	}
	s.log.WithFields(logrus.Fields{
		"event_id":   eventID,
		"recipients": result.Recipients,
	}).Info("reminder queued")
	return result, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// enqueue writes one outbox notification addressed to every current
// registrant and returns how many there were.
func (s *EventService) enqueue(ctx context.Context, tx repository.Tx, event *model.Event, title, body string, now time.Time) (int, error) {
	registrants, err := tx.ListRegistrants(ctx, event.ID)
	if err != nil {
		return 0, err
	}
	if len(registrants) == 0 {
		return 0, nil
	}
	if err := tx.EnqueueNotification(ctx, newNotification(event.ID, registrants, title, body, now)); err != nil {
		return 0, err
	}
	return len(registrants), nil
}

func (s *EventService) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}

// schedule derives start/end instants and checks that the event starts
// after now and ends after it starts.
func (s *EventService) schedule(date, startTime, endTime string, now time.Time) (time.Time, time.Time, error) {
	startsAt, endsAt, err := model.ParseSchedule(date, startTime, endTime, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation(err.Error())
	}
	if !startsAt.After(now) {
		return time.Time{}, time.Time{}, apperr.Validation("event must be in the future")
	}
	if !endsAt.After(startsAt) {
		return time.Time{}, time.Time{}, apperr.Validation("endTime must be after startTime")
	}
	return startsAt.UTC(), endsAt.UTC(), nil
}

func validateCapacity(capacity int) error {
	if capacity < 1 {
		return apperr.Validation("capacity must be at least 1")
	}
	if capacity > maxCapacity {
		return apperr.Validation("capacity cannot exceed 100,000")
	}
	return nil
}

func applyText(dst *string, src *string, field string, required bool) error {
	if src == nil {
		return nil
	}
	v := strings.TrimSpace(*src)
	if required && v == "" {
		return apperr.Validation(field + " cannot be empty")
	}
	*dst = v
	return nil
}

func newNotification(eventID string, recipients []string, title, body string, now time.Time) *model.Notification {
	return &model.Notification{
		ID:         uuid.New().String(),
		EventID:    eventID,
		Recipients: recipients,
		Title:      title,
		Body:       body,
		CreatedAt:  now,
	}
}
