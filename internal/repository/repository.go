// Package repository declares the persistence contracts for events,
// registrations and the notification outbox. The postgres and sqlite
// subpackages implement them.
package repository

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/apperr"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
)

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = apperr.New(apperr.CodeNotFound, "event not found")

// ErrDuplicateRegistration is returned when the (event, registrant) pair
// already exists. It is raised from the storage unique constraint.
var ErrDuplicateRegistration = apperr.New(apperr.CodeConflict, "registrant already holds a slot in this event")

// EventFilter selects a page of events ordered by start time. A zero
// After disables the upcoming-only restriction.
type EventFilter struct {
	Status model.EventStatus
	After  time.Time
	Limit  int
	Offset int
}

// EventStore reads and creates events outside of a coordinated transaction.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, f EventFilter) ([]model.Event, error)
}

// RegistrationStore reads registrations outside of a transaction.
type RegistrationStore interface {
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	CountByEvent(ctx context.Context, eventID string) (int, error)
}

// OutboxStore is used by the dispatcher to drain queued notifications.
type OutboxStore interface {
	// Pending returns undispatched notifications with fewer than
	// maxAttempts attempts, oldest first.
	Pending(ctx context.Context, limit, maxAttempts int) ([]model.Notification, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// Tx is the set of operations that run inside one store transaction.
// LockEvent must prevent concurrent writers from modifying the event until
// the transaction ends.
type Tx interface {
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event) error

	RegistrationExists(ctx context.Context, eventID, registrantID string) (bool, error)
	CreateRegistration(ctx context.Context, reg *model.Registration) error
	DeleteRegistration(ctx context.Context, eventID, registrantID string) (bool, error)
	ListRegistrants(ctx context.Context, eventID string) ([]string, error)

	// IncrementAttendees adds one attendee only while attendees_count is
	// below capacity and reports whether the row changed.
	IncrementAttendees(ctx context.Context, eventID string) (bool, error)
	// DecrementAttendees removes one attendee only while attendees_count
	// is above zero and reports whether the row changed.
	DecrementAttendees(ctx context.Context, eventID string) (bool, error)

	EnqueueNotification(ctx context.Context, n *model.Notification) error
}

// Store groups the stores and runs transactions.
//
// WithTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Events() EventStore
	Registrations() RegistrationStore
	Outbox() OutboxStore
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close()
}
