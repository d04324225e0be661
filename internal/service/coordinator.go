package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/apperr"
	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"github.com/sirupsen/logrus"
)

// Coordinator admits registrants to events and releases their slots.
//
// Every join and leave runs in one store transaction covering the event row
// and the registration row. No in-process locks are held: correctness comes
// from the store's row lock (or write lock), the unique
// (event_id, registrant_id) index and the guarded counter updates.
type Coordinator struct {
	store repository.Store
	now   func() time.Time
	log   *logrus.Entry
}

// NewCoordinator constructs a Coordinator. A nil now uses time.Now.
func NewCoordinator(store repository.Store, log logrus.FieldLogger, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store: store,
		now:   now,
		log:   log.WithField("component", "coordinator"),
	}
}

// Join takes a slot in the event for registrantID.
//
// Repeating a successful join reports Already instead of failing, and never
// counts the registrant twice. Fails with not_found, not_open,
// already_started or full.
func (c *Coordinator) Join(ctx context.Context, eventID, registrantID string) (model.JoinResult, error) {
	eventID = strings.TrimSpace(eventID)
	registrantID = strings.TrimSpace(registrantID)
	if eventID == "" || registrantID == "" {
		return model.JoinResult{}, apperr.Validation("event id and registrant id are required")
	}

	var result model.JoinResult
	err := c.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = model.JoinResult{}

		// ── Step 1: load and lock the event. ─────────────────────────────
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}

		// ── Step 2: only published, not yet started events admit. ───────
		if event.Status != model.StatusPublished {
			return apperr.ErrNotOpen
		}
		if event.HasStarted(c.now()) {
			return apperr.ErrAlreadyStarted
		}

		// ── Step 3: an existing registration is an idempotent success. ───
		exists, err := tx.RegistrationExists(ctx, eventID, registrantID)
		if err != nil {
			return err
		}
		if exists {
			result = model.JoinResult{Joined: true, Already: true}
			return nil
		}

		// ── Step 4: read-side capacity check. ────────────────────────────
		if event.IsFull() {
			return apperr.ErrFull
		}

		// ── Step 5: insert; the unique index rejects a concurrent twin. ──
		if err := tx.CreateRegistration(ctx, &model.Registration{
			EventID:      eventID,
			RegistrantID: registrantID,
			CreatedAt:    c.now().UTC(),
		}); err != nil {
			return err
		}

		// ── Step 6: guarded increment. Zero rows means another joiner
		// took the last slot after our read; abort everything. ──────────
		incremented, err := tx.IncrementAttendees(ctx, eventID)
		if err != nil {
			return err
		}
		if !incremented {
			return apperr.ErrFull
		}

		result = model.JoinResult{Joined: true}
		return nil
	})

	fields := logrus.Fields{"event_id": eventID, "registrant_id": registrantID}
	switch {
	case errors.Is(err, repository.ErrDuplicateRegistration):
		// Another join by the same registrant committed first.
		c.log.WithFields(fields).Debug("concurrent duplicate join")
		return model.JoinResult{Joined: true, Already: true}, nil
	case err != nil:
		err = apperr.Ensure(err, "join event")
		if apperr.CodeOf(err) == apperr.CodeInternal {
			c.log.WithFields(fields).WithError(err).Error("join failed")
		} else {
			c.log.WithFields(fields).WithField("reason", apperr.CodeOf(err)).Info("join rejected")
		}
		return model.JoinResult{}, err
	}

	c.log.WithFields(fields).WithField("already", result.Already).Info("joined event")
	return result, nil
}

// Leave releases the registrant's slot. Leaving is allowed whatever the
// event status or start time. Leaving without a registration reports
// Left=false.
func (c *Coordinator) Leave(ctx context.Context, eventID, registrantID string) (model.LeaveResult, error) {
	eventID = strings.TrimSpace(eventID)
	registrantID = strings.TrimSpace(registrantID)
	if eventID == "" || registrantID == "" {
		return model.LeaveResult{}, apperr.Validation("event id and registrant id are required")
	}

	var result model.LeaveResult
	err := c.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		result = model.LeaveResult{}

		if _, err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}

		deleted, err := tx.DeleteRegistration(ctx, eventID, registrantID)
		if err != nil {
			return err
		}
		if !deleted {
			return nil
		}

		// The guard only matters if the counter was already out of sync.
		decremented, err := tx.DecrementAttendees(ctx, eventID)
		if err != nil {
			return err
		}
		if !decremented {
			c.log.WithField("event_id", eventID).Warn("attendees_count already zero on leave")
		}

		result.Left = true
		return nil
	})
	fields := logrus.Fields{"event_id": eventID, "registrant_id": registrantID}
	if err != nil {
		err = apperr.Ensure(err, "leave event")
		if apperr.CodeOf(err) == apperr.CodeInternal {
			c.log.WithFields(fields).WithError(err).Error("leave failed")
		}
		return model.LeaveResult{}, err
	}

	c.log.WithFields(fields).WithField("left", result.Left).Info("left event")
	return result, nil
}
