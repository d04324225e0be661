// Package sqlite implements the repository contracts on SQLite
// (modernc.org/sqlite). It is used for local development and tests.
//
// Instants are stored as UTC unix milliseconds. The database must be
// opened with _txlock=immediate (see database.OpenSQLite) so that every
// transaction takes the write lock up front; LockEvent relies on it.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const eventColumns = `id, title, description, location, campus, event_date, start_time, end_time,
	starts_at, ends_at, capacity, attendees_count, status, created_by, created_at, updated_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store is the SQLite-backed repository.Store.
type Store struct {
	db *sql.DB
}

// New constructs a Store on an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Events returns the event store bound to the database.
func (s *Store) Events() repository.EventStore { return &eventStore{db: s.db} }

// Registrations returns the read-side registration store.
func (s *Store) Registrations() repository.RegistrationStore {
	return &registrationStore{db: s.db}
}

// Outbox returns the notification outbox used by the dispatcher.
func (s *Store) Outbox() repository.OutboxStore { return &outboxStore{db: s.db} }

// Close releases the database handle.
func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// WithTx runs fn in a single BEGIN IMMEDIATE transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// ─── Events ──────────────────────────────────────────────────────────────────

type eventStore struct {
	db querier
}

func (r *eventStore) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.Location, e.Campus, e.Date, e.StartTime, e.EndTime,
		millis(e.StartsAt), millis(e.EndsAt), e.Capacity, e.AttendeesCount, string(e.Status), e.CreatedBy,
		millis(e.CreatedAt), millis(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *eventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, id)
}

func (r *eventStore) List(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE status = ?`
	args := []any{string(f.Status)}
	if !f.After.IsZero() {
		query += ` AND starts_at >= ?`
		args = append(args, millis(f.After))
	}
	query += ` ORDER BY starts_at ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func getEvent(ctx context.Context, db querier, id string) (*model.Event, error) {
	e, err := scanEvent(db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e                                      model.Event
		status                                 string
		startsAt, endsAt, createdAt, updatedAt int64
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.Campus, &e.Date, &e.StartTime, &e.EndTime,
		&startsAt, &endsAt, &e.Capacity, &e.AttendeesCount, &status, &e.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Status = model.EventStatus(status)
	e.StartsAt = fromMillis(startsAt)
	e.EndsAt = fromMillis(endsAt)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return &e, nil
}

// ─── Registrations ───────────────────────────────────────────────────────────

type registrationStore struct {
	db querier
}

func (r *registrationStore) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, registrant_id, created_at
		 FROM registrations
		 WHERE event_id = ?
		 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		var reg model.Registration
		var createdAt int64
		if err := rows.Scan(&reg.EventID, &reg.RegistrantID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.CreatedAt = fromMillis(createdAt)
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return regs, nil
}

func (r *registrationStore) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = ?`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// ─── Transaction ─────────────────────────────────────────────────────────────

type txStore struct {
	tx *sql.Tx
}

// LockEvent is a plain read: the immediate transaction already holds the
// database write lock.
func (t *txStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := getEvent(ctx, t.tx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, err
}

func (t *txStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE events
		 SET title = ?, description = ?, location = ?, campus = ?,
		     event_date = ?, start_time = ?, end_time = ?,
		     starts_at = ?, ends_at = ?, capacity = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		e.Title, e.Description, e.Location, e.Campus,
		e.Date, e.StartTime, e.EndTime,
		millis(e.StartsAt), millis(e.EndsAt), e.Capacity, string(e.Status), millis(e.UpdatedAt),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *txStore) RegistrationExists(ctx context.Context, eventID, registrantID string) (bool, error) {
	var exists int
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = ? AND registrant_id = ?)`,
		eventID, registrantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists == 1, nil
}

func (t *txStore) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO registrations (event_id, registrant_id, created_at) VALUES (?, ?, ?)`,
		reg.EventID, reg.RegistrantID, millis(reg.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateRegistration
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (t *txStore) DeleteRegistration(ctx context.Context, eventID, registrantID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM registrations WHERE event_id = ? AND registrant_id = ?`,
		eventID, registrantID,
	)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return n > 0, nil
}

func (t *txStore) ListRegistrants(ctx context.Context, eventID string) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT registrant_id FROM registrations WHERE event_id = ? ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan registrant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrants: %w", err)
	}
	return ids, nil
}

func (t *txStore) IncrementAttendees(ctx context.Context, eventID string) (bool, error) {
	return t.adjustAttendees(ctx,
		`UPDATE events SET attendees_count = attendees_count + 1, updated_at = ?
		 WHERE id = ? AND attendees_count < capacity`,
		eventID,
	)
}

func (t *txStore) DecrementAttendees(ctx context.Context, eventID string) (bool, error) {
	return t.adjustAttendees(ctx,
		`UPDATE events SET attendees_count = attendees_count - 1, updated_at = ?
		 WHERE id = ? AND attendees_count > 0`,
		eventID,
	)
}

func (t *txStore) adjustAttendees(ctx context.Context, query, eventID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, query, millis(time.Now()), eventID)
	if err != nil {
		return false, fmt.Errorf("adjust attendees_count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adjust attendees_count: %w", err)
	}
	return n == 1, nil
}

func (t *txStore) EnqueueNotification(ctx context.Context, n *model.Notification) error {
	recipients, err := json.Marshal(n.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO notification_outbox (id, event_id, recipients, title, body, attempts, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, '', ?)`,
		n.ID, n.EventID, string(recipients), n.Title, n.Body, millis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// ─── Outbox ──────────────────────────────────────────────────────────────────

type outboxStore struct {
	db querier
}

func (o *outboxStore) Pending(ctx context.Context, limit, maxAttempts int) ([]model.Notification, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT id, event_id, recipients, title, body, attempts, last_error, created_at
		 FROM notification_outbox
		 WHERE dispatched_at IS NULL AND attempts < ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n          model.Notification
			recipients string
			createdAt  int64
		)
		if err := rows.Scan(&n.ID, &n.EventID, &recipients, &n.Title, &n.Body, &n.Attempts, &n.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(recipients), &n.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients of %s: %w", n.ID, err)
		}
		n.CreatedAt = fromMillis(createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (o *outboxStore) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if _, err := o.db.ExecContext(ctx,
		`UPDATE notification_outbox SET dispatched_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`,
		millis(at), id,
	); err != nil {
		return fmt.Errorf("mark notification dispatched: %w", err)
	}
	return nil
}

func (o *outboxStore) MarkFailed(ctx context.Context, id string, reason string) error {
	if _, err := o.db.ExecContext(ctx,
		`UPDATE notification_outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		reason, id,
	); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
