// Package postgres implements the repository contracts on PostgreSQL using
// pgx directly (no ORM).
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const eventColumns = `id, title, description, location, campus, event_date, start_time, end_time,
	starts_at, ends_at, capacity, attendees_count, status, created_by, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed repository.Store.
type Store struct {
	db *pgxpool.Pool
}

// New constructs a Store on an open pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Events returns the event store bound to the pool.
func (s *Store) Events() repository.EventStore { return &eventStore{db: s.db} }

// Registrations returns the read-side registration store.
func (s *Store) Registrations() repository.RegistrationStore { return &registrationStore{db: s.db} }

// Outbox returns the notification outbox used by the dispatcher.
func (s *Store) Outbox() repository.OutboxStore { return &outboxStore{db: s.db} }

// Close releases the pool.
func (s *Store) Close() { s.db.Close() }

// WithTx runs fn in a READ COMMITTED transaction. Isolation against
// concurrent joiners comes from the row lock taken by LockEvent and from
// the guarded counter updates, not from the isolation level.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

type eventStore struct {
	db querier
}

func (r *eventStore) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		e.ID, e.Title, e.Description, e.Location, e.Campus, e.Date, e.StartTime, e.EndTime,
		e.StartsAt, e.EndsAt, e.Capacity, e.AttendeesCount, string(e.Status), e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *eventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
}

func (r *eventStore) List(ctx context.Context, f repository.EventFilter) ([]model.Event, error) {
	var after *time.Time
	if !f.After.IsZero() {
		after = &f.After
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = $1 AND ($2::timestamptz IS NULL OR starts_at >= $2)
		 ORDER BY starts_at ASC, id ASC
		 LIMIT $3 OFFSET $4`,
		string(f.Status), after, f.Limit, f.Offset,
	)
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
	return events, rows.Err()
}

func getEvent(ctx context.Context, db querier, query string, id string) (*model.Event, error) {
	e, err := scanEvent(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	var status string
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location, &e.Campus, &e.Date, &e.StartTime, &e.EndTime,
		&e.StartsAt, &e.EndsAt, &e.Capacity, &e.AttendeesCount, &status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	e.Status = model.EventStatus(status)
	e.StartsAt = e.StartsAt.UTC()
	e.EndsAt = e.EndsAt.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

// ─── Registrations ───────────────────────────────────────────────────────────

type registrationStore struct {
	db querier
}

func (r *registrationStore) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_id, registrant_id, created_at
		 FROM registrations
		 WHERE event_id = $1
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
		if err := rows.Scan(&reg.EventID, &reg.RegistrantID, &reg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		reg.CreatedAt = reg.CreatedAt.UTC()
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *registrationStore) CountByEvent(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

// ─── Transaction ─────────────────────────────────────────────────────────────

type txStore struct {
	tx pgx.Tx
}

// LockEvent reads the event with SELECT … FOR UPDATE. Concurrent joiners
// for the same event block here until this transaction ends.
func (t *txStore) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := getEvent(ctx, t.tx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return e, err
}

func (t *txStore) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET title = $2, description = $3, location = $4, campus = $5,
		     event_date = $6, start_time = $7, end_time = $8,
		     starts_at = $9, ends_at = $10, capacity = $11, status = $12, updated_at = $13
		 WHERE id = $1`,
		e.ID, e.Title, e.Description, e.Location, e.Campus,
		e.Date, e.StartTime, e.EndTime,
		e.StartsAt, e.EndsAt, e.Capacity, string(e.Status), e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *txStore) RegistrationExists(ctx context.Context, eventID, registrantID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1 AND registrant_id = $2)`,
		eventID, registrantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

func (t *txStore) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (event_id, registrant_id, created_at) VALUES ($1, $2, $3)`,
		reg.EventID, reg.RegistrantID, reg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicateRegistration
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (t *txStore) DeleteRegistration(ctx context.Context, eventID, registrantID string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM registrations WHERE event_id = $1 AND registrant_id = $2`,
		eventID, registrantID,
	)
	if err != nil {
		return false, fmt.Errorf("delete registration: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txStore) ListRegistrants(ctx context.Context, eventID string) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT registrant_id FROM registrations WHERE event_id = $1 ORDER BY created_at ASC, id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan registrants: %w", err)
	}
	return ids, nil
}

func (t *txStore) IncrementAttendees(ctx context.Context, eventID string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET attendees_count = attendees_count + 1, updated_at = $2
		 WHERE id = $1 AND attendees_count < capacity`,
		eventID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("increment attendees_count: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txStore) DecrementAttendees(ctx context.Context, eventID string) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET attendees_count = attendees_count - 1, updated_at = $2
		 WHERE id = $1 AND attendees_count > 0`,
		eventID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("decrement attendees_count: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txStore) EnqueueNotification(ctx context.Context, n *model.Notification) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO notification_outbox (id, event_id, recipients, title, body, attempts, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, '', $6)`,
		n.ID, n.EventID, n.Recipients, n.Title, n.Body, n.CreatedAt,
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
	rows, err := o.db.Query(ctx,
		`SELECT id, event_id, recipients, title, body, attempts, last_error, created_at
		 FROM notification_outbox
		 WHERE dispatched_at IS NULL AND attempts < $1
		 ORDER BY created_at ASC, id ASC
		 LIMIT $2`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.Recipients, &n.Title, &n.Body, &n.Attempts, &n.LastError, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}

func (o *outboxStore) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	if _, err := o.db.Exec(ctx,
		`UPDATE notification_outbox SET dispatched_at = $2, attempts = attempts + 1, last_error = '' WHERE id = $1`,
		id, at,
	); err != nil {
		return fmt.Errorf("mark notification dispatched: %w", err)
	}
	return nil
}

func (o *outboxStore) MarkFailed(ctx context.Context, id string, reason string) error {
	if _, err := o.db.Exec(ctx,
		`UPDATE notification_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
		id, reason,
	); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
