// Package dispatcher drains the notification outbox and hands each queued
// notification to the configured gateway.
package dispatcher

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/Shivanand-hulikatti/mentor-events/internal/repository"
	"github.com/sirupsen/logrus"
)

type sender interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Options tunes the dispatcher. Zero values fall back to the defaults
// shipped in config.
type Options struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	SendTimeout time.Duration
	Now         func() time.Time
}

// Dispatcher polls the outbox on an interval and whenever it is woken.
// A failed send is recorded on the row and retried on a later pass until
// MaxAttempts is reached; it never affects the operation that queued it.
type Dispatcher struct {
	outbox repository.OutboxStore
	sender sender
	opts   Options
	wake   chan struct{}
	log    *logrus.Entry
}

// New builds a Dispatcher reading from outbox and delivering through
// sender. Zero options take their defaults.
func New(outbox repository.OutboxStore, sender sender, opts Options, log logrus.FieldLogger) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		outbox: outbox,
		sender: sender,
		opts:   opts,
		wake:   make(chan struct{}, 1),
		log:    log.WithField("component", "dispatcher"),
	}
}

// Wake requests a pass as soon as possible. It never blocks; wakes that
// arrive while one is already pending are merged.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start runs until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	d.log.WithField("interval", d.opts.Interval).Info("dispatcher started")
	d.DispatchPending(ctx)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopped")
			return
		case <-ticker.C:
			d.DispatchPending(ctx)
		case <-d.wake:
			d.DispatchPending(ctx)
		}
	}
}

// DispatchPending sends one batch of pending notifications and returns
// how many were delivered.
func (d *Dispatcher) DispatchPending(ctx context.Context) int {
	pending, err := d.outbox.Pending(ctx, d.opts.BatchSize, d.opts.MaxAttempts)
	if err != nil {
		if ctx.Err() == nil {
			d.log.WithError(err).Error("load pending notifications")
		}
		return 0
	}

	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		if d.send(ctx, n) {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) send(ctx context.Context, n model.Notification) bool {
	fields := logrus.Fields{
		"notification_id": n.ID,
		"event_id":        n.EventID,
		"attempt":         n.Attempts + 1,
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	err := d.sender.Notify(sendCtx, n)
	cancel()

	if err != nil {
		entry := d.log.WithFields(fields).WithError(err)
		if n.Attempts+1 >= d.opts.MaxAttempts {
			entry.Error("notification dropped after final attempt")
		} else {
			entry.Warn("notification send failed")
		}
		if markErr := d.outbox.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			d.log.WithFields(fields).WithError(markErr).Error("record failed notification")
		}
		return false
	}

	if err := d.outbox.MarkDispatched(ctx, n.ID, d.opts.Now().UTC()); err != nil {
		// The gateway already accepted it; a later pass may send it again.
		d.log.WithFields(fields).WithError(err).Error("record dispatched notification")
	}
	return true
}
