package notify

import (
	"context"

	"github.com/Shivanand-hulikatti/mentor-events/internal/model"
	"github.com/sirupsen/logrus"
)

// LogGateway writes notifications to the structured log. It is the
// default for local development.
type LogGateway struct {
	log logrus.FieldLogger
}

// NewLogGateway returns a gateway that logs through log.
func NewLogGateway(log logrus.FieldLogger) *LogGateway {
	return &LogGateway{log: log.WithField("component", "notify")}
}

// Notify logs n at info level. It never fails.
func (g *LogGateway) Notify(_ context.Context, n model.Notification) error {
	g.log.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"event_id":        n.EventID,
		"recipients":      len(n.Recipients),
		"title":           n.Title,
	}).Info("notification sent")
	return nil
}

// Close is a no-op.
func (g *LogGateway) Close() error { return nil }
