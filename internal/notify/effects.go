package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Effect is a side effect requested by a report lifecycle operation.
type Effect interface {
	effect()
}

// Send asks for a notification to UserID about ReportID.
type Send struct {
	UserID   string
	ReportID string
	Message  string
}

// Purge asks for every notification about ReportID to be removed.
type Purge struct {
	ReportID string
}

func (Send) effect()  {}
func (Purge) effect() {}

// Dispatcher applies effects to a Store in order.
type Dispatcher struct {
	Store *Store
	Log   logrus.FieldLogger
}

// Apply applies effects in order and stops at the first failure.
func (d *Dispatcher) Apply(ctx context.Context, effects []Effect) error {
	for _, e := range effects {
		switch e := e.(type) {
		case Send:
			if e.UserID == "" {
				continue
			}
			if _, err := d.Store.Create(ctx, e.UserID, e.ReportID, e.Message); err != nil {
				return fmt.Errorf("notifying %s: %w", e.UserID, err)
			}
		case Purge:
			n, err := d.Store.DeleteForReport(ctx, e.ReportID)
			if err != nil {
				return fmt.Errorf("purging notifications for %s: %w", e.ReportID, err)
			}
			d.Log.WithFields(logrus.Fields{"report": e.ReportID, "removed": n}).Debug("notifications purged")
		default:
			return fmt.Errorf("unknown effect %T", e)
		}
	}
	return nil
}
