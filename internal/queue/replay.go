package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/report"
)

// Target receives replayed entries. *report.Service satisfies it.
type Target interface {
	Create(ctx context.Context, draft model.Draft, submittedBy string) (*model.Report, error)
	Update(ctx context.Context, id string, data json.RawMessage) (*model.Report, error)
}

// Result summarises one drain.
type Result struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Dropped int      `json:"dropped"`
	Pending Pending  `json:"pending"`
}

// Replayer drains the offline FIFOs into a Target.
type Replayer struct {
	queue  *Queue
	target Target
	log    logrus.FieldLogger
}

// NewReplayer returns a Replayer for q.
func NewReplayer(q *Queue, target Target, log logrus.FieldLogger) *Replayer {
	return &Replayer{queue: q, target: target, log: log}
}

// Drain replays queued reports, then queued edits, each in FIFO order.
// Replay stops at the first entry that fails; it and everything behind it
// stay queued for the next drain. Entries the target rejects as invalid and
// edits whose report no longer exists are dropped with a warning.
// Reports go first so that edits made offline to reports created offline
// can never overtake them.
func (r *Replayer) Drain(ctx context.Context) (Result, error) {
	q := r.queue
	q.mu.Lock()
	defer q.mu.Unlock()

	res := Result{Created: []string{}, Updated: []string{}}

	reports, err := q.reports(ctx)
	if err != nil {
		return res, err
	}
	done := 0
	var replayErr error
	for _, entry := range reports {
		created, err := r.target.Create(ctx, entry.Draft, entry.SubmittedBy)
		if err != nil && saved(created, err) {
			r.log.WithError(err).WithField("report", created.ID).Warn("offline report saved but notifications failed")
			err = nil
		}
		if errors.Is(err, report.ErrInvalid) {
			r.log.WithError(err).WithField("type", entry.Type).Warn("dropping invalid offline report")
			res.Dropped++
			done++
			continue
		}
		if err != nil {
			replayErr = fmt.Errorf("replaying offline report: %w", err)
			break
		}
		res.Created = append(res.Created, created.ID)
		done++
	}
	if err := storeRest(ctx, q.kv, kv.KeyOfflineReports, reports[done:]); err != nil {
		return res, errors.Join(replayErr, err)
	}
	res.Pending.Reports = len(reports) - done

	edits, err := q.edits(ctx)
	if err != nil {
		return res, errors.Join(replayErr, err)
	}
	if replayErr != nil {
		res.Pending.Edits = len(edits)
		return res, replayErr
	}

	done = 0
	for _, edit := range edits {
		updated, err := r.target.Update(ctx, edit.ReportID, edit.UpdatedData)
		if err != nil && saved(updated, err) {
			r.log.WithError(err).WithField("report", updated.ID).Warn("offline edit saved but notifications failed")
			err = nil
		}
		if errors.Is(err, report.ErrInvalid) {
			r.log.WithError(err).WithField("report", edit.ReportID).Warn("dropping invalid offline edit")
			res.Dropped++
			done++
			continue
		}
		if err != nil {
			replayErr = fmt.Errorf("replaying offline edit of %s: %w", edit.ReportID, err)
			break
		}
		if updated == nil {
			r.log.WithField("report", edit.ReportID).Warn("dropping offline edit of a report that no longer exists")
			res.Dropped++
		} else {
			res.Updated = append(res.Updated, updated.ID)
		}
		done++
	}
	if err := storeRest(ctx, q.kv, kv.KeyOfflineEdits, edits[done:]); err != nil {
		return res, errors.Join(replayErr, err)
	}
	res.Pending.Edits = len(edits) - done

	if replayErr == nil {
		r.log.WithFields(logrus.Fields{
			"created": len(res.Created),
			"updated": len(res.Updated),
			"dropped": res.Dropped,
		}).Info("offline queue drained")
	}
	return res, replayErr
}

// saved reports whether a target call that returned err still stored rep.
// The entry must not be replayed again, or its notifications would repeat.
func saved(rep *model.Report, err error) bool {
	return rep != nil && !report.IsFatal(err)
}
