// Package queue holds work captured while the device was offline: new
// reports and edits to existing ones, each in its own FIFO.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

// Queue persists the two offline FIFOs. Entries are never deduplicated,
// reordered or capped.
type Queue struct {
	mu  sync.Mutex
	kv  kv.Store
	log logrus.FieldLogger
}

// Pending holds the number of entries waiting in each FIFO.
type Pending struct {
	Reports int `json:"reports"`
	Edits   int `json:"edits"`
}

// New returns a Queue backed by s.
func New(s kv.Store, log logrus.FieldLogger) *Queue {
	return &Queue{kv: s, log: log}
}

// EnqueueReport appends an offline report.
func (q *Queue) EnqueueReport(ctx context.Context, r model.OfflineReport) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.reports(ctx)
	if err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, q.kv, kv.KeyOfflineReports, append(list, r)); err != nil {
		return fmt.Errorf("enqueueing offline report: %w", err)
	}
	return nil
}

// EnqueueEdit appends an offline edit.
func (q *Queue) EnqueueEdit(ctx context.Context, e model.OfflineEdit) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.edits(ctx)
	if err != nil {
		return err
	}
	if err := kv.SetJSON(ctx, q.kv, kv.KeyOfflineEdits, append(list, e)); err != nil {
		return fmt.Errorf("enqueueing offline edit: %w", err)
	}
	return nil
}

// PeekReports returns the queued reports in insertion order.
func (q *Queue) PeekReports(ctx context.Context) ([]model.OfflineReport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reports(ctx)
}

// PeekEdits returns the queued edits in insertion order.
func (q *Queue) PeekEdits(ctx context.Context) ([]model.OfflineEdit, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.edits(ctx)
}

// ClearReports drops the report FIFO.
func (q *Queue) ClearReports(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.kv.Remove(ctx, kv.KeyOfflineReports); err != nil {
		return fmt.Errorf("clearing offline reports: %w", err)
	}
	return nil
}

// ClearEdits drops the edit FIFO.
func (q *Queue) ClearEdits(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.kv.Remove(ctx, kv.KeyOfflineEdits); err != nil {
		return fmt.Errorf("clearing offline edits: %w", err)
	}
	return nil
}

// Pending returns the size of both FIFOs.
func (q *Queue) Pending(ctx context.Context) (Pending, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	reports, err := q.reports(ctx)
	if err != nil {
		return Pending{}, err
	}
	edits, err := q.edits(ctx)
	if err != nil {
		return Pending{}, err
	}
	return Pending{Reports: len(reports), Edits: len(edits)}, nil
}

func (q *Queue) reports(ctx context.Context) ([]model.OfflineReport, error) {
	list, err := kv.GetLenient(ctx, q.kv, kv.KeyOfflineReports, []model.OfflineReport{}, q.log)
	if list == nil {
		list = []model.OfflineReport{}
	}
	return list, err
}

func (q *Queue) edits(ctx context.Context) ([]model.OfflineEdit, error) {
	list, err := kv.GetLenient(ctx, q.kv, kv.KeyOfflineEdits, []model.OfflineEdit{}, q.log)
	if list == nil {
		list = []model.OfflineEdit{}
	}
	return list, err
}

// storeRest writes what is left of a FIFO after a replay, removing the key
// once it is empty.
func storeRest[T any](ctx context.Context, s kv.Store, key string, rest []T) error {
	if len(rest) == 0 {
		if err := s.Remove(ctx, key); err != nil {
			return fmt.Errorf("clearing %s: %w", key, err)
		}
		return nil
	}
	return kv.SetJSON(ctx, s, key, rest)
}
