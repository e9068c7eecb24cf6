package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/notify"
	"github.com/erazemk/hsefield/internal/report"
)

// flakyTarget fails every call once failAt calls have been made.
type flakyTarget struct {
	calls  int
	failAt int
	known  map[string]bool
	seen   []string
}

func (f *flakyTarget) Create(_ context.Context, d model.Draft, by string) (*model.Report, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return nil, errors.New("offline again")
	}
	if d.Type == "Hazard" {
		return nil, fmt.Errorf("%w: bad type", report.ErrInvalid)
	}
	id := fmt.Sprintf("R%d", f.calls)
	f.seen = append(f.seen, "create:"+string(d.Type))
	return &model.Report{ID: id, Type: d.Type, SubmittedBy: by}, nil
}

func (f *flakyTarget) Update(_ context.Context, id string, _ json.RawMessage) (*model.Report, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return nil, errors.New("offline again")
	}
	f.seen = append(f.seen, "update:"+id)
	if !f.known[id] {
		return nil, nil
	}
	return &model.Report{ID: id}, nil
}

func TestDrainReplaysInOrder(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	mem := kv.NewMemory()
	q := New(mem, log)
	ctx := context.Background()

	require.NoError(t, q.EnqueueReport(ctx, offlineReport(model.TypeIncident, "u-1")))
	require.NoError(t, q.EnqueueReport(ctx, offlineReport("Hazard", "u-1")))
	require.NoError(t, q.EnqueueReport(ctx, offlineReport(model.TypeEnvironmental, "u-1")))
	require.NoError(t, q.EnqueueEdit(ctx, model.OfflineEdit{ReportID: "INC-1", UpdatedData: json.RawMessage(`{}`)}))
	require.NoError(t, q.EnqueueEdit(ctx, model.OfflineEdit{ReportID: "GONE", UpdatedData: json.RawMessage(`{}`)}))

	target := &flakyTarget{known: map[string]bool{"INC-1": true}}
	res, err := NewReplayer(q, target, log).Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"create:Incident", "create:Environmental", "update:INC-1", "update:GONE"}, target.seen)
	assert.Equal(t, []string{"R1", "R3"}, res.Created)
	assert.Equal(t, []string{"INC-1"}, res.Updated)
	assert.Equal(t, 2, res.Dropped)
	assert.Zero(t, res.Pending)

	_, ok, _ := mem.Get(ctx, kv.KeyOfflineReports)
	assert.False(t, ok)
	_, ok, _ = mem.Get(ctx, kv.KeyOfflineEdits)
	assert.False(t, ok)
}

func TestDrainStopsAtFirstFailure(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	q := New(kv.NewMemory(), log)
	ctx := context.Background()

	require.NoError(t, q.EnqueueReport(ctx, offlineReport(model.TypeIncident, "u-1")))
	require.NoError(t, q.EnqueueReport(ctx, offlineReport(model.TypeNearMiss, "u-2")))
	require.NoError(t, q.EnqueueReport(ctx, offlineReport(model.TypeEnvironmental, "u-3")))
	require.NoError(t, q.EnqueueEdit(ctx, model.OfflineEdit{ReportID: "INC-1", UpdatedData: json.RawMessage(`{}`)}))

	target := &flakyTarget{failAt: 2}
	res, err := NewReplayer(q, target, log).Drain(ctx)
	require.Error(t, err)
	assert.Equal(t, []string{"R1"}, res.Created)
	assert.Equal(t, Pending{Reports: 2, Edits: 1}, res.Pending)

	left, err := q.PeekReports(ctx)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "u-2", left[0].SubmittedBy)
	assert.Equal(t, "u-3", left[1].SubmittedBy)

	edits, err := q.PeekEdits(ctx)
	require.NoError(t, err)
	assert.Len(t, edits, 1)
}

func TestDrainIntoService(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	mem := kv.NewMemory()
	ctx := context.Background()

	repo := report.NewRepository(mem, nil, log)
	repo.Now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	svc := report.NewService(repo, &notify.Dispatcher{Store: notify.NewStore(mem, log), Log: log}, log)

	q := New(mem, log)
	require.NoError(t, q.EnqueueReport(ctx, offlineReport(model.TypeNearMiss, "u-1")))

	res, err := NewReplayer(q, svc, log).Drain(ctx)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, res.Created[0], all[0].ID)
	assert.Equal(t, "u-1", all[0].SubmittedBy)
	assert.Equal(t, model.StatusSubmitted, all[0].Status)
}

func TestDrainSavedEditWithFailedNotificationIsNotRetried(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	reports := kv.NewMemory()
	notifications := kv.NewMemory()
	notifications.WriteErr = errors.New("quota exceeded")
	ctx := context.Background()

	repo := report.NewRepository(reports, nil, log)
	svc := report.NewService(repo, &notify.Dispatcher{Store: notify.NewStore(notifications, log), Log: log}, log)
	created, err := svc.Create(ctx, model.Draft{Type: model.TypeIncident, Data: json.RawMessage(`{}`)}, "u-1")
	require.NoError(t, err)

	q := New(reports, log)
	require.NoError(t, q.EnqueueEdit(ctx, model.OfflineEdit{ReportID: created.ID, UpdatedData: json.RawMessage(`{"description":"Spill"}`)}))

	res, err := NewReplayer(q, svc, log).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, res.Updated)
	assert.Zero(t, res.Pending)

	edits, err := q.PeekEdits(ctx)
	require.NoError(t, err)
	assert.Empty(t, edits)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"description":"Spill"}`, string(got.Data))
	assert.Equal(t, model.StatusInReview, got.Status)
}
