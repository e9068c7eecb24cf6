package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

func TestRemindersEmptyByDefault(t *testing.T) {
	s, _ := newTestStore(t)

	list, err := s.Reminders(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestRemindersUnreadable(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	mem := kv.NewMemory()
	s := New(mem, log)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, kv.KeyReminders, `{"not":"a list"`))

	list, err := s.Reminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSetReminders(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	want := []model.Reminder{{ID: "rem-1", Title: "Toolbox talk", Priority: model.PriorityLow, DueDate: "2026-10-20"}}
	require.NoError(t, s.SetReminders(ctx, want))

	got, err := s.Reminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.SetReminders(ctx, nil))
	raw, _, _ := backend.Get(ctx, kv.KeyReminders)
	assert.Equal(t, "[]", raw)
}

func TestCreateReminder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.CreateReminder(ctx, model.Reminder{Title: "Check eyewash station", AssignedTo: "u-alex"})
	require.NoError(t, err)
	assert.Regexp(t, `^rem-`, r.ID)
	assert.Equal(t, model.PriorityMedium, r.Priority)
	assert.NotEmpty(t, r.CreatedAt)

	_, err = s.CreateReminder(ctx, model.Reminder{Priority: model.PriorityHigh})
	assert.True(t, errors.Is(err, ErrInvalidReminder), "missing title: got %v", err)
	_, err = s.CreateReminder(ctx, model.Reminder{Title: "x", DueDate: "next week"})
	assert.True(t, errors.Is(err, ErrInvalidReminder), "bad due date: got %v", err)

	list, err := s.Reminders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, r.ID, list[0].ID)
}

func TestUpdateAndDeleteReminder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	r, err := s.CreateReminder(ctx, model.Reminder{Title: "Inspect ladders"})
	require.NoError(t, err)

	edit := *r
	edit.Completed = true
	edit.CreatedAt = ""
	updated, err := s.UpdateReminder(ctx, edit)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.True(t, updated.Completed)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)

	missing, err := s.UpdateReminder(ctx, model.Reminder{ID: "rem-none", Title: "x"})
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := s.DeleteReminder(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, found)
	found, err = s.DeleteReminder(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemindersFor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	inactive := false

	require.NoError(t, s.SetReminders(ctx, []model.Reminder{
		{ID: "rem-1", Title: "Assigned", Priority: model.PriorityLow, AssignedTo: "u-alex"},
		{ID: "rem-2", Title: "Everyone", Priority: model.PriorityLow, TargetRole: "All"},
		{ID: "rem-3", Title: "Standard users", Priority: model.PriorityLow, TargetRole: model.RoleStandard},
		{ID: "rem-4", Title: "Paused", Priority: model.PriorityLow, AssignedTo: "u-alex", IsActive: &inactive},
		{ID: "rem-5", Title: "Someone else", Priority: model.PriorityLow, AssignedTo: "u-pat"},
	}))

	alex := &model.User{ID: "u-alex", Role: model.RoleStandard}
	list, err := s.RemindersFor(ctx, alex)
	require.NoError(t, err)
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"rem-1", "rem-2", "rem-3"}, ids)

	all, err := s.RemindersFor(ctx, &model.User{ID: "u-admin", Role: model.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
