package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

// ErrInvalidReminder is returned for reminders that fail validation.
var ErrInvalidReminder = errors.New("invalid reminder")

// targetAll addresses a reminder to every role.
const targetAll = "All"

func (s *Store) reminders(ctx context.Context) ([]model.Reminder, error) {
	list, err := kv.GetLenient(ctx, s.kv, kv.KeyReminders, []model.Reminder{}, s.log)
	if list == nil {
		list = []model.Reminder{}
	}
	return list, err
}

// Reminders returns every stored reminder. An unreadable document yields an
// empty list.
func (s *Store) Reminders(ctx context.Context) ([]model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders(ctx)
}

// SetReminders replaces the reminder list.
func (s *Store) SetReminders(ctx context.Context, list []model.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list == nil {
		list = []model.Reminder{}
	}
	return kv.SetJSON(ctx, s.kv, kv.KeyReminders, list)
}

// RemindersFor returns the reminders u should see. Managers see all of them;
// other users see active reminders assigned to them or targeted at their
// role.
func (s *Store) RemindersFor(ctx context.Context, u *model.User) ([]model.Reminder, error) {
	list, err := s.Reminders(ctx)
	if err != nil || model.HasManagerialRole(u) {
		return list, err
	}

	out := []model.Reminder{}
	for _, r := range list {
		if r.IsActive != nil && !*r.IsActive {
			continue
		}
		if r.AssignedTo == u.ID || r.TargetRole == targetAll || r.TargetRole == u.Role {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateReminder appends a reminder with a generated id and creation time.
// An empty priority defaults to Medium.
func (s *Store) CreateReminder(ctx context.Context, r model.Reminder) (*model.Reminder, error) {
	r.ID = "rem-" + uuid.NewString()
	r.CreatedAt = model.Timestamp(time.Now())
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReminder, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.reminders(ctx)
	if err != nil {
		return nil, err
	}
	if err := kv.SetJSON(ctx, s.kv, kv.KeyReminders, append(list, r)); err != nil {
		return nil, fmt.Errorf("creating reminder: %w", err)
	}
	return &r, nil
}

// UpdateReminder replaces the reminder with r.ID, keeping its creation time.
// It returns nil if no such reminder exists.
func (s *Store) UpdateReminder(ctx context.Context, r model.Reminder) (*model.Reminder, error) {
	if r.Priority == "" {
		r.Priority = model.PriorityMedium
	}
	if err := validate.Struct(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReminder, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.reminders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID != r.ID {
			continue
		}
		r.CreatedAt = list[i].CreatedAt
		list[i] = r
		if err := kv.SetJSON(ctx, s.kv, kv.KeyReminders, list); err != nil {
			return nil, fmt.Errorf("updating reminder: %w", err)
		}
		return &r, nil
	}
	return nil, nil
}

// DeleteReminder removes a reminder and reports whether it existed.
func (s *Store) DeleteReminder(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.reminders(ctx)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].ID == id {
			if err := kv.SetJSON(ctx, s.kv, kv.KeyReminders, append(list[:i:i], list[i+1:]...)); err != nil {
				return false, fmt.Errorf("deleting reminder: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}
