// Package notify keeps the per-user notification log.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

// Store is the notification log. All notifications live in one document;
// mutations only ever touch entries owned by the calling user.
type Store struct {
	mu  sync.Mutex
	kv  kv.Store
	log logrus.FieldLogger

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

// NewStore returns a Store backed by s.
func NewStore(s kv.Store, log logrus.FieldLogger) *Store {
	return &Store{
		kv:    s,
		log:   log,
		Now:   time.Now,
		NewID: func() string { return "notif-" + uuid.NewString() },
	}
}

func (s *Store) all(ctx context.Context) ([]model.Notification, error) {
	return kv.GetLenient(ctx, s.kv, kv.KeyNotifications, []model.Notification{}, s.log)
}

func (s *Store) save(ctx context.Context, list []model.Notification) error {
	return kv.SetJSON(ctx, s.kv, kv.KeyNotifications, list)
}

// ListForUser returns the user's notifications, newest first.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	out := []model.Notification{}
	for _, n := range list {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return parseTime(out[i].Timestamp).After(parseTime(out[j].Timestamp))
	})
	return out, nil
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range list {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Create prepends an unread notification for userID. An empty userID
// creates nothing and returns nil.
func (s *Store) Create(ctx context.Context, userID, reportID, message string) (*model.Notification, error) {
	if userID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	n := model.Notification{
		ID:        s.NewID(),
		UserID:    userID,
		ReportID:  reportID,
		Message:   message,
		IsRead:    false,
		Timestamp: model.Timestamp(s.Now()),
	}
	if err := s.save(ctx, append([]model.Notification{n}, list...)); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead marks one of the user's notifications as read. It reports
// whether a matching notification was found.
func (s *Store) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].ID == id && list[i].UserID == userID {
			list[i].IsRead = true
			return true, s.save(ctx, list)
		}
	}
	return false, nil
}

// MarkAllRead marks all of the user's notifications as read and returns how
// many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range list {
		if list[i].UserID == userID && !list[i].IsRead {
			list[i].IsRead = true
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.save(ctx, list)
}

// Delete removes one of the user's notifications.
func (s *Store) Delete(ctx context.Context, id, userID string) (bool, error) {
	return s.remove(ctx, func(n model.Notification) bool {
		return n.ID == id && n.UserID == userID
	})
}

// DeleteForReport removes every notification that references reportID,
// regardless of owner. It is the cascade step of a report delete.
func (s *Store) DeleteForReport(ctx context.Context, reportID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return 0, err
	}
	kept := list[:0]
	for _, n := range list {
		if n.ReportID != reportID {
			kept = append(kept, n)
		}
	}
	removed := len(list) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(ctx, kept)
}

func (s *Store) remove(ctx context.Context, match func(model.Notification) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.all(ctx)
	if err != nil {
		return false, err
	}
	kept := list[:0]
	for _, n := range list {
		if !match(n) {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(list) {
		return false, nil
	}
	return true, s.save(ctx, kept)
}

func parseTime(ts string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
