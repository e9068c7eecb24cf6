package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/migrate"
	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/notify"
)

// IsFatal reports whether err means the stored report collection cannot be
// trusted. No further reads or writes should be attempted after one.
func IsFatal(err error) bool {
	return errors.Is(err, kv.ErrCorrupt) || errors.Is(err, migrate.ErrUnrecognizedFormat)
}

// Service is the entry point used by the API and the offline replayer. It
// serialises every operation (the store is single-writer), applies the
// repository's effects after the report write and stops serving once a fatal
// storage error has been seen.
type Service struct {
	mu       sync.Mutex
	repo     *Repository
	dispatch *notify.Dispatcher
	log      logrus.FieldLogger
	fatal    error
}

// NewService wires a repository to a notification dispatcher.
func NewService(repo *Repository, dispatch *notify.Dispatcher, log logrus.FieldLogger) *Service {
	return &Service{repo: repo, dispatch: dispatch, log: log}
}

// Halted returns the fatal error that stopped the service, if any.
func (s *Service) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

func (s *Service) guard(err error) error {
	if err != nil && IsFatal(err) && s.fatal == nil {
		s.fatal = err
		s.log.WithError(err).Error("report storage halted: stored data is unreadable, refusing further reads and writes")
	}
	return err
}

// run executes op under the lock and applies its effects.
func (s *Service) run(ctx context.Context, op func() (Outcome, error)) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatal != nil {
		return nil, s.fatal
	}

	out, err := op()
	if err := s.guard(err); err != nil {
		return nil, err
	}
	if err := s.dispatch.Apply(ctx, out.Effects); err != nil {
		return out.Report, fmt.Errorf("applying report side effects: %w", err)
	}
	return out.Report, nil
}

// GetAll returns all reports, newest first.
func (s *Service) GetAll(ctx context.Context) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatal != nil {
		return nil, s.fatal
	}
	reports, err := s.repo.GetAll(ctx)
	return reports, s.guard(err)
}

// Get returns a report by id, or nil.
func (s *Service) Get(ctx context.Context, id string) (*model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatal != nil {
		return nil, s.fatal
	}
	report, err := s.repo.Get(ctx, id)
	return report, s.guard(err)
}

// Create stores a new report.
func (s *Service) Create(ctx context.Context, draft model.Draft, submittedBy string) (*model.Report, error) {
	return s.run(ctx, func() (Outcome, error) {
		report, err := s.repo.Create(ctx, draft, submittedBy)
		return Outcome{Report: report}, err
	})
}

// Update replaces a report's payload. A nil report means not found.
func (s *Service) Update(ctx context.Context, id string, data json.RawMessage) (*model.Report, error) {
	return s.run(ctx, func() (Outcome, error) { return s.repo.Update(ctx, id, data) })
}

// Close closes a report. A nil report means not found.
func (s *Service) Close(ctx context.Context, id string, actor *model.User) (*model.Report, error) {
	return s.run(ctx, func() (Outcome, error) { return s.repo.Close(ctx, id, actor) })
}

// Reopen reopens a closed report. A nil report means not found.
func (s *Service) Reopen(ctx context.Context, id string, actor *model.User) (*model.Report, error) {
	return s.run(ctx, func() (Outcome, error) { return s.repo.Reopen(ctx, id, actor) })
}

// Assign changes a report's assignee. A nil report means not found.
func (s *Service) Assign(ctx context.Context, id, assignee string, actor *model.User) (*model.Report, error) {
	return s.run(ctx, func() (Outcome, error) { return s.repo.Assign(ctx, id, assignee, actor) })
}

// Delete removes a report and then its notifications. It returns the removed
// report, or nil if none matched.
func (s *Service) Delete(ctx context.Context, id string) (*model.Report, error) {
	return s.run(ctx, func() (Outcome, error) { return s.repo.Delete(ctx, id) })
}
