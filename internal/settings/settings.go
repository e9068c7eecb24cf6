// Package settings holds the application's secondary stores: feature flags,
// permissions and the user directory. Reads are lenient; a damaged document
// degrades to its default with a warning.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

// Store reads and writes settings documents.
type Store struct {
	mu  sync.Mutex
	kv  kv.Store
	log logrus.FieldLogger
}

// New returns a Store backed by s.
func New(s kv.Store, log logrus.FieldLogger) *Store {
	return &Store{kv: s, log: log}
}

// GPSEnabled reports whether reports should be tagged with the device
// location. Defaults to false.
func (s *Store) GPSEnabled(ctx context.Context) (bool, error) {
	return kv.GetLenient(ctx, s.kv, kv.KeyGPSEnabled, false, s.log)
}

// SetGPSEnabled stores the GPS flag.
func (s *Store) SetGPSEnabled(ctx context.Context, enabled bool) error {
	return kv.SetJSON(ctx, s.kv, kv.KeyGPSEnabled, enabled)
}

// DefaultRolePermissions returns the screens each role may submit from on a
// fresh install.
func DefaultRolePermissions() model.RolePermissions {
	all := map[string]bool{
		model.ScreenIncidentReport:      true,
		model.ScreenNearMissReport:      true,
		model.ScreenSafetyInspection:    true,
		model.ScreenEnvironmentalReport: true,
	}
	return model.RolePermissions{
		model.RoleAdmin: all,
		model.RoleSuper: clone(all),
		model.RoleStandard: {
			model.ScreenIncidentReport:      true,
			model.ScreenNearMissReport:      true,
			model.ScreenSafetyInspection:    false,
			model.ScreenEnvironmentalReport: true,
		},
		model.RolePersonal: {
			model.ScreenIncidentReport:      false,
			model.ScreenNearMissReport:      true,
			model.ScreenSafetyInspection:    false,
			model.ScreenEnvironmentalReport: false,
		},
	}
}

func clone(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RolePermissions returns the stored role permissions. A missing or
// unreadable document is replaced by the defaults, which are stored.
func (s *Store) RolePermissions(ctx context.Context) (model.RolePermissions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perms, err := kv.GetLenient[model.RolePermissions](ctx, s.kv, kv.KeyRolePermissions, nil, s.log)
	if err != nil {
		return nil, err
	}
	if perms != nil {
		return perms, nil
	}

	perms = DefaultRolePermissions()
	if err := kv.SetJSON(ctx, s.kv, kv.KeyRolePermissions, perms); err != nil {
		return nil, fmt.Errorf("seeding role permissions: %w", err)
	}
	return perms, nil
}

// SetRolePermissions replaces the role permissions.
func (s *Store) SetRolePermissions(ctx context.Context, perms model.RolePermissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kv.SetJSON(ctx, s.kv, kv.KeyRolePermissions, perms)
}

// DefaultFeaturePermissions returns the feature toggles of the managerial
// roles on a fresh install.
func DefaultFeaturePermissions() map[string]model.FeaturePermissions {
	return map[string]model.FeaturePermissions{
		model.RoleAdmin: {CanViewPhotoGallery: true, CanDeleteReport: true},
		model.RoleSuper: {CanViewPhotoGallery: false, CanDeleteReport: false},
	}
}

// FeaturePermissions returns the stored feature toggles per role. Stored
// values for the managerial roles are merged field by field over the
// defaults, so a document written before a toggle existed still yields a
// value for it. Other stored roles are returned as stored.
func (s *Store) FeaturePermissions(ctx context.Context) (map[string]model.FeaturePermissions, error) {
	stored, err := kv.GetLenient[map[string]json.RawMessage](ctx, s.kv, kv.KeyFeaturePermissions, nil, s.log)
	if err != nil {
		return nil, err
	}

	out := DefaultFeaturePermissions()
	for role, raw := range stored {
		perms := out[role]
		if err := json.Unmarshal(raw, &perms); err != nil {
			s.log.WithError(err).WithField("role", role).Warn("ignoring unreadable feature permissions")
			continue
		}
		out[role] = perms
	}
	return out, nil
}

// FeaturesFor returns the feature toggles of a single role.
func (s *Store) FeaturesFor(ctx context.Context, role string) (model.FeaturePermissions, error) {
	all, err := s.FeaturePermissions(ctx)
	if err != nil {
		return model.FeaturePermissions{}, err
	}
	return all[role], nil
}

// SetFeaturePermissions replaces the feature toggles.
func (s *Store) SetFeaturePermissions(ctx context.Context, perms map[string]model.FeaturePermissions) error {
	return kv.SetJSON(ctx, s.kv, kv.KeyFeaturePermissions, perms)
}

// Departments returns all departments.
func (s *Store) Departments(ctx context.Context) ([]model.Department, error) {
	list, err := kv.GetLenient(ctx, s.kv, kv.KeyDepartments, []model.Department{}, s.log)
	if list == nil {
		list = []model.Department{}
	}
	return list, err
}

// SetDepartments replaces the department list.
func (s *Store) SetDepartments(ctx context.Context, list []model.Department) error {
	return kv.SetJSON(ctx, s.kv, kv.KeyDepartments, list)
}
