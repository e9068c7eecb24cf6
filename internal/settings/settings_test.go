package settings

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/hsefield/internal/db"
	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

func newTestStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	backend := kv.NewSQLite(db.NewTestDB(t))
	return New(backend, log), backend
}

func TestGPSFlag(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	enabled, err := s.GPSEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, s.SetGPSEnabled(ctx, true))
	enabled, err = s.GPSEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	raw, _, _ := backend.Get(ctx, kv.KeyGPSEnabled)
	assert.Equal(t, "true", raw)
}

func TestGPSFlagUnreadable(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	mem := kv.NewMemory()
	s := New(mem, log)
	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, kv.KeyGPSEnabled, "yes please"))

	enabled, err := s.GPSEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRolePermissionsSeeded(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	perms, err := s.RolePermissions(ctx)
	require.NoError(t, err)
	assert.True(t, perms.Allows(model.RoleStandard, model.TypeIncident))
	assert.False(t, perms.Allows(model.RoleStandard, model.TypeSafetyInspection))
	assert.True(t, perms.Allows(model.RolePersonal, model.TypeNearMiss))
	assert.False(t, perms.Allows(model.RolePersonal, model.TypeEnvironmental))
	assert.True(t, perms.Allows(model.RoleAdmin, model.TypeSafetyInspection))

	_, ok, _ := backend.Get(ctx, kv.KeyRolePermissions)
	assert.True(t, ok, "defaults are stored on first read")
}

func TestRolePermissionsReseededWhenUnreadable(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, kv.KeyRolePermissions, "{broken"))

	perms, err := s.RolePermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultRolePermissions(), perms)
}

func TestRolePermissionsStored(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	custom := DefaultRolePermissions()
	custom[model.RolePersonal][model.ScreenEnvironmentalReport] = true
	require.NoError(t, s.SetRolePermissions(ctx, custom))

	perms, err := s.RolePermissions(ctx)
	require.NoError(t, err)
	assert.True(t, perms.Allows(model.RolePersonal, model.TypeEnvironmental))
}

func TestFeaturePermissionsMerge(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	perms, err := s.FeaturePermissions(ctx)
	require.NoError(t, err)
	assert.True(t, perms[model.RoleAdmin].CanDeleteReport)
	assert.False(t, perms[model.RoleSuper].CanDeleteReport)

	require.NoError(t, backend.Set(ctx, kv.KeyFeaturePermissions,
		`{"Admin User":{"canViewDashboard":true},"Super User":{"canDeleteReport":true},"Standard User":{"canViewReports":true}}`))

	perms, err = s.FeaturePermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.FeaturePermissions{CanViewDashboard: true, CanViewPhotoGallery: true, CanDeleteReport: true}, perms[model.RoleAdmin])
	assert.Equal(t, model.FeaturePermissions{CanDeleteReport: true}, perms[model.RoleSuper])
	assert.True(t, perms[model.RoleStandard].CanViewReports)

	super, err := s.FeaturesFor(ctx, model.RoleSuper)
	require.NoError(t, err)
	assert.True(t, super.CanDeleteReport)
}

func TestSetFeaturePermissions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	perms := DefaultFeaturePermissions()
	perms[model.RoleSuper] = model.FeaturePermissions{CanViewPhotoGallery: true, CanDeleteReport: true}
	require.NoError(t, s.SetFeaturePermissions(ctx, perms))

	super, err := s.FeaturesFor(ctx, model.RoleSuper)
	require.NoError(t, err)
	assert.True(t, super.CanDeleteReport)
	assert.True(t, super.CanViewPhotoGallery)

	admin, err := s.FeaturesFor(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, admin.CanDeleteReport)
}

func TestFeaturePermissionsUnreadable(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, kv.KeyFeaturePermissions, "[1,2"))

	perms, err := s.FeaturePermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultFeaturePermissions(), perms)
}

func TestDepartments(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	list, err := s.Departments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.SetDepartments(ctx, []model.Department{{ID: "d1", Name: "Yard"}}))
	list, err = s.Departments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Department{{ID: "d1", Name: "Yard"}}, list)
}

func TestJWTSecretStable(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first, err := s.JWTSecret(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := s.JWTSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTokenRevocation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	revoked, err := s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.RevokeToken(ctx, "stale", time.Now().Add(-time.Hour)))
	require.NoError(t, s.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = s.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// The expired entry was pruned by the second revocation.
	revoked, err = s.IsTokenRevoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)
}
