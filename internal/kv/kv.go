// Package kv is the persistence boundary of the application: every logical
// collection is one JSON document stored under one key.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logical keys.
const (
	KeyReports            = "hse_reports"
	KeyOfflineReports     = "hse_offline_reports_queue"
	KeyOfflineEdits       = "hse_offline_edits_queue"
	KeyNotifications      = "hse_notifications"
	KeyRolePermissions    = "hse_role_permissions"
	KeyFeaturePermissions = "hse_feature_permissions"
	KeyGPSEnabled         = "hse_gps_enabled"
	KeyDepartments        = "hse_departments"
	KeyUsers              = "hse_users"
	KeyJWTSecret          = "hse_jwt_secret"
	KeyRevokedTokens      = "hse_revoked_tokens"
	KeyReminders          = "hse_reminders"
)

// ErrCorrupt is returned when a document that must be structured cannot be
// parsed. Callers must stop instead of substituting a default.
var ErrCorrupt = errors.New("stored data is corrupted")

// Store is a string key-value store. Get reports absence with ok=false.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// GetStrict decodes the document under key into dst.
// It returns false when the key is absent and wraps ErrCorrupt when the
// document is not valid JSON for dst.
func GetStrict(ctx context.Context, s Store, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// GetLenient decodes the document under key. An absent key or a document
// that fails to parse yields def; parse failures are logged as warnings.
// Only backend errors are returned.
func GetLenient[T any](ctx context.Context, s Store, key string, def T, log logrus.FieldLogger) (T, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		log.WithError(err).WithField("key", key).Warn("failed to parse stored document, using default")
		return def, nil
	}
	return v, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
