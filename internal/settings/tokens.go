package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/hsefield/internal/kv"
)

// RevokeToken adds a token's JTI to the revocation list. Expired entries are
// pruned on the way.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked, err := s.revoked(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for id, exp := range revoked {
		if exp.Before(now) {
			delete(revoked, id)
		}
	}
	revoked[jti] = expiresAt

	if err := kv.SetJSON(ctx, s.kv, kv.KeyRevokedTokens, revoked); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked, err := s.revoked(ctx)
	if err != nil {
		return false, err
	}
	_, ok := revoked[jti]
	return ok, nil
}

func (s *Store) revoked(ctx context.Context) (map[string]time.Time, error) {
	revoked, err := kv.GetLenient(ctx, s.kv, kv.KeyRevokedTokens, map[string]time.Time{}, s.log)
	if revoked == nil {
		revoked = map[string]time.Time{}
	}
	return revoked, err
}
