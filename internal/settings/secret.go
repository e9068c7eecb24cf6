package settings

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/erazemk/hsefield/internal/kv"
)

// JWTSecret returns the token signing secret, generating and storing one on
// first use.
func (s *Store) JWTSecret(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok, err := s.kv.Get(ctx, kv.KeyJWTSecret)
	if err != nil {
		return "", fmt.Errorf("reading jwt secret: %w", err)
	}
	if ok && secret != "" {
		return secret, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	secret = hex.EncodeToString(buf)
	if err := s.kv.Set(ctx, kv.KeyJWTSecret, secret); err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}
	return secret, nil
}
