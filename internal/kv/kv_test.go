package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/hsefield/internal/db"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := NewRedis("redis://"+mr.Addr(), "test:")
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": NewSQLite(db.NewTestDB(t)),
		"redis":  rs,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", `{"a":1}`))
			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"a":1}`, v)

			require.NoError(t, s.Set(ctx, "k", `[]`))
			v, _, _ = s.Get(ctx, "k")
			assert.Equal(t, `[]`, v)

			require.NoError(t, s.Remove(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)

			// Removing twice is fine.
			require.NoError(t, s.Remove(ctx, "k"))
		})
	}
}

func TestRedisPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := NewRedis("redis://"+mr.Addr(), "hse:")
	require.NoError(t, err)
	defer rs.Close()

	require.NoError(t, rs.Set(context.Background(), KeyGPSEnabled, "true"))
	got, err := mr.Get("hse:" + KeyGPSEnabled)
	require.NoError(t, err)
	assert.Equal(t, "true", got)
}

func TestGetStrictCorrupt(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Set(ctx, KeyReports, "{not json"))

	var dst any
	ok, err := GetStrict(ctx, s, KeyReports, &dst)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrCorrupt), "expected ErrCorrupt, got %v", err)
}

func TestGetStrictAbsent(t *testing.T) {
	var dst []string
	ok, err := GetStrict(context.Background(), NewMemory(), KeyReports, &dst)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetLenientFallsBackAndWarns(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	log, hook := logtest.NewNullLogger()

	got, err := GetLenient(ctx, s, KeyOfflineEdits, []string{"default"}, log)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, got)
	assert.Empty(t, hook.AllEntries())

	require.NoError(t, s.Set(ctx, KeyOfflineEdits, "{not json"))
	got, err = GetLenient(ctx, s, KeyOfflineEdits, []string{}, log)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	require.NoError(t, s.Set(ctx, KeyOfflineEdits, `["a","b"]`))
	got, err = GetLenient(ctx, s, KeyOfflineEdits, []string{}, log)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSetJSONPropagatesWriteFailure(t *testing.T) {
	s := NewMemory()
	s.WriteErr = errors.New("quota exceeded")

	err := SetJSON(context.Background(), s, KeyOfflineReports, []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
