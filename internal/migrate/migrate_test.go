package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

var now = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func TestMigrateLegacyArray(t *testing.T) {
	res, err := Migrate([]byte(`[{"id":"R1","type":"Incident"}]`), now)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Version)
	assert.True(t, res.Rewrite)
	require.Len(t, res.Reports, 1)

	r := res.Reports[0]
	assert.Equal(t, "R1", r.ID)
	assert.Equal(t, model.TypeIncident, r.Type)
	assert.Equal(t, model.StatusSubmitted, r.Status)
	assert.Equal(t, "2026-10-16", r.Date)
	assert.Equal(t, DefaultSubmittedBy, r.SubmittedBy)
	assert.JSONEq(t, `{}`, string(r.Data))
}

func TestMigrateBackfillsFalsyValues(t *testing.T) {
	res, err := Migrate([]byte(`[{"id":"","type":null,"status":"","data":null}]`), now)
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)

	r := res.Reports[0]
	assert.Equal(t, "migrated-1792143000000-0", r.ID)
	assert.Equal(t, model.TypeIncident, r.Type)
	assert.Equal(t, model.StatusSubmitted, r.Status)
}

func TestMigrateDiscardsNonObjects(t *testing.T) {
	raw := `{"version":2,"reports":[null,[1,2],"text",{"id":"A","type":"Incident","date":"2026-01-01","status":"Closed","submittedBy":"u1","data":{}}]}`
	res, err := Migrate([]byte(raw), now)
	require.NoError(t, err)

	assert.True(t, res.Rewrite)
	assert.Equal(t, 3, res.Discarded)
	assert.Len(t, res.Warnings, 3)
	require.Len(t, res.Reports, 1)
	assert.Equal(t, "A", res.Reports[0].ID)
}

func TestMigrateDiscardsInvalidCurrentRecords(t *testing.T) {
	// Version 2 records are not backfilled, so a missing submitter or a
	// non-object payload is fatal for the record.
	raw := `{"version":2,"reports":[
		{"id":"A","type":"Incident","date":"2026-01-01","status":"Submitted","data":{}},
		{"id":"B","type":"Incident","date":"2026-01-01","status":"Submitted","submittedBy":"u1","data":[]},
		{"id":7,"type":"Incident","date":"2026-01-01","status":"Submitted","submittedBy":"u1","data":{}},
		{"id":"C","type":"Near Miss","date":"2026-01-02","status":"In Review","submittedBy":"u2","data":{"x":1}}
	]}`
	res, err := Migrate([]byte(raw), now)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Discarded)
	require.Len(t, res.Reports, 1)
	assert.Equal(t, "C", res.Reports[0].ID)
}

func TestMigrateCurrentEnvelopeUntouched(t *testing.T) {
	raw := `{"version":2,"reports":[{"id":"A","type":"Incident","date":"2026-01-01","status":"Submitted","submittedBy":"u1","assignedTo":"u2","lastEdited":"2026-01-02T10:00:00.000Z","data":{"dateTime":"2026-01-01T08:00"}}]}`
	res, err := Migrate([]byte(raw), now)
	require.NoError(t, err)

	assert.False(t, res.Rewrite)
	assert.Equal(t, 2, res.Version)
	require.Len(t, res.Reports, 1)
	assert.Equal(t, "u2", res.Reports[0].AssignedTo)
	assert.Equal(t, "2026-01-02T10:00:00.000Z", res.Reports[0].LastEdited)
}

func TestMigrateCorrupt(t *testing.T) {
	_, err := Migrate([]byte(`{not json`), now)
	assert.True(t, errors.Is(err, kv.ErrCorrupt), "got %v", err)
}

func TestMigrateUnrecognizedShapes(t *testing.T) {
	shapes := []string{
		`"just a string"`,
		`42`,
		`null`,
		`{"reports":[]}`,
		`{"version":"2","reports":[]}`,
		`{"version":1.5,"reports":[]}`,
		`{"version":2,"reports":{}}`,
		`{"version":2}`,
	}
	for _, raw := range shapes {
		_, err := Migrate([]byte(raw), now)
		assert.True(t, errors.Is(err, ErrUnrecognizedFormat), "%s: got %v", raw, err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	first, err := Migrate([]byte(`[{"id":"R1"},{"type":"Environmental","data":{"date":"2025-05-05"}},5]`), now)
	require.NoError(t, err)
	require.True(t, first.Rewrite)

	stored, err := json.Marshal(Envelope{Version: CurrentVersion, Reports: first.Reports})
	require.NoError(t, err)

	second, err := Migrate(stored, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, second.Rewrite)
	assert.Equal(t, first.Reports, second.Reports)
}

func TestLoadWritesThrough(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	log, _ := logtest.NewNullLogger()
	require.NoError(t, s.Set(ctx, kv.KeyReports, `[{"id":"R1","type":"Incident"}]`))
	s.Writes = 0

	reports, err := Load(ctx, s, now, log)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, s.Writes)

	raw, _, _ := s.Get(ctx, kv.KeyReports)
	var env Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, 2, env.Version)
	assert.Len(t, env.Reports, 1)

	// Second read finds nothing to fix.
	_, err = Load(ctx, s, now, log)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Writes)
}

func TestLoadKeepsUnknownFields(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	log, _ := logtest.NewNullLogger()
	require.NoError(t, s.Set(ctx, kv.KeyReports, `[{"id":"R1","type":"Incident","title":"Forklift tipped","location":"Dock 4"}]`))

	reports, err := Load(ctx, s, now, log)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.JSONEq(t, `"Forklift tipped"`, string(reports[0].Extra["title"]))

	raw, _, _ := s.Get(ctx, kv.KeyReports)
	var env struct {
		Version int                          `json:"version"`
		Reports []map[string]json.RawMessage `json:"reports"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	assert.Equal(t, CurrentVersion, env.Version)
	require.Len(t, env.Reports, 1)
	assert.JSONEq(t, `"Forklift tipped"`, string(env.Reports[0]["title"]))
	assert.JSONEq(t, `"Dock 4"`, string(env.Reports[0]["location"]))
	assert.JSONEq(t, `"Submitted"`, string(env.Reports[0]["status"]))

	// The rewritten document migrates to the same reports.
	again, err := Load(ctx, s, now, log)
	require.NoError(t, err)
	assert.Equal(t, reports, again)
}

func TestLoadAbsentKey(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	reports, err := Load(context.Background(), kv.NewMemory(), now, log)
	require.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}

func TestLoadCorruptDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	log, _ := logtest.NewNullLogger()
	require.NoError(t, s.Set(ctx, kv.KeyReports, "{not json"))

	reports, err := Load(ctx, s, now, log)
	require.Error(t, err)
	assert.Nil(t, reports)

	raw, _, _ := s.Get(ctx, kv.KeyReports)
	assert.Equal(t, "{not json", raw)
}
