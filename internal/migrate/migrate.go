// Package migrate upgrades the stored report collection to the current
// schema. Migrate is pure; Load and Save connect it to a kv.Store.
package migrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/model"
)

// CurrentVersion is the envelope version written by Save.
const CurrentVersion = 2

// Defaults used when backfilling version 1 records.
const (
	DefaultType        = model.TypeIncident
	DefaultStatus      = model.StatusSubmitted
	DefaultSubmittedBy = "unknown-user"
)

// ErrUnrecognizedFormat is returned when the stored document is valid JSON
// but neither a bare array nor a versioned envelope.
var ErrUnrecognizedFormat = errors.New("unrecognized report data format")

// Envelope is the stored shape of the report collection.
type Envelope struct {
	Version int            `json:"version"`
	Reports []model.Report `json:"reports"`
}

// Result is the outcome of migrating one stored document.
type Result struct {
	Reports []model.Report
	// Version is the version detected in storage.
	Version int
	// Rewrite is set when records were migrated or discarded and storage no
	// longer matches Reports.
	Rewrite   bool
	Discarded int
	Warnings  []string
}

// Migrate parses a stored report collection and returns the valid
// current-schema reports. now supplies synthesized ids and dates.
func Migrate(raw []byte, now time.Time) (Result, error) {
	var top json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", kv.ErrCorrupt, kv.KeyReports, err)
	}

	records, version, err := detect(top)
	if err != nil {
		return Result{}, err
	}

	res := Result{Version: version, Reports: make([]model.Report, 0, len(records))}
	for i, rec := range records {
		fields, ok := asObject(rec)
		if !ok {
			res.discard(fmt.Sprintf("item at index %d is not a report object, discarding", i))
			continue
		}

		if version < 2 {
			res.Rewrite = true
			backfillV1(fields, i, now)
		}

		report, ok := toReport(fields)
		if !ok {
			res.discard(fmt.Sprintf("report at index %d is invalid after migration, discarding", i))
			continue
		}
		res.Reports = append(res.Reports, report)
	}

	return res, nil
}

func (r *Result) discard(warning string) {
	r.Rewrite = true
	r.Discarded++
	r.Warnings = append(r.Warnings, warning)
}

// detect returns the raw records and the version of the document.
func detect(top json.RawMessage) ([]json.RawMessage, int, error) {
	switch firstByte(top) {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(top, &records); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
		}
		return records, 1, nil
	case '{':
		var env struct {
			Version json.RawMessage `json:"version"`
			Reports json.RawMessage `json:"reports"`
		}
		if err := json.Unmarshal(top, &env); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
		}
		var version int
		if err := json.Unmarshal(env.Version, &version); err != nil {
			return nil, 0, fmt.Errorf("%w: version is not an integer", ErrUnrecognizedFormat)
		}
		if firstByte(env.Reports) != '[' {
			return nil, 0, fmt.Errorf("%w: reports is not an array", ErrUnrecognizedFormat)
		}
		var records []json.RawMessage
		if err := json.Unmarshal(env.Reports, &records); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
		}
		return records, version, nil
	}
	return nil, 0, ErrUnrecognizedFormat
}

// backfillV1 fills the fields version 1 records may lack. Falsy values
// (missing, null, "", 0, false) count as missing.
func backfillV1(fields map[string]json.RawMessage, index int, now time.Time) {
	fill := func(key string, v any) {
		if !falsy(fields[key]) {
			return
		}
		b, _ := json.Marshal(v)
		fields[key] = b
	}
	fill("id", fmt.Sprintf("migrated-%d-%d", now.UnixMilli(), index))
	fill("type", DefaultType)
	fill("date", now.UTC().Format(time.DateOnly))
	fill("status", DefaultStatus)
	fill("submittedBy", DefaultSubmittedBy)
	if falsy(fields["data"]) {
		fields["data"] = json.RawMessage(`{}`)
	}
}

// toReport validates the required fields and builds the report. Fields it
// does not know are kept in Extra.
func toReport(fields map[string]json.RawMessage) (model.Report, bool) {
	var r model.Report
	var ok bool

	if r.ID, ok = asString(fields["id"]); !ok {
		return r, false
	}
	var typ, status string
	if typ, ok = asString(fields["type"]); !ok {
		return r, false
	}
	if r.Date, ok = asString(fields["date"]); !ok {
		return r, false
	}
	if status, ok = asString(fields["status"]); !ok {
		return r, false
	}
	if r.SubmittedBy, ok = asString(fields["submittedBy"]); !ok {
		return r, false
	}
	if firstByte(fields["data"]) != '{' {
		return r, false
	}

	r.Type = model.ReportType(typ)
	r.Status = model.Status(status)
	r.Data = fields["data"]
	r.AssignedTo, _ = asString(fields["assignedTo"])
	r.LastEdited, _ = asString(fields["lastEdited"])
	r.Extra = model.ExtraFields(fields)
	return r, true
}

func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if firstByte(raw) != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func asString(raw json.RawMessage) (string, bool) {
	if firstByte(raw) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func falsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

// Load reads the report collection from s and migrates it. When the stored
// document had to change it is rewritten at CurrentVersion before Load
// returns. An absent key yields an empty collection.
func Load(ctx context.Context, s kv.Store, now time.Time, log logrus.FieldLogger) ([]model.Report, error) {
	raw, ok, err := s.Get(ctx, kv.KeyReports)
	if err != nil {
		return nil, fmt.Errorf("reading reports: %w", err)
	}
	if !ok {
		return []model.Report{}, nil
	}

	res, err := Migrate([]byte(raw), now)
	if err != nil {
		log.WithError(err).Error("report data cannot be loaded")
		return nil, err
	}

	for _, w := range res.Warnings {
		log.Warn(w)
	}

	if res.Rewrite {
		log.WithFields(logrus.Fields{
			"from_version": res.Version,
			"reports":      len(res.Reports),
			"discarded":    res.Discarded,
		}).Info("report data migrated, saving updated structure")
		if err := Save(ctx, s, res.Reports); err != nil {
			return nil, err
		}
	}

	return res.Reports, nil
}

// Save writes reports under the current version envelope.
func Save(ctx context.Context, s kv.Store, reports []model.Report) error {
	if reports == nil {
		reports = []model.Report{}
	}
	return kv.SetJSON(ctx, s, kv.KeyReports, Envelope{Version: CurrentVersion, Reports: reports})
}
