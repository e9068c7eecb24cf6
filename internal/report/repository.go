// Package report implements the report lifecycle: creation, edits, close,
// reopen, assignment and deletion over the stored report collection.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/kv"
	"github.com/erazemk/hsefield/internal/migrate"
	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/notify"
)

// auditTimeLayout renders audit note times as dd/mm/yyyy, hh:mm:ss.
const auditTimeLayout = "02/01/2006, 15:04:05"

// eventDateFields are the payload fields holding the event date, in
// priority order.
var eventDateFields = []string{"inspectionDate", "dateTime", "date"}

// ErrNoActor is returned when a lifecycle action has no acting user.
var ErrNoActor = errors.New("acting user required")

// UserLookup resolves user ids for notification messages.
type UserLookup interface {
	LookupUser(ctx context.Context, id string) (*model.User, error)
}

// Outcome is the result of a lifecycle operation. A nil Report means the
// report was not found. Effects must be applied after the report write.
type Outcome struct {
	Report  *model.Report
	Effects []notify.Effect
}

// Repository operates on the report collection. It never touches the
// notification log itself; it returns effects instead.
type Repository struct {
	kv    kv.Store
	users UserLookup
	log   logrus.FieldLogger

	// Now is replaceable in tests.
	Now func() time.Time
}

// NewRepository returns a Repository over s. users may be nil, in which case
// reassignment messages name "another user".
func NewRepository(s kv.Store, users UserLookup, log logrus.FieldLogger) *Repository {
	return &Repository{kv: s, users: users, log: log, Now: time.Now}
}

// GetAll returns every report, newest first. Stored data is migrated on every
// read.
func (r *Repository) GetAll(ctx context.Context) ([]model.Report, error) {
	return migrate.Load(ctx, r.kv, r.Now(), r.log)
}

// Get returns the report with id, or nil.
func (r *Repository) Get(ctx context.Context, id string) (*model.Report, error) {
	reports, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(reports, id); i >= 0 {
		return &reports[i], nil
	}
	return nil, nil
}

// Create stores a new report built from draft and returns it.
func (r *Repository) Create(ctx context.Context, draft model.Draft, submittedBy string) (*model.Report, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}

	reports, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	data, err := canonical(draft.Data)
	if err != nil {
		return nil, err
	}

	now := r.Now()
	report := model.Report{
		ID:          newID(reports, draft.Type, now),
		Type:        draft.Type,
		Date:        EventDate(data, now),
		Status:      model.StatusSubmitted,
		SubmittedBy: submittedBy,
		Data:        data,
	}

	if err := migrate.Save(ctx, r.kv, append([]model.Report{report}, reports...)); err != nil {
		return nil, fmt.Errorf("saving report: %w", err)
	}

	r.log.WithFields(logrus.Fields{"report": report.ID, "type": report.Type, "user": submittedBy}).Info("report created")
	return &report, nil
}

// Update replaces the payload of a report and moves it to In Review,
// whatever its previous status.
func (r *Repository) Update(ctx context.Context, id string, data json.RawMessage) (Outcome, error) {
	if !isJSONObject(data) {
		return Outcome{}, fmt.Errorf("%w: data must be a JSON object", ErrInvalid)
	}

	reports, err := r.GetAll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	i := indexOf(reports, id)
	if i < 0 {
		r.log.WithField("report", id).Warn("report not found for updating")
		return Outcome{}, nil
	}

	report := reports[i]
	if report.Type == model.TypeSafetyInspection {
		if err := validateChecklist(data); err != nil {
			return Outcome{}, err
		}
	}

	if data, err = canonical(data); err != nil {
		return Outcome{}, err
	}

	previous := report.Status
	report.Data = data
	report.Status = model.StatusInReview
	report.LastEdited = model.Timestamp(r.Now())

	return r.replace(ctx, reports, i, report, statusChanged(report, previous))
}

// Close closes a report. Closing a closed report returns it unchanged.
func (r *Repository) Close(ctx context.Context, id string, actor *model.User) (Outcome, error) {
	return r.transition(ctx, id, actor, model.StatusClosed, "closed",
		func(s model.Status) bool { return s != model.StatusClosed })
}

// Reopen moves a closed report back to In Review. Any other report is
// returned unchanged.
func (r *Repository) Reopen(ctx context.Context, id string, actor *model.User) (Outcome, error) {
	return r.transition(ctx, id, actor, model.StatusInReview, "re-opened",
		func(s model.Status) bool { return s == model.StatusClosed })
}

func (r *Repository) transition(ctx context.Context, id string, actor *model.User, to model.Status, verb string, allowed func(model.Status) bool) (Outcome, error) {
	if actor == nil {
		return Outcome{}, ErrNoActor
	}

	reports, err := r.GetAll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	i := indexOf(reports, id)
	if i < 0 {
		return Outcome{}, nil
	}

	report := reports[i]
	if !allowed(report.Status) {
		return Outcome{Report: &report}, nil
	}

	now := r.Now()
	previous := report.Status
	if report.Type == model.TypeSafetyInspection {
		note := fmt.Sprintf("\n\n--- [%s] Report %s on %s ---", actor.FullName, verb, now.Format(auditTimeLayout))
		data, err := appendNote(report.Data, note)
		if err != nil {
			return Outcome{}, err
		}
		report.Data = data
	}
	report.Status = to
	report.LastEdited = model.Timestamp(now)

	return r.replace(ctx, reports, i, report, statusChanged(report, previous))
}

// Assign sets the assignee of a report. An empty assignee unassigns it.
// Assigning the current assignee returns the report unchanged.
func (r *Repository) Assign(ctx context.Context, id, assignee string, actor *model.User) (Outcome, error) {
	if actor == nil {
		return Outcome{}, ErrNoActor
	}

	reports, err := r.GetAll(ctx)
	if err != nil {
		return Outcome{}, err
	}
	i := indexOf(reports, id)
	if i < 0 {
		r.log.WithField("report", id).Warn("report not found for assignment")
		return Outcome{}, nil
	}

	report := reports[i]
	previous := report.AssignedTo
	if previous == assignee {
		return Outcome{Report: &report}, nil
	}
	report.AssignedTo = assignee

	var effects []notify.Effect
	if assignee != "" {
		effects = append(effects, notify.Send{
			UserID:   assignee,
			ReportID: id,
			Message:  fmt.Sprintf("Report %s has been assigned to you by %s.", id, actor.FullName),
		})
	}
	if previous != "" {
		var msg string
		if assignee != "" {
			msg = fmt.Sprintf("Report %s was reassigned to %s by %s.", id, r.displayName(ctx, assignee), actor.FullName)
		} else {
			msg = fmt.Sprintf("Report %s was unassigned from you by %s.", id, actor.FullName)
		}
		effects = append(effects, notify.Send{UserID: previous, ReportID: id, Message: msg})
	}

	return r.replace(ctx, reports, i, report, effects)
}

// Delete removes a report. The returned outcome carries the removed report
// (nil if it did not exist) and always asks for its notifications to be
// purged.
func (r *Repository) Delete(ctx context.Context, id string) (Outcome, error) {
	reports, err := r.GetAll(ctx)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Effects: []notify.Effect{notify.Purge{ReportID: id}}}
	i := indexOf(reports, id)
	if i < 0 {
		return out, nil
	}

	removed := reports[i]
	kept := append(reports[:i:i], reports[i+1:]...)
	if err := migrate.Save(ctx, r.kv, kept); err != nil {
		return Outcome{}, fmt.Errorf("deleting report: %w", err)
	}

	r.log.WithField("report", id).Info("report deleted")
	out.Report = &removed
	return out, nil
}

func (r *Repository) replace(ctx context.Context, reports []model.Report, i int, report model.Report, effects []notify.Effect) (Outcome, error) {
	reports[i] = report
	if err := migrate.Save(ctx, r.kv, reports); err != nil {
		return Outcome{}, fmt.Errorf("saving report: %w", err)
	}
	r.log.WithFields(logrus.Fields{"report": report.ID, "status": report.Status}).Info("report updated")
	return Outcome{Report: &report, Effects: effects}, nil
}

func (r *Repository) displayName(ctx context.Context, id string) string {
	if r.users == nil {
		return "another user"
	}
	u, err := r.users.LookupUser(ctx, id)
	if err != nil {
		r.log.WithError(err).WithField("user", id).Warn("user lookup failed")
		return "another user"
	}
	if u == nil || u.FullName == "" {
		return "another user"
	}
	return u.FullName
}

func statusChanged(report model.Report, previous model.Status) []notify.Effect {
	return []notify.Effect{notify.Send{
		UserID:   report.SubmittedBy,
		ReportID: report.ID,
		Message:  fmt.Sprintf("Report %s status changed from %q to %q.", report.ID, previous, report.Status),
	}}
}

func indexOf(reports []model.Report, id string) int {
	for i := range reports {
		if reports[i].ID == id {
			return i
		}
	}
	return -1
}

// newID builds "{PREFIX}-{last four digits of epoch millis}", stepping the
// clock forward a millisecond at a time until the id is unused.
func newID(reports []model.Report, t model.ReportType, now time.Time) string {
	ms := now.UnixMilli()
	for {
		digits := strconv.FormatInt(ms, 10)
		if len(digits) > 4 {
			digits = digits[len(digits)-4:]
		}
		id := t.Prefix() + "-" + digits
		if indexOf(reports, id) < 0 {
			return id
		}
		ms++
	}
}

// EventDate returns the YYYY-MM-DD event date of a payload: the first
// truthy field among inspectionDate, dateTime and date, truncated to ten
// characters. If that field is not a string, or none is set, the local date
// of now is used.
func EventDate(data json.RawMessage, now time.Time) string {
	fallback := now.Format(time.DateOnly)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fallback
	}
	for _, key := range eventDateFields {
		raw := bytes.TrimSpace(fields[key])
		if falsy(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fallback
		}
		if r := []rune(s); len(r) > 10 {
			return string(r[:10])
		}
		return s
	}
	return fallback
}

// appendNote appends note to data.notes. A notes value that is set but not a
// string is kept as its JSON text.
func appendNote(data json.RawMessage, note string) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decoding report data: %w", err)
	}

	var notes string
	if raw := bytes.TrimSpace(fields["notes"]); !falsy(raw) {
		if err := json.Unmarshal(raw, &notes); err != nil {
			notes = string(raw)
		}
	}
	encoded, err := json.Marshal(notes + note)
	if err != nil {
		return nil, fmt.Errorf("encoding notes: %w", err)
	}
	fields["notes"] = encoded

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding report data: %w", err)
	}
	return out, nil
}

// canonical returns data in the compact form it takes once stored, so the
// report handed back to the caller matches what a later read returns.
func canonical(data json.RawMessage) (json.RawMessage, error) {
	out, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

func falsy(raw []byte) bool {
	switch string(raw) {
	case "", "null", `""`, "false", "0":
		return true
	}
	return false
}
