package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReportType is one of the four HSE report kinds.
type ReportType string

// Report types.
const (
	TypeIncident         ReportType = "Incident"
	TypeNearMiss         ReportType = "Near Miss"
	TypeSafetyInspection ReportType = "Safety Inspection"
	TypeEnvironmental    ReportType = "Environmental"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case TypeIncident, TypeNearMiss, TypeSafetyInspection, TypeEnvironmental:
		return true
	}
	return false
}

// Prefix returns the id prefix for reports of this type ("INC", "NEA", ...).
func (t ReportType) Prefix() string {
	s := string(t)
	if len(s) > 3 {
		s = s[:3]
	}
	return strings.ToUpper(s)
}

// Status is a report lifecycle state. Stored data may carry legacy values
// outside the constants below.
type Status string

// Report statuses.
const (
	StatusSubmitted Status = "Submitted"
	StatusInReview  Status = "In Review"
	StatusClosed    Status = "Closed"
)

// Report is a submitted HSE record. Data holds the type-specific payload as
// raw JSON and is always an object.
type Report struct {
	ID          string          `json:"id"`
	Type        ReportType      `json:"type"`
	Date        string          `json:"date"`
	Status      Status          `json:"status"`
	SubmittedBy string          `json:"submittedBy"`
	AssignedTo  string          `json:"assignedTo,omitempty"`
	LastEdited  string          `json:"lastEdited,omitempty"`
	Data        json.RawMessage `json:"data"`

	// Extra holds stored top-level fields the current schema does not know.
	// They are written back unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var reportFields = map[string]bool{
	"id": true, "type": true, "date": true, "status": true,
	"submittedBy": true, "assignedTo": true, "lastEdited": true, "data": true,
}

// reportJSON has Report's fields without its methods.
type reportJSON Report

// ExtraFields returns the entries of fields that are not Report fields, or
// nil if there are none.
func ExtraFields(fields map[string]json.RawMessage) map[string]json.RawMessage {
	var extra map[string]json.RawMessage
	for k, v := range fields {
		if reportFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}

// MarshalJSON encodes the report with its Extra fields alongside the known
// ones.
func (r Report) MarshalJSON() ([]byte, error) {
	out, err := json.Marshal(reportJSON(r))
	if err != nil || len(r.Extra) == 0 {
		return out, err
	}

	var known map[string]json.RawMessage
	if err := json.Unmarshal(out, &known); err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage, len(known)+len(r.Extra))
	for k, v := range r.Extra {
		if !reportFields[k] {
			fields[k] = v
		}
	}
	for k, v := range known {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON decodes a report, keeping unknown fields in Extra.
func (r *Report) UnmarshalJSON(b []byte) error {
	var known reportJSON
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = Report(known)
	r.Extra = ExtraFields(fields)
	return nil
}

// Draft is a report as built by the UI, before the repository assigns its
// id, date and status.
type Draft struct {
	Type ReportType      `json:"type" validate:"reporttype"`
	Data json.RawMessage `json:"data" validate:"jsonobject"`
}

// ChecklistItem is one rated line of a safety inspection. Status is nil until
// the line is rated.
type ChecklistItem struct {
	ID     string  `json:"id,omitempty"`
	Text   string  `json:"text"`
	Status *string `json:"status"`
	Notes  string  `json:"notes,omitempty"`
}

// Checklist ratings.
const (
	ChecklistPass = "Pass"
	ChecklistFail = "Fail"
	ChecklistNA   = "N/A"
)

// SafetyInspectionData is the payload of a Safety Inspection report.
type SafetyInspectionData struct {
	InspectionDate string          `json:"inspectionDate,omitempty"`
	SiteArea       string          `json:"siteArea,omitempty"`
	InspectorName  string          `json:"inspectorName,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	Photos         []string        `json:"photos,omitempty"`
	GPS            *GPS            `json:"gps,omitempty"`
	Checklist      []ChecklistItem `json:"checklist"`
}

// Validate checks that every checklist rating is known or unset.
func (d *SafetyInspectionData) Validate() error {
	for i, item := range d.Checklist {
		if item.Status == nil {
			continue
		}
		switch *item.Status {
		case ChecklistPass, ChecklistFail, ChecklistNA:
		default:
			return fmt.Errorf("checklist item %d: invalid status %q", i, *item.Status)
		}
	}
	return nil
}

// GPS is a best-effort location fix captured by the client.
type GPS struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AttachGPS returns data with gps stored under the "gps" field. A nil fix
// returns data unchanged.
func AttachGPS(data json.RawMessage, gps *GPS) (json.RawMessage, error) {
	if gps == nil {
		return data, nil
	}
	fields := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decoding report data: %w", err)
		}
	}
	loc, err := json.Marshal(gps)
	if err != nil {
		return nil, fmt.Errorf("encoding gps: %w", err)
	}
	fields["gps"] = loc
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding report data: %w", err)
	}
	return out, nil
}
