package model

import (
	"encoding/json"
	"testing"
)

func TestReportTypePrefix(t *testing.T) {
	tests := map[ReportType]string{
		TypeIncident:         "INC",
		TypeNearMiss:         "NEA",
		TypeSafetyInspection: "SAF",
		TypeEnvironmental:    "ENV",
	}
	for typ, want := range tests {
		if got := typ.Prefix(); got != want {
			t.Errorf("%q.Prefix() = %q, want %q", typ, got, want)
		}
	}
}

func TestReportTypeValid(t *testing.T) {
	if !TypeNearMiss.Valid() {
		t.Error("Near Miss should be valid")
	}
	if ReportType("NearMiss").Valid() {
		t.Error("NearMiss without a space is not a report type")
	}
}

func TestSafetyInspectionValidate(t *testing.T) {
	pass, bogus := ChecklistPass, "Maybe"

	ok := SafetyInspectionData{Checklist: []ChecklistItem{{Text: "Exits clear", Status: &pass}, {Text: "Unrated"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := SafetyInspectionData{Checklist: []ChecklistItem{{Text: "Guard rails", Status: &bogus}}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown rating")
	}
}

func TestChecklistItemUnratedEncodesNull(t *testing.T) {
	data, err := json.Marshal(ChecklistItem{ID: "c1", Text: "Fire extinguisher"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"id":"c1","text":"Fire extinguisher","status":null}` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestAttachGPS(t *testing.T) {
	data := json.RawMessage(`{"location":"Dock 4"}`)

	same, err := AttachGPS(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(same) != string(data) {
		t.Errorf("nil fix must leave data unchanged, got %s", same)
	}

	out, err := AttachGPS(data, &GPS{Latitude: 46.05, Longitude: 14.5})
	if err != nil {
		t.Fatal(err)
	}
	var fields struct {
		Location string `json:"location"`
		GPS      GPS    `json:"gps"`
	}
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatal(err)
	}
	if fields.Location != "Dock 4" || fields.GPS.Latitude != 46.05 || fields.GPS.Longitude != 14.5 {
		t.Errorf("unexpected data: %s", out)
	}
}

func TestReportKeepsExtraFields(t *testing.T) {
	raw := `{"id":"R1","type":"Incident","date":"2026-01-01","status":"Closed","submittedBy":"u1","data":{},"title":"Forklift tipped"}`

	var r Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatal(err)
	}
	if r.ID != "R1" || r.Status != StatusClosed {
		t.Errorf("known fields not decoded: %+v", r)
	}
	if len(r.Extra) != 1 || string(r.Extra["title"]) != `"Forklift tipped"` {
		t.Errorf("Extra = %v, want only title", r.Extra)
	}

	// Extra entries never override known fields.
	r.Extra["status"] = json.RawMessage(`"Submitted"`)
	out, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatal(err)
	}
	if string(fields["title"]) != `"Forklift tipped"` {
		t.Errorf("title lost: %s", out)
	}
	if string(fields["status"]) != `"Closed"` {
		t.Errorf("status = %s, want \"Closed\"", fields["status"])
	}
}

func TestReportWithoutExtraHasNilExtra(t *testing.T) {
	var r Report
	if err := json.Unmarshal([]byte(`{"id":"R1","data":{}}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Extra != nil {
		t.Errorf("Extra = %v, want nil", r.Extra)
	}
}
