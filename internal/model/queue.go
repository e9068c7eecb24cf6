package model

import "encoding/json"

// OfflineReport is a draft submitted while offline, waiting to be created.
type OfflineReport struct {
	Draft
	SubmittedBy string `json:"submittedBy"`
}

// OfflineEdit is a report update made while offline.
type OfflineEdit struct {
	ReportID    string          `json:"reportId"`
	UpdatedData json.RawMessage `json:"updatedData"`
	Timestamp   string          `json:"timestamp"`
}
