package model

import "time"

// TimestampLayout is the ISO-8601 layout used for every stored timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in UTC with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Notification is a per-user message produced by a report lifecycle change.
type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	ReportID  string `json:"reportId"`
	Message   string `json:"message"`
	IsRead    bool   `json:"isRead"`
	Timestamp string `json:"timestamp"`
}
