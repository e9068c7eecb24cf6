package model

// Reminder priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Reminder is a follow-up task set by a manager. TargetChecklist, TargetRole
// and IsActive are written by the reminder admin form and are optional.
type Reminder struct {
	ID              string `json:"id"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	Message         string `json:"message,omitempty"`
	DueDate         string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Priority        string `json:"priority" validate:"oneof=Low Medium High"`
	AssignedTo      string `json:"assignedTo"`
	Completed       bool   `json:"completed"`
	CreatedAt       string `json:"createdAt"`
	TargetChecklist string `json:"targetChecklist,omitempty"`
	TargetRole      string `json:"targetRole,omitempty"`
	IsActive        *bool  `json:"isActive,omitempty"`
}
