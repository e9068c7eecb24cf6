package model

// User is the identity object handed to the report core. It is read-only to
// the core.
type User struct {
	ID           string `json:"id" validate:"required"`
	FullName     string `json:"fullName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Role         string `json:"role" validate:"required"`
	DepartmentID string `json:"departmentId,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Account is a directory entry: the identity plus its credentials.
type Account struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// Roles.
const (
	RoleAdmin    = "Admin User"
	RoleSuper    = "Super User"
	RoleStandard = "Standard User"
	RolePersonal = "Personal User"
)

// User statuses.
const (
	UserStatusActive   = "Active"
	UserStatusInactive = "Inactive"
)

// HasManagerialRole reports whether u may close, reopen and assign reports.
func HasManagerialRole(u *User) bool {
	if u == nil {
		return false
	}
	return u.Role == RoleAdmin || u.Role == RoleSuper
}

// Department groups users.
type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Report screens a role may be allowed to submit from.
const (
	ScreenIncidentReport      = "IncidentReport"
	ScreenNearMissReport      = "NearMissReport"
	ScreenSafetyInspection    = "SafetyInspection"
	ScreenEnvironmentalReport = "EnvironmentalReport"
)

// ScreenFor maps a report type to the screen that submits it.
func ScreenFor(t ReportType) string {
	switch t {
	case TypeIncident:
		return ScreenIncidentReport
	case TypeNearMiss:
		return ScreenNearMissReport
	case TypeSafetyInspection:
		return ScreenSafetyInspection
	case TypeEnvironmental:
		return ScreenEnvironmentalReport
	}
	return ""
}

// RolePermissions maps role -> screen -> allowed.
type RolePermissions map[string]map[string]bool

// Allows reports whether role may submit reports of type t.
func (p RolePermissions) Allows(role string, t ReportType) bool {
	return p[role][ScreenFor(t)]
}

// FeaturePermissions toggles optional features for a role.
type FeaturePermissions struct {
	CanViewReports      bool `json:"canViewReports"`
	CanViewDashboard    bool `json:"canViewDashboard"`
	CanAccessAdminPanel bool `json:"canAccessAdminPanel"`
	CanViewPhotoGallery bool `json:"canViewPhotoGallery"`
	CanDeleteReport     bool `json:"canDeleteReport"`
}
