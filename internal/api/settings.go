package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/settings"
)

// SettingsHandler handles settings, permission and department endpoints.
type SettingsHandler struct {
	Settings *settings.Store
	Log      logrus.FieldLogger
}

type gpsSetting struct {
	Enabled *bool `json:"enabled"`
}

type permissionsResponse struct {
	Role     string                   `json:"role"`
	Screens  map[string]bool          `json:"screens"`
	Features model.FeaturePermissions `json:"features"`
}

// GetGPS handles GET /api/settings/gps.
func (h *SettingsHandler) GetGPS(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.Settings.GPSEnabled(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to read gps setting")
		jsonError(w, http.StatusInternalServerError, "failed to read settings")
		return
	}
	jsonResponse(w, http.StatusOK, gpsSetting{Enabled: &enabled})
}

// PutGPS handles PUT /api/settings/gps.
func (h *SettingsHandler) PutGPS(w http.ResponseWriter, r *http.Request) {
	var req gpsSetting
	if err := decodeJSON(r, &req); err != nil || req.Enabled == nil {
		jsonError(w, http.StatusBadRequest, "enabled required")
		return
	}
	if err := h.Settings.SetGPSEnabled(r.Context(), *req.Enabled); err != nil {
		h.Log.WithError(err).Error("failed to store gps setting")
		jsonError(w, http.StatusInternalServerError, "failed to store settings")
		return
	}
	h.Log.WithField("enabled", *req.Enabled).Info("gps tagging changed")
	jsonResponse(w, http.StatusOK, req)
}

// Permissions handles GET /api/settings/permissions. It returns what the
// caller's role may do.
func (h *SettingsHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	roles, err := h.Settings.RolePermissions(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to read role permissions")
		jsonError(w, http.StatusInternalServerError, "failed to read permissions")
		return
	}
	features, err := h.Settings.FeaturesFor(r.Context(), user.Role)
	if err != nil {
		h.Log.WithError(err).Error("failed to read feature permissions")
		jsonError(w, http.StatusInternalServerError, "failed to read permissions")
		return
	}

	screens := roles[user.Role]
	if screens == nil {
		screens = map[string]bool{}
	}
	jsonResponse(w, http.StatusOK, permissionsResponse{Role: user.Role, Screens: screens, Features: features})
}

// Departments handles GET /api/departments.
func (h *SettingsHandler) Departments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Settings.Departments(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to list departments")
		jsonError(w, http.StatusInternalServerError, "failed to list departments")
		return
	}
	jsonResponse(w, http.StatusOK, list)
}
