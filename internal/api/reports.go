package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/report"
	"github.com/erazemk/hsefield/internal/settings"
)

// haltedMessage is shown when the stored reports cannot be read. The client
// must stop and not retry.
const haltedMessage = "stored reports are unreadable; stop using the application and contact support"

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	Reports  *report.Service
	Settings *settings.Store
	Log      logrus.FieldLogger
}

type createReportRequest struct {
	Type model.ReportType `json:"type"`
	Data json.RawMessage  `json:"data"`
	GPS  *model.GPS       `json:"gps,omitempty"`
}

type updateReportRequest struct {
	Data json.RawMessage `json:"data"`
}

type assignRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// serviceError maps a report service error to a response.
func serviceError(w http.ResponseWriter, log logrus.FieldLogger, err error, message string) {
	switch {
	case report.IsFatal(err):
		jsonError(w, http.StatusServiceUnavailable, haltedMessage)
	case errors.Is(err, report.ErrInvalid):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).Error(message)
		jsonError(w, http.StatusInternalServerError, message)
	}
}

// result writes the error response for a failed or empty service call and
// reports whether the caller should continue. A report that was saved but
// whose notifications failed still counts as a success.
func (h *ReportsHandler) result(w http.ResponseWriter, rep *model.Report, err error, message string) bool {
	if err != nil {
		if rep != nil && !report.IsFatal(err) {
			h.Log.WithError(err).WithField("report", rep.ID).Warn("report saved but notifications failed")
			return true
		}
		serviceError(w, h.Log, err, message)
		return false
	}
	if rep == nil {
		jsonError(w, http.StatusNotFound, "report not found")
		return false
	}
	return true
}

func canSee(user *model.User, rep *model.Report) bool {
	return model.HasManagerialRole(user) || rep.SubmittedBy == user.ID || rep.AssignedTo == user.ID
}

// List handles GET /api/reports. Managers see every report, other users see
// their own. ?assigned=me narrows to reports assigned to the caller; ?type=
// and ?status= filter further.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	reports, err := h.Reports.GetAll(r.Context())
	if err != nil {
		serviceError(w, h.Log, err, "failed to list reports")
		return
	}

	q := r.URL.Query()
	assignedToMe := q.Get("assigned") == "me"
	typ, status := q.Get("type"), q.Get("status")

	out := []model.Report{}
	for _, rep := range reports {
		if assignedToMe {
			if rep.AssignedTo != user.ID {
				continue
			}
		} else if !model.HasManagerialRole(user) && rep.SubmittedBy != user.ID {
			continue
		}
		if typ != "" && string(rep.Type) != typ {
			continue
		}
		if status != "" && string(rep.Status) != status {
			continue
		}
		out = append(out, rep)
	}
	jsonResponse(w, http.StatusOK, out)
}

// Create handles POST /api/reports.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	draft, ok := h.draft(w, r, user, req)
	if !ok {
		return
	}

	rep, err := h.Reports.Create(r.Context(), draft, user.ID)
	if err != nil {
		serviceError(w, h.Log, err, "failed to create report")
		return
	}
	jsonResponse(w, http.StatusCreated, rep)
}

// draft checks that the user may submit this report type and attaches the
// device location when GPS tagging is enabled.
func (h *ReportsHandler) draft(w http.ResponseWriter, r *http.Request, user *model.User, req createReportRequest) (model.Draft, bool) {
	if !req.Type.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown report type")
		return model.Draft{}, false
	}

	perms, err := h.Settings.RolePermissions(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to read role permissions")
		jsonError(w, http.StatusInternalServerError, "failed to read permissions")
		return model.Draft{}, false
	}
	if !perms.Allows(user.Role, req.Type) {
		jsonError(w, http.StatusForbidden, "your role may not submit this report type")
		return model.Draft{}, false
	}

	data := req.Data
	if req.GPS != nil {
		enabled, err := h.Settings.GPSEnabled(r.Context())
		if err != nil {
			h.Log.WithError(err).Error("failed to read gps setting")
			jsonError(w, http.StatusInternalServerError, "failed to read settings")
			return model.Draft{}, false
		}
		if enabled {
			data, err = model.AttachGPS(data, req.GPS)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "data must be a JSON object")
				return model.Draft{}, false
			}
		}
	}
	return model.Draft{Type: req.Type, Data: data}, true
}

// Get handles GET /api/reports/{id}.
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Get(r.Context(), r.PathValue("id"))
	if !h.result(w, rep, err, "failed to get report") {
		return
	}
	if !canSee(GetUser(r.Context()), rep) {
		jsonError(w, http.StatusNotFound, "report not found")
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// Update handles PUT /api/reports/{id}.
func (h *ReportsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())
	id := r.PathValue("id")

	var req updateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.Reports.Get(r.Context(), id)
	if !h.result(w, existing, err, "failed to get report") {
		return
	}
	if !canSee(user, existing) {
		jsonError(w, http.StatusNotFound, "report not found")
		return
	}

	rep, err := h.Reports.Update(r.Context(), id, req.Data)
	if !h.result(w, rep, err, "failed to update report") {
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// Close handles POST /api/reports/{id}/close.
func (h *ReportsHandler) Close(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Close(r.Context(), r.PathValue("id"), GetUser(r.Context()))
	if !h.result(w, rep, err, "failed to close report") {
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// Reopen handles POST /api/reports/{id}/reopen.
func (h *ReportsHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reports.Reopen(r.Context(), r.PathValue("id"), GetUser(r.Context()))
	if !h.result(w, rep, err, "failed to reopen report") {
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// Assign handles POST /api/reports/{id}/assign. An empty assignee
// unassigns the report.
func (h *ReportsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AssignedTo != "" {
		assignee, err := h.Settings.LookupUser(r.Context(), req.AssignedTo)
		if err != nil {
			h.Log.WithError(err).Error("failed to look up assignee")
			jsonError(w, http.StatusInternalServerError, "failed to look up assignee")
			return
		}
		if assignee == nil {
			jsonError(w, http.StatusBadRequest, "unknown assignee")
			return
		}
	}

	rep, err := h.Reports.Assign(r.Context(), r.PathValue("id"), req.AssignedTo, GetUser(r.Context()))
	if !h.result(w, rep, err, "failed to assign report") {
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// Delete handles DELETE /api/reports/{id}. It needs the canDeleteReport
// feature on top of a managerial role.
func (h *ReportsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	features, err := h.Settings.FeaturesFor(r.Context(), user.Role)
	if err != nil {
		h.Log.WithError(err).Error("failed to read feature permissions")
		jsonError(w, http.StatusInternalServerError, "failed to read permissions")
		return
	}
	if !features.CanDeleteReport {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	rep, err := h.Reports.Delete(r.Context(), r.PathValue("id"))
	if !h.result(w, rep, err, "failed to delete report") {
		return
	}
	h.Log.WithFields(logrus.Fields{"report": rep.ID, "user": user.ID}).Info("report deleted")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "report deleted"})
}
