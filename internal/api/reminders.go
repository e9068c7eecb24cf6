package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/settings"
)

// RemindersHandler handles follow-up reminders. Managers maintain them;
// everyone reads the ones addressed to them.
type RemindersHandler struct {
	Settings *settings.Store
	Log      logrus.FieldLogger
}

// List handles GET /api/reminders.
func (h *RemindersHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Settings.RemindersFor(r.Context(), GetUser(r.Context()))
	if err != nil {
		h.Log.WithError(err).Error("failed to list reminders")
		jsonError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Create handles POST /api/reminders.
func (h *RemindersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Reminder
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rem, err := h.Settings.CreateReminder(r.Context(), req)
	if errors.Is(err, settings.ErrInvalidReminder) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("failed to create reminder")
		jsonError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}

	h.Log.WithFields(logrus.Fields{"reminder": rem.ID, "assignee": rem.AssignedTo}).Info("reminder created")
	jsonResponse(w, http.StatusCreated, rem)
}

// Update handles PUT /api/reminders/{id}.
func (h *RemindersHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.Reminder
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ID = r.PathValue("id")

	rem, err := h.Settings.UpdateReminder(r.Context(), req)
	switch {
	case errors.Is(err, settings.ErrInvalidReminder):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Log.WithError(err).Error("failed to update reminder")
		jsonError(w, http.StatusInternalServerError, "failed to update reminder")
		return
	case rem == nil:
		jsonError(w, http.StatusNotFound, "reminder not found")
		return
	}
	jsonResponse(w, http.StatusOK, rem)
}

// Delete handles DELETE /api/reminders/{id}.
func (h *RemindersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	found, err := h.Settings.DeleteReminder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.Log.WithError(err).Error("failed to delete reminder")
		jsonError(w, http.StatusInternalServerError, "failed to delete reminder")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "reminder not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "reminder deleted"})
}
