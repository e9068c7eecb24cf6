package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/notify"
)

// NotificationsHandler handles the caller's notifications.
type NotificationsHandler struct {
	Notifications *notify.Store
	Log           logrus.FieldLogger
}

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	list, err := h.Notifications.ListForUser(r.Context(), user.ID)
	if err != nil {
		h.Log.WithError(err).Error("failed to list notifications")
		jsonError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	unread := 0
	for _, n := range list {
		if !n.IsRead {
			unread++
		}
	}
	jsonResponse(w, http.StatusOK, notificationsResponse{Notifications: list, Unread: unread})
}

// MarkRead handles POST /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	found, err := h.Notifications.MarkRead(r.Context(), r.PathValue("id"), GetUser(r.Context()).ID)
	if err != nil {
		h.Log.WithError(err).Error("failed to mark notification read")
		jsonError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "notification not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification marked read"})
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.Notifications.MarkAllRead(r.Context(), GetUser(r.Context()).ID)
	if err != nil {
		h.Log.WithError(err).Error("failed to mark notifications read")
		jsonError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"updated": changed})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	found, err := h.Notifications.Delete(r.Context(), r.PathValue("id"), GetUser(r.Context()).ID)
	if err != nil {
		h.Log.WithError(err).Error("failed to delete notification")
		jsonError(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}
	if !found {
		jsonError(w, http.StatusNotFound, "notification not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}
