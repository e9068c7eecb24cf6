package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/settings"
)

// UsersHandler handles the user directory (managers only).
type UsersHandler struct {
	Settings *settings.Store
	Log      logrus.FieldLogger
}

type createUserRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId"`
}

var knownRoles = map[string]bool{
	model.RoleAdmin:    true,
	model.RoleSuper:    true,
	model.RoleStandard: true,
	model.RolePersonal: true,
}

// List handles GET /api/users. Used to pick assignees.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Settings.Users(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to list users")
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users. Only administrators may add users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	if GetUser(r.Context()).Role != model.RoleAdmin {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !knownRoles[req.Role] {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	user, err := h.Settings.CreateUser(r.Context(), model.User{
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
	}, req.Password)
	switch {
	case errors.Is(err, settings.ErrConflict):
		jsonError(w, http.StatusConflict, "email already registered")
		return
	case errors.Is(err, settings.ErrInvalid):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Log.WithError(err).Error("failed to create user")
		jsonError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.Log.WithFields(logrus.Fields{"user": user.ID, "role": user.Role}).Info("user created")
	jsonResponse(w, http.StatusCreated, user)
}
