package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/auth"
	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/settings"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Settings  *settings.Store
	JWTSecret string
	Log       logrus.FieldLogger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.Settings.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.Log.WithError(err).Error("failed to authenticate")
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		h.Log.WithFields(logrus.Fields{"email": req.Email, "remote": r.RemoteAddr}).Warn("login failed")
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.Log.WithFields(logrus.Fields{"user": user.ID, "role": user.Role}).Info("user logged in")
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout. The token stays revoked until it
// would have expired anyway.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expiresAt := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.Settings.RevokeToken(r.Context(), claims.ID, expiresAt); err != nil {
		h.Log.WithError(err).Error("failed to revoke token")
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	h.Log.WithField("user", claims.Subject).Info("user logged out")
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, GetUser(r.Context()))
}
