package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/notify"
	"github.com/erazemk/hsefield/internal/queue"
	"github.com/erazemk/hsefield/internal/report"
	"github.com/erazemk/hsefield/internal/settings"
)

// Deps are the components the API exposes.
type Deps struct {
	Reports       *report.Service
	Notifications *notify.Store
	Queue         *queue.Queue
	Replayer      *queue.Replayer
	Settings      *settings.Store
	JWTSecret     string
	Log           logrus.FieldLogger

	// LoginLimit is the number of login attempts allowed per client and
	// LoginPeriod.
	LoginLimit  int64
	LoginPeriod time.Duration
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Settings: d.Settings, JWTSecret: d.JWTSecret, Log: d.Log}
	reportsHandler := &ReportsHandler{Reports: d.Reports, Settings: d.Settings, Log: d.Log}
	notificationsHandler := &NotificationsHandler{Notifications: d.Notifications, Log: d.Log}
	offlineHandler := &OfflineHandler{Queue: d.Queue, Replayer: d.Replayer, Reports: reportsHandler, Log: d.Log}
	photosHandler := &PhotosHandler{Log: d.Log}
	settingsHandler := &SettingsHandler{Settings: d.Settings, Log: d.Log}
	usersHandler := &UsersHandler{Settings: d.Settings, Log: d.Log}
	remindersHandler := &RemindersHandler{Settings: d.Settings, Log: d.Log}

	authMW := AuthMiddleware(d.JWTSecret, d.Settings)
	loginLimit := RateLimit(d.LoginLimit, d.LoginPeriod)
	manager := func(h http.HandlerFunc) http.Handler { return authMW(RequireManager(h)) }
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public: login.
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Reports: everyone submits and edits their own, managers run the lifecycle.
	mux.Handle("GET /api/reports", authed(reportsHandler.List))
	mux.Handle("POST /api/reports", authed(reportsHandler.Create))
	mux.Handle("GET /api/reports/{id}", authed(reportsHandler.Get))
	mux.Handle("PUT /api/reports/{id}", authed(reportsHandler.Update))
	mux.Handle("POST /api/reports/{id}/close", manager(reportsHandler.Close))
	mux.Handle("POST /api/reports/{id}/reopen", manager(reportsHandler.Reopen))
	mux.Handle("POST /api/reports/{id}/assign", manager(reportsHandler.Assign))
	mux.Handle("DELETE /api/reports/{id}", manager(reportsHandler.Delete))

	// Notifications (caller's own).
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("POST /api/notifications/read-all", authed(notificationsHandler.MarkAllRead))
	mux.Handle("POST /api/notifications/{id}/read", authed(notificationsHandler.MarkRead))
	mux.Handle("DELETE /api/notifications/{id}", authed(notificationsHandler.Delete))

	// Offline queue.
	mux.Handle("GET /api/queue", authed(offlineHandler.Status))
	mux.Handle("POST /api/queue/reports", authed(offlineHandler.EnqueueReport))
	mux.Handle("POST /api/queue/edits", authed(offlineHandler.EnqueueEdit))
	mux.Handle("POST /api/queue/sync", authed(offlineHandler.Sync))

	// Photos.
	mux.Handle("POST /api/photos", authed(photosHandler.Upload))

	// Settings and directory.
	mux.Handle("GET /api/settings/gps", authed(settingsHandler.GetGPS))
	mux.Handle("PUT /api/settings/gps", manager(settingsHandler.PutGPS))
	mux.Handle("GET /api/settings/permissions", authed(settingsHandler.Permissions))
	mux.Handle("GET /api/departments", authed(settingsHandler.Departments))
	mux.Handle("GET /api/users", manager(usersHandler.List))
	mux.Handle("POST /api/users", manager(usersHandler.Create))

	// Reminders.
	mux.Handle("GET /api/reminders", authed(remindersHandler.List))
	mux.Handle("POST /api/reminders", manager(remindersHandler.Create))
	mux.Handle("PUT /api/reminders/{id}", manager(remindersHandler.Update))
	mux.Handle("DELETE /api/reminders/{id}", manager(remindersHandler.Delete))

	return mux
}
