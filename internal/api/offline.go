package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erazemk/hsefield/internal/model"
	"github.com/erazemk/hsefield/internal/queue"
	"github.com/erazemk/hsefield/internal/report"
)

// OfflineHandler exposes the offline queue. The client decides whether it
// is online; these endpoints only capture and replay.
type OfflineHandler struct {
	Queue    *queue.Queue
	Replayer *queue.Replayer
	// Reports is used to vet drafts before they are queued.
	Reports *ReportsHandler
	Log     logrus.FieldLogger
}

type offlineEditRequest struct {
	ReportID    string          `json:"reportId"`
	UpdatedData json.RawMessage `json:"updatedData"`
}

type queueStatus struct {
	Pending queue.Pending         `json:"pending"`
	Reports []model.OfflineReport `json:"reports"`
	Edits   []model.OfflineEdit   `json:"edits"`
}

// Status handles GET /api/queue.
func (h *OfflineHandler) Status(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Queue.PeekReports(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to read offline reports")
		jsonError(w, http.StatusInternalServerError, "failed to read offline queue")
		return
	}
	edits, err := h.Queue.PeekEdits(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to read offline edits")
		jsonError(w, http.StatusInternalServerError, "failed to read offline queue")
		return
	}
	jsonResponse(w, http.StatusOK, queueStatus{
		Pending: queue.Pending{Reports: len(reports), Edits: len(edits)},
		Reports: reports,
		Edits:   edits,
	})
}

// EnqueueReport handles POST /api/queue/reports.
func (h *OfflineHandler) EnqueueReport(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	var req createReportRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	draft, ok := h.Reports.draft(w, r, user, req)
	if !ok {
		return
	}
	if err := report.ValidateDraft(draft); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Queue.EnqueueReport(r.Context(), model.OfflineReport{Draft: draft, SubmittedBy: user.ID}); err != nil {
		h.Log.WithError(err).Error("failed to queue offline report")
		jsonError(w, http.StatusInternalServerError, "failed to queue report")
		return
	}
	h.status(w, r, http.StatusAccepted)
}

// EnqueueEdit handles POST /api/queue/edits.
func (h *OfflineHandler) EnqueueEdit(w http.ResponseWriter, r *http.Request) {
	var req offlineEditRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReportID == "" || len(req.UpdatedData) == 0 {
		jsonError(w, http.StatusBadRequest, "reportId and updatedData required")
		return
	}

	edit := model.OfflineEdit{
		ReportID:    req.ReportID,
		UpdatedData: req.UpdatedData,
		Timestamp:   model.Timestamp(time.Now()),
	}
	if err := h.Queue.EnqueueEdit(r.Context(), edit); err != nil {
		h.Log.WithError(err).Error("failed to queue offline edit")
		jsonError(w, http.StatusInternalServerError, "failed to queue edit")
		return
	}
	h.status(w, r, http.StatusAccepted)
}

// Sync handles POST /api/queue/sync.
func (h *OfflineHandler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Replayer.Drain(r.Context())
	if err != nil {
		if report.IsFatal(err) {
			jsonError(w, http.StatusServiceUnavailable, haltedMessage)
			return
		}
		h.Log.WithError(err).Warn("offline sync stopped early")
		jsonResponse(w, http.StatusInternalServerError, map[string]any{"error": "sync incomplete", "result": res})
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (h *OfflineHandler) status(w http.ResponseWriter, r *http.Request, code int) {
	pending, err := h.Queue.Pending(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("failed to count offline queue")
		jsonError(w, http.StatusInternalServerError, "failed to read offline queue")
		return
	}
	jsonResponse(w, code, map[string]queue.Pending{"pending": pending})
}
