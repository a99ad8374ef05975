package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/afteryou/delivery/internal/apperr"
	"github.com/afteryou/delivery/internal/engine"
	"github.com/afteryou/delivery/internal/model"
	"github.com/afteryou/delivery/internal/repo"
	"github.com/afteryou/delivery/internal/scheduler"
	"github.com/afteryou/delivery/internal/sweep"
)

// ownerHeader carries the authenticated account id. Token verification is
// the auth service's job; by the time a request reaches this daemon the
// header holds a trusted opaque owner id.
const ownerHeader = "X-Account-ID"

// QueueStats is the read-only view of the queue backend exposed on the
// system status endpoint.
type QueueStats interface {
	Depth(ctx context.Context) (int64, error)
	Mode() string
}

type Handler struct {
	engine   *engine.Engine
	sweeper  *sweep.Sweeper
	sched    *scheduler.Scheduler
	queue    QueueStats
	accounts repo.AccountRepository
}

func NewHandler(e *engine.Engine, s *sweep.Sweeper, sched *scheduler.Scheduler, q QueueStats, accounts repo.AccountRepository) *Handler {
	return &Handler{
		engine:   e,
		sweeper:  s,
		sched:    sched,
		queue:    q,
		accounts: accounts,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createMessageRequest struct {
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	RecipientEmail string    `json:"recipientEmail"`
	DeliveryDate   time.Time `json:"deliveryDate"`
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid request body"))
		return
	}

	m, err := h.engine.CreateMessage(r.Context(), owner, req.Title, req.Content, req.RecipientEmail, req.DeliveryDate)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var status *model.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.Status(raw)
		if !s.Valid() {
			writeError(w, apperr.Validation("unknown status filter"))
			return
		}
		status = &s
	}

	items, err := h.engine.List(r.Context(), owner, status)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	m, err := h.engine.Get(r.Context(), id, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *Handler) ScheduleMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	if err := h.engine.Schedule(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scheduled": true})
}

func (h *Handler) SendTestMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	id, ok := messageID(w, r)
	if !ok {
		return
	}

	if err := h.engine.SendImmediately(r.Context(), id, owner); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true})
}

func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	stats, err := h.engine.Stats(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		slog.Warn("failed to read queue depth", "error", err)
		depth = -1
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queueMode":    h.queue.Mode(),
		"queueDepth":   depth,
		"sweepRunning": h.sched.IsRunning(),
		"serverTime":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) SweepDue(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.SweepDue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SweepRetries(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.SweepRetries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.CheckIn(r.Context(), owner, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView(a))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	a, err := h.accounts.Get(r.Context(), owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountView(a))
}

func accountView(a *model.Account) map[string]any {
	return map[string]any{
		"id":              a.ID,
		"email":           a.Email,
		"lastCheckIn":     a.LastCheckIn.UTC().Format(time.RFC3339),
		"checkInInterval": a.CheckInInterval.String(),
		"gracePeriod":     a.GracePeriod.String(),
		"switchTripped":   a.SwitchTripped(time.Now()),
	}
}

func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"code":  "UNAUTHENTICATED",
			"error": "missing " + ownerHeader + " header",
		})
		return "", false
	}
	return owner, true
}

func messageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, apperr.Validation("invalid message id"))
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeWrongStatus:
		status = http.StatusConflict
	case apperr.CodeQueueUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"code":  code,
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
