package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("POST /v1/messages", h.CreateMessage)
	mux.HandleFunc("GET /v1/messages", h.ListMessages)
	mux.HandleFunc("GET /v1/messages/{id}", h.GetMessage)
	mux.HandleFunc("DELETE /v1/messages/{id}", h.DeleteMessage)
	mux.HandleFunc("POST /v1/messages/{id}/schedule", h.ScheduleMessage)
	mux.HandleFunc("POST /v1/messages/{id}/send-test", h.SendTestMessage)

	mux.HandleFunc("GET /v1/dashboard/stats", h.DashboardStats)
	mux.HandleFunc("GET /v1/system/status", h.SystemStatus)

	mux.HandleFunc("POST /v1/sweeps/due", h.SweepDue)
	mux.HandleFunc("POST /v1/sweeps/retries", h.SweepRetries)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	mux.HandleFunc("POST /v1/account/check-in", h.CheckIn)
	mux.HandleFunc("GET /v1/account", h.GetAccount)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("afteryou-delivery"))
	})

	return mux
}
