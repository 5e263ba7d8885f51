package sync

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kurnik-erp/kurnik-erp/internal/platform/httpx"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

// Handler exposes the manual sync trigger and the run log.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *shared.TriggerGuard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *shared.TriggerGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.run)
	r.Get("/runs", h.listRuns)
}

// run executes a manual synchronization. The trigger guard swallows operator
// double-clicks; the run itself is safe to race thanks to the external-number
// unique constraint. A failed manual run still reports its partial counts.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	ok, err := h.guard.Acquire(r.Context(), shared.SyncTriggerKey())
	if err != nil {
		h.logger.Warn("trigger guard unavailable, continuing", slog.Any("error", err))
		ok = true
	}
	if !ok {
		httpx.Problem(w, http.StatusTooManyRequests, "Sync Already Triggered", "a manual synchronization was just triggered, try again shortly")
		return
	}
	defer func() {
		_ = h.guard.Release(r.Context(), shared.SyncTriggerKey())
	}()

	summary, err := h.service.Run(r.Context(), true)
	if err != nil {
		// The run row already captured the failure; surface the partial
		// summary alongside the problem for the operator.
		httpx.JSON(w, http.StatusBadGateway, map[string]any{
			"summary": summaryResponse(summary),
			"error":   err.Error(),
		})
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse(summary))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": out})
}

type runResponse struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Downloaded   int        `json:"downloaded"`
	Saved        int        `json:"saved"`
	ErrorCount   int        `json:"error_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Manual       bool       `json:"manual"`
	DurationMS   int64      `json:"duration_ms"`
}

func toRunResponse(run Run) runResponse {
	return runResponse{
		ID:           run.ID.String(),
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		Status:       string(run.Status),
		Downloaded:   run.Downloaded,
		Saved:        run.Saved,
		ErrorCount:   run.ErrorCount,
		ErrorMessage: run.ErrorMessage,
		Manual:       run.Manual,
		DurationMS:   run.Duration.Milliseconds(),
	}
}

func summaryResponse(s Summary) map[string]any {
	return map[string]any{
		"run_id":      s.RunID.String(),
		"status":      string(s.Status),
		"downloaded":  s.Downloaded,
		"saved":       s.Saved,
		"error_count": s.ErrorCount,
		"duration_ms": s.Duration.Milliseconds(),
	}
}
