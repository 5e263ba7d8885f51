package relations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/httpx"
)

// Handler manages relation endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers relation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Delete("/{id}", h.delete)
}

// MountInvoiceRoutes registers the per-invoice views under the invoices tree.
func (h *Handler) MountInvoiceRoutes(r chi.Router) {
	r.Get("/{id}/relations", h.listByInvoice)
	r.Get("/{id}/linkable", h.linkableCandidates)
}

type createRelationRequest struct {
	SourceID int64  `json:"source_id" validate:"required,gt=0"`
	TargetID int64  `json:"target_id" validate:"required,gt=0"`
	Kind     string `json:"kind" validate:"required,oneof=CORRECTION_OF ADVANCE_FOR FINAL_FOR"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRelationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rel, err := h.service.Create(r.Context(), req.SourceID, req.TargetID, Kind(req.Kind))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRelationResponse(rel))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listByInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListByInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]relationResponse, 0, len(list))
	for _, rel := range list {
		out = append(out, toRelationResponse(rel))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"relations": out})
}

func (h *Handler) linkableCandidates(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	phrase := r.URL.Query().Get("search")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	candidates, err := h.service.FindLinkableCandidates(r.Context(), id, phrase, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateResponse{
			ID:        c.ID,
			Number:    c.Number,
			Seller:    c.Seller,
			Buyer:     c.Buyer,
			IssuedAt:  c.IssuedAt.Format("2006-01-02"),
			Gross:     c.Gross.String(),
			Direction: string(c.Direction),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"candidates": out})
}

type relationResponse struct {
	ID        int64  `json:"id"`
	SourceID  int64  `json:"source_id"`
	TargetID  int64  `json:"target_id"`
	Kind      string `json:"kind"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

type candidateResponse struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
	IssuedAt  string `json:"issued_at"`
	Gross     string `json:"gross"`
	Direction string `json:"direction"`
}

func toRelationResponse(rel Relation) relationResponse {
	return relationResponse{
		ID:        rel.ID,
		SourceID:  rel.SourceID,
		TargetID:  rel.TargetID,
		Kind:      string(rel.Kind),
		CreatedBy: rel.CreatedBy,
		CreatedAt: rel.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, invoices.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrSelfRelation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("relation request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
