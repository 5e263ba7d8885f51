package invoices

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/httpx"
)

// Handler manages invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	history  *audit.Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, history *audit.Service) *Handler {
	return &Handler{logger: logger, service: service, history: history, validate: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.createManual)
	r.Get("/{id}", h.get)
	r.Put("/{id}/comment", h.updateComment)
	r.Post("/{id}/accept", h.accept)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/require-linking", h.requireLinking)
	r.Post("/{id}/accept-no-linking", h.acceptNoLinking)
	r.Post("/{id}/postpone-reminder", h.postponeReminder)
	r.Get("/{id}/history", h.timeline)
}

type createManualRequest struct {
	Number       string `json:"number" validate:"required"`
	IssuedAt     string `json:"issued_at" validate:"required"`
	SellerTaxID  string `json:"seller_tax_id" validate:"required"`
	SellerName   string `json:"seller_name" validate:"required"`
	BuyerTaxID   string `json:"buyer_tax_id"`
	BuyerName    string `json:"buyer_name"`
	DocumentType string `json:"document_type" validate:"required,oneof=VAT KOR ZAL ROZ"`
	Gross        string `json:"gross" validate:"required"`
	Net          string `json:"net" validate:"required"`
	VAT          string `json:"vat" validate:"required"`
	Direction    string `json:"direction" validate:"required,oneof=PURCHASE SALE"`
	EntityID     *int64 `json:"entity_id"`
	ItemSummary  string `json:"item_summary"`
	Comment      string `json:"comment"`
}

func (h *Handler) createManual(w http.ResponseWriter, r *http.Request) {
	var req createManualRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issuedAt, err := time.Parse("2006-01-02", req.IssuedAt)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issued_at must be YYYY-MM-DD")
		return
	}
	inv, err := h.service.CreateManual(r.Context(), CreateManualInput{
		Number:       req.Number,
		IssuedAt:     issuedAt,
		SellerTaxID:  req.SellerTaxID,
		SellerName:   req.SellerName,
		BuyerTaxID:   req.BuyerTaxID,
		BuyerName:    req.BuyerName,
		DocumentType: DocumentType(req.DocumentType),
		Gross:        req.Gross,
		Net:          req.Net,
		VAT:          req.VAT,
		Direction:    Direction(req.Direction),
		EntityID:     req.EntityID,
		ItemSummary:  req.ItemSummary,
		Comment:      req.Comment,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToResponse(inv))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Status:    Status(q.Get("status")),
		Direction: Direction(q.Get("direction")),
		Source:    Source(q.Get("source")),
		Search:    q.Get("search"),
	}
	if v := q.Get("requires_linking"); v != "" {
		b := v == "true" || v == "1"
		filter.RequiresLinking = &b
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": ToResponses(list)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) updateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	inv, err := h.service.UpdateComment(r.Context(), id, req.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) (Invoice, error) {
		return h.service.Accept(r.Context(), id)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	inv, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) requireLinking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) (Invoice, error) {
		return h.service.MarkRequiresLinking(r.Context(), id)
	})
}

func (h *Handler) acceptNoLinking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) (Invoice, error) {
		return h.service.AcceptNoLinking(r.Context(), id)
	})
}

type postponeRequest struct {
	Days int `json:"days"`
}

func (h *Handler) postponeReminder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req postponeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	inv, err := h.service.PostponeReminder(r.Context(), id, req.Days)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Get(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	result, err := h.history.Timeline(r.Context(), id, page, pageSize)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": result.Rows, "paging": result.Paging})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(id int64) (Invoice, error)) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := fn(id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(inv))
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoPendingReminder):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrModuleUnresolved):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Module Unresolved", err.Error())
	default:
		h.logger.Error("invoice request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
