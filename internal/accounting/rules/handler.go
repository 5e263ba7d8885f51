package rules

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/httpx"
)

// Handler manages rule endpoints and the classification trigger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers rule routes. Rules are addressed by family so the
// three persisted collections stay visibly distinct in the API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{family}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

// MountClassify registers the classification trigger under the invoices tree.
func (h *Handler) MountClassify(r chi.Router) {
	r.Post("/{id}/classify", h.classify)
}

type ruleRequest struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description"`
	Priority        int      `json:"priority"`
	IncludeKeywords []string `json:"include_keywords"`
	ExcludeKeywords []string `json:"exclude_keywords"`
	EntityID        *int64   `json:"entity_id"`
	LocationID      *int64   `json:"location_id"`
	Direction       *string  `json:"direction" validate:"omitempty,oneof=PURCHASE SALE"`
	Active          bool     `json:"active"`
	TargetUserID    *int64   `json:"target_user_id"`
	TargetLocation  *int64   `json:"target_location_id"`
	TargetModule    *string  `json:"target_module" validate:"omitempty,oneof=FEED GAS EXPENSE SALE"`
}

type ruleResponse struct {
	ID              int64     `json:"id"`
	Family          string    `json:"family"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Priority        int       `json:"priority"`
	IncludeKeywords []string  `json:"include_keywords"`
	ExcludeKeywords []string  `json:"exclude_keywords"`
	EntityID        *int64    `json:"entity_id,omitempty"`
	LocationID      *int64    `json:"location_id,omitempty"`
	Direction       *string   `json:"direction,omitempty"`
	Active          bool      `json:"active"`
	TargetUserID    *int64    `json:"target_user_id,omitempty"`
	TargetLocation  *int64    `json:"target_location_id,omitempty"`
	TargetModule    *string   `json:"target_module,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toRuleResponse(rule Rule) ruleResponse {
	resp := ruleResponse{
		ID:              rule.ID,
		Family:          string(rule.Family),
		Name:            rule.Name,
		Description:     rule.Description,
		Priority:        rule.Priority,
		IncludeKeywords: rule.IncludeKeywords,
		ExcludeKeywords: rule.ExcludeKeywords,
		EntityID:        rule.EntityID,
		LocationID:      rule.LocationID,
		Active:          rule.Active,
		TargetUserID:    rule.TargetUserID,
		TargetLocation:  rule.TargetLocationID,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
	if rule.Direction != nil {
		d := string(*rule.Direction)
		resp.Direction = &d
	}
	if rule.TargetModule != nil {
		m := string(*rule.TargetModule)
		resp.TargetModule = &m
	}
	return resp
}

func (h *Handler) ruleFromRequest(family Family, req ruleRequest) Rule {
	rule := Rule{
		Family:           family,
		Name:             req.Name,
		Description:      req.Description,
		Priority:         req.Priority,
		IncludeKeywords:  req.IncludeKeywords,
		ExcludeKeywords:  req.ExcludeKeywords,
		EntityID:         req.EntityID,
		LocationID:       req.LocationID,
		Active:           req.Active,
		TargetUserID:     req.TargetUserID,
		TargetLocationID: req.TargetLocation,
	}
	if req.Direction != nil {
		d := invoices.Direction(*req.Direction)
		rule.Direction = &d
	}
	if req.TargetModule != nil {
		m := invoices.ModuleType(*req.TargetModule)
		rule.TargetModule = &m
	}
	return rule
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	family, ok := h.parseFamily(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListRules(r.Context(), family)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(list))
	for _, rule := range list {
		out = append(out, toRuleResponse(rule))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	family, ok := h.parseFamily(w, r)
	if !ok {
		return
	}
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	rule, err := h.service.GetRule(r.Context(), family, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	family, ok := h.parseFamily(w, r)
	if !ok {
		return
	}
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule, err := h.service.CreateRule(r.Context(), h.ruleFromRequest(family, req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRuleResponse(rule))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	family, ok := h.parseFamily(w, r)
	if !ok {
		return
	}
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req ruleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rule := h.ruleFromRequest(family, req)
	rule.ID = id
	updated, err := h.service.UpdateRule(r.Context(), rule)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRuleResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	family, ok := h.parseFamily(w, r)
	if !ok {
		return
	}
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRule(r.Context(), family, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	c, err := h.service.ClassifyInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	var module *string
	if c.Module != nil {
		m := string(*c.Module)
		module = &m
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"assignee_id": c.AssigneeID,
		"location_id": c.LocationID,
		"module":      module,
	})
}

func (h *Handler) parseFamily(w http.ResponseWriter, r *http.Request) (Family, bool) {
	family := Family(Normalize(chi.URLParam(r, "family")))
	switch family {
	case "assignee":
		return FamilyAssignee, true
	case "location":
		return FamilyLocation, true
	case "module":
		return FamilyModule, true
	}
	httpx.Problem(w, http.StatusNotFound, "Unknown Family", "rule family must be assignee, location or module")
	return "", false
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
	case errors.Is(err, ErrInertRule), errors.Is(err, ErrMissingTarget), errors.Is(err, ErrUnknownFamily):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("rule request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
