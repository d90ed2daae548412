package warehouses

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("masterdata.view"))
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("masterdata.edit"))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
	})
}

type warehouseRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := shared.ListFilters{
		Page:          shared.DefaultPage,
		Limit:         shared.DefaultLimit,
		Search:        q.Get("search"),
		WarehouseType: q.Get("type"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filters.Page = page
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filters.Limit = limit
	}
	if active := q.Get("is_active"); active != "" {
		v := active == "true"
		filters.IsActive = &v
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondErr(w, "list warehouses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouses": items, "total": total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	warehouse, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	warehouse, err := h.service.Create(r.Context(), Warehouse{
		Code: req.Code,
		Name: req.Name,
		Type: WarehouseType(req.Type),
	})
	if err != nil {
		h.respondErr(w, "create warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouse)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	warehouse := Warehouse{
		Code:     req.Code,
		Name:     req.Name,
		Type:     WarehouseType(req.Type),
		IsActive: true,
	}
	if req.IsActive != nil {
		warehouse.IsActive = *req.IsActive
	}
	if err := h.service.Update(r.Context(), id, warehouse); err != nil {
		h.respondErr(w, "update warehouse", err)
		return
	}
	updated, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get warehouse", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrRequiredField), errors.Is(err, shared.ErrInvalidID):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
