package purchases

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for the purchases module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs purchases handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("purchases.view"))
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("purchases.create"))
		r.Post("/", h.handleCreate)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	purchase, err := h.service.CreatePurchase(r.Context(), req, currentUserID(r))
	if err != nil {
		h.respondErr(w, "create purchase", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase id")
		return
	}
	purchase, err := h.service.GetPurchase(r.Context(), purchaseID)
	if err != nil {
		h.respondErr(w, "get purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req ListPurchasesRequest
	req.SupplierID, _ = strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	req.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if from := q.Get("from"); from != "" {
		req.From, _ = time.Parse("2006-01-02", from)
	}
	if to := q.Get("to"); to != "" {
		req.To, _ = time.Parse("2006-01-02", to)
	}
	purchases, total, err := h.service.ListPurchases(r.Context(), req)
	if err != nil {
		h.respondErr(w, "list purchases", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases, "total": total})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidLine):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, inventory.ErrInvalidUnitCost), errors.Is(err, inventory.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, numbering.ErrNoActiveSeries), errors.Is(err, numbering.ErrSeriesExhausted):
		httpx.Problem(w, http.StatusConflict, "Numbering Unavailable", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func currentUserID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, _ := strconv.ParseInt(sess.User(), 10, 64)
	return id
}
