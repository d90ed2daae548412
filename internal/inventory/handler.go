package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
	idem     *shared.IdempotencyStore
	metrics  *observability.Metrics
}

// NewHandler constructs inventory handler. idem may be nil, which disables
// Idempotency-Key replay protection on the posting endpoints. metrics may
// also be nil.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, idem *shared.IdempotencyStore, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac, idem: idem, metrics: metrics}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("inventory.view"))
		r.Get("/stock-card", h.handleStockCard)
		r.Get("/low-stock", h.handleLowStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("inventory.edit"))
		r.Post("/movements", h.handleMovement)
		r.Post("/adjustments", h.handleAdjustment)
		r.Post("/transfers", h.handleTransfer)
		r.Post("/production/output", h.handleProductionOutput)
		r.Post("/production/consumption", h.handleProductionConsumption)
	})
}

type movementRequest struct {
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	ProductID   int64   `json:"product_id" validate:"required"`
	Type        string  `json:"type" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	RefType     string  `json:"ref_type"`
	RefID       string  `json:"ref_id"`
	Note        string  `json:"note"`
}

type adjustmentRequest struct {
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	ProductID   int64   `json:"product_id" validate:"required"`
	Qty         float64 `json:"qty" validate:"required"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	Note        string  `json:"note" validate:"required"`
}

type transferRequest struct {
	SrcWarehouse int64   `json:"src_warehouse" validate:"required"`
	DstWarehouse int64   `json:"dst_warehouse" validate:"required,nefield=SrcWarehouse"`
	ProductID    int64   `json:"product_id" validate:"required"`
	Qty          float64 `json:"qty" validate:"required,gt=0"`
	Note         string  `json:"note"`
}

type productionRequest struct {
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	ProductID   int64   `json:"product_id" validate:"required"`
	Qty         float64 `json:"qty" validate:"required,gt=0"`
	UnitCost    float64 `json:"unit_cost" validate:"gte=0"`
	RefID       string  `json:"ref_id"`
	Note        string  `json:"note"`
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	warehouseID, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id is required")
		return
	}
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id is required")
		return
	}
	filter := StockCardFilter{WarehouseID: warehouseID, ProductID: productID, Limit: 500}
	if from := q.Get("from"); from != "" {
		filter.From, err = time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
	}
	if to := q.Get("to"); to != "" {
		toTime, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = toTime.Add(24*time.Hour - time.Nanosecond)
	}
	entries, err := h.service.GetStockCard(r.Context(), filter)
	if err != nil {
		h.respondErr(w, "get stock card", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLowStock(r.Context())
	if err != nil {
		h.respondErr(w, "list low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}
	rec, err := h.service.RecordMovement(r.Context(), MovementInput{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Type:        MovementType(req.Type),
		Qty:         req.Qty,
		UnitCost:    req.UnitCost,
		RefType:     req.RefType,
		RefID:       req.RefID,
		Note:        req.Note,
		ActorID:     currentUserID(r),
	})
	if err != nil {
		h.releaseIdempotency(r.Context(), key)
		h.respondErr(w, "record movement", err)
		return
	}
	h.metrics.CountMovement(string(rec.Type))
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}
	rec, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Qty:         req.Qty,
		UnitCost:    req.UnitCost,
		Note:        req.Note,
		ActorID:     currentUserID(r),
		RefType:     "ADJUSTMENT",
	})
	if err != nil {
		h.releaseIdempotency(r.Context(), key)
		h.respondErr(w, "post adjustment", err)
		return
	}
	h.metrics.CountMovement(string(rec.Type))
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}
	out, in, err := h.service.PostTransfer(r.Context(), TransferInput{
		ProductID:    req.ProductID,
		Qty:          req.Qty,
		SrcWarehouse: req.SrcWarehouse,
		DstWarehouse: req.DstWarehouse,
		Note:         req.Note,
		ActorID:      currentUserID(r),
		RefType:      "TRANSFER",
	})
	if err != nil {
		h.releaseIdempotency(r.Context(), key)
		h.respondErr(w, "post transfer", err)
		return
	}
	h.metrics.CountMovement(string(out.Type))
	h.metrics.CountMovement(string(in.Type))
	httpx.JSON(w, http.StatusCreated, map[string]any{"out": out, "in": in})
}

func (h *Handler) handleProductionOutput(w http.ResponseWriter, r *http.Request) {
	var req productionRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}
	rec, err := h.service.PostProductionOutput(r.Context(), ProductionInput{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Qty:         req.Qty,
		UnitCost:    req.UnitCost,
		Note:        req.Note,
		ActorID:     currentUserID(r),
		RefType:     "PRODUCTION",
		RefID:       req.RefID,
	})
	if err != nil {
		h.releaseIdempotency(r.Context(), key)
		h.respondErr(w, "post production output", err)
		return
	}
	h.metrics.CountMovement(string(rec.Type))
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleProductionConsumption(w http.ResponseWriter, r *http.Request) {
	var req productionRequest
	if !h.decode(w, r, &req) {
		return
	}
	key, ok := h.claimIdempotency(w, r)
	if !ok {
		return
	}
	rec, err := h.service.PostProductionConsumption(r.Context(), ProductionInput{
		WarehouseID: req.WarehouseID,
		ProductID:   req.ProductID,
		Qty:         req.Qty,
		Note:        req.Note,
		ActorID:     currentUserID(r),
		RefType:     "PRODUCTION",
		RefID:       req.RefID,
	})
	if err != nil {
		h.releaseIdempotency(r.Context(), key)
		h.respondErr(w, "post production consumption", err)
		return
	}
	h.metrics.CountMovement(string(rec.Type))
	httpx.JSON(w, http.StatusCreated, rec)
}

// claimIdempotency registers the request's Idempotency-Key, if any. A
// duplicate key gets a 409 and ok=false.
func (h *Handler) claimIdempotency(w http.ResponseWriter, r *http.Request) (key string, ok bool) {
	key = r.Header.Get("Idempotency-Key")
	if key == "" || h.idem == nil {
		return "", true
	}
	if err := h.idem.CheckAndInsert(r.Context(), key, "inventory"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate Request", "idempotency key already processed")
			return "", false
		}
		h.logger.Error("claim idempotency key", slog.Any("error", err))
		httpx.RespondError(w, err)
		return "", false
	}
	return key, true
}

// releaseIdempotency frees a claimed key after a failed posting so the
// client can retry with the same key.
func (h *Handler) releaseIdempotency(ctx context.Context, key string) {
	if key == "" || h.idem == nil {
		return
	}
	if err := h.idem.Delete(ctx, key); err != nil {
		h.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidMovementType), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
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
