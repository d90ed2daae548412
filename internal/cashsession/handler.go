package cashsession

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/rbac"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler wires HTTP endpoints for cash sessions.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs cash session handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: rbac}
}

// MountRoutes registers cash session routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("cashsession.manage"))
		r.Get("/current", h.handleCurrent)
		r.Post("/open", h.handleOpen)
		r.Post("/close", h.handleClose)
	})
}

type openRequest struct {
	OpeningAmount float64 `json:"opening_amount" validate:"gte=0"`
}

type closeRequest struct {
	DeclaredAmount float64 `json:"declared_amount" validate:"gte=0"`
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.CurrentOpen(r.Context(), currentUserID(r))
	if err != nil {
		h.logger.Error("current cash session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if sess == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no open cash session")
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess, err := h.service.Open(r.Context(), currentUserID(r), req.OpeningAmount)
	if err != nil {
		h.respondErr(w, "open cash session", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sess, err := h.service.Close(r.Context(), currentUserID(r), req.DeclaredAmount)
	if err != nil {
		h.respondErr(w, "close cash session", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrSessionAlreadyOpen):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoOpenSession):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
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
