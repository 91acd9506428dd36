package production

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sweetline/sweetline/internal/platform/httpx"
	"github.com/sweetline/sweetline/internal/rbac"
	"github.com/sweetline/sweetline/internal/shared"
)

// Handler exposes production endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProductionCreate))
		r.Post("/production", h.handleProduce)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermProductionView))
		r.Get("/production", h.handleList)
	})
}

type produceRequest struct {
	SweetID          int64   `json:"sweet_id" validate:"required,gt=0"`
	QuantityProduced float64 `json:"quantity_produced" validate:"gt=0"`
	Wastage          float64 `json:"wastage" validate:"gte=0"`
	ProductionDate   string  `json:"production_date" validate:"omitempty,datetime=2006-01-02"`
	Notes            string  `json:"notes" validate:"max=500"`
}

func (h *Handler) handleProduce(w http.ResponseWriter, r *http.Request) {
	var req produceRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.ProductionDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	record, err := h.service.Produce(r.Context(), ProduceInput{
		SweetID:          req.SweetID,
		QuantityProduced: req.QuantityProduced,
		Wastage:          req.Wastage,
		ProductionDate:   date,
		Notes:            req.Notes,
		CreatedBy:        principal.ID,
	})
	if err != nil {
		h.logger.Warn("produce failed", slog.Int64("sweet_id", req.SweetID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Page: shared.PageFromQuery(q)}
	filter.SweetID, _ = strconv.ParseInt(q.Get("sweet_id"), 10, 64)
	var err error
	if filter.From, err = shared.ParseDate(q.Get("from")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = shared.ParseDate(q.Get("to")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list production", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}
