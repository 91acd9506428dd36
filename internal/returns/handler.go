package returns

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

// Handler exposes return endpoints.
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

// MountRoutes registers return routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReturnsManage))
		r.Post("/returns", h.handleCreate)
		r.Get("/returns", h.handleList)
	})
}

type createRequest struct {
	BranchID   int64   `json:"branch_id"`
	SweetID    int64   `json:"sweet_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	Reason     string  `json:"reason" validate:"required,max=500"`
	ReturnDate string  `json:"return_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.ReturnDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	record, err := h.service.CreateReturn(r.Context(), CreateInput{
		BranchID:   principal.EffectiveBranch(req.BranchID),
		SweetID:    req.SweetID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		ReturnDate: date,
		CreatedBy:  principal.ID,
	})
	if err != nil {
		h.logger.Warn("create return failed", slog.Int64("sweet_id", req.SweetID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": record})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	principal, _ := shared.PrincipalFromContext(r.Context())
	filter := ListFilter{Page: shared.PageFromQuery(q)}
	requested, _ := strconv.ParseInt(q.Get("branch_id"), 10, 64)
	filter.BranchID = principal.EffectiveBranch(requested)
	var err error
	if filter.From, err = shared.ParseDate(q.Get("start_date")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = shared.ParseDate(q.Get("end_date")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list returns", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}
