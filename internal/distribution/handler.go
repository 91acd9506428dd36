package distribution

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

// Handler exposes distribution endpoints.
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

// MountRoutes registers distribution routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/distribution", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermDistributionView))
			r.Get("/", h.handleList)
			r.Get("/history", h.handleHistory)
			r.Get("/{id}", h.handleGet)
			r.Get("/{id}/approvals", h.handleApprovals)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermDistributionManage))
			r.Post("/", h.handleCreate)
			r.Delete("/{id}", h.handleDelete)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermDistributionApprove))
			r.Put("/{id}/approve", h.handleApprove)
			r.Put("/{id}/reject", h.handleReject)
		})
	})
}

type createRequest struct {
	ToBranchID   int64   `json:"to_branch_id" validate:"required,gt=0"`
	SweetID      int64   `json:"sweet_id" validate:"required,gt=0"`
	Quantity     float64 `json:"quantity" validate:"gt=0"`
	DispatchDate string  `json:"dispatch_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        string  `json:"notes" validate:"max=500"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDate(req.DispatchDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Create(r.Context(), CreateInput{
		ToBranchID:   req.ToBranchID,
		SweetID:      req.SweetID,
		Quantity:     req.Quantity,
		DispatchDate: date,
		Notes:        req.Notes,
		CreatedBy:    principal.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": d})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Approve(r.Context(), id, principal.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": d})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Reject(r.Context(), id, req.Reason, principal.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": d})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), id, principal.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": d})
}

func (h *Handler) handleApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.service.Approvals(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": logs})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status")), Page: shared.PageFromQuery(q)}
	filter.BranchID, _ = strconv.ParseInt(q.Get("branch_id"), 10, 64)
	var err error
	if filter.From, err = shared.ParseDate(q.Get("start_date")); err != nil {
		return ListFilter{}, err
	}
	if filter.To, err = shared.ParseDate(q.Get("end_date")); err != nil {
		return ListFilter{}, err
	}
	return filter, nil
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "distribution id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("distribution request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
