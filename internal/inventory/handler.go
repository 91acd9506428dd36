package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sweetline/sweetline/internal/platform/httpx"
	"github.com/sweetline/sweetline/internal/rbac"
	"github.com/sweetline/sweetline/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermBranchStockView))
		r.Get("/branch-stock", h.handleBranchStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReportsAlerts))
		r.Get("/reports/alerts", h.handleAlerts)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermInventoryView))
		r.Get("/inventory/raw-materials", h.handleRawMaterials)
		r.Get("/inventory/finished-goods", h.handleFinishedGoods)
		r.Get("/inventory/movements", h.handleMovements)
	})
}

func (h *Handler) handleBranchStock(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	requested, _ := strconv.ParseInt(r.URL.Query().Get("branch_id"), 10, 64)
	items, err := h.service.BranchStock(r.Context(), principal.EffectiveBranch(requested))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.LowStockAlerts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": alerts, "count": len(alerts)})
}

func (h *Handler) handleRawMaterials(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.RawMaterials(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleFinishedGoods(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FinishedGoods(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{Pool: Pool(q.Get("pool")), Page: shared.PageFromQuery(q)}
	filter.ItemID, _ = strconv.ParseInt(q.Get("item_id"), 10, 64)
	filter.BranchID, _ = strconv.ParseInt(q.Get("branch_id"), 10, 64)
	items, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
