package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetline/sweetline/internal/platform/httpx"
	"github.com/sweetline/sweetline/internal/rbac"
	"github.com/sweetline/sweetline/internal/shared"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermReportsView))
		r.Get("/reports/daily-production", h.handleDailyProduction)
		r.Get("/reports/sales", h.handleSales)
		r.Get("/reports/raw-materials-usage", h.handleMaterialUsage)
	})
}

func (h *Handler) handleDailyProduction(w http.ResponseWriter, r *http.Request) {
	day, err := shared.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.DailyProduction(r.Context(), day)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	branchID, _ := strconv.ParseInt(q.Get("branch_id"), 10, 64)
	report, err := h.service.Sales(r.Context(), SalesFilter{BranchID: branchID, From: from, To: to})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleMaterialUsage(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.RawMaterialUsage(r.Context(), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func parseRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if from, err = shared.ParseDate(q.Get("start_date")); err != nil {
		return
	}
	to, err = shared.ParseDate(q.Get("end_date"))
	return
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	level := slog.LevelWarn
	if shared.OutcomeOf(err) == shared.OutcomeError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "reports request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
