package sales

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/platform/httpx"
	"github.com/sweetline/sweetline/internal/rbac"
	"github.com/sweetline/sweetline/internal/shared"
)

// IdempotencyHeader carries the client generated key of a quick bill.
const IdempotencyHeader = "Idempotency-Key"

// ProductLister lists the sellable stock of a branch.
type ProductLister interface {
	Products(ctx context.Context, branchID int64) ([]inventory.BranchStock, error)
}

// Handler exposes quick bill and order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	products  ProductLister
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, products ProductLister, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, products: products, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quick-bill", func(r chi.Router) {
		r.With(h.rbac.RequireAny(rbac.PermQuickBillCreate)).Post("/", h.handleQuickBill)
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(rbac.PermQuickBillView))
			r.Get("/products", h.handleProducts)
			r.Get("/history", h.handleHistory)
		})
	})
	r.Route("/orders", func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermOrdersManage))
		r.Get("/", h.handleListOrders)
		r.Post("/", h.handleCreateOrder)
		r.Get("/{id}", h.handleGetOrder)
		r.Put("/{id}", h.handleUpdateStatus)
	})
}

type lineRequest struct {
	SweetID  int64   `json:"sweet_id" validate:"required,gt=0"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

type quickBillRequest struct {
	BranchID     int64         `json:"branch_id"`
	CustomerName string        `json:"customer_name" validate:"max=200"`
	Items        []lineRequest `json:"items" validate:"required,min=1,dive"`
}

type orderRequest struct {
	BranchID         int64           `json:"branch_id"`
	CustomerName     string          `json:"customer_name" validate:"required,max=200"`
	CustomerPhone    string          `json:"customer_phone" validate:"max=30"`
	CustomerLocation string          `json:"customer_location" validate:"max=300"`
	DeliveryDate     string          `json:"delivery_date" validate:"omitempty,datetime=2006-01-02"`
	PackingCharges   decimal.Decimal `json:"packing_charges"`
	AdvancePaid      decimal.Decimal `json:"advance_paid"`
	Status           string          `json:"status" validate:"omitempty,oneof=pending processing completed"`
	Items            []lineRequest   `json:"items" validate:"required,min=1,dive"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed cancelled"`
}

func toLines(reqs []lineRequest) []LineInput {
	out := make([]LineInput, len(reqs))
	for i, l := range reqs {
		out[i] = LineInput{SweetID: l.SweetID, Quantity: l.Quantity}
	}
	return out
}

func (h *Handler) handleQuickBill(w http.ResponseWriter, r *http.Request) {
	var req quickBillRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	res, err := h.service.CreateQuickBill(r.Context(), QuickBillInput{
		BranchID:       principal.EffectiveBranch(req.BranchID),
		CustomerName:   req.CustomerName,
		Items:          toLines(req.Items),
		CreatedBy:      principal.ID,
		IdempotencyKey: key,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func idempotencyKey(r *http.Request) (string, error) {
	raw := r.Header.Get(IdempotencyHeader)
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &httpx.ValidationError{Fields: map[string]string{IdempotencyHeader: "must be a UUID"}}
	}
	return id.String(), nil
}

func (h *Handler) handleProducts(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	requested, _ := strconv.ParseInt(r.URL.Query().Get("branch_id"), 10, 64)
	branchID := principal.EffectiveBranch(requested)
	if branchID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: branch_id is required", shared.ErrValidation))
		return
	}
	items, err := h.products.Products(r.Context(), branchID)
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
	items, err := h.service.QuickBillHistory(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	delivery, err := shared.ParseDate(req.DeliveryDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	res, err := h.service.CreateOrder(r.Context(), OrderInput{
		BranchID:         principal.EffectiveBranch(req.BranchID),
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		CustomerLocation: req.CustomerLocation,
		DeliveryDate:     delivery,
		PackingCharges:   req.PackingCharges,
		AdvancePaid:      req.AdvancePaid,
		Status:           OrderStatus(req.Status),
		Items:            toLines(req.Items),
		CreatedBy:        principal.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.scopedOrder(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": order})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	order, ok := h.scopedOrder(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	res, err := h.service.UpdateOrderStatus(r.Context(), order.ID, OrderStatus(req.Status), principal.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// scopedOrder loads the order in the path. Branch scoped callers only see
// their own branch's orders; anything else reads as not found.
func (h *Handler) scopedOrder(w http.ResponseWriter, r *http.Request) (Order, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a positive integer")
		return Order{}, false
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return Order{}, false
	}
	principal, _ := shared.PrincipalFromContext(r.Context())
	if principal.Role.BranchScoped() && order.BranchID != principal.BranchID {
		httpx.RespondError(w, shared.ErrNotFound)
		return Order{}, false
	}
	return order, true
}

func parseFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	principal, _ := shared.PrincipalFromContext(r.Context())
	filter := ListFilter{Status: OrderStatus(q.Get("status")), Page: shared.PageFromQuery(q)}
	requested, _ := strconv.ParseInt(q.Get("branch_id"), 10, 64)
	filter.BranchID = principal.EffectiveBranch(requested)
	var err error
	if filter.From, err = shared.ParseDate(q.Get("start_date")); err != nil {
		return ListFilter{}, err
	}
	if filter.To, err = shared.ParseDate(q.Get("end_date")); err != nil {
		return ListFilter{}, err
	}
	return filter, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	level := slog.LevelWarn
	if shared.OutcomeOf(err) == shared.OutcomeError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "sales request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
