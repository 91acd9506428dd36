package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sweetline/sweetline/internal/rbac"
	"github.com/sweetline/sweetline/internal/shared"
)

type staticResolver map[string]shared.Principal

func (s staticResolver) Resolve(_ context.Context, token string) (shared.Principal, error) {
	p, ok := s[token]
	if !ok {
		return shared.Principal{}, shared.ErrUnauthenticated
	}
	return p, nil
}

func newTestRouter(repo *fakeRepo) http.Handler {
	mw := rbac.Middleware{Sessions: staticResolver{
		"kitchen": {ID: 1, Role: shared.RoleKitchenAdmin},
		"branch":  {ID: 2, Role: shared.RoleBranchAdmin, BranchID: 3},
	}}
	h := NewHandler(discardLogger(), newTestService(repo, nil), mw)
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	h.MountRoutes(r)
	return r
}

func get(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDailyProductionEndpoint(t *testing.T) {
	repo := &fakeRepo{production: []ProductionLine{{SweetID: 1, SweetName: "Laddu", QuantityProduced: 8, Count: 2}}}
	h := newTestRouter(repo)

	rec := get(h, "/reports/daily-production?date=2026-10-01", "kitchen")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body DailyProduction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.TotalProductions)
	require.Equal(t, "2026-10-01", repo.days[0].Format(shared.DateLayout))

	require.Equal(t, http.StatusUnprocessableEntity, get(h, "/reports/daily-production?date=01-10-2026", "kitchen").Code)
}

func TestSalesEndpointFiltersByBranchAndRange(t *testing.T) {
	repo := &fakeRepo{sales: []SalesLine{
		{OrderID: 1, BranchID: 4, BranchName: "Adyar", SweetID: 5, SweetName: "Laddu", Quantity: 2, Total: decimal.NewFromInt(500)},
	}}
	h := newTestRouter(repo)

	rec := get(h, "/reports/sales?branch_id=4&start_date=2026-10-01&end_date=2026-10-07", "kitchen")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, repo.filters, 1)
	require.Equal(t, int64(4), repo.filters[0].BranchID)
	require.Equal(t, "2026-10-07", repo.filters[0].To.Format(shared.DateLayout))

	var body SalesReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sales, 1)
	require.True(t, body.Sales[0].TotalRevenue.Equal(decimal.NewFromInt(500)))

	rec = get(h, "/reports/sales?start_date=2026-10-07&end_date=2026-10-01", "kitchen")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMaterialUsageEndpointRequiresReportsPermission(t *testing.T) {
	repo := &fakeRepo{}
	h := newTestRouter(repo)

	require.Equal(t, http.StatusForbidden, get(h, "/reports/raw-materials-usage", "branch").Code)
	require.Equal(t, http.StatusUnauthorized, get(h, "/reports/raw-materials-usage", "nobody").Code)
	require.Empty(t, repo.periods)

	rec := get(h, "/reports/raw-materials-usage?start_date=2026-10-01", "kitchen")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.periods, 1)
	require.Equal(t, "2026-10-01", repo.periods[0].Start.Format(shared.DateLayout))
}
