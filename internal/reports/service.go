package reports

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/shared"
)

const (
	defaultPeriodDays = 30
	maxPeriodDays     = 366
)

// RepositoryPort is the storage the reports are computed from.
type RepositoryPort interface {
	ProductionByDay(ctx context.Context, day time.Time) ([]ProductionLine, error)
	CompletedSalesLines(ctx context.Context, filter SalesFilter) ([]SalesLine, error)
	MaterialUsage(ctx context.Context, period Period) ([]MaterialUsage, error)
}

// Service builds reports, reading through Cache.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a RepositoryPort with a Cache helper. A nil cache always
// reads from the repository.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

func (s *Service) today() time.Time {
	return truncateDay(s.now())
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// resolvePeriod fills in a missing end with today and a missing start with
// the thirty days ending at end.
func (s *Service) resolvePeriod(from, to time.Time) (Period, error) {
	p := Period{Start: truncateDay(from), End: truncateDay(to)}
	if to.IsZero() {
		p.End = s.today()
	}
	if from.IsZero() {
		p.Start = p.End.AddDate(0, 0, -(defaultPeriodDays - 1))
	}
	if p.Start.After(p.End) {
		return Period{}, fmt.Errorf("%w: start_date is after end_date", shared.ErrValidation)
	}
	if p.End.Sub(p.Start) >= maxPeriodDays*24*time.Hour {
		return Period{}, fmt.Errorf("%w: period exceeds %d days", shared.ErrValidation, maxPeriodDays)
	}
	return p, nil
}

func dateToken(t time.Time) string {
	return t.Format(shared.DateLayout)
}

// DailyProduction summarises production on day, today when day is zero.
func (s *Service) DailyProduction(ctx context.Context, day time.Time) (DailyProduction, error) {
	if day.IsZero() {
		day = s.today()
	}
	day = truncateDay(day)
	var out DailyProduction
	err := s.cache.FetchJSON(ctx, BuildKey("production", dateToken(day)), &out, func(ctx context.Context) (any, error) {
		lines, err := s.repo.ProductionByDay(ctx, day)
		if err != nil {
			return nil, err
		}
		report := DailyProduction{Date: day, Summary: []ProductionLine{}}
		for _, l := range lines {
			report.Summary = append(report.Summary, l)
			report.TotalProductions += l.Count
		}
		return report, nil
	})
	if err != nil {
		return DailyProduction{}, fmt.Errorf("reports: daily production: %w", err)
	}
	return out, nil
}

// Sales totals completed orders per branch and per sweet within the branch.
func (s *Service) Sales(ctx context.Context, filter SalesFilter) (SalesReport, error) {
	period, err := s.resolvePeriod(filter.From, filter.To)
	if err != nil {
		return SalesReport{}, err
	}
	filter.From, filter.To = period.Start, period.End

	var out SalesReport
	key := BuildKey("sales", strconv.FormatInt(filter.BranchID, 10), dateToken(period.Start), dateToken(period.End))
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		lines, err := s.repo.CompletedSalesLines(ctx, filter)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("sales report computed",
			slog.Int64("branch_id", filter.BranchID),
			slog.Int("lines", len(lines)))
		return SalesReport{Period: period, Sales: aggregateSales(lines)}, nil
	})
	if err != nil {
		return SalesReport{}, fmt.Errorf("reports: sales: %w", err)
	}
	return out, nil
}

func aggregateSales(lines []SalesLine) []BranchSales {
	type branchAcc struct {
		sales    BranchSales
		orders   map[int64]struct{}
		products map[int64]*ProductSales
		order    []int64
	}
	branches := make(map[int64]*branchAcc)
	var branchOrder []int64
	for _, l := range lines {
		acc, ok := branches[l.BranchID]
		if !ok {
			acc = &branchAcc{
				sales:    BranchSales{BranchID: l.BranchID, BranchName: l.BranchName, TotalRevenue: decimal.Zero},
				orders:   make(map[int64]struct{}),
				products: make(map[int64]*ProductSales),
			}
			branches[l.BranchID] = acc
			branchOrder = append(branchOrder, l.BranchID)
		}
		acc.orders[l.OrderID] = struct{}{}
		acc.sales.TotalRevenue = acc.sales.TotalRevenue.Add(l.Total)
		p, ok := acc.products[l.SweetID]
		if !ok {
			p = &ProductSales{SweetID: l.SweetID, SweetName: l.SweetName, Revenue: decimal.Zero}
			acc.products[l.SweetID] = p
			acc.order = append(acc.order, l.SweetID)
		}
		p.Quantity = round3(p.Quantity + l.Quantity)
		p.Revenue = p.Revenue.Add(l.Total)
	}

	out := make([]BranchSales, 0, len(branchOrder))
	for _, id := range branchOrder {
		acc := branches[id]
		acc.sales.TotalOrders = len(acc.orders)
		acc.sales.AverageOrderValue = acc.sales.TotalRevenue.
			Div(decimal.NewFromInt(int64(acc.sales.TotalOrders))).Round(2)
		acc.sales.Products = make([]ProductSales, 0, len(acc.order))
		for _, sweetID := range acc.order {
			acc.sales.Products = append(acc.sales.Products, *acc.products[sweetID])
		}
		sort.SliceStable(acc.sales.Products, func(i, j int) bool {
			return acc.sales.Products[i].Revenue.GreaterThan(acc.sales.Products[j].Revenue)
		})
		out = append(out, acc.sales)
	}
	return out
}

// RawMaterialUsage totals raw material consumed by production in the range.
func (s *Service) RawMaterialUsage(ctx context.Context, from, to time.Time) (MaterialUsageReport, error) {
	period, err := s.resolvePeriod(from, to)
	if err != nil {
		return MaterialUsageReport{}, err
	}
	var out MaterialUsageReport
	key := BuildKey("materials", dateToken(period.Start), dateToken(period.End))
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		usage, err := s.repo.MaterialUsage(ctx, period)
		if err != nil {
			return nil, err
		}
		if usage == nil {
			usage = []MaterialUsage{}
		}
		return MaterialUsageReport{Period: period, Usage: usage}, nil
	})
	if err != nil {
		return MaterialUsageReport{}, fmt.Errorf("reports: raw material usage: %w", err)
	}
	return out, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
