package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/repositories"
)

const eventMetricsOverview = "metrics.overview"

// ErrMetricsInvalidInput signals the caller provided invalid arguments.
var ErrMetricsInvalidInput = errors.New("metrics: invalid input")

// MetricsServiceDeps bundles the collaborators required to construct a metrics service.
type MetricsServiceDeps struct {
	Orders   repositories.OrderRepository
	Products repositories.ProductRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type metricsService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	logger   func(context.Context, string, map[string]any)
}

// NewMetricsService wires dependencies into a concrete MetricsService implementation.
func NewMetricsService(deps MetricsServiceDeps) (MetricsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("metrics service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("metrics service: product repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &metricsService{
		orders:   deps.Orders,
		products: deps.Products,
		logger:   logger,
	}, nil
}

// Overview aggregates revenue and sales from delivered orders only. Revenue
// sums the item snapshots, so shipping fees and later price edits never move
// the numbers.
func (s *metricsService) Overview(ctx context.Context, storeID string) (StoreOverview, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return StoreOverview{}, fmt.Errorf("%w: store id is required", ErrMetricsInvalidInput)
	}

	delivered, err := s.orders.ListByStore(ctx, storeID, repositories.OrderFilter{
		Status: domain.OrderStatusDelivered,
	})
	if err != nil {
		return StoreOverview{}, err
	}

	overview := StoreOverview{SalesCount: int64(len(delivered))}
	for _, order := range delivered {
		revenue := orderRevenue(order)
		overview.TotalRevenue += revenue
		overview.MonthlyRevenue[monthIndex(order.CreatedAt)] += revenue
	}

	inStock, err := s.products.CountInStock(ctx, storeID)
	if err != nil {
		return StoreOverview{}, err
	}
	overview.ProductsInStock = inStock

	s.logger(ctx, eventMetricsOverview, map[string]any{
		"storeId":    storeID,
		"salesCount": overview.SalesCount,
	})
	return overview, nil
}

func orderRevenue(order domain.Order) int64 {
	var total int64
	for _, item := range order.Items {
		total += item.UnitPrice * item.Quantity
	}
	return total
}

func monthIndex(t time.Time) int {
	return int(t.UTC().Month()) - 1
}
