package repositories

import (
	"context"

	"github.com/atelier-market/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// StoreRepository persists store documents including gateway credentials.
type StoreRepository interface {
	Insert(ctx context.Context, store domain.Store) error
	FindByID(ctx context.Context, storeID string) (domain.Store, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error)
	Update(ctx context.Context, store domain.Store) error
	Delete(ctx context.Context, storeID string) error
}

// ProductFilter narrows product listings for storefront queries.
type ProductFilter struct {
	CategoryID      string
	SizeID          string
	ColorID         string
	IsFeatured      *bool
	IncludeArchived bool
}

// StockAdjustment describes a signed stock delta for a single product.
type StockAdjustment struct {
	ProductID string
	Delta     int64
}

// StockLevel reports the post-adjustment state of a product's stock.
type StockLevel struct {
	ProductID string
	Remaining int64
	Archived  bool
}

// ProductRepository manages product documents and transactional stock adjustments.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	ListByStore(ctx context.Context, storeID string, filter ProductFilter) ([]domain.Product, error)
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error

	// AdjustStocks applies every adjustment atomically. Stock checks and
	// writes happen inside a single transaction so concurrent checkouts
	// cannot both consume the last unit. Products whose stock reaches zero
	// are archived in the same write. A *StockError is returned when any
	// product is missing or would drop below zero, and no write is applied.
	AdjustStocks(ctx context.Context, storeID string, adjustments []StockAdjustment) ([]StockLevel, error)

	CountInStock(ctx context.Context, storeID string) (int64, error)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID string
	Status     domain.OrderStatus
}

// OrderRepository persists order documents with their item snapshots.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	ListByStore(ctx context.Context, storeID string, filter OrderFilter) ([]domain.Order, error)
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
}

// BillboardRepository persists billboard documents.
type BillboardRepository interface {
	Insert(ctx context.Context, billboard domain.Billboard) error
	FindByID(ctx context.Context, billboardID string) (domain.Billboard, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Billboard, error)
	Update(ctx context.Context, billboard domain.Billboard) error
	Delete(ctx context.Context, billboardID string) error
}

// CategoryRepository persists category documents.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Category, error)
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
}

// SizeRepository persists size documents.
type SizeRepository interface {
	Insert(ctx context.Context, size domain.Size) error
	FindByID(ctx context.Context, sizeID string) (domain.Size, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Size, error)
	Update(ctx context.Context, size domain.Size) error
	Delete(ctx context.Context, sizeID string) error
}

// ColorRepository persists color documents.
type ColorRepository interface {
	Insert(ctx context.Context, color domain.Color) error
	FindByID(ctx context.Context, colorID string) (domain.Color, error)
	ListByStore(ctx context.Context, storeID string) ([]domain.Color, error)
	Update(ctx context.Context, color domain.Color) error
	Delete(ctx context.Context, colorID string) error
}
