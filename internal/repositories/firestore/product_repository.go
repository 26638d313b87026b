package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/atelier-market/api/internal/domain"
	pfirestore "github.com/atelier-market/api/internal/platform/firestore"
	"github.com/atelier-market/api/internal/repositories"
)

const productsCollection = "products"

// ProductRepository persists product documents and performs transactional stock adjustments.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[domain.Product]
	now      func() time.Time
}

// NewProductRepository constructs a Firestore backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	products := pfirestore.NewBaseRepository[domain.Product](provider, productsCollection)
	return &ProductRepository{
		provider: provider,
		products: products,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Insert creates the product document, failing when the ID already exists.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product insert: id is required")
	}
	return r.products.Create(ctx, product.ID, product)
}

// FindByID fetches a product by document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	product := doc.Data
	product.ID = doc.ID
	return product, nil
}

// ListByStore returns products for a store honouring the storefront filters.
func (r *ProductRepository) ListByStore(ctx context.Context, storeID string, filter repositories.ProductFilter) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("product repository not initialised")
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, errors.New("product list: store id is required")
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("storeId", "==", storeID)
		if !filter.IncludeArchived {
			q = q.Where("isArchived", "==", false)
		}
		if categoryID := strings.TrimSpace(filter.CategoryID); categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
		if sizeID := strings.TrimSpace(filter.SizeID); sizeID != "" {
			q = q.Where("sizeIds", "array-contains", sizeID)
		}
		if filter.IsFeatured != nil {
			q = q.Where("isFeatured", "==", *filter.IsFeatured)
		}
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	// Firestore permits a single array-contains clause per query, so the
	// size filter runs server-side and the color filter is applied here.
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := doc.Data
		product.ID = doc.ID
		if colorID := strings.TrimSpace(filter.ColorID); colorID != "" && !containsString(product.ColorIDs, colorID) {
			continue
		}
		products = append(products, product)
	}
	return products, nil
}

// Update overwrites the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product update: id is required")
	}
	return r.products.Set(ctx, product.ID, product)
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	return r.products.Delete(ctx, productID)
}

// AdjustStocks applies all adjustments in a single transaction. Every product
// is read and validated before any write, so two concurrent checkouts racing
// for the last unit cannot both succeed. Stock that reaches zero archives the
// product; restocking never un-archives it.
func (r *ProductRepository) AdjustStocks(ctx context.Context, storeID string, adjustments []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, errors.New("stock adjust: store id is required")
	}
	if len(adjustments) == 0 {
		return nil, errors.New("stock adjust: at least one adjustment is required")
	}

	var levels []repositories.StockLevel
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		levels = levels[:0]

		type pendingWrite struct {
			ref      *firestore.DocumentRef
			next     int64
			archived bool
		}
		pending := make([]pendingWrite, 0, len(adjustments))

		for _, adj := range adjustments {
			productID := strings.TrimSpace(adj.ProductID)
			if productID == "" {
				return repositories.NewStockError(repositories.StockErrorProductNotFound, productID, "stock adjust: product id is required", nil)
			}

			ref, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewStockError(repositories.StockErrorProductNotFound, productID, fmt.Sprintf("product %s not found", productID), err)
				}
				return err
			}
			doc, err := r.products.Decode(snap)
			if err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			product := doc.Data
			if product.StoreID != storeID {
				return repositories.NewStockError(repositories.StockErrorProductNotFound, productID, fmt.Sprintf("product %s not found", productID), nil)
			}

			next := product.Stock + adj.Delta
			if next < 0 {
				return repositories.NewStockError(repositories.StockErrorInsufficient, productID, fmt.Sprintf("insufficient stock for product %s", productID), nil)
			}

			archived := product.IsArchived || next == 0
			pending = append(pending, pendingWrite{ref: ref, next: next, archived: archived})
			levels = append(levels, repositories.StockLevel{ProductID: productID, Remaining: next, Archived: archived})
		}

		now := r.now()
		for _, write := range pending {
			updates := []firestore.Update{
				{Path: "stock", Value: write.next},
				{Path: "updatedAt", Value: now},
			}
			if write.archived {
				updates = append(updates, firestore.Update{Path: "isArchived", Value: true})
			}
			if err := tx.Update(write.ref, updates); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStockError("products.adjustStocks", err)
	}
	return levels, nil
}

// CountInStock counts non-archived products for the store.
func (r *ProductRepository) CountInStock(ctx context.Context, storeID string) (int64, error) {
	if r == nil || r.products == nil {
		return 0, errors.New("product repository not initialised")
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return 0, errors.New("product count: store id is required")
	}

	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("storeId", "==", storeID).Where("isArchived", "==", false)
	})
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func wrapStockError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		if stockErr.Op == "" {
			stockErr.Op = op
		}
		return stockErr
	}
	return pfirestore.WrapError(op, err)
}
