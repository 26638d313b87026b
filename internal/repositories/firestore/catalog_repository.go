package firestore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	"github.com/atelier-market/api/internal/domain"
	pfirestore "github.com/atelier-market/api/internal/platform/firestore"
)

const (
	billboardsCollection = "billboards"
	categoriesCollection = "categories"
	sizesCollection      = "sizes"
	colorsCollection     = "colors"
)

// catalogRepository provides the shared persistence shape for the four
// store-scoped catalog collections. Each entity differs only in its fields,
// so ID plumbing is delegated to the accessor funcs.
type catalogRepository[T any] struct {
	base  *pfirestore.BaseRepository[T]
	name  string
	getID func(T) string
	setID func(*T, string)
}

func newCatalogRepository[T any](provider *pfirestore.Provider, collection string, getID func(T) string, setID func(*T, string)) (catalogRepository[T], error) {
	if provider == nil {
		return catalogRepository[T]{}, fmt.Errorf("%s repository requires firestore provider", collection)
	}
	base := pfirestore.NewBaseRepository[T](provider, collection)
	return catalogRepository[T]{base: base, name: collection, getID: getID, setID: setID}, nil
}

func (r catalogRepository[T]) Insert(ctx context.Context, entity T) error {
	if r.base == nil {
		return fmt.Errorf("%s repository not initialised", r.name)
	}
	id := strings.TrimSpace(r.getID(entity))
	if id == "" {
		return fmt.Errorf("%s insert: id is required", r.name)
	}
	return r.base.Create(ctx, id, entity)
}

func (r catalogRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	var zero T
	if r.base == nil {
		return zero, fmt.Errorf("%s repository not initialised", r.name)
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	entity := doc.Data
	r.setID(&entity, doc.ID)
	return entity, nil
}

func (r catalogRepository[T]) ListByStore(ctx context.Context, storeID string) ([]T, error) {
	if r.base == nil {
		return nil, fmt.Errorf("%s repository not initialised", r.name)
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("%s list: store id is required", r.name)
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("storeId", "==", storeID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	entities := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity := doc.Data
		r.setID(&entity, doc.ID)
		entities = append(entities, entity)
	}
	return entities, nil
}

func (r catalogRepository[T]) Update(ctx context.Context, entity T) error {
	if r.base == nil {
		return fmt.Errorf("%s repository not initialised", r.name)
	}
	id := strings.TrimSpace(r.getID(entity))
	if id == "" {
		return fmt.Errorf("%s update: id is required", r.name)
	}
	return r.base.Set(ctx, id, entity)
}

func (r catalogRepository[T]) Delete(ctx context.Context, id string) error {
	if r.base == nil {
		return fmt.Errorf("%s repository not initialised", r.name)
	}
	return r.base.Delete(ctx, id)
}

// BillboardRepository persists billboard documents in Firestore.
type BillboardRepository struct {
	catalogRepository[domain.Billboard]
}

// NewBillboardRepository constructs a Firestore backed billboard repository.
func NewBillboardRepository(provider *pfirestore.Provider) (*BillboardRepository, error) {
	repo, err := newCatalogRepository[domain.Billboard](provider, billboardsCollection,
		func(b domain.Billboard) string { return b.ID },
		func(b *domain.Billboard, id string) { b.ID = id },
	)
	if err != nil {
		return nil, err
	}
	return &BillboardRepository{catalogRepository: repo}, nil
}

// CategoryRepository persists category documents in Firestore.
type CategoryRepository struct {
	catalogRepository[domain.Category]
}

// NewCategoryRepository constructs a Firestore backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	repo, err := newCatalogRepository[domain.Category](provider, categoriesCollection,
		func(c domain.Category) string { return c.ID },
		func(c *domain.Category, id string) { c.ID = id },
	)
	if err != nil {
		return nil, err
	}
	return &CategoryRepository{catalogRepository: repo}, nil
}

// SizeRepository persists size documents in Firestore.
type SizeRepository struct {
	catalogRepository[domain.Size]
}

// NewSizeRepository constructs a Firestore backed size repository.
func NewSizeRepository(provider *pfirestore.Provider) (*SizeRepository, error) {
	repo, err := newCatalogRepository[domain.Size](provider, sizesCollection,
		func(s domain.Size) string { return s.ID },
		func(s *domain.Size, id string) { s.ID = id },
	)
	if err != nil {
		return nil, err
	}
	return &SizeRepository{catalogRepository: repo}, nil
}

// ColorRepository persists color documents in Firestore.
type ColorRepository struct {
	catalogRepository[domain.Color]
}

// NewColorRepository constructs a Firestore backed color repository.
func NewColorRepository(provider *pfirestore.Provider) (*ColorRepository, error) {
	repo, err := newCatalogRepository[domain.Color](provider, colorsCollection,
		func(c domain.Color) string { return c.ID },
		func(c *domain.Color, id string) { c.ID = id },
	)
	if err != nil {
		return nil, err
	}
	return &ColorRepository{catalogRepository: repo}, nil
}
