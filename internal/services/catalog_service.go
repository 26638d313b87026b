package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/repositories"
)

const (
	eventCatalogCreate = "catalog.create"
	eventCatalogUpdate = "catalog.update"
	eventCatalogDelete = "catalog.delete"
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid arguments.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrProductNotFound indicates the product does not exist in the store.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrCatalogEntityNotFound indicates the catalog document does not exist in the store.
	ErrCatalogEntityNotFound = errors.New("catalog: entity not found")
)

// CatalogServiceDeps bundles the collaborators required to construct a catalog service.
type CatalogServiceDeps struct {
	Stores      repositories.StoreRepository
	Products    repositories.ProductRepository
	Billboards  repositories.BillboardRepository
	Categories  repositories.CategoryRepository
	Sizes       repositories.SizeRepository
	Colors      repositories.ColorRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	stores     repositories.StoreRepository
	products   repositories.ProductRepository
	billboards repositories.BillboardRepository
	categories repositories.CategoryRepository
	sizes      repositories.SizeRepository
	colors     repositories.ColorRepository
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Stores == nil {
		return nil, errors.New("catalog service: store repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Billboards == nil || deps.Categories == nil || deps.Sizes == nil || deps.Colors == nil {
		return nil, errors.New("catalog service: all catalog repositories are required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		stores:     deps.Stores,
		products:   deps.Products,
		billboards: deps.Billboards,
		categories: deps.Categories,
		sizes:      deps.Sizes,
		colors:     deps.Colors,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Products --------------------------------------------------------------------

func (s *catalogService) CreateProduct(ctx context.Context, actorID string, product domain.Product) (domain.Product, error) {
	if err := s.requireOwner(ctx, actorID, product.StoreID); err != nil {
		return domain.Product{}, err
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	now := s.clock()
	product.ID = "prod_" + s.newID()
	product.Name = strings.TrimSpace(product.Name)
	// A product created with no stock goes straight to the archive.
	if product.Stock == 0 {
		product.IsArchived = true
	}
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Insert(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logger(ctx, eventCatalogCreate, map[string]any{"entity": "product", "id": product.ID, "storeId": product.StoreID})
	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, storeID, productID string) (domain.Product, error) {
	storeID = strings.TrimSpace(storeID)
	productID = strings.TrimSpace(productID)
	if storeID == "" || productID == "" {
		return domain.Product{}, fmt.Errorf("%w: store id and product id are required", ErrCatalogInvalidInput)
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return domain.Product{}, err
	}
	if product.StoreID != storeID {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, storeID string, filter ProductListFilter) ([]domain.Product, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("%w: store id is required", ErrCatalogInvalidInput)
	}
	return s.products.ListByStore(ctx, storeID, repositories.ProductFilter{
		CategoryID:      strings.TrimSpace(filter.CategoryID),
		SizeID:          strings.TrimSpace(filter.SizeID),
		ColorID:         strings.TrimSpace(filter.ColorID),
		IsFeatured:      filter.IsFeatured,
		IncludeArchived: filter.IncludeArchived,
	})
}

func (s *catalogService) UpdateProduct(ctx context.Context, actorID string, product domain.Product) (domain.Product, error) {
	if err := s.requireOwner(ctx, actorID, product.StoreID); err != nil {
		return domain.Product{}, err
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.GetProduct(ctx, product.StoreID, product.ID)
	if err != nil {
		return domain.Product{}, err
	}

	product.Name = strings.TrimSpace(product.Name)
	if product.Stock == 0 {
		product.IsArchived = true
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, err
	}

	s.logger(ctx, eventCatalogUpdate, map[string]any{"entity": "product", "id": product.ID, "storeId": product.StoreID})
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, actorID, storeID, productID string) error {
	if err := s.requireOwner(ctx, actorID, storeID); err != nil {
		return err
	}
	if _, err := s.GetProduct(ctx, storeID, productID); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}
	s.logger(ctx, eventCatalogDelete, map[string]any{"entity": "product", "id": productID, "storeId": storeID})
	return nil
}

// Billboards ------------------------------------------------------------------

func (s *catalogService) CreateBillboard(ctx context.Context, actorID string, billboard domain.Billboard) (domain.Billboard, error) {
	if err := s.requireOwner(ctx, actorID, billboard.StoreID); err != nil {
		return domain.Billboard{}, err
	}
	if strings.TrimSpace(billboard.Label) == "" {
		return domain.Billboard{}, fmt.Errorf("%w: label is required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	billboard.ID = "bb_" + s.newID()
	billboard.Label = strings.TrimSpace(billboard.Label)
	billboard.CreatedAt = now
	billboard.UpdatedAt = now

	if err := s.billboards.Insert(ctx, billboard); err != nil {
		return domain.Billboard{}, err
	}
	s.logger(ctx, eventCatalogCreate, map[string]any{"entity": "billboard", "id": billboard.ID, "storeId": billboard.StoreID})
	return billboard, nil
}

func (s *catalogService) GetBillboard(ctx context.Context, storeID, billboardID string) (domain.Billboard, error) {
	billboard, err := s.billboards.FindByID(ctx, strings.TrimSpace(billboardID))
	if err != nil {
		return domain.Billboard{}, mapCatalogNotFound(err, billboardID)
	}
	if billboard.StoreID != strings.TrimSpace(storeID) {
		return domain.Billboard{}, fmt.Errorf("%w: %s", ErrCatalogEntityNotFound, billboardID)
	}
	return billboard, nil
}

func (s *catalogService) ListBillboards(ctx context.Context, storeID string) ([]domain.Billboard, error) {
	return s.billboards.ListByStore(ctx, strings.TrimSpace(storeID))
}

func (s *catalogService) UpdateBillboard(ctx context.Context, actorID string, billboard domain.Billboard) (domain.Billboard, error) {
	if err := s.requireOwner(ctx, actorID, billboard.StoreID); err != nil {
		return domain.Billboard{}, err
	}
	existing, err := s.GetBillboard(ctx, billboard.StoreID, billboard.ID)
	if err != nil {
		return domain.Billboard{}, err
	}
	if strings.TrimSpace(billboard.Label) == "" {
		return domain.Billboard{}, fmt.Errorf("%w: label is required", ErrCatalogInvalidInput)
	}

	billboard.Label = strings.TrimSpace(billboard.Label)
	billboard.CreatedAt = existing.CreatedAt
	billboard.UpdatedAt = s.clock()

	if err := s.billboards.Update(ctx, billboard); err != nil {
		return domain.Billboard{}, err
	}
	s.logger(ctx, eventCatalogUpdate, map[string]any{"entity": "billboard", "id": billboard.ID, "storeId": billboard.StoreID})
	return billboard, nil
}

func (s *catalogService) DeleteBillboard(ctx context.Context, actorID, storeID, billboardID string) error {
	if err := s.requireOwner(ctx, actorID, storeID); err != nil {
		return err
	}
	if _, err := s.GetBillboard(ctx, storeID, billboardID); err != nil {
		return err
	}
	if err := s.billboards.Delete(ctx, billboardID); err != nil {
		return err
	}
	s.logger(ctx, eventCatalogDelete, map[string]any{"entity": "billboard", "id": billboardID, "storeId": storeID})
	return nil
}

// Categories ------------------------------------------------------------------

func (s *catalogService) CreateCategory(ctx context.Context, actorID string, category domain.Category) (domain.Category, error) {
	if err := s.requireOwner(ctx, actorID, category.StoreID); err != nil {
		return domain.Category{}, err
	}
	if strings.TrimSpace(category.Name) == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	category.ID = "cat_" + s.newID()
	category.Name = strings.TrimSpace(category.Name)
	category.CreatedAt = now
	category.UpdatedAt = now

	if err := s.categories.Insert(ctx, category); err != nil {
		return domain.Category{}, err
	}
	s.logger(ctx, eventCatalogCreate, map[string]any{"entity": "category", "id": category.ID, "storeId": category.StoreID})
	return category, nil
}

func (s *catalogService) GetCategory(ctx context.Context, storeID, categoryID string) (domain.Category, error) {
	category, err := s.categories.FindByID(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return domain.Category{}, mapCatalogNotFound(err, categoryID)
	}
	if category.StoreID != strings.TrimSpace(storeID) {
		return domain.Category{}, fmt.Errorf("%w: %s", ErrCatalogEntityNotFound, categoryID)
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context, storeID string) ([]domain.Category, error) {
	return s.categories.ListByStore(ctx, strings.TrimSpace(storeID))
}

func (s *catalogService) UpdateCategory(ctx context.Context, actorID string, category domain.Category) (domain.Category, error) {
	if err := s.requireOwner(ctx, actorID, category.StoreID); err != nil {
		return domain.Category{}, err
	}
	existing, err := s.GetCategory(ctx, category.StoreID, category.ID)
	if err != nil {
		return domain.Category{}, err
	}
	if strings.TrimSpace(category.Name) == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}

	category.Name = strings.TrimSpace(category.Name)
	category.CreatedAt = existing.CreatedAt
	category.UpdatedAt = s.clock()

	if err := s.categories.Update(ctx, category); err != nil {
		return domain.Category{}, err
	}
	s.logger(ctx, eventCatalogUpdate, map[string]any{"entity": "category", "id": category.ID, "storeId": category.StoreID})
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, actorID, storeID, categoryID string) error {
	if err := s.requireOwner(ctx, actorID, storeID); err != nil {
		return err
	}
	if _, err := s.GetCategory(ctx, storeID, categoryID); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return err
	}
	s.logger(ctx, eventCatalogDelete, map[string]any{"entity": "category", "id": categoryID, "storeId": storeID})
	return nil
}

// Sizes -----------------------------------------------------------------------

func (s *catalogService) CreateSize(ctx context.Context, actorID string, size domain.Size) (domain.Size, error) {
	if err := s.requireOwner(ctx, actorID, size.StoreID); err != nil {
		return domain.Size{}, err
	}
	if strings.TrimSpace(size.Name) == "" || strings.TrimSpace(size.Value) == "" {
		return domain.Size{}, fmt.Errorf("%w: name and value are required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	size.ID = "sz_" + s.newID()
	size.Name = strings.TrimSpace(size.Name)
	size.Value = strings.TrimSpace(size.Value)
	size.CreatedAt = now
	size.UpdatedAt = now

	if err := s.sizes.Insert(ctx, size); err != nil {
		return domain.Size{}, err
	}
	s.logger(ctx, eventCatalogCreate, map[string]any{"entity": "size", "id": size.ID, "storeId": size.StoreID})
	return size, nil
}

func (s *catalogService) GetSize(ctx context.Context, storeID, sizeID string) (domain.Size, error) {
	size, err := s.sizes.FindByID(ctx, strings.TrimSpace(sizeID))
	if err != nil {
		return domain.Size{}, mapCatalogNotFound(err, sizeID)
	}
	if size.StoreID != strings.TrimSpace(storeID) {
		return domain.Size{}, fmt.Errorf("%w: %s", ErrCatalogEntityNotFound, sizeID)
	}
	return size, nil
}

func (s *catalogService) ListSizes(ctx context.Context, storeID string) ([]domain.Size, error) {
	return s.sizes.ListByStore(ctx, strings.TrimSpace(storeID))
}

func (s *catalogService) UpdateSize(ctx context.Context, actorID string, size domain.Size) (domain.Size, error) {
	if err := s.requireOwner(ctx, actorID, size.StoreID); err != nil {
		return domain.Size{}, err
	}
	existing, err := s.GetSize(ctx, size.StoreID, size.ID)
	if err != nil {
		return domain.Size{}, err
	}
	if strings.TrimSpace(size.Name) == "" || strings.TrimSpace(size.Value) == "" {
		return domain.Size{}, fmt.Errorf("%w: name and value are required", ErrCatalogInvalidInput)
	}

	size.Name = strings.TrimSpace(size.Name)
	size.Value = strings.TrimSpace(size.Value)
	size.CreatedAt = existing.CreatedAt
	size.UpdatedAt = s.clock()

	if err := s.sizes.Update(ctx, size); err != nil {
		return domain.Size{}, err
	}
	s.logger(ctx, eventCatalogUpdate, map[string]any{"entity": "size", "id": size.ID, "storeId": size.StoreID})
	return size, nil
}

func (s *catalogService) DeleteSize(ctx context.Context, actorID, storeID, sizeID string) error {
	if err := s.requireOwner(ctx, actorID, storeID); err != nil {
		return err
	}
	if _, err := s.GetSize(ctx, storeID, sizeID); err != nil {
		return err
	}
	if err := s.sizes.Delete(ctx, sizeID); err != nil {
		return err
	}
	s.logger(ctx, eventCatalogDelete, map[string]any{"entity": "size", "id": sizeID, "storeId": storeID})
	return nil
}

// Colors ----------------------------------------------------------------------

func (s *catalogService) CreateColor(ctx context.Context, actorID string, color domain.Color) (domain.Color, error) {
	if err := s.requireOwner(ctx, actorID, color.StoreID); err != nil {
		return domain.Color{}, err
	}
	if strings.TrimSpace(color.Name) == "" || strings.TrimSpace(color.Value) == "" {
		return domain.Color{}, fmt.Errorf("%w: name and value are required", ErrCatalogInvalidInput)
	}

	now := s.clock()
	color.ID = "col_" + s.newID()
	color.Name = strings.TrimSpace(color.Name)
	color.Value = strings.TrimSpace(color.Value)
	color.CreatedAt = now
	color.UpdatedAt = now

	if err := s.colors.Insert(ctx, color); err != nil {
		return domain.Color{}, err
	}
	s.logger(ctx, eventCatalogCreate, map[string]any{"entity": "color", "id": color.ID, "storeId": color.StoreID})
	return color, nil
}

func (s *catalogService) GetColor(ctx context.Context, storeID, colorID string) (domain.Color, error) {
	color, err := s.colors.FindByID(ctx, strings.TrimSpace(colorID))
	if err != nil {
		return domain.Color{}, mapCatalogNotFound(err, colorID)
	}
	if color.StoreID != strings.TrimSpace(storeID) {
		return domain.Color{}, fmt.Errorf("%w: %s", ErrCatalogEntityNotFound, colorID)
	}
	return color, nil
}

func (s *catalogService) ListColors(ctx context.Context, storeID string) ([]domain.Color, error) {
	return s.colors.ListByStore(ctx, strings.TrimSpace(storeID))
}

func (s *catalogService) UpdateColor(ctx context.Context, actorID string, color domain.Color) (domain.Color, error) {
	if err := s.requireOwner(ctx, actorID, color.StoreID); err != nil {
		return domain.Color{}, err
	}
	existing, err := s.GetColor(ctx, color.StoreID, color.ID)
	if err != nil {
		return domain.Color{}, err
	}
	if strings.TrimSpace(color.Name) == "" || strings.TrimSpace(color.Value) == "" {
		return domain.Color{}, fmt.Errorf("%w: name and value are required", ErrCatalogInvalidInput)
	}

	color.Name = strings.TrimSpace(color.Name)
	color.Value = strings.TrimSpace(color.Value)
	color.CreatedAt = existing.CreatedAt
	color.UpdatedAt = s.clock()

	if err := s.colors.Update(ctx, color); err != nil {
		return domain.Color{}, err
	}
	s.logger(ctx, eventCatalogUpdate, map[string]any{"entity": "color", "id": color.ID, "storeId": color.StoreID})
	return color, nil
}

func (s *catalogService) DeleteColor(ctx context.Context, actorID, storeID, colorID string) error {
	if err := s.requireOwner(ctx, actorID, storeID); err != nil {
		return err
	}
	if _, err := s.GetColor(ctx, storeID, colorID); err != nil {
		return err
	}
	if err := s.colors.Delete(ctx, colorID); err != nil {
		return err
	}
	s.logger(ctx, eventCatalogDelete, map[string]any{"entity": "color", "id": colorID, "storeId": storeID})
	return nil
}

// Helpers ---------------------------------------------------------------------

func (s *catalogService) requireOwner(ctx context.Context, actorID, storeID string) error {
	actorID = strings.TrimSpace(actorID)
	storeID = strings.TrimSpace(storeID)
	if actorID == "" || storeID == "" {
		return fmt.Errorf("%w: actor id and store id are required", ErrCatalogInvalidInput)
	}

	store, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)
		}
		return err
	}
	if store.OwnerID != actorID {
		return fmt.Errorf("%w: %s", ErrNotStoreOwner, storeID)
	}
	return nil
}

func validateProduct(product domain.Product) error {
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if product.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if product.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(product.CategoryID) == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	return nil
}

func mapCatalogNotFound(err error, id string) error {
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %s", ErrCatalogEntityNotFound, id)
	}
	return err
}
