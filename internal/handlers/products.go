package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/platform/auth"
	"github.com/atelier-market/api/internal/platform/httpx"
	"github.com/atelier-market/api/internal/services"
)

const maxProductBodySize = 32 * 1024

// ProductHandlers exposes product endpoints. Reads are open to the
// storefront; mutations require an authenticated store owner.
type ProductHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewProductHandlers constructs product handlers.
func NewProductHandlers(authn *auth.Authenticator, catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the product endpoints under a store scoped router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)

	admin := r
	if h.authn != nil {
		admin = r.With(h.authn.RequireFirebaseAuth())
	}
	admin.Post("/products", h.createProduct)
	admin.Patch("/products/{productID}", h.updateProduct)
	admin.Delete("/products/{productID}", h.deleteProduct)
}

type productRequest struct {
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	Stock      int64    `json:"stock"`
	IsArchived bool     `json:"isArchived"`
	IsFeatured bool     `json:"isFeatured"`
	CategoryID string   `json:"categoryId"`
	SizeIDs    []string `json:"sizeIds"`
	ColorIDs   []string `json:"colorIds"`
	ImageURLs  []string `json:"imageUrls"`
}

type productResponse struct {
	ID         string   `json:"id"`
	StoreID    string   `json:"storeId"`
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	Stock      int64    `json:"stock"`
	IsArchived bool     `json:"isArchived"`
	IsFeatured bool     `json:"isFeatured"`
	CategoryID string   `json:"categoryId"`
	SizeIDs    []string `json:"sizeIds,omitempty"`
	ColorIDs   []string `json:"colorIds,omitempty"`
	ImageURLs  []string `json:"imageUrls,omitempty"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

func toProductResponse(product domain.Product) productResponse {
	return productResponse{
		ID:         product.ID,
		StoreID:    product.StoreID,
		Name:       product.Name,
		Price:      product.Price,
		Stock:      product.Stock,
		IsArchived: product.IsArchived,
		IsFeatured: product.IsFeatured,
		CategoryID: product.CategoryID,
		SizeIDs:    product.SizeIDs,
		ColorIDs:   product.ColorIDs,
		ImageURLs:  product.ImageURLs,
		CreatedAt:  formatTime(product.CreatedAt),
		UpdatedAt:  formatTime(product.UpdatedAt),
	}
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	products, err := h.catalog.ListProducts(ctx, chi.URLParam(r, "storeID"), filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := make([]productResponse, 0, len(products))
	for _, product := range products {
		payload = append(payload, toProductResponse(product))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "storeID"), chi.URLParam(r, "productID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := decodeBody(r, maxProductBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.CreateProduct(ctx, identity.UID, domain.Product{
		StoreID:    chi.URLParam(r, "storeID"),
		Name:       req.Name,
		Price:      req.Price,
		Stock:      req.Stock,
		IsArchived: req.IsArchived,
		IsFeatured: req.IsFeatured,
		CategoryID: req.CategoryID,
		SizeIDs:    req.SizeIDs,
		ColorIDs:   req.ColorIDs,
		ImageURLs:  req.ImageURLs,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toProductResponse(product))
}

func (h *ProductHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req productRequest
	if err := decodeBody(r, maxProductBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, identity.UID, domain.Product{
		ID:         chi.URLParam(r, "productID"),
		StoreID:    chi.URLParam(r, "storeID"),
		Name:       req.Name,
		Price:      req.Price,
		Stock:      req.Stock,
		IsArchived: req.IsArchived,
		IsFeatured: req.IsFeatured,
		CategoryID: req.CategoryID,
		SizeIDs:    req.SizeIDs,
		ColorIDs:   req.ColorIDs,
		ImageURLs:  req.ImageURLs,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(ctx, identity.UID, chi.URLParam(r, "storeID"), chi.URLParam(r, "productID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseProductFilter(query url.Values) (services.ProductListFilter, error) {
	filter := services.ProductListFilter{
		CategoryID: query.Get("categoryId"),
		SizeID:     query.Get("sizeId"),
		ColorID:    query.Get("colorId"),
	}
	if raw := query.Get("isFeatured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return services.ProductListFilter{}, errors.New("isFeatured must be a boolean")
		}
		filter.IsFeatured = &featured
	}
	if raw := query.Get("includeArchived"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			return services.ProductListFilter{}, errors.New("includeArchived must be a boolean")
		}
		filter.IncludeArchived = include
	}
	return filter, nil
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotStoreOwner):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "user does not own this store", http.StatusForbidden))
	case errors.Is(err, services.ErrStoreNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("store_not_found", "store not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogEntityNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "resource not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalog request", http.StatusInternalServerError))
	}
}
