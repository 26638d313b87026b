package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/platform/auth"
	"github.com/atelier-market/api/internal/services"
)

const maxCatalogBodySize = 16 * 1024

// CatalogHandlers exposes the billboard, category, size and color endpoints.
// Reads are open to the storefront; mutations require the store owner.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCatalogHandlers constructs catalog handlers.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the catalog endpoints under a store scoped router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/billboards", h.listBillboards)
	r.Get("/billboards/{billboardID}", h.getBillboard)
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{categoryID}", h.getCategory)
	r.Get("/sizes", h.listSizes)
	r.Get("/sizes/{sizeID}", h.getSize)
	r.Get("/colors", h.listColors)
	r.Get("/colors/{colorID}", h.getColor)

	admin := r
	if h.authn != nil {
		admin = r.With(h.authn.RequireFirebaseAuth())
	}
	admin.Post("/billboards", h.createBillboard)
	admin.Patch("/billboards/{billboardID}", h.updateBillboard)
	admin.Delete("/billboards/{billboardID}", h.deleteBillboard)
	admin.Post("/categories", h.createCategory)
	admin.Patch("/categories/{categoryID}", h.updateCategory)
	admin.Delete("/categories/{categoryID}", h.deleteCategory)
	admin.Post("/sizes", h.createSize)
	admin.Patch("/sizes/{sizeID}", h.updateSize)
	admin.Delete("/sizes/{sizeID}", h.deleteSize)
	admin.Post("/colors", h.createColor)
	admin.Patch("/colors/{colorID}", h.updateColor)
	admin.Delete("/colors/{colorID}", h.deleteColor)
}

// Billboards ------------------------------------------------------------------

type billboardRequest struct {
	Label    string `json:"label"`
	ImageURL string `json:"imageUrl"`
}

type billboardResponse struct {
	ID        string `json:"id"`
	StoreID   string `json:"storeId"`
	Label     string `json:"label"`
	ImageURL  string `json:"imageUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toBillboardResponse(billboard domain.Billboard) billboardResponse {
	return billboardResponse{
		ID:        billboard.ID,
		StoreID:   billboard.StoreID,
		Label:     billboard.Label,
		ImageURL:  billboard.ImageURL,
		CreatedAt: formatTime(billboard.CreatedAt),
		UpdatedAt: formatTime(billboard.UpdatedAt),
	}
}

func (h *CatalogHandlers) listBillboards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	billboards, err := h.catalog.ListBillboards(ctx, chi.URLParam(r, "storeID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]billboardResponse, 0, len(billboards))
	for _, billboard := range billboards {
		payload = append(payload, toBillboardResponse(billboard))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getBillboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	billboard, err := h.catalog.GetBillboard(ctx, chi.URLParam(r, "storeID"), chi.URLParam(r, "billboardID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toBillboardResponse(billboard))
}

func (h *CatalogHandlers) createBillboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req billboardRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	billboard, err := h.catalog.CreateBillboard(ctx, identity.UID, domain.Billboard{
		StoreID:  chi.URLParam(r, "storeID"),
		Label:    req.Label,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toBillboardResponse(billboard))
}

func (h *CatalogHandlers) updateBillboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req billboardRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	billboard, err := h.catalog.UpdateBillboard(ctx, identity.UID, domain.Billboard{
		ID:       chi.URLParam(r, "billboardID"),
		StoreID:  chi.URLParam(r, "storeID"),
		Label:    req.Label,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toBillboardResponse(billboard))
}

func (h *CatalogHandlers) deleteBillboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteBillboard(ctx, identity.UID, chi.URLParam(r, "storeID"), chi.URLParam(r, "billboardID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Categories ------------------------------------------------------------------

type categoryRequest struct {
	Name        string `json:"name"`
	BillboardID string `json:"billboardId"`
}

type categoryResponse struct {
	ID          string `json:"id"`
	StoreID     string `json:"storeId"`
	Name        string `json:"name"`
	BillboardID string `json:"billboardId,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toCategoryResponse(category domain.Category) categoryResponse {
	return categoryResponse{
		ID:          category.ID,
		StoreID:     category.StoreID,
		Name:        category.Name,
		BillboardID: category.BillboardID,
		CreatedAt:   formatTime(category.CreatedAt),
		UpdatedAt:   formatTime(category.UpdatedAt),
	}
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categories, err := h.catalog.ListCategories(ctx, chi.URLParam(r, "storeID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]categoryResponse, 0, len(categories))
	for _, category := range categories {
		payload = append(payload, toCategoryResponse(category))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category, err := h.catalog.GetCategory(ctx, chi.URLParam(r, "storeID"), chi.URLParam(r, "categoryID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toCategoryResponse(category))
}

func (h *CatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	category, err := h.catalog.CreateCategory(ctx, identity.UID, domain.Category{
		StoreID:     chi.URLParam(r, "storeID"),
		Name:        req.Name,
		BillboardID: req.BillboardID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toCategoryResponse(category))
}

func (h *CatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	category, err := h.catalog.UpdateCategory(ctx, identity.UID, domain.Category{
		ID:          chi.URLParam(r, "categoryID"),
		StoreID:     chi.URLParam(r, "storeID"),
		Name:        req.Name,
		BillboardID: req.BillboardID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toCategoryResponse(category))
}

func (h *CatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(ctx, identity.UID, chi.URLParam(r, "storeID"), chi.URLParam(r, "categoryID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sizes and colors ------------------------------------------------------------

type attributeRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type attributeResponse struct {
	ID        string `json:"id"`
	StoreID   string `json:"storeId"`
	Name      string `json:"name"`
	Value     string `json:"value"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (h *CatalogHandlers) listSizes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sizes, err := h.catalog.ListSizes(ctx, chi.URLParam(r, "storeID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]attributeResponse, 0, len(sizes))
	for _, size := range sizes {
		payload = append(payload, attributeResponse{
			ID:        size.ID,
			StoreID:   size.StoreID,
			Name:      size.Name,
			Value:     size.Value,
			CreatedAt: formatTime(size.CreatedAt),
			UpdatedAt: formatTime(size.UpdatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	size, err := h.catalog.GetSize(ctx, chi.URLParam(r, "storeID"), chi.URLParam(r, "sizeID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, attributeResponse{
		ID:        size.ID,
		StoreID:   size.StoreID,
		Name:      size.Name,
		Value:     size.Value,
		CreatedAt: formatTime(size.CreatedAt),
		UpdatedAt: formatTime(size.UpdatedAt),
	})
}

func (h *CatalogHandlers) createSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req attributeRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	size, err := h.catalog.CreateSize(ctx, identity.UID, domain.Size{
		StoreID: chi.URLParam(r, "storeID"),
		Name:    req.Name,
		Value:   req.Value,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, attributeResponse{
		ID:        size.ID,
		StoreID:   size.StoreID,
		Name:      size.Name,
		Value:     size.Value,
		CreatedAt: formatTime(size.CreatedAt),
		UpdatedAt: formatTime(size.UpdatedAt),
	})
}

func (h *CatalogHandlers) updateSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req attributeRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	size, err := h.catalog.UpdateSize(ctx, identity.UID, domain.Size{
		ID:      chi.URLParam(r, "sizeID"),
		StoreID: chi.URLParam(r, "storeID"),
		Name:    req.Name,
		Value:   req.Value,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, attributeResponse{
		ID:        size.ID,
		StoreID:   size.StoreID,
		Name:      size.Name,
		Value:     size.Value,
		CreatedAt: formatTime(size.CreatedAt),
		UpdatedAt: formatTime(size.UpdatedAt),
	})
}

func (h *CatalogHandlers) deleteSize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteSize(ctx, identity.UID, chi.URLParam(r, "storeID"), chi.URLParam(r, "sizeID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandlers) listColors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	colors, err := h.catalog.ListColors(ctx, chi.URLParam(r, "storeID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	payload := make([]attributeResponse, 0, len(colors))
	for _, color := range colors {
		payload = append(payload, attributeResponse{
			ID:        color.ID,
			StoreID:   color.StoreID,
			Name:      color.Name,
			Value:     color.Value,
			CreatedAt: formatTime(color.CreatedAt),
			UpdatedAt: formatTime(color.UpdatedAt),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) getColor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	color, err := h.catalog.GetColor(ctx, chi.URLParam(r, "storeID"), chi.URLParam(r, "colorID"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, attributeResponse{
		ID:        color.ID,
		StoreID:   color.StoreID,
		Name:      color.Name,
		Value:     color.Value,
		CreatedAt: formatTime(color.CreatedAt),
		UpdatedAt: formatTime(color.UpdatedAt),
	})
}

func (h *CatalogHandlers) createColor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req attributeRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	color, err := h.catalog.CreateColor(ctx, identity.UID, domain.Color{
		StoreID: chi.URLParam(r, "storeID"),
		Name:    req.Name,
		Value:   req.Value,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, attributeResponse{
		ID:        color.ID,
		StoreID:   color.StoreID,
		Name:      color.Name,
		Value:     color.Value,
		CreatedAt: formatTime(color.CreatedAt),
		UpdatedAt: formatTime(color.UpdatedAt),
	})
}

func (h *CatalogHandlers) updateColor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req attributeRequest
	if err := decodeBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	color, err := h.catalog.UpdateColor(ctx, identity.UID, domain.Color{
		ID:      chi.URLParam(r, "colorID"),
		StoreID: chi.URLParam(r, "storeID"),
		Name:    req.Name,
		Value:   req.Value,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, attributeResponse{
		ID:        color.ID,
		StoreID:   color.StoreID,
		Name:      color.Name,
		Value:     color.Value,
		CreatedAt: formatTime(color.CreatedAt),
		UpdatedAt: formatTime(color.UpdatedAt),
	})
}

func (h *CatalogHandlers) deleteColor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteColor(ctx, identity.UID, chi.URLParam(r, "storeID"), chi.URLParam(r, "colorID")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
