package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/platform/auth"
	"github.com/atelier-market/api/internal/platform/httpx"
	"github.com/atelier-market/api/internal/services"
)

const maxStoreBodySize = 8 * 1024

// StoreHandlers exposes the admin store CRUD endpoints.
type StoreHandlers struct {
	authn  *auth.Authenticator
	stores services.StoreService
}

// NewStoreHandlers constructs store handlers guarded by Firebase authentication.
func NewStoreHandlers(authn *auth.Authenticator, stores services.StoreService) *StoreHandlers {
	return &StoreHandlers{
		authn:  authn,
		stores: stores,
	}
}

// Routes registers the /stores endpoints.
func (h *StoreHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createStore)
	r.Get("/", h.listStores)
	r.Get("/{storeID}", h.getStore)
	r.Patch("/{storeID}", h.updateStore)
	r.Delete("/{storeID}", h.deleteStore)
}

type storeRequest struct {
	Name        string `json:"name"`
	TmnCode     string `json:"tmnCode"`
	HashSecret  string `json:"hashSecret"`
	FrontendURL string `json:"frontendUrl"`
}

type storeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TmnCode     string `json:"tmnCode,omitempty"`
	FrontendURL string `json:"frontendUrl,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toStoreResponse(store domain.Store) storeResponse {
	return storeResponse{
		ID:          store.ID,
		Name:        store.Name,
		TmnCode:     store.TmnCode,
		FrontendURL: store.FrontendURL,
		CreatedAt:   formatTime(store.CreatedAt),
		UpdatedAt:   formatTime(store.UpdatedAt),
	}
}

func (h *StoreHandlers) createStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req storeRequest
	if err := decodeBody(r, maxStoreBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	store, err := h.stores.CreateStore(ctx, identity.UID, services.StoreInput{
		Name:        req.Name,
		TmnCode:     req.TmnCode,
		HashSecret:  req.HashSecret,
		FrontendURL: req.FrontendURL,
	})
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toStoreResponse(store))
}

func (h *StoreHandlers) listStores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stores, err := h.stores.ListStores(ctx, identity.UID)
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}

	payload := make([]storeResponse, 0, len(stores))
	for _, store := range stores {
		payload = append(payload, toStoreResponse(store))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *StoreHandlers) getStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	store, err := h.stores.GetStore(ctx, identity.UID, chi.URLParam(r, "storeID"))
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toStoreResponse(store))
}

func (h *StoreHandlers) updateStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req storeRequest
	if err := decodeBody(r, maxStoreBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	store, err := h.stores.UpdateStore(ctx, identity.UID, chi.URLParam(r, "storeID"), services.StoreInput{
		Name:        req.Name,
		TmnCode:     req.TmnCode,
		HashSecret:  req.HashSecret,
		FrontendURL: req.FrontendURL,
	})
	if err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toStoreResponse(store))
}

func (h *StoreHandlers) deleteStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.stores.DeleteStore(ctx, identity.UID, chi.URLParam(r, "storeID")); err != nil {
		writeStoreError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrStoreInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotStoreOwner):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "user does not own this store", http.StatusForbidden))
	case errors.Is(err, services.ErrStoreNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("store_not_found", "store not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("store_error", "failed to process store request", http.StatusInternalServerError))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
