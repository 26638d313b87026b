package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/api/internal/platform/auth"
	"github.com/atelier-market/api/internal/platform/httpx"
	"github.com/atelier-market/api/internal/services"
)

// OverviewHandlers exposes the dashboard aggregation endpoint.
type OverviewHandlers struct {
	authn   *auth.Authenticator
	metrics services.MetricsService
	stores  services.StoreService
}

// NewOverviewHandlers constructs overview handlers guarded by ownership checks.
func NewOverviewHandlers(authn *auth.Authenticator, metrics services.MetricsService, stores services.StoreService) *OverviewHandlers {
	return &OverviewHandlers{
		authn:   authn,
		metrics: metrics,
		stores:  stores,
	}
}

// Routes registers the overview endpoint under a store scoped router.
func (h *OverviewHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.RequireFirebaseAuth())
	}
	group.Get("/overview", h.getOverview)
}

type overviewResponse struct {
	TotalRevenue    int64     `json:"totalRevenue"`
	SalesCount      int64     `json:"salesCount"`
	ProductsInStock int64     `json:"productsInStock"`
	MonthlyRevenue  [12]int64 `json:"monthlyRevenue"`
}

func (h *OverviewHandlers) getOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	storeID := chi.URLParam(r, "storeID")

	if h.stores != nil {
		if _, err := h.stores.GetStore(ctx, identity.UID, storeID); err != nil {
			switch {
			case errors.Is(err, services.ErrNotStoreOwner):
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "user does not own this store", http.StatusForbidden))
			case errors.Is(err, services.ErrStoreNotFound):
				httpx.WriteError(ctx, w, httpx.NewError("store_not_found", "store not found", http.StatusNotFound))
			default:
				httpx.WriteError(ctx, w, httpx.NewError("overview_error", "failed to load store", http.StatusInternalServerError))
			}
			return
		}
	}

	overview, err := h.metrics.Overview(ctx, storeID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("overview_error", "failed to aggregate store metrics", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, overviewResponse{
		TotalRevenue:    overview.TotalRevenue,
		SalesCount:      overview.SalesCount,
		ProductsInStock: overview.ProductsInStock,
		MonthlyRevenue:  overview.MonthlyRevenue,
	})
}
