package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/platform/auth"
	"github.com/atelier-market/api/internal/platform/httpx"
	"github.com/atelier-market/api/internal/services"
)

const maxOrderBodySize = 4 * 1024

// OrderCatalog resolves the catalog detail embedded in order reads. The
// catalog service satisfies it.
type OrderCatalog interface {
	GetProduct(ctx context.Context, storeID, productID string) (domain.Product, error)
	GetColor(ctx context.Context, storeID, colorID string) (domain.Color, error)
	GetSize(ctx context.Context, storeID, sizeID string) (domain.Size, error)
}

// OrderHandlers exposes order endpoints for both the admin dashboard and the
// storefront. Store owners see every order; customers only their own.
type OrderHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	stores  services.StoreService
	catalog OrderCatalog
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, stores services.StoreService, catalog OrderCatalog) *OrderHandlers {
	return &OrderHandlers{
		authn:   authn,
		orders:  orders,
		stores:  stores,
		catalog: catalog,
	}
}

// Routes registers the order endpoints under a store scoped router. The
// storefront operations serve guests identified by a customerId parameter,
// so a session is attached when present but only the admin status update
// demands one.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	storefront := r
	admin := r
	if h.authn != nil {
		storefront = r.With(h.authn.OptionalFirebaseAuth())
		admin = r.With(h.authn.RequireFirebaseAuth())
	}
	storefront.Get("/orders", h.listOrders)
	storefront.Get("/orders/{orderID}", h.getOrder)
	storefront.Post("/orders/{orderID}", h.cancelOrder)
	admin.Patch("/orders/{orderID}", h.updateStatus)
}

type orderItemResponse struct {
	ProductID   string                `json:"productId"`
	ProductName string                `json:"productName"`
	ColorID     string                `json:"colorId,omitempty"`
	SizeID      string                `json:"sizeId,omitempty"`
	Quantity    int64                 `json:"quantity"`
	UnitPrice   int64                 `json:"unitPrice"`
	Product     *orderProductResponse `json:"product,omitempty"`
	Color       *orderVariantResponse `json:"color,omitempty"`
	Size        *orderVariantResponse `json:"size,omitempty"`
}

type orderProductResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      int64    `json:"price"`
	CategoryID string   `json:"categoryId,omitempty"`
	ImageURLs  []string `json:"imageUrls,omitempty"`
}

type orderVariantResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	StoreID       string              `json:"storeId"`
	CustomerID    string              `json:"customerId"`
	Items         []orderItemResponse `json:"items"`
	Name          string              `json:"name"`
	Phone         string              `json:"phone"`
	Address       string              `json:"address"`
	AddressType   string              `json:"addressType,omitempty"`
	OrderMessage  string              `json:"orderMessage,omitempty"`
	ShippingFee   int64               `json:"shippingFee"`
	Total         int64               `json:"total"`
	Status        string              `json:"orderStatus"`
	PaymentMethod string              `json:"paymentMethod"`
	CreatedAt     string              `json:"createdAt"`
	UpdatedAt     string              `json:"updatedAt"`
}

type statusUpdateRequest struct {
	Status string `json:"orderStatus"`
}

// cancelOrderRequest mirrors the storefront payload. The status must be
// CANCELLED; cancellation is the only customer-initiated transition.
type cancelOrderRequest struct {
	Status     string `json:"orderStatus"`
	CustomerID string `json:"customerId"`
}

type statusUpdateResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Order   *orderResponse `json:"order,omitempty"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ColorID:     item.ColorID,
			SizeID:      item.SizeID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return orderResponse{
		ID:            order.ID,
		StoreID:       order.StoreID,
		CustomerID:    order.CustomerID,
		Items:         items,
		Name:          order.Name,
		Phone:         order.Phone,
		Address:       order.Address,
		AddressType:   string(order.AddressType),
		OrderMessage:  order.OrderMessage,
		ShippingFee:   order.ShippingFee,
		Total:         order.Total(),
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
}

// enrichOrder attaches live product, colour and size detail to each line.
// Lookups are best effort: an item whose product was deleted after the sale
// still renders from the order's own snapshot.
func (h *OrderHandlers) enrichOrder(ctx context.Context, resp *orderResponse) {
	if h.catalog == nil {
		return
	}
	for i := range resp.Items {
		item := &resp.Items[i]
		if product, err := h.catalog.GetProduct(ctx, resp.StoreID, item.ProductID); err == nil {
			item.Product = &orderProductResponse{
				ID:         product.ID,
				Name:       product.Name,
				Price:      product.Price,
				CategoryID: product.CategoryID,
				ImageURLs:  product.ImageURLs,
			}
		}
		if item.ColorID != "" {
			if color, err := h.catalog.GetColor(ctx, resp.StoreID, item.ColorID); err == nil {
				item.Color = &orderVariantResponse{ID: color.ID, Name: color.Name, Value: color.Value}
			}
		}
		if item.SizeID != "" {
			if size, err := h.catalog.GetSize(ctx, resp.StoreID, item.SizeID); err == nil {
				item.Size = &orderVariantResponse{ID: size.ID, Name: size.Name, Value: size.Value}
			}
		}
	}
}

// isStoreOwner reports whether the acting user owns the store. Any failure is
// treated as not owning it, so the caller falls back to customer scoping.
func (h *OrderHandlers) isStoreOwner(ctx context.Context, actorID, storeID string) bool {
	if h.stores == nil {
		return false
	}
	_, err := h.stores.GetStore(ctx, actorID, storeID)
	return err == nil
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := chi.URLParam(r, "storeID")

	filter := services.OrderListFilter{
		CustomerID: trimmedQuery(r, "customerId"),
	}
	if raw := trimmedQuery(r, "status"); raw != "" {
		status := domain.OrderStatus(strings.ToUpper(raw))
		if !status.IsValid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a valid order status", http.StatusBadRequest))
			return
		}
		filter.Status = status
	}

	// Signed-in customers can only ever list their own orders; guests must
	// name the customer they are asking about.
	if uid := sessionUID(r); uid != "" {
		if !h.isStoreOwner(ctx, uid, storeID) {
			filter.CustomerID = uid
		}
	} else if filter.CustomerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customerId is required", http.StatusBadRequest))
		return
	}

	orders, err := h.orders.ListOrders(ctx, storeID, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp := toOrderResponse(order)
		h.enrichOrder(ctx, &resp)
		payload = append(payload, resp)
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storeID := chi.URLParam(r, "storeID")

	order, err := h.orders.GetOrder(ctx, storeID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	if uid := sessionUID(r); uid != "" {
		if order.CustomerID != uid && !h.isStoreOwner(ctx, uid, storeID) {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
			return
		}
	} else {
		customerID := trimmedQuery(r, "customerId")
		if customerID == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customerId is required", http.StatusBadRequest))
			return
		}
		if order.CustomerID != customerID {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
			return
		}
	}

	resp := toOrderResponse(order)
	h.enrichOrder(ctx, &resp)
	writeJSONResponse(w, http.StatusOK, resp)
}

// updateStatus is the admin endpoint driving the order through its lifecycle.
// Business rule rejections come back as success=false with HTTP 200 so the
// dashboard can surface the message without treating it as a failure.
func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	storeID := chi.URLParam(r, "storeID")

	if !h.isStoreOwner(ctx, identity.UID, storeID) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "user does not own this store", http.StatusForbidden))
		return
	}

	var req statusUpdateRequest
	if err := decodeBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	result, err := h.orders.UpdateStatus(ctx, storeID, chi.URLParam(r, "orderID"), domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := statusUpdateResponse{
		Success: result.Success,
		Message: result.Message,
	}
	if result.Success {
		order := toOrderResponse(result.Order)
		resp.Order = &order
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req cancelOrderRequest
	if err := decodeBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if domain.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))) != domain.OrderStatusCancelled {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customers may only cancel orders", http.StatusBadRequest))
		return
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if uid := sessionUID(r); uid != "" {
		if customerID != "" && customerID != uid {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
			return
		}
		customerID = uid
	} else if customerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customerId is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.CancelByCustomer(ctx, chi.URLParam(r, "storeID"), chi.URLParam(r, "orderID"), customerID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderResponse(order))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotCancellable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", "order can no longer be cancelled", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_payable", "order is not awaiting payment", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderOutOfStock):
		httpx.WriteError(ctx, w, httpx.NewError("out_of_stock", "product stock is not enough", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
