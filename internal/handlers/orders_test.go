package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/services"
)

type stubOrderService struct {
	listFn   func(ctx context.Context, storeID string, filter services.OrderListFilter) ([]domain.Order, error)
	getFn    func(ctx context.Context, storeID, orderID string) (domain.Order, error)
	cancelFn func(ctx context.Context, storeID, orderID, customerID string) (domain.Order, error)
	updateFn func(ctx context.Context, storeID, orderID string, target domain.OrderStatus) (services.StatusUpdateResult, error)
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (domain.Order, error) {
	return domain.Order{}, services.ErrOrderInvalidInput
}

func (s *stubOrderService) GetOrder(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	if s.getFn == nil {
		return domain.Order{}, services.ErrOrderNotFound
	}
	return s.getFn(ctx, storeID, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, storeID string, filter services.OrderListFilter) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, storeID, filter)
}

func (s *stubOrderService) CancelByCustomer(ctx context.Context, storeID, orderID, customerID string) (domain.Order, error) {
	if s.cancelFn == nil {
		return domain.Order{}, services.ErrOrderNotFound
	}
	return s.cancelFn(ctx, storeID, orderID, customerID)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, storeID, orderID string, target domain.OrderStatus) (services.StatusUpdateResult, error) {
	if s.updateFn == nil {
		return services.StatusUpdateResult{}, services.ErrOrderNotFound
	}
	return s.updateFn(ctx, storeID, orderID, target)
}

func (s *stubOrderService) MarkPaid(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	return domain.Order{}, services.ErrOrderNotPayable
}

func (s *stubOrderService) ConvertToCOD(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	return domain.Order{}, services.ErrOrderNotPayable
}

// stubStoreService treats ownerUID as the owner of every store.
type stubStoreService struct {
	ownerUID string
}

func (s *stubStoreService) CreateStore(ctx context.Context, actorID string, input services.StoreInput) (domain.Store, error) {
	return domain.Store{}, services.ErrStoreInvalidInput
}

func (s *stubStoreService) GetStore(ctx context.Context, actorID, storeID string) (domain.Store, error) {
	if actorID != s.ownerUID {
		return domain.Store{}, services.ErrNotStoreOwner
	}
	return domain.Store{ID: storeID, OwnerID: actorID}, nil
}

func (s *stubStoreService) ListStores(ctx context.Context, actorID string) ([]domain.Store, error) {
	return nil, nil
}

func (s *stubStoreService) UpdateStore(ctx context.Context, actorID, storeID string, input services.StoreInput) (domain.Store, error) {
	return domain.Store{}, services.ErrStoreInvalidInput
}

func (s *stubStoreService) DeleteStore(ctx context.Context, actorID, storeID string) error {
	return services.ErrStoreInvalidInput
}

func newOrderRouter(orders services.OrderService, stores services.StoreService) chi.Router {
	handlers := NewOrderHandlers(nil, orders, stores, nil)
	return NewRouter(WithOrderRoutes(handlers.Routes))
}

// stubOrderCatalog serves catalog lookups from fixed maps; anything absent
// reports not found.
type stubOrderCatalog struct {
	products map[string]domain.Product
	colors   map[string]domain.Color
	sizes    map[string]domain.Size
}

func (s *stubOrderCatalog) GetProduct(ctx context.Context, storeID, productID string) (domain.Product, error) {
	product, ok := s.products[productID]
	if !ok {
		return domain.Product{}, services.ErrCatalogEntityNotFound
	}
	return product, nil
}

func (s *stubOrderCatalog) GetColor(ctx context.Context, storeID, colorID string) (domain.Color, error) {
	color, ok := s.colors[colorID]
	if !ok {
		return domain.Color{}, services.ErrCatalogEntityNotFound
	}
	return color, nil
}

func (s *stubOrderCatalog) GetSize(ctx context.Context, storeID, sizeID string) (domain.Size, error) {
	size, ok := s.sizes[sizeID]
	if !ok {
		return domain.Size{}, services.ErrCatalogEntityNotFound
	}
	return size, nil
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:         "ord_existing",
		StoreID:    "st_main",
		CustomerID: "cust-1",
		Items: []domain.OrderItem{
			{ProductID: "prod_tote", ProductName: "Linen Tote", Quantity: 2, UnitPrice: 45000},
		},
		ShippingFee:   15000,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCOD,
	}
}

func TestListOrdersScopesCustomersToTheirOwnOrders(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, _ string, filter services.OrderListFilter) ([]domain.Order, error) {
			captured = filter
			return []domain.Order{sampleOrder()}, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/st_main/orders?customerId=cust-2", nil), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CustomerID != "cust-1" {
		t.Fatalf("expected customer scoping to the session user, got %q", captured.CustomerID)
	}
}

func TestListOrdersOwnerSeesEverything(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, _ string, filter services.OrderListFilter) ([]domain.Order, error) {
			captured = filter
			return nil, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/st_main/orders?status=delivered", nil), "owner-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CustomerID != "" {
		t.Fatalf("owner listing must not be customer scoped, got %q", captured.CustomerID)
	}
	if captured.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED filter, got %q", captured.Status)
	}
}

func TestUpdateStatusRequiresOwnership(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CONFIRMED"}`
	req := authenticated(httptest.NewRequest(http.MethodPatch, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestUpdateStatusBusinessRuleRejectionIs200(t *testing.T) {
	orders := &stubOrderService{
		updateFn: func(_ context.Context, _, _ string, _ domain.OrderStatus) (services.StatusUpdateResult, error) {
			return services.StatusUpdateResult{Success: false, Message: "Product stock is not enough"}, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "PENDING"}`
	req := authenticated(httptest.NewRequest(http.MethodPatch, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "owner-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("business rule rejection must stay HTTP 200, got %d", rr.Code)
	}

	var resp statusUpdateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success=false")
	}
	if resp.Message != "Product stock is not enough" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Order != nil {
		t.Fatal("rejected updates must not echo an order")
	}
}

func TestUpdateStatusSuccessIncludesOrder(t *testing.T) {
	orders := &stubOrderService{
		updateFn: func(_ context.Context, _, _ string, target domain.OrderStatus) (services.StatusUpdateResult, error) {
			order := sampleOrder()
			order.Status = target
			return services.StatusUpdateResult{Success: true, Message: "Order status updated", Order: order}, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "confirmed"}`
	req := authenticated(httptest.NewRequest(http.MethodPatch, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "owner-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp statusUpdateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if !resp.Success || resp.Order == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Order.Status != "CONFIRMED" {
		t.Fatalf("expected lowercase status to be normalised, got %q", resp.Order.Status)
	}
	if resp.Order.Total != 2*45000+15000 {
		t.Fatalf("unexpected total %d", resp.Order.Total)
	}
}

func TestCancelOrderUsesSessionCustomer(t *testing.T) {
	var capturedCustomer string
	orders := &stubOrderService{
		cancelFn: func(_ context.Context, _, _ string, customerID string) (domain.Order, error) {
			capturedCustomer = customerID
			order := sampleOrder()
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CANCELLED", "customerId": "cust-1"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedCustomer != "cust-1" {
		t.Fatalf("expected cancellation for the session customer, got %q", capturedCustomer)
	}
}

func TestCancelOrderNotCancellable(t *testing.T) {
	orders := &stubOrderService{
		cancelFn: func(_ context.Context, _, _, _ string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotCancellable
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CANCELLED"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if resp["error"] != "order_not_cancellable" {
		t.Fatalf("expected order_not_cancellable error, got %v", resp["error"])
	}
}

func TestCancelOrderRejectsOtherStatuses(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CONFIRMED"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestCancelOrderRejectsMismatchedCustomer(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CANCELLED", "customerId": "cust-2"}`
	req := authenticated(httptest.NewRequest(http.MethodPost, "/api/st_main/orders/ord_existing", strings.NewReader(body)), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestListOrdersGuestRequiresCustomerQuery(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubStoreService{ownerUID: "owner-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/st_main/orders", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestListOrdersGuestScopedByQuery(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFn: func(_ context.Context, _ string, filter services.OrderListFilter) ([]domain.Order, error) {
			captured = filter
			return []domain.Order{sampleOrder()}, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/st_main/orders?customerId=cust-1", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.CustomerID != "cust-1" {
		t.Fatalf("expected guest listing scoped to cust-1, got %q", captured.CustomerID)
	}
}

func TestGetOrderGuestChecksCustomerQuery(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(_ context.Context, _, _ string) (domain.Order, error) {
			return sampleOrder(), nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/st_main/orders/ord_existing?customerId=cust-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/st_main/orders/ord_existing?customerId=cust-2", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 for a foreign customer, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/st_main/orders/ord_existing", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without customerId, got %d", rr.Code)
	}
}

func TestCancelOrderGuestUsesBodyCustomer(t *testing.T) {
	var capturedCustomer string
	orders := &stubOrderService{
		cancelFn: func(_ context.Context, _, _ string, customerID string) (domain.Order, error) {
			capturedCustomer = customerID
			order := sampleOrder()
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}
	router := newOrderRouter(orders, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CANCELLED", "customerId": "cust-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/st_main/orders/ord_existing", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if capturedCustomer != "cust-1" {
		t.Fatalf("expected cancellation for the payload customer, got %q", capturedCustomer)
	}
}

func TestCancelOrderGuestRequiresCustomer(t *testing.T) {
	router := newOrderRouter(&stubOrderService{}, &stubStoreService{ownerUID: "owner-1"})

	body := `{"orderStatus": "CANCELLED"}`
	req := httptest.NewRequest(http.MethodPost, "/api/st_main/orders/ord_existing", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestGetOrderEmbedsCatalogDetail(t *testing.T) {
	order := sampleOrder()
	order.Items[0].ColorID = "col_navy"
	order.Items[0].SizeID = "sz_m"
	order.Items = append(order.Items, domain.OrderItem{
		ProductID: "prod_gone", ProductName: "Retired Hat", Quantity: 1, UnitPrice: 20000,
	})

	orders := &stubOrderService{
		getFn: func(_ context.Context, _, _ string) (domain.Order, error) {
			return order, nil
		},
	}
	catalog := &stubOrderCatalog{
		products: map[string]domain.Product{
			"prod_tote": {
				ID: "prod_tote", StoreID: "st_main", Name: "Linen Tote", Price: 47000,
				CategoryID: "cat_bags", ImageURLs: []string{"https://cdn.example.com/tote.jpg"},
			},
		},
		colors: map[string]domain.Color{
			"col_navy": {ID: "col_navy", Name: "Navy", Value: "#001f3f"},
		},
		sizes: map[string]domain.Size{
			"sz_m": {ID: "sz_m", Name: "Medium", Value: "M"},
		},
	}
	handlers := NewOrderHandlers(nil, orders, &stubStoreService{ownerUID: "owner-1"}, catalog)
	router := NewRouter(WithOrderRoutes(handlers.Routes))

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/st_main/orders/ord_existing", nil), "cust-1")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}

	first := resp.Items[0]
	if first.Product == nil || first.Product.Name != "Linen Tote" {
		t.Fatalf("expected embedded product detail, got %+v", first.Product)
	}
	if len(first.Product.ImageURLs) != 1 || first.Product.ImageURLs[0] != "https://cdn.example.com/tote.jpg" {
		t.Fatalf("expected product images, got %+v", first.Product.ImageURLs)
	}
	if first.Color == nil || first.Color.Name != "Navy" || first.Color.Value != "#001f3f" {
		t.Fatalf("expected embedded color detail, got %+v", first.Color)
	}
	if first.Size == nil || first.Size.Value != "M" {
		t.Fatalf("expected embedded size detail, got %+v", first.Size)
	}

	// The retired product is not in the catalog; the snapshot still renders.
	second := resp.Items[1]
	if second.Product != nil {
		t.Fatalf("missing product must not embed detail, got %+v", second.Product)
	}
	if second.ProductName != "Retired Hat" || second.UnitPrice != 20000 {
		t.Fatalf("snapshot fields lost: %+v", second)
	}
}
