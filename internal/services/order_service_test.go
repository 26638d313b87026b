package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/repositories"
)

// Shared stubs ----------------------------------------------------------------

type stubNotFoundError struct{}

func (stubNotFoundError) Error() string       { return "document not found" }
func (stubNotFoundError) IsNotFound() bool    { return true }
func (stubNotFoundError) IsConflict() bool    { return false }
func (stubNotFoundError) IsUnavailable() bool { return false }

type stubOrderRepo struct {
	insertFn func(ctx context.Context, order domain.Order) error
	findFn   func(ctx context.Context, orderID string) (domain.Order, error)
	listFn   func(ctx context.Context, storeID string, filter repositories.OrderFilter) ([]domain.Order, error)
	updateFn func(ctx context.Context, order domain.Order) error
	deleteFn func(ctx context.Context, orderID string) error
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, order)
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn == nil {
		return domain.Order{}, stubNotFoundError{}
	}
	return s.findFn(ctx, orderID)
}

func (s *stubOrderRepo) ListByStore(ctx context.Context, storeID string, filter repositories.OrderFilter) ([]domain.Order, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, storeID, filter)
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, order)
}

func (s *stubOrderRepo) Delete(ctx context.Context, orderID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, orderID)
}

type stubProductRepo struct {
	insertFn func(ctx context.Context, product domain.Product) error
	findFn   func(ctx context.Context, productID string) (domain.Product, error)
	listFn   func(ctx context.Context, storeID string, filter repositories.ProductFilter) ([]domain.Product, error)
	updateFn func(ctx context.Context, product domain.Product) error
	deleteFn func(ctx context.Context, productID string) error
	adjustFn func(ctx context.Context, storeID string, adjustments []repositories.StockAdjustment) ([]repositories.StockLevel, error)
	countFn  func(ctx context.Context, storeID string) (int64, error)
}

func (s *stubProductRepo) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, product)
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findFn == nil {
		return domain.Product{}, stubNotFoundError{}
	}
	return s.findFn(ctx, productID)
}

func (s *stubProductRepo) ListByStore(ctx context.Context, storeID string, filter repositories.ProductFilter) ([]domain.Product, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, storeID, filter)
}

func (s *stubProductRepo) Update(ctx context.Context, product domain.Product) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, product)
}

func (s *stubProductRepo) Delete(ctx context.Context, productID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, productID)
}

func (s *stubProductRepo) AdjustStocks(ctx context.Context, storeID string, adjustments []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
	if s.adjustFn == nil {
		levels := make([]repositories.StockLevel, 0, len(adjustments))
		for _, adj := range adjustments {
			levels = append(levels, repositories.StockLevel{ProductID: adj.ProductID, Remaining: 1})
		}
		return levels, nil
	}
	return s.adjustFn(ctx, storeID, adjustments)
}

func (s *stubProductRepo) CountInStock(ctx context.Context, storeID string) (int64, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx, storeID)
}

type stubStoreRepo struct {
	insertFn func(ctx context.Context, store domain.Store) error
	findFn   func(ctx context.Context, storeID string) (domain.Store, error)
	listFn   func(ctx context.Context, ownerID string) ([]domain.Store, error)
	updateFn func(ctx context.Context, store domain.Store) error
	deleteFn func(ctx context.Context, storeID string) error
}

func (s *stubStoreRepo) Insert(ctx context.Context, store domain.Store) error {
	if s.insertFn == nil {
		return nil
	}
	return s.insertFn(ctx, store)
}

func (s *stubStoreRepo) FindByID(ctx context.Context, storeID string) (domain.Store, error) {
	if s.findFn == nil {
		return domain.Store{}, stubNotFoundError{}
	}
	return s.findFn(ctx, storeID)
}

func (s *stubStoreRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Store, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, ownerID)
}

func (s *stubStoreRepo) Update(ctx context.Context, store domain.Store) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, store)
}

func (s *stubStoreRepo) Delete(ctx context.Context, storeID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, storeID)
}

// Fixtures --------------------------------------------------------------------

var testClock = func() time.Time {
	return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
}

func testProducts() map[string]domain.Product {
	return map[string]domain.Product{
		"prod_tote": {
			ID: "prod_tote", StoreID: "st_main", Name: "Linen Tote", Price: 45000, Stock: 5, CategoryID: "cat_bags",
		},
		"prod_scarf": {
			ID: "prod_scarf", StoreID: "st_main", Name: "Wool Scarf", Price: 30000, Stock: 2, CategoryID: "cat_accessories",
		},
	}
}

func productLookup(products map[string]domain.Product) func(context.Context, string) (domain.Product, error) {
	return func(_ context.Context, productID string) (domain.Product, error) {
		product, ok := products[productID]
		if !ok {
			return domain.Product{}, stubNotFoundError{}
		}
		return product, nil
	}
}

func newOrderServiceForTest(t *testing.T, orders *stubOrderRepo, products *stubProductRepo) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:      orders,
		Products:    products,
		Clock:       testClock,
		IDGenerator: func() string { return "01TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func placeCommand(method domain.PaymentMethod) PlaceOrderCommand {
	return PlaceOrderCommand{
		StoreID:       "st_main",
		CustomerID:    "cust-1",
		Items:         []OrderItemInput{{ProductID: "prod_tote", Quantity: 2}},
		Name:          "An Tran",
		Phone:         "0900000000",
		Address:       "12 Pasteur, District 1",
		AddressType:   domain.AddressTypeHome,
		ShippingFee:   15000,
		PaymentMethod: method,
	}
}

// Tests -----------------------------------------------------------------------

func TestPlaceOrderCODStartsPending(t *testing.T) {
	var inserted domain.Order
	var adjusted []repositories.StockAdjustment

	orders := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}
	products := &stubProductRepo{
		findFn: productLookup(testProducts()),
		adjustFn: func(_ context.Context, storeID string, adj []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			adjusted = adj
			return []repositories.StockLevel{{ProductID: "prod_tote", Remaining: 3}}, nil
		},
	}

	svc := newOrderServiceForTest(t, orders, products)

	order, err := svc.PlaceOrder(context.Background(), placeCommand(domain.PaymentMethodCOD))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if order.ID != "ord_01TESTULID" {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if inserted.ID != order.ID {
		t.Fatalf("order was not inserted")
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.ProductName != "Linen Tote" || item.UnitPrice != 45000 {
		t.Fatalf("expected price and name snapshot, got %+v", item)
	}
	if order.Total() != 2*45000+15000 {
		t.Fatalf("unexpected total %d", order.Total())
	}
	if len(adjusted) != 1 || adjusted[0].ProductID != "prod_tote" || adjusted[0].Delta != -2 {
		t.Fatalf("unexpected adjustments %+v", adjusted)
	}
}

func TestPlaceOrderOnlineStartsNotPaid(t *testing.T) {
	products := &stubProductRepo{findFn: productLookup(testProducts())}
	svc := newOrderServiceForTest(t, &stubOrderRepo{}, products)

	order, err := svc.PlaceOrder(context.Background(), placeCommand(domain.PaymentMethodOnline))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != domain.OrderStatusNotPaid {
		t.Fatalf("expected NOTPAID, got %s", order.Status)
	}
}

func TestPlaceOrderAllowsGuests(t *testing.T) {
	var inserted domain.Order
	orders := &stubOrderRepo{
		insertFn: func(_ context.Context, order domain.Order) error {
			inserted = order
			return nil
		},
	}
	products := &stubProductRepo{findFn: productLookup(testProducts())}
	svc := newOrderServiceForTest(t, orders, products)

	cmd := placeCommand(domain.PaymentMethodCOD)
	cmd.CustomerID = ""

	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.CustomerID != "" || inserted.CustomerID != "" {
		t.Fatalf("guest order must carry no customer reference, got %q", inserted.CustomerID)
	}
}

func TestPlaceOrderMergesDuplicateItems(t *testing.T) {
	var adjusted []repositories.StockAdjustment
	products := &stubProductRepo{
		findFn: productLookup(testProducts()),
		adjustFn: func(_ context.Context, _ string, adj []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			adjusted = adj
			return nil, nil
		},
	}
	svc := newOrderServiceForTest(t, &stubOrderRepo{}, products)

	cmd := placeCommand(domain.PaymentMethodCOD)
	cmd.Items = []OrderItemInput{
		{ProductID: "prod_tote", SizeID: "sz_m", Quantity: 1},
		{ProductID: "prod_tote", SizeID: "sz_l", Quantity: 2},
	}

	if _, err := svc.PlaceOrder(context.Background(), cmd); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if len(adjusted) != 1 || adjusted[0].Delta != -3 {
		t.Fatalf("expected merged delta -3, got %+v", adjusted)
	}
}

func TestPlaceOrderRollsBackOnInsufficientStock(t *testing.T) {
	var deletedID string
	orders := &stubOrderRepo{
		deleteFn: func(_ context.Context, orderID string) error {
			deletedID = orderID
			return nil
		},
	}
	products := &stubProductRepo{
		findFn: productLookup(testProducts()),
		adjustFn: func(_ context.Context, _ string, _ []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			return nil, repositories.NewStockError(repositories.StockErrorInsufficient, "prod_tote", "insufficient stock for product prod_tote", nil)
		},
	}
	svc := newOrderServiceForTest(t, orders, products)

	_, err := svc.PlaceOrder(context.Background(), placeCommand(domain.PaymentMethodCOD))
	if !errors.Is(err, ErrOrderOutOfStock) {
		t.Fatalf("expected ErrOrderOutOfStock, got %v", err)
	}
	if deletedID != "ord_01TESTULID" {
		t.Fatalf("expected rollback delete of the inserted order, got %q", deletedID)
	}
}

func TestPlaceOrderRejectsUnknownProduct(t *testing.T) {
	products := &stubProductRepo{findFn: productLookup(testProducts())}
	svc := newOrderServiceForTest(t, &stubOrderRepo{}, products)

	cmd := placeCommand(domain.PaymentMethodCOD)
	cmd.Items = []OrderItemInput{{ProductID: "prod_ghost", Quantity: 1}}

	if _, err := svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrOrderProductNotFound) {
		t.Fatalf("expected ErrOrderProductNotFound, got %v", err)
	}
}

func TestPlaceOrderValidatesInput(t *testing.T) {
	svc := newOrderServiceForTest(t, &stubOrderRepo{}, &stubProductRepo{})

	cases := []struct {
		name   string
		mutate func(*PlaceOrderCommand)
	}{
		{"missing items", func(cmd *PlaceOrderCommand) { cmd.Items = nil }},
		{"zero quantity", func(cmd *PlaceOrderCommand) { cmd.Items[0].Quantity = 0 }},
		{"missing phone", func(cmd *PlaceOrderCommand) { cmd.Phone = " " }},
		{"negative shipping", func(cmd *PlaceOrderCommand) { cmd.ShippingFee = -1 }},
		{"bad method", func(cmd *PlaceOrderCommand) { cmd.PaymentMethod = "CHEQUE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := placeCommand(domain.PaymentMethodCOD)
			tc.mutate(&cmd)
			if _, err := svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func existingOrder(method domain.PaymentMethod, status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:         "ord_existing",
		StoreID:    "st_main",
		CustomerID: "cust-1",
		Items: []domain.OrderItem{
			{ProductID: "prod_tote", ProductName: "Linen Tote", Quantity: 2, UnitPrice: 45000},
		},
		Name:          "An Tran",
		Phone:         "0900000000",
		Address:       "12 Pasteur, District 1",
		ShippingFee:   15000,
		Status:        status,
		PaymentMethod: method,
		CreatedAt:     testClock().Add(-time.Hour),
		UpdatedAt:     testClock().Add(-time.Hour),
	}
}

func TestCancelByCustomerCODRequiresPending(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusPending)
	var restored []repositories.StockAdjustment
	var updated domain.Order

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		updateFn: func(_ context.Context, o domain.Order) error {
			updated = o
			return nil
		},
	}
	products := &stubProductRepo{
		adjustFn: func(_ context.Context, _ string, adj []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			restored = adj
			return nil, nil
		},
	}
	svc := newOrderServiceForTest(t, orders, products)

	cancelled, err := svc.CancelByCustomer(context.Background(), "st_main", "ord_existing", "cust-1")
	if err != nil {
		t.Fatalf("CancelByCustomer: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Fatalf("cancellation was not persisted")
	}
	if len(restored) != 1 || restored[0].Delta != 2 {
		t.Fatalf("expected stock restore of +2, got %+v", restored)
	}
}

func TestCancelByCustomerRejectsWrongStatus(t *testing.T) {
	cases := []struct {
		name   string
		method domain.PaymentMethod
		status domain.OrderStatus
	}{
		{"cod confirmed", domain.PaymentMethodCOD, domain.OrderStatusConfirmed},
		{"online pending", domain.PaymentMethodOnline, domain.OrderStatusPending},
		{"already cancelled", domain.PaymentMethodCOD, domain.OrderStatusCancelled},
		{"delivered", domain.PaymentMethodCOD, domain.OrderStatusDelivered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := existingOrder(tc.method, tc.status)
			orders := &stubOrderRepo{
				findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
			}
			svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

			_, err := svc.CancelByCustomer(context.Background(), "st_main", "ord_existing", "cust-1")
			if !errors.Is(err, ErrOrderNotCancellable) {
				t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
			}
		})
	}
}

func TestCancelByCustomerOnlineRequiresNotPaid(t *testing.T) {
	order := existingOrder(domain.PaymentMethodOnline, domain.OrderStatusNotPaid)
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	cancelled, err := svc.CancelByCustomer(context.Background(), "st_main", "ord_existing", "cust-1")
	if err != nil {
		t.Fatalf("CancelByCustomer: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
}

func TestCancelByCustomerRejectsForeignCustomer(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusPending)
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	if _, err := svc.CancelByCustomer(context.Background(), "st_main", "ord_existing", "cust-2"); !errors.Is(err, ErrOrderAccessDenied) {
		t.Fatalf("expected ErrOrderAccessDenied, got %v", err)
	}
}

func TestUpdateStatusReinstateChecksStock(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusCancelled)
	updateCalled := false

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		updateFn: func(_ context.Context, _ domain.Order) error {
			updateCalled = true
			return nil
		},
	}
	products := &stubProductRepo{
		adjustFn: func(_ context.Context, _ string, _ []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			return nil, repositories.NewStockError(repositories.StockErrorInsufficient, "prod_tote", "", nil)
		},
	}
	svc := newOrderServiceForTest(t, orders, products)

	result, err := svc.UpdateStatus(context.Background(), "st_main", "ord_existing", domain.OrderStatusPending)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if result.Success {
		t.Fatal("expected business-rule rejection")
	}
	if result.Message != "Product stock is not enough" {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if updateCalled {
		t.Fatal("status must not change when reinstatement fails")
	}
}

func TestUpdateStatusReinstateMissingProduct(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusCancelled)
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	products := &stubProductRepo{
		adjustFn: func(_ context.Context, _ string, _ []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			return nil, repositories.NewStockError(repositories.StockErrorProductNotFound, "prod_tote", "", nil)
		},
	}
	svc := newOrderServiceForTest(t, orders, products)

	result, err := svc.UpdateStatus(context.Background(), "st_main", "ord_existing", domain.OrderStatusConfirmed)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if result.Success || result.Message != "Product not found" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestUpdateStatusReinstateDecrementsStock(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusCancelled)
	var adjusted []repositories.StockAdjustment
	var updated domain.Order

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		updateFn: func(_ context.Context, o domain.Order) error {
			updated = o
			return nil
		},
	}
	products := &stubProductRepo{
		adjustFn: func(_ context.Context, _ string, adj []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			adjusted = adj
			return nil, nil
		},
	}
	svc := newOrderServiceForTest(t, orders, products)

	result, err := svc.UpdateStatus(context.Background(), "st_main", "ord_existing", domain.OrderStatusPending)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !result.Success || result.Message != "Order status updated" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(adjusted) != 1 || adjusted[0].Delta != -2 {
		t.Fatalf("expected reinstatement to reserve stock, got %+v", adjusted)
	}
	if updated.Status != domain.OrderStatusPending {
		t.Fatalf("expected persisted PENDING, got %s", updated.Status)
	}
}

func TestUpdateStatusAdminCancelRestoresStock(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusConfirmed)
	var adjusted []repositories.StockAdjustment

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	products := &stubProductRepo{
		adjustFn: func(_ context.Context, _ string, adj []repositories.StockAdjustment) ([]repositories.StockLevel, error) {
			adjusted = adj
			return nil, nil
		},
	}
	svc := newOrderServiceForTest(t, orders, products)

	result, err := svc.UpdateStatus(context.Background(), "st_main", "ord_existing", domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(adjusted) != 1 || adjusted[0].Delta != 2 {
		t.Fatalf("expected stock restore of +2, got %+v", adjusted)
	}
}

func TestUpdateStatusNotPaidForcesOnlineMethod(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusPending)
	var updated domain.Order

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		updateFn: func(_ context.Context, o domain.Order) error {
			updated = o
			return nil
		},
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	result, err := svc.UpdateStatus(context.Background(), "st_main", "ord_existing", domain.OrderStatusNotPaid)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if updated.PaymentMethod != domain.PaymentMethodOnline {
		t.Fatalf("expected payment method forced to ONLINE, got %s", updated.PaymentMethod)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := newOrderServiceForTest(t, &stubOrderRepo{}, &stubProductRepo{})

	if _, err := svc.UpdateStatus(context.Background(), "st_main", "ord_existing", "LOST"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestMarkPaidTransitionsToPending(t *testing.T) {
	order := existingOrder(domain.PaymentMethodOnline, domain.OrderStatusNotPaid)
	var updated domain.Order

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		updateFn: func(_ context.Context, o domain.Order) error {
			updated = o
			return nil
		},
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	paid, err := svc.MarkPaid(context.Background(), "st_main", "ord_existing")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != domain.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", paid.Status)
	}
	if updated.Status != domain.OrderStatusPending {
		t.Fatal("payment confirmation was not persisted")
	}
}

func TestMarkPaidRejectsDuplicateConfirmation(t *testing.T) {
	order := existingOrder(domain.PaymentMethodOnline, domain.OrderStatusPending)
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	if _, err := svc.MarkPaid(context.Background(), "st_main", "ord_existing"); !errors.Is(err, ErrOrderNotPayable) {
		t.Fatalf("expected ErrOrderNotPayable, got %v", err)
	}
}

func TestMarkPaidRejectsCODOrders(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusPending)
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	if _, err := svc.MarkPaid(context.Background(), "st_main", "ord_existing"); !errors.Is(err, ErrOrderNotPayable) {
		t.Fatalf("expected ErrOrderNotPayable, got %v", err)
	}
}

func TestConvertToCODTransitionsToPending(t *testing.T) {
	order := existingOrder(domain.PaymentMethodOnline, domain.OrderStatusNotPaid)
	var updated domain.Order

	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		updateFn: func(_ context.Context, o domain.Order) error {
			updated = o
			return nil
		},
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	converted, err := svc.ConvertToCOD(context.Background(), "st_main", "ord_existing")
	if err != nil {
		t.Fatalf("ConvertToCOD: %v", err)
	}
	if converted.Status != domain.OrderStatusPending || converted.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatalf("expected PENDING/COD, got %s/%s", converted.Status, converted.PaymentMethod)
	}
	if updated.PaymentMethod != domain.PaymentMethodCOD {
		t.Fatal("method switch was not persisted")
	}
}

func TestConvertToCODRejectsNonPayableOrders(t *testing.T) {
	cases := []struct {
		name   string
		method domain.PaymentMethod
		status domain.OrderStatus
	}{
		{"already pending", domain.PaymentMethodOnline, domain.OrderStatusPending},
		{"already cod", domain.PaymentMethodCOD, domain.OrderStatusPending},
		{"delivered", domain.PaymentMethodOnline, domain.OrderStatusDelivered},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := existingOrder(tc.method, tc.status)
			orders := &stubOrderRepo{
				findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
			}
			svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

			if _, err := svc.ConvertToCOD(context.Background(), "st_main", "ord_existing"); !errors.Is(err, ErrOrderNotPayable) {
				t.Fatalf("expected ErrOrderNotPayable, got %v", err)
			}
		})
	}
}

func TestGetOrderScopesToStore(t *testing.T) {
	order := existingOrder(domain.PaymentMethodCOD, domain.OrderStatusPending)
	orders := &stubOrderRepo{
		findFn: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	svc := newOrderServiceForTest(t, orders, &stubProductRepo{})

	if _, err := svc.GetOrder(context.Background(), "st_other", "ord_existing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign store, got %v", err)
	}
}
