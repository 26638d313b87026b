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
	eventOrderPlace    = "order.place"
	eventOrderCancel   = "order.cancel"
	eventOrderStatus   = "order.status"
	eventOrderMarkPaid = "order.markPaid"
	eventOrderToCOD    = "order.convertToCOD"

	// Published event types.
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderStatusChanged = "order.status.changed"
	EventTypeStockAdjusted      = "stock.adjusted"

	statusMessageUpdated           = "Order status updated"
	statusMessageStockInsufficient = "Product stock is not enough"
	statusMessageProductNotFound   = "Product not found"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid arguments.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderNotFound indicates the order does not exist in the store.
	ErrOrderNotFound = errors.New("orders: order not found")
	// ErrOrderProductNotFound indicates a referenced product does not exist.
	ErrOrderProductNotFound = errors.New("orders: product not found")
	// ErrOrderOutOfStock indicates requested quantity exceeds remaining stock.
	ErrOrderOutOfStock = errors.New("orders: product out of stock")
	// ErrOrderAccessDenied indicates the order belongs to a different customer.
	ErrOrderAccessDenied = errors.New("orders: order belongs to another customer")
	// ErrOrderNotCancellable indicates the order status forbids cancellation.
	ErrOrderNotCancellable = errors.New("orders: order cannot be cancelled")
	// ErrOrderNotPayable indicates the order is not awaiting online payment.
	ErrOrderNotPayable = errors.New("orders: order is not awaiting payment")
)

// OrderServiceDeps bundles the collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	OrderEvents OrderEventPublisher
	StockEvents StockEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	products    repositories.ProductRepository
	orderEvents OrderEventPublisher
	stockEvents StockEventPublisher
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
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

	return &orderService{
		orders:      deps.Orders,
		products:    deps.Products,
		orderEvents: deps.OrderEvents,
		stockEvents: deps.StockEvents,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if err := validatePlaceOrder(cmd); err != nil {
		return domain.Order{}, err
	}

	now := s.clock()
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, input := range cmd.Items {
		product, err := s.products.FindByID(ctx, strings.TrimSpace(input.ProductID))
		if err != nil {
			if isRepoNotFound(err) {
				return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderProductNotFound, input.ProductID)
			}
			return domain.Order{}, err
		}
		if product.StoreID != cmd.StoreID {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderProductNotFound, input.ProductID)
		}
		// Name and unit price are snapshotted so later product edits do not
		// rewrite order history or revenue numbers.
		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			ColorID:     strings.TrimSpace(input.ColorID),
			SizeID:      strings.TrimSpace(input.SizeID),
			Quantity:    input.Quantity,
			UnitPrice:   product.Price,
		})
	}

	order := domain.Order{
		ID:            "ord_" + s.newID(),
		StoreID:       cmd.StoreID,
		CustomerID:    cmd.CustomerID,
		Items:         items,
		Name:          strings.TrimSpace(cmd.Name),
		Phone:         strings.TrimSpace(cmd.Phone),
		Address:       strings.TrimSpace(cmd.Address),
		AddressType:   cmd.AddressType,
		OrderMessage:  strings.TrimSpace(cmd.OrderMessage),
		ShippingFee:   cmd.ShippingFee,
		Status:        initialOrderStatus(cmd.PaymentMethod),
		PaymentMethod: cmd.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, err
	}

	levels, err := s.products.AdjustStocks(ctx, order.StoreID, stockAdjustments(items, -1))
	if err != nil {
		// The order document must not survive a failed reservation.
		if deleteErr := s.orders.Delete(ctx, order.ID); deleteErr != nil {
			s.logger(ctx, eventOrderPlace, map[string]any{
				"orderId": order.ID,
				"error":   "rollback delete failed: " + deleteErr.Error(),
			})
		}
		return domain.Order{}, mapStockError(err)
	}

	s.publishOrderEvent(ctx, EventTypeOrderCreated, order, "")
	s.publishStockEvent(ctx, order, stockAdjustments(items, -1), levels)

	s.logger(ctx, eventOrderPlace, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
		"status":  string(order.Status),
	})
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	return s.loadOrder(ctx, storeID, orderID)
}

func (s *orderService) ListOrders(ctx context.Context, storeID string, filter OrderListFilter) ([]domain.Order, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, fmt.Errorf("%w: store id is required", ErrOrderInvalidInput)
	}
	return s.orders.ListByStore(ctx, storeID, repositories.OrderFilter{
		CustomerID: strings.TrimSpace(filter.CustomerID),
		Status:     filter.Status,
	})
}

func (s *orderService) CancelByCustomer(ctx context.Context, storeID, orderID, customerID string) (domain.Order, error) {
	order, err := s.loadOrder(ctx, storeID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if customerID = strings.TrimSpace(customerID); customerID == "" || order.CustomerID != customerID {
		return domain.Order{}, ErrOrderAccessDenied
	}
	if !customerCancellable(order) {
		return domain.Order{}, fmt.Errorf("%w: status %s", ErrOrderNotCancellable, order.Status)
	}

	previous := order.Status
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.restoreStocks(ctx, order)
	s.publishOrderEvent(ctx, EventTypeOrderStatusChanged, order, previous)

	s.logger(ctx, eventOrderCancel, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
		"from":    string(previous),
	})
	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, storeID, orderID string, target domain.OrderStatus) (StatusUpdateResult, error) {
	if !target.IsValid() {
		return StatusUpdateResult{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.loadOrder(ctx, storeID, orderID)
	if err != nil {
		return StatusUpdateResult{}, err
	}

	previous := order.Status

	// Reinstating a cancelled order re-reserves stock; it can fail the same
	// way a checkout does, and the dashboard expects those rejections as a
	// message rather than an error.
	if previous == domain.OrderStatusCancelled && target != domain.OrderStatusCancelled {
		levels, err := s.products.AdjustStocks(ctx, order.StoreID, stockAdjustments(order.Items, -1))
		if err != nil {
			var stockErr *repositories.StockError
			if errors.As(err, &stockErr) {
				switch stockErr.Code {
				case repositories.StockErrorInsufficient:
					return StatusUpdateResult{Success: false, Message: statusMessageStockInsufficient, Order: order}, nil
				case repositories.StockErrorProductNotFound:
					return StatusUpdateResult{Success: false, Message: statusMessageProductNotFound, Order: order}, nil
				}
			}
			return StatusUpdateResult{}, err
		}
		s.publishStockEvent(ctx, order, stockAdjustments(order.Items, -1), levels)
	}

	if previous != domain.OrderStatusCancelled && target == domain.OrderStatusCancelled {
		s.restoreStocks(ctx, order)
	}

	order.Status = target
	// An order pushed back to NOTPAID is by definition awaiting the gateway.
	if target == domain.OrderStatusNotPaid {
		order.PaymentMethod = domain.PaymentMethodOnline
	}
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return StatusUpdateResult{}, err
	}

	s.publishOrderEvent(ctx, EventTypeOrderStatusChanged, order, previous)

	s.logger(ctx, eventOrderStatus, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
		"from":    string(previous),
		"to":      string(target),
	})
	return StatusUpdateResult{Success: true, Message: statusMessageUpdated, Order: order}, nil
}

func (s *orderService) MarkPaid(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	order, err := s.loadOrder(ctx, storeID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.PaymentMethod != domain.PaymentMethodOnline || order.Status != domain.OrderStatusNotPaid {
		return domain.Order{}, fmt.Errorf("%w: method %s status %s", ErrOrderNotPayable, order.PaymentMethod, order.Status)
	}

	previous := order.Status
	order.Status = domain.OrderStatusPending
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.publishOrderEvent(ctx, EventTypeOrderStatusChanged, order, previous)

	s.logger(ctx, eventOrderMarkPaid, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
	})
	return order, nil
}

// ConvertToCOD switches an order awaiting online payment to cash on delivery.
// The order enters PENDING immediately, the same state a COD checkout starts
// in. Stock stays reserved; only the method and status change.
func (s *orderService) ConvertToCOD(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	order, err := s.loadOrder(ctx, storeID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.PaymentMethod != domain.PaymentMethodOnline || order.Status != domain.OrderStatusNotPaid {
		return domain.Order{}, fmt.Errorf("%w: method %s status %s", ErrOrderNotPayable, order.PaymentMethod, order.Status)
	}

	previous := order.Status
	order.Status = domain.OrderStatusPending
	order.PaymentMethod = domain.PaymentMethodCOD
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.publishOrderEvent(ctx, EventTypeOrderStatusChanged, order, previous)

	s.logger(ctx, eventOrderToCOD, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
	})
	return order, nil
}

func (s *orderService) loadOrder(ctx context.Context, storeID, orderID string) (domain.Order, error) {
	storeID = strings.TrimSpace(storeID)
	orderID = strings.TrimSpace(orderID)
	if storeID == "" || orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: store id and order id are required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return domain.Order{}, err
	}
	if order.StoreID != storeID {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// restoreStocks returns reserved quantities after a cancellation. Failures are
// logged rather than returned: the cancellation itself has already committed.
func (s *orderService) restoreStocks(ctx context.Context, order domain.Order) {
	adjustments := stockAdjustments(order.Items, 1)
	levels, err := s.products.AdjustStocks(ctx, order.StoreID, adjustments)
	if err != nil {
		s.logger(ctx, eventOrderCancel, map[string]any{
			"orderId": order.ID,
			"storeId": order.StoreID,
			"error":   "stock restore failed: " + err.Error(),
		})
		return
	}
	s.publishStockEvent(ctx, order, adjustments, levels)
}

func (s *orderService) publishOrderEvent(ctx context.Context, eventType string, order domain.Order, previous domain.OrderStatus) {
	if s.orderEvents == nil {
		return
	}
	message := OrderEventMessage{
		EventType:      eventType,
		OrderID:        order.ID,
		StoreID:        order.StoreID,
		CustomerID:     order.CustomerID,
		Status:         order.Status,
		PreviousStatus: previous,
		PaymentMethod:  order.PaymentMethod,
		Total:          order.Total(),
		OccurredAt:     s.clock(),
	}
	if _, err := s.orderEvents.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, eventType, map[string]any{
			"orderId": order.ID,
			"error":   "publish failed: " + err.Error(),
		})
	}
}

func (s *orderService) publishStockEvent(ctx context.Context, order domain.Order, adjustments []repositories.StockAdjustment, levels []repositories.StockLevel) {
	if s.stockEvents == nil {
		return
	}

	remaining := make(map[string]int64, len(levels))
	for _, level := range levels {
		remaining[level.ProductID] = level.Remaining
	}

	records := make([]StockAdjustmentRecord, 0, len(adjustments))
	for _, adj := range adjustments {
		records = append(records, StockAdjustmentRecord{
			ProductID: adj.ProductID,
			Delta:     adj.Delta,
			Remaining: remaining[adj.ProductID],
		})
	}

	message := StockEventMessage{
		EventType:   EventTypeStockAdjusted,
		StoreID:     order.StoreID,
		OrderID:     order.ID,
		Adjustments: records,
		OccurredAt:  s.clock(),
	}
	if _, err := s.stockEvents.PublishStockEvent(ctx, message); err != nil {
		s.logger(ctx, EventTypeStockAdjusted, map[string]any{
			"orderId": order.ID,
			"error":   "publish failed: " + err.Error(),
		})
	}
}

func validatePlaceOrder(cmd PlaceOrderCommand) error {
	if strings.TrimSpace(cmd.StoreID) == "" {
		return fmt.Errorf("%w: store id is required", ErrOrderInvalidInput)
	}
	// CustomerID stays optional: guest checkouts carry no account reference.
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item product id is required", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item quantity must be positive", ErrOrderInvalidInput)
		}
	}
	if strings.TrimSpace(cmd.Name) == "" || strings.TrimSpace(cmd.Phone) == "" || strings.TrimSpace(cmd.Address) == "" {
		return fmt.Errorf("%w: name, phone and address are required", ErrOrderInvalidInput)
	}
	if cmd.ShippingFee < 0 {
		return fmt.Errorf("%w: shipping fee must not be negative", ErrOrderInvalidInput)
	}
	if !cmd.PaymentMethod.IsValid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	return nil
}

// initialOrderStatus reflects how each payment method starts its life: cash
// orders are immediately pending fulfilment, online orders wait for the
// gateway to confirm payment.
func initialOrderStatus(method domain.PaymentMethod) domain.OrderStatus {
	if method == domain.PaymentMethodOnline {
		return domain.OrderStatusNotPaid
	}
	return domain.OrderStatusPending
}

func customerCancellable(order domain.Order) bool {
	switch order.PaymentMethod {
	case domain.PaymentMethodCOD:
		return order.Status == domain.OrderStatusPending
	case domain.PaymentMethodOnline:
		return order.Status == domain.OrderStatusNotPaid
	}
	return false
}

// stockAdjustments collapses order items into per-product deltas. Multiplier
// -1 reserves, +1 restores.
func stockAdjustments(items []domain.OrderItem, multiplier int64) []repositories.StockAdjustment {
	totals := make(map[string]int64, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if _, seen := totals[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		totals[item.ProductID] += item.Quantity * multiplier
	}

	adjustments := make([]repositories.StockAdjustment, 0, len(order))
	for _, productID := range order {
		adjustments = append(adjustments, repositories.StockAdjustment{ProductID: productID, Delta: totals[productID]})
	}
	return adjustments
}

func mapStockError(err error) error {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorInsufficient:
			return fmt.Errorf("%w: %s", ErrOrderOutOfStock, stockErr.ProductID)
		case repositories.StockErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrOrderProductNotFound, stockErr.ProductID)
		}
	}
	return err
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
