package services

import (
	"context"
	"net/url"
	"time"

	"github.com/atelier-market/api/internal/domain"
)

// OrderEventMessage is the payload published when an order is created or
// changes status.
type OrderEventMessage struct {
	EventType      string               `json:"eventType"`
	OrderID        string               `json:"orderId"`
	StoreID        string               `json:"storeId"`
	CustomerID     string               `json:"customerId"`
	Status         domain.OrderStatus   `json:"status"`
	PreviousStatus domain.OrderStatus   `json:"previousStatus,omitempty"`
	PaymentMethod  domain.PaymentMethod `json:"paymentMethod"`
	Total          int64                `json:"total"`
	OccurredAt     time.Time            `json:"occurredAt"`
}

// StockAdjustmentRecord reports one product's stock movement inside a stock event.
type StockAdjustmentRecord struct {
	ProductID string `json:"productId"`
	Delta     int64  `json:"delta"`
	Remaining int64  `json:"remaining"`
}

// StockEventMessage is the payload published after a stock adjustment commits.
type StockEventMessage struct {
	EventType   string                  `json:"eventType"`
	StoreID     string                  `json:"storeId"`
	OrderID     string                  `json:"orderId,omitempty"`
	Adjustments []StockAdjustmentRecord `json:"adjustments"`
	OccurredAt  time.Time               `json:"occurredAt"`
}

// OrderEventPublisher emits order lifecycle events to the message broker.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}

// StockEventPublisher emits stock adjustment events to the message broker.
type StockEventPublisher interface {
	PublishStockEvent(ctx context.Context, message StockEventMessage) (string, error)
}

// OrderItemInput identifies a product variant and quantity in a checkout request.
type OrderItemInput struct {
	ProductID string
	ColorID   string
	SizeID    string
	Quantity  int64
}

// PlaceOrderCommand captures a storefront order submission.
type PlaceOrderCommand struct {
	StoreID       string
	CustomerID    string
	Items         []OrderItemInput
	Name          string
	Phone         string
	Address       string
	AddressType   domain.AddressType
	OrderMessage  string
	ShippingFee   int64
	PaymentMethod domain.PaymentMethod
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	CustomerID string
	Status     domain.OrderStatus
}

// StatusUpdateResult reports the outcome of an admin status transition.
// Business-rule rejections surface here rather than as errors so handlers can
// return them verbatim to the dashboard.
type StatusUpdateResult struct {
	Success bool
	Message string
	Order   domain.Order
}

// OrderService owns the order lifecycle: placement with stock reservation,
// customer cancellation, admin status transitions and payment confirmation.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, storeID, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, storeID string, filter OrderListFilter) ([]domain.Order, error)
	CancelByCustomer(ctx context.Context, storeID, orderID, customerID string) (domain.Order, error)
	UpdateStatus(ctx context.Context, storeID, orderID string, target domain.OrderStatus) (StatusUpdateResult, error)
	MarkPaid(ctx context.Context, storeID, orderID string) (domain.Order, error)
	ConvertToCOD(ctx context.Context, storeID, orderID string) (domain.Order, error)
}

// CheckoutCommand captures a storefront checkout request.
type CheckoutCommand struct {
	StoreID       string
	CustomerID    string
	Items         []OrderItemInput
	Name          string
	Phone         string
	Address       string
	AddressType   domain.AddressType
	OrderMessage  string
	ShippingFee   int64
	PaymentMethod domain.PaymentMethod
	BankCode      string
	ClientIP      string
}

// CreatePaymentCommand captures a payment retry, or a switch to cash on
// delivery, for an order that is still awaiting online payment.
type CreatePaymentCommand struct {
	StoreID       string
	OrderID       string
	CustomerID    string
	PaymentMethod domain.PaymentMethod
	ClientIP      string
	BankCode      string
}

// CheckoutResult carries the redirect URL the storefront sends the customer to.
type CheckoutResult struct {
	OrderID string
	URL     string
}

// IPNResult is the acknowledgement payload returned to the payment gateway.
type IPNResult struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// CheckoutService orchestrates order placement against the payment gateway.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
	CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (CheckoutResult, error)
	HandleNotification(ctx context.Context, storeID string, params url.Values) IPNResult
}

// StoreOverview aggregates the dashboard headline numbers for one store.
type StoreOverview struct {
	TotalRevenue    int64
	SalesCount      int64
	ProductsInStock int64
	MonthlyRevenue  [12]int64
}

// MetricsService computes dashboard aggregations over delivered orders.
type MetricsService interface {
	Overview(ctx context.Context, storeID string) (StoreOverview, error)
}

// ProductListFilter narrows storefront product listings.
type ProductListFilter struct {
	CategoryID      string
	SizeID          string
	ColorID         string
	IsFeatured      *bool
	IncludeArchived bool
}

// CatalogService owns admin CRUD for products and the four catalog entities.
// Mutations verify the acting user owns the target store; reads are open to
// the storefront.
type CatalogService interface {
	CreateProduct(ctx context.Context, actorID string, product domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, storeID, productID string) (domain.Product, error)
	ListProducts(ctx context.Context, storeID string, filter ProductListFilter) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, actorID string, product domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, actorID, storeID, productID string) error

	CreateBillboard(ctx context.Context, actorID string, billboard domain.Billboard) (domain.Billboard, error)
	GetBillboard(ctx context.Context, storeID, billboardID string) (domain.Billboard, error)
	ListBillboards(ctx context.Context, storeID string) ([]domain.Billboard, error)
	UpdateBillboard(ctx context.Context, actorID string, billboard domain.Billboard) (domain.Billboard, error)
	DeleteBillboard(ctx context.Context, actorID, storeID, billboardID string) error

	CreateCategory(ctx context.Context, actorID string, category domain.Category) (domain.Category, error)
	GetCategory(ctx context.Context, storeID, categoryID string) (domain.Category, error)
	ListCategories(ctx context.Context, storeID string) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, actorID string, category domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, actorID, storeID, categoryID string) error

	CreateSize(ctx context.Context, actorID string, size domain.Size) (domain.Size, error)
	GetSize(ctx context.Context, storeID, sizeID string) (domain.Size, error)
	ListSizes(ctx context.Context, storeID string) ([]domain.Size, error)
	UpdateSize(ctx context.Context, actorID string, size domain.Size) (domain.Size, error)
	DeleteSize(ctx context.Context, actorID, storeID, sizeID string) error

	CreateColor(ctx context.Context, actorID string, color domain.Color) (domain.Color, error)
	GetColor(ctx context.Context, storeID, colorID string) (domain.Color, error)
	ListColors(ctx context.Context, storeID string) ([]domain.Color, error)
	UpdateColor(ctx context.Context, actorID string, color domain.Color) (domain.Color, error)
	DeleteColor(ctx context.Context, actorID, storeID, colorID string) error
}

// StoreInput carries the mutable fields of a store document.
type StoreInput struct {
	Name        string
	TmnCode     string
	HashSecret  string
	FrontendURL string
}

// StoreService owns store CRUD scoped to the owning user.
type StoreService interface {
	CreateStore(ctx context.Context, actorID string, input StoreInput) (domain.Store, error)
	GetStore(ctx context.Context, actorID, storeID string) (domain.Store, error)
	ListStores(ctx context.Context, actorID string) ([]domain.Store, error)
	UpdateStore(ctx context.Context, actorID, storeID string, input StoreInput) (domain.Store, error)
	DeleteStore(ctx context.Context, actorID, storeID string) error
}
