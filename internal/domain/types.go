package domain

import "time"

// OrderStatus enumerates the lifecycle states of an order.
type OrderStatus string

const (
	OrderStatusNotPaid   OrderStatus = "NOTPAID"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipping  OrderStatus = "SHIPPING"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusNotPaid, OrderStatusPending, OrderStatusConfirmed,
		OrderStatusShipping, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "ONLINE"
)

// IsValid reports whether the payment method is known.
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodOnline
}

// AddressType distinguishes delivery destinations.
type AddressType string

const (
	AddressTypeHome   AddressType = "HOME"
	AddressTypeOffice AddressType = "OFFICE"
)

// Store is a merchant tenant. Gateway credentials belong to the store so
// payment URLs can be signed per merchant.
type Store struct {
	ID          string    `firestore:"-"`
	Name        string    `firestore:"name"`
	OwnerID     string    `firestore:"ownerId"`
	TmnCode     string    `firestore:"tmnCode"`
	HashSecret  string    `firestore:"hashSecret"`
	FrontendURL string    `firestore:"frontendUrl"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// Product is a sellable item. Stock is the single source of truth for
// availability; it never goes negative.
type Product struct {
	ID         string    `firestore:"-"`
	StoreID    string    `firestore:"storeId"`
	Name       string    `firestore:"name"`
	Price      int64     `firestore:"price"`
	Stock      int64     `firestore:"stock"`
	IsArchived bool      `firestore:"isArchived"`
	IsFeatured bool      `firestore:"isFeatured"`
	CategoryID string    `firestore:"categoryId"`
	SizeIDs    []string  `firestore:"sizeIds"`
	ColorIDs   []string  `firestore:"colorIds"`
	ImageURLs  []string  `firestore:"imageUrls"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

// OrderItem is a line of an order. UnitPrice is snapshotted at creation so
// later product edits do not change what the customer owes.
type OrderItem struct {
	ProductID   string `firestore:"productId"`
	ProductName string `firestore:"productName"`
	ColorID     string `firestore:"colorId"`
	SizeID      string `firestore:"sizeId"`
	Quantity    int64  `firestore:"quantity"`
	UnitPrice   int64  `firestore:"unitPrice"`
}

// Order captures a customer purchase. Totals are derived from the items and
// shipping fee, never stored.
type Order struct {
	ID            string        `firestore:"-"`
	StoreID       string        `firestore:"storeId"`
	CustomerID    string        `firestore:"customerId"`
	Items         []OrderItem   `firestore:"items"`
	Name          string        `firestore:"name"`
	Phone         string        `firestore:"phone"`
	Address       string        `firestore:"address"`
	AddressType   AddressType   `firestore:"addressType"`
	OrderMessage  string        `firestore:"orderMessage,omitempty"`
	ShippingFee   int64         `firestore:"shippingFee"`
	Status        OrderStatus   `firestore:"orderStatus"`
	PaymentMethod PaymentMethod `firestore:"paymentMethod"`
	CreatedAt     time.Time     `firestore:"createdAt"`
	UpdatedAt     time.Time     `firestore:"updatedAt"`
}

// Total returns the amount owed for the order including the shipping fee.
func (o Order) Total() int64 {
	total := o.ShippingFee
	for _, item := range o.Items {
		total += item.UnitPrice * item.Quantity
	}
	return total
}

// Billboard is a storefront hero banner managed by the dashboard.
type Billboard struct {
	ID        string    `firestore:"-"`
	StoreID   string    `firestore:"storeId"`
	Label     string    `firestore:"label"`
	ImageURL  string    `firestore:"imageUrl"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Category groups products and points at the billboard shown on its page.
type Category struct {
	ID          string    `firestore:"-"`
	StoreID     string    `firestore:"storeId"`
	Name        string    `firestore:"name"`
	BillboardID string    `firestore:"billboardId"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// Size is a product size option.
type Size struct {
	ID        string    `firestore:"-"`
	StoreID   string    `firestore:"storeId"`
	Name      string    `firestore:"name"`
	Value     string    `firestore:"value"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// Color is a product colour option; Value holds the hex code.
type Color struct {
	ID        string    `firestore:"-"`
	StoreID   string    `firestore:"storeId"`
	Name      string    `firestore:"name"`
	Value     string    `firestore:"value"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}
