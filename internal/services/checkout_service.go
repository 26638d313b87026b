package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/payments"
	"github.com/atelier-market/api/internal/platform/config"
	"github.com/atelier-market/api/internal/repositories"
)

const (
	eventCheckout     = "checkout.create"
	eventCheckoutIPN  = "checkout.ipn"
	eventCreatePayURL = "checkout.paymentUrl"

	ipnMessageSuccess        = "Confirm success"
	ipnMessageInvalidRequest = "Invalid request"
	ipnMessageOrderInvalid   = "Order invalid"
)

var (
	// ErrCheckoutInvalidInput signals the caller provided invalid arguments.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutStoreNotFound indicates the target store does not exist.
	ErrCheckoutStoreNotFound = errors.New("checkout: store not found")
	// ErrCheckoutMissingSecret indicates the store carries no usable gateway secret.
	ErrCheckoutMissingSecret = errors.New("checkout: store has no gateway hash secret")
)

// CheckoutServiceDeps bundles the collaborators required to construct a checkout service.
type CheckoutServiceDeps struct {
	Orders  OrderService
	Stores  repositories.StoreRepository
	Gateway payments.Provider
	// Secrets resolves secret:// references found in store hash secrets.
	Secrets config.SecretResolver
	// FallbackHashSecret is used when a store document carries no secret of
	// its own, typically in local development.
	FallbackHashSecret string
	Clock              func() time.Time
	Logger             func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders         OrderService
	stores         repositories.StoreRepository
	gateway        payments.Provider
	secrets        config.SecretResolver
	fallbackSecret string
	clock          func() time.Time
	logger         func(context.Context, string, map[string]any)
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order service is required")
	}
	if deps.Stores == nil {
		return nil, errors.New("checkout service: store repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:         deps.Orders,
		stores:         deps.Stores,
		gateway:        deps.Gateway,
		secrets:        deps.Secrets,
		fallbackSecret: strings.TrimSpace(deps.FallbackHashSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	store, err := s.loadStore(ctx, cmd.StoreID)
	if err != nil {
		return CheckoutResult{}, err
	}

	order, err := s.orders.PlaceOrder(ctx, PlaceOrderCommand{
		StoreID:       cmd.StoreID,
		CustomerID:    cmd.CustomerID,
		Items:         cmd.Items,
		Name:          cmd.Name,
		Phone:         cmd.Phone,
		Address:       cmd.Address,
		AddressType:   cmd.AddressType,
		OrderMessage:  cmd.OrderMessage,
		ShippingFee:   cmd.ShippingFee,
		PaymentMethod: cmd.PaymentMethod,
	})
	if err != nil {
		// A shortfall is a normal storefront outcome: the order was rolled
		// back and the customer lands on the out-of-stock page.
		if errors.Is(err, ErrOrderOutOfStock) {
			s.logger(ctx, eventCheckout, map[string]any{
				"storeId": cmd.StoreID,
				"outcome": "out_of_stock",
			})
			return CheckoutResult{URL: outOfStockURL(store)}, nil
		}
		return CheckoutResult{}, err
	}

	var redirect string
	if cmd.PaymentMethod == domain.PaymentMethodOnline {
		redirect, err = s.buildGatewayURL(ctx, store, order, cmd.ClientIP, cmd.BankCode)
		if err != nil {
			// The order stays NOTPAID; the storefront can retry through
			// CreatePayment without placing a second order.
			s.logger(ctx, eventCheckout, map[string]any{
				"orderId": order.ID,
				"error":   "gateway url failed: " + err.Error(),
			})
			return CheckoutResult{}, err
		}
	} else {
		redirect = codResultURL(store, order)
	}

	s.logger(ctx, eventCheckout, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
		"method":  string(cmd.PaymentMethod),
	})
	return CheckoutResult{OrderID: order.ID, URL: redirect}, nil
}

func (s *checkoutService) CreatePayment(ctx context.Context, cmd CreatePaymentCommand) (CheckoutResult, error) {
	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodOnline
	}
	if !method.IsValid() {
		return CheckoutResult{}, fmt.Errorf("%w: unknown payment method %q", ErrCheckoutInvalidInput, cmd.PaymentMethod)
	}

	store, err := s.loadStore(ctx, cmd.StoreID)
	if err != nil {
		return CheckoutResult{}, err
	}

	order, err := s.orders.GetOrder(ctx, cmd.StoreID, strings.TrimSpace(cmd.OrderID))
	if err != nil {
		return CheckoutResult{}, err
	}
	if customerID := strings.TrimSpace(cmd.CustomerID); customerID != "" && order.CustomerID != customerID {
		return CheckoutResult{}, ErrOrderAccessDenied
	}
	if order.PaymentMethod != domain.PaymentMethodOnline || order.Status != domain.OrderStatusNotPaid {
		return CheckoutResult{}, fmt.Errorf("%w: method %s status %s", ErrOrderNotPayable, order.PaymentMethod, order.Status)
	}

	// Switching to cash on delivery confirms the order instead of building a
	// gateway redirect.
	if method == domain.PaymentMethodCOD {
		order, err = s.orders.ConvertToCOD(ctx, cmd.StoreID, order.ID)
		if err != nil {
			return CheckoutResult{}, err
		}
		s.logger(ctx, eventCreatePayURL, map[string]any{
			"orderId": order.ID,
			"storeId": order.StoreID,
			"method":  string(domain.PaymentMethodCOD),
		})
		return CheckoutResult{OrderID: order.ID, URL: codSwitchURL(store, order)}, nil
	}

	redirect, err := s.buildGatewayURL(ctx, store, order, cmd.ClientIP, cmd.BankCode)
	if err != nil {
		return CheckoutResult{}, err
	}

	s.logger(ctx, eventCreatePayURL, map[string]any{
		"orderId": order.ID,
		"storeId": order.StoreID,
	})
	return CheckoutResult{OrderID: order.ID, URL: redirect}, nil
}

func (s *checkoutService) HandleNotification(ctx context.Context, storeID string, params url.Values) IPNResult {
	store, err := s.loadStore(ctx, storeID)
	if err != nil {
		s.logger(ctx, eventCheckoutIPN, map[string]any{"storeId": storeID, "error": err.Error()})
		return IPNResult{RspCode: payments.RspCodeInvalidRequest, Message: ipnMessageInvalidRequest}
	}

	secret, err := s.resolveHashSecret(ctx, store)
	if err != nil {
		s.logger(ctx, eventCheckoutIPN, map[string]any{"storeId": storeID, "error": err.Error()})
		return IPNResult{RspCode: payments.RspCodeInvalidRequest, Message: ipnMessageInvalidRequest}
	}

	notification, err := s.gateway.ParseNotification(params, secret)
	if err != nil {
		s.logger(ctx, eventCheckoutIPN, map[string]any{"storeId": storeID, "error": err.Error()})
		return IPNResult{RspCode: payments.RspCodeInvalidRequest, Message: ipnMessageInvalidRequest}
	}
	if !notification.Succeeded {
		return IPNResult{RspCode: payments.RspCodeInvalidRequest, Message: ipnMessageInvalidRequest}
	}

	if _, err := s.orders.MarkPaid(ctx, storeID, notification.OrderID); err != nil {
		s.logger(ctx, eventCheckoutIPN, map[string]any{
			"storeId": storeID,
			"orderId": notification.OrderID,
			"error":   err.Error(),
		})
		return IPNResult{RspCode: payments.RspCodeOrderInvalid, Message: ipnMessageOrderInvalid}
	}

	s.logger(ctx, eventCheckoutIPN, map[string]any{
		"storeId": storeID,
		"orderId": notification.OrderID,
		"rspCode": payments.RspCodeSuccess,
	})
	return IPNResult{RspCode: payments.RspCodeSuccess, Message: ipnMessageSuccess}
}

func (s *checkoutService) loadStore(ctx context.Context, storeID string) (domain.Store, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return domain.Store{}, fmt.Errorf("%w: store id is required", ErrCheckoutInvalidInput)
	}
	store, err := s.stores.FindByID(ctx, storeID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Store{}, fmt.Errorf("%w: %s", ErrCheckoutStoreNotFound, storeID)
		}
		return domain.Store{}, err
	}
	return store, nil
}

func (s *checkoutService) buildGatewayURL(ctx context.Context, store domain.Store, order domain.Order, clientIP, bankCode string) (string, error) {
	secret, err := s.resolveHashSecret(ctx, store)
	if err != nil {
		return "", err
	}

	return s.gateway.BuildPaymentURL(ctx, payments.PaymentURLRequest{
		Credentials: payments.Credentials{
			MerchantCode: store.TmnCode,
			HashSecret:   secret,
		},
		Amount:    order.Total(),
		OrderID:   order.ID,
		OrderInfo: "Order " + order.ID,
		ReturnURL: frontendBase(store) + "/checkout/result",
		ClientIP:  strings.TrimSpace(clientIP),
		BankCode:  strings.TrimSpace(bankCode),
		CreatedAt: s.clock(),
	})
}

// resolveHashSecret prefers the store's own credential, dereferencing
// secret:// values through Secret Manager, and falls back to the shared
// development secret.
func (s *checkoutService) resolveHashSecret(ctx context.Context, store domain.Store) (string, error) {
	value := strings.TrimSpace(store.HashSecret)
	if value == "" {
		value = s.fallbackSecret
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrCheckoutMissingSecret, store.ID)
	}

	resolved, err := config.ResolveSecretValue(ctx, value, s.secrets)
	if err != nil {
		return "", fmt.Errorf("checkout: resolve hash secret for store %s: %w", store.ID, err)
	}
	return resolved, nil
}

func codResultURL(store domain.Store, order domain.Order) string {
	return fmt.Sprintf("%s/checkout/result?cod=1&orderId=%s&amount=%d",
		frontendBase(store), url.QueryEscape(order.ID), order.Total())
}

// codSwitchURL confirms a method switch on an existing order. No amount
// parameter: the storefront already shows the order total on the retry page.
func codSwitchURL(store domain.Store, order domain.Order) string {
	return fmt.Sprintf("%s/checkout/result?cod=1&orderId=%s",
		frontendBase(store), url.QueryEscape(order.ID))
}

func outOfStockURL(store domain.Store) string {
	return frontendBase(store) + "/checkout/result?outOfStock=1"
}

func frontendBase(store domain.Store) string {
	return strings.TrimRight(strings.TrimSpace(store.FrontendURL), "/")
}
