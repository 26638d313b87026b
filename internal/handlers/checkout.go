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

const maxCheckoutBodySize = 16 * 1024

// CheckoutHandlers exposes the storefront checkout endpoints and the payment
// gateway notification hook.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers the checkout endpoints under a store scoped router.
// Checkout serves guests as well as signed-in customers, so a session is
// attached when present but never demanded. The IPN endpoint stays open
// because the gateway calls it server to server.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = r.With(h.authn.OptionalFirebaseAuth())
	}
	group.Post("/checkout", h.checkoutOrder)
	group.Post("/checkout/createPayment", h.createPayment)

	r.Get("/checkout/ipn", h.handleIPN)
}

type checkoutItemRequest struct {
	ProductID string `json:"productId"`
	ColorID   string `json:"colorId"`
	SizeID    string `json:"sizeId"`
	Quantity  int64  `json:"quantity"`
}

type checkoutRequest struct {
	Items         []checkoutItemRequest `json:"items"`
	CustomerID    string                `json:"customerId"`
	Name          string                `json:"name"`
	Phone         string                `json:"phone"`
	Address       string                `json:"address"`
	AddressType   string                `json:"addressType"`
	OrderMessage  string                `json:"orderMessage"`
	ShippingFee   int64                 `json:"shippingFee"`
	PaymentMethod string                `json:"paymentMethod"`
	BankCode      string                `json:"bankCode"`
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
	URL     string `json:"url"`
}

type createPaymentRequest struct {
	OrderID       string `json:"orderId"`
	CustomerID    string `json:"customerId"`
	PaymentMethod string `json:"paymentMethod"`
	BankCode      string `json:"bankCode"`
}

func (h *CheckoutHandlers) checkoutOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := decodeBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	// A signed-in session always wins over whatever the payload claims;
	// guests may pass a customer reference or nothing at all.
	customerID := strings.TrimSpace(req.CustomerID)
	if uid := sessionUID(r); uid != "" {
		customerID = uid
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID: item.ProductID,
			ColorID:   item.ColorID,
			SizeID:    item.SizeID,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		StoreID:       chi.URLParam(r, "storeID"),
		CustomerID:    customerID,
		Items:         items,
		Name:          req.Name,
		Phone:         req.Phone,
		Address:       req.Address,
		AddressType:   domain.AddressType(strings.ToUpper(strings.TrimSpace(req.AddressType))),
		OrderMessage:  req.OrderMessage,
		ShippingFee:   req.ShippingFee,
		PaymentMethod: domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		BankCode:      req.BankCode,
		ClientIP:      clientIP(r),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, checkoutResponse{OrderID: result.OrderID, URL: result.URL})
}

func (h *CheckoutHandlers) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPaymentRequest
	if err := decodeBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if uid := sessionUID(r); uid != "" {
		customerID = uid
	}

	result, err := h.checkout.CreatePayment(ctx, services.CreatePaymentCommand{
		StoreID:       chi.URLParam(r, "storeID"),
		OrderID:       strings.TrimSpace(req.OrderID),
		CustomerID:    customerID,
		PaymentMethod: domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(req.PaymentMethod))),
		ClientIP:      clientIP(r),
		BankCode:      req.BankCode,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, checkoutResponse{OrderID: result.OrderID, URL: result.URL})
}

// handleIPN answers the gateway's server to server notification. The response
// is always HTTP 200; the RspCode in the body tells the gateway whether the
// confirmation was accepted.
func (h *CheckoutHandlers) handleIPN(w http.ResponseWriter, r *http.Request) {
	result := h.checkout.HandleNotification(r.Context(), chi.URLParam(r, "storeID"), r.URL.Query())
	writeJSONResponse(w, http.StatusOK, result)
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput), errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutStoreNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("store_not_found", "store not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order belongs to another customer", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_payable", "order is not awaiting payment", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
