package payments

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// Response codes returned to the gateway from IPN handling.
const (
	// RspCodeSuccess acknowledges a valid, applied notification.
	RspCodeSuccess = "00"
	// RspCodeInvalidRequest indicates a malformed or unverifiable notification.
	RspCodeInvalidRequest = "93"
	// RspCodeOrderInvalid indicates the referenced order is missing or not payable.
	RspCodeOrderInvalid = "99"
)

// ErrInvalidNotification is returned when an IPN payload cannot be parsed or verified.
var ErrInvalidNotification = errors.New("payments: invalid notification")

// Credentials carries the per-store gateway identity used to build and verify requests.
type Credentials struct {
	MerchantCode string
	HashSecret   string
}

// PaymentURLRequest captures everything needed to build a redirect payment URL.
type PaymentURLRequest struct {
	Credentials Credentials
	Amount      int64
	OrderID     string
	OrderInfo   string
	ReturnURL   string
	ClientIP    string
	BankCode    string
	Locale      string
	CreatedAt   time.Time
}

// Notification is the normalised result of parsing a gateway IPN callback.
type Notification struct {
	OrderID       string
	ResponseCode  string
	Amount        int64
	BankCode      string
	TransactionNo string
	PayDate       string
	Succeeded     bool
}

// Provider builds redirect payment URLs and parses gateway notifications.
type Provider interface {
	BuildPaymentURL(ctx context.Context, req PaymentURLRequest) (string, error)
	ParseNotification(params url.Values, secret string) (Notification, error)
}
