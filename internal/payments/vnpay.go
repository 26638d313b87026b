package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	vnpayCommandPay   = "pay"
	vnpayCurrencyCode = "VND"
	vnpayOrderType    = "other"
	vnpayDateLayout   = "20060102150405"

	defaultVNPayLocale = "en"
)

// vnpayZone is the gateway's reference timezone (UTC+7). Create dates outside
// it are rejected by the sandbox.
var vnpayZone = time.FixedZone("ICT", 7*60*60)

// Signer produces the signature appended to signed gateway payloads.
type Signer interface {
	Sign(secret, payload string) string
}

// HMACSHA512Signer implements the gateway's required signature scheme.
type HMACSHA512Signer struct{}

// Sign returns the lowercase hex HMAC-SHA512 of payload under secret.
func (HMACSHA512Signer) Sign(secret, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VNPayConfig carries the static gateway settings shared by all stores.
type VNPayConfig struct {
	BaseURL string
	Version string
	Locale  string
}

// VNPayProvider implements Provider against the VNPay redirect gateway.
type VNPayProvider struct {
	baseURL string
	version string
	locale  string
	signer  Signer
}

// VNPayOption customises provider construction.
type VNPayOption func(*VNPayProvider)

// WithSigner overrides the signature implementation.
func WithSigner(signer Signer) VNPayOption {
	return func(p *VNPayProvider) {
		if signer != nil {
			p.signer = signer
		}
	}
}

// NewVNPayProvider constructs a VNPay redirect gateway adapter.
func NewVNPayProvider(cfg VNPayConfig, opts ...VNPayOption) (*VNPayProvider, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("vnpay: base url is required")
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		return nil, errors.New("vnpay: version is required")
	}
	locale := strings.TrimSpace(cfg.Locale)
	if locale == "" {
		locale = defaultVNPayLocale
	}

	provider := &VNPayProvider{
		baseURL: baseURL,
		version: version,
		locale:  locale,
		signer:  HMACSHA512Signer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(provider)
		}
	}
	return provider, nil
}

// BuildPaymentURL assembles the signed redirect URL for the given order.
func (p *VNPayProvider) BuildPaymentURL(ctx context.Context, req PaymentURLRequest) (string, error) {
	if p == nil {
		return "", errors.New("vnpay: provider not initialised")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Credentials.MerchantCode) == "" {
		return "", errors.New("vnpay: merchant code is required")
	}
	if strings.TrimSpace(req.Credentials.HashSecret) == "" {
		return "", errors.New("vnpay: hash secret is required")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return "", errors.New("vnpay: order id is required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("vnpay: amount must be positive, got %d", req.Amount)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = p.locale
	}

	params := url.Values{}
	params.Set("vnp_Version", p.version)
	params.Set("vnp_Command", vnpayCommandPay)
	params.Set("vnp_TmnCode", req.Credentials.MerchantCode)
	// The gateway expresses amounts in hundredths of the currency unit.
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", vnpayCurrencyCode)
	params.Set("vnp_TxnRef", req.OrderID)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", vnpayOrderType)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_ReturnUrl", req.ReturnURL)
	params.Set("vnp_IpAddr", req.ClientIP)
	params.Set("vnp_CreateDate", createdAt.In(vnpayZone).Format(vnpayDateLayout))
	if bankCode := strings.TrimSpace(req.BankCode); bankCode != "" {
		params.Set("vnp_BankCode", bankCode)
	}

	signData := encodeSorted(params)
	secureHash := p.signer.Sign(req.Credentials.HashSecret, signData)

	return p.baseURL + "?" + signData + "&vnp_SecureHash=" + secureHash, nil
}

// ParseNotification verifies the IPN signature when present and normalises
// the notification fields.
func (p *VNPayProvider) ParseNotification(params url.Values, secret string) (Notification, error) {
	if p == nil {
		return Notification{}, errors.New("vnpay: provider not initialised")
	}
	if strings.TrimSpace(secret) == "" {
		return Notification{}, errors.New("vnpay: hash secret is required")
	}

	// Not every gateway notification carries a signature; verify only when
	// one is present.
	if received := strings.TrimSpace(params.Get("vnp_SecureHash")); received != "" {
		signed := url.Values{}
		for key, values := range params {
			if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
				continue
			}
			for _, v := range values {
				signed.Add(key, v)
			}
		}

		expected := p.signer.Sign(secret, encodeSorted(signed))
		if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
			return Notification{}, fmt.Errorf("%w: signature mismatch", ErrInvalidNotification)
		}
	}

	orderID := strings.TrimSpace(params.Get("vnp_TxnRef"))
	if orderID == "" {
		return Notification{}, fmt.Errorf("%w: missing transaction reference", ErrInvalidNotification)
	}

	var amount int64
	if raw := strings.TrimSpace(params.Get("vnp_Amount")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Notification{}, fmt.Errorf("%w: malformed amount %q", ErrInvalidNotification, raw)
		}
		amount = parsed / 100
	}

	responseCode := strings.TrimSpace(params.Get("vnp_ResponseCode"))

	return Notification{
		OrderID:       orderID,
		ResponseCode:  responseCode,
		Amount:        amount,
		BankCode:      strings.TrimSpace(params.Get("vnp_BankCode")),
		TransactionNo: strings.TrimSpace(params.Get("vnp_TransactionNo")),
		PayDate:       strings.TrimSpace(params.Get("vnp_PayDate")),
		Succeeded:     responseCode == RspCodeSuccess,
	}, nil
}

// encodeSorted renders params as a query string with keys in ascending order,
// matching the byte sequence the gateway signs.
func encodeSorted(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, value := range params[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}
