// Package payment implements the Shopier gateway protocol: an outbound
// signed payment form the buyer's browser submits directly to the provider,
// and inbound signed callbacks reporting the payment outcome. Trust in both
// directions rests on a shared-secret HMAC, not on transport identity.
package payment

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"html"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/prowisla/shop/internal/money"
)

const (
	paymentURL = "https://www.shopier.com/ShowProduct/api_pay4.php"

	StatusPaid   = "paid"
	StatusFailed = "failed"
)

type Buyer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type Address struct {
	Address    string
	City       string
	Country    string
	PostalCode string
}

type OrderInfo struct {
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string // TRY, USD or EUR; empty defaults to TRY
}

type ProductInfo struct {
	Name string
	Type int // 0 real, 1 virtual, 2 default
}

type FormRequest struct {
	Buyer           Buyer
	BillingAddress  Address
	ShippingAddress Address
	Order           OrderInfo
	Product         ProductInfo
}

type Form struct {
	FormHTML   string            `json:"form_html"`
	PaymentURL string            `json:"payment_url"`
	FormData   map[string]string `json:"form_data"`
}

// CallbackResult is the normalized outcome of a provider callback. When
// Valid is false the other fields must not be trusted.
type CallbackResult struct {
	Valid       bool
	OrderNumber string
	Status      string
	Installment int
	PaymentID   string
}

type Gateway struct {
	APIKey       string
	APISecret    string
	CallbackURL  string
	WebsiteIndex int
}

func (g *Gateway) Enabled() bool {
	return g.APIKey != "" && g.APISecret != ""
}

// BuildPaymentForm assembles the provider's hidden-input form. The signature
// covers nonce + order number + fixed-point amount + currency code; the
// provider echoes the nonce back in the callback so verification can repeat
// the same concatenation. No network call happens here — the client submits
// the form itself.
func (g *Gateway) BuildPaymentForm(req FormRequest) Form {
	currency := currencyCode(req.Order.Currency)
	amount := money.Format(req.Order.Amount)

	formData := map[string]string{
		"API_key":           g.APIKey,
		"website_index":     strconv.Itoa(g.websiteIndex()),
		"platform_order_id": req.Order.OrderNumber,
		"product_name":      req.Product.Name,
		"product_type":      strconv.Itoa(req.Product.Type),
		"buyer_name":        req.Buyer.FirstName,
		"buyer_surname":     req.Buyer.LastName,
		"buyer_email":       req.Buyer.Email,
		"buyer_phone":       req.Buyer.Phone,
		"buyer_id_nr":       req.Buyer.ID,
		"billing_address":   req.BillingAddress.Address,
		"billing_city":      req.BillingAddress.City,
		"billing_country":   req.BillingAddress.Country,
		"billing_postcode":  req.BillingAddress.PostalCode,
		"shipping_address":  req.ShippingAddress.Address,
		"shipping_city":     req.ShippingAddress.City,
		"shipping_country":  req.ShippingAddress.Country,
		"shipping_postcode": req.ShippingAddress.PostalCode,
		"total_order_value": amount,
		"currency":          strconv.Itoa(currency),
		"platform":          "0",
		"is_in_frame":       "0",
		"current_language":  "tr",
		"modul_version":     "1.0.0",
		"random_nr":         randomNonce(),
	}

	signingInput := formData["random_nr"] + formData["platform_order_id"] +
		formData["total_order_value"] + formData["currency"]
	formData["signature"] = g.sign(signingInput)
	formData["callback"] = base64.StdEncoding.EncodeToString([]byte(g.CallbackURL))

	var b strings.Builder
	fmt.Fprintf(&b, `<form id="shopier-form" method="POST" action="%s">`, paymentURL)
	for _, key := range formFieldOrder {
		value, ok := formData[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, `<input type="hidden" name="%s" value="%s" />`, key, html.EscapeString(value))
	}
	b.WriteString(`<button type="submit" class="btn-shopier">Shopier ile Öde</button></form>`)

	return Form{
		FormHTML:   b.String(),
		PaymentURL: paymentURL,
		FormData:   formData,
	}
}

// VerifyCallback fails closed: any missing field or mismatch yields an
// invalid result, never an error, so the callback endpoint can always answer
// the provider while refusing to mutate state.
func (g *Gateway) VerifyCallback(params url.Values) CallbackResult {
	orderNumber := params.Get("platform_order_id")
	status := params.Get("status")
	paymentID := params.Get("payment_id")
	nonce := params.Get("random_nr")
	signature := params.Get("signature")

	if orderNumber == "" || nonce == "" || signature == "" {
		return CallbackResult{Valid: false}
	}

	expected := g.sign(nonce + orderNumber + status + paymentID)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return CallbackResult{Valid: false}
	}

	normalized := StatusFailed
	if status == "success" {
		normalized = StatusPaid
	}

	installment, err := strconv.Atoi(params.Get("installment"))
	if err != nil || installment < 1 {
		installment = 1
	}

	return CallbackResult{
		Valid:       true,
		OrderNumber: orderNumber,
		Status:      normalized,
		Installment: installment,
		PaymentID:   paymentID,
	}
}

func (g *Gateway) sign(data string) string {
	mac := hmac.New(sha256.New, []byte(g.APISecret))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (g *Gateway) websiteIndex() int {
	if g.WebsiteIndex > 0 {
		return g.WebsiteIndex
	}
	return 1
}

// randomNonce returns a single-use numeric nonce below 10^9, matching the
// provider's expected format.
func randomNonce() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		return "0"
	}
	return n.String()
}

func currencyCode(currency string) int {
	switch strings.ToUpper(currency) {
	case "", "TRY", "TL":
		return 0
	case "USD":
		return 1
	case "EUR":
		return 2
	default:
		return 0
	}
}

// formFieldOrder keeps the rendered form deterministic; map iteration order
// would otherwise shuffle the hidden inputs between requests.
var formFieldOrder = []string{
	"API_key", "website_index", "platform_order_id", "product_name",
	"product_type", "buyer_name", "buyer_surname", "buyer_email",
	"buyer_phone", "buyer_id_nr", "billing_address", "billing_city",
	"billing_country", "billing_postcode", "shipping_address",
	"shipping_city", "shipping_country", "shipping_postcode",
	"total_order_value", "currency", "platform", "is_in_frame",
	"current_language", "modul_version", "random_nr", "signature", "callback",
}
