package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/example/karatcart/internal/models"
)

// Round2 rounds a monetary amount to cents. Apply it only where a value is
// shown or persisted, never between calculation steps.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(finite(v)).Round(2).InexactFloat64()
}

// FormatMoney renders an amount with two decimals and an optional currency.
func FormatMoney(v float64, currency string) string {
	s := decimal.NewFromFloat(finite(v)).StringFixed(2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// TotalsPolicy holds the storefront's fixed cart charges.
type TotalsPolicy struct {
	VATRate     float64
	DeliveryFee float64
}

// DefaultTotalsPolicy is 10% VAT and a flat 5.00 delivery fee.
func DefaultTotalsPolicy() TotalsPolicy {
	return TotalsPolicy{VATRate: 0.10, DeliveryFee: 5}
}

// Totals are the cart-side derived values. They are recomputed on every read
// and never stored.
type Totals struct {
	Subtotal    float64 `json:"subtotal"`
	VAT         float64 `json:"vat"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

// CartTotals derives subtotal, VAT, delivery fee and estimated total.
// The delivery fee is waived for pickup and for an empty cart.
func CartTotals(lines []models.LineItem, method models.CollectionMethod, policy TotalsPolicy) Totals {
	var subtotal float64
	for _, line := range lines {
		subtotal += finite(line.TotalPrice())
	}

	vat := subtotal * finite(policy.VATRate)

	var fee float64
	if method != models.CollectionPickup && len(lines) > 0 {
		fee = finite(policy.DeliveryFee)
	}

	return Totals{
		Subtotal:    Round2(subtotal),
		VAT:         Round2(vat),
		DeliveryFee: Round2(fee),
		Total:       Round2(subtotal + vat + fee),
	}
}
