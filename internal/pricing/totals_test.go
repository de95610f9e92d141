package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/karatcart/internal/models"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 0.3, Round2(0.1+0.2))
	assert.Equal(t, 10.13, Round2(10.125))
	assert.Equal(t, 0.0, Round2(0))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "1234.50 USD", FormatMoney(1234.5, "USD"))
	assert.Equal(t, "0.33", FormatMoney(1.0/3, ""))
}

func TestCartTotalsDelivery(t *testing.T) {
	lines := models.Order{
		JewelryOrder: []models.ProductLine{{Item: "j1", ItemModel: models.ItemModelJewelry, Quantity: 1, TotalPrice: 200}},
		ServiceOrder: []models.ServiceLine{{Service: "s1", TotalPrice: 50}},
	}.Lines()

	totals := CartTotals(lines, models.CollectionDelivery, DefaultTotalsPolicy())

	assert.Equal(t, Totals{Subtotal: 250, VAT: 25, DeliveryFee: 5, Total: 280}, totals)
}

func TestCartTotalsPickupWaivesFee(t *testing.T) {
	lines := []models.LineItem{models.ProductItem(models.ProductLine{Item: "j1", Quantity: 1, TotalPrice: 99.99})}

	totals := CartTotals(lines, models.CollectionPickup, DefaultTotalsPolicy())

	assert.Zero(t, totals.DeliveryFee)
	assert.Equal(t, 99.99, totals.Subtotal)
	assert.Equal(t, 10.0, totals.VAT)
	assert.Equal(t, 109.99, totals.Total)
}

func TestCartTotalsEmpty(t *testing.T) {
	assert.Equal(t, Totals{}, CartTotals(nil, models.CollectionDelivery, DefaultTotalsPolicy()))
}
