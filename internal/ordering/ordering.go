// Package ordering keeps each customer's single pending order consistent
// with the marketplace: it prices additions against live metal rates,
// merges them into the order, blocks cross-shop mixing, and re-prices the
// cart on load.
package ordering

import (
	"context"
	"errors"

	"github.com/example/karatcart/internal/approval"
	"github.com/example/karatcart/internal/cart"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/pricing"
	"github.com/example/karatcart/internal/services"
)

var (
	ErrNoOrder           = errors.New("ordering: customer has no active order")
	ErrLineNotFound      = errors.New("ordering: line is not in the order")
	ErrInvalidQuantity   = errors.New("ordering: quantity must be at least 1")
	ErrInvalidItemModel  = errors.New("ordering: unknown item model")
	ErrNoPendingConflict = errors.New("ordering: no shop conflict awaiting resolution")
	ErrUnpriceable       = errors.New("ordering: item price cannot be computed")
)

// OrderAPI is the marketplace order resource.
type OrderAPI interface {
	Pending(ctx context.Context) (*models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Create(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	Update(ctx context.Context, id string, req models.UpdateOrderRequest) (*models.Order, error)
	Cancel(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
}

// Catalog reads the documents an order line points at.
type Catalog interface {
	Jewelry(ctx context.Context, id string) (*models.Jewelry, error)
	Collection(ctx context.Context, id string) (*models.Collection, error)
	Service(ctx context.Context, id string) (*models.Service, error)
}

// RateSource returns current metal rates and never fails.
type RateSource interface {
	FetchMetalRates(ctx context.Context) models.MetalRateTable
}

// Notifier announces submissions and approval timeouts to staff.
type Notifier interface {
	approval.Notifier
	NotifyOrderSubmitted(ctx context.Context, n services.SubmissionNotification) error
}

// Outcome tells the caller what an add-to-cart did.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAdded         Outcome = "added"
	OutcomeMerged        Outcome = "merged"
	OutcomeAlreadyInCart Outcome = "already_in_cart"
	OutcomeConflict      Outcome = "shop_conflict"
	OutcomeReplaced      Outcome = "replaced"
	OutcomeDiscarded     Outcome = "discarded"
)

// ShopConflict describes an addition from a different shop than the one
// bound to the order. The addition is parked until ResolveConflict.
type ShopConflict struct {
	CurrentShop models.Ref      `json:"currentShop"`
	ItemShop    models.Ref      `json:"itemShop"`
	Line        models.LineItem `json:"line"`
}

// AddResult is returned by every add-to-cart operation.
type AddResult struct {
	Outcome  Outcome       `json:"outcome"`
	Order    cart.State    `json:"order"`
	Conflict *ShopConflict `json:"conflict,omitempty"`
}

// Resolution is the customer's answer to a shop conflict.
type Resolution string

const (
	ResolveClearAndAdd Resolution = "clear"
	ResolveCancel      Resolution = "cancel"
)

// JewelryRequest adds a single piece.
type JewelryRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Size     string `json:"size"`
}

// ServiceRequest adds a service for the listed customer pieces.
type ServiceRequest struct {
	ID      string                  `json:"id"`
	Jewelry []models.ServiceJewelry `json:"jewelry"`
}

// CartView is the cart as shown to the customer.
type CartView struct {
	Order      cart.State            `json:"order"`
	Lines      []models.LineItem     `json:"lines"`
	Totals     pricing.Totals        `json:"totals"`
	Rates      models.MetalRateTable `json:"rates,omitempty"`
	Submission approval.Outcome      `json:"submission"`
}

// addition is a priced line ready to merge, with the shop that owns it.
type addition struct {
	shop models.Ref
	line models.LineItem
}
