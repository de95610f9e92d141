package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/karatcart/internal/models"
)

// OrdersAPI wraps the marketplace order resource.
type OrdersAPI struct {
	client *Marketplace
}

// NewOrdersAPI constructs OrdersAPI.
func NewOrdersAPI(client *Marketplace) *OrdersAPI {
	return &OrdersAPI{client: client}
}

// Pending returns the customer's pending order, or nil when there is none.
func (a *OrdersAPI) Pending(ctx context.Context) (*models.Order, error) {
	var order models.Order
	_, err := a.client.do(ctx, requestOpts{Method: http.MethodGet, Path: "/orders/pending"}, &order)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load pending order: %w", err)
	}
	if order.ID == "" {
		return nil, nil
	}
	return &order, nil
}

// Get loads a full order document.
func (a *OrdersAPI) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if _, err := a.client.do(ctx, requestOpts{Method: http.MethodGet, Path: "/orders/" + url.PathEscape(id)}, &order); err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	if order.ID == "" {
		order.ID = id
	}
	return &order, nil
}

// Create posts a new order.
func (a *OrdersAPI) Create(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	var order models.Order
	if _, err := a.client.do(ctx, requestOpts{Method: http.MethodPost, Path: "/orders", Body: req}, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("create order: response has no order id")
	}
	return &order, nil
}

// Update sends a partial update; the backend recomputes derived fields.
func (a *OrdersAPI) Update(ctx context.Context, id string, req models.UpdateOrderRequest) (*models.Order, error) {
	var order models.Order
	if _, err := a.client.do(ctx, requestOpts{Method: http.MethodPut, Path: "/orders/" + url.PathEscape(id), Body: req}, &order); err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	if order.ID == "" {
		order.ID = id
	}
	return &order, nil
}

// Cancel deletes the order.
func (a *OrdersAPI) Cancel(ctx context.Context, id string) error {
	if _, err := a.client.do(ctx, requestOpts{Method: http.MethodDelete, Path: "/orders/" + url.PathEscape(id)}, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", id, err)
	}
	return nil
}

type statusUpdateRequest struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateStatus forces a lifecycle transition.
func (a *OrdersAPI) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	path := "/orders/update-status/" + url.PathEscape(id)
	if _, err := a.client.do(ctx, requestOpts{Method: http.MethodPut, Path: path, Body: statusUpdateRequest{Status: status}}, nil); err != nil {
		return fmt.Errorf("set order %s status to %s: %w", id, status, err)
	}
	return nil
}
