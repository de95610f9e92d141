// Package cart holds the customer's single active order in memory.
package cart

import "github.com/example/karatcart/internal/models"

// State is an immutable snapshot of the active order. Transition methods
// return a new State and never share line slices with the receiver.
type State struct {
	OrderID          string                  `json:"orderId"`
	Shop             models.Ref              `json:"shop"`
	JewelryOrder     []models.ProductLine    `json:"jewelryOrder"`
	ServiceOrder     []models.ServiceLine    `json:"serviceOrder"`
	Notes            string                  `json:"notes"`
	Status           models.OrderStatus      `json:"status,omitempty"`
	CollectionMethod models.CollectionMethod `json:"collectionMethod"`
}

// Empty is the no-order state.
func Empty() State {
	return State{
		JewelryOrder:     []models.ProductLine{},
		ServiceOrder:     []models.ServiceLine{},
		CollectionMethod: models.CollectionDelivery,
	}
}

// FromOrder builds a state from a remote order document.
func FromOrder(o models.Order) State {
	method := o.CollectionMethod
	if method == "" {
		method = models.CollectionDelivery
	}
	return State{
		OrderID:          o.ID,
		Shop:             o.Shop,
		JewelryOrder:     models.CloneProductLines(o.JewelryOrder),
		ServiceOrder:     models.CloneServiceLines(o.ServiceOrder),
		Notes:            o.Notes,
		Status:           o.Status,
		CollectionMethod: method,
	}
}

// HasOrder reports whether the state is bound to a remote order.
func (s State) HasOrder() bool { return s.OrderID != "" }

// IsEmpty reports whether there are no lines.
func (s State) IsEmpty() bool {
	return len(s.JewelryOrder) == 0 && len(s.ServiceOrder) == 0
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := s
	out.JewelryOrder = models.CloneProductLines(s.JewelryOrder)
	out.ServiceOrder = models.CloneServiceLines(s.ServiceOrder)
	return out
}

// Order converts the state back to an order document.
func (s State) Order() models.Order {
	return models.Order{
		ID:               s.OrderID,
		Shop:             s.Shop,
		JewelryOrder:     models.CloneProductLines(s.JewelryOrder),
		ServiceOrder:     models.CloneServiceLines(s.ServiceOrder),
		Notes:            s.Notes,
		Status:           s.Status,
		CollectionMethod: s.CollectionMethod,
	}
}

// Lines returns the tagged line items, products first.
func (s State) Lines() []models.LineItem {
	return s.Order().Lines()
}

// WithOrderID binds the state to a remote order.
func (s State) WithOrderID(id string) State {
	out := s.Clone()
	out.OrderID = id
	return out
}

// WithJewelry appends a product line without deduplicating.
func (s State) WithJewelry(entry models.ProductLine) State {
	out := s.Clone()
	out.JewelryOrder = append(out.JewelryOrder, entry)
	return out
}

// WithService appends a service line without deduplicating.
func (s State) WithService(entry models.ServiceLine) State {
	out := s.Clone()
	entry.Jewelry = append([]models.ServiceJewelry{}, entry.Jewelry...)
	out.ServiceOrder = append(out.ServiceOrder, entry)
	return out
}
