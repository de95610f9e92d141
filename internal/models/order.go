package models

// ItemModel discriminates the catalog document a product line points at.
type ItemModel string

const (
	ItemModelJewelry    ItemModel = "Jewelry"
	ItemModelCollection ItemModel = "Collection"
)

// Valid reports whether m is a known product model.
func (m ItemModel) Valid() bool {
	return m == ItemModelJewelry || m == ItemModelCollection
}

// CollectionMethod is how the customer receives the order.
type CollectionMethod string

const (
	CollectionDelivery CollectionMethod = "delivery"
	CollectionPickup   CollectionMethod = "pickup"
)

// ProductLine is a jewelry or collection line of an order.
type ProductLine struct {
	Item       Ref       `json:"item"`
	ItemModel  ItemModel `json:"itemModel"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"totalPrice"`
	Size       string    `json:"size,omitempty"`
}

// ServiceJewelry describes a customer-owned piece attached to a service line.
type ServiceJewelry struct {
	Name     string `json:"name"`
	Material string `json:"material"`
	Type     string `json:"type"`
	Details  string `json:"details"`
}

// ServiceLine is "this service for N jewelry items".
type ServiceLine struct {
	Service    Ref              `json:"service"`
	Jewelry    []ServiceJewelry `json:"jewelry"`
	TotalPrice float64          `json:"totalPrice"`
}

// Order is the marketplace order document.
type Order struct {
	ID               string           `json:"_id"`
	Shop             Ref              `json:"shop,omitempty"`
	JewelryOrder     []ProductLine    `json:"jewelryOrder"`
	ServiceOrder     []ServiceLine    `json:"serviceOrder"`
	Notes            string           `json:"notes"`
	Status           OrderStatus      `json:"status,omitempty"`
	CollectionMethod CollectionMethod `json:"collectionMethod,omitempty"`
	TotalPrice       float64          `json:"totalPrice"`
}

// IsEmpty reports whether the order has no lines at all.
func (o Order) IsEmpty() bool {
	return len(o.JewelryOrder) == 0 && len(o.ServiceOrder) == 0
}

// Clone deep-copies the order so callers never share line slices.
func (o Order) Clone() Order {
	out := o
	out.JewelryOrder = CloneProductLines(o.JewelryOrder)
	out.ServiceOrder = CloneServiceLines(o.ServiceOrder)
	return out
}

// CloneProductLines copies a product line slice; the result is never nil.
func CloneProductLines(lines []ProductLine) []ProductLine {
	out := make([]ProductLine, len(lines))
	copy(out, lines)
	return out
}

// CloneServiceLines copies a service line slice including attached jewelry;
// the result is never nil.
func CloneServiceLines(lines []ServiceLine) []ServiceLine {
	out := make([]ServiceLine, len(lines))
	for i, line := range lines {
		out[i] = line
		out[i].Jewelry = append([]ServiceJewelry{}, line.Jewelry...)
	}
	return out
}

// CreateOrderRequest is the POST /orders body.
type CreateOrderRequest struct {
	JewelryOrder     []ProductLine    `json:"jewelryOrder"`
	ServiceOrder     []ServiceLine    `json:"serviceOrder"`
	TotalPrice       float64          `json:"totalPrice"`
	CollectionMethod CollectionMethod `json:"collectionMethod"`
	Shop             Ref              `json:"shop,omitempty"`
}

// UpdateOrderRequest is the partial PUT /orders/:id body. Nil fields are
// left untouched by the backend.
type UpdateOrderRequest struct {
	JewelryOrder *[]ProductLine `json:"jewelryOrder,omitempty"`
	ServiceOrder *[]ServiceLine `json:"serviceOrder,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
	Shop         *Ref           `json:"shop,omitempty"`
}
