package models

// LineKind is the discriminant of LineItem.
type LineKind string

const (
	LineKindProduct LineKind = "product"
	LineKindService LineKind = "service"
)

// LineItem is a tagged union over the two order line shapes. Exactly one
// of Product or Service is set, matching Kind.
type LineItem struct {
	Kind    LineKind     `json:"kind"`
	Product *ProductLine `json:"product,omitempty"`
	Service *ServiceLine `json:"service,omitempty"`
}

// ProductItem wraps a product line.
func ProductItem(p ProductLine) LineItem {
	return LineItem{Kind: LineKindProduct, Product: &p}
}

// ServiceItem wraps a service line.
func ServiceItem(s ServiceLine) LineItem {
	s.Jewelry = append([]ServiceJewelry{}, s.Jewelry...)
	return LineItem{Kind: LineKindService, Service: &s}
}

// TotalPrice returns the line total of whichever variant is set.
func (l LineItem) TotalPrice() float64 {
	switch l.Kind {
	case LineKindProduct:
		if l.Product != nil {
			return l.Product.TotalPrice
		}
	case LineKindService:
		if l.Service != nil {
			return l.Service.TotalPrice
		}
	}
	return 0
}

// Ref identifies the line inside its order.
func (l LineItem) Ref() LineRef {
	switch l.Kind {
	case LineKindProduct:
		if l.Product != nil {
			return LineRef{Kind: LineKindProduct, ID: l.Product.Item, ItemModel: l.Product.ItemModel}
		}
	case LineKindService:
		if l.Service != nil {
			return LineRef{Kind: LineKindService, ID: l.Service.Service}
		}
	}
	return LineRef{Kind: l.Kind}
}

// LineRef addresses a line: products by (item, itemModel), services by id.
type LineRef struct {
	Kind      LineKind  `json:"kind"`
	ID        Ref       `json:"id"`
	ItemModel ItemModel `json:"itemModel,omitempty"`
}

// MatchesProduct reports whether the ref addresses the given product line.
func (r LineRef) MatchesProduct(p ProductLine) bool {
	return r.Kind == LineKindProduct && p.Item == r.ID && p.ItemModel == r.ItemModel
}

// MatchesService reports whether the ref addresses the given service line.
func (r LineRef) MatchesService(s ServiceLine) bool {
	return r.Kind == LineKindService && s.Service == r.ID
}

// Lines flattens the order into tagged line items, products first.
func (o Order) Lines() []LineItem {
	lines := make([]LineItem, 0, len(o.JewelryOrder)+len(o.ServiceOrder))
	for _, p := range o.JewelryOrder {
		lines = append(lines, ProductItem(p))
	}
	for _, s := range o.ServiceOrder {
		lines = append(lines, ServiceItem(s))
	}
	return lines
}
