package models

// OrderStatus is the marketplace order lifecycle state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusSubmitted  OrderStatus = "submitted"
	StatusAccepted   OrderStatus = "accepted"
	StatusRejected   OrderStatus = "rejected"
	StatusProcessing OrderStatus = "processing"
	StatusReady      OrderStatus = "ready"
	StatusPickup     OrderStatus = "pickup"
	StatusOut        OrderStatus = "out"
	StatusDelivered  OrderStatus = "delivered"
	StatusPickedUp   OrderStatus = "picked-up"
	StatusCancelled  OrderStatus = "cancelled"
)

var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusSubmitted, StatusCancelled},
	StatusSubmitted:  {StatusAccepted, StatusRejected, StatusPending, StatusCancelled},
	StatusAccepted:   {StatusProcessing, StatusCancelled},
	StatusRejected:   {StatusPending, StatusSubmitted, StatusCancelled},
	StatusProcessing: {StatusReady, StatusPickup},
	StatusReady:      {StatusOut},
	StatusPickup:     {StatusPickedUp},
	StatusOut:        {StatusDelivered},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsJewelerDecision reports whether s is a jeweler's answer to a submission.
func (s OrderStatus) IsJewelerDecision() bool {
	return s == StatusAccepted || s == StatusRejected
}
