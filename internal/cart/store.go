package cart

import (
	"sync"

	"github.com/example/karatcart/internal/models"
)

// Store owns the active order state for one customer. It is passed
// explicitly to whoever needs it; there is no package-level instance.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns a Store in the no-order state.
func NewStore() *Store {
	return &Store{state: Empty()}
}

// Snapshot returns a copy of the current state.
func (st *Store) Snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state.Clone()
}

// SetOrderID binds the aggregate to a remote order id.
func (st *Store) SetOrderID(id string) State {
	return st.apply(func(s State) State { return s.WithOrderID(id) })
}

// SetFullOrder replaces the state wholesale from a remote order document.
func (st *Store) SetFullOrder(o models.Order) State {
	return st.apply(func(State) State { return FromOrder(o) })
}

// AddJewelryToOrder appends a product line.
func (st *Store) AddJewelryToOrder(entry models.ProductLine) State {
	return st.apply(func(s State) State { return s.WithJewelry(entry) })
}

// AddServiceToOrder appends a service line.
func (st *Store) AddServiceToOrder(entry models.ServiceLine) State {
	return st.apply(func(s State) State { return s.WithService(entry) })
}

// ResetOrder clears to the no-order state.
func (st *Store) ResetOrder() State {
	return st.apply(func(State) State { return Empty() })
}

// Replace installs a locally derived state.
func (st *Store) Replace(next State) State {
	return st.apply(func(State) State { return next.Clone() })
}

func (st *Store) apply(fn func(State) State) State {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = fn(st.state)
	return st.state.Clone()
}
