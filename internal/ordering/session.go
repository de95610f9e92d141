package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/approval"
	"github.com/example/karatcart/internal/cart"
	"github.com/example/karatcart/internal/debounce"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/pricing"
)

// ErrAwaitingApproval rejects cart edits while a jeweler is deciding.
var ErrAwaitingApproval = errors.New("ordering: order is awaiting jeweler approval")

// Session is one customer's cart. Operations on a session run one at a
// time, in call order.
type Session struct {
	r          *Reconciler
	customerID string
	log        *zap.Logger

	mu           sync.Mutex
	store        *cart.Store
	loaded       bool
	settledAt    time.Time
	parked       *addition
	notes        *debounce.Slot
	serviceEdits *debounce.Slot
	waiter       *approval.Waiter
}

// NewSession creates an empty session for customerID. The pending order is
// read from the marketplace on first use.
func (r *Reconciler) NewSession(customerID string) *Session {
	log := r.log.With(zap.String("customer_id", customerID))
	return &Session{
		r:            r,
		customerID:   customerID,
		log:          log,
		store:        cart.NewStore(),
		notes:        debounce.New(r.cfg.EditDebounce),
		serviceEdits: debounce.New(r.cfg.EditDebounce),
		waiter: approval.NewWaiter(r.orders, approval.Options{
			Timeout:  r.cfg.WaitTimeout,
			Poll:     r.cfg.WaitPoll,
			Notifier: r.notifier,
			Logger:   log,
		}),
	}
}

// CustomerID returns the owner of the session.
func (s *Session) CustomerID() string { return s.customerID }

// Cart returns the local cart without contacting the marketplace.
func (s *Session) Cart() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	return s.viewLocked(s.store.Snapshot(), nil)
}

// AddJewelry prices a piece at current rates and adds it to the order.
func (s *Session) AddJewelry(ctx context.Context, req JewelryRequest) (AddResult, error) {
	add, err := s.r.jewelryAddition(ctx, req)
	if err != nil {
		return AddResult{Order: s.store.Snapshot()}, err
	}
	return s.add(ctx, add)
}

// AddCollection prices a collection at current rates and adds it.
func (s *Session) AddCollection(ctx context.Context, id string) (AddResult, error) {
	add, err := s.r.collectionAddition(ctx, id)
	if err != nil {
		return AddResult{Order: s.store.Snapshot()}, err
	}
	return s.add(ctx, add)
}

// AddService adds a service for the given customer pieces. Adding a service
// already in the order merges into its line.
func (s *Session) AddService(ctx context.Context, req ServiceRequest) (AddResult, error) {
	add, err := s.r.serviceAddition(ctx, req)
	if err != nil {
		return AddResult{Order: s.store.Snapshot()}, err
	}
	return s.add(ctx, add)
}

func (s *Session) add(ctx context.Context, add addition) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ctx); err != nil {
		return AddResult{Order: s.store.Snapshot()}, err
	}

	state := s.store.Snapshot()
	if state.HasOrder() && !state.Shop.IsZero() && state.Shop != add.shop {
		s.parked = &add
		s.log.Info("item belongs to another shop, awaiting customer choice",
			zap.String("order_shop", state.Shop.String()),
			zap.String("item_shop", add.shop.String()),
		)
		return AddResult{
			Outcome: OutcomeConflict,
			Order:   state,
			Conflict: &ShopConflict{
				CurrentShop: state.Shop,
				ItemShop:    add.shop,
				Line:        add.line,
			},
		}, nil
	}
	s.parked = nil

	if !state.HasOrder() {
		return s.createLocked(ctx, state, add)
	}
	return s.mergeLocked(ctx, state, add)
}

// ResolveConflict applies the customer's choice for the parked addition.
func (s *Session) ResolveConflict(ctx context.Context, choice Resolution) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.parked == nil {
		return AddResult{Order: s.store.Snapshot()}, ErrNoPendingConflict
	}
	add := *s.parked

	switch choice {
	case ResolveCancel:
		s.parked = nil
		return AddResult{Outcome: OutcomeDiscarded, Order: s.store.Snapshot()}, nil
	case ResolveClearAndAdd:
	default:
		return AddResult{Order: s.store.Snapshot()}, fmt.Errorf("unknown conflict resolution %q", choice)
	}

	if err := s.guardLocked(ctx); err != nil {
		return AddResult{Order: s.store.Snapshot()}, err
	}

	state := s.store.Snapshot()
	if !state.HasOrder() {
		res, err := s.createLocked(ctx, state, add)
		if err == nil {
			s.parked = nil
		}
		return res, err
	}

	products := []models.ProductLine{}
	services := []models.ServiceLine{}
	switch add.line.Kind {
	case models.LineKindProduct:
		products = append(products, *add.line.Product)
	case models.LineKindService:
		services = append(services, *add.line.Service)
	}
	shop := add.shop

	s.serviceEdits.Stop()
	next, err := s.pushLocked(ctx, state, models.UpdateOrderRequest{
		JewelryOrder: &products,
		ServiceOrder: &services,
		Shop:         &shop,
	}, add.shop)
	if err != nil {
		return AddResult{Order: state}, err
	}
	s.parked = nil
	s.log.Info("order cleared and rebound to new shop", zap.String("shop_id", add.shop.String()))
	return AddResult{Outcome: OutcomeReplaced, Order: next}, nil
}

// RemoveLine drops a line. Removing the last line deletes the remote order.
func (s *Session) RemoveLine(ctx context.Context, ref models.LineRef) (cart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ctx); err != nil {
		return s.store.Snapshot(), err
	}
	state := s.store.Snapshot()
	if !state.HasOrder() {
		return state, ErrNoOrder
	}

	var req models.UpdateOrderRequest
	products := state.JewelryOrder
	services := state.ServiceOrder
	found := false

	switch ref.Kind {
	case models.LineKindProduct:
		products = make([]models.ProductLine, 0, len(state.JewelryOrder))
		for _, p := range state.JewelryOrder {
			if !found && ref.MatchesProduct(p) {
				found = true
				continue
			}
			products = append(products, p)
		}
		req.JewelryOrder = &products
	case models.LineKindService:
		services = make([]models.ServiceLine, 0, len(state.ServiceOrder))
		for _, sl := range state.ServiceOrder {
			if !found && ref.MatchesService(sl) {
				found = true
				continue
			}
			services = append(services, sl)
		}
		req.ServiceOrder = &services
	}
	if !found {
		return state, ErrLineNotFound
	}

	if len(products) == 0 && len(services) == 0 {
		if err := s.r.orders.Cancel(ctx, state.OrderID); err != nil {
			return state, fmt.Errorf("delete empty order %s: %w", state.OrderID, err)
		}
		s.notes.Stop()
		s.serviceEdits.Stop()
		s.log.Info("last line removed, order deleted", zap.String("order_id", state.OrderID))
		return s.store.ResetOrder(), nil
	}

	return s.pushLocked(ctx, state, req, state.Shop)
}

// ChangeQuantity sets a product line's quantity. The new total scales the
// line's current unit price; rates are not re-read.
func (s *Session) ChangeQuantity(ctx context.Context, ref models.LineRef, quantity int) (cart.State, error) {
	if quantity < 1 {
		return s.store.Snapshot(), ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ctx); err != nil {
		return s.store.Snapshot(), err
	}
	state := s.store.Snapshot()
	if !state.HasOrder() {
		return state, ErrNoOrder
	}

	products := models.CloneProductLines(state.JewelryOrder)
	idx := -1
	for i, p := range products {
		if ref.MatchesProduct(p) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return state, ErrLineNotFound
	}

	line := &products[idx]
	if line.Quantity == quantity {
		return state, nil
	}
	line.TotalPrice = scaleTotal(line.TotalPrice, line.Quantity, quantity)
	line.Quantity = quantity

	return s.pushLocked(ctx, state, models.UpdateOrderRequest{JewelryOrder: &products}, state.Shop)
}

// SetCollectionMethod switches between delivery and pickup. It only
// affects the locally derived totals.
func (s *Session) SetCollectionMethod(method models.CollectionMethod) (CartView, error) {
	if method != models.CollectionDelivery && method != models.CollectionPickup {
		return s.Cart(), fmt.Errorf("unknown collection method %q", method)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.settleLocked()
	next := s.store.Snapshot()
	next.CollectionMethod = method
	return s.viewLocked(s.store.Replace(next), nil), nil
}

// Close flushes pending edits and stops the approval timer.
func (s *Session) Close() {
	s.notes.Flush()
	s.serviceEdits.Flush()
	s.waiter.Close()
}

func (s *Session) createLocked(ctx context.Context, state cart.State, add addition) (AddResult, error) {
	req := models.CreateOrderRequest{
		JewelryOrder:     []models.ProductLine{},
		ServiceOrder:     []models.ServiceLine{},
		TotalPrice:       pricing.Round2(add.line.TotalPrice()),
		CollectionMethod: state.CollectionMethod,
		Shop:             add.shop,
	}
	if req.CollectionMethod == "" {
		req.CollectionMethod = models.CollectionDelivery
	}
	switch add.line.Kind {
	case models.LineKindProduct:
		req.JewelryOrder = append(req.JewelryOrder, *add.line.Product)
	case models.LineKindService:
		req.ServiceOrder = append(req.ServiceOrder, *add.line.Service)
	}

	order, err := s.r.orders.Create(ctx, req)
	if err != nil {
		return AddResult{Order: state}, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return AddResult{Order: state}, errors.New("create order: response carries no order id")
	}

	next := s.adoptLocked(*order, state, add.shop)
	s.log.Info("order created",
		zap.String("order_id", next.OrderID),
		zap.String("shop_id", next.Shop.String()),
	)
	return AddResult{Outcome: OutcomeCreated, Order: next}, nil
}

func (s *Session) mergeLocked(ctx context.Context, state cart.State, add addition) (AddResult, error) {
	var (
		req     models.UpdateOrderRequest
		outcome = OutcomeAdded
	)

	switch add.line.Kind {
	case models.LineKindProduct:
		line := *add.line.Product
		for _, p := range state.JewelryOrder {
			if p.Item == line.Item && p.ItemModel == line.ItemModel {
				return AddResult{Outcome: OutcomeAlreadyInCart, Order: state}, nil
			}
		}
		products := append(models.CloneProductLines(state.JewelryOrder), line)
		req.JewelryOrder = &products

	case models.LineKindService:
		line := *add.line.Service
		services := models.CloneServiceLines(state.ServiceOrder)
		merged := false
		for i := range services {
			if services[i].Service == line.Service {
				services[i].TotalPrice = pricing.Round2(services[i].TotalPrice + line.TotalPrice)
				services[i].Jewelry = append(services[i].Jewelry, line.Jewelry...)
				merged = true
				break
			}
		}
		if merged {
			outcome = OutcomeMerged
		} else {
			services = append(services, line)
		}
		req.ServiceOrder = &services

	default:
		return AddResult{Order: state}, fmt.Errorf("unknown line kind %q", add.line.Kind)
	}

	if state.Shop.IsZero() {
		shop := add.shop
		req.Shop = &shop
	}

	next, err := s.pushLocked(ctx, state, req, add.shop)
	if err != nil {
		return AddResult{Order: state}, err
	}
	return AddResult{Outcome: outcome, Order: next}, nil
}

// pushLocked sends a partial update and replaces local state with the
// returned order.
func (s *Session) pushLocked(ctx context.Context, state cart.State, req models.UpdateOrderRequest, shop models.Ref) (cart.State, error) {
	order, err := s.r.orders.Update(ctx, state.OrderID, req)
	if err != nil {
		return state, fmt.Errorf("update order %s: %w", state.OrderID, err)
	}
	return s.adoptLocked(*order, state, shop), nil
}

// adoptLocked installs a server order as the local state. The shop binding
// and collection method are kept from the local side when known.
func (s *Session) adoptLocked(order models.Order, prev cart.State, shop models.Ref) cart.State {
	if order.ID == "" {
		order.ID = prev.OrderID
	}
	if !shop.IsZero() {
		order.Shop = shop
	} else if order.Shop.IsZero() {
		order.Shop = prev.Shop
	}
	if prev.CollectionMethod != "" {
		order.CollectionMethod = prev.CollectionMethod
	}
	if s.notes.Pending() {
		order.Notes = prev.Notes
	}
	return s.store.SetFullOrder(order)
}

// guardLocked loads the pending order once and refuses edits while the
// order awaits a jeweler. An order that left the cart lifecycle is dropped
// so the next addition starts a new one.
func (s *Session) guardLocked(ctx context.Context) error {
	s.settleLocked()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	if s.waiter.Status().State == approval.StateWaiting {
		return ErrAwaitingApproval
	}
	if state := s.store.Snapshot(); state.HasOrder() && !inCart(state.Status) {
		s.log.Info("order left the cart, starting over",
			zap.String("order_id", state.OrderID),
			zap.String("status", string(state.Status)),
		)
		s.dropOrderLocked()
	}
	return nil
}

func (s *Session) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	order, err := s.r.orders.Pending(ctx)
	if err != nil {
		return fmt.Errorf("load pending order: %w", err)
	}
	if order == nil || !inCart(order.Status) {
		s.store.ResetOrder()
	} else {
		s.store.SetFullOrder(*order)
	}
	s.loaded = true
	return nil
}

// settleLocked applies the end of an approval cycle to the local cart,
// once per cycle. Pending and rejected orders stay in the cart; a pending
// one is re-read on next use. Any other decision drops the order.
func (s *Session) settleLocked() {
	out := s.waiter.Status()
	if out.FinishedAt.IsZero() || out.FinishedAt.Equal(s.settledAt) {
		return
	}
	s.settledAt = out.FinishedAt

	state := s.store.Snapshot()
	if state.OrderID != out.OrderID {
		return
	}
	if !inCart(out.Decision) {
		s.log.Info("submitted order left the cart",
			zap.String("order_id", out.OrderID),
			zap.String("decision", string(out.Decision)),
		)
		s.dropOrderLocked()
		s.loaded = false
		return
	}
	state.Status = out.Decision
	s.store.Replace(state)
	if out.Decision == models.StatusPending {
		s.loaded = false
	}
}

func (s *Session) dropOrderLocked() {
	s.notes.Stop()
	s.serviceEdits.Stop()
	s.parked = nil
	s.store.ResetOrder()
}

// inCart reports whether an order in status st is still the customer's
// editable cart, i.e. can still be submitted.
func inCart(st models.OrderStatus) bool {
	return st == "" || st == models.StatusSubmitted || st.CanTransition(models.StatusSubmitted)
}

func (s *Session) viewLocked(state cart.State, rates models.MetalRateTable) CartView {
	lines := state.Lines()
	return CartView{
		Order:      state,
		Lines:      lines,
		Totals:     pricing.CartTotals(lines, state.CollectionMethod, s.r.cfg.Totals),
		Rates:      rates,
		Submission: s.waiter.Status(),
	}
}

// scaleTotal rescales a line total from one count to another using the
// line's implied unit price. A count below one is treated as one.
func scaleTotal(total float64, from, to int) float64 {
	if from < 1 {
		from = 1
	}
	return pricing.Round2(total / float64(from) * float64(to))
}
