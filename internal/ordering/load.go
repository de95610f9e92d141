package ordering

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/karatcart/internal/approval"
	"github.com/example/karatcart/internal/cart"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/pricing"
)

// LoadCart reads the pending order and re-prices every line at current
// rates. A line whose catalog document cannot be read keeps the total the
// server returned. The recomputed totals are local until the next write.
// While a jeweler is deciding, the submitted order is shown with its frozen
// prices instead.
func (s *Session) LoadCart(ctx context.Context) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settleLocked()
	if out := s.waiter.Status(); out.State == approval.StateWaiting {
		order, err := s.r.orders.Get(ctx, out.OrderID)
		if err != nil {
			return s.viewLocked(s.store.Snapshot(), nil), fmt.Errorf("load submitted order %s: %w", out.OrderID, err)
		}
		s.loaded = true
		return s.viewLocked(s.store.Replace(s.carryLocalLocked(cart.FromOrder(*order))), nil), nil
	}

	order, err := s.r.orders.Pending(ctx)
	if err != nil {
		return s.viewLocked(s.store.Snapshot(), nil), fmt.Errorf("load pending order: %w", err)
	}
	s.loaded = true

	if order == nil || !inCart(order.Status) {
		s.dropOrderLocked()
		return s.viewLocked(s.store.Snapshot(), nil), nil
	}

	rates := s.r.rates.FetchMetalRates(ctx)
	priced := s.r.reprice(ctx, *order, rates)
	return s.viewLocked(s.store.Replace(s.carryLocalLocked(cart.FromOrder(priced))), rates), nil
}

// carryLocalLocked keeps local-only and not-yet-persisted fields when next
// is the same order as the local one.
func (s *Session) carryLocalLocked(next cart.State) cart.State {
	prev := s.store.Snapshot()
	if prev.OrderID == next.OrderID {
		next.CollectionMethod = prev.CollectionMethod
		if s.notes.Pending() {
			next.Notes = prev.Notes
		}
		if s.serviceEdits.Pending() {
			keepServiceDescriptors(next.ServiceOrder, prev.ServiceOrder)
		}
	}
	if next.CollectionMethod == "" {
		next.CollectionMethod = models.CollectionDelivery
	}
	return next
}

// keepServiceDescriptors copies not-yet-persisted piece descriptors from
// local lines onto freshly loaded ones with the same service.
func keepServiceDescriptors(loaded, local []models.ServiceLine) {
	for i := range loaded {
		for _, l := range local {
			if l.Service == loaded[i].Service {
				loaded[i].Jewelry = append([]models.ServiceJewelry{}, l.Jewelry...)
				break
			}
		}
	}
}

func (r *Reconciler) reprice(ctx context.Context, order models.Order, rates models.MetalRateTable) models.Order {
	out := order.Clone()

	var g errgroup.Group
	g.SetLimit(r.cfg.LoadConcurrency)
	for i := range out.JewelryOrder {
		line := &out.JewelryOrder[i]
		g.Go(func() error {
			r.repriceProduct(ctx, line, rates)
			return nil
		})
	}
	for i := range out.ServiceOrder {
		line := &out.ServiceOrder[i]
		g.Go(func() error {
			r.repriceService(ctx, line)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Reconciler) repriceProduct(ctx context.Context, line *models.ProductLine, rates models.MetalRateTable) {
	qty := line.Quantity
	if qty < 1 {
		qty = 1
	}

	var unit float64
	switch line.ItemModel {
	case models.ItemModelJewelry:
		j, err := r.catalog.Jewelry(ctx, line.Item.String())
		if err != nil {
			r.log.Warn("keeping stored price, jewelry unavailable", zap.String("item", line.Item.String()), zap.Error(err))
			return
		}
		unit = pricing.JewelryPrice(*j, rates)
	case models.ItemModelCollection:
		c, err := r.catalog.Collection(ctx, line.Item.String())
		if err != nil {
			r.log.Warn("keeping stored price, collection unavailable", zap.String("item", line.Item.String()), zap.Error(err))
			return
		}
		price, ok := pricing.CollectionPrice(c, rates)
		if !ok {
			return
		}
		unit = price
	default:
		r.log.Warn("keeping stored price, unknown item model", zap.String("item_model", string(line.ItemModel)))
		return
	}

	line.TotalPrice = pricing.Round2(unit * float64(qty))
}

func (r *Reconciler) repriceService(ctx context.Context, line *models.ServiceLine) {
	svc, err := r.catalog.Service(ctx, line.Service.String())
	if err != nil {
		r.log.Warn("keeping stored price, service unavailable", zap.String("service", line.Service.String()), zap.Error(err))
		return
	}
	line.TotalPrice = pricing.Round2(pricing.ServicePrice(*svc, len(line.Jewelry)))
}
