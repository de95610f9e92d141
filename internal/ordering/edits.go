package ordering

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/cart"
	"github.com/example/karatcart/internal/models"
)

// UpdateNotes changes the order notes locally and persists them once the
// customer stops typing for the configured quiet period.
func (s *Session) UpdateNotes(ctx context.Context, notes string) (cart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ctx); err != nil {
		return s.store.Snapshot(), err
	}
	next := s.store.Snapshot()
	if !next.HasOrder() {
		return next, ErrNoOrder
	}
	next.Notes = notes
	next = s.store.Replace(next)

	bg := context.WithoutCancel(ctx)
	s.notes.Schedule(func() { s.persistNotes(bg) })
	return next, nil
}

// EditServiceLine replaces the piece descriptors of a service line. When
// the number of pieces changes the line total scales with it. The write is
// debounced like notes.
func (s *Session) EditServiceLine(ctx context.Context, serviceID models.Ref, jewelry []models.ServiceJewelry) (cart.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ctx); err != nil {
		return s.store.Snapshot(), err
	}
	next := s.store.Snapshot()
	if !next.HasOrder() {
		return next, ErrNoOrder
	}

	idx := -1
	for i, sl := range next.ServiceOrder {
		if sl.Service == serviceID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return next, ErrLineNotFound
	}

	line := &next.ServiceOrder[idx]
	if len(jewelry) != len(line.Jewelry) {
		line.TotalPrice = scaleTotal(line.TotalPrice, len(line.Jewelry), max(len(jewelry), 1))
	}
	line.Jewelry = append([]models.ServiceJewelry{}, jewelry...)
	next = s.store.Replace(next)

	bg := context.WithoutCancel(ctx)
	s.serviceEdits.Schedule(func() { s.persistServiceLines(bg) })
	return next, nil
}

func (s *Session) persistNotes(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.store.Snapshot()
	if !state.HasOrder() {
		return
	}
	notes := state.Notes
	if _, err := s.r.orders.Update(ctx, state.OrderID, models.UpdateOrderRequest{Notes: &notes}); err != nil {
		s.log.Error("failed to save order notes", zap.String("order_id", state.OrderID), zap.Error(err))
		return
	}
	s.log.Debug("order notes saved", zap.String("order_id", state.OrderID))
}

func (s *Session) persistServiceLines(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.store.Snapshot()
	if !state.HasOrder() {
		return
	}
	services := state.ServiceOrder
	if _, err := s.r.orders.Update(ctx, state.OrderID, models.UpdateOrderRequest{ServiceOrder: &services}); err != nil {
		s.log.Error("failed to save service lines", zap.String("order_id", state.OrderID), zap.Error(err))
		return
	}
	s.log.Debug("service lines saved", zap.String("order_id", state.OrderID))
}
