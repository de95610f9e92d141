package ordering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/approval"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/pricing"
	"github.com/example/karatcart/internal/services"
)

// Submit freezes the current line prices on the remote order and hands it
// to the jeweler for approval.
func (s *Session) Submit(ctx context.Context) (approval.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardLocked(ctx); err != nil {
		return s.waiter.Status(), err
	}
	state := s.store.Snapshot()
	if !state.HasOrder() || state.IsEmpty() {
		return s.waiter.Status(), ErrNoOrder
	}

	s.notes.Stop()
	s.serviceEdits.Stop()

	products := state.JewelryOrder
	serviceLines := state.ServiceOrder
	notes := state.Notes
	state, err := s.pushLocked(ctx, state, models.UpdateOrderRequest{
		JewelryOrder: &products,
		ServiceOrder: &serviceLines,
		Notes:        &notes,
	}, state.Shop)
	if err != nil {
		return s.waiter.Status(), fmt.Errorf("freeze order prices: %w", err)
	}

	out, err := s.waiter.Submit(ctx, state.OrderID, state.Shop.String())
	if err != nil {
		return out, err
	}
	state.Status = models.StatusSubmitted
	state = s.store.Replace(state)

	if s.r.notifier != nil {
		lines := state.Lines()
		totals := pricing.CartTotals(lines, state.CollectionMethod, s.r.cfg.Totals)
		err := s.r.notifier.NotifyOrderSubmitted(ctx, services.SubmissionNotification{
			OrderID:    state.OrderID,
			ShopID:     state.Shop.String(),
			CustomerID: s.customerID,
			Lines:      len(lines),
			Total:      totals.Total,
			Timeout:    out.Deadline.Sub(out.SubmittedAt),
		})
		if err != nil {
			s.log.Warn("submission notification failed", zap.Error(err))
		}
	}
	return out, nil
}

// CancelSubmission withdraws a submission that is still awaiting the
// jeweler and returns the order to pending.
func (s *Session) CancelSubmission(ctx context.Context) (approval.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.waiter.Cancel(ctx)
	if err != nil {
		return out, err
	}
	s.settleLocked()
	return out, nil
}

// RecordDecision applies a jeweler decision pushed by the marketplace. It
// is ignored unless orderID is the order awaiting approval.
func (s *Session) RecordDecision(orderID string, decision models.OrderStatus) (approval.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.waiter.Status()
	if current.State != approval.StateWaiting || current.OrderID != orderID {
		return current, approval.ErrNotWaiting
	}
	out, err := s.waiter.Respond(decision)
	if err != nil {
		return out, err
	}
	s.settleLocked()
	return out, nil
}

// SubmissionStatus reports the current or last approval cycle.
func (s *Session) SubmissionStatus() approval.Outcome {
	return s.waiter.Status()
}

// WaitSubmission blocks until the running approval cycle ends or ctx is done.
func (s *Session) WaitSubmission(ctx context.Context) (approval.Outcome, error) {
	return s.waiter.Wait(ctx)
}
