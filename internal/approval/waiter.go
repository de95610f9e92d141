// Package approval tracks an order submitted to a jeweler until it is
// accepted, rejected, cancelled by the customer, or times out.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/logging"
	"github.com/example/karatcart/internal/models"
)

// State of a submission cycle.
type State string

const (
	StateIdle     State = "idle"
	StateWaiting  State = "waiting"
	StateTimedOut State = "timed_out"
	StateResolved State = "resolved"
)

var (
	ErrAlreadyWaiting = errors.New("approval: order is already awaiting a jeweler")
	ErrNotWaiting     = errors.New("approval: no submission is awaiting a jeweler")
	ErrNotADecision   = errors.New("approval: status is not a jeweler decision")
)

// OrderStatusAPI is the part of the orders resource the waiter needs.
type OrderStatusAPI interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
}

// Notifier is told when a jeweler lets a submission time out.
type Notifier interface {
	NotifyApprovalTimedOut(ctx context.Context, orderID, shopID string) error
}

// Outcome is a snapshot of the current or last submission cycle.
type Outcome struct {
	State       State              `json:"state"`
	OrderID     string             `json:"orderId,omitempty"`
	Decision    models.OrderStatus `json:"decision,omitempty"`
	SubmittedAt time.Time          `json:"submittedAt"`
	Deadline    time.Time          `json:"deadline"`
	FinishedAt  time.Time          `json:"finishedAt"`
}

// Options configure a Waiter.
type Options struct {
	Timeout  time.Duration
	Poll     time.Duration
	Notifier Notifier
	Logger   *zap.Logger
}

// Waiter runs one submission cycle at a time. Exactly one terminal
// transition happens per cycle and its timer is never rearmed.
type Waiter struct {
	api      OrderStatusAPI
	timeout  time.Duration
	poll     time.Duration
	notifier Notifier
	log      *zap.Logger

	mu         sync.Mutex
	cycle      uint64
	submitting bool
	outcome    Outcome
	shopID     string
	ctx        context.Context
	timer      *time.Timer
	stopPoll   chan struct{}
	done       chan struct{}
}

// NewWaiter constructs a Waiter. A zero Timeout means five minutes; a
// zero Poll disables polling.
func NewWaiter(api OrderStatusAPI, opts Options) *Waiter {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	return &Waiter{
		api:      api,
		timeout:  opts.Timeout,
		poll:     opts.Poll,
		notifier: opts.Notifier,
		log:      logging.OrNop(opts.Logger).Named("approval"),
		outcome:  Outcome{State: StateIdle},
	}
}

// Status returns the current cycle snapshot.
func (w *Waiter) Status() Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome
}

// Submit marks the order submitted and starts waiting for the jeweler.
// Remote calls made later by the timer and poller reuse ctx's values but
// not its cancellation.
func (w *Waiter) Submit(ctx context.Context, orderID, shopID string) (Outcome, error) {
	w.mu.Lock()
	if w.outcome.State == StateWaiting || w.submitting {
		out := w.outcome
		w.mu.Unlock()
		return out, ErrAlreadyWaiting
	}
	w.submitting = true
	w.mu.Unlock()

	err := w.api.UpdateStatus(ctx, orderID, models.StatusSubmitted)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return w.outcome, fmt.Errorf("submit order %s: %w", orderID, err)
	}

	now := time.Now()
	w.cycle++
	cycle := w.cycle
	w.ctx = context.WithoutCancel(ctx)
	w.shopID = shopID
	w.outcome = Outcome{
		State:       StateWaiting,
		OrderID:     orderID,
		SubmittedAt: now,
		Deadline:    now.Add(w.timeout),
	}
	w.done = make(chan struct{})
	w.timer = time.AfterFunc(w.timeout, func() { w.expire(cycle) })
	if w.poll > 0 {
		w.stopPoll = make(chan struct{})
		go w.pollLoop(cycle, w.stopPoll)
	}

	w.log.Info("order submitted for approval",
		zap.String("order_id", orderID),
		zap.String("shop_id", shopID),
		zap.Duration("timeout", w.timeout),
	)
	return w.outcome, nil
}

// Cancel withdraws the submission. The order is returned to pending
// remotely first; if that fails the cycle keeps waiting and Cancel may be
// retried.
func (w *Waiter) Cancel(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	if w.outcome.State != StateWaiting {
		out := w.outcome
		w.mu.Unlock()
		return out, ErrNotWaiting
	}
	cycle, orderID := w.cycle, w.outcome.OrderID
	w.mu.Unlock()

	if err := w.api.UpdateStatus(ctx, orderID, models.StatusPending); err != nil {
		return w.Status(), fmt.Errorf("return order %s to pending: %w", orderID, err)
	}

	outcome, ok := w.finish(cycle, StateResolved, models.StatusPending)
	if !ok {
		// the cycle ended while the order was being withdrawn
		return w.Status(), nil
	}
	w.log.Info("submission cancelled by customer", zap.String("order_id", orderID))
	return outcome, nil
}

// Respond records the jeweler's decision.
func (w *Waiter) Respond(decision models.OrderStatus) (Outcome, error) {
	if !decision.IsJewelerDecision() {
		return w.Status(), fmt.Errorf("%w: %q", ErrNotADecision, decision)
	}

	w.mu.Lock()
	cycle := w.cycle
	w.mu.Unlock()

	outcome, ok := w.finish(cycle, StateResolved, decision)
	if !ok {
		return w.Status(), ErrNotWaiting
	}
	w.log.Info("jeweler responded",
		zap.String("order_id", outcome.OrderID),
		zap.String("decision", string(decision)),
	)
	return outcome, nil
}

// Active reports whether a cycle is running or being started.
func (w *Waiter) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting || w.outcome.State == StateWaiting
}

// Wait blocks until the current cycle ends or ctx is done.
func (w *Waiter) Wait(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done == nil {
		return w.Status(), ErrNotWaiting
	}
	select {
	case <-done:
		return w.Status(), nil
	case <-ctx.Done():
		return w.Status(), ctx.Err()
	}
}

// Close stops the timer and poller of a running cycle without touching the
// remote order.
func (w *Waiter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Waiter) expire(cycle uint64) {
	w.mu.Lock()
	if cycle != w.cycle || w.outcome.State != StateWaiting {
		w.mu.Unlock()
		return
	}
	ctx, orderID, shopID := w.ctx, w.outcome.OrderID, w.shopID
	w.mu.Unlock()

	order, err := w.api.Get(ctx, orderID)
	if err != nil {
		w.log.Warn("could not read order at approval deadline, assuming no response",
			zap.String("order_id", orderID), zap.Error(err))
	} else if order.Status != models.StatusSubmitted {
		if _, ok := w.finish(cycle, StateResolved, order.Status); ok {
			w.log.Info("order left submitted state before deadline",
				zap.String("order_id", orderID), zap.String("status", string(order.Status)))
		}
		return
	}

	if _, ok := w.finish(cycle, StateTimedOut, models.StatusPending); !ok {
		return
	}

	if err := w.api.UpdateStatus(ctx, orderID, models.StatusPending); err != nil {
		w.log.Error("failed to return timed out order to pending", zap.String("order_id", orderID), zap.Error(err))
	} else {
		w.log.Info("jeweler did not respond in time, order returned to pending", zap.String("order_id", orderID))
	}

	if w.notifier != nil {
		if err := w.notifier.NotifyApprovalTimedOut(ctx, orderID, shopID); err != nil {
			w.log.Warn("timeout notification failed", zap.Error(err))
		}
	}
}

func (w *Waiter) pollLoop(cycle uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		w.mu.Lock()
		if cycle != w.cycle || w.outcome.State != StateWaiting {
			w.mu.Unlock()
			return
		}
		ctx, orderID := w.ctx, w.outcome.OrderID
		w.mu.Unlock()

		order, err := w.api.Get(ctx, orderID)
		if err != nil {
			w.log.Debug("approval poll failed", zap.String("order_id", orderID), zap.Error(err))
			continue
		}
		if order.Status.IsJewelerDecision() {
			if _, ok := w.finish(cycle, StateResolved, order.Status); ok {
				w.log.Info("jeweler responded",
					zap.String("order_id", orderID),
					zap.String("decision", string(order.Status)),
				)
			}
			return
		}
	}
}

// finish performs the single terminal transition of cycle. It reports
// false when the cycle already ended or was superseded.
func (w *Waiter) finish(cycle uint64, state State, decision models.OrderStatus) (Outcome, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if cycle != w.cycle || w.outcome.State != StateWaiting {
		return w.outcome, false
	}

	w.stopLocked()
	w.outcome.State = state
	w.outcome.Decision = decision
	w.outcome.FinishedAt = time.Now()
	close(w.done)
	return w.outcome, true
}

func (w *Waiter) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.stopPoll != nil {
		close(w.stopPoll)
		w.stopPoll = nil
	}
}
