package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/example/karatcart/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOrders struct {
	mu        sync.Mutex
	status    models.OrderStatus
	getErr    error
	updateErr error
	updates   []models.OrderStatus
	gets      int
	entered   chan struct{}
	release   chan struct{}
}

func (f *fakeOrders) Get(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.Order{ID: id, Status: f.status}, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, _ string, status models.OrderStatus) error {
	f.mu.Lock()
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if release != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, status)
	f.status = status
	return nil
}

func (f *fakeOrders) setStatus(s models.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeOrders) currentStatus() models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeOrders) failUpdates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateErr = err
}

func (f *fakeOrders) recorded() []models.OrderStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderStatus{}, f.updates...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) NotifyApprovalTimedOut(_ context.Context, orderID, shopID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, orderID+"@"+shopID)
	return nil
}

func waitFor(t *testing.T, w *Waiter) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := w.Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestTimeoutForcesPending(t *testing.T) {
	api := &fakeOrders{}
	notifier := &fakeNotifier{}
	w := NewWaiter(api, Options{Timeout: 20 * time.Millisecond, Notifier: notifier})

	out, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, out.State)

	out = waitFor(t, w)
	assert.Equal(t, StateTimedOut, out.State)
	assert.Equal(t, models.StatusPending, out.Decision)

	require.Eventually(t, func() bool { return len(api.recorded()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.OrderStatus{models.StatusSubmitted, models.StatusPending}, api.recorded())
	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestJewelerResponseBeforeTimeoutClearsTimer(t *testing.T) {
	api := &fakeOrders{}
	w := NewWaiter(api, Options{Timeout: 30 * time.Millisecond})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)

	api.setStatus(models.StatusAccepted)
	out, err := w.Respond(models.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, models.StatusAccepted, out.Decision)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []models.OrderStatus{models.StatusSubmitted}, api.recorded(), "force-pending must never run")
	assert.Equal(t, StateResolved, w.Status().State)
}

func TestPollingObservesDecision(t *testing.T) {
	api := &fakeOrders{}
	w := NewWaiter(api, Options{Timeout: time.Second, Poll: 5 * time.Millisecond})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)
	api.setStatus(models.StatusRejected)

	out := waitFor(t, w)
	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, models.StatusRejected, out.Decision)
	assert.Equal(t, []models.OrderStatus{models.StatusSubmitted}, api.recorded())
}

func TestCancelResolvesImmediately(t *testing.T) {
	api := &fakeOrders{}
	w := NewWaiter(api, Options{Timeout: 30 * time.Millisecond})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)

	out, err := w.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateResolved, out.State)

	_, err = w.Cancel(context.Background())
	assert.ErrorIs(t, err, ErrNotWaiting)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []models.OrderStatus{models.StatusSubmitted, models.StatusPending}, api.recorded())
	assert.Equal(t, StateResolved, w.Status().State, "timeout must not fire after cancel")
}

func TestStatusChangedElsewhereResolvesAtDeadline(t *testing.T) {
	api := &fakeOrders{}
	w := NewWaiter(api, Options{Timeout: 10 * time.Millisecond})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)
	api.setStatus(models.StatusAccepted)

	out := waitFor(t, w)
	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, models.StatusAccepted, out.Decision)
	assert.Equal(t, []models.OrderStatus{models.StatusSubmitted}, api.recorded())
}

func TestReadFailureAtDeadlineStillTimesOut(t *testing.T) {
	api := &fakeOrders{getErr: errors.New("backend down")}
	w := NewWaiter(api, Options{Timeout: 10 * time.Millisecond})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)

	out := waitFor(t, w)
	assert.Equal(t, StateTimedOut, out.State)
	require.Eventually(t, func() bool { return len(api.recorded()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestSubmitGuards(t *testing.T) {
	api := &fakeOrders{}
	w := NewWaiter(api, Options{Timeout: time.Minute})
	defer w.Close()

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)

	_, err = w.Submit(context.Background(), "o1", "shop-a")
	assert.ErrorIs(t, err, ErrAlreadyWaiting)

	_, err = w.Respond(models.StatusProcessing)
	assert.ErrorIs(t, err, ErrNotADecision)
}

func TestSubmitFailureStaysIdle(t *testing.T) {
	api := &fakeOrders{updateErr: errors.New("boom")}
	w := NewWaiter(api, Options{Timeout: time.Minute})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.Error(t, err)
	assert.Equal(t, StateIdle, w.Status().State)

	_, err = w.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNotWaiting)
}

func TestResubmitAfterTimeout(t *testing.T) {
	api := &fakeOrders{}
	w := NewWaiter(api, Options{Timeout: 10 * time.Millisecond})

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)
	waitFor(t, w)
	require.Eventually(t, func() bool { return len(api.recorded()) == 2 }, time.Second, 5*time.Millisecond)

	out, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, out.State)

	_, err = w.Respond(models.StatusAccepted)
	require.NoError(t, err)
}

func TestCancelFailureKeepsWaiting(t *testing.T) {
	api := &fakeOrders{}
	notifier := &fakeNotifier{}
	w := NewWaiter(api, Options{Timeout: time.Minute, Notifier: notifier})
	defer w.Close()

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	require.NoError(t, err)

	api.failUpdates(errors.New("backend down"))
	out, err := w.Cancel(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateWaiting, out.State)
	assert.Equal(t, StateWaiting, w.Status().State)
	assert.Equal(t, models.StatusSubmitted, api.currentStatus(), "remote order is still submitted")

	api.failUpdates(nil)
	out, err = w.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, models.StatusPending, out.Decision)
	assert.Equal(t, []models.OrderStatus{models.StatusSubmitted, models.StatusPending}, api.recorded())
}

func TestSlowSubmitDoesNotBlockStatus(t *testing.T) {
	api := &fakeOrders{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewWaiter(api, Options{Timeout: time.Minute})
	defer w.Close()

	submitted := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), "o1", "shop-a")
		submitted <- err
	}()
	<-api.entered

	statusRead := make(chan Outcome, 1)
	go func() { statusRead <- w.Status() }()
	select {
	case out := <-statusRead:
		assert.Equal(t, StateIdle, out.State)
	case <-time.After(time.Second):
		t.Fatal("Status blocked behind a remote submit")
	}
	assert.True(t, w.Active())

	_, err := w.Submit(context.Background(), "o1", "shop-a")
	assert.ErrorIs(t, err, ErrAlreadyWaiting)

	close(api.release)
	require.NoError(t, <-submitted)
	assert.Equal(t, StateWaiting, w.Status().State)
}
