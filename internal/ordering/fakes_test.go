package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/pricing"
	"github.com/example/karatcart/internal/services"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errNotFound = errors.New("not found")

type fakeOrders struct {
	mu        sync.Mutex
	order     *models.Order
	nextID    int
	calls     []string
	creates   []models.CreateOrderRequest
	updates   []models.UpdateOrderRequest
	statuses  []models.OrderStatus
	archived  []models.Order
	updateErr error
	statusErr error

	statusEntered chan struct{}
	statusRelease chan struct{}
}

func (f *fakeOrders) Pending(context.Context) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "pending")
	if f.order == nil || (f.order.Status != "" && f.order.Status != models.StatusPending) {
		return nil, nil
	}
	o := f.order.Clone()
	return &o, nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "get")
	if f.order == nil || f.order.ID != id {
		return nil, errNotFound
	}
	o := f.order.Clone()
	return &o, nil
}

func (f *fakeOrders) Create(_ context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	f.creates = append(f.creates, req)
	if f.order != nil {
		f.archived = append(f.archived, f.order.Clone())
	}
	f.nextID++
	f.order = &models.Order{
		ID:               fmt.Sprintf("o%d", f.nextID),
		Shop:             req.Shop,
		JewelryOrder:     models.CloneProductLines(req.JewelryOrder),
		ServiceOrder:     models.CloneServiceLines(req.ServiceOrder),
		Status:           models.StatusPending,
		CollectionMethod: req.CollectionMethod,
		TotalPrice:       req.TotalPrice,
	}
	o := f.order.Clone()
	return &o, nil
}

func (f *fakeOrders) Update(_ context.Context, id string, req models.UpdateOrderRequest) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	f.updates = append(f.updates, req)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.order == nil || f.order.ID != id {
		return nil, errNotFound
	}
	if req.JewelryOrder != nil {
		f.order.JewelryOrder = models.CloneProductLines(*req.JewelryOrder)
	}
	if req.ServiceOrder != nil {
		f.order.ServiceOrder = models.CloneServiceLines(*req.ServiceOrder)
	}
	if req.Notes != nil {
		f.order.Notes = *req.Notes
	}
	if req.Shop != nil {
		f.order.Shop = *req.Shop
	}
	o := f.order.Clone()
	return &o, nil
}

func (f *fakeOrders) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "cancel")
	if f.order == nil || f.order.ID != id {
		return errNotFound
	}
	f.order = nil
	return nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	f.mu.Lock()
	entered, release := f.statusEntered, f.statusRelease
	f.mu.Unlock()
	if release != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "status:"+string(status))
	if f.statusErr != nil {
		return f.statusErr
	}
	if f.order == nil || f.order.ID != id {
		return errNotFound
	}
	f.statuses = append(f.statuses, status)
	f.order.Status = status
	return nil
}

func (f *fakeOrders) seed(o models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = &o
}

// setStatus changes the remote status as the jeweler's side would.
func (f *fakeOrders) setStatus(status models.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order.Status = status
}

func (f *fakeOrders) failStatusUpdates(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

func (f *fakeOrders) archivedOrders() []models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Order{}, f.archived...)
}

func (f *fakeOrders) current() *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return nil
	}
	o := f.order.Clone()
	return &o
}

func (f *fakeOrders) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func (f *fakeOrders) recordedUpdates() []models.UpdateOrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.UpdateOrderRequest{}, f.updates...)
}

func (f *fakeOrders) countCalls(name string) int {
	n := 0
	for _, c := range f.recordedCalls() {
		if c == name {
			n++
		}
	}
	return n
}

type fakeCatalog struct {
	mu          sync.Mutex
	jewelry     map[string]models.Jewelry
	collections map[string]models.Collection
	services    map[string]models.Service
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		jewelry: map[string]models.Jewelry{
			"j1": {ID: "j1", Shop: "shop-a", OriginPrice: 100, PreciousMaterials: []models.PreciousMaterial{{Name: "gold", Karat: "18", Weight: 5}}},
			"j2": {ID: "j2", Shop: "shop-b", OriginPrice: 40},
			"j3": {ID: "j3", Shop: "shop-a", OriginPrice: 60},
		},
		collections: map[string]models.Collection{
			"c1": {
				ID:          "c1",
				Shop:        "shop-a",
				OriginPrice: 50,
				Jewelry: []models.Jewelry{
					{OriginPrice: 100, PreciousMaterials: []models.PreciousMaterial{{Name: "gold", Karat: "18", Weight: 5}}},
					{OriginPrice: 120, PreciousMaterials: []models.PreciousMaterial{{Name: "platinum", Karat: "24", Weight: 1}}},
				},
			},
		},
		services: map[string]models.Service{
			"s1": {ID: "s1", Shop: "shop-a", Price: 15},
		},
	}
}

func (c *fakeCatalog) Jewelry(_ context.Context, id string) (*models.Jewelry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	j, ok := c.jewelry[id]
	if !ok {
		return nil, errNotFound
	}
	return &j, nil
}

func (c *fakeCatalog) Collection(_ context.Context, id string) (*models.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.collections[id]
	if !ok {
		return nil, errNotFound
	}
	return &col, nil
}

func (c *fakeCatalog) Service(_ context.Context, id string) (*models.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.services[id]
	if !ok {
		return nil, errNotFound
	}
	return &s, nil
}

type fixedRates models.MetalRateTable

func (r fixedRates) FetchMetalRates(context.Context) models.MetalRateTable {
	return models.MetalRateTable(r).Clone()
}

type fakeNotifier struct {
	mu        sync.Mutex
	submitted []services.SubmissionNotification
	timedOut  []string
}

func (n *fakeNotifier) NotifyOrderSubmitted(_ context.Context, s services.SubmissionNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submitted = append(n.submitted, s)
	return nil
}

func (n *fakeNotifier) NotifyApprovalTimedOut(_ context.Context, orderID, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timedOut = append(n.timedOut, orderID)
	return nil
}

type harness struct {
	session  *Session
	orders   *fakeOrders
	catalog  *fakeCatalog
	notifier *fakeNotifier
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = time.Minute
	}
	if cfg.EditDebounce == 0 {
		cfg.EditDebounce = time.Hour
	}
	cfg.Totals = pricing.DefaultTotalsPolicy()

	h := &harness{
		orders:   &fakeOrders{},
		catalog:  newFakeCatalog(),
		notifier: &fakeNotifier{},
	}
	r := NewReconciler(h.orders, h.catalog, fixedRates{"gold": 20, "platinum": 30}, h.notifier, cfg, nil)
	h.session = r.NewSession("c1")
	t.Cleanup(func() {
		h.session.notes.Stop()
		h.session.serviceEdits.Stop()
		h.session.waiter.Close()
	})
	return h
}
