package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/karatcart/internal/config"
	"github.com/example/karatcart/internal/handlers"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/ordering"
	"github.com/example/karatcart/internal/services"
	"github.com/example/karatcart/internal/utils"
)

const (
	testSecret    = "secret"
	webhookSecret = "hook"
)

var errMissing = &services.APIError{Method: "GET", Path: "/x", Status: 404, Body: "not found"}

type memOrders struct {
	mu    sync.Mutex
	order *models.Order
	seq   int
}

func (m *memOrders) Pending(context.Context) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil {
		return nil, nil
	}
	o := m.order.Clone()
	return &o, nil
}

func (m *memOrders) Get(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil || m.order.ID != id {
		return nil, errMissing
	}
	o := m.order.Clone()
	return &o, nil
}

func (m *memOrders) Create(_ context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.order = &models.Order{
		ID:           "o" + strconv.Itoa(m.seq),
		Shop:         req.Shop,
		JewelryOrder: models.CloneProductLines(req.JewelryOrder),
		ServiceOrder: models.CloneServiceLines(req.ServiceOrder),
		Status:       models.StatusPending,
	}
	o := m.order.Clone()
	return &o, nil
}

func (m *memOrders) Update(_ context.Context, id string, req models.UpdateOrderRequest) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil || m.order.ID != id {
		return nil, errMissing
	}
	if req.JewelryOrder != nil {
		m.order.JewelryOrder = models.CloneProductLines(*req.JewelryOrder)
	}
	if req.ServiceOrder != nil {
		m.order.ServiceOrder = models.CloneServiceLines(*req.ServiceOrder)
	}
	if req.Notes != nil {
		m.order.Notes = *req.Notes
	}
	if req.Shop != nil {
		m.order.Shop = *req.Shop
	}
	o := m.order.Clone()
	return &o, nil
}

func (m *memOrders) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil || m.order.ID != id {
		return errMissing
	}
	m.order = nil
	return nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, status models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil || m.order.ID != id {
		return errMissing
	}
	m.order.Status = status
	return nil
}

type memCatalog struct{}

func (memCatalog) Jewelry(_ context.Context, id string) (*models.Jewelry, error) {
	switch id {
	case "j1":
		return &models.Jewelry{ID: "j1", Name: "Ring", Shop: "shop-a", OriginPrice: 100,
			PreciousMaterials: []models.PreciousMaterial{{Name: "gold", Karat: "18", Weight: 5}}}, nil
	case "j2":
		return &models.Jewelry{ID: "j2", Shop: "shop-b", OriginPrice: 40}, nil
	}
	return nil, errMissing
}

func (memCatalog) Collection(_ context.Context, id string) (*models.Collection, error) {
	if id == "empty" {
		return &models.Collection{ID: "empty", Shop: "shop-a"}, nil
	}
	return nil, errMissing
}

func (memCatalog) Service(_ context.Context, id string) (*models.Service, error) {
	if id == "s1" {
		return &models.Service{ID: "s1", Shop: "shop-a", Price: 15}, nil
	}
	return nil, errMissing
}

type staticRates struct{}

func (staticRates) FetchMetalRates(context.Context) models.MetalRateTable {
	return models.MetalRateTable{"gold": 20}
}

type testServer struct {
	app      *fiber.App
	sessions *ordering.Sessions
	orders   *memOrders
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	orders := &memOrders{}
	reconciler := ordering.NewReconciler(orders, memCatalog{}, staticRates{}, nil, ordering.Config{
		EditDebounce: time.Hour,
		WaitTimeout:  time.Hour,
	}, nil)
	sessions := ordering.NewSessions(reconciler)
	t.Cleanup(sessions.Close)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zap.NewNop())})
	Register(app, &config.Config{JWTSecret: testSecret, WebhookSecret: webhookSecret}, reconciler, sessions)

	token, err := utils.GenerateToken(testSecret, "cust-1", time.Hour)
	require.NoError(t, err)
	return &testServer{app: app, sessions: sessions, orders: orders, token: token}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, body string, auth bool) (int, envelope) {
	t.Helper()
	headers := map[string]string{}
	if auth {
		headers["Authorization"] = "Bearer " + s.token
	}
	return s.doWith(t, method, path, body, headers)
}

func (s *testServer) doWith(t *testing.T, method, path, body string, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env
}

func TestPublicPricing(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "GET", "/api/rates", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"gold":20}`, string(env.Data))

	status, env = s.do(t, "GET", "/api/prices/jewelry/j1", "", false)
	assert.Equal(t, fiber.StatusOK, status)
	var price struct {
		Price     float64 `json:"price"`
		Formatted string  `json:"formatted"`
		Shop      string  `json:"shop"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &price))
	assert.InDelta(t, 200, price.Price, 1e-9)
	assert.Equal(t, "200.00", price.Formatted)
	assert.Equal(t, "shop-a", price.Shop)

	status, _ = s.do(t, "GET", "/api/prices/jewelry/nope", "", false)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "GET", "/api/prices/collections/empty", "", false)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestCartRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "GET", "/api/cart", "", false)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.False(t, env.Success)
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "POST", "/api/cart/jewelry", `{"id":"j1"}`, true)
	require.Equal(t, fiber.StatusCreated, status, env.Message)

	status, env = s.do(t, "POST", "/api/cart/jewelry", `{"id":"j2"}`, true)
	assert.Equal(t, fiber.StatusConflict, status)
	var conflict ordering.AddResult
	require.NoError(t, json.Unmarshal(env.Data, &conflict))
	assert.Equal(t, ordering.OutcomeConflict, conflict.Outcome)
	require.NotNil(t, conflict.Conflict)
	assert.Equal(t, models.Ref("shop-b"), conflict.Conflict.ItemShop)

	status, _ = s.do(t, "POST", "/api/cart/resolve", `{"choice":"cancel"}`, true)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, "POST", "/api/cart/resolve", `{"choice":"cancel"}`, true)
	assert.Equal(t, fiber.StatusConflict, status, "nothing left to resolve")

	status, _ = s.do(t, "PUT", "/api/cart/lines/quantity", `{"id":"j1","itemModel":"Jewelry","quantity":2}`, true)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = s.do(t, "PUT", "/api/cart/lines/quantity", `{"id":"j1","itemModel":"Jewelry","quantity":0}`, true)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env = s.do(t, "GET", "/api/cart", "", true)
	require.Equal(t, fiber.StatusOK, status)
	var view ordering.CartView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.InDelta(t, 400, view.Totals.Subtotal, 1e-9)
	assert.InDelta(t, 445, view.Totals.Total, 1e-9)

	status, _ = s.do(t, "DELETE", "/api/cart/lines", `{"kind":"product","id":"j1","itemModel":"Jewelry"}`, true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, s.orders.order, "removing the last line deletes the order")

	status, _ = s.do(t, "DELETE", "/api/cart/lines", `{"kind":"product","id":"j1","itemModel":"Jewelry"}`, true)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestSubmissionRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/cart/submit", "", true)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "POST", "/api/cart/services", `{"id":"s1","jewelry":[{"name":"ring"}]}`, true)
	require.Equal(t, fiber.StatusCreated, status)

	status, env := s.do(t, "POST", "/api/cart/submit", "", true)
	require.Equal(t, fiber.StatusAccepted, status, env.Message)

	status, env = s.do(t, "GET", "/api/cart/submit", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"state":"waiting"`)

	status, _ = s.do(t, "PUT", "/api/cart/notes", `{"notes":"late"}`, true)
	assert.Equal(t, fiber.StatusConflict, status)

	status, env = s.do(t, "POST", "/api/cart/submit/cancel", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"state":"resolved"`)
	assert.Equal(t, models.StatusPending, s.orders.order.Status)
}

func TestOrderDecisionWebhook(t *testing.T) {
	s := newTestServer(t)
	hook := map[string]string{"X-Webhook-Secret": webhookSecret}
	body := `{"customerId":"cust-1","orderId":"o1","status":"accepted"}`

	status, _ := s.doWith(t, "POST", "/api/webhooks/order-decision", body, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.doWith(t, "POST", "/api/webhooks/order-decision", body, hook)
	assert.Equal(t, fiber.StatusConflict, status, "no session for the customer yet")

	status, _ = s.do(t, "POST", "/api/cart/jewelry", `{"id":"j1"}`, true)
	require.Equal(t, fiber.StatusCreated, status)
	status, _ = s.do(t, "POST", "/api/cart/submit", "", true)
	require.Equal(t, fiber.StatusAccepted, status)

	status, _ = s.doWith(t, "POST", "/api/webhooks/order-decision",
		`{"customerId":"cust-1","orderId":"o1","status":"processing"}`, hook)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env := s.doWith(t, "POST", "/api/webhooks/order-decision", body, hook)
	require.Equal(t, fiber.StatusOK, status, env.Message)
	assert.Contains(t, string(env.Data), `"decision":"accepted"`)

	status, env = s.do(t, "GET", "/api/cart/submit", "", true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), `"state":"resolved"`)

	status, env = s.do(t, "GET", "/api/cart", "", true)
	require.Equal(t, fiber.StatusOK, status)
	var view ordering.CartView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Order.OrderID, "an accepted order is no longer the cart")
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zap.NewNop())})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db password leaked") })

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "password")
}
