package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	ordergrpc "github.com/example/orderdesk/pkg/grpc"
	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/session"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSubmitter struct {
	mu  sync.Mutex
	n   int
	err error
}

func (s *stubSubmitter) SubmitOrder(_ context.Context, d wizard.Draft) (models.OrderConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.OrderConfirmation{}, s.err
	}
	s.n++
	totals := d.Cart.Totals(wizard.DefaultPolicy().TaxRate)
	return models.OrderConfirmation{
		OrderID:  fmt.Sprintf("order-%d", s.n),
		Status:   models.OrderStatusPlaced,
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Total:    totals.Total,
	}, nil
}

type stubLookup struct {
	orders map[string]ordergrpc.OrderHistory
	err    error
}

func (s *stubLookup) GetOrder(_ context.Context, id string) (models.OrderConfirmation, error) {
	if s.err != nil {
		return models.OrderConfirmation{}, s.err
	}
	h, ok := s.orders[id]
	if !ok {
		return models.OrderConfirmation{}, fmt.Errorf("failed to get order %s: %w", id, status.Error(codes.NotFound, "order not found"))
	}
	return h.Order, nil
}

func (s *stubLookup) GetOrderHistory(ctx context.Context, id string) (ordergrpc.OrderHistory, error) {
	if _, err := s.GetOrder(ctx, id); err != nil {
		return ordergrpc.OrderHistory{}, err
	}
	return s.orders[id], nil
}

func newTestGateway(t *testing.T, sub session.Submitter) *Gateway {
	return newTestGatewayWith(t, sub, &stubLookup{})
}

func newTestGatewayWith(t *testing.T, sub session.Submitter, orders OrderLookup) *Gateway {
	t.Helper()
	cfg := &config.Config{
		Gateway: config.GatewayConfig{Host: "localhost", Port: 8080, CORSOrigins: []string{"*"}},
	}
	mgr := session.NewManager(actor.NewActorSystem(), config.WizardConfig{}, wizard.DefaultPolicy(),
		catalog.NewFixture(), sub, zap.NewNop())
	t.Cleanup(mgr.Shutdown)

	gw := NewGateway(cfg, zap.NewNop(), mgr, catalog.NewFixture(), orders)
	gw.SetupRoutes()
	return gw
}

func call(t *testing.T, gw *Gateway, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)
	return w
}

func snapshotOf(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap), w.Body.String())
	return snap
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func mustOK(t *testing.T, w *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return snapshotOf(t, w)
}

func createSession(t *testing.T, gw *Gateway) string {
	t.Helper()
	w := call(t, gw, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	snap := snapshotOf(t, w)
	assert.Equal(t, "/api/v1/sessions/"+snap.ID, w.Header().Get("Location"))
	return snap.ID
}

func toCheckout(t *testing.T, gw *Gateway) string {
	t.Helper()
	id := createSession(t, gw)
	base := "/api/v1/sessions/" + id

	mustOK(t, call(t, gw, http.MethodPut, base+"/customer", map[string]string{"id": "1"}))
	mustOK(t, call(t, gw, http.MethodPost, base+"/next", nil))
	mustOK(t, call(t, gw, http.MethodPut, base+"/restaurant", map[string]string{"id": "1"}))
	mustOK(t, call(t, gw, http.MethodPut, base+"/menu", map[string]string{"id": "2"}))
	mustOK(t, call(t, gw, http.MethodPost, base+"/next", nil))
	mustOK(t, call(t, gw, http.MethodPost, base+"/cart/items", map[string]string{"item_id": "1"}))
	mustOK(t, call(t, gw, http.MethodPost, base+"/cart/items", map[string]string{"item_id": "1"}))
	mustOK(t, call(t, gw, http.MethodPost, base+"/cart/items", map[string]string{"item_id": "4"}))
	mustOK(t, call(t, gw, http.MethodPost, base+"/next", nil))
	return id
}

func TestOrderFlow(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := toCheckout(t, gw)
	base := "/api/v1/sessions/" + id

	snap := mustOK(t, call(t, gw, http.MethodGet, base, nil))
	assert.Equal(t, wizard.StepPaymentDelivery, snap.Step)
	assert.Equal(t, "35.6155", snap.Totals.Total.String())
	assert.False(t, snap.CanSubmit)

	w := call(t, gw, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "validation_blocked", errorOf(t, w).Code)

	snap = mustOK(t, call(t, gw, http.MethodPut, base+"/checkout", map[string]string{
		"payment_method":  "myt",
		"delivery_option": "pickup",
		"allergies":       "gluten",
	}))
	assert.True(t, snap.CanSubmit)
	assert.Equal(t, "gluten", snap.Draft.Allergies)

	snap = mustOK(t, call(t, gw, http.MethodPost, base+"/submit", nil))
	require.NotNil(t, snap.Confirmed)
	assert.Equal(t, "order-1", snap.Confirmed.OrderID)
	assert.Equal(t, "35.6155", snap.Confirmed.Total.String())
	assert.Equal(t, wizard.StepCustomer, snap.Step)
	assert.True(t, snap.Draft.Cart.IsEmpty())
}

func TestCartLineRoutes(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := toCheckout(t, gw)
	base := "/api/v1/sessions/" + id

	snap := mustOK(t, call(t, gw, http.MethodPost, base+"/prev", nil))
	require.Equal(t, wizard.StepOrder, snap.Step)
	lineID := snap.Draft.Cart[0].ID

	snap = mustOK(t, call(t, gw, http.MethodPatch, base+"/cart/lines/"+lineID, map[string]interface{}{"quantity": 5, "notes": "extra dressing"}))
	assert.Equal(t, 5, snap.Draft.Cart[0].Quantity)
	assert.Equal(t, "extra dressing", snap.Draft.Cart[0].Notes)

	w := call(t, gw, http.MethodPatch, base+"/cart/lines/"+lineID, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, gw, http.MethodPatch, base+"/cart/lines/"+lineID, map[string]interface{}{"quantity": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_quantity", errorOf(t, w).Code)

	w = call(t, gw, http.MethodDelete, base+"/cart/lines/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_line", errorOf(t, w).Code)

	snap = mustOK(t, call(t, gw, http.MethodDelete, base+"/cart/lines/"+lineID, nil))
	assert.Equal(t, 1, snap.Draft.Cart.LineCount())

	snap = mustOK(t, call(t, gw, http.MethodPut, base+"/category", map[string]string{"id": "4"}))
	require.Len(t, snap.Order.Items, 1)
	assert.Equal(t, "Fresh Juice", snap.Order.Items[0].Name)
}

func TestChangeGuardRoutes(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := toCheckout(t, gw)
	base := "/api/v1/sessions/" + id

	mustOK(t, call(t, gw, http.MethodPost, base+"/prev", nil))
	mustOK(t, call(t, gw, http.MethodPost, base+"/prev", nil))
	snap := mustOK(t, call(t, gw, http.MethodPost, base+"/prev", nil))
	require.Equal(t, wizard.StepCustomer, snap.Step)

	snap = mustOK(t, call(t, gw, http.MethodPut, base+"/customer", map[string]string{"id": "3"}))
	require.NotNil(t, snap.Pending)
	assert.Equal(t, wizard.ChangeCustomer, snap.Pending.Kind)
	assert.Equal(t, "Mike Johnson", snap.Pending.Target)

	w := call(t, gw, http.MethodPost, base+"/next", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := errorOf(t, w)
	assert.Equal(t, "change_pending", resp.Code)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "1", resp.Session.Draft.Customer.ID)

	snap = mustOK(t, call(t, gw, http.MethodPost, base+"/change/confirm", nil))
	assert.Equal(t, "3", snap.Draft.Customer.ID)
	assert.Nil(t, snap.Draft.Restaurant)
	assert.True(t, snap.Draft.Cart.IsEmpty())

	w = call(t, gw, http.MethodPost, base+"/change/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_pending_change", errorOf(t, w).Code)
}

func TestErrorMapping(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := createSession(t, gw)
	base := "/api/v1/sessions/" + id

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", nil, http.StatusNotFound, "session_not_found"},
		{"next blocked", http.MethodPost, base + "/next", nil, http.StatusConflict, "validation_blocked"},
		{"unknown customer", http.MethodPut, base + "/customer", map[string]string{"id": "42"}, http.StatusNotFound, "not_found"},
		{"wrong step", http.MethodPut, base + "/menu", map[string]string{"id": "1"}, http.StatusConflict, "wrong_step"},
		{"missing item id", http.MethodPost, base + "/cart/items", map[string]string{}, http.StatusBadRequest, "bad_request"},
		{"wrong step checkout", http.MethodPut, base + "/checkout", map[string]string{"payment_method": "card"}, http.StatusConflict, "wrong_step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, gw, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorOf(t, w).Code)
		})
	}

	req := httptest.NewRequest(http.MethodPut, base+"/customer", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	gw.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownPaymentMethod(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := toCheckout(t, gw)

	w := call(t, gw, http.MethodPut, "/api/v1/sessions/"+id+"/checkout", map[string]string{"payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_option", errorOf(t, w).Code)
}

func TestSubmitFailure(t *testing.T) {
	sub := &stubSubmitter{err: fmt.Errorf("%w: connection refused", ordergrpc.ErrSubmissionFailed)}
	gw := newTestGateway(t, sub)
	id := toCheckout(t, gw)
	base := "/api/v1/sessions/" + id

	mustOK(t, call(t, gw, http.MethodPut, base+"/checkout", map[string]string{"payment_method": "bank", "delivery_option": "delivery"}))

	w := call(t, gw, http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := errorOf(t, w)
	assert.Equal(t, "submission_failed", resp.Code)
	require.NotNil(t, resp.Session)
	assert.Equal(t, wizard.StepPaymentDelivery, resp.Session.Step)
	assert.Contains(t, resp.Session.LastError, "connection refused")
	assert.Equal(t, 2, resp.Session.Draft.Cart.LineCount())
}

func TestDeleteSession(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := createSession(t, gw)

	w := call(t, gw, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = call(t, gw, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearchRoutes(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	id := createSession(t, gw)
	base := "/api/v1/sessions/" + id

	snap := mustOK(t, call(t, gw, http.MethodGet, base+"/customers?q=8902", nil))
	require.Len(t, snap.Customers.Results, 1)
	assert.Equal(t, "Mike Johnson", snap.Customers.Results[0].Name)

	w := call(t, gw, http.MethodGet, base+"/restaurants?q=sushi", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	mustOK(t, call(t, gw, http.MethodPut, base+"/customer", map[string]string{"id": "3"}))
	mustOK(t, call(t, gw, http.MethodPost, base+"/next", nil))
	snap = mustOK(t, call(t, gw, http.MethodGet, base+"/restaurants?q=sushi", nil))
	require.Len(t, snap.Restaurants.Results, 1)
	assert.Equal(t, "Japanese", snap.Restaurants.Results[0].Cuisine)
}

func TestCatalogRoutesServeHTTPCatalog(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})
	srv := httptest.NewServer(gw.Handler())
	defer srv.Close()

	remote := catalog.NewHTTPCatalog(config.CatalogConfig{BaseURL: srv.URL})
	ctx := context.Background()

	customers, err := remote.ListCustomers(ctx, "jane")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "jane@example.com", customers[0].Email)

	menus, err := remote.ListMenus(ctx, "2")
	require.NoError(t, err)
	require.Len(t, menus, 3)
	assert.Equal(t, "2", menus[0].RestaurantID)

	items, err := remote.ListMenuItems(ctx, "1")
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "12.99", items[0].Price.String())
	assert.Equal(t, "1", items[0].MenuID)

	w := call(t, gw, http.MethodGet, "/api/v1/catalog/menus/1/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"menu_id":"1"`)
}

func TestOrderRoutes(t *testing.T) {
	placed := models.OrderConfirmation{
		OrderID:  "order-7",
		Status:   models.OrderStatusPlaced,
		Subtotal: decimal.RequireFromString("30.97"),
		Tax:      decimal.RequireFromString("4.6455"),
		Total:    decimal.RequireFromString("35.6155"),
	}
	lookup := &stubLookup{orders: map[string]ordergrpc.OrderHistory{
		"order-7": {
			Order: placed,
			Entries: []ordergrpc.AuditEntry{
				{Service: "order-service", Action: "create_order", Data: map[string]interface{}{"customer_id": "1"}},
			},
		},
	}}
	gw := newTestGatewayWith(t, &stubSubmitter{}, lookup)

	w := call(t, gw, http.MethodGet, "/api/v1/orders/order-7", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.OrderConfirmation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "order-7", got.OrderID)
	assert.True(t, placed.Total.Equal(got.Total))

	w = call(t, gw, http.MethodGet, "/api/v1/orders/order-7/history", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var history ordergrpc.OrderHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "create_order", history.Entries[0].Action)

	w = call(t, gw, http.MethodGet, "/api/v1/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order_not_found", errorOf(t, w).Code)

	w = call(t, gw, http.MethodGet, "/api/v1/orders/missing/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOrderRoutesServiceDown(t *testing.T) {
	cases := map[string]error{
		"breaker open": fmt.Errorf("failed to get order x: %w", gobreaker.ErrOpenState),
		"unavailable":  status.Error(codes.Unavailable, "connection refused"),
		"no audit log": status.Error(codes.FailedPrecondition, "audit log is not enabled"),
	}
	for name, err := range cases {
		t.Run(name, func(t *testing.T) {
			gw := newTestGatewayWith(t, &stubSubmitter{}, &stubLookup{err: err})

			w := call(t, gw, http.MethodGet, "/api/v1/orders/x", nil)
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, "order_service_unavailable", errorOf(t, w).Code)
		})
	}
}

func TestSystemRoutes(t *testing.T) {
	gw := newTestGateway(t, &stubSubmitter{})

	w := call(t, gw, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = call(t, gw, http.MethodGet, "/api/v1/options", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var opts map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opts))
	assert.Equal(t, "0.15", opts["tax_rate"])
	assert.Len(t, opts["payment_methods"], 4)
	assert.Len(t, opts["delivery_options"], 2)
	assert.Len(t, opts["steps"], 4)

	w = call(t, gw, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "orderdesk_http_requests_total")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
