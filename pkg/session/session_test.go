package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/metrics"
	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedCatalog serves the fixture, but customer searches for a gated query
// block until released and then answer regardless of cancellation.
type gatedCatalog struct {
	*catalog.Fixture

	mu        sync.Mutex
	gates     map[string]chan struct{}
	started   map[string]int
	cancelled map[string]int
	menusErr  error
}

func newGatedCatalog() *gatedCatalog {
	return &gatedCatalog{
		Fixture:   catalog.NewFixture(),
		gates:     map[string]chan struct{}{},
		started:   map[string]int{},
		cancelled: map[string]int{},
	}
}

func (g *gatedCatalog) gate(query string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[query] = ch
	return ch
}

func (g *gatedCatalog) count(m map[string]int, query string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return m[query]
}

func (g *gatedCatalog) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	g.mu.Lock()
	g.started[query]++
	gate := g.gates[query]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			g.mu.Lock()
			g.cancelled[query]++
			g.mu.Unlock()
			<-gate
		}
	}
	return g.Fixture.ListCustomers(context.Background(), query)
}

func (g *gatedCatalog) ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	if g.menusErr != nil {
		return nil, g.menusErr
	}
	return g.Fixture.ListMenus(ctx, restaurantID)
}

type fakeSubmitter struct {
	mu     sync.Mutex
	drafts []wizard.Draft
	err    error
	block  chan struct{}
}

func (f *fakeSubmitter) SubmitOrder(ctx context.Context, d wizard.Draft) (models.OrderConfirmation, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.OrderConfirmation{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, d)
	if f.err != nil {
		return models.OrderConfirmation{}, f.err
	}
	totals := d.Cart.Totals(wizard.DefaultPolicy().TaxRate)
	return models.OrderConfirmation{
		OrderID:  "order-1",
		Status:   models.OrderStatusPlaced,
		Subtotal: totals.Subtotal,
		Tax:      totals.Tax,
		Total:    totals.Total,
	}, nil
}

func (f *fakeSubmitter) submitted() []wizard.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wizard.Draft(nil), f.drafts...)
}

func newTestManager(t *testing.T, cat catalog.Catalog, sub Submitter, cfg config.WizardConfig) *Manager {
	t.Helper()
	m := NewManager(actor.NewActorSystem(), cfg, wizard.DefaultPolicy(), cat, sub, zap.NewNop())
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }
	t.Cleanup(m.Shutdown)
	return m
}

func do(t *testing.T, m *Manager, id string, cmd Command) Snapshot {
	t.Helper()
	snap, err := m.Do(context.Background(), id, cmd)
	require.NoError(t, err)
	return snap
}

// toOrderStep walks a new session to the order step with customer 1,
// restaurant 1 and menu 2.
func toOrderStep(t *testing.T, m *Manager) Snapshot {
	t.Helper()
	snap, err := m.Create(context.Background())
	require.NoError(t, err)
	id := snap.ID

	do(t, m, id, &SelectCustomer{ID: "1"})
	do(t, m, id, &Next{})
	do(t, m, id, &SelectRestaurant{ID: "1"})
	do(t, m, id, &SelectMenu{ID: "2"})
	return do(t, m, id, &Next{})
}

func TestHappyPath(t *testing.T) {
	sub := &fakeSubmitter{}
	m := newTestManager(t, newGatedCatalog(), sub, config.WizardConfig{})
	ctx := context.Background()

	snap, err := m.Create(ctx)
	require.NoError(t, err)
	id := snap.ID
	assert.Equal(t, wizard.StepCustomer, snap.Step)
	assert.False(t, snap.Customers.Loading)
	assert.Len(t, snap.Customers.Results, 3)
	assert.False(t, snap.CanAdvance)

	snap = do(t, m, id, &SearchCustomers{Query: "JANE"})
	require.Len(t, snap.Customers.Results, 1)
	assert.Equal(t, "2", snap.Customers.Results[0].ID)

	snap = do(t, m, id, &SelectCustomer{ID: "2"})
	assert.True(t, snap.CanAdvance)

	snap = do(t, m, id, &Next{})
	assert.Equal(t, wizard.StepRestaurantMenu, snap.Step)
	assert.Len(t, snap.Restaurants.Results, 3)
	assert.Empty(t, snap.Restaurants.Menus)

	snap = do(t, m, id, &SelectRestaurant{ID: "3"})
	require.Len(t, snap.Restaurants.Menus, 3)
	assert.Equal(t, "3", snap.Restaurants.Menus[0].RestaurantID)
	assert.False(t, snap.CanAdvance)

	do(t, m, id, &SelectMenu{ID: "1"})
	snap = do(t, m, id, &Next{})
	assert.Equal(t, wizard.StepOrder, snap.Step)
	assert.Len(t, snap.Order.Categories, 4)
	assert.Equal(t, "1", snap.Order.Category)
	require.Len(t, snap.Order.Items, 1)
	assert.Equal(t, "Caesar Salad", snap.Order.Items[0].Name)

	snap = do(t, m, id, &SelectCategory{ID: ""})
	assert.Len(t, snap.Order.Items, 4)

	do(t, m, id, &AddItem{ItemID: "1"})
	do(t, m, id, &AddItem{ItemID: "1"})
	snap = do(t, m, id, &AddItem{ItemID: "4"})
	assert.Equal(t, 2, snap.Draft.Cart.LineCount())
	assert.Equal(t, 3, snap.ItemCount)
	assert.Equal(t, "30.97", snap.Totals.Subtotal.String())
	assert.Equal(t, "4.6455", snap.Totals.Tax.String())
	assert.Equal(t, "35.6155", snap.Totals.Total.String())

	snap = do(t, m, id, &Next{})
	assert.Equal(t, wizard.StepPaymentDelivery, snap.Step)
	assert.False(t, snap.CanSubmit)
	assert.Len(t, snap.Checkout.PaymentMethods, 4)

	card, delivery, notes := "card", "delivery", "ring twice"
	snap = do(t, m, id, &UpdateCheckout{PaymentMethod: &card, DeliveryOption: &delivery, DeliveryNotes: &notes})
	assert.True(t, snap.CanSubmit)

	snap = do(t, m, id, &Submit{})
	require.NotNil(t, snap.Confirmed)
	assert.Equal(t, "order-1", snap.Confirmed.OrderID)
	assert.Equal(t, "35.6155", snap.Confirmed.Total.String())
	assert.Equal(t, wizard.StepCustomer, snap.Step)
	assert.Nil(t, snap.Draft.Customer)
	assert.True(t, snap.Draft.Cart.IsEmpty())
	assert.Empty(t, snap.Customers.Query)

	drafts := sub.submitted()
	require.Len(t, drafts, 1)
	assert.Equal(t, "2", drafts[0].Customer.ID)
	assert.Equal(t, "ring twice", drafts[0].DeliveryNotes)
	assert.Equal(t, 2, drafts[0].Cart.LineCount())
}

func TestStaleSearchResultIsDiscarded(t *testing.T) {
	cat := newGatedCatalog()
	m := newTestManager(t, cat, &fakeSubmitter{}, config.WizardConfig{})

	snap, err := m.Create(context.Background())
	require.NoError(t, err)
	id := snap.ID

	release := cat.gate("o")
	slow := make(chan Snapshot, 1)
	go func() {
		s, err := m.Do(context.Background(), id, &SearchCustomers{Query: "o"})
		if err == nil {
			slow <- s
		}
	}()
	require.Eventually(t, func() bool { return cat.count(cat.started, "o") == 1 }, time.Second, 5*time.Millisecond)

	stale := metrics.CatalogFetches.WithLabelValues("customers", "stale")
	before := testutil.ToFloat64(stale)

	snap = do(t, m, id, &SearchCustomers{Query: "jane"})
	require.Len(t, snap.Customers.Results, 1)

	// The superseded request is answered with the newer result.
	select {
	case s := <-slow:
		assert.Equal(t, "jane", s.Customers.Query)
		assert.Len(t, s.Customers.Results, 1)
	case <-time.After(time.Second):
		t.Fatal("superseded search never answered")
	}

	assert.Eventually(t, func() bool { return cat.count(cat.cancelled, "o") == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	require.Eventually(t, func() bool { return testutil.ToFloat64(stale) == before+1 }, time.Second, 5*time.Millisecond)

	snap = do(t, m, id, &GetSnapshot{})
	assert.Equal(t, "jane", snap.Customers.Query)
	require.Len(t, snap.Customers.Results, 1)
	assert.Equal(t, "Jane Smith", snap.Customers.Results[0].Name)
}

func TestRestaurantChangeGuard(t *testing.T) {
	m := newTestManager(t, newGatedCatalog(), &fakeSubmitter{}, config.WizardConfig{})
	snap := toOrderStep(t, m)
	id := snap.ID

	do(t, m, id, &AddItem{ItemID: "2"})
	snap = do(t, m, id, &Prev{})
	assert.Equal(t, wizard.StepRestaurantMenu, snap.Step)
	assert.Len(t, snap.Restaurants.Menus, 3)

	snap = do(t, m, id, &SelectRestaurant{ID: "2"})
	require.NotNil(t, snap.Pending)
	assert.Equal(t, wizard.ChangeRestaurant, snap.Pending.Kind)
	assert.Equal(t, "Burger House", snap.Pending.Target)
	assert.Equal(t, 1, snap.Pending.Lines)
	assert.Contains(t, snap.Pending.Message, "You currently have 1 item in your cart.")
	assert.Equal(t, "1", snap.Draft.Restaurant.ID)

	_, err := m.Do(context.Background(), id, &SelectMenu{ID: "1"})
	assert.ErrorIs(t, err, wizard.ErrChangePending)

	snap = do(t, m, id, &CancelChange{})
	assert.Nil(t, snap.Pending)
	assert.Equal(t, "1", snap.Draft.Restaurant.ID)
	assert.Equal(t, 1, snap.Draft.Cart.LineCount())

	do(t, m, id, &SelectRestaurant{ID: "2"})
	snap = do(t, m, id, &ConfirmChange{})
	assert.Nil(t, snap.Pending)
	assert.Equal(t, "2", snap.Draft.Restaurant.ID)
	assert.Nil(t, snap.Draft.Menu)
	assert.True(t, snap.Draft.Cart.IsEmpty())
	require.Len(t, snap.Restaurants.Menus, 3)
	assert.Equal(t, "2", snap.Restaurants.Menus[0].RestaurantID)
}

func TestCommandErrors(t *testing.T) {
	m := newTestManager(t, newGatedCatalog(), &fakeSubmitter{}, config.WizardConfig{})
	ctx := context.Background()

	snap, err := m.Create(ctx)
	require.NoError(t, err)
	id := snap.ID

	_, err = m.Do(ctx, id, &SelectCustomer{ID: "99"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = m.Do(ctx, id, &Next{})
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked)

	_, err = m.Do(ctx, id, &SearchRestaurants{Query: "pizza"})
	assert.ErrorIs(t, err, wizard.ErrWrongStep)

	snap = toOrderStep(t, m)
	_, err = m.Do(ctx, snap.ID, &AddItem{ItemID: "99"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	qty := 2
	_, err = m.Do(ctx, snap.ID, &UpdateLine{LineID: "nope", Quantity: &qty})
	assert.ErrorIs(t, err, wizard.ErrUnknownLine)

	_, err = m.Do(ctx, snap.ID, &SelectCategory{ID: "99"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = m.Do(ctx, "missing", &GetSnapshot{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUpdateLine(t *testing.T) {
	m := newTestManager(t, newGatedCatalog(), &fakeSubmitter{}, config.WizardConfig{})
	snap := toOrderStep(t, m)
	id := snap.ID

	snap = do(t, m, id, &AddItem{ItemID: "3"})
	lineID := snap.Draft.Cart[0].ID
	assert.Equal(t, "3-1700000000000", lineID)

	qty, notes := 4, "no nuts"
	snap = do(t, m, id, &UpdateLine{LineID: lineID, Quantity: &qty, Notes: &notes})
	assert.Equal(t, 4, snap.Draft.Cart[0].Quantity)
	assert.Equal(t, "no nuts", snap.Draft.Cart[0].Notes)

	bad := -1
	snap, err := m.Do(context.Background(), id, &UpdateLine{LineID: lineID, Quantity: &bad, Notes: &notes})
	assert.Error(t, err)
	assert.Equal(t, 4, snap.Draft.Cart[0].Quantity)

	zero := 0
	snap = do(t, m, id, &UpdateLine{LineID: lineID, Quantity: &zero})
	assert.True(t, snap.Draft.Cart.IsEmpty())
	assert.False(t, snap.CanAdvance)
}

func TestSubmitFailureKeepsDraft(t *testing.T) {
	sub := &fakeSubmitter{err: errors.New("order service unavailable")}
	m := newTestManager(t, newGatedCatalog(), sub, config.WizardConfig{})
	snap := toOrderStep(t, m)
	id := snap.ID

	do(t, m, id, &AddItem{ItemID: "1"})
	do(t, m, id, &Next{})
	card, pickup := "card", "pickup"
	do(t, m, id, &UpdateCheckout{PaymentMethod: &card, DeliveryOption: &pickup})

	snap, err := m.Do(context.Background(), id, &Submit{})
	assert.EqualError(t, err, "order service unavailable")
	assert.Equal(t, wizard.StepPaymentDelivery, snap.Step)
	assert.False(t, snap.Submitting)
	assert.True(t, snap.CanSubmit)
	assert.Equal(t, "order service unavailable", snap.LastError)
	assert.Nil(t, snap.Confirmed)
	assert.Equal(t, 1, snap.Draft.Cart.LineCount())
}

func TestCommandsRejectedWhileSubmitting(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	m := newTestManager(t, newGatedCatalog(), sub, config.WizardConfig{})
	snap := toOrderStep(t, m)
	id := snap.ID

	do(t, m, id, &AddItem{ItemID: "1"})
	do(t, m, id, &Next{})
	card, pickup := "juice", "pickup"
	do(t, m, id, &UpdateCheckout{PaymentMethod: &card, DeliveryOption: &pickup})

	done := make(chan error, 1)
	go func() {
		_, err := m.Do(context.Background(), id, &Submit{})
		done <- err
	}()

	require.Eventually(t, func() bool {
		s, err := m.Do(context.Background(), id, &GetSnapshot{})
		return err == nil && s.Submitting
	}, time.Second, 5*time.Millisecond)

	_, err := m.Do(context.Background(), id, &Prev{})
	assert.ErrorIs(t, err, wizard.ErrSubmitting)
	_, err = m.Do(context.Background(), id, &Reset{})
	assert.ErrorIs(t, err, wizard.ErrSubmitting)

	close(sub.block)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("submit never answered")
	}
}

func TestMenuFetchFailureLeavesListEmpty(t *testing.T) {
	cat := newGatedCatalog()
	cat.menusErr = catalog.ErrFetchFailed
	m := newTestManager(t, cat, &fakeSubmitter{}, config.WizardConfig{})

	snap, err := m.Create(context.Background())
	require.NoError(t, err)
	id := snap.ID
	do(t, m, id, &SelectCustomer{ID: "1"})
	do(t, m, id, &Next{})

	snap = do(t, m, id, &SelectRestaurant{ID: "1"})
	assert.False(t, snap.Restaurants.MenusLoading)
	assert.Empty(t, snap.Restaurants.Menus)
	assert.False(t, snap.CanAdvance)
}

func TestResetClearsSession(t *testing.T) {
	m := newTestManager(t, newGatedCatalog(), &fakeSubmitter{}, config.WizardConfig{})
	snap := toOrderStep(t, m)
	id := snap.ID
	do(t, m, id, &AddItem{ItemID: "1"})

	snap = do(t, m, id, &Reset{})
	assert.Equal(t, wizard.StepCustomer, snap.Step)
	assert.True(t, snap.Draft.Cart.IsEmpty())
	assert.Nil(t, snap.Draft.Restaurant)
	assert.Len(t, snap.Customers.Results, 3)
	assert.Empty(t, snap.Order.Items)
}

func TestDeleteAndIdleStop(t *testing.T) {
	m := newTestManager(t, newGatedCatalog(), &fakeSubmitter{}, config.WizardConfig{IdleTimeout: 500 * time.Millisecond})
	ctx := context.Background()

	a, err := m.Create(ctx)
	require.NoError(t, err)
	b, err := m.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Delete(a.ID))
	_, err = m.Do(ctx, a.ID, &GetSnapshot{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(a.ID), ErrSessionNotFound)

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
	_, err = m.Do(ctx, b.ID, &GetSnapshot{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIdleTimeoutWaitsForSubmission(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	m := newTestManager(t, newGatedCatalog(), sub, config.WizardConfig{IdleTimeout: 300 * time.Millisecond})
	snap := toOrderStep(t, m)
	id := snap.ID

	do(t, m, id, &AddItem{ItemID: "1"})
	do(t, m, id, &Next{})
	card, pickup := "card", "pickup"
	do(t, m, id, &UpdateCheckout{PaymentMethod: &card, DeliveryOption: &pickup})

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := m.Do(context.Background(), id, &Submit{})
		done <- result{s, err}
	}()

	// Several idle periods pass while the order service is still working.
	time.Sleep(time.Second)
	assert.Equal(t, 1, m.Len())

	close(sub.block)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.NotNil(t, r.snap.Confirmed)
		assert.Equal(t, "order-1", r.snap.Confirmed.OrderID)
	case <-time.After(3 * time.Second):
		t.Fatal("submit never answered")
	}

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}
