// Package session runs each order wizard as a protoactor actor. The actor
// owns the wizard state and the per-step candidate lists, and is the only
// writer of either.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/metrics"
	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/wizard"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned to callers still waiting when a session stops.
var ErrSessionClosed = errors.New("session closed")

// Submitter places a finished draft as an order.
type Submitter interface {
	SubmitOrder(ctx context.Context, d wizard.Draft) (models.OrderConfirmation, error)
}

type fetchState struct {
	gen     uint64
	cancel  context.CancelFunc
	loading bool
}

// waiter is a caller whose reply is held until the listed fetches settle.
type waiter struct {
	pid   *actor.PID
	lists map[list]bool
}

type sessionActor struct {
	id        string
	catalog   catalog.Catalog
	submitter Submitter
	policy    wizard.Policy
	cfg       config.WizardConfig
	logger    *zap.Logger
	onStopped func(id string)
	now       func() time.Time

	state wizard.State

	customerQuery   string
	restaurantQuery string
	customers       []models.Customer
	restaurants     []models.Restaurant
	menus           []models.Menu
	categories      []models.Category
	items           []models.MenuItem
	category        string

	fetches [numLists]fetchState
	waiters []*waiter

	submitCancel context.CancelFunc
	submitWaiter *actor.PID
	confirmed    *models.OrderConfirmation
	lastErr      string
}

func (a *sessionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.logger.Info("Session started")
		if a.cfg.IdleTimeout > 0 {
			ctx.SetReceiveTimeout(a.cfg.IdleTimeout)
		}
		a.enterStep(ctx, a.state.Step)

	case *actor.ReceiveTimeout:
		// The timer is one-shot, so it is re-armed to stop the session once
		// the order has been answered.
		if a.state.Submitting {
			ctx.SetReceiveTimeout(a.cfg.IdleTimeout)
			return
		}
		a.logger.Info("Session idle, stopping", zap.Duration("idle_timeout", a.cfg.IdleTimeout))
		ctx.Stop(ctx.Self())

	case *actor.Stopping:
		a.shutdown(ctx)

	case *actor.Stopped:
		a.logger.Info("Session stopped")
		if a.onStopped != nil {
			a.onStopped(a.id)
		}

	case *fetchResult:
		a.handleFetchResult(ctx, msg)

	case *submitResult:
		a.handleSubmitResult(ctx, msg)

	case Command:
		err := a.handle(ctx, msg)
		if _, ok := msg.(*Submit); ok && err == nil {
			a.submitWaiter = ctx.Sender()
			return
		}
		a.reply(ctx, err)
	}
}

func (a *sessionActor) handle(ctx actor.Context, cmd Command) error {
	switch cmd := cmd.(type) {
	case *GetSnapshot:
		return nil

	case *SearchCustomers:
		if err := a.gate(wizard.StepCustomer); err != nil {
			return err
		}
		a.customerQuery = cmd.Query
		a.fetchCustomers(ctx)
		return nil

	case *SearchRestaurants:
		if err := a.gate(wizard.StepRestaurantMenu); err != nil {
			return err
		}
		a.restaurantQuery = cmd.Query
		a.fetchRestaurants(ctx)
		return nil

	case *SelectCustomer:
		if err := a.gate(wizard.StepCustomer); err != nil {
			return err
		}
		var c *models.Customer
		if cmd.ID != "" {
			found, ok := find(a.customers, func(c models.Customer) bool { return c.ID == cmd.ID })
			if !ok {
				return fmt.Errorf("customer %s: %w", cmd.ID, catalog.ErrNotFound)
			}
			c = &found
		}
		return a.dispatch(ctx, wizard.SelectCustomer{Customer: c})

	case *SelectRestaurant:
		if err := a.gate(wizard.StepRestaurantMenu); err != nil {
			return err
		}
		var r *models.Restaurant
		if cmd.ID != "" {
			found, ok := find(a.restaurants, func(r models.Restaurant) bool { return r.ID == cmd.ID })
			if !ok {
				return fmt.Errorf("restaurant %s: %w", cmd.ID, catalog.ErrNotFound)
			}
			r = &found
		}
		return a.dispatch(ctx, wizard.SelectRestaurant{Restaurant: r})

	case *SelectMenu:
		if err := a.gate(wizard.StepRestaurantMenu); err != nil {
			return err
		}
		var m *models.Menu
		if cmd.ID != "" {
			found, ok := find(a.menus, func(m models.Menu) bool { return m.ID == cmd.ID })
			if !ok {
				return fmt.Errorf("menu %s: %w", cmd.ID, catalog.ErrNotFound)
			}
			m = &found
		}
		return a.dispatch(ctx, wizard.SelectMenu{Menu: m})

	case *SelectCategory:
		if err := a.gate(wizard.StepOrder); err != nil {
			return err
		}
		if cmd.ID != "" {
			if _, ok := find(a.categories, func(c models.Category) bool { return c.ID == cmd.ID }); !ok {
				return fmt.Errorf("category %s: %w", cmd.ID, catalog.ErrNotFound)
			}
		}
		a.category = cmd.ID
		return nil

	case *ConfirmChange:
		return a.dispatch(ctx, wizard.ConfirmChange{})

	case *CancelChange:
		return a.dispatch(ctx, wizard.CancelChange{})

	case *AddItem:
		if err := a.gate(wizard.StepOrder); err != nil {
			return err
		}
		item, ok := find(a.items, func(it models.MenuItem) bool { return it.ID == cmd.ItemID })
		if !ok {
			return fmt.Errorf("menu item %s: %w", cmd.ItemID, catalog.ErrNotFound)
		}
		return a.dispatch(ctx, wizard.AddItem{Item: item, At: a.now()})

	case *UpdateLine:
		var evs []wizard.Event
		if cmd.Notes != nil {
			evs = append(evs, wizard.SetNotes{LineID: cmd.LineID, Notes: *cmd.Notes})
		}
		if cmd.Quantity != nil {
			evs = append(evs, wizard.SetQuantity{LineID: cmd.LineID, Quantity: *cmd.Quantity})
		}
		return a.dispatch(ctx, evs...)

	case *RemoveLine:
		return a.dispatch(ctx, wizard.RemoveLine{LineID: cmd.LineID})

	case *UpdateCheckout:
		var evs []wizard.Event
		if cmd.PaymentMethod != nil {
			evs = append(evs, wizard.SetPaymentMethod{ID: *cmd.PaymentMethod})
		}
		if cmd.DeliveryOption != nil {
			evs = append(evs, wizard.SetDeliveryOption{ID: *cmd.DeliveryOption})
		}
		if cmd.Allergies != nil {
			evs = append(evs, wizard.SetAllergies{Text: *cmd.Allergies})
		}
		if cmd.DeliveryNotes != nil {
			evs = append(evs, wizard.SetDeliveryNotes{Text: *cmd.DeliveryNotes})
		}
		return a.dispatch(ctx, evs...)

	case *Next:
		return a.dispatch(ctx, wizard.Next{})

	case *Prev:
		return a.dispatch(ctx, wizard.Prev{})

	case *Submit:
		if err := a.apply(wizard.BeginSubmit{}); err != nil {
			return err
		}
		a.startSubmit(ctx)
		return nil

	case *Reset:
		if err := a.apply(wizard.Reset{}); err != nil {
			return err
		}
		a.restart(ctx)
		return nil
	}

	return fmt.Errorf("unknown command %T", cmd)
}

// gate rejects view-level commands the same way the reducer rejects events
// bound to step.
func (a *sessionActor) gate(step wizard.Step) error {
	switch {
	case a.state.Submitting:
		return wizard.ErrSubmitting
	case a.state.Pending != nil:
		return wizard.ErrChangePending
	case a.state.Step != step:
		return fmt.Errorf("%s on step %s: %w", step, a.state.Step, wizard.ErrWrongStep)
	}
	return nil
}

func eventName(ev wizard.Event) string {
	name := fmt.Sprintf("%T", ev)
	return name[strings.LastIndex(name, ".")+1:]
}

// apply reduces evs in order and commits only if all of them succeed.
func (a *sessionActor) apply(evs ...wizard.Event) error {
	next := a.state
	for _, ev := range evs {
		var err error
		next, err = a.policy.Reduce(next, ev)
		if err != nil {
			result := "error"
			if errors.Is(err, wizard.ErrValidationBlocked) {
				result = "blocked"
			}
			metrics.WizardEvents.WithLabelValues(eventName(ev), result).Inc()
			a.logger.Debug("Event rejected", zap.String("event", eventName(ev)), zap.Error(err))
			return err
		}
	}
	for _, ev := range evs {
		metrics.WizardEvents.WithLabelValues(eventName(ev), "ok").Inc()
	}
	a.state = next
	return nil
}

func (a *sessionActor) dispatch(ctx actor.Context, evs ...wizard.Event) error {
	before := a.state
	if err := a.apply(evs...); err != nil {
		return err
	}
	a.sync(ctx, before)
	return nil
}

// sync starts and cancels fetches to match the state after a transition.
func (a *sessionActor) sync(ctx actor.Context, before wizard.State) {
	after := a.state
	switch {
	case before.Step != after.Step:
		a.enterStep(ctx, after.Step)
	case after.Step == wizard.StepRestaurantMenu && restaurantID(before.Draft) != restaurantID(after.Draft):
		a.loadMenus(ctx)
	}
}

func restaurantID(d wizard.Draft) string {
	if d.Restaurant == nil {
		return ""
	}
	return d.Restaurant.ID
}

func stepLists(step wizard.Step) []list {
	switch step {
	case wizard.StepCustomer:
		return []list{listCustomers}
	case wizard.StepRestaurantMenu:
		return []list{listRestaurants, listMenus}
	case wizard.StepOrder:
		return []list{listCategories, listItems}
	}
	return nil
}

func (a *sessionActor) enterStep(ctx actor.Context, step wizard.Step) {
	keep := map[list]bool{}
	for _, l := range stepLists(step) {
		keep[l] = true
	}
	for l := list(0); l < numLists; l++ {
		if !keep[l] {
			a.cancelFetch(ctx, l)
		}
	}

	switch step {
	case wizard.StepCustomer:
		a.fetchCustomers(ctx)
	case wizard.StepRestaurantMenu:
		a.fetchRestaurants(ctx)
		a.loadMenus(ctx)
	case wizard.StepOrder:
		a.category = ""
		a.loadMenuContents(ctx)
	}
}

// restart clears every view after the draft has been replaced by a fresh one.
func (a *sessionActor) restart(ctx actor.Context) {
	for l := list(0); l < numLists; l++ {
		a.cancelFetch(ctx, l)
	}
	a.customerQuery, a.restaurantQuery = "", ""
	a.customers, a.restaurants, a.menus = nil, nil, nil
	a.categories, a.items = nil, nil
	a.category = ""
	a.enterStep(ctx, a.state.Step)
}

func (a *sessionActor) fetchCustomers(ctx actor.Context) {
	q := a.customerQuery
	a.fetch(ctx, listCustomers, func(c context.Context) (interface{}, error) {
		return a.catalog.ListCustomers(c, q)
	})
}

func (a *sessionActor) fetchRestaurants(ctx actor.Context) {
	q := a.restaurantQuery
	a.fetch(ctx, listRestaurants, func(c context.Context) (interface{}, error) {
		return a.catalog.ListRestaurants(c, q)
	})
}

func (a *sessionActor) loadMenus(ctx actor.Context) {
	a.menus = nil
	r := a.state.Draft.Restaurant
	if r == nil {
		a.cancelFetch(ctx, listMenus)
		return
	}
	id := r.ID
	a.fetch(ctx, listMenus, func(c context.Context) (interface{}, error) {
		return a.catalog.ListMenus(c, id)
	})
}

func (a *sessionActor) loadMenuContents(ctx actor.Context) {
	a.categories, a.items = nil, nil
	m := a.state.Draft.Menu
	if m == nil {
		a.cancelFetch(ctx, listCategories)
		a.cancelFetch(ctx, listItems)
		return
	}
	id := m.ID
	a.fetch(ctx, listCategories, func(c context.Context) (interface{}, error) {
		return a.catalog.ListCategories(c, id)
	})
	a.fetch(ctx, listItems, func(c context.Context) (interface{}, error) {
		return a.catalog.ListMenuItems(c, id)
	})
}

// fetch runs call in the background under a new generation of l. Any fetch
// of l already in flight is cancelled and its result will be discarded.
func (a *sessionActor) fetch(ctx actor.Context, l list, call func(context.Context) (interface{}, error)) {
	f := &a.fetches[l]
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	f.loading = true

	fctx, cancel := context.WithTimeout(context.Background(), a.cfg.FetchTimeout)
	f.cancel = cancel

	gen := f.gen
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	go func() {
		defer cancel()
		result, err := call(fctx)
		root.Send(self, &fetchResult{list: l, gen: gen, result: result, err: err})
	}()
}

func (a *sessionActor) cancelFetch(ctx actor.Context, l list) {
	f := &a.fetches[l]
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.loading {
		f.gen++
		f.loading = false
		a.settle(ctx, l)
	}
}

func (a *sessionActor) handleFetchResult(ctx actor.Context, msg *fetchResult) {
	f := &a.fetches[msg.list]
	if !f.loading || msg.gen != f.gen {
		metrics.CatalogFetches.WithLabelValues(msg.list.String(), "stale").Inc()
		a.logger.Debug("Discarding stale result",
			zap.Stringer("list", msg.list),
			zap.Uint64("generation", msg.gen),
			zap.Uint64("current", f.gen))
		return
	}
	f.loading = false
	f.cancel = nil

	if msg.err != nil {
		metrics.CatalogFetches.WithLabelValues(msg.list.String(), "failed").Inc()
		a.logger.Warn("Catalog fetch failed", zap.Stringer("list", msg.list), zap.Error(msg.err))
		msg.result = nil
	} else {
		metrics.CatalogFetches.WithLabelValues(msg.list.String(), "ok").Inc()
	}

	switch msg.list {
	case listCustomers:
		a.customers, _ = msg.result.([]models.Customer)
	case listRestaurants:
		a.restaurants, _ = msg.result.([]models.Restaurant)
	case listMenus:
		a.menus, _ = msg.result.([]models.Menu)
	case listCategories:
		a.categories, _ = msg.result.([]models.Category)
		if _, ok := find(a.categories, func(c models.Category) bool { return c.ID == a.category }); !ok {
			a.category = ""
			if len(a.categories) > 0 {
				a.category = a.categories[0].ID
			}
		}
	case listItems:
		a.items, _ = msg.result.([]models.MenuItem)
	}

	a.settle(ctx, msg.list)
}

func (a *sessionActor) loading() map[list]bool {
	out := map[list]bool{}
	for l := list(0); l < numLists; l++ {
		if a.fetches[l].loading {
			out[l] = true
		}
	}
	return out
}

// reply answers the current command, or parks the caller until every list
// that is loading has settled.
func (a *sessionActor) reply(ctx actor.Context, err error) {
	sender := ctx.Sender()
	if sender == nil {
		return
	}
	if err != nil {
		ctx.Respond(&Reply{Snapshot: a.snapshot(), Err: err})
		return
	}
	lists := a.loading()
	if len(lists) == 0 {
		ctx.Respond(&Reply{Snapshot: a.snapshot()})
		return
	}
	a.waiters = append(a.waiters, &waiter{pid: sender, lists: lists})
}

func (a *sessionActor) settle(ctx actor.Context, l list) {
	kept := a.waiters[:0]
	for _, w := range a.waiters {
		delete(w.lists, l)
		if len(w.lists) == 0 {
			ctx.Send(w.pid, &Reply{Snapshot: a.snapshot()})
			continue
		}
		kept = append(kept, w)
	}
	a.waiters = kept
}

func (a *sessionActor) startSubmit(ctx actor.Context) {
	draft := a.state.Draft
	sctx, cancel := context.WithTimeout(context.Background(), a.cfg.SubmitTimeout)
	a.submitCancel = cancel

	self := ctx.Self()
	root := ctx.ActorSystem().Root
	go func() {
		defer cancel()
		conf, err := a.submitter.SubmitOrder(sctx, draft)
		root.Send(self, &submitResult{confirmation: conf, err: err})
	}()
}

func (a *sessionActor) handleSubmitResult(ctx actor.Context, msg *submitResult) {
	a.submitCancel = nil
	waiter := a.submitWaiter
	a.submitWaiter = nil

	if msg.err != nil {
		_ = a.apply(wizard.SubmitFailed{})
		a.lastErr = msg.err.Error()
		metrics.OrdersSubmitted.WithLabelValues("failed").Inc()
		a.logger.Error("Order submission failed", zap.Error(msg.err))
		if waiter != nil {
			ctx.Send(waiter, &Reply{Snapshot: a.snapshot(), Err: msg.err})
		}
		return
	}

	_ = a.apply(wizard.SubmitSucceeded{})
	conf := msg.confirmation
	a.confirmed = &conf
	a.lastErr = ""
	metrics.OrdersSubmitted.WithLabelValues("placed").Inc()
	metrics.OrderAmount.Observe(conf.Total.InexactFloat64())
	a.logger.Info("Order placed",
		zap.String("order_id", conf.OrderID),
		zap.String("total", conf.Total.String()))

	a.restart(ctx)
	if waiter != nil {
		ctx.Send(waiter, &Reply{Snapshot: a.snapshot()})
	}
}

func (a *sessionActor) shutdown(ctx actor.Context) {
	for l := list(0); l < numLists; l++ {
		f := &a.fetches[l]
		if f.cancel != nil {
			f.cancel()
		}
		f.loading = false
	}
	if a.submitCancel != nil {
		a.submitCancel()
	}

	snap := a.snapshot()
	for _, w := range a.waiters {
		ctx.Send(w.pid, &Reply{Snapshot: snap, Err: ErrSessionClosed})
	}
	a.waiters = nil
	if a.submitWaiter != nil {
		ctx.Send(a.submitWaiter, &Reply{Snapshot: snap, Err: ErrSessionClosed})
		a.submitWaiter = nil
	}
}

func (a *sessionActor) snapshot() Snapshot {
	s := a.state
	return Snapshot{
		ID:         a.id,
		Step:       s.Step,
		StepName:   s.Step.String(),
		Draft:      s.Draft,
		Totals:     s.Draft.Cart.Totals(a.policy.TaxRate),
		ItemCount:  s.Draft.Cart.ItemCount(),
		CanAdvance: s.CanAdvance(),
		CanSubmit:  s.CanSubmit(),
		Submitting: s.Submitting,
		Pending:    pendingView(s),
		Customers: CustomerView{
			Query:   a.customerQuery,
			Loading: a.fetches[listCustomers].loading,
			Results: nonNil(a.customers),
		},
		Restaurants: RestaurantView{
			Query:        a.restaurantQuery,
			Loading:      a.fetches[listRestaurants].loading,
			Results:      nonNil(a.restaurants),
			MenusLoading: a.fetches[listMenus].loading,
			Menus:        nonNil(a.menus),
		},
		Order: OrderView{
			Loading:    a.fetches[listCategories].loading || a.fetches[listItems].loading,
			Categories: nonNil(a.categories),
			Category:   a.category,
			Items:      nonNil(catalog.FilterItems(a.items, a.category)),
		},
		Checkout: CheckoutView{
			PaymentMethods:  a.policy.PaymentMethods,
			DeliveryOptions: a.policy.DeliveryOptions,
		},
		Confirmed: a.confirmed,
		LastError: a.lastErr,
	}
}

func find[T any](in []T, match func(T) bool) (T, bool) {
	for _, v := range in {
		if match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
