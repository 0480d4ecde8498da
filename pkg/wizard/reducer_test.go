package wizard_test

import (
	"testing"
	"time"

	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	policy = wizard.DefaultPolicy()

	john    = &models.Customer{ID: "1", Name: "John Doe", Email: "john@example.com"}
	jane    = &models.Customer{ID: "2", Name: "Jane Smith", Email: "jane@example.com"}
	pizza   = &models.Restaurant{ID: "1", Name: "Pizza Palace", Cuisine: "Italian"}
	burger  = &models.Restaurant{ID: "2", Name: "Burger House", Cuisine: "American"}
	lunch   = &models.Menu{ID: "1", Name: "Lunch Menu", RestaurantID: "1"}
	dinner2 = &models.Menu{ID: "2", Name: "Dinner Menu", RestaurantID: "2"}

	salad = models.MenuItem{ID: "1", Name: "Caesar Salad", Price: decimal.RequireFromString("12.99"), CategoryID: "1"}
	juice = models.MenuItem{ID: "4", Name: "Fresh Juice", Price: decimal.RequireFromString("4.99"), CategoryID: "4"}
)

func apply(t *testing.T, s wizard.State, events ...wizard.Event) wizard.State {
	t.Helper()
	for _, ev := range events {
		var err error
		s, err = policy.Reduce(s, ev)
		require.NoError(t, err, "event %T", ev)
	}
	return s
}

// orderStep returns a wizard on the order step with one salad in the cart.
func orderStep(t *testing.T) wizard.State {
	return apply(t, wizard.New(),
		wizard.SelectCustomer{Customer: john},
		wizard.Next{},
		wizard.SelectRestaurant{Restaurant: pizza},
		wizard.SelectMenu{Menu: lunch},
		wizard.Next{},
		wizard.AddItem{Item: salad, At: time.UnixMilli(1)},
	)
}

func TestNextRequiresStepCompletion(t *testing.T) {
	s := wizard.New()
	require.Equal(t, wizard.StepCustomer, s.Step)

	out, err := policy.Reduce(s, wizard.Next{})
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked)
	assert.Equal(t, wizard.StepCustomer, out.Step)

	s = apply(t, s, wizard.SelectCustomer{Customer: john}, wizard.Next{})
	assert.Equal(t, wizard.StepRestaurantMenu, s.Step)

	s = apply(t, s, wizard.SelectRestaurant{Restaurant: pizza})
	_, err = policy.Reduce(s, wizard.Next{})
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked, "menu still missing")

	s = apply(t, s, wizard.SelectMenu{Menu: lunch}, wizard.Next{})
	assert.Equal(t, wizard.StepOrder, s.Step)

	out, err = policy.Reduce(s, wizard.Next{})
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked)
	assert.Equal(t, wizard.StepOrder, out.Step)

	s = apply(t, s, wizard.AddItem{Item: salad, At: time.UnixMilli(1)}, wizard.Next{})
	assert.Equal(t, wizard.StepPaymentDelivery, s.Step)

	_, err = policy.Reduce(s, wizard.Next{})
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked)
}

func TestPrevIsUnconditional(t *testing.T) {
	s := orderStep(t)

	s = apply(t, s, wizard.Prev{})
	assert.Equal(t, wizard.StepRestaurantMenu, s.Step)
	s = apply(t, s, wizard.Prev{}, wizard.Prev{}, wizard.Prev{})
	assert.Equal(t, wizard.StepCustomer, s.Step)
	assert.Equal(t, 1, s.Draft.Cart.LineCount())
}

func TestEventsAreBoundToTheirStep(t *testing.T) {
	s := wizard.New()

	_, err := policy.Reduce(s, wizard.SelectRestaurant{Restaurant: pizza})
	assert.ErrorIs(t, err, wizard.ErrWrongStep)

	_, err = policy.Reduce(s, wizard.AddItem{Item: salad})
	assert.ErrorIs(t, err, wizard.ErrWrongStep)

	_, err = policy.Reduce(s, wizard.SetPaymentMethod{ID: "card"})
	assert.ErrorIs(t, err, wizard.ErrWrongStep)
}

func TestSelectMenuMustBelongToRestaurant(t *testing.T) {
	s := apply(t, wizard.New(), wizard.SelectCustomer{Customer: john}, wizard.Next{})

	_, err := policy.Reduce(s, wizard.SelectMenu{Menu: lunch})
	assert.ErrorIs(t, err, wizard.ErrMenuMismatch, "no restaurant yet")

	s = apply(t, s, wizard.SelectRestaurant{Restaurant: pizza})
	out, err := policy.Reduce(s, wizard.SelectMenu{Menu: dinner2})
	assert.ErrorIs(t, err, wizard.ErrMenuMismatch)
	assert.Nil(t, out.Draft.Menu)

	s = apply(t, s, wizard.SelectMenu{Menu: lunch})
	assert.Equal(t, lunch, s.Draft.Menu)
}

func TestRestaurantChangeWithEmptyCartAppliesImmediately(t *testing.T) {
	s := apply(t, wizard.New(),
		wizard.SelectCustomer{Customer: john},
		wizard.Next{},
		wizard.SelectRestaurant{Restaurant: pizza},
		wizard.SelectMenu{Menu: lunch},
		wizard.SelectRestaurant{Restaurant: burger},
	)

	assert.Nil(t, s.Pending)
	assert.Equal(t, burger, s.Draft.Restaurant)
	assert.Nil(t, s.Draft.Menu)
}

func TestSameRestaurantSkipsConfirmation(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Prev{})
	same := *pizza

	s = apply(t, s, wizard.SelectRestaurant{Restaurant: &same})

	assert.Nil(t, s.Pending)
	assert.Nil(t, s.Draft.Menu)
	assert.Equal(t, 1, s.Draft.Cart.LineCount())
}

func TestRestaurantChangeScenario(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Prev{})
	before := s.Draft

	s = apply(t, s, wizard.SelectRestaurant{Restaurant: burger})
	require.NotNil(t, s.Pending)
	assert.Equal(t, wizard.ChangeRestaurant, s.Pending.Kind)
	assert.Equal(t, before, s.Draft, "draft untouched until confirmed")
	assert.False(t, s.CanAdvance())

	_, err := policy.Reduce(s, wizard.SelectMenu{Menu: dinner2})
	assert.ErrorIs(t, err, wizard.ErrChangePending)
	_, err = policy.Reduce(s, wizard.Next{})
	assert.ErrorIs(t, err, wizard.ErrChangePending)

	s = apply(t, s, wizard.ConfirmChange{})
	assert.Nil(t, s.Pending)
	assert.Equal(t, burger, s.Draft.Restaurant)
	assert.Nil(t, s.Draft.Menu)
	assert.True(t, s.Draft.Cart.IsEmpty())
	assert.Equal(t, john, s.Draft.Customer)
}

func TestCancelLeavesDraftUnchanged(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Prev{})
	before := s

	s = apply(t, s, wizard.SelectRestaurant{Restaurant: burger}, wizard.CancelChange{})

	assert.Equal(t, before, s)
}

func TestCustomerChangeIsGuardedToo(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Prev{}, wizard.Prev{})
	before := s.Draft

	s = apply(t, s, wizard.SelectCustomer{Customer: jane})
	require.NotNil(t, s.Pending)
	assert.Equal(t, wizard.ChangeCustomer, s.Pending.Kind)
	assert.Equal(t, before, s.Draft)

	s = apply(t, s, wizard.ConfirmChange{})
	assert.Equal(t, jane, s.Draft.Customer)
	assert.Nil(t, s.Draft.Restaurant)
	assert.Nil(t, s.Draft.Menu)
	assert.True(t, s.Draft.Cart.IsEmpty())
}

func TestCustomerChangeWithEmptyCartKeepsRestaurant(t *testing.T) {
	s := apply(t, wizard.New(),
		wizard.SelectCustomer{Customer: john},
		wizard.Next{},
		wizard.SelectRestaurant{Restaurant: pizza},
		wizard.Prev{},
		wizard.SelectCustomer{Customer: jane},
	)

	assert.Nil(t, s.Pending)
	assert.Equal(t, jane, s.Draft.Customer)
	assert.Equal(t, pizza, s.Draft.Restaurant)
}

func TestConfirmWithoutPendingChange(t *testing.T) {
	_, err := policy.Reduce(wizard.New(), wizard.ConfirmChange{})
	assert.ErrorIs(t, err, wizard.ErrNoPendingChange)
	_, err = policy.Reduce(wizard.New(), wizard.CancelChange{})
	assert.ErrorIs(t, err, wizard.ErrNoPendingChange)
}

func TestCartLineEvents(t *testing.T) {
	s := orderStep(t)
	lineID := s.Draft.Cart[0].ID

	s = apply(t, s,
		wizard.AddItem{Item: salad, At: time.UnixMilli(2)},
		wizard.AddItem{Item: juice, At: time.UnixMilli(3)},
		wizard.SetNotes{LineID: lineID, Notes: "dressing on the side"},
	)
	require.Equal(t, 2, s.Draft.Cart.LineCount())
	assert.Equal(t, 2, s.Draft.Cart[0].Quantity)
	assert.Equal(t, "dressing on the side", s.Draft.Cart[0].Notes)

	s = apply(t, s, wizard.SetQuantity{LineID: lineID, Quantity: 0})
	assert.Equal(t, 1, s.Draft.Cart.LineCount())

	_, err := policy.Reduce(s, wizard.RemoveLine{LineID: lineID})
	assert.ErrorIs(t, err, wizard.ErrUnknownLine)
}

func TestCheckoutOptions(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Next{})

	_, err := policy.Reduce(s, wizard.SetPaymentMethod{ID: "cash"})
	assert.ErrorIs(t, err, wizard.ErrUnknownOption)
	_, err = policy.Reduce(s, wizard.SetDeliveryOption{ID: "drone"})
	assert.ErrorIs(t, err, wizard.ErrUnknownOption)

	s = apply(t, s,
		wizard.SetPaymentMethod{ID: "juice"},
		wizard.SetDeliveryOption{ID: "delivery"},
		wizard.SetAllergies{Text: "peanuts"},
		wizard.SetDeliveryNotes{Text: "ring twice"},
	)
	assert.Equal(t, "juice", s.Draft.PaymentMethod)
	assert.Equal(t, "delivery", s.Draft.DeliveryOption)
	assert.Equal(t, "peanuts", s.Draft.Allergies)
	assert.Equal(t, "ring twice", s.Draft.DeliveryNotes)
}

func TestSubmitLifecycle(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Next{}, wizard.SetPaymentMethod{ID: "card"})

	assert.False(t, s.CanSubmit())
	_, err := policy.Reduce(s, wizard.BeginSubmit{})
	assert.ErrorIs(t, err, wizard.ErrValidationBlocked)

	s = apply(t, s, wizard.SetDeliveryOption{ID: "pickup"})
	require.True(t, s.CanSubmit())

	s = apply(t, s, wizard.BeginSubmit{})
	assert.True(t, s.Submitting)
	_, err = policy.Reduce(s, wizard.Prev{})
	assert.ErrorIs(t, err, wizard.ErrSubmitting)
	_, err = policy.Reduce(s, wizard.BeginSubmit{})
	assert.ErrorIs(t, err, wizard.ErrSubmitting)

	failed := apply(t, s, wizard.SubmitFailed{})
	assert.False(t, failed.Submitting)
	assert.Equal(t, s.Draft, failed.Draft)

	done := apply(t, s, wizard.SubmitSucceeded{})
	assert.Equal(t, wizard.New(), done)
}

func TestResetDiscardsPendingChange(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Prev{}, wizard.SelectRestaurant{Restaurant: burger})
	require.NotNil(t, s.Pending)

	assert.Equal(t, wizard.New(), apply(t, s, wizard.Reset{}))
}

func TestPendingChangeMessage(t *testing.T) {
	s := apply(t, orderStep(t), wizard.Prev{}, wizard.SelectRestaurant{Restaurant: burger})

	assert.Equal(t,
		`You currently have 1 item in your cart. Changing restaurant to "Burger House" will remove all items from your current order.`,
		s.Pending.Message(s.Draft.Cart))
}
