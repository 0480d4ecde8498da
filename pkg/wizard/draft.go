// Package wizard implements the order-creation wizard: the order draft, the
// change guard protecting the cart, and the four-step navigation machine.
// All mutation goes through Policy.Reduce.
package wizard

import (
	"github.com/example/orderdesk/pkg/cart"
	"github.com/example/orderdesk/pkg/models"
)

// Draft is the in-progress, not yet submitted order.
//
// Menu is only set together with Restaurant, and Menu.RestaurantID always
// equals Restaurant.ID.
type Draft struct {
	Customer       *models.Customer   `json:"customer"`
	Restaurant     *models.Restaurant `json:"restaurant"`
	Menu           *models.Menu       `json:"menu"`
	Cart           cart.Cart          `json:"cart"`
	PaymentMethod  string             `json:"payment_method"`
	DeliveryOption string             `json:"delivery_option"`
	Allergies      string             `json:"allergies"`
	DeliveryNotes  string             `json:"delivery_notes"`
}

func (d Draft) HasCustomer() bool { return d.Customer != nil }

func (d Draft) HasMenu() bool { return d.Restaurant != nil && d.Menu != nil }

// Complete reports whether the draft carries everything submission needs.
func (d Draft) Complete() bool {
	return d.HasCustomer() &&
		d.HasMenu() &&
		!d.Cart.IsEmpty() &&
		d.PaymentMethod != "" &&
		d.DeliveryOption != ""
}

// State is the whole wizard: the draft plus navigation and guard state.
type State struct {
	Step       Step           `json:"step"`
	Draft      Draft          `json:"draft"`
	Pending    *PendingChange `json:"pending_change"`
	Submitting bool           `json:"submitting"`
}

// New returns a fresh wizard on the first step.
func New() State {
	return State{
		Step:  StepCustomer,
		Draft: Draft{Cart: cart.Cart{}},
	}
}

// CanAdvance reports whether Next would move forward from the current step.
func (s State) CanAdvance() bool {
	if s.Pending != nil || s.Submitting {
		return false
	}
	switch s.Step {
	case StepCustomer:
		return s.Draft.HasCustomer()
	case StepRestaurantMenu:
		return s.Draft.HasMenu()
	case StepOrder:
		return !s.Draft.Cart.IsEmpty()
	default:
		return false
	}
}

// CanSubmit reports whether the order may be submitted.
func (s State) CanSubmit() bool {
	return s.Step == StepPaymentDelivery &&
		s.Pending == nil &&
		!s.Submitting &&
		s.Draft.Complete()
}
