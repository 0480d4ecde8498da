package wizard

import (
	"fmt"

	"github.com/example/orderdesk/pkg/cart"
	"github.com/example/orderdesk/pkg/models"
)

type ChangeKind string

const (
	ChangeCustomer   ChangeKind = "customer"
	ChangeRestaurant ChangeKind = "restaurant"
)

// PendingChange is a customer or restaurant selection held back because it
// would discard a non-empty cart. A nil target means deselection.
type PendingChange struct {
	Kind       ChangeKind         `json:"kind"`
	Customer   *models.Customer   `json:"customer,omitempty"`
	Restaurant *models.Restaurant `json:"restaurant,omitempty"`
}

func (p PendingChange) targetName() string {
	switch p.Kind {
	case ChangeCustomer:
		if p.Customer != nil {
			return p.Customer.Name
		}
	case ChangeRestaurant:
		if p.Restaurant != nil {
			return p.Restaurant.Name
		}
	}
	return "none"
}

// Message is the confirmation prompt shown for the change.
func (p PendingChange) Message(c cart.Cart) string {
	n := c.LineCount()
	noun := "items"
	if n == 1 {
		noun = "item"
	}
	return fmt.Sprintf("You currently have %d %s in your cart. Changing %s to %q will remove all items from your current order.",
		n, noun, p.Kind, p.targetName())
}

func sameCustomer(a, b *models.Customer) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func sameRestaurant(a, b *models.Restaurant) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func selectCustomer(s State, c *models.Customer) State {
	if s.Draft.Cart.IsEmpty() || sameCustomer(s.Draft.Customer, c) {
		s.Draft.Customer = c
		return s
	}
	s.Pending = &PendingChange{Kind: ChangeCustomer, Customer: c}
	return s
}

func selectRestaurant(s State, r *models.Restaurant) State {
	if s.Draft.Cart.IsEmpty() || sameRestaurant(s.Draft.Restaurant, r) {
		s.Draft.Restaurant = r
		s.Draft.Menu = nil
		return s
	}
	s.Pending = &PendingChange{Kind: ChangeRestaurant, Restaurant: r}
	return s
}

func confirmChange(s State) (State, error) {
	if s.Pending == nil {
		return s, ErrNoPendingChange
	}
	p := *s.Pending
	s.Pending = nil

	switch p.Kind {
	case ChangeCustomer:
		s.Draft.Customer = p.Customer
		s.Draft.Restaurant = nil
	case ChangeRestaurant:
		s.Draft.Restaurant = p.Restaurant
	}
	s.Draft.Menu = nil
	s.Draft.Cart = cart.Cart{}
	return s, nil
}

func cancelChange(s State) (State, error) {
	if s.Pending == nil {
		return s, ErrNoPendingChange
	}
	s.Pending = nil
	return s, nil
}
