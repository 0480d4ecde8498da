package session

import (
	"github.com/example/orderdesk/pkg/models"
)

// Command is a request handled by a session actor. Every command is answered
// with a *Reply once the lists it caused to load have settled.
type Command interface {
	command()
}

type (
	GetSnapshot struct{}

	SearchCustomers   struct{ Query string }
	SearchRestaurants struct{ Query string }

	// An empty ID deselects.
	SelectCustomer   struct{ ID string }
	SelectRestaurant struct{ ID string }
	SelectMenu       struct{ ID string }
	// SelectCategory switches the order step's category tab. An empty ID
	// shows every item.
	SelectCategory struct{ ID string }

	ConfirmChange struct{}
	CancelChange  struct{}

	AddItem struct{ ItemID string }

	// UpdateLine sets whichever of Notes and Quantity are non-nil, notes
	// first. A zero quantity removes the line.
	UpdateLine struct {
		LineID   string
		Quantity *int
		Notes    *string
	}
	RemoveLine struct{ LineID string }

	// UpdateCheckout sets the non-nil fields atomically.
	UpdateCheckout struct {
		PaymentMethod  *string
		DeliveryOption *string
		Allergies      *string
		DeliveryNotes  *string
	}

	Next   struct{}
	Prev   struct{}
	Submit struct{}
	Reset  struct{}
)

func (*GetSnapshot) command()       {}
func (*SearchCustomers) command()   {}
func (*SearchRestaurants) command() {}
func (*SelectCustomer) command()    {}
func (*SelectRestaurant) command()  {}
func (*SelectMenu) command()        {}
func (*SelectCategory) command()    {}
func (*ConfirmChange) command()     {}
func (*CancelChange) command()      {}
func (*AddItem) command()           {}
func (*UpdateLine) command()        {}
func (*RemoveLine) command()        {}
func (*UpdateCheckout) command()    {}
func (*Next) command()              {}
func (*Prev) command()              {}
func (*Submit) command()            {}
func (*Reset) command()             {}

// Reply answers a Command. Err is set when the command was rejected; the
// snapshot is then the unchanged session.
type Reply struct {
	Snapshot Snapshot
	Err      error
}

type list int

const (
	listCustomers list = iota
	listRestaurants
	listMenus
	listCategories
	listItems
	numLists
)

func (l list) String() string {
	switch l {
	case listCustomers:
		return "customers"
	case listRestaurants:
		return "restaurants"
	case listMenus:
		return "menus"
	case listCategories:
		return "categories"
	case listItems:
		return "items"
	}
	return "unknown"
}

// fetchResult carries a finished catalog call back into the actor.
type fetchResult struct {
	list   list
	gen    uint64
	result interface{}
	err    error
}

type submitResult struct {
	confirmation models.OrderConfirmation
	err          error
}

// Background completions must not keep an idle session alive.
func (*fetchResult) NotInfluenceReceiveTimeout()  {}
func (*submitResult) NotInfluenceReceiveTimeout() {}
