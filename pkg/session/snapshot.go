package session

import (
	"github.com/example/orderdesk/pkg/cart"
	"github.com/example/orderdesk/pkg/models"
	"github.com/example/orderdesk/pkg/wizard"
)

// Snapshot is a read-only copy of a session, shaped for rendering.
type Snapshot struct {
	ID          string                    `json:"id"`
	Step        wizard.Step               `json:"step"`
	StepName    string                    `json:"step_name"`
	Draft       wizard.Draft              `json:"draft"`
	Totals      cart.Totals               `json:"totals"`
	ItemCount   int                       `json:"item_count"`
	CanAdvance  bool                      `json:"can_advance"`
	CanSubmit   bool                      `json:"can_submit"`
	Submitting  bool                      `json:"submitting"`
	Pending     *PendingView              `json:"pending_change,omitempty"`
	Customers   CustomerView              `json:"customers"`
	Restaurants RestaurantView            `json:"restaurants"`
	Order       OrderView                 `json:"order"`
	Checkout    CheckoutView              `json:"checkout"`
	Confirmed   *models.OrderConfirmation `json:"last_confirmation,omitempty"`
	LastError   string                    `json:"last_error,omitempty"`
}

type PendingView struct {
	Kind    wizard.ChangeKind `json:"kind"`
	Target  string            `json:"target"`
	Lines   int               `json:"lines"`
	Message string            `json:"message"`
}

type CustomerView struct {
	Query   string            `json:"query"`
	Loading bool              `json:"loading"`
	Results []models.Customer `json:"results"`
}

type RestaurantView struct {
	Query        string              `json:"query"`
	Loading      bool                `json:"loading"`
	Results      []models.Restaurant `json:"results"`
	MenusLoading bool                `json:"menus_loading"`
	Menus        []models.Menu       `json:"menus"`
}

type OrderView struct {
	Loading    bool              `json:"loading"`
	Categories []models.Category `json:"categories"`
	Category   string            `json:"active_category"`
	Items      []models.MenuItem `json:"items"`
}

type CheckoutView struct {
	PaymentMethods  []wizard.Option `json:"payment_methods"`
	DeliveryOptions []wizard.Option `json:"delivery_options"`
}

func pendingView(s wizard.State) *PendingView {
	if s.Pending == nil {
		return nil
	}
	v := &PendingView{
		Kind:    s.Pending.Kind,
		Lines:   s.Draft.Cart.LineCount(),
		Message: s.Pending.Message(s.Draft.Cart),
	}
	switch {
	case s.Pending.Customer != nil:
		v.Target = s.Pending.Customer.Name
	case s.Pending.Restaurant != nil:
		v.Target = s.Pending.Restaurant.Name
	}
	return v
}
