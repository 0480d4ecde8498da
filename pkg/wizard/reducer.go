package wizard

import (
	"fmt"
	"time"

	"github.com/example/orderdesk/pkg/models"
)

// Event is one user action applied to the wizard.
type Event interface {
	event()
}

type (
	SelectCustomer   struct{ Customer *models.Customer }
	SelectRestaurant struct{ Restaurant *models.Restaurant }
	SelectMenu       struct{ Menu *models.Menu }
	ConfirmChange    struct{}
	CancelChange     struct{}

	AddItem struct {
		Item models.MenuItem
		At   time.Time
	}
	SetQuantity struct {
		LineID   string
		Quantity int
	}
	RemoveLine struct{ LineID string }
	SetNotes   struct {
		LineID string
		Notes  string
	}

	SetPaymentMethod  struct{ ID string }
	SetDeliveryOption struct{ ID string }
	SetAllergies      struct{ Text string }
	SetDeliveryNotes  struct{ Text string }

	Next struct{}
	Prev struct{}

	BeginSubmit     struct{}
	SubmitSucceeded struct{}
	SubmitFailed    struct{}

	Reset struct{}
)

func (SelectCustomer) event()    {}
func (SelectRestaurant) event()  {}
func (SelectMenu) event()        {}
func (ConfirmChange) event()     {}
func (CancelChange) event()      {}
func (AddItem) event()           {}
func (SetQuantity) event()       {}
func (RemoveLine) event()        {}
func (SetNotes) event()          {}
func (SetPaymentMethod) event()  {}
func (SetDeliveryOption) event() {}
func (SetAllergies) event()      {}
func (SetDeliveryNotes) event()  {}
func (Next) event()              {}
func (Prev) event()              {}
func (BeginSubmit) event()       {}
func (SubmitSucceeded) event()   {}
func (SubmitFailed) event()      {}
func (Reset) event()             {}

// Reduce applies ev to s. On error the returned state is s unchanged.
func (p Policy) Reduce(s State, ev Event) (State, error) {
	// Submission outcome events are the only ones accepted while submitting.
	if s.Submitting {
		switch ev.(type) {
		case SubmitSucceeded:
			return New(), nil
		case SubmitFailed:
			s.Submitting = false
			return s, nil
		default:
			return s, ErrSubmitting
		}
	}

	if s.Pending != nil {
		switch ev.(type) {
		case ConfirmChange:
			return confirmChange(s)
		case CancelChange:
			return cancelChange(s)
		case Reset:
			return New(), nil
		default:
			return s, ErrChangePending
		}
	}

	switch ev := ev.(type) {
	case ConfirmChange:
		return confirmChange(s)
	case CancelChange:
		return cancelChange(s)
	case Reset:
		return New(), nil

	case SelectCustomer:
		if err := requireStep(s, StepCustomer); err != nil {
			return s, err
		}
		return selectCustomer(s, ev.Customer), nil

	case SelectRestaurant:
		if err := requireStep(s, StepRestaurantMenu); err != nil {
			return s, err
		}
		return selectRestaurant(s, ev.Restaurant), nil

	case SelectMenu:
		if err := requireStep(s, StepRestaurantMenu); err != nil {
			return s, err
		}
		if ev.Menu == nil {
			s.Draft.Menu = nil
			return s, nil
		}
		if s.Draft.Restaurant == nil || ev.Menu.RestaurantID != s.Draft.Restaurant.ID {
			return s, fmt.Errorf("menu %s: %w", ev.Menu.ID, ErrMenuMismatch)
		}
		s.Draft.Menu = ev.Menu
		return s, nil

	case AddItem:
		if err := requireStep(s, StepOrder); err != nil {
			return s, err
		}
		if !s.Draft.HasMenu() {
			return s, fmt.Errorf("no menu selected: %w", ErrValidationBlocked)
		}
		s.Draft.Cart = s.Draft.Cart.AddItem(ev.Item, ev.At)
		return s, nil

	case SetQuantity:
		if err := requireLine(s, ev.LineID); err != nil {
			return s, err
		}
		c, err := s.Draft.Cart.SetQuantity(ev.LineID, ev.Quantity)
		if err != nil {
			return s, err
		}
		s.Draft.Cart = c
		return s, nil

	case RemoveLine:
		if err := requireLine(s, ev.LineID); err != nil {
			return s, err
		}
		s.Draft.Cart = s.Draft.Cart.RemoveLine(ev.LineID)
		return s, nil

	case SetNotes:
		if err := requireLine(s, ev.LineID); err != nil {
			return s, err
		}
		s.Draft.Cart = s.Draft.Cart.SetNotes(ev.LineID, ev.Notes)
		return s, nil

	case SetPaymentMethod:
		if err := requireStep(s, StepPaymentDelivery); err != nil {
			return s, err
		}
		if _, ok := p.PaymentMethod(ev.ID); !ok {
			return s, fmt.Errorf("payment method %q: %w", ev.ID, ErrUnknownOption)
		}
		s.Draft.PaymentMethod = ev.ID
		return s, nil

	case SetDeliveryOption:
		if err := requireStep(s, StepPaymentDelivery); err != nil {
			return s, err
		}
		if _, ok := p.DeliveryOption(ev.ID); !ok {
			return s, fmt.Errorf("delivery option %q: %w", ev.ID, ErrUnknownOption)
		}
		s.Draft.DeliveryOption = ev.ID
		return s, nil

	case SetAllergies:
		if err := requireStep(s, StepPaymentDelivery); err != nil {
			return s, err
		}
		s.Draft.Allergies = ev.Text
		return s, nil

	case SetDeliveryNotes:
		if err := requireStep(s, StepPaymentDelivery); err != nil {
			return s, err
		}
		s.Draft.DeliveryNotes = ev.Text
		return s, nil

	case Next:
		if s.Step >= LastStep {
			return s, fmt.Errorf("already on the last step: %w", ErrValidationBlocked)
		}
		if !s.CanAdvance() {
			return s, fmt.Errorf("step %s incomplete: %w", s.Step, ErrValidationBlocked)
		}
		s.Step++
		return s, nil

	case Prev:
		if s.Step > FirstStep {
			s.Step--
		}
		return s, nil

	case BeginSubmit:
		if !s.CanSubmit() {
			return s, fmt.Errorf("order incomplete: %w", ErrValidationBlocked)
		}
		s.Submitting = true
		return s, nil

	case SubmitSucceeded, SubmitFailed:
		return s, fmt.Errorf("no submission in progress: %w", ErrValidationBlocked)
	}

	return s, fmt.Errorf("unhandled event %T", ev)
}

func requireStep(s State, step Step) error {
	if s.Step != step {
		return fmt.Errorf("%s on step %s: %w", step, s.Step, ErrWrongStep)
	}
	return nil
}

func requireLine(s State, lineID string) error {
	if err := requireStep(s, StepOrder); err != nil {
		return err
	}
	if _, ok := s.Draft.Cart.Line(lineID); !ok {
		return fmt.Errorf("line %s: %w", lineID, ErrUnknownLine)
	}
	return nil
}
