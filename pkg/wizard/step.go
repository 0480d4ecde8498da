package wizard

import "fmt"

type Step int

const (
	StepCustomer Step = iota + 1
	StepRestaurantMenu
	StepOrder
	StepPaymentDelivery
)

const (
	FirstStep = StepCustomer
	LastStep  = StepPaymentDelivery
)

// StepInfo describes a step for step indicators.
type StepInfo struct {
	ID          Step   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var Steps = []StepInfo{
	{ID: StepCustomer, Name: "Customer", Description: "Select customer"},
	{ID: StepRestaurantMenu, Name: "Restaurant", Description: "Choose restaurant & menu"},
	{ID: StepOrder, Name: "Order", Description: "Select items"},
	{ID: StepPaymentDelivery, Name: "Payment", Description: "Payment & delivery"},
}

func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return Steps[s-1].Name
}
