package wizard

import (
	"fmt"

	"github.com/example/orderdesk/pkg/cart"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/models"
	"github.com/shopspring/decimal"
)

// Option is one selectable payment method or delivery option.
type Option struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

// Policy carries the business constants of the wizard.
type Policy struct {
	TaxRate         decimal.Decimal `json:"tax_rate"`
	PaymentMethods  []Option        `json:"payment_methods"`
	DeliveryOptions []Option        `json:"delivery_options"`
}

var defaultPaymentMethods = []Option{
	{ID: "card", Name: "Credit/Debit Card"},
	{ID: "juice", Name: "Juice Wallet"},
	{ID: "myt", Name: "My.t Money"},
	{ID: "bank", Name: "Bank Transfer"},
}

var defaultDeliveryOptions = []Option{
	{ID: "pickup", Name: "Pick-up", Description: "Collect from restaurant"},
	{ID: "delivery", Name: "Delivery", Description: "Deliver to address"},
}

func DefaultPolicy() Policy {
	return Policy{
		TaxRate:         cart.DefaultTaxRate,
		PaymentMethods:  append([]Option(nil), defaultPaymentMethods...),
		DeliveryOptions: append([]Option(nil), defaultDeliveryOptions...),
	}
}

// NewPolicy builds a Policy from configuration, falling back to the defaults
// for anything left empty.
func NewPolicy(cfg config.WizardConfig) (Policy, error) {
	p := DefaultPolicy()

	if cfg.TaxRate != "" {
		rate, err := decimal.NewFromString(cfg.TaxRate)
		if err != nil {
			return Policy{}, fmt.Errorf("failed to parse tax rate %q: %w", cfg.TaxRate, err)
		}
		if rate.IsNegative() {
			return Policy{}, fmt.Errorf("tax rate %s is negative", rate)
		}
		if !rate.Equal(rate.Truncate(models.TaxRateScale)) {
			return Policy{}, fmt.Errorf("tax rate %s has more than %d decimal places", rate, models.TaxRateScale)
		}
		p.TaxRate = rate
	}
	if len(cfg.PaymentMethods) > 0 {
		p.PaymentMethods = optionsFromConfig(cfg.PaymentMethods)
	}
	if len(cfg.DeliveryOptions) > 0 {
		p.DeliveryOptions = optionsFromConfig(cfg.DeliveryOptions)
	}

	return p, nil
}

func optionsFromConfig(in []config.OptionConfig) []Option {
	out := make([]Option, len(in))
	for i, o := range in {
		out[i] = Option{ID: o.ID, Name: o.Name, Description: o.Description}
	}
	return out
}

func findOption(opts []Option, id string) (Option, bool) {
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// PaymentMethod looks up a payment method by id.
func (p Policy) PaymentMethod(id string) (Option, bool) {
	return findOption(p.PaymentMethods, id)
}

// DeliveryOption looks up a delivery option by id.
func (p Policy) DeliveryOption(id string) (Option, bool) {
	return findOption(p.DeliveryOptions, id)
}
