// Package cart holds the order cart: an ordered list of priced lines with
// derived subtotal, tax and total. Every mutation returns a new Cart and
// leaves the receiver untouched, so a cart can be stored in a draft value
// and compared or discarded freely.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/orderdesk/pkg/models"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the policy rate applied when none is configured.
var DefaultTaxRate = decimal.RequireFromString("0.15")

var ErrInvalidQuantity = errors.New("quantity must not be negative")

// Modifier is reserved for item option selection; nothing populates it yet.
type Modifier struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Line is one entry of the cart. Item is a snapshot taken when the line was
// created, so later catalog price changes do not affect it.
type Line struct {
	ID        string          `json:"id"`
	Item      models.MenuItem `json:"item"`
	Quantity  int             `json:"quantity"`
	Notes     string          `json:"notes"`
	Modifiers []Modifier      `json:"modifiers"`
}

// Amount is price * quantity for the line.
func (l Line) Amount() decimal.Decimal {
	return l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart []Line

// LineID derives a line id from the item id and the creation time.
func LineID(itemID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", itemID, at.UnixMilli())
}

func (c Cart) clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

func (c Cart) index(lineID string) int {
	for i, l := range c {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

// AddItem increments the line holding item, or appends a new line with
// quantity 1 when the item is not in the cart yet.
func (c Cart) AddItem(item models.MenuItem, at time.Time) Cart {
	out := c.clone()
	for i := range out {
		if out[i].Item.ID == item.ID {
			out[i].Quantity++
			return out
		}
	}
	return append(out, Line{
		ID:        LineID(item.ID, at),
		Item:      item,
		Quantity:  1,
		Modifiers: []Modifier{},
	})
}

// SetQuantity replaces the quantity of a line; zero removes it. Unknown line
// ids leave the cart as is.
func (c Cart) SetQuantity(lineID string, qty int) (Cart, error) {
	if qty < 0 {
		return c, fmt.Errorf("line %s: %w", lineID, ErrInvalidQuantity)
	}
	if qty == 0 {
		return c.RemoveLine(lineID), nil
	}
	i := c.index(lineID)
	if i < 0 {
		return c, nil
	}
	out := c.clone()
	out[i].Quantity = qty
	return out, nil
}

func (c Cart) RemoveLine(lineID string) Cart {
	i := c.index(lineID)
	if i < 0 {
		return c
	}
	out := make(Cart, 0, len(c)-1)
	out = append(out, c[:i]...)
	return append(out, c[i+1:]...)
}

func (c Cart) SetNotes(lineID, notes string) Cart {
	i := c.index(lineID)
	if i < 0 {
		return c
	}
	out := c.clone()
	out[i].Notes = notes
	return out
}

// Line returns the line with the given id.
func (c Cart) Line(lineID string) (Line, bool) {
	i := c.index(lineID)
	if i < 0 {
		return Line{}, false
	}
	return c[i], true
}

// Quantity reports how many units of itemID the cart holds.
func (c Cart) Quantity(itemID string) int {
	for _, l := range c {
		if l.Item.ID == itemID {
			return l.Quantity
		}
	}
	return 0
}

// LineCount is the number of distinct lines.
func (c Cart) LineCount() int {
	return len(c)
}

// ItemCount is the number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c {
		n += l.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c {
		sum = sum.Add(l.Amount())
	}
	return sum
}

func (c Cart) Tax(rate decimal.Decimal) decimal.Decimal {
	return c.Subtotal().Mul(rate)
}

func (c Cart) Total(rate decimal.Decimal) decimal.Decimal {
	sub := c.Subtotal()
	return sub.Add(sub.Mul(rate))
}

// Totals groups the derived amounts for display.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

func (c Cart) Totals(rate decimal.Decimal) Totals {
	sub := c.Subtotal()
	tax := sub.Mul(rate)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}
