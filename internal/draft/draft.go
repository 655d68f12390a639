// Package draft holds the terminal-local cart for the table currently open
// on this terminal. It is pure and synchronous: no I/O, no locking; the
// owning session serializes access and reacts to mutations.
package draft

import (
	"errors"

	"github.com/google/uuid"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/shopspring/decimal"
)

// Errors returned by cart mutations.
var (
	ErrEmptyName    = errors.New("item name is required")
	ErrInvalidPrice = errors.New("item price must be > 0")
	ErrLineNotFound = errors.New("cart line not found")
)

// Cart is the draft order for one open table.
type Cart struct {
	items        []model.OrderItem
	captainName  string
	customerName string
	paymentMode  string
}

// New creates an empty cart.
func New() *Cart {
	return &Cart{}
}

// AddLine adds one unit of a menu item: a new line for an unseen item, or
// quantity+1 on the existing line. Price and tax rate are snapshots captured
// now; later catalog changes do not reach this line.
func (c *Cart) AddLine(menuItemID, name string, price, taxRate decimal.Decimal) ([]model.OrderItem, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	for i := range c.items {
		if c.items[i].MenuItemID == menuItemID {
			c.items[i].Quantity++
			return c.mutated(), nil
		}
	}
	c.items = append(c.items, model.OrderItem{
		ID:         uuid.NewString(),
		MenuItemID: menuItemID,
		Name:       name,
		Price:      price,
		Quantity:   1,
		TaxRate:    taxRate,
	})
	return c.mutated(), nil
}

// SetQuantity sets a line's quantity, clamped at 0. A line reaching 0 is
// removed from the list.
func (c *Cart) SetQuantity(lineID string, qty int) ([]model.OrderItem, error) {
	if qty < 0 {
		qty = 0
	}
	for i := range c.items {
		if c.items[i].ID != lineID {
			continue
		}
		if qty == 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		} else {
			c.items[i].Quantity = qty
		}
		return c.mutated(), nil
	}
	return nil, ErrLineNotFound
}

// SetPrice overrides a line's price for this order only.
func (c *Cart) SetPrice(lineID string, price decimal.Decimal) ([]model.OrderItem, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	for i := range c.items {
		if c.items[i].ID == lineID {
			c.items[i].Price = price
			return c.mutated(), nil
		}
	}
	return nil, ErrLineNotFound
}

// SetCaptain records the captain serving this table.
func (c *Cart) SetCaptain(name string) []model.OrderItem {
	c.captainName = name
	return c.mutated()
}

// SetCustomer records the customer name on the draft.
func (c *Cart) SetCustomer(name string) []model.OrderItem {
	c.customerName = name
	return c.mutated()
}

// SetPaymentMode records the intended payment mode.
func (c *Cart) SetPaymentMode(mode string) []model.OrderItem {
	c.paymentMode = mode
	return c.mutated()
}

// Clear drops every line and all metadata.
func (c *Cart) Clear() []model.OrderItem {
	c.items = nil
	c.captainName = ""
	c.customerName = ""
	c.paymentMode = ""
	return c.mutated()
}

// Adopt replaces the whole draft with remote state. Used by the sync engine
// for last-write-wins adoption of a differing remote snapshot.
func (c *Cart) Adopt(items []model.OrderItem, captain, customer, paymentMode string) {
	c.items = model.CloneItems(items)
	c.captainName = captain
	c.customerName = customer
	c.paymentMode = paymentMode
}

// Items returns an immutable snapshot of the current lines.
func (c *Cart) Items() []model.OrderItem { return model.CloneItems(c.items) }

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.items) == 0 }

// CaptainName returns the captain metadata.
func (c *Cart) CaptainName() string { return c.captainName }

// CustomerName returns the customer metadata.
func (c *Cart) CustomerName() string { return c.customerName }

// PaymentMode returns the payment mode metadata.
func (c *Cart) PaymentMode() string { return c.paymentMode }

func (c *Cart) mutated() []model.OrderItem {
	return model.CloneItems(c.items)
}
