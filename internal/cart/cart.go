// Package cart holds a user's committed product lines and their pricing.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/pricing"
	"github.com/angelmondragon/chatshop/pkg/types"
)

// ErrInvalidQuantity is returned when a caller tries to add fewer than one unit.
var ErrInvalidQuantity = pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")

// Line is one product in the cart. Quantity is never below 1.
type Line struct {
	Product  types.Product
	Quantity int
}

// Cart maps product id to line and remembers insertion order so that
// iteration, rendering and order creation are stable.
type Cart struct {
	lines map[int64]*Line
	order []int64
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{lines: map[int64]*Line{}}
}

// AddOrIncrement inserts the product or increases the quantity of an
// existing line. Stock is not checked.
func (c *Cart) AddOrIncrement(product types.Product, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if c.lines == nil {
		c.lines = map[int64]*Line{}
	}
	if line, ok := c.lines[product.ID]; ok {
		line.Quantity += qty
		return nil
	}
	c.lines[product.ID] = &Line{Product: product, Quantity: qty}
	c.order = append(c.order, product.ID)
	return nil
}

// Remove deletes the line for productID. The returned bool is false when the
// product was not in the cart.
func (c *Cart) Remove(productID int64) (Line, bool) {
	if c == nil {
		return Line{}, false
	}
	line, ok := c.lines[productID]
	if !ok {
		return Line{}, false
	}
	delete(c.lines, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return *line, true
}

// Quantity returns the quantity held for productID, or 0.
func (c *Cart) Quantity(productID int64) int {
	if c == nil {
		return 0
	}
	if line, ok := c.lines[productID]; ok {
		return line.Quantity
	}
	return 0
}

// Len returns the number of distinct products.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.lines)
}

// IsEmpty treats nil and zero-line carts alike.
func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// Lines returns copies of the lines in insertion order.
func (c *Cart) Lines() []Line {
	if c == nil {
		return nil
	}
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		if line, ok := c.lines[id]; ok {
			out = append(out, *line)
		}
	}
	return out
}

// TotalLine is a priced cart line.
type TotalLine struct {
	Product   types.Product
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Total is the priced view of a cart. Amounts keep full precision; use
// Display for rendering.
type Total struct {
	Lines []TotalLine
	Grand decimal.Decimal
}

// IsEmpty reports whether the total has no lines.
func (t Total) IsEmpty() bool {
	return len(t.Lines) == 0
}

// Display renders the grand total with two decimals.
func (t Total) Display() string {
	return pricing.Display(t.Grand)
}

// ComputeTotal prices every line as quantity * unit price. A nil cart yields
// the empty total.
func ComputeTotal(c *Cart) Total {
	total := Total{Grand: decimal.Zero}
	for _, line := range c.Lines() {
		unit := pricing.Normalize(context.Background(), nil, line.Product.Name, line.Product.Price)
		subtotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total.Lines = append(total.Lines, TotalLine{
			Product:   line.Product,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Subtotal:  subtotal,
		})
		total.Grand = total.Grand.Add(subtotal)
	}
	return total
}
