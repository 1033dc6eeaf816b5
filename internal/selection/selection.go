// Package selection tracks the product a user is configuring before it is
// committed to the cart.
package selection

import (
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/types"
)

// ErrNoSelection is the user-facing "select a product first" condition.
var ErrNoSelection = pkgerrors.New(pkgerrors.CodeValidation, "select a product first")

type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// Selection is the product currently being configured. Quantity is >= 1.
type Selection struct {
	Product  types.Product
	Quantity int
}

// Adder receives committed selections.
type Adder interface {
	AddOrIncrement(product types.Product, qty int) error
}

// Select starts a new selection at quantity 1. Any previous selection is
// discarded by the caller storing the returned value.
func Select(product types.Product) *Selection {
	return &Selection{Product: product, Quantity: 1}
}

// Adjust moves the quantity one step. Decrease never goes below 1.
func Adjust(sel *Selection, dir Direction) error {
	if sel == nil {
		return ErrNoSelection
	}
	switch dir {
	case Increase:
		sel.Quantity++
	case Decrease:
		if sel.Quantity > 1 {
			sel.Quantity--
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown quantity direction")
	}
	return nil
}

// Commit copies the selection into dst. The selection stays editable.
func Commit(sel *Selection, dst Adder) error {
	if sel == nil {
		return ErrNoSelection
	}
	qty := sel.Quantity
	if qty < 1 {
		qty = 1
	}
	return dst.AddOrIncrement(sel.Product, qty)
}
