package session

import (
	"strings"

	"github.com/angelmondragon/chatshop/internal/cart"
	"github.com/angelmondragon/chatshop/internal/selection"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
)

// MinAddressLength is the minimum trimmed length of a delivery address.
const MinAddressLength = 5

// ErrAddressTooShort is returned for addresses under MinAddressLength.
var ErrAddressTooShort = pkgerrors.New(pkgerrors.CodeValidation, "delivery address too short")

// Record is everything the bot knows about one user. Cart is nil whenever the
// user has nothing in it; never leave an empty cart behind.
type Record struct {
	Key        string
	Phase      Phase
	Cart       *cart.Cart
	Selection  *selection.Selection
	Address    string
	InvoiceRef string
}

// AddSelectionToCart commits the current selection, creating the cart on
// first use.
func (r *Record) AddSelectionToCart() error {
	if r.Selection == nil {
		return selection.ErrNoSelection
	}
	if r.Cart == nil {
		r.Cart = cart.New()
	}
	err := selection.Commit(r.Selection, r.Cart)
	if r.Cart.IsEmpty() {
		r.Cart = nil
	}
	return err
}

// RemoveFromCart deletes a line and drops the cart once it is empty.
func (r *Record) RemoveFromCart(productID int64) (cart.Line, bool) {
	line, ok := r.Cart.Remove(productID)
	if r.Cart.IsEmpty() {
		r.Cart = nil
	}
	return line, ok
}

// ClearCart drops the cart. It reports whether there was anything to clear.
func (r *Record) ClearCart() bool {
	had := !r.Cart.IsEmpty()
	r.Cart = nil
	return had
}

// HasCart reports whether the cart holds at least one line.
func (r *Record) HasCart() bool {
	return !r.Cart.IsEmpty()
}

// CartTotal prices the cart; an absent cart totals to zero.
func (r *Record) CartTotal() cart.Total {
	return cart.ComputeTotal(r.Cart)
}

// CaptureAddress validates and stores a delivery address.
func (r *Record) CaptureAddress(text string) error {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < MinAddressLength {
		return ErrAddressTooShort
	}
	r.Address = trimmed
	return nil
}

// AbortCheckout returns to idle and forgets checkout-only data. The cart is kept.
func (r *Record) AbortCheckout() {
	r.Phase = PhaseIdle
	r.Address = ""
	r.InvoiceRef = ""
}

// CompleteCheckout clears cart and address after every order was created.
func (r *Record) CompleteCheckout() {
	r.Cart = nil
	r.AbortCheckout()
}
