package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/chatshop/internal/selection"
	"github.com/angelmondragon/chatshop/internal/session"
)

func (h *Handler) showCart(ctx context.Context, rec *session.Record, chatID string) {
	total := rec.CartTotal()
	if total.IsEmpty() {
		h.say(ctx, chatID, msgCartEmpty, nil)
		return
	}
	h.say(ctx, chatID, cartText(total), cartKeyboard(total))
}

// cartLocked refuses cart edits once an invoice for the cart is out.
func (h *Handler) cartLocked(ctx context.Context, rec *session.Record, ev Event) bool {
	if rec.Phase.Normalize() != session.PhaseAwaitingPayment {
		return false
	}
	h.answer(ctx, ev, msgCartLocked, true)
	return true
}

func (h *Handler) addToCart(ctx context.Context, rec *session.Record, ev Event) {
	if h.cartLocked(ctx, rec, ev) {
		return
	}
	if err := rec.AddSelectionToCart(); err != nil {
		if !errors.Is(err, selection.ErrNoSelection) {
			h.logg.Error(ctx, "add to cart failed", err)
		}
		h.answer(ctx, ev, msgSelectFirst, true)
		return
	}
	sel := rec.Selection
	h.answer(ctx, ev, fmt.Sprintf(msgAddedToCart, sel.Product.Name, sel.Quantity, rec.Cart.Quantity(sel.Product.ID)), true)
}

func (h *Handler) removeFromCart(ctx context.Context, rec *session.Record, ev Event, productID int64) {
	if h.cartLocked(ctx, rec, ev) {
		return
	}
	line, ok := rec.RemoveFromCart(productID)
	if !ok {
		h.answer(ctx, ev, msgLineNotFound, true)
		return
	}
	h.say(ctx, ev.ChatID, fmt.Sprintf(msgRemoved, line.Product.Name), nil)
	h.answer(ctx, ev, "", false)

	if !rec.HasCart() {
		h.abortIfAwaitingAddress(ctx, rec, ev.ChatID)
		return
	}
	total := rec.CartTotal()
	h.replace(ctx, ev.ChatID, ev.MessageID, cartText(total), cartKeyboard(total))
}

func (h *Handler) clearCart(ctx context.Context, rec *session.Record, ev Event) {
	if h.cartLocked(ctx, rec, ev) {
		return
	}
	if !rec.ClearCart() {
		h.answer(ctx, ev, msgCartAlreadyEmpty, true)
		return
	}
	h.answer(ctx, ev, msgCartCleared, true)
	h.replace(ctx, ev.ChatID, ev.MessageID, msgCartEmpty, nil)
	h.abortIfAwaitingAddress(ctx, rec, ev.ChatID)
}

// abortIfAwaitingAddress ends a checkout whose cart has just become empty.
func (h *Handler) abortIfAwaitingAddress(ctx context.Context, rec *session.Record, chatID string) {
	if rec.Phase.Normalize() != session.PhaseAwaitingAddress {
		return
	}
	h.abortEmptyCart(ctx, rec, chatID)
}

func (h *Handler) abortEmptyCart(ctx context.Context, rec *session.Record, chatID string) {
	h.logg.Info(ctx, "checkout aborted: cart empty")
	h.toIdle(ctx, rec)
	h.say(ctx, chatID, msgCheckoutAborted, nil)
	h.sendCategories(ctx, chatID)
}
