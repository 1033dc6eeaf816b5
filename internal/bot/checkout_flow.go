package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/chatshop/internal/cart"
	"github.com/angelmondragon/chatshop/internal/checkout"
	"github.com/angelmondragon/chatshop/internal/session"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/pricing"
	"github.com/angelmondragon/chatshop/pkg/types"
)

func (h *Handler) placeOrder(ctx context.Context, rec *session.Record, ev Event) {
	switch rec.Phase.Normalize() {
	case session.PhaseAwaitingPayment:
		h.answer(ctx, ev, msgAwaitingPayment, true)
		return
	case session.PhaseAwaitingAddress:
		h.answer(ctx, ev, "", false)
		h.say(ctx, ev.ChatID, msgAskAddress, nil)
		return
	}

	if !rec.HasCart() {
		h.answer(ctx, ev, msgOrderEmptyCart, true)
		return
	}
	if !h.settings.PaymentGated {
		h.commitDirect(ctx, rec, ev)
		return
	}
	if err := h.machine.Transition(rec, session.PhaseAwaitingAddress); err != nil {
		h.logg.Error(ctx, "start checkout rejected", err)
		h.answer(ctx, ev, "", false)
		return
	}
	h.logg.Info(ctx, "checkout started")
	h.answer(ctx, ev, "", false)
	h.say(ctx, ev.ChatID, msgAskAddress, nil)
}

// commitDirect runs the protocol right away, without payment.
func (h *Handler) commitDirect(ctx context.Context, rec *session.Record, ev Event) {
	_, err := h.checkout.Commit(ctx, checkout.Request{ChatKey: ev.ChatID, Cart: rec.Cart})
	if err != nil {
		h.answer(ctx, ev, "", false)
		h.reportCheckoutError(ctx, ev.ChatID, err)
		return
	}
	rec.CompleteCheckout()
	h.answer(ctx, ev, msgOrderPlaced, true)
	h.replace(ctx, ev.ChatID, ev.MessageID, msgCartEmpty, nil)
}

func (h *Handler) captureAddress(ctx context.Context, rec *session.Record, chatID, text string) {
	if !rec.HasCart() {
		h.abortEmptyCart(ctx, rec, chatID)
		return
	}
	if err := rec.CaptureAddress(text); err != nil {
		h.say(ctx, chatID, fmt.Sprintf(msgAddressTooShort, session.MinAddressLength), nil)
		return
	}

	ref := h.newRef()
	invoice := h.buildInvoice(rec.CartTotal(), rec.Address, ref)
	if err := h.channel.SendInvoice(ctx, chatID, invoice); err != nil {
		h.logg.Error(ctx, "invoice dispatch failed", err)
		h.toIdle(ctx, rec)
		h.say(ctx, chatID, msgInvoiceFailed, nil)
		return
	}
	if err := h.machine.Transition(rec, session.PhaseAwaitingPayment); err != nil {
		h.logg.Error(ctx, "await payment rejected", err)
		return
	}
	rec.InvoiceRef = ref
	h.logg.Info(h.logg.WithField(ctx, "invoice_ref", ref), "invoice sent")
}

func (h *Handler) buildInvoice(total cart.Total, address, ref string) types.Invoice {
	prices := make([]types.LabeledPrice, 0, len(total.Lines))
	for _, line := range total.Lines {
		prices = append(prices, types.LabeledPrice{
			Label:  fmt.Sprintf("%s × %d", line.Product.Name, line.Quantity),
			Amount: pricing.MinorUnits(line.Subtotal),
		})
	}
	return types.Invoice{
		Title:       msgInvoiceTitle,
		Description: fmt.Sprintf(msgInvoiceDesc, address),
		Payload:     ref,
		Currency:    h.settings.Currency,
		Prices:      prices,
	}
}

// checkoutMatches reports whether a payment for ref, amount and currency
// belongs to the checkout the record is waiting on.
func (h *Handler) checkoutMatches(rec *session.Record, ref, currency string, amount int64) bool {
	if rec.Phase.Normalize() != session.PhaseAwaitingPayment || !rec.HasCart() || rec.Address == "" {
		return false
	}
	if rec.InvoiceRef == "" || ref != rec.InvoiceRef {
		return false
	}
	if currency != "" && !strings.EqualFold(currency, h.settings.Currency) {
		return false
	}
	expected := h.buildInvoice(rec.CartTotal(), rec.Address, rec.InvoiceRef).Amount()
	return amount == expected
}

func (h *Handler) confirmPayment(ctx context.Context, rec *session.Record, ev Event) {
	ok := h.checkoutMatches(rec, ev.PayloadRef, ev.Currency, ev.TotalAmount)
	errMsg := ""
	if !ok {
		errMsg = msgPaymentRejected
		h.logg.Warn(h.logg.WithField(ctx, "invoice_ref", ev.PayloadRef), "payment confirmation rejected")
	}
	if err := h.channel.AnswerPaymentConfirmation(ctx, ev.QueryID, ok, errMsg); err != nil {
		h.logg.Error(ctx, "answer payment confirmation failed", err)
	}
}

func (h *Handler) completePayment(ctx context.Context, rec *session.Record, ev Event) {
	ctx = h.logg.WithFields(ctx, map[string]any{
		"invoice_ref":        ev.PayloadRef,
		"charge_id":          ev.ChargeID,
		"provider_charge_id": ev.ProviderChargeID,
		"amount":             ev.TotalAmount,
	})
	if !h.checkoutMatches(rec, ev.PayloadRef, ev.Currency, ev.TotalAmount) {
		h.logg.Error(ctx, "payment received without a matching checkout",
			pkgerrors.New(pkgerrors.CodeConsistency, "no pending checkout for payment").
				WithDetails(map[string]any{"phase": rec.Phase.Normalize(), "has_cart": rec.HasCart()}))
		h.say(ctx, ev.ChatID, msgPaymentOrphaned, nil)
		return
	}

	_, err := h.checkout.Commit(ctx, checkout.Request{
		ChatKey: ev.ChatID,
		Cart:    rec.Cart,
		Address: rec.Address,
		Paid:    true,
	})
	if transErr := h.machine.Transition(rec, session.PhaseIdle); transErr != nil {
		h.logg.Error(ctx, "leave payment phase rejected", transErr)
	}
	rec.InvoiceRef = ""
	if err != nil {
		h.logg.Error(ctx, "paid checkout failed", err)
		h.say(ctx, ev.ChatID, fmt.Sprintf(msgPaymentCommitFail, errorDetail(err)), nil)
		return
	}
	rec.CompleteCheckout()
	h.say(ctx, ev.ChatID, msgPaymentDone, nil)
}

func (h *Handler) cancel(ctx context.Context, rec *session.Record, chatID string) {
	if rec.Phase.Normalize() == session.PhaseIdle {
		h.say(ctx, chatID, msgNothingToCancel, nil)
		return
	}
	h.logg.Info(ctx, "checkout canceled by user")
	h.toIdle(ctx, rec)
	h.say(ctx, chatID, msgCanceled, nil)
	h.sendCategories(ctx, chatID)
}

func (h *Handler) reportCheckoutError(ctx context.Context, chatID string, err error) {
	switch {
	case checkout.IsEmptyCart(err):
		h.say(ctx, chatID, msgOrderEmptyCart, nil)
	case errors.Is(err, checkout.ErrUnknownUser):
		h.say(ctx, chatID, msgNotRegistered, nil)
	case pkgerrors.IsGateway(err):
		h.logg.Error(ctx, "checkout failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgOrderFailed, errorDetail(err)), nil)
	default:
		h.logg.Error(ctx, "checkout failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
	}
}
