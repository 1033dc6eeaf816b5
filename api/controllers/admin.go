package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/chatshop/api/responses"
	"github.com/angelmondragon/chatshop/internal/session"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

// OrphanLedger is the part of the reconciliation ledger operators drive.
type OrphanLedger interface {
	Resolve(ctx context.Context, orderGroupID int64) error
	Open(ctx context.Context) (int64, error)
}

// SessionViewer reads live session records without mutating them.
type SessionViewer interface {
	Snapshot(key string) (session.Record, bool)
}

type orphanSummary struct {
	Open int64 `json:"open"`
}

type resolvedOrphan struct {
	OrderGroupID int64 `json:"order_group_id"`
	Resolved     bool  `json:"resolved"`
}

type sessionLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type sessionView struct {
	ChatID          string        `json:"chat_id"`
	Phase           session.Phase `json:"phase"`
	Cart            []sessionLine `json:"cart"`
	CartTotal       string        `json:"cart_total"`
	SelectedProduct *int64        `json:"selected_product,omitempty"`
	HasAddress      bool          `json:"has_address"`
	AwaitingInvoice bool          `json:"awaiting_invoice"`
}

// AdminOrphans reports how many ledger entries are still open.
func AdminOrphans(logg *logger.Logger, ledger OrphanLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		open, err := ledger.Open(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orphanSummary{Open: open})
	}
}

// AdminResolveOrphan closes the ledger entry of an order group once an
// operator has settled it on the backend. Resolving twice is a no-op.
func AdminResolveOrphan(logg *logger.Logger, ledger OrphanLedger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "orderGroupID"), 10, 64)
		if err != nil || id <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order group id must be a positive integer"))
			return
		}
		if err := ledger.Resolve(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolvedOrphan{OrderGroupID: id, Resolved: true})
	}
}

// AdminSession shows the live record of one chat, for support requests.
func AdminSession(logg *logger.Logger, sessions SessionViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := strings.TrimSpace(chi.URLParam(r, "chatID"))
		rec, ok := sessions.Snapshot(chatID)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no live session for chat"))
			return
		}

		view := sessionView{
			ChatID:          chatID,
			Phase:           rec.Phase,
			Cart:            []sessionLine{},
			CartTotal:       rec.CartTotal().Display(),
			HasAddress:      rec.Address != "",
			AwaitingInvoice: rec.InvoiceRef != "",
		}
		for _, line := range rec.Cart.Lines() {
			view.Cart = append(view.Cart, sessionLine{
				ProductID: line.Product.ID,
				Name:      line.Product.Name,
				Quantity:  line.Quantity,
			})
		}
		if rec.Selection != nil {
			id := rec.Selection.Product.ID
			view.SelectedProduct = &id
		}
		responses.WriteSuccess(w, view)
	}
}
