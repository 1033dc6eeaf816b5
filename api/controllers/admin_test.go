package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatshop/internal/cart"
	"github.com/angelmondragon/chatshop/internal/session"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/types"
)

type fakeLedger struct {
	open     int64
	known    map[int64]bool
	resolved []int64
}

func (f *fakeLedger) Resolve(_ context.Context, id int64) error {
	if !f.known[id] {
		return pkgerrors.New(pkgerrors.CodeNotFound, "orphaned order group not found")
	}
	f.resolved = append(f.resolved, id)
	return nil
}

func (f *fakeLedger) Open(context.Context) (int64, error) { return f.open, nil }

func adminRouter(ledger OrphanLedger, sessions SessionViewer) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/orphans", AdminOrphans(logger.Nop(), ledger))
	r.Post("/admin/orphans/{orderGroupID}/resolve", AdminResolveOrphan(logger.Nop(), ledger))
	r.Get("/admin/sessions/{chatID}", AdminSession(logger.Nop(), sessions))
	return r
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestAdminOrphans(t *testing.T) {
	router := adminRouter(&fakeLedger{open: 3}, session.NewStore())

	rec := serve(router, http.MethodGet, "/admin/orphans")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data orphanSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.Data.Open)
}

func TestAdminResolveOrphan(t *testing.T) {
	ledger := &fakeLedger{known: map[int64]bool{42: true}}
	router := adminRouter(ledger, session.NewStore())

	rec := serve(router, http.MethodPost, "/admin/orphans/42/resolve")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{42}, ledger.resolved)
	assert.JSONEq(t, `{"data":{"order_group_id":42,"resolved":true}}`, rec.Body.String())

	rec = serve(router, http.MethodPost, "/admin/orphans/7/resolve")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, id := range []string{"abc", "0", "-3"} {
		rec = serve(router, http.MethodPost, "/admin/orphans/"+id+"/resolve")
		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
	}
	assert.Len(t, ledger.resolved, 1)
}

func TestAdminSession(t *testing.T) {
	store := session.NewStore()
	require.NoError(t, store.Do(context.Background(), "77", func(rec *session.Record) error {
		rec.Cart = cart.New()
		tea := types.Product{ID: 1, Name: "Tea", Price: decimal.NewFromInt(1500)}
		if err := rec.Cart.AddOrIncrement(tea, 2); err != nil {
			return err
		}
		rec.Phase = session.PhaseAwaitingAddress
		return nil
	}))
	router := adminRouter(&fakeLedger{}, store)

	rec := serve(router, http.MethodGet, "/admin/sessions/77")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data sessionView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, session.PhaseAwaitingAddress, body.Data.Phase)
	assert.Equal(t, []sessionLine{{ProductID: 1, Name: "Tea", Quantity: 2}}, body.Data.Cart)
	assert.Equal(t, "3000.00", body.Data.CartTotal)
	assert.False(t, body.Data.HasAddress)
	assert.Nil(t, body.Data.SelectedProduct)

	rec = serve(router, http.MethodGet, "/admin/sessions/404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
