package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatshop/internal/checkout"
	"github.com/angelmondragon/chatshop/internal/session"
	"github.com/angelmondragon/chatshop/pkg/commerce"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/types"
)

const chat = "42"

// fakeShop plays chat channel and commerce backend at once.
type fakeShop struct {
	mu sync.Mutex

	texts         []string
	photos        []string
	captions      []string
	invoices      []types.Invoice
	answers       []string
	confirmations []bool

	invoiceErr error
	failOrder  int

	users         []types.BackendUser
	categories    []types.Category
	products      []types.Product
	history       []types.OrderGroup
	registered    []types.Registration
	categoryCalls int
	groupRequests []commerce.OrderGroupRequest
	orderRequests []commerce.OrderRequest
}

func newFakeShop() *fakeShop {
	return &fakeShop{
		users:      []types.BackendUser{{ID: 7, ChatID: chat}},
		categories: []types.Category{{ID: 1, Name: "Drinks"}, {ID: 2, Name: "Snacks"}},
		products: []types.Product{
			{ID: 1, Name: "Tea", Price: decimal.RequireFromString("15000"), CategoryName: "Drinks", ImageURL: "https://img/tea.png"},
			{ID: 2, Name: "Chips", Price: decimal.RequireFromString("7500.50"), CategoryName: "Snacks"},
		},
	}
}

func (f *fakeShop) SendText(_ context.Context, _ string, text string, _ *types.Markup) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return int64(len(f.texts)), nil
}

func (f *fakeShop) SendPhoto(_ context.Context, _, photoURL, caption string, _ *types.Markup) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, photoURL)
	return 1, nil
}

func (f *fakeShop) EditCaption(_ context.Context, _ string, _ int64, caption string, _ *types.Markup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions = append(f.captions, caption)
	return nil
}

func (f *fakeShop) EditText(ctx context.Context, chatID string, _ int64, text string, markup *types.Markup) error {
	_, err := f.SendText(ctx, chatID, text, markup)
	return err
}

func (f *fakeShop) SendInvoice(_ context.Context, _ string, invoice types.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceErr != nil {
		return f.invoiceErr
	}
	f.invoices = append(f.invoices, invoice)
	return nil
}

func (f *fakeShop) AnswerCallback(_ context.Context, _ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeShop) AnswerPaymentConfirmation(_ context.Context, _ string, ok bool, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, ok)
	return nil
}

func (f *fakeShop) ProfilePhotoURL(context.Context, int64) (string, error) {
	return "https://img/me.jpg", nil
}

func (f *fakeShop) FindUsers(context.Context, string) ([]types.BackendUser, error) {
	return f.users, nil
}

func (f *fakeShop) RegisterUser(_ context.Context, reg types.Registration) error {
	f.registered = append(f.registered, reg)
	f.users = append(f.users, types.BackendUser{ID: 8, ChatID: reg.ChatID})
	return nil
}

func (f *fakeShop) ListCategories(context.Context) ([]types.Category, error) {
	f.categoryCalls++
	return f.categories, nil
}

func (f *fakeShop) ListProducts(context.Context) ([]types.Product, error) {
	return f.products, nil
}

func (f *fakeShop) GetProduct(_ context.Context, id int64) (types.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return types.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (f *fakeShop) ListOrderGroups(context.Context, string) ([]types.OrderGroup, error) {
	return f.history, nil
}

func (f *fakeShop) CreateOrderGroup(_ context.Context, req commerce.OrderGroupRequest) (types.OrderGroup, error) {
	f.groupRequests = append(f.groupRequests, req)
	return types.OrderGroup{ID: 500, IsPaid: req.IsPaid, Status: req.Status}, nil
}

func (f *fakeShop) CreateOrder(_ context.Context, req commerce.OrderRequest) (types.Order, error) {
	f.orderRequests = append(f.orderRequests, req)
	if f.failOrder == len(f.orderRequests) {
		return types.Order{}, pkgerrors.New(pkgerrors.CodeDependency, "create order request failed")
	}
	return types.Order{ID: int64(len(f.orderRequests)), ProductID: req.Product, Quantity: req.Quantity}, nil
}

func (f *fakeShop) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeShop) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1]
}

type harness struct {
	handler *Handler
	shop    *fakeShop
	store   *session.Store
}

func newHarness(t *testing.T, gated bool) *harness {
	t.Helper()
	shop := newFakeShop()
	store := session.NewStore()
	svc, err := checkout.NewService(checkout.ServiceParams{Gateway: shop, Logger: logger.Nop()})
	require.NoError(t, err)
	h, err := NewHandler(Params{
		Store:    store,
		Channel:  shop,
		Backend:  shop,
		Checkout: svc,
		Logger:   logger.Nop(),
		Settings: Settings{PaymentGated: gated, Currency: "UZS", FallbackImage: "https://img/fallback.png"},
	})
	require.NoError(t, err)
	h.newRef = func() string { return "ref-1" }
	return &harness{handler: h, shop: shop, store: store}
}

func (h *harness) send(t *testing.T, ev Event) {
	t.Helper()
	if ev.ChatID == "" {
		ev.ChatID = chat
	}
	require.NoError(t, h.handler.Handle(context.Background(), ev))
}

func (h *harness) text(t *testing.T, text string) {
	h.send(t, Event{Kind: TextMessage, Text: text})
}

func (h *harness) press(t *testing.T, data string) {
	h.send(t, Event{Kind: ButtonCallback, CallbackID: "cb", CallbackData: data, MessageID: 10})
}

func (h *harness) record(t *testing.T) *session.Record {
	t.Helper()
	rec, _ := h.store.Snapshot(chat)
	return &rec
}

// fillCart puts two units of tea into the cart.
func (h *harness) fillCart(t *testing.T) {
	t.Helper()
	h.press(t, productCallback(1))
	h.press(t, cbQtyIncrease)
	h.press(t, cbAddToCart)
	require.True(t, h.record(t).HasCart())
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	_, err := NewHandler(Params{})
	require.Error(t, err)

	h := newHarness(t, true)
	assert.Equal(t, "UZS", h.handler.settings.Currency)
}

func TestStartAsksForContact(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, Event{Kind: CommandStart})
	assert.Equal(t, msgAskContact, h.shop.lastText())
}

func TestContactRegistersNewUser(t *testing.T) {
	h := newHarness(t, true)
	h.shop.users = nil

	h.send(t, Event{Kind: ContactShared, UserID: 42, Phone: " +998901234567 ", Username: "ali"})

	require.Len(t, h.shop.registered, 1)
	reg := h.shop.registered[0]
	assert.Equal(t, chat, reg.ChatID)
	assert.Equal(t, "Unknown", reg.FirstName)
	assert.Equal(t, "+998901234567", reg.PhoneNumber)
	assert.Equal(t, "telegram", reg.Platform)
	assert.Equal(t, "https://img/me.jpg", reg.ProfilePhotoURL)
	assert.Contains(t, h.shop.texts, msgRegistered)
	assert.Equal(t, msgChooseCategory, h.shop.lastText())
}

func TestContactSkipsKnownUser(t *testing.T) {
	h := newHarness(t, true)
	h.send(t, Event{Kind: ContactShared, Phone: "+998901234567"})

	assert.Empty(t, h.shop.registered)
	assert.Equal(t, msgChooseCategory, h.shop.lastText())
}

func TestBrowseCategoryMatchesCaseInsensitively(t *testing.T) {
	h := newHarness(t, true)

	h.text(t, "drinks")
	assert.Equal(t, msgProducts, h.shop.lastText())

	h.text(t, "Toys")
	assert.Equal(t, msgCategoryNotFound, h.shop.lastText())
}

func TestSelectAdjustAndAdd(t *testing.T) {
	h := newHarness(t, true)

	h.press(t, productCallback(1))
	require.Equal(t, []string{"https://img/tea.png"}, h.shop.photos)
	h.press(t, cbQtyIncrease)
	h.press(t, cbQtyIncrease)
	h.press(t, cbQtyDecrease)
	assert.Len(t, h.shop.captions, 3)

	h.press(t, cbAddToCart)
	assert.Equal(t, fmt.Sprintf(msgAddedToCart, "Tea", 2, 2), h.shop.lastAnswer())
	rec := h.record(t)
	assert.Equal(t, 2, rec.Cart.Quantity(1))
	require.NotNil(t, rec.Selection)
	assert.Equal(t, 2, rec.Selection.Quantity)

	h.press(t, cbAddToCart)
	assert.Equal(t, fmt.Sprintf(msgAddedToCart, "Tea", 2, 4), h.shop.lastAnswer())
	assert.Equal(t, 4, h.record(t).Cart.Quantity(1))
}

func TestAddWithoutSelection(t *testing.T) {
	h := newHarness(t, true)
	h.press(t, cbAddToCart)
	assert.Equal(t, msgSelectFirst, h.shop.lastAnswer())
	assert.False(t, h.record(t).HasCart())
}

func TestProductWithoutImageUsesFallback(t *testing.T) {
	h := newHarness(t, true)
	h.press(t, productCallback(2))
	assert.Equal(t, []string{"https://img/fallback.png"}, h.shop.photos)
}

func TestPaidCheckoutFlow(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)

	h.press(t, cbPlaceOrder)
	assert.Equal(t, session.PhaseAwaitingAddress, h.record(t).Phase)
	assert.Equal(t, msgAskAddress, h.shop.lastText())

	h.text(t, "Ta")
	assert.Equal(t, fmt.Sprintf(msgAddressTooShort, session.MinAddressLength), h.shop.lastText())
	assert.Equal(t, session.PhaseAwaitingAddress, h.record(t).Phase)
	assert.Empty(t, h.shop.invoices)

	h.text(t, "  Chilonzor 5  ")
	require.Len(t, h.shop.invoices, 1)
	invoice := h.shop.invoices[0]
	assert.Equal(t, "ref-1", invoice.Payload)
	assert.Equal(t, "UZS", invoice.Currency)
	assert.Equal(t, int64(3000000), invoice.Amount())
	assert.Equal(t, "Tea × 2", invoice.Prices[0].Label)
	rec := h.record(t)
	assert.Equal(t, session.PhaseAwaitingPayment, rec.Phase)
	assert.Equal(t, "Chilonzor 5", rec.Address)
	assert.Equal(t, "ref-1", rec.InvoiceRef)

	h.send(t, Event{Kind: PaymentConfirmationRequest, QueryID: "q", PayloadRef: "ref-1", Currency: "UZS", TotalAmount: 3000000})
	assert.Equal(t, []bool{true}, h.shop.confirmations)

	h.send(t, Event{Kind: PaymentCompleted, PayloadRef: "ref-1", Currency: "UZS", TotalAmount: 3000000, ChargeID: "ch"})
	require.Len(t, h.shop.groupRequests, 1)
	group := h.shop.groupRequests[0]
	assert.True(t, group.IsPaid)
	assert.Equal(t, "Chilonzor 5", group.DeliveryAddress)
	require.NotNil(t, group.TotalPrice)
	assert.True(t, group.TotalPrice.Equal(decimal.NewFromInt(30000)))
	require.Len(t, h.shop.orderRequests, 1)
	assert.Equal(t, 2, h.shop.orderRequests[0].Quantity)

	assert.Equal(t, msgPaymentDone, h.shop.lastText())
	rec = h.record(t)
	assert.Equal(t, session.PhaseIdle, rec.Phase)
	assert.False(t, rec.HasCart())
	assert.Empty(t, rec.Address)
	assert.Empty(t, rec.InvoiceRef)
}

func TestAwaitingPaymentTextIsNotACategory(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)
	h.press(t, cbPlaceOrder)
	h.text(t, "Chilonzor 5")
	calls := h.shop.categoryCalls

	h.text(t, "Drinks")

	assert.Equal(t, msgAwaitingPayment, h.shop.lastText())
	assert.Equal(t, calls, h.shop.categoryCalls)
	assert.Equal(t, session.PhaseAwaitingPayment, h.record(t).Phase)
}

func TestCartFrozenWhileAwaitingPayment(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)
	h.press(t, cbPlaceOrder)
	h.text(t, "Chilonzor 5")

	h.press(t, cbClearCart)
	assert.Equal(t, msgCartLocked, h.shop.lastAnswer())
	h.press(t, removeCallback(1))
	assert.Equal(t, msgCartLocked, h.shop.lastAnswer())
	h.press(t, cbAddToCart)
	assert.Equal(t, msgCartLocked, h.shop.lastAnswer())

	assert.Equal(t, 2, h.record(t).Cart.Quantity(1))
}

func TestEmptyingCartAbortsAddressCapture(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)
	h.press(t, cbPlaceOrder)

	h.press(t, cbClearCart)

	rec := h.record(t)
	assert.Equal(t, session.PhaseIdle, rec.Phase)
	assert.False(t, rec.HasCart())
	assert.Contains(t, h.shop.texts, msgCheckoutAborted)
	assert.Equal(t, msgChooseCategory, h.shop.lastText())
}

func TestMenuButtonDuringAddressIsNotAnAddress(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)
	h.press(t, cbPlaceOrder)

	h.text(t, btnViewCart)

	rec := h.record(t)
	assert.Equal(t, session.PhaseAwaitingAddress, rec.Phase)
	assert.Empty(t, rec.Address)
	assert.Contains(t, h.shop.lastText(), "Umumiy narx: 30000.00")
}

func TestPreCheckoutRejectsChangedAmount(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)
	h.press(t, cbPlaceOrder)
	h.text(t, "Chilonzor 5")

	h.send(t, Event{Kind: PaymentConfirmationRequest, QueryID: "q", PayloadRef: "ref-1", Currency: "UZS", TotalAmount: 100})
	h.send(t, Event{Kind: PaymentConfirmationRequest, QueryID: "q", PayloadRef: "other", Currency: "UZS", TotalAmount: 3000000})

	assert.Equal(t, []bool{false, false}, h.shop.confirmations)
}

func TestPaymentWithoutPendingCheckout(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)

	h.send(t, Event{Kind: PaymentCompleted, PayloadRef: "ref-1", Currency: "UZS", TotalAmount: 3000000})

	assert.Equal(t, msgPaymentOrphaned, h.shop.lastText())
	assert.Empty(t, h.shop.groupRequests)
	assert.True(t, h.record(t).HasCart())
}

func TestPaidCommitFailureKeepsCart(t *testing.T) {
	h := newHarness(t, true)
	h.shop.failOrder = 1
	h.fillCart(t)
	h.press(t, cbPlaceOrder)
	h.text(t, "Chilonzor 5")

	h.send(t, Event{Kind: PaymentCompleted, PayloadRef: "ref-1", Currency: "UZS", TotalAmount: 3000000})

	assert.True(t, strings.HasPrefix(h.shop.lastText(), "⚠️ To'lov qabul qilindi, lekin buyurtmani"))
	rec := h.record(t)
	assert.Equal(t, session.PhaseIdle, rec.Phase)
	assert.True(t, rec.HasCart())
	assert.Empty(t, rec.InvoiceRef)
	assert.Equal(t, "Chilonzor 5", rec.Address)
}

func TestInvoiceFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, true)
	h.shop.invoiceErr = pkgerrors.New(pkgerrors.CodeDependency, "telegram down")
	h.fillCart(t)
	h.press(t, cbPlaceOrder)

	h.text(t, "Chilonzor 5")

	assert.Equal(t, msgInvoiceFailed, h.shop.lastText())
	rec := h.record(t)
	assert.Equal(t, session.PhaseIdle, rec.Phase)
	assert.Empty(t, rec.Address)
	assert.True(t, rec.HasCart())
}

func TestCancel(t *testing.T) {
	h := newHarness(t, true)
	h.text(t, cmdCancel)
	assert.Equal(t, msgNothingToCancel, h.shop.lastText())

	h.fillCart(t)
	h.press(t, cbPlaceOrder)
	h.text(t, "Chilonzor 5")
	h.text(t, cmdCancel)

	rec := h.record(t)
	assert.Equal(t, session.PhaseIdle, rec.Phase)
	assert.Empty(t, rec.InvoiceRef)
	assert.True(t, rec.HasCart())
	assert.Contains(t, h.shop.texts, msgCanceled)
}

func TestCancelWithBotSuffix(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)
	h.press(t, cbPlaceOrder)
	h.text(t, "/cancel@shop_bot")

	rec := h.record(t)
	assert.Equal(t, session.PhaseIdle, rec.Phase)
	assert.Empty(t, rec.Address)
	assert.Contains(t, h.shop.texts, msgCanceled)
}

func TestPlaceOrderWithEmptyCart(t *testing.T) {
	h := newHarness(t, true)
	h.press(t, cbPlaceOrder)
	assert.Equal(t, msgOrderEmptyCart, h.shop.lastAnswer())
	assert.Equal(t, session.PhaseIdle, h.record(t).Phase)
}

func TestDirectCheckout(t *testing.T) {
	h := newHarness(t, false)
	h.fillCart(t)

	h.press(t, cbPlaceOrder)

	require.Len(t, h.shop.groupRequests, 1)
	group := h.shop.groupRequests[0]
	assert.False(t, group.IsPaid)
	assert.Nil(t, group.TotalPrice)
	assert.Empty(t, group.DeliveryAddress)
	assert.Equal(t, msgOrderPlaced, h.shop.lastAnswer())
	assert.Equal(t, msgCartEmpty, h.shop.lastText())
	assert.False(t, h.record(t).HasCart())
	assert.Empty(t, h.shop.invoices)
}

func TestDirectCheckoutUnknownUser(t *testing.T) {
	h := newHarness(t, false)
	h.shop.users = nil
	h.fillCart(t)

	h.press(t, cbPlaceOrder)

	assert.Equal(t, msgNotRegistered, h.shop.lastText())
	assert.Empty(t, h.shop.groupRequests)
	assert.True(t, h.record(t).HasCart())
}

func TestDirectCheckoutPartialFailure(t *testing.T) {
	h := newHarness(t, false)
	h.shop.failOrder = 1
	h.fillCart(t)

	h.press(t, cbPlaceOrder)

	assert.True(t, strings.HasPrefix(h.shop.lastText(), "❌ Buyurtmani yaratishda xatolik."))
	assert.True(t, h.record(t).HasCart())
}

func TestRemoveFromCart(t *testing.T) {
	h := newHarness(t, true)
	h.fillCart(t)

	h.press(t, removeCallback(9))
	assert.Equal(t, msgLineNotFound, h.shop.lastAnswer())

	h.press(t, removeCallback(1))
	assert.Contains(t, h.shop.texts, fmt.Sprintf(msgRemoved, "Tea"))
	assert.False(t, h.record(t).HasCart())
}

func TestShowOrders(t *testing.T) {
	h := newHarness(t, true)
	h.text(t, btnMyOrders)
	assert.Equal(t, msgNoOrders, h.shop.lastText())

	h.shop.history = []types.OrderGroup{{
		ID:         3,
		IsPaid:     true,
		Status:     "delivered",
		TotalPrice: decimal.NewFromInt(30000),
		Orders: []types.Order{
			{ProductID: 1, Quantity: 2, Subtotal: decimal.NewFromInt(30000)},
			{ProductID: 99, Quantity: 1},
		},
	}}
	h.text(t, btnMyOrders)

	out := h.shop.lastText()
	assert.Contains(t, out, "Buyurtma guruh ID: 3")
	assert.Contains(t, out, "Tea")
	assert.Contains(t, out, msgUnknownProduct)
	assert.Contains(t, out, "Yetkazib berilgan")
	assert.Contains(t, out, "To'langan")
}

func TestHandleRejectsMissingChat(t *testing.T) {
	h := newHarness(t, true)
	err := h.handler.Handle(context.Background(), Event{Kind: TextMessage, Text: "hi"})
	require.Error(t, err)
}
