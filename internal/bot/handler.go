package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/chatshop/internal/checkout"
	"github.com/angelmondragon/chatshop/internal/session"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/types"
)

// Settings are the presentation and flow knobs of the handler.
type Settings struct {
	// PaymentGated commits orders only after the invoice is paid. When false
	// placing an order commits immediately.
	PaymentGated bool
	Currency     string
	// FallbackImage replaces product images that are missing or served from
	// ImageHostPrefix, which the chat platform cannot reach.
	FallbackImage   string
	ImageHostPrefix string
}

// Params wires a Handler.
type Params struct {
	Store    *session.Store
	Channel  Channel
	Backend  Backend
	Checkout checkout.Service
	Logger   *logger.Logger
	Events   EventRecorder
	Settings Settings
}

// Handler routes events through the per-user state machine.
type Handler struct {
	store    *session.Store
	machine  *session.Machine
	channel  Channel
	backend  Backend
	checkout checkout.Service
	logg     *logger.Logger
	events   EventRecorder
	settings Settings
	newRef   func() string
}

// NewHandler validates dependencies and builds a Handler.
func NewHandler(params Params) (*Handler, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if params.Channel == nil {
		return nil, fmt.Errorf("channel required")
	}
	if params.Backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if params.Checkout == nil {
		return nil, fmt.Errorf("checkout service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	settings := params.Settings
	if strings.TrimSpace(settings.Currency) == "" {
		settings.Currency = "UZS"
	}
	return &Handler{
		store:    params.Store,
		machine:  session.NewMachine(),
		channel:  params.Channel,
		backend:  params.Backend,
		checkout: params.Checkout,
		logg:     params.Logger,
		events:   params.Events,
		settings: settings,
		newRef:   uuid.NewString,
	}, nil
}

// Handle processes one event with exclusive access to the sender's session.
// Failures meant for the user are answered in the chat; the returned error
// only reports what could not be handled at all.
func (h *Handler) Handle(ctx context.Context, ev Event) error {
	if strings.TrimSpace(ev.ChatID) == "" {
		return fmt.Errorf("event %s without chat id", ev.Kind)
	}
	ctx = h.logg.WithChatID(ctx, ev.ChatID)
	ctx = h.logg.WithField(ctx, "event_kind", string(ev.Kind))
	if h.events != nil {
		h.events.IncEvent(string(ev.Kind))
	}
	return h.store.Do(ctx, ev.ChatID, func(rec *session.Record) error {
		return h.route(ctx, rec, ev)
	})
}

func (h *Handler) route(ctx context.Context, rec *session.Record, ev Event) error {
	switch ev.Kind {
	case CommandStart:
		h.say(ctx, ev.ChatID, msgAskContact, contactKeyboard())
	case ContactShared:
		h.register(ctx, ev)
	case TextMessage:
		h.handleText(ctx, rec, ev)
	case ButtonCallback:
		h.handleCallback(ctx, rec, ev)
	case PaymentConfirmationRequest:
		h.confirmPayment(ctx, rec, ev)
	case PaymentCompleted:
		h.completePayment(ctx, rec, ev)
	default:
		return fmt.Errorf("unsupported event kind %q", ev.Kind)
	}
	return nil
}

// handleText routes free text. Menu buttons and /cancel work in every
// phase; anything else typed during checkout belongs to the checkout and is
// never taken for a category name.
func (h *Handler) handleText(ctx context.Context, rec *session.Record, ev Event) {
	text := strings.TrimSpace(ev.Text)
	if isCommand(text, cmdCancel) {
		h.cancel(ctx, rec, ev.ChatID)
		return
	}
	switch text {
	case btnViewCart:
		h.showCart(ctx, rec, ev.ChatID)
		return
	case btnMyOrders:
		h.showOrders(ctx, ev.ChatID)
		return
	}

	switch rec.Phase.Normalize() {
	case session.PhaseAwaitingAddress:
		h.captureAddress(ctx, rec, ev.ChatID, text)
	case session.PhaseAwaitingPayment:
		h.say(ctx, ev.ChatID, msgAwaitingPayment, nil)
	default:
		h.browseCategory(ctx, ev.ChatID, text)
	}
}

func (h *Handler) handleCallback(ctx context.Context, rec *session.Record, ev Event) {
	cb := parseCallback(ev.CallbackData)
	switch cb.action {
	case actionSelectProduct:
		h.selectProduct(ctx, rec, ev, cb.productID)
	case actionIncrease, actionDecrease:
		h.adjustQuantity(ctx, rec, ev, cb.action)
	case actionAddToCart:
		h.addToCart(ctx, rec, ev)
	case actionRemove:
		h.removeFromCart(ctx, rec, ev, cb.productID)
	case actionClearCart:
		h.clearCart(ctx, rec, ev)
	case actionPlaceOrder:
		h.placeOrder(ctx, rec, ev)
	default:
		if cb.action == actionUnknown {
			h.logg.Debug(h.logg.WithField(ctx, "callback_data", ev.CallbackData), "unknown callback data")
		}
		h.answer(ctx, ev, "", false)
	}
}

// toIdle leaves the checkout and forgets address and invoice.
func (h *Handler) toIdle(ctx context.Context, rec *session.Record) {
	if err := h.machine.Transition(rec, session.PhaseIdle); err != nil {
		h.logg.Error(ctx, "checkout abort rejected", err)
	}
	rec.AbortCheckout()
}

func (h *Handler) say(ctx context.Context, chatID, text string, markup *types.Markup) {
	if _, err := h.channel.SendText(ctx, chatID, text, markup); err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "send message failed")
	}
}

func (h *Handler) answer(ctx context.Context, ev Event, text string, alert bool) {
	if ev.CallbackID == "" {
		return
	}
	if err := h.channel.AnswerCallback(ctx, ev.CallbackID, text, alert); err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "answer callback failed")
	}
}

// replace edits messageID in place and falls back to a new message.
func (h *Handler) replace(ctx context.Context, chatID string, messageID int64, text string, markup *types.Markup) {
	if messageID > 0 {
		err := h.channel.EditText(ctx, chatID, messageID, text, markup)
		if err == nil {
			return
		}
		h.logg.Debug(h.logg.WithField(ctx, "error", err.Error()), "edit message failed, sending a new one")
	}
	h.say(ctx, chatID, text, markup)
}
