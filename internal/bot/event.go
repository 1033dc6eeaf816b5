// Package bot drives the conversation: it routes inbound chat events through
// the checkout state machine and answers on the chat channel.
package bot

import (
	"strings"

	"github.com/angelmondragon/chatshop/pkg/telegram"
)

type EventKind string

const (
	CommandStart               EventKind = "command_start"
	ContactShared              EventKind = "contact_shared"
	TextMessage                EventKind = "text_message"
	ButtonCallback             EventKind = "button_callback"
	PaymentConfirmationRequest EventKind = "payment_confirmation_request"
	PaymentCompleted           EventKind = "payment_completed"
)

// Event is one inbound chat event, already stripped of the transport.
type Event struct {
	Kind EventKind

	// ChatID keys the session and addresses replies.
	ChatID    string
	UserID    int64
	FirstName string
	LastName  string
	Username  string

	Text  string
	Phone string

	CallbackID   string
	CallbackData string

	// MessageID is the message a button belongs to.
	MessageID int64

	QueryID          string
	PayloadRef       string
	Currency         string
	TotalAmount      int64
	ChargeID         string
	ProviderChargeID string
}

// EventFromUpdate maps a webhook update onto an Event. Updates the bot does
// not react to report false.
func EventFromUpdate(u telegram.Update) (Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		ev := Event{
			Kind:         ButtonCallback,
			ChatID:       telegram.ChatID(cq.From.ID),
			UserID:       cq.From.ID,
			FirstName:    cq.From.FirstName,
			LastName:     cq.From.LastName,
			Username:     cq.From.Username,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil {
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true
	case u.PreCheckoutQuery != nil:
		q := u.PreCheckoutQuery
		return Event{
			Kind:        PaymentConfirmationRequest,
			ChatID:      telegram.ChatID(q.From.ID),
			UserID:      q.From.ID,
			QueryID:     q.ID,
			PayloadRef:  q.InvoicePayload,
			Currency:    q.Currency,
			TotalAmount: q.TotalAmount,
		}, true
	case u.Message != nil:
		return eventFromMessage(u.Message)
	}
	return Event{}, false
}

func eventFromMessage(m *telegram.Message) (Event, bool) {
	ev := Event{
		ChatID:    telegram.ChatID(m.Chat.ID),
		FirstName: m.Chat.FirstName,
		LastName:  m.Chat.LastName,
		Username:  m.Chat.Username,
		MessageID: m.MessageID,
	}
	if m.From != nil {
		ev.UserID = m.From.ID
		if ev.FirstName == "" {
			ev.FirstName = m.From.FirstName
		}
	}
	switch {
	case m.SuccessfulPayment != nil:
		p := m.SuccessfulPayment
		ev.Kind = PaymentCompleted
		ev.PayloadRef = p.InvoicePayload
		ev.Currency = p.Currency
		ev.TotalAmount = p.TotalAmount
		ev.ChargeID = p.TelegramPaymentChargeID
		ev.ProviderChargeID = p.ProviderPaymentChargeID
	case m.Contact != nil:
		ev.Kind = ContactShared
		ev.Phone = m.Contact.PhoneNumber
	case isCommand(m.Text, cmdStart):
		ev.Kind = CommandStart
	case strings.TrimSpace(m.Text) != "":
		ev.Kind = TextMessage
		ev.Text = m.Text
	default:
		return Event{}, false
	}
	return ev, true
}

// isCommand matches /name and /name@botname as the first word of text.
func isCommand(text, name string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd == name
}
