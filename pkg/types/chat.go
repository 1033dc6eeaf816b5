package types

// Button is one keyboard button. Inline buttons carry CallbackData; reply
// buttons may instead ask the user to share their contact.
type Button struct {
	Text           string
	CallbackData   string
	RequestContact bool
}

// Markup attaches a keyboard to an outbound message. At most one of Inline,
// Reply or RemoveKeyboard is honored, in that order.
type Markup struct {
	Inline          [][]Button
	Reply           [][]Button
	ResizeKeyboard  bool
	OneTimeKeyboard bool
	RemoveKeyboard  bool
}

// LabeledPrice is one invoice line in minor currency units.
type LabeledPrice struct {
	Label  string
	Amount int64
}

// Invoice is a hosted payment request. Payload comes back with the payment.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Currency    string
	Prices      []LabeledPrice
}

// Amount is the invoice total in minor units.
func (i Invoice) Amount() int64 {
	var total int64
	for _, p := range i.Prices {
		total += p.Amount
	}
	return total
}
