package telegram

import "github.com/angelmondragon/chatshop/pkg/types"

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type keyboardButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type replyKeyboardMarkup struct {
	Keyboard        [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard  bool               `json:"resize_keyboard,omitempty"`
	OneTimeKeyboard bool               `json:"one_time_keyboard,omitempty"`
}

type replyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// replyMarkup converts a markup into its wire form. Nil means no markup.
func replyMarkup(m *types.Markup) any {
	if m == nil {
		return nil
	}
	switch {
	case len(m.Inline) > 0:
		rows := make([][]inlineButton, 0, len(m.Inline))
		for _, row := range m.Inline {
			buttons := make([]inlineButton, 0, len(row))
			for _, b := range row {
				data := b.CallbackData
				if data == "" {
					data = "noop"
				}
				buttons = append(buttons, inlineButton{Text: b.Text, CallbackData: data})
			}
			rows = append(rows, buttons)
		}
		return inlineKeyboardMarkup{InlineKeyboard: rows}
	case len(m.Reply) > 0:
		rows := make([][]keyboardButton, 0, len(m.Reply))
		for _, row := range m.Reply {
			buttons := make([]keyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, keyboardButton{Text: b.Text, RequestContact: b.RequestContact})
			}
			rows = append(rows, buttons)
		}
		return replyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: m.ResizeKeyboard, OneTimeKeyboard: m.OneTimeKeyboard}
	case m.RemoveKeyboard:
		return replyKeyboardRemove{RemoveKeyboard: true}
	}
	return nil
}
