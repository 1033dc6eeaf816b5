package telegram

import (
	"context"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/types"
)

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

type labeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// SendText sends an HTML formatted message and returns its id.
func (c *Client) SendText(ctx context.Context, chatID string, text string, markup *types.Markup) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": parseModeHTML,
	}
	if rm := replyMarkup(markup); rm != nil {
		payload["reply_markup"] = rm
	}
	var msg sentMessage
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendPhoto sends a photo by URL with an HTML caption.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string, markup *types.Markup) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": parseModeHTML,
	}
	if rm := replyMarkup(markup); rm != nil {
		payload["reply_markup"] = rm
	}
	var msg sentMessage
	if err := c.call(ctx, "sendPhoto", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditCaption replaces the caption and keyboard of a photo message.
func (c *Client) EditCaption(ctx context.Context, chatID string, messageID int64, caption string, markup *types.Markup) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"caption":    caption,
		"parse_mode": parseModeHTML,
	}
	if rm := replyMarkup(markup); rm != nil {
		payload["reply_markup"] = rm
	}
	return c.call(ctx, "editMessageCaption", payload, nil)
}

// EditText replaces the text and keyboard of a message.
func (c *Client) EditText(ctx context.Context, chatID string, messageID int64, text string, markup *types.Markup) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": parseModeHTML,
	}
	if rm := replyMarkup(markup); rm != nil {
		payload["reply_markup"] = rm
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// SendInvoice posts a payment invoice to the chat.
func (c *Client) SendInvoice(ctx context.Context, chatID string, invoice types.Invoice) error {
	if c.providerToken == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "payment provider token not configured")
	}
	if len(invoice.Prices) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice requires at least one price")
	}
	prices := make([]labeledPrice, 0, len(invoice.Prices))
	for _, p := range invoice.Prices {
		prices = append(prices, labeledPrice{Label: p.Label, Amount: p.Amount})
	}
	payload := map[string]any{
		"chat_id":        chatID,
		"title":          invoice.Title,
		"description":    invoice.Description,
		"payload":        invoice.Payload,
		"provider_token": c.providerToken,
		"currency":       invoice.Currency,
		"prices":         prices,
	}
	return c.call(ctx, "sendInvoice", payload, nil)
}

// AnswerCallback acknowledges a button press, optionally with a toast or alert.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = alert
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// AnswerPaymentConfirmation approves or rejects a pre-checkout query.
func (c *Client) AnswerPaymentConfirmation(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	payload := map[string]any{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	if !ok {
		payload["error_message"] = errorMessage
	}
	return c.call(ctx, "answerPreCheckoutQuery", payload, nil)
}

// ProfilePhotoURL returns a download URL for the user's current profile
// photo, or "" when there is none.
func (c *Client) ProfilePhotoURL(ctx context.Context, userID int64) (string, error) {
	var photos struct {
		TotalCount int `json:"total_count"`
		Photos     [][]struct {
			FileID string `json:"file_id"`
		} `json:"photos"`
	}
	if err := c.call(ctx, "getUserProfilePhotos", map[string]any{"user_id": userID, "limit": 1}, &photos); err != nil {
		return "", err
	}
	if photos.TotalCount == 0 || len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := c.call(ctx, "getFile", map[string]any{"file_id": photos.Photos[0][0].FileID}, &file); err != nil {
		return "", err
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return "", nil
	}
	return c.FileURL(file.FilePath), nil
}

// SetWebhook registers the public webhook URL and its secret token.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	payload := map[string]any{
		"url":             webhookURL,
		"allowed_updates": []string{"message", "callback_query", "pre_checkout_query"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// ChatID formats a numeric chat id the way the rest of the service keys users.
func ChatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
