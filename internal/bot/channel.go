package bot

import (
	"context"

	"github.com/angelmondragon/chatshop/pkg/types"
)

// Channel is the outbound side of the chat transport.
type Channel interface {
	SendText(ctx context.Context, chatID string, text string, markup *types.Markup) (int64, error)
	SendPhoto(ctx context.Context, chatID, photoURL, caption string, markup *types.Markup) (int64, error)
	EditCaption(ctx context.Context, chatID string, messageID int64, caption string, markup *types.Markup) error
	EditText(ctx context.Context, chatID string, messageID int64, text string, markup *types.Markup) error
	SendInvoice(ctx context.Context, chatID string, invoice types.Invoice) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	AnswerPaymentConfirmation(ctx context.Context, queryID string, ok bool, errorMessage string) error
	ProfilePhotoURL(ctx context.Context, userID int64) (string, error)
}

// Backend is the read and registration side of the commerce service.
type Backend interface {
	FindUsers(ctx context.Context, chatID string) ([]types.BackendUser, error)
	RegisterUser(ctx context.Context, reg types.Registration) error
	ListCategories(ctx context.Context) ([]types.Category, error)
	ListProducts(ctx context.Context) ([]types.Product, error)
	GetProduct(ctx context.Context, id int64) (types.Product, error)
	ListOrderGroups(ctx context.Context, chatID string) ([]types.OrderGroup, error)
}

// EventRecorder counts handled events by kind.
type EventRecorder interface {
	IncEvent(kind string)
}
