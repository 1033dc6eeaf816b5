package commerce

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/types"
)

type wireUser struct {
	ID     int64      `json:"id"`
	ChatID flexibleID `json:"chat_id"`
}

// FindUsers lists backend users registered under chatID. The backend is
// expected to return zero or one match; callers decide what more means.
func (c *Client) FindUsers(ctx context.Context, chatID string) ([]types.BackendUser, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat id is required")
	}
	var wire []wireUser
	query := url.Values{"chat_id": []string{chatID}}
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.paths.Users, query), "find users", nil, &wire); err != nil {
		return nil, err
	}
	users := make([]types.BackendUser, 0, len(wire))
	for _, u := range wire {
		users = append(users, types.BackendUser{ID: u.ID, ChatID: string(u.ChatID)})
	}
	return users, nil
}

// RegisterUser creates a backend user from shared contact data.
func (c *Client) RegisterUser(ctx context.Context, reg types.Registration) error {
	if err := c.validateRequest("register user", reg); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.endpoint(c.paths.Users, nil), "register user", reg, nil)
}
