package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/pricing"
	"github.com/angelmondragon/chatshop/pkg/types"
)

// Order group statuses known to the backend.
const (
	StatusActive    = "active"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

// OrderGroupRequest is the body of POST order-groups.
type OrderGroupRequest struct {
	BotUser         int64            `json:"bot_user" validate:"required,gt=0"`
	IsPaid          bool             `json:"is_paid"`
	Status          string           `json:"status" validate:"required,oneof=active delivered cancelled"`
	DeliveryAddress string           `json:"delivery_address,omitempty"`
	TotalPrice      *decimal.Decimal `json:"total_price,omitempty"`
}

// OrderRequest is the body of POST orders.
type OrderRequest struct {
	OrderGroup int64            `json:"order_group" validate:"required,gt=0"`
	Product    int64            `json:"product" validate:"required,gt=0"`
	Quantity   int              `json:"quantity" validate:"min=1"`
	Subtotal   *decimal.Decimal `json:"subtotal,omitempty"`
}

type wireOrder struct {
	ID       int64           `json:"id"`
	Product  int64           `json:"product"`
	Quantity int             `json:"quantity"`
	Subtotal json.RawMessage `json:"subtotal"`
}

type wireOrderGroup struct {
	ID              int64           `json:"id"`
	IsPaid          bool            `json:"is_paid"`
	Status          string          `json:"status"`
	DeliveryAddress string          `json:"delivery_address"`
	TotalPrice      json.RawMessage `json:"total_price"`
	Orders          []wireOrder     `json:"orders"`
}

func (c *Client) toOrderGroup(ctx context.Context, w wireOrderGroup) types.OrderGroup {
	group := types.OrderGroup{
		ID:              w.ID,
		IsPaid:          w.IsPaid,
		Status:          w.Status,
		DeliveryAddress: w.DeliveryAddress,
		TotalPrice:      optionalAmount(ctx, c, "order group total", w.TotalPrice),
	}
	for _, o := range w.Orders {
		group.Orders = append(group.Orders, c.toOrder(ctx, o))
	}
	return group
}

func (c *Client) toOrder(ctx context.Context, w wireOrder) types.Order {
	return types.Order{
		ID:        w.ID,
		ProductID: w.Product,
		Quantity:  w.Quantity,
		Subtotal:  optionalAmount(ctx, c, "order subtotal", w.Subtotal),
	}
}

// optionalAmount treats an absent amount as zero without a warning.
func optionalAmount(ctx context.Context, c *Client, label string, raw json.RawMessage) decimal.Decimal {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return decimal.Zero
	}
	return pricing.Normalize(ctx, c.logg, label, raw)
}

// CreateOrderGroup opens an order group and returns it with its backend id.
func (c *Client) CreateOrderGroup(ctx context.Context, req OrderGroupRequest) (types.OrderGroup, error) {
	if err := c.validateRequest("create order group", req); err != nil {
		return types.OrderGroup{}, err
	}
	var wire wireOrderGroup
	if err := c.do(ctx, http.MethodPost, c.endpoint(c.paths.OrderGroups, nil), "create order group", req, &wire); err != nil {
		return types.OrderGroup{}, err
	}
	if wire.ID <= 0 {
		return types.OrderGroup{}, pkgerrors.New(pkgerrors.CodeProtocol, "order group response carries no id")
	}
	return c.toOrderGroup(ctx, wire), nil
}

// CreateOrder adds one product line to an order group.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (types.Order, error) {
	if err := c.validateRequest("create order", req); err != nil {
		return types.Order{}, err
	}
	var wire wireOrder
	if err := c.do(ctx, http.MethodPost, c.endpoint(c.paths.Orders, nil), "create order", req, &wire); err != nil {
		return types.Order{}, err
	}
	return c.toOrder(ctx, wire), nil
}

// ListOrderGroups returns the order history of chatID.
func (c *Client) ListOrderGroups(ctx context.Context, chatID string) ([]types.OrderGroup, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat id is required")
	}
	var wire []wireOrderGroup
	query := url.Values{"chat_id": []string{chatID}}
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.paths.OrderGroups, query), "list order groups", nil, &wire); err != nil {
		return nil, err
	}
	groups := make([]types.OrderGroup, 0, len(wire))
	for _, w := range wire {
		groups = append(groups, c.toOrderGroup(ctx, w))
	}
	return groups, nil
}
