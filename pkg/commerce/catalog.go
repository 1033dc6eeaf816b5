package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
	"github.com/angelmondragon/chatshop/pkg/pricing"
	"github.com/angelmondragon/chatshop/pkg/types"
)

const unknownProductName = "Unknown product"

type wireProduct struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        json.RawMessage `json:"price"`
	CategoryName string          `json:"category_name"`
	Stock        json.RawMessage `json:"stock"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
}

func (c *Client) toProduct(ctx context.Context, w wireProduct) types.Product {
	name := strings.TrimSpace(w.Name)
	if name == "" {
		name = unknownProductName
	}
	return types.Product{
		ID:           w.ID,
		Name:         name,
		Price:        pricing.Normalize(ctx, c.logg, name, w.Price),
		CategoryName: w.CategoryName,
		Stock:        c.normalizeStock(ctx, name, w.Stock),
		Description:  w.Description,
		ImageURL:     strings.TrimSpace(w.Image),
	}
}

// normalizeStock accepts counts sent as numbers, numeric strings or whole
// floats. Anything else becomes zero and logs a warning, so one bad product
// never fails the listing.
func (c *Client) normalizeStock(ctx context.Context, productName string, raw json.RawMessage) int {
	stock, err := parseStock(raw)
	if err == nil {
		return stock
	}
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, logger.Fields{
			"product": productName,
			"stock":   string(raw),
			"reason":  err.Error(),
		})
		c.logg.Warn(ctx, "commerce.invalid_stock")
	}
	return 0
}

func parseStock(raw json.RawMessage) (int, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, nil
	}
	if unquoted, err := strconv.Unquote(trimmed); err == nil {
		trimmed = strings.TrimSpace(unquoted)
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeData, err, "parse stock")
	}
	if !value.IsInteger() || value.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeData, fmt.Sprintf("stock %s is not a count", trimmed))
	}
	return int(value.IntPart()), nil
}

// ListCategories returns every browsable category.
func (c *Client) ListCategories(ctx context.Context) ([]types.Category, error) {
	var categories []types.Category
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.paths.Categories, nil), "list categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListProducts returns the whole catalog with normalized prices.
func (c *Client) ListProducts(ctx context.Context) ([]types.Product, error) {
	var wire []wireProduct
	if err := c.do(ctx, http.MethodGet, c.endpoint(c.paths.Products, nil), "list products", nil, &wire); err != nil {
		return nil, err
	}
	products := make([]types.Product, 0, len(wire))
	for _, w := range wire {
		products = append(products, c.toProduct(ctx, w))
	}
	return products, nil
}

// GetProduct fetches one product by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (types.Product, error) {
	if id <= 0 {
		return types.Product{}, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	var wire wireProduct
	path := strings.TrimRight(c.paths.Products, "/") + "/" + strconv.FormatInt(id, 10) + "/"
	if err := c.do(ctx, http.MethodGet, c.endpoint(path, nil), "get product", nil, &wire); err != nil {
		return types.Product{}, err
	}
	if wire.ID == 0 {
		wire.ID = id
	}
	return c.toProduct(ctx, wire), nil
}
