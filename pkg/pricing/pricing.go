// Package pricing normalizes backend price fields into decimals.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

// DisplayPlaces is the rounding used when money is rendered.
const DisplayPlaces = 2

var errPriceMissing = pkgerrors.New(pkgerrors.CodeData, "price missing")

// Coerce converts a numeric or textual price into a decimal. Failures carry
// CodeData.
func Coerce(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, errPriceMissing
	case decimal.Decimal:
		return v, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, errPriceMissing
		}
		return *v, nil
	case string:
		return parseString(v)
	case json.Number:
		return parseString(v.String())
	case json.RawMessage:
		return coerceRaw(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	}
	return decimal.Zero, pkgerrors.New(pkgerrors.CodeData, fmt.Sprintf("unsupported price type %T", value))
}

// Normalize is Coerce that never fails: an unusable price becomes zero and a
// warning is logged against the product name.
func Normalize(ctx context.Context, logg *logger.Logger, productName string, value any) decimal.Decimal {
	price, err := Coerce(value)
	if err == nil {
		return price
	}
	if logg != nil {
		if strings.TrimSpace(productName) == "" {
			productName = "unknown"
		}
		ctx = logg.WithFields(ctx, map[string]any{
			"product": productName,
			"price":   describe(value),
			"reason":  err.Error(),
		})
		logg.Warn(ctx, "pricing.invalid_price")
	}
	return decimal.Zero
}

// Display renders an amount rounded for presentation.
func Display(amount decimal.Decimal) string {
	return amount.StringFixed(DisplayPlaces)
}

// MinorUnits converts an amount into the smallest currency unit, as payment
// invoices expect.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(DisplayPlaces).Round(0).IntPart()
}

func describe(value any) string {
	if raw, ok := value.(json.RawMessage); ok {
		return string(raw)
	}
	return fmt.Sprintf("%v", value)
}

func parseString(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeData, "price empty")
	}
	price, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeData, err, fmt.Sprintf("parse price %q", trimmed))
	}
	return price, nil
}

func coerceRaw(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return decimal.Zero, errPriceMissing
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeData, err, "decode price")
		}
		return parseString(s)
	}
	return parseString(trimmed)
}
