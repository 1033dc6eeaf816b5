package bot

import (
	"strconv"
	"strings"
)

// Callback data understood by the inline keyboards.
const (
	cbProductPrefix = "product_"
	cbRemovePrefix  = "remove_"
	cbQtyIncrease   = "qty_increase"
	cbQtyDecrease   = "qty_decrease"
	cbNoop          = "noop"
	cbAddToCart     = "add_to_cart"
	cbPlaceOrder    = "place_order"
	cbClearCart     = "clear_cart"
)

type callbackAction int

const (
	actionUnknown callbackAction = iota
	actionNoop
	actionSelectProduct
	actionIncrease
	actionDecrease
	actionAddToCart
	actionRemove
	actionPlaceOrder
	actionClearCart
)

type callback struct {
	action    callbackAction
	productID int64
}

func parseCallback(data string) callback {
	data = strings.TrimSpace(data)
	switch data {
	case cbNoop:
		return callback{action: actionNoop}
	case cbQtyIncrease:
		return callback{action: actionIncrease}
	case cbQtyDecrease:
		return callback{action: actionDecrease}
	case cbAddToCart:
		return callback{action: actionAddToCart}
	case cbPlaceOrder:
		return callback{action: actionPlaceOrder}
	case cbClearCart:
		return callback{action: actionClearCart}
	}
	if id, ok := idWithPrefix(data, cbProductPrefix); ok {
		return callback{action: actionSelectProduct, productID: id}
	}
	if id, ok := idWithPrefix(data, cbRemovePrefix); ok {
		return callback{action: actionRemove, productID: id}
	}
	return callback{action: actionUnknown}
}

func idWithPrefix(data, prefix string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func productCallback(id int64) string {
	return cbProductPrefix + strconv.FormatInt(id, 10)
}

func removeCallback(id int64) string {
	return cbRemovePrefix + strconv.FormatInt(id, 10)
}
