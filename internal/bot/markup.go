package bot

import (
	"fmt"

	"github.com/angelmondragon/chatshop/internal/cart"
	"github.com/angelmondragon/chatshop/pkg/types"
)

const categoriesPerRow = 2

func contactKeyboard() *types.Markup {
	return &types.Markup{
		Reply:           [][]types.Button{{{Text: btnShareContact, RequestContact: true}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

// categoryKeyboard lays categories out two per row with the menu row last.
func categoryKeyboard(categories []types.Category) *types.Markup {
	rows := make([][]types.Button, 0, len(categories)/categoriesPerRow+2)
	var row []types.Button
	for _, c := range categories {
		row = append(row, types.Button{Text: c.Name})
		if len(row) == categoriesPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []types.Button{{Text: btnViewCart}, {Text: btnMyOrders}})
	return &types.Markup{Reply: rows, ResizeKeyboard: true}
}

func productListKeyboard(products []types.Product) *types.Markup {
	rows := make([][]types.Button, 0, len(products))
	for _, p := range products {
		rows = append(rows, []types.Button{{Text: p.Name, CallbackData: productCallback(p.ID)}})
	}
	return &types.Markup{Inline: rows}
}

func quantityKeyboard(qty int) *types.Markup {
	return &types.Markup{Inline: [][]types.Button{
		{
			{Text: btnDecrease, CallbackData: cbQtyDecrease},
			{Text: fmt.Sprintf("%d ta", qty), CallbackData: cbNoop},
			{Text: btnIncrease, CallbackData: cbQtyIncrease},
		},
		{{Text: btnAddToCart, CallbackData: cbAddToCart}},
	}}
}

func cartKeyboard(total cart.Total) *types.Markup {
	rows := make([][]types.Button, 0, len(total.Lines)+2)
	for _, line := range total.Lines {
		rows = append(rows, []types.Button{{
			Text:         fmt.Sprintf("❌ %s ni o'chirish", line.Product.Name),
			CallbackData: removeCallback(line.Product.ID),
		}})
	}
	rows = append(rows,
		[]types.Button{{Text: btnPlaceOrder, CallbackData: cbPlaceOrder}},
		[]types.Button{{Text: btnClearCart, CallbackData: cbClearCart}},
	)
	return &types.Markup{Inline: rows}
}
