package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/chatshop/internal/selection"
	"github.com/angelmondragon/chatshop/internal/session"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/types"
)

const platformTelegram = "telegram"

// register signs the contact up on the backend unless it already exists.
func (h *Handler) register(ctx context.Context, ev Event) {
	photoURL := ""
	if ev.UserID != 0 {
		// The file URL embeds the bot token. The backend stores it as given,
		// so it must stay out of logs and chat replies.
		url, err := h.channel.ProfilePhotoURL(ctx, ev.UserID)
		if err != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "profile photo lookup failed")
		}
		photoURL = url
	}
	h.say(ctx, ev.ChatID, msgRegistering, nil)

	users, err := h.backend.FindUsers(ctx, ev.ChatID)
	if err != nil {
		h.logg.Error(ctx, "user lookup failed", err)
		h.say(ctx, ev.ChatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	if len(users) > 0 {
		h.logg.Info(h.logg.WithField(ctx, "bot_user_id", users[0].ID), "user already registered")
		h.sendCategories(ctx, ev.ChatID)
		return
	}

	firstName := strings.TrimSpace(ev.FirstName)
	if firstName == "" {
		firstName = "Unknown"
	}
	reg := types.Registration{
		ChatID:          ev.ChatID,
		FirstName:       firstName,
		LastName:        ev.LastName,
		Username:        ev.Username,
		Platform:        platformTelegram,
		PhoneNumber:     strings.TrimSpace(ev.Phone),
		ProfilePhotoURL: photoURL,
	}
	if err := h.backend.RegisterUser(ctx, reg); err != nil {
		h.logg.Error(ctx, "user registration failed", err)
		h.say(ctx, ev.ChatID, fmt.Sprintf(msgRegisterFailed, errorDetail(err)), nil)
		return
	}
	h.logg.Info(ctx, "user registered")
	h.say(ctx, ev.ChatID, msgRegistered, nil)
	h.sendCategories(ctx, ev.ChatID)
}

func (h *Handler) sendCategories(ctx context.Context, chatID string) {
	categories, err := h.backend.ListCategories(ctx)
	if err != nil {
		h.logg.Error(ctx, "list categories failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	if len(categories) == 0 {
		h.say(ctx, chatID, msgNoCategories, nil)
		return
	}
	h.say(ctx, chatID, msgChooseCategory, categoryKeyboard(categories))
}

// browseCategory treats text as a category name: exact, case-insensitive.
func (h *Handler) browseCategory(ctx context.Context, chatID, name string) {
	categories, err := h.backend.ListCategories(ctx)
	if err != nil {
		h.logg.Error(ctx, "list categories failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	var matched *types.Category
	for i := range categories {
		if strings.EqualFold(categories[i].Name, name) {
			matched = &categories[i]
			break
		}
	}
	if matched == nil {
		h.say(ctx, chatID, msgCategoryNotFound, nil)
		return
	}

	products, err := h.backend.ListProducts(ctx)
	if err != nil {
		h.logg.Error(ctx, "list products failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	inCategory := make([]types.Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.CategoryName, matched.Name) {
			inCategory = append(inCategory, p)
		}
	}
	if len(inCategory) == 0 {
		h.say(ctx, chatID, msgEmptyCategory, nil)
		return
	}
	h.say(ctx, chatID, msgProducts, productListKeyboard(inCategory))
}

func (h *Handler) selectProduct(ctx context.Context, rec *session.Record, ev Event, productID int64) {
	h.answer(ctx, ev, "", false)
	ctx = h.logg.WithField(ctx, "product_id", productID)

	product, err := h.backend.GetProduct(ctx, productID)
	if err != nil {
		h.logg.Error(ctx, "get product failed", err)
		h.say(ctx, ev.ChatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	rec.Selection = selection.Select(product)

	caption := productCaption(product)
	markup := quantityKeyboard(rec.Selection.Quantity)
	image := h.imageFor(ctx, product)
	if _, err := h.channel.SendPhoto(ctx, ev.ChatID, image, caption, markup); err != nil {
		if image == h.settings.FallbackImage || h.settings.FallbackImage == "" {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "send product card failed")
			h.say(ctx, ev.ChatID, caption, markup)
			return
		}
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "product image rejected, retrying with fallback")
		if _, err := h.channel.SendPhoto(ctx, ev.ChatID, h.settings.FallbackImage, caption, markup); err != nil {
			h.say(ctx, ev.ChatID, caption, markup)
		}
	}
}

func (h *Handler) imageFor(ctx context.Context, p types.Product) string {
	image := strings.TrimSpace(p.ImageURL)
	prefix := h.settings.ImageHostPrefix
	if image == "" || (prefix != "" && strings.HasPrefix(image, prefix)) {
		if h.settings.FallbackImage != "" {
			h.logg.Debug(h.logg.WithField(ctx, "image", image), "using fallback product image")
			return h.settings.FallbackImage
		}
	}
	return image
}

func (h *Handler) adjustQuantity(ctx context.Context, rec *session.Record, ev Event, action callbackAction) {
	dir := selection.Increase
	if action == actionDecrease {
		dir = selection.Decrease
	}
	if err := selection.Adjust(rec.Selection, dir); err != nil {
		h.answer(ctx, ev, msgSelectFirst, true)
		return
	}
	sel := rec.Selection
	if err := h.channel.EditCaption(ctx, ev.ChatID, ev.MessageID, productCaption(sel.Product), quantityKeyboard(sel.Quantity)); err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "edit caption failed")
	}
	h.answer(ctx, ev, "", false)
}

func (h *Handler) showOrders(ctx context.Context, chatID string) {
	users, err := h.backend.FindUsers(ctx, chatID)
	if err != nil {
		h.logg.Error(ctx, "user lookup failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	if len(users) != 1 {
		h.logg.Warn(h.logg.WithField(ctx, "matches", len(users)), "order history for unresolved user")
		h.say(ctx, chatID, msgNotRegistered, nil)
		return
	}
	groups, err := h.backend.ListOrderGroups(ctx, chatID)
	if err != nil {
		h.logg.Error(ctx, "list order groups failed", err)
		h.say(ctx, chatID, fmt.Sprintf(msgServerError, errorDetail(err)), nil)
		return
	}
	if len(groups) == 0 {
		h.say(ctx, chatID, msgNoOrders, nil)
		return
	}

	products := map[int64]types.Product{}
	looked := map[int64]bool{}
	for _, group := range groups {
		for _, order := range group.Orders {
			if looked[order.ProductID] || order.ProductID <= 0 {
				continue
			}
			looked[order.ProductID] = true
			product, err := h.backend.GetProduct(ctx, order.ProductID)
			if err != nil {
				if pkgerrors.IsGateway(err) {
					h.logg.Warn(h.logg.WithFields(ctx, map[string]any{"product_id": order.ProductID, "error": err.Error()}), "order product lookup failed")
				}
				continue
			}
			products[order.ProductID] = product
		}
	}
	h.say(ctx, chatID, orderHistoryText(groups, products), nil)
}
