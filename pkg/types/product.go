package types

import "github.com/shopspring/decimal"

// Product is the snapshot of a backend product taken when the user picks it.
// Price is always normalized; later backend price changes do not reach a
// snapshot that is already in a cart.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CategoryName string          `json:"category_name"`
	Stock        int             `json:"stock"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image"`
}

// Category is a browsable product group.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BackendUser is a registered bot user on the commerce backend.
type BackendUser struct {
	ID     int64  `json:"id"`
	ChatID string `json:"chat_id"`
}

// Registration carries the contact data used to create a backend user.
type Registration struct {
	ChatID          string `json:"chat_id" validate:"required"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Platform        string `json:"platform" validate:"required"`
	PhoneNumber     string `json:"phone_number" validate:"required"`
	ProfilePhotoURL string `json:"profile_photo_url"`
}

// OrderGroup aggregates the orders of one checkout.
type OrderGroup struct {
	ID              int64           `json:"id"`
	IsPaid          bool            `json:"is_paid"`
	Status          string          `json:"status"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Orders          []Order         `json:"orders,omitempty"`
}

// Order is a single product line of an order group.
type Order struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
