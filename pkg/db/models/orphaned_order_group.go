package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrphanedOrderGroup is a backend order group left with only part of its
// orders. Rows are appended by the checkout and closed by an operator.
type OrphanedOrderGroup struct {
	ID              uuid.UUID       `gorm:"column:id;type:text;primaryKey"`
	ChatKey         string          `gorm:"column:chat_key;not null"`
	BackendUserID   int64           `gorm:"column:backend_user_id;not null"`
	OrderGroupID    int64           `gorm:"column:order_group_id;not null;uniqueIndex"`
	Paid            bool            `gorm:"column:paid;not null"`
	TotalPrice      decimal.Decimal `gorm:"column:total_price;type:numeric(14,2);not null"`
	LinesTotal      int             `gorm:"column:lines_total;not null"`
	LinesCreated    int             `gorm:"column:lines_created;not null"`
	FailedProductID int64           `gorm:"column:failed_product_id"`
	Cause           string          `gorm:"column:cause"`
	OccurredAt      time.Time       `gorm:"column:occurred_at;not null"`
	ReportedAt      *time.Time      `gorm:"column:reported_at"`
	ResolvedAt      *time.Time      `gorm:"column:resolved_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrphanedOrderGroup) TableName() string {
	return "orphaned_order_groups"
}
