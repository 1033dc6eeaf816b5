package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatshop/pkg/db/models"
)

// Repository manages persistence for orphaned order groups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.OrphanedOrderGroup) error
	FindByOrderGroup(ctx context.Context, orderGroupID int64) (*models.OrphanedOrderGroup, error)
	ListUnreportedBefore(ctx context.Context, cutoff time.Time) ([]models.OrphanedOrderGroup, error)
	CountOpen(ctx context.Context) (int64, error)
	MarkReported(ctx context.Context, id uuid.UUID, at time.Time) error
	Resolve(ctx context.Context, orderGroupID int64, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.OrphanedOrderGroup) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByOrderGroup(ctx context.Context, orderGroupID int64) (*models.OrphanedOrderGroup, error) {
	var entry models.OrphanedOrderGroup
	if err := r.db.WithContext(ctx).
		Where("order_group_id = ?", orderGroupID).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListUnreportedBefore returns open entries older than cutoff that were
// never reported, oldest first.
func (r *repository) ListUnreportedBefore(ctx context.Context, cutoff time.Time) ([]models.OrphanedOrderGroup, error) {
	var entries []models.OrphanedOrderGroup
	if err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL AND reported_at IS NULL AND occurred_at <= ?", cutoff).
		Order("occurred_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrphanedOrderGroup{}).
		Where("resolved_at IS NULL").
		Count(&count).Error
	return count, err
}

func (r *repository) MarkReported(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OrphanedOrderGroup{}).
		Where("id = ?", id).
		Update("reported_at", at).Error
}

func (r *repository) Resolve(ctx context.Context, orderGroupID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OrphanedOrderGroup{}).
		Where("order_group_id = ? AND resolved_at IS NULL", orderGroupID).
		Update("resolved_at", at)
	return res.RowsAffected > 0, res.Error
}
