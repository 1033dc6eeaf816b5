// Package reconcile keeps the ledger of order groups the checkout could not
// complete. Nothing here touches the commerce backend; entries are for
// operators to follow up on.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chatshop/internal/checkout"
	"github.com/angelmondragon/chatshop/pkg/db"
	"github.com/angelmondragon/chatshop/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

const maxCauseLength = 1000

// Service records and closes orphaned order groups.
type Service interface {
	RecordOrphan(ctx context.Context, orphan checkout.Orphan) error
	Resolve(ctx context.Context, orderGroupID int64) error
	Open(ctx context.Context) (int64, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the ledger service with its repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reconcile repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, now: time.Now}, nil
}

// RecordOrphan appends an entry. Recording the same order group twice keeps
// the first entry.
func (s *service) RecordOrphan(ctx context.Context, orphan checkout.Orphan) error {
	if orphan.OrderGroupID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order group id is required")
	}
	if strings.TrimSpace(orphan.ChatKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "chat key is required")
	}
	if orphan.LinesCreated < 0 || orphan.LinesCreated >= orphan.LinesTotal {
		return pkgerrors.New(pkgerrors.CodeValidation, "orphan must have missing lines").
			WithDetails(map[string]any{"lines_total": orphan.LinesTotal, "lines_created": orphan.LinesCreated})
	}

	occurred := orphan.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	entry := &models.OrphanedOrderGroup{
		ID:              uuid.New(),
		ChatKey:         orphan.ChatKey,
		BackendUserID:   orphan.BackendUserID,
		OrderGroupID:    orphan.OrderGroupID,
		Paid:            orphan.Paid,
		TotalPrice:      orphan.TotalPrice,
		LinesTotal:      orphan.LinesTotal,
		LinesCreated:    orphan.LinesCreated,
		FailedProductID: orphan.FailedProductID,
		Cause:           truncate(orphan.Cause, maxCauseLength),
		OccurredAt:      occurred.UTC(),
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_group_id": orphan.OrderGroupID,
		"chat_id":        orphan.ChatKey,
		"paid":           orphan.Paid,
	})
	if err := s.repo.Create(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "order_group_id") {
			s.logg.Warn(ctx, "orphaned order group already recorded")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record orphaned order group")
	}
	s.logg.Warn(ctx, "orphaned order group recorded")
	return nil
}

func (s *service) Resolve(ctx context.Context, orderGroupID int64) error {
	if orderGroupID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order group id is required")
	}
	closed, err := s.repo.Resolve(ctx, orderGroupID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve orphaned order group")
	}
	if closed {
		s.logg.Info(s.logg.WithField(ctx, "order_group_id", orderGroupID), "orphaned order group resolved")
		return nil
	}
	if _, err := s.repo.FindByOrderGroup(ctx, orderGroupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "orphaned order group not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load orphaned order group")
	}
	return nil
}

func (s *service) Open(ctx context.Context) (int64, error) {
	count, err := s.repo.CountOpen(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count orphaned order groups")
	}
	return count, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
