package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/chatshop/pkg/errors"
	"github.com/angelmondragon/chatshop/pkg/logger"
)

const defaultStaleAfter = 6 * time.Hour

// OrphanGauge exports the number of open ledger entries.
type OrphanGauge interface {
	SetOrphanedGroups(n int64)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReportJobParams configure the orphan report job.
type ReportJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repo       Repository
	Gauge      OrphanGauge
	StaleAfter time.Duration
}

// ReportJob escalates open entries that nobody resolved within StaleAfter.
// Each entry is escalated once.
type ReportJob struct {
	logg       *logger.Logger
	db         txRunner
	repo       Repository
	gauge      OrphanGauge
	staleAfter time.Duration
	now        func() time.Time
}

// NewReportJob builds the orphan report job.
func NewReportJob(params ReportJobParams) (*ReportJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("reconcile repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &ReportJob{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repo,
		gauge:      params.Gauge,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

func (j *ReportJob) Name() string { return "orphan_report" }

func (j *ReportJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	stale, err := j.repo.ListUnreportedBefore(ctx, now.Add(-j.staleAfter))
	if err != nil {
		return fmt.Errorf("list stale orphans: %w", err)
	}

	var errs []error
	reported := 0
	for _, entry := range stale {
		entryCtx := j.logg.WithFields(ctx, map[string]any{
			"order_group_id":    entry.OrderGroupID,
			"chat_id":           entry.ChatKey,
			"backend_user_id":   entry.BackendUserID,
			"paid":              entry.Paid,
			"total_price":       entry.TotalPrice.String(),
			"lines_created":     entry.LinesCreated,
			"lines_total":       entry.LinesTotal,
			"failed_product_id": entry.FailedProductID,
			"occurred_at":       entry.OccurredAt,
		})
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.repo.WithTx(tx).MarkReported(ctx, entry.ID, now)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("mark orphan %d reported: %w", entry.OrderGroupID, err))
			continue
		}
		j.logg.Error(entryCtx, "orphaned order group unresolved",
			pkgerrors.New(pkgerrors.CodeConsistency, entry.Cause))
		reported++
	}

	open, err := j.repo.CountOpen(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("count open orphans: %w", err))
	} else if j.gauge != nil {
		j.gauge.SetOrphanedGroups(open)
	}

	if reported > 0 || open > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{"reported": reported, "open": open}), "orphan report completed")
	}
	return multierr.Combine(errs...)
}
