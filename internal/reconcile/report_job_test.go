package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/chatshop/pkg/logger"
)

type gaugeSpy struct {
	values []int64
}

func (g *gaugeSpy) SetOrphanedGroups(n int64) { g.values = append(g.values, n) }

func TestReportJobEscalatesStaleEntriesOnce(t *testing.T) {
	client := newLedgerDB(t)
	repo := NewRepository(client.DB())
	svc := newTestService(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.RecordOrphan(ctx, sampleOrphan(1, baseTime.Add(-10*time.Hour))))
	require.NoError(t, svc.RecordOrphan(ctx, sampleOrphan(2, baseTime.Add(-time.Hour))))
	require.NoError(t, svc.RecordOrphan(ctx, sampleOrphan(3, baseTime.Add(-12*time.Hour))))
	require.NoError(t, svc.Resolve(ctx, 3))

	gauge := &gaugeSpy{}
	job, err := NewReportJob(ReportJobParams{
		Logger:     logger.Nop(),
		DB:         client,
		Repo:       repo,
		Gauge:      gauge,
		StaleAfter: 6 * time.Hour,
	})
	require.NoError(t, err)
	job.now = func() time.Time { return baseTime }
	assert.Equal(t, "orphan_report", job.Name())

	require.NoError(t, job.Run(ctx))

	first, err := repo.FindByOrderGroup(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first.ReportedAt)
	fresh, err := repo.FindByOrderGroup(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, fresh.ReportedAt)
	resolved, err := repo.FindByOrderGroup(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, resolved.ReportedAt)

	stale, err := repo.ListUnreportedBefore(ctx, baseTime.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, []int64{2, 2}, gauge.values)
}

func TestNewReportJobValidation(t *testing.T) {
	_, err := NewReportJob(ReportJobParams{})
	require.Error(t, err)

	client := newLedgerDB(t)
	_, err = NewReportJob(ReportJobParams{Logger: logger.Nop(), DB: client})
	require.Error(t, err)

	job, err := NewReportJob(ReportJobParams{Logger: logger.Nop(), DB: client, Repo: NewRepository(client.DB())})
	require.NoError(t, err)
	assert.Equal(t, defaultStaleAfter, job.staleAfter)
}
