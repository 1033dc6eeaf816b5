package session

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/chatshop/pkg/logger"
)

const sweeperJobName = "session_sweeper"

// SessionGauge receives the live record count after every sweep.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Sweeper evicts records idle past a TTL. It runs as a cron job on every
// instance since the arena is process local.
type Sweeper struct {
	store *Store
	ttl   time.Duration
	logg  *logger.Logger
	gauge SessionGauge
}

func NewSweeper(store *Store, ttl time.Duration, logg *logger.Logger, gauge SessionGauge) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("session store required")
	}
	if ttl <= 0 {
		return nil, errors.New("idle ttl must be positive")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Sweeper{store: store, ttl: ttl, logg: logg, gauge: gauge}, nil
}

func (s *Sweeper) Name() string { return sweeperJobName }

func (s *Sweeper) Run(ctx context.Context) error {
	evicted := s.store.Evict(s.ttl)
	remaining := s.store.Len()
	if s.gauge != nil {
		s.gauge.SetActiveSessions(remaining)
	}
	if evicted > 0 {
		ctx = s.logg.WithFields(ctx, map[string]any{"evicted": evicted, "remaining": remaining})
		s.logg.Info(ctx, "idle sessions evicted")
	}
	return nil
}
