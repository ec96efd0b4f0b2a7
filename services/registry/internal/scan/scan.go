// Package scan rebuilds the actor index from the registration event log. The
// log scan is the one operation whose cost grows with chain history, so it
// runs here on a schedule instead of on every admin-panel request.
package scan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
	"github.com/Fetrelo/safe-delivery-tfm/services/registry/internal/store"
)

type Actors interface {
	GetAllActors(ctx context.Context) ([]ledger.Actor, error)
}

type Scanner struct {
	reader Actors
	store  *store.Store
	log    *zap.Logger
}

func New(reader Actors, st *store.Store, log *zap.Logger) *Scanner {
	return &Scanner{reader: reader, store: st, log: log}
}

// Rescan resolves every logged registration and upserts it. Returns the
// number of actors indexed.
func (s *Scanner) Rescan(ctx context.Context) (int, error) {
	start := time.Now()
	actors, err := s.reader.GetAllActors(ctx)
	if err != nil {
		return 0, fmt.Errorf("scan registration log: %w", err)
	}
	indexed := 0
	for _, a := range actors {
		if err := s.store.Upsert(ctx, store.FromLedger(a)); err != nil {
			return indexed, fmt.Errorf("index actor %s: %w", a.Address, err)
		}
		indexed++
	}
	s.log.Info("rescan complete",
		zap.Int("actors", indexed),
		zap.Duration("took", time.Since(start)))
	return indexed, nil
}

// Run rescans on the interval until the context ends. One failed pass is
// logged and the next tick tries again.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Rescan(ctx); err != nil {
			s.log.Warn("rescan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
