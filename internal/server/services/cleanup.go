package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/aimathteacher/backend/internal/logging"
	"github.com/aimathteacher/backend/internal/server/repositories/repomanager"
)

// CleanupService periodically purges archived sessions whose last activity
// is older than maxAge.
type CleanupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	interval    time.Duration
	maxAge      time.Duration
}

// NewCleanupService constructs a CleanupService.
func NewCleanupService(db *sql.DB, m repomanager.RepositoryManager, interval, maxAge time.Duration, log logging.Logger) *CleanupService {
	return &CleanupService{
		db:          db,
		repomanager: m,
		log:         log.With("service", "cleanup"),
		interval:    interval,
		maxAge:      maxAge,
	}
}

// Run executes cleanup rounds every interval until ctx is cancelled.
func (s *CleanupService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single cleanup round.
func (s *CleanupService) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	n, err := s.repomanager.Sessions(s.db).DeleteArchivedBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn(ctx, "cleanup round failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info(ctx, "purged archived sessions", "count", n)
	}
}
