package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when a manual sync is requested during the
// cooldown after the previous one.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyncCooldown is the minimum time between two manually triggered syncs.
const SyncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	LayersAdded     int       `json:"layers_added"`
	LayersRemoved   int       `json:"layers_removed"`
	LayersTotal     int       `json:"layers_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// layerSyncer is the part of the registry the sync service drives.
type layerSyncer interface {
	Sync(ctx context.Context) (SyncStats, error)
	LayerCount() int
}

// SyncService periodically mirrors remote shapefile storage into the
// layer registry.
type SyncService struct {
	registry layerSyncer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// manual trigger cooldown
	lastManual time.Time
	manualMu   sync.Mutex

	// serializes sync runs
	runMu sync.Mutex

	nextSync time.Time
	nextMu   sync.RWMutex
}

// NewSyncService creates a new sync service.
func NewSyncService(registry layerSyncer, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sync scheduler.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(s.now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.sync(ctx); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
			s.setNextSync(s.now().Add(s.interval))
		}
	}
}

// Stop gracefully stops the sync service. It is safe to call more than once.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync immediately. It returns ErrRateLimited when the
// previous manual sync is less than SyncCooldown ago.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.manualMu.Lock()
	now := s.now()
	if !s.lastManual.IsZero() && now.Sub(s.lastManual) < SyncCooldown {
		s.manualMu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastManual = now
	s.manualMu.Unlock()

	return s.sync(ctx)
}

func (s *SyncService) sync(ctx context.Context) (SyncResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		LayersAdded:     stats.Added,
		LayersRemoved:   stats.Removed,
		LayersTotal:     s.registry.LayerCount(),
		SyncedAt:        s.now(),
		NextScheduledAt: s.NextSync(),
	}
	s.logger.Info("sync completed",
		"added", result.LayersAdded,
		"removed", result.LayersRemoved,
		"total", result.LayersTotal,
	)
	return result, nil
}

func (s *SyncService) setNextSync(t time.Time) {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()
	s.nextSync = t
}

// NextSync returns the time of the next scheduled sync, zero before Start.
func (s *SyncService) NextSync() time.Time {
	s.nextMu.RLock()
	defer s.nextMu.RUnlock()
	return s.nextSync
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
