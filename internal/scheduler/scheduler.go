// Package scheduler drives every cron-like background job the spec
// describes (§4.6): the adaptive-interval sync cycle, session/cache
// cleanup, DB history pruning, inactive-session revocation, and the
// nightly Kyiv-local maintenance chain. The teacher has no scheduler
// package of its own — its one periodic job runs inline at startup — so
// this is new surface, built in the teacher's goroutine +
// context-cancellation idiom (main.go's graceful-shutdown shape) and
// fronted by github.com/robfig/cron/v3 for the fixed-cadence triggers.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"salesanalytics/internal/cache"
	"salesanalytics/internal/config"
	"salesanalytics/internal/eventbus"
	"salesanalytics/internal/forecast"
	"salesanalytics/internal/logger"
	"salesanalytics/internal/session"
	"salesanalytics/internal/store"
	"salesanalytics/internal/sync"
)

// Publisher is the subset of eventbus.Bus the milestone job needs, kept as
// an interface for the same reason internal/sync keeps one: so a test can
// swap in a recorder without spinning up real WebSocket clients.
type Publisher interface {
	BroadcastAll(event string, data interface{}) int
}

// Scheduler owns every background job. All jobs are single-flighted: an
// overlapping trigger is dropped with a warning log rather than queued or
// run concurrently, per spec §4.6.
type Scheduler struct {
	store      *store.Store
	bus        Publisher
	wsBus      *eventbus.Bus
	cache      *cache.Cache
	sessions   *session.Store
	syncEngine *sync.Engine
	forecaster *forecast.Forecaster

	cron *cron.Cron

	sessionCleanupRunning int32
	dbCleanupRunning      int32
	revocationRunning     int32
	nightlyRunning        int32
	syncRunning           int32

	stopSync chan struct{}
}

// New wires a Scheduler to the services it drives. wsBus may be nil in
// tests that don't exercise WebSocket cleanup; bus may be nil to silence
// milestone broadcasts.
func New(st *store.Store, bus Publisher, wsBus *eventbus.Bus, c *cache.Cache, sessions *session.Store, syncEngine *sync.Engine, forecaster *forecast.Forecaster) *Scheduler {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:      st,
		bus:        bus,
		wsBus:      wsBus,
		cache:      c,
		sessions:   sessions,
		syncEngine: syncEngine,
		forecaster: forecaster,
		cron:       cron.New(cron.WithLocation(loc)),
		stopSync:   make(chan struct{}),
	}
}

// Start registers every fixed-cadence job with the cron scheduler and
// begins the adaptive sync-cycle loop. It returns immediately; jobs run in
// background goroutines until Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	every := func(d time.Duration) string { return fmt.Sprintf("@every %s", d) }

	if _, err := s.cron.AddFunc(every(config.SchedulerSessionCleanupInterval), func() {
		s.runGuarded("session-cleanup", &s.sessionCleanupRunning, func() error {
			return s.sessionCacheCleanup(ctx)
		})
	}); err != nil {
		return fmt.Errorf("register session-cleanup job: %w", err)
	}

	if _, err := s.cron.AddFunc(every(config.SchedulerDBCleanupInterval), func() {
		s.runGuarded("db-cleanup", &s.dbCleanupRunning, func() error {
			return s.dbCleanupAndPrune(ctx)
		})
	}); err != nil {
		return fmt.Errorf("register db-cleanup job: %w", err)
	}

	if _, err := s.cron.AddFunc(every(config.SchedulerRevocationInterval), func() {
		s.runGuarded("inactive-revocation", &s.revocationRunning, func() error {
			return s.revokeInactive(ctx)
		})
	}); err != nil {
		return fmt.Errorf("register inactive-revocation job: %w", err)
	}

	nightlySpec := fmt.Sprintf("%d %d * * *", config.NightlyMinute, config.NightlyHour)
	if _, err := s.cron.AddFunc(nightlySpec, func() {
		s.runGuarded("nightly", &s.nightlyRunning, func() error {
			return s.nightlyChain(ctx)
		})
	}); err != nil {
		return fmt.Errorf("register nightly job: %w", err)
	}

	s.cron.Start()
	go s.syncLoop(ctx)
	logger.Success("SCHEDULER", "started")
	return nil
}

// Stop halts the cron scheduler and the adaptive sync loop, waiting for
// any in-flight jobs the cron library is already tracking to finish.
func (s *Scheduler) Stop() {
	close(s.stopSync)
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	logger.Info("SCHEDULER", "stopped")
}

// runGuarded drops an overlapping trigger with a warning log instead of
// queueing or running it concurrently (spec §4.6's single-flight rule).
func (s *Scheduler) runGuarded(name string, flag *int32, fn func() error) {
	if !atomic.CompareAndSwapInt32(flag, 0, 1) {
		logger.Warn("SCHEDULER", fmt.Sprintf("%s trigger dropped: previous run still in flight", name))
		return
	}
	defer atomic.StoreInt32(flag, 0)

	start := time.Now()
	if err := fn(); err != nil {
		logger.Error("SCHEDULER", fmt.Sprintf("%s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err))
		return
	}
	logger.Success("SCHEDULER", fmt.Sprintf("%s completed in %s", name, time.Since(start).Round(time.Millisecond)))
}

// syncLoop triggers the Sync Engine at its own adaptive interval
// (config.SyncBaseInterval, backing off on empty cycles) rather than on a
// fixed cron cadence, since that interval changes at runtime.
func (s *Scheduler) syncLoop(ctx context.Context) {
	if s.syncEngine == nil {
		return
	}
	for {
		interval := s.syncEngine.CurrentInterval()
		select {
		case <-time.After(interval):
			s.runGuarded("sync-cycle", &s.syncRunning, func() error {
				_, err := s.syncEngine.RunOnce(ctx)
				return err
			})
		case <-s.stopSync:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sessionCacheCleanup is the 10-minute job: drop expired in-memory cache
// entries, disconnect idle WebSocket clients, and remove idle dashboard
// session rows.
func (s *Scheduler) sessionCacheCleanup(ctx context.Context) error {
	if s.cache != nil {
		n := s.cache.Cleanup()
		logger.Info("SCHEDULER", fmt.Sprintf("cache cleanup: %d expired entries dropped", n))
	}
	if s.wsBus != nil {
		n := s.wsBus.CleanupStale(config.SchedulerWSIdleThreshold)
		if n > 0 {
			logger.Info("SCHEDULER", fmt.Sprintf("disconnected %d idle websocket clients", n))
		}
	}
	if s.sessions != nil {
		n, err := s.sessions.CleanupIdle(ctx, config.SchedulerSessionCleanupInterval*3)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("SCHEDULER", fmt.Sprintf("dropped %d idle dashboard sessions", n))
		}
	}
	return nil
}

// dbCleanupAndPrune is the 60-minute job: prune inventory history rows
// older than the retention window.
func (s *Scheduler) dbCleanupAndPrune(ctx context.Context) error {
	n, err := s.store.PruneInventoryHistory(ctx, config.SchedulerHistoryRetention)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("SCHEDULER", fmt.Sprintf("pruned %d inventory history rows", n))
	}
	return nil
}

// revokeInactive is the 24h job: mark dashboard sessions unseen for more
// than 45 days as revoked.
func (s *Scheduler) revokeInactive(ctx context.Context) error {
	if s.sessions == nil {
		return nil
	}
	n, err := s.sessions.RevokeInactive(ctx, config.SchedulerInactiveThreshold)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("SCHEDULER", fmt.Sprintf("revoked %d inactive dashboard sessions", n))
	}
	return nil
}

// nightlyChain is the 23:30 Kyiv job: milestone check, UTM+traffic gold
// refresh, inventory snapshot, seasonality/growth/weekly-pattern
// recompute, and forecaster training — run in sequence so later steps see
// the earlier ones' freshly written data.
func (s *Scheduler) nightlyChain(ctx context.Context) error {
	if err := s.checkMilestones(ctx); err != nil {
		return fmt.Errorf("milestone check: %w", err)
	}
	if _, err := s.store.RefreshUTMSilver(ctx); err != nil {
		return fmt.Errorf("refresh utm silver: %w", err)
	}
	if _, err := s.store.RefreshGoldDailyTraffic(ctx); err != nil {
		return fmt.Errorf("refresh gold traffic: %w", err)
	}
	if _, err := s.store.RecordSKUInventorySnapshot(ctx); err != nil {
		return fmt.Errorf("inventory snapshot: %w", err)
	}

	for _, salesType := range []string{"retail", "b2b"} {
		if err := recomputeSeasonalIndices(ctx, s.store, salesType); err != nil {
			return fmt.Errorf("seasonal indices %s: %w", salesType, err)
		}
		if err := recomputeGrowthMetrics(ctx, s.store, salesType); err != nil {
			return fmt.Errorf("growth metrics %s: %w", salesType, err)
		}
		if err := recomputeWeeklyPatterns(ctx, s.store, salesType); err != nil {
			return fmt.Errorf("weekly patterns %s: %w", salesType, err)
		}
	}

	if s.forecaster != nil {
		if status := s.forecaster.StartTraining("retail"); status == forecast.StatusAlreadyTraining {
			logger.Warn("SCHEDULER", "nightly forecaster training skipped: already in progress")
		}
	}
	return nil
}
