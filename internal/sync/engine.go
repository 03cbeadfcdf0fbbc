// Package sync is the Sync Engine: it polls the upstream order feed, pages
// through results, upserts into Bronze, then triggers Silver/Gold
// refreshes. State machine and single-flight discipline follow spec §4.2;
// the adaptive backoff and page-fetch loop are grounded on the teacher's
// ESI client retry/pagination idiom, promoted here to a cycle-level policy.
package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"salesanalytics/internal/config"
	"salesanalytics/internal/feed"
	"salesanalytics/internal/logger"
	"salesanalytics/internal/store"
)

// Publisher is the subset of eventbus.Bus the engine needs, kept as an
// interface here so this package never imports eventbus directly.
type Publisher interface {
	BroadcastAll(event string, data interface{}) int
}

// Result summarizes one completed cycle.
type Result struct {
	Applied          int
	SalesTypesTouched []string
	RangeStart        time.Time
	RangeEnd          time.Time
	Skipped           bool
}

// Engine drives the sync loop. Only one cycle may run at a time; a second
// trigger while one is in flight is dropped via singleflight.
type Engine struct {
	store *store.Store
	feed  *feed.Client
	bus   Publisher

	group singleflight.Group

	mu               sync.Mutex
	consecutiveEmpty int
	currentInterval  time.Duration

	running int32
}

// New builds a Sync Engine bound to a store, feed client, and event
// publisher.
func New(st *store.Store, fc *feed.Client, bus Publisher) *Engine {
	return &Engine{
		store:           st,
		feed:            fc,
		bus:             bus,
		currentInterval: config.SyncBaseInterval,
	}
}

// CurrentInterval returns the adaptive polling interval the Scheduler
// should wait before the next RunOnce.
func (e *Engine) CurrentInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentInterval
}

// RunOnce performs exactly one sync cycle, single-flighted: a concurrent
// call while a cycle is already running returns the in-flight result
// instead of starting a second one.
func (e *Engine) RunOnce(ctx context.Context) (Result, error) {
	v, err, _ := e.group.Do("cycle", func() (interface{}, error) {
		atomic.StoreInt32(&e.running, 1)
		defer atomic.StoreInt32(&e.running, 0)
		return e.runCycle(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// IsRunning reports whether a cycle is currently in flight.
func (e *Engine) IsRunning() bool {
	return atomic.LoadInt32(&e.running) == 1
}

// LastSyncAt reports when the most recent sync cycle completed
// successfully, read from the same sync_metadata row runCycle writes at
// the end of every cycle that runs to completion. Used by the health
// endpoint to detect a sync loop that has gone stale.
func (e *Engine) LastSyncAt(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := e.store.GetSyncMetadata(ctx, "orders")
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

func (e *Engine) runCycle(ctx context.Context) (Result, error) {
	sinceStr, ok, err := e.store.GetSyncMetadata(ctx, "orders")
	if err != nil {
		return Result{}, fmt.Errorf("read sync_metadata: %w", err)
	}
	var since time.Time
	if ok {
		since, err = time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			since = time.Now().Add(-config.SyncLookback)
		}
	} else {
		since = time.Now().Add(-config.SyncLookback)
	}

	lookbackSince := since.Add(-config.SyncLookback)
	now := time.Now().UTC()

	totalApplied := 0
	page := 1
	for {
		orders, hasMore, err := e.fetchPageWithRetry(ctx, lookbackSince, page)
		if err != nil {
			logger.Error("SYNC", fmt.Sprintf("cycle aborted at page %d: %v", page, err))
			e.recordEmpty()
			return Result{Skipped: true}, nil
		}
		if len(orders) == 0 {
			break
		}

		var batch []store.Order
		for _, o := range orders {
			sb := store.Order{
				ID: o.ID, SourceID: o.SourceID, StatusID: o.StatusID, GrandTotal: o.GrandTotal,
				OrderedAt: o.OrderedAt, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
				BuyerID: o.BuyerID, ManagerID: o.ManagerID, ManagerComment: o.ManagerComment,
			}
			for _, p := range o.Products {
				sb.Products = append(sb.Products, store.OrderProductInput{
					ID: p.ID, ProductID: p.ProductID, Name: p.Name, Quantity: p.Quantity, PriceSold: p.PriceSold,
				})
			}
			batch = append(batch, sb)
		}

		applied, err := e.store.UpsertOrders(ctx, batch)
		if err != nil {
			logger.Error("SYNC", fmt.Sprintf("upsert failed at page %d: %v", page, err))
			e.recordEmpty()
			return Result{Skipped: true}, nil
		}
		totalApplied += applied

		if !hasMore {
			break
		}
		page++
		select {
		case <-time.After(config.SyncPagePause):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	if err := e.store.SetSyncMetadata(ctx, "orders", now.Format(time.RFC3339)); err != nil {
		return Result{}, fmt.Errorf("persist sync_metadata: %w", err)
	}

	if totalApplied == 0 {
		e.recordEmpty()
		return Result{Applied: 0, RangeStart: since, RangeEnd: now}, nil
	}
	e.recordNonEmpty()

	if _, err := e.store.RefreshSilverOrders(ctx, &lookbackSince); err != nil {
		return Result{}, fmt.Errorf("refresh silver orders: %w", err)
	}
	if _, err := e.store.RefreshUTMSilver(ctx); err != nil {
		return Result{}, fmt.Errorf("refresh utm silver: %w", err)
	}
	if _, err := e.store.RefreshGoldDailyRevenue(ctx); err != nil {
		return Result{}, fmt.Errorf("refresh gold revenue: %w", err)
	}
	if _, err := e.store.RefreshGoldDailyProducts(ctx); err != nil {
		return Result{}, fmt.Errorf("refresh gold products: %w", err)
	}
	if _, err := e.store.RefreshGoldDailyTraffic(ctx); err != nil {
		return Result{}, fmt.Errorf("refresh gold traffic: %w", err)
	}

	salesTypes, err := e.salesTypesTouchedSince(ctx, since, now)
	if err != nil {
		return Result{}, fmt.Errorf("determine sales_types_touched: %w", err)
	}

	result := Result{Applied: totalApplied, SalesTypesTouched: salesTypes, RangeStart: since, RangeEnd: now}
	if e.bus != nil {
		e.bus.BroadcastAll("orders_synced", map[string]interface{}{
			"count":            totalApplied,
			"salesTypesTouched": salesTypes,
			"startDate":        since.Format("2006-01-02"),
			"endDate":          now.Format("2006-01-02"),
		})
	}
	logger.Success("SYNC", fmt.Sprintf("cycle applied %d orders", totalApplied))
	return result, nil
}

// fetchPageWithRetry wraps feed.FetchOrdersPage; the feed client already
// retries transient HTTP errors internally, so this just surfaces the
// final error to the cycle so it can back off and skip.
func (e *Engine) fetchPageWithRetry(ctx context.Context, since time.Time, page int) ([]feed.OrderDTO, bool, error) {
	return e.feed.FetchOrdersPage(ctx, since, page)
}

// salesTypesTouchedSince reports the distinct sales_type values among
// orders whose ordered_at falls in [since, now], for the orders_synced
// notification payload.
func (e *Engine) salesTypesTouchedSince(ctx context.Context, since, now time.Time) ([]string, error) {
	rows, err := e.store.DB().QueryContext(ctx, `
		SELECT DISTINCT sales_type FROM silver_orders
		WHERE order_date >= ? AND order_date <= ?
	`, since.Format("2006-01-02"), now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (e *Engine) recordEmpty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveEmpty++
	if e.consecutiveEmpty >= 2 {
		intervalCap := config.SyncMaxInterval
		if inKyivOffHours() {
			intervalCap *= 2
		}
		interval := config.SyncBaseInterval * time.Duration(1<<uint(e.consecutiveEmpty-1))
		if interval > intervalCap {
			interval = intervalCap
		}
		e.currentInterval = interval
	}
}

func (e *Engine) recordNonEmpty() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consecutiveEmpty = 0
	e.currentInterval = config.SyncBaseInterval
}

func inKyivOffHours() bool {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		loc = time.FixedZone(config.Timezone, 2*60*60)
	}
	hour := time.Now().In(loc).Hour()
	return hour >= config.SyncOffHoursStart && hour < config.SyncOffHoursEnd
}
