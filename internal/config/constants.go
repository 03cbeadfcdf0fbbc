package config

import "time"

// Timezone is the locale all order-date and schedule derivations use.
const Timezone = "Europe/Kyiv"

// B2BManagerID identifies the wholesale manager; orders assigned to this
// manager are always classified sales_type = b2b.
const B2BManagerID = 15

// RetailManagerIDs are managers (current and historical) whose orders are
// classified sales_type = retail.
var RetailManagerIDs = map[int64]bool{4: true, 8: true, 11: true, 16: true, 17: true, 19: true, 22: true}

// ActiveSourceIDs are the order sources surfaced on the dashboard.
// Source 3 (Opencart) is legacy and deliberately excluded.
var ActiveSourceIDs = map[int64]bool{1: true, 2: true, 4: true}

// ReturnStatusIDs denotes a returned/canceled order.
var ReturnStatusIDs = map[int64]bool{19: true, 21: true, 22: true, 23: true}

// ShopifySourceID is the source whose manager-less orders still count as retail.
const ShopifySourceID = 4

// SourceNames maps a source_id to its dashboard-facing name.
var SourceNames = map[int64]string{1: "Instagram", 2: "Telegram", 4: "Shopify"}

// SourceColors maps a source_id to its dashboard chart color.
var SourceColors = map[int64]string{1: "#7C3AED", 2: "#2563EB", 4: "#eb4200"}

// SyncPageSize is the fixed page size for upstream feed pagination.
const SyncPageSize = 50

// SyncPagePause is the pause between successful page fetches.
const SyncPagePause = 300 * time.Millisecond

// SyncLookback widens the fetch window to catch orders whose ordered_at
// lags their updated_at at the upstream source.
const SyncLookback = 24 * time.Hour

// SyncBaseInterval is the steady-state polling interval.
const SyncBaseInterval = 300 * time.Second

// SyncMaxInterval caps the adaptive backoff interval.
const SyncMaxInterval = 1800 * time.Second

// SyncOffHoursStart/End bound the Kyiv-local window where the backoff cap doubles.
const SyncOffHoursStart = 2
const SyncOffHoursEnd = 8

// SyncMaxRetries bounds per-cycle upstream retry attempts before skipping.
const SyncMaxRetries = 3

// UpstreamTimeout is the hard timeout for a single upstream HTTP call.
const UpstreamTimeout = 30 * time.Second

// WSWriteDeadline bounds a single WebSocket write.
const WSWriteDeadline = 5 * time.Second

// HandlerBudget is the soft budget for an HTTP request's downstream work.
const HandlerBudget = 60 * time.Second

// HealthSyncStaleThreshold is how long since the last successful sync
// cycle before /api/health reports the service degraded.
const HealthSyncStaleThreshold = 15 * time.Minute

// NightlyHour/Minute is when the nightly Kyiv-local maintenance job runs.
const NightlyHour = 23
const NightlyMinute = 30

// DefaultWeeklyPattern is the fallback weekly distribution inside a month
// when no weekly_patterns row exists for (month, sales_type).
var DefaultWeeklyPattern = map[int]float64{1: 0.23, 2: 0.23, 3: 0.23, 4: 0.23, 5: 0.08}

// DefaultMonthlyGoal is the smart-goal fallback when neither the YoY nor
// the recent-trend signal is usable for a period.
const DefaultMonthlyGoal = 3000000

// ForecastHistoryDays is the training lookback window for the revenue
// forecaster.
const ForecastHistoryDays = 780

// ForecastMinUsableRows is the minimum number of feature rows (after
// lag-induced dropout) required to train; below this the forecaster
// reports insufficient_data.
const ForecastMinUsableRows = 90

// ForecastWinsorPercentile is the percentile training targets are clipped
// to before training, to blunt the effect of promo-spike days.
const ForecastWinsorPercentile = 0.99

// ForecastHoldoutDays is how much of the trailing history is held out for
// early-stopping during boosting.
const ForecastHoldoutDays = 60

// ForecastMaxRounds/ForecastEarlyStopRounds bound the boosting loop.
const ForecastMaxRounds = 500
const ForecastEarlyStopRounds = 50

// ForecastSeed is a fixed seed value. Training is deterministic (greedy
// tree fitting, no random sampling) and does not read it.
const ForecastSeed = 42

// ForecastDOWClipMin/Max bound the per-day-of-week post-training
// correction factor.
const ForecastDOWClipMin = 0.70
const ForecastDOWClipMax = 1.30

// ForecastMinFolds is the minimum number of trailing monthly folds used by
// walk-forward evaluation.
const ForecastMinFolds = 3

// AtRiskDaysThreshold is the default lapsed-since-last-order window used by
// get_at_risk_customers when the caller doesn't override it.
const AtRiskDaysThreshold = 60

// SchedulerSessionCleanupInterval governs the session/cache cleanup job.
const SchedulerSessionCleanupInterval = 10 * time.Minute

// SchedulerDBCleanupInterval governs DB cache cleanup and history pruning.
const SchedulerDBCleanupInterval = 60 * time.Minute

// SchedulerHistoryRetention bounds how long inventory_sku_history rows live.
const SchedulerHistoryRetention = 30 * 24 * time.Hour

// SchedulerRevocationInterval governs the inactive-client revocation job.
const SchedulerRevocationInterval = 24 * time.Hour

// SchedulerInactiveThreshold is how long a dashboard session may go unseen
// before it is revoked.
const SchedulerInactiveThreshold = 45 * 24 * time.Hour

// SchedulerWSIdleThreshold is how long a WebSocket client may go silent
// before the session-cleanup job disconnects it.
const SchedulerWSIdleThreshold = 30 * time.Minute

// MilestoneThresholds are the fractions of a period's revenue goal that
// trigger a milestone_reached event when crossed.
var MilestoneThresholds = []float64{0.5, 0.75, 1.0}

// IsReturnStatus reports whether a status_id denotes a return/cancellation.
func IsReturnStatus(statusID int64) bool {
	return ReturnStatusIDs[statusID]
}

// IsActiveSource reports whether a source_id is surfaced on the dashboard.
func IsActiveSource(sourceID int64) bool {
	return ActiveSourceIDs[sourceID]
}
