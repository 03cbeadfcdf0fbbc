package api

import (
	"net/http"
	"strconv"
	"time"

	"salesanalytics/internal/config"
	"salesanalytics/internal/query"
)

func kyivNow() time.Time {
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}

func formatDate(t time.Time) string { return t.Format("2006-01-02") }

// resolvePeriod turns the period/start_date/end_date query parameters into
// a concrete [start, end] window, Kyiv-local. Explicit start_date/end_date
// win over period when both are set (DESIGN.md open-question decision).
func resolvePeriod(r *http.Request) (start, end string) {
	now := kyivNow()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if s := r.URL.Query().Get("start_date"); s != "" {
		if e := r.URL.Query().Get("end_date"); e != "" {
			return s, e
		}
	}

	switch r.URL.Query().Get("period") {
	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return formatDate(y), formatDate(y)
	case "week":
		weekStart := today.AddDate(0, 0, -int(today.Weekday())+1)
		if today.Weekday() == time.Sunday {
			weekStart = today.AddDate(0, 0, -6)
		}
		return formatDate(weekStart), formatDate(today)
	case "last_week":
		thisWeekStart := today.AddDate(0, 0, -int(today.Weekday())+1)
		if today.Weekday() == time.Sunday {
			thisWeekStart = today.AddDate(0, 0, -6)
		}
		lastWeekStart := thisWeekStart.AddDate(0, 0, -7)
		lastWeekEnd := thisWeekStart.AddDate(0, 0, -1)
		return formatDate(lastWeekStart), formatDate(lastWeekEnd)
	case "month":
		monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return formatDate(monthStart), formatDate(today)
	case "last_month":
		thisMonthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		lastMonthStart := thisMonthStart.AddDate(0, -1, 0)
		lastMonthEnd := thisMonthStart.AddDate(0, 0, -1)
		return formatDate(lastMonthStart), formatDate(lastMonthEnd)
	case "today", "":
		return formatDate(today), formatDate(today)
	default:
		return formatDate(today), formatDate(today)
	}
}

func resolveSalesType(r *http.Request) string {
	st := r.URL.Query().Get("sales_type")
	switch st {
	case "retail", "b2b", "all":
		return st
	default:
		return "retail"
	}
}

func resolveFilter(r *http.Request) query.Filter {
	start, end := resolvePeriod(r)
	f := query.Filter{StartDate: start, EndDate: end, SalesType: resolveSalesType(r), Limit: 10}
	if v := r.URL.Query().Get("source_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.SourceID = &id
		}
	}
	if v := r.URL.Query().Get("category_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.CategoryID = &id
		}
	}
	if v := r.URL.Query().Get("brand"); v != "" {
		f.Brand = &v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	return f
}
