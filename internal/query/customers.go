package query

import (
	"context"
	"fmt"
	"time"
)

// CustomerInsights is the get_customer_insights response shape.
type CustomerInsights struct {
	TotalCustomers    int64   `json:"totalCustomers"`
	NewCustomers      int64   `json:"newCustomers"`
	ReturningCustomers int64  `json:"returningCustomers"`
	RepeatRate        float64 `json:"repeatRate"`
	AvgOrdersPerCustomer float64 `json:"avgOrdersPerCustomer"`
}

// GetCustomerInsights implements get_customer_insights.
func (l *Layer) GetCustomerInsights(ctx context.Context, f Filter) (CustomerInsights, error) {
	stClause, stArgs := f.salesTypeClause("so")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	row := l.store.DB().QueryRowContext(ctx, fmt.Sprintf(`
		SELECT
			COUNT(DISTINCT so.buyer_id),
			COUNT(DISTINCT so.buyer_id) FILTER (WHERE so.is_new_customer),
			COUNT(DISTINCT so.buyer_id) FILTER (WHERE NOT so.is_new_customer),
			COUNT(*)
		FROM silver_orders so
		WHERE NOT so.is_return AND so.buyer_id IS NOT NULL
			AND so.order_date >= ? AND so.order_date <= ? %s
	`, stClause), args...)

	var out CustomerInsights
	var totalOrders int64
	if err := row.Scan(&out.TotalCustomers, &out.NewCustomers, &out.ReturningCustomers, &totalOrders); err != nil {
		return out, fmt.Errorf("customer insights: %w", err)
	}
	if out.TotalCustomers > 0 {
		out.RepeatRate = round2(float64(out.ReturningCustomers) / float64(out.TotalCustomers) * 100)
		out.AvgOrdersPerCustomer = round2(float64(totalOrders) / float64(out.TotalCustomers))
	}
	return out, nil
}

// CohortRetention is one monthly cohort's retention curve.
type CohortRetention struct {
	CohortMonth string    `json:"cohortMonth"`
	CohortSize  int64     `json:"cohortSize"`
	Retention   []float64 `json:"retention"` // index 0 = month 0 (always 100)
}

func (l *Layer) cohortOrders(ctx context.Context, f Filter) (map[int64]string, map[int64][]string, error) {
	stClause, stArgs := f.salesTypeClause("so")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	rows, err := l.store.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT so.buyer_id, so.order_date FROM silver_orders so
		WHERE NOT so.is_return AND so.buyer_id IS NOT NULL
			AND so.order_date >= ? AND so.order_date <= ? %s
		ORDER BY so.buyer_id, so.order_date
	`, stClause), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("cohort orders: %w", err)
	}
	defer rows.Close()

	firstOrderMonth := map[int64]string{}
	orderMonthsByBuyer := map[int64][]string{}
	for rows.Next() {
		var buyerID int64
		var orderDate string
		if err := rows.Scan(&buyerID, &orderDate); err != nil {
			return nil, nil, fmt.Errorf("scan cohort order: %w", err)
		}
		month := orderDate[:7]
		if _, ok := firstOrderMonth[buyerID]; !ok {
			firstOrderMonth[buyerID] = month
		}
		orderMonthsByBuyer[buyerID] = append(orderMonthsByBuyer[buyerID], month)
	}
	return firstOrderMonth, orderMonthsByBuyer, rows.Err()
}

func monthsBetween(a, b string) int {
	ay, am := a[:4], a[5:7]
	by, bm := b[:4], b[5:7]
	var ayi, ami, byi, bmi int
	fmt.Sscanf(ay, "%d", &ayi)
	fmt.Sscanf(am, "%d", &ami)
	fmt.Sscanf(by, "%d", &byi)
	fmt.Sscanf(bm, "%d", &bmi)
	return (byi-ayi)*12 + (bmi - ami)
}

// GetCohortRetention implements get_cohort_retention: customer-retention
// percentage by cohort month and months-since-first-purchase.
func (l *Layer) GetCohortRetention(ctx context.Context, f Filter) ([]CohortRetention, error) {
	firstMonth, ordersByBuyer, err := l.cohortOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	return buildCohorts(firstMonth, ordersByBuyer, false), nil
}

// EnhancedCohortRetention adds revenue retention alongside customer
// retention, per get_enhanced_cohort_retention.
type EnhancedCohortRetention struct {
	CohortMonth       string    `json:"cohortMonth"`
	CohortSize        int64     `json:"cohortSize"`
	CustomerRetention []float64 `json:"customerRetention"`
	RevenueRetention  []float64 `json:"revenueRetention"`
}

// GetEnhancedCohortRetention implements get_enhanced_cohort_retention.
func (l *Layer) GetEnhancedCohortRetention(ctx context.Context, f Filter) ([]EnhancedCohortRetention, error) {
	stClause, stArgs := f.salesTypeClause("so")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	rows, err := l.store.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT so.buyer_id, so.order_date, so.grand_total FROM silver_orders so
		WHERE NOT so.is_return AND so.buyer_id IS NOT NULL
			AND so.order_date >= ? AND so.order_date <= ? %s
		ORDER BY so.buyer_id, so.order_date
	`, stClause), args...)
	if err != nil {
		return nil, fmt.Errorf("enhanced cohort query: %w", err)
	}
	defer rows.Close()

	firstMonth := map[int64]string{}
	revenueByBuyerMonth := map[int64]map[string]float64{}
	for rows.Next() {
		var buyerID int64
		var orderDate string
		var grandTotal float64
		if err := rows.Scan(&buyerID, &orderDate, &grandTotal); err != nil {
			return nil, fmt.Errorf("scan enhanced cohort row: %w", err)
		}
		month := orderDate[:7]
		if _, ok := firstMonth[buyerID]; !ok {
			firstMonth[buyerID] = month
			revenueByBuyerMonth[buyerID] = map[string]float64{}
		}
		revenueByBuyerMonth[buyerID][month] += grandTotal
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cohortBuyers := map[string][]int64{}
	for buyerID, m := range firstMonth {
		cohortBuyers[m] = append(cohortBuyers[m], buyerID)
	}

	var out []EnhancedCohortRetention
	for cohortMonth, buyers := range cohortBuyers {
		ec := EnhancedCohortRetention{CohortMonth: cohortMonth, CohortSize: int64(len(buyers))}
		cohortFirstRevenue := 0.0
		for _, b := range buyers {
			cohortFirstRevenue += revenueByBuyerMonth[b][cohortMonth]
		}
		for m := 0; m <= 12; m++ {
			activeCustomers := int64(0)
			activeRevenue := 0.0
			for _, b := range buyers {
				for month, rev := range revenueByBuyerMonth[b] {
					if monthsBetween(cohortMonth, month) == m {
						activeCustomers++
						activeRevenue += rev
						break
					}
				}
			}
			custPct := 0.0
			if ec.CohortSize > 0 {
				custPct = round2(float64(activeCustomers) / float64(ec.CohortSize) * 100)
			}
			revPct := 0.0
			if cohortFirstRevenue > 0 {
				revPct = round2(activeRevenue / cohortFirstRevenue * 100)
			}
			ec.CustomerRetention = append(ec.CustomerRetention, custPct)
			ec.RevenueRetention = append(ec.RevenueRetention, revPct)
		}
		out = append(out, ec)
	}
	return out, nil
}

func buildCohorts(firstMonth map[int64]string, ordersByBuyer map[int64][]string, _ bool) []CohortRetention {
	cohortBuyers := map[string][]int64{}
	for buyerID, m := range firstMonth {
		cohortBuyers[m] = append(cohortBuyers[m], buyerID)
	}

	var out []CohortRetention
	for cohortMonth, buyers := range cohortBuyers {
		cr := CohortRetention{CohortMonth: cohortMonth, CohortSize: int64(len(buyers))}
		for m := 0; m <= 12; m++ {
			active := int64(0)
			for _, b := range buyers {
				for _, month := range ordersByBuyer[b] {
					if monthsBetween(cohortMonth, month) == m {
						active++
						break
					}
				}
			}
			pct := 0.0
			if cr.CohortSize > 0 {
				pct = round2(float64(active) / float64(cr.CohortSize) * 100)
			}
			cr.Retention = append(cr.Retention, pct)
		}
		out = append(out, cr)
	}
	return out
}

// DaysToSecondPurchaseBucket is one histogram bucket of the
// get_days_to_second_purchase response.
type DaysToSecondPurchaseBucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// GetDaysToSecondPurchase implements get_days_to_second_purchase, bucketed
// into the fixed 0-30/31-60/61-90/91-120/121-150/151-180/180+ ranges.
func (l *Layer) GetDaysToSecondPurchase(ctx context.Context, f Filter) ([]DaysToSecondPurchaseBucket, error) {
	stClause, stArgs := f.salesTypeClause("so")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	rows, err := l.store.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT buyer_id, order_date FROM (
			SELECT so.buyer_id, so.order_date,
				ROW_NUMBER() OVER (PARTITION BY so.buyer_id ORDER BY so.order_date) AS rn
			FROM silver_orders so
			WHERE NOT so.is_return AND so.buyer_id IS NOT NULL
				AND so.order_date >= ? AND so.order_date <= ? %s
		) ranked WHERE rn <= 2
	`, stClause), args...)
	if err != nil {
		return nil, fmt.Errorf("days to second purchase query: %w", err)
	}
	defer rows.Close()

	dates := map[int64][]string{}
	for rows.Next() {
		var buyerID int64
		var orderDate string
		if err := rows.Scan(&buyerID, &orderDate); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		dates[buyerID] = append(dates[buyerID], orderDate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bounds := []struct {
		label    string
		min, max int
	}{
		{"0-30", 0, 30}, {"31-60", 31, 60}, {"61-90", 61, 90},
		{"91-120", 91, 120}, {"121-150", 121, 150}, {"151-180", 151, 180}, {"180+", 181, 1 << 30},
	}
	counts := make([]int64, len(bounds))

	for _, ds := range dates {
		if len(ds) < 2 {
			continue
		}
		days := daysBetweenDates(ds[0], ds[1])
		for i, b := range bounds {
			if days >= b.min && days <= b.max {
				counts[i]++
				break
			}
		}
	}

	out := make([]DaysToSecondPurchaseBucket, len(bounds))
	for i, b := range bounds {
		out[i] = DaysToSecondPurchaseBucket{Label: b.label, Count: counts[i]}
	}
	return out, nil
}

func daysBetweenDates(a, b string) int {
	return int(parseDate(b).Sub(parseDate(a)).Hours() / 24)
}

// CohortLTV is one cohort's cumulative-revenue-per-customer curve.
type CohortLTV struct {
	CohortMonth string    `json:"cohortMonth"`
	CohortSize  int64     `json:"cohortSize"`
	CumulativeLTV []float64 `json:"cumulativeLtv"` // months 0..12
}

// GetCohortLTV implements get_cohort_ltv.
func (l *Layer) GetCohortLTV(ctx context.Context, f Filter) ([]CohortLTV, error) {
	stClause, stArgs := f.salesTypeClause("so")
	args := append([]interface{}{f.StartDate, f.EndDate}, stArgs...)

	rows, err := l.store.DB().QueryContext(ctx, fmt.Sprintf(`
		SELECT so.buyer_id, so.order_date, so.grand_total FROM silver_orders so
		WHERE NOT so.is_return AND so.buyer_id IS NOT NULL
			AND so.order_date >= ? AND so.order_date <= ? %s
		ORDER BY so.buyer_id, so.order_date
	`, stClause), args...)
	if err != nil {
		return nil, fmt.Errorf("cohort ltv query: %w", err)
	}
	defer rows.Close()

	firstMonth := map[int64]string{}
	revenueByBuyerMonth := map[int64]map[string]float64{}
	for rows.Next() {
		var buyerID int64
		var orderDate string
		var grandTotal float64
		if err := rows.Scan(&buyerID, &orderDate, &grandTotal); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		month := orderDate[:7]
		if _, ok := firstMonth[buyerID]; !ok {
			firstMonth[buyerID] = month
			revenueByBuyerMonth[buyerID] = map[string]float64{}
		}
		revenueByBuyerMonth[buyerID][month] += grandTotal
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cohortBuyers := map[string][]int64{}
	for buyerID, m := range firstMonth {
		cohortBuyers[m] = append(cohortBuyers[m], buyerID)
	}

	var out []CohortLTV
	for cohortMonth, buyers := range cohortBuyers {
		clv := CohortLTV{CohortMonth: cohortMonth, CohortSize: int64(len(buyers))}
		cumulative := 0.0
		for m := 0; m <= 12; m++ {
			monthRevenue := 0.0
			for _, b := range buyers {
				for month, rev := range revenueByBuyerMonth[b] {
					if monthsBetween(cohortMonth, month) == m {
						monthRevenue += rev
					}
				}
			}
			cumulative += monthRevenue
			perCustomer := 0.0
			if clv.CohortSize > 0 {
				perCustomer = round2(cumulative / float64(clv.CohortSize))
			}
			clv.CumulativeLTV = append(clv.CumulativeLTV, perCustomer)
		}
		out = append(out, clv)
	}
	return out, nil
}

// AtRiskCustomer is one row of get_at_risk_customers.
type AtRiskCustomer struct {
	BuyerID       int64   `json:"buyerId"`
	Name          string  `json:"name"`
	LastOrderDate string  `json:"lastOrderDate"`
	DaysSince     int     `json:"daysSince"`
	LifetimeValue float64 `json:"lifetimeValue"`
	OrderCount    int64   `json:"orderCount"`
}

// GetAtRiskCustomers implements get_at_risk_customers(days_threshold):
// customers whose most recent non-return order is older than the
// threshold, ranked by lifetime value descending.
func (l *Layer) GetAtRiskCustomers(ctx context.Context, f Filter, daysThreshold int) ([]AtRiskCustomer, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT so.buyer_id, COALESCE(b.name, 'Unknown'),
			MAX(so.order_date) AS last_order, SUM(so.grand_total), COUNT(*)
		FROM silver_orders so
		LEFT JOIN buyers b ON b.id = so.buyer_id
		WHERE NOT so.is_return AND so.buyer_id IS NOT NULL
		GROUP BY so.buyer_id, b.name
		HAVING date_diff('day', MAX(so.order_date), CURRENT_DATE) >= ?
		ORDER BY SUM(so.grand_total) DESC
	`, daysThreshold)
	if err != nil {
		return nil, fmt.Errorf("at-risk customers: %w", err)
	}
	defer rows.Close()

	var out []AtRiskCustomer
	for rows.Next() {
		var c AtRiskCustomer
		var lastOrder string
		if err := rows.Scan(&c.BuyerID, &c.Name, &lastOrder, &c.LifetimeValue, &c.OrderCount); err != nil {
			return nil, fmt.Errorf("scan at-risk customer: %w", err)
		}
		c.LastOrderDate = lastOrder
		c.DaysSince = int(time.Since(parseDate(lastOrder)).Hours() / 24)
		c.LifetimeValue = round2(c.LifetimeValue)
		out = append(out, c)
	}
	return out, rows.Err()
}
