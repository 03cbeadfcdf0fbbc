package query

import (
	"context"
	"fmt"
	"time"
)

// SKUStatus classifies a SKU's sales recency.
type SKUStatus string

const (
	SKUActive   SKUStatus = "active"
	SKUModerate SKUStatus = "moderate"
	SKUSlow     SKUStatus = "slow"
	SKUDead     SKUStatus = "dead"
)

// statusOrdinal gives SKUStatus a priority order for sorting (dead first).
func statusOrdinal(s SKUStatus) int {
	switch s {
	case SKUDead:
		return 0
	case SKUSlow:
		return 1
	case SKUModerate:
		return 2
	default:
		return 3
	}
}

func classifySKUStatus(daysSinceSale *int) SKUStatus {
	if daysSinceSale == nil {
		return SKUDead
	}
	switch {
	case *daysSinceSale <= 30:
		return SKUActive
	case *daysSinceSale <= 90:
		return SKUModerate
	case *daysSinceSale <= 180:
		return SKUSlow
	default:
		return SKUDead
	}
}

// InventoryItem is one row of the SKU inventory analytics view, including
// the recommended-action fields.
type InventoryItem struct {
	OfferID         int64     `json:"offerId"`
	ProductID       int64     `json:"productId"`
	Name            string    `json:"name"`
	SKU             string    `json:"sku"`
	Brand           string    `json:"brand"`
	Quantity        int64     `json:"quantity"`
	Reserve         int64     `json:"reserve"`
	Available       int64     `json:"available"`
	Price           float64   `json:"price"`
	DaysSinceSale   *int      `json:"daysSinceSale"`
	Status          SKUStatus `json:"status"`
	Priority        int       `json:"priority"`
	RecommendedAction string  `json:"recommendedAction"`
	PotentialLoss   float64   `json:"potentialLoss"`
}

func recommendedAction(status SKUStatus) string {
	switch status {
	case SKUDead:
		return "Liquidate or discontinue: no sale in over 180 days"
	case SKUSlow:
		return "Consider a promotion to clear aging stock"
	case SKUModerate:
		return "Monitor: sales have slowed"
	default:
		return "Healthy turnover, maintain current stock levels"
	}
}

func potentialLoss(stockValue float64, status SKUStatus) float64 {
	switch status {
	case SKUDead:
		return round2(stockValue * 0.3)
	case SKUSlow:
		return round2(stockValue * 0.15)
	default:
		return 0
	}
}

// GetInventoryAnalytics returns every SKU's current status, priority, and
// recommended action, derived from sku_inventory_status.
func (l *Layer) GetInventoryAnalytics(ctx context.Context) ([]InventoryItem, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT offer_id, product_id, name, COALESCE(sku, ''), COALESCE(brand, ''),
			quantity, reserve, price, last_sale_date
		FROM sku_inventory_status
	`)
	if err != nil {
		return nil, fmt.Errorf("inventory analytics: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []InventoryItem
	for rows.Next() {
		var it InventoryItem
		var lastSaleDate *string
		if err := rows.Scan(&it.OfferID, &it.ProductID, &it.Name, &it.SKU, &it.Brand,
			&it.Quantity, &it.Reserve, &it.Price, &lastSaleDate); err != nil {
			return nil, fmt.Errorf("scan inventory item: %w", err)
		}
		it.Available = it.Quantity - it.Reserve

		if lastSaleDate != nil {
			days := int(now.Sub(parseDate(*lastSaleDate)).Hours() / 24)
			it.DaysSinceSale = &days
		}
		it.Status = classifySKUStatus(it.DaysSinceSale)
		it.Priority = statusOrdinal(it.Status)
		it.RecommendedAction = recommendedAction(it.Status)
		it.PotentialLoss = potentialLoss(it.Price*float64(it.Quantity), it.Status)
		out = append(out, it)
	}
	return out, rows.Err()
}

// RestockAlert is one row of the low-stock alert list: active SKUs with
// 5 or fewer units actually available to sell.
type RestockAlert struct {
	OfferID   int64  `json:"offerId"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Available int64  `json:"available"`
}

// GetRestockAlerts implements the restock-alerts view: active-status SKUs
// with available = quantity - reserve <= 5.
func (l *Layer) GetRestockAlerts(ctx context.Context) ([]RestockAlert, error) {
	items, err := l.GetInventoryAnalytics(ctx)
	if err != nil {
		return nil, err
	}
	var out []RestockAlert
	for _, it := range items {
		if it.Status == SKUActive && it.Available <= 5 {
			out = append(out, RestockAlert{OfferID: it.OfferID, Name: it.Name, SKU: it.SKU, Available: it.Available})
		}
	}
	return out, nil
}
