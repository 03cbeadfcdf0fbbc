package store

import "time"

// Order is the Bronze-layer upstream order record accepted by UpsertOrders.
type Order struct {
	ID             int64
	SourceID       int64
	StatusID       int64
	GrandTotal     float64
	OrderedAt      time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	BuyerID        *int64
	ManagerID      *int64
	ManagerComment string
	Products       []OrderProductInput
}

// OrderProductInput is a line item on an incoming order.
type OrderProductInput struct {
	ID        int64
	ProductID *int64
	Name      string
	Quantity  int64
	PriceSold float64
}

// CustomField is an upstream product custom-field entry, used to extract brand.
type CustomField struct {
	UUID  string
	Name  string
	Value string
}

// Product is the Bronze-layer upstream product record.
type Product struct {
	ID           int64
	Name         string
	CategoryID   *int64
	SKU          *string
	Price        float64
	CustomFields []CustomField
}

// Category is a node in the (self-referential, assumed acyclic) category tree.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Manager is a CRM staff account, used to derive sales_type.
type Manager struct {
	ID   int64
	Name string
}

// Buyer is a CRM customer account.
type Buyer struct {
	ID   int64
	Name *string
}

// Offer is a product variation (SKU-bearing).
type Offer struct {
	ID        int64
	ProductID int64
	SKU       *string
}

// OfferStockInput is an incoming stock level reading for one offer.
type OfferStockInput struct {
	OfferID        int64
	SKU            *string
	Price          float64
	PurchasedPrice *float64
	Quantity       int64
	Reserve        int64
}

// ExpenseType names a category of operating expense.
type ExpenseType struct {
	ID   int64
	Name string
}

// ExpenseInput is an incoming expense record, optionally tied to an order.
type ExpenseInput struct {
	ID            int64
	OrderID       *int64
	ExpenseTypeID *int64
	Amount        float64
	ExpensedAt    time.Time
}

// MovementType classifies a detected stock change.
type MovementType string

const (
	MovementInitial       MovementType = "initial"
	MovementStockIn       MovementType = "stock_in"
	MovementStockOut      MovementType = "stock_out"
	MovementReserveChange MovementType = "reserve_change"
)

// StockMovement is an audit-trail row emitted by UpsertStocks when it
// detects a quantity or reserve delta.
type StockMovement struct {
	OfferID        int64
	ProductID      *int64
	MovementType   MovementType
	QuantityBefore int64
	QuantityAfter  int64
	Delta          int64
	ReserveBefore  int64
	ReserveAfter   int64
	RecordedAt     time.Time
}
