package store

// schemaStatements is the DDL for every table the store owns, applied in
// order at startup. DuckDB's CREATE TABLE IF NOT EXISTS makes this
// idempotent across restarts; there is no separate migration-version
// table because the schema has had no incompatible revisions yet — if one
// is ever needed, follow the teacher's internal/db versioned-migration
// shape (a schema_version table gating additive ALTER statements).
var schemaStatements = []string{
	// ─── Bronze ────────────────────────────────────────────────
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY,
		source_id BIGINT NOT NULL,
		status_id BIGINT NOT NULL,
		grand_total DOUBLE NOT NULL,
		ordered_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP,
		buyer_id BIGINT,
		manager_id BIGINT,
		manager_comment VARCHAR,
		synced_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_products (
		id BIGINT,
		order_id BIGINT NOT NULL,
		product_id BIGINT,
		name VARCHAR NOT NULL,
		quantity BIGINT NOT NULL,
		price_sold DOUBLE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		category_id BIGINT,
		brand VARCHAR,
		sku VARCHAR,
		price DOUBLE NOT NULL,
		synced_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL,
		parent_id BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS offers (
		id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		sku VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS offer_stocks (
		id BIGINT PRIMARY KEY,
		sku VARCHAR,
		price DOUBLE NOT NULL,
		purchased_price DOUBLE,
		quantity BIGINT NOT NULL,
		reserve BIGINT NOT NULL,
		synced_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expense_types (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id BIGINT PRIMARY KEY,
		order_id BIGINT,
		expense_type_id BIGINT,
		amount DOUBLE NOT NULL,
		expensed_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS managers (
		id BIGINT PRIMARY KEY,
		name VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS buyers (
		id BIGINT PRIMARY KEY,
		name VARCHAR
	)`,

	// ─── Silver ────────────────────────────────────────────────
	`CREATE TABLE IF NOT EXISTS silver_orders (
		id BIGINT PRIMARY KEY,
		order_date DATE NOT NULL,
		source_id BIGINT NOT NULL,
		source_name VARCHAR,
		status_id BIGINT NOT NULL,
		grand_total DOUBLE NOT NULL,
		buyer_id BIGINT,
		manager_id BIGINT,
		is_return BOOLEAN NOT NULL,
		is_active_source BOOLEAN NOT NULL,
		sales_type VARCHAR NOT NULL,
		is_new_customer BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS silver_order_utm (
		order_id BIGINT PRIMARY KEY,
		utm_source VARCHAR,
		utm_medium VARCHAR,
		utm_campaign VARCHAR,
		utm_content VARCHAR,
		utm_term VARCHAR,
		utm_lang VARCHAR,
		fbp VARCHAR,
		fbc VARCHAR,
		ttp VARCHAR,
		fbclid VARCHAR,
		traffic_type VARCHAR NOT NULL,
		platform VARCHAR NOT NULL,
		parsed_at TIMESTAMP NOT NULL
	)`,

	// ─── Gold ──────────────────────────────────────────────────
	`CREATE TABLE IF NOT EXISTS gold_daily_revenue (
		date DATE NOT NULL,
		sales_type VARCHAR NOT NULL,
		revenue DOUBLE NOT NULL,
		orders_count BIGINT NOT NULL,
		avg_order_value DOUBLE NOT NULL,
		returns_count BIGINT NOT NULL,
		returns_revenue DOUBLE NOT NULL,
		unique_customers BIGINT NOT NULL,
		new_customers BIGINT NOT NULL,
		returning_customers BIGINT NOT NULL,
		instagram_orders BIGINT NOT NULL,
		instagram_revenue DOUBLE NOT NULL,
		telegram_orders BIGINT NOT NULL,
		telegram_revenue DOUBLE NOT NULL,
		shopify_orders BIGINT NOT NULL,
		shopify_revenue DOUBLE NOT NULL,
		PRIMARY KEY (date, sales_type)
	)`,
	`CREATE TABLE IF NOT EXISTS gold_daily_products (
		date DATE NOT NULL,
		sales_type VARCHAR NOT NULL,
		source_id BIGINT NOT NULL,
		product_id BIGINT NOT NULL,
		product_name VARCHAR NOT NULL,
		category_id BIGINT,
		parent_category_name VARCHAR,
		brand VARCHAR,
		quantity_sold BIGINT NOT NULL,
		product_revenue DOUBLE NOT NULL,
		order_count BIGINT NOT NULL,
		PRIMARY KEY (date, sales_type, source_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS gold_daily_traffic (
		date DATE NOT NULL,
		source_id BIGINT NOT NULL,
		sales_type VARCHAR NOT NULL,
		platform VARCHAR NOT NULL,
		traffic_type VARCHAR NOT NULL,
		orders_count BIGINT NOT NULL,
		revenue DOUBLE NOT NULL,
		PRIMARY KEY (date, source_id, sales_type, platform, traffic_type)
	)`,

	// ─── Operational ───────────────────────────────────────────
	`CREATE TABLE IF NOT EXISTS sku_inventory_status (
		offer_id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		sku VARCHAR,
		name VARCHAR NOT NULL,
		brand VARCHAR,
		category_id BIGINT,
		quantity BIGINT NOT NULL,
		reserve BIGINT NOT NULL,
		price DOUBLE NOT NULL,
		purchased_price DOUBLE,
		last_sale_date DATE,
		first_seen_at TIMESTAMP NOT NULL,
		last_stock_out_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_sku_history (
		date DATE NOT NULL,
		offer_id BIGINT NOT NULL,
		quantity BIGINT NOT NULL,
		reserve BIGINT NOT NULL,
		price DOUBLE NOT NULL,
		PRIMARY KEY (date, offer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		offer_id BIGINT NOT NULL,
		product_id BIGINT,
		movement_type VARCHAR NOT NULL,
		quantity_before BIGINT NOT NULL,
		quantity_after BIGINT NOT NULL,
		delta BIGINT NOT NULL,
		reserve_before BIGINT NOT NULL,
		reserve_after BIGINT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS revenue_predictions (
		prediction_date DATE NOT NULL,
		sales_type VARCHAR NOT NULL,
		predicted_revenue DOUBLE NOT NULL,
		model_mae DOUBLE,
		model_mape DOUBLE,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (prediction_date, sales_type)
	)`,
	`CREATE TABLE IF NOT EXISTS revenue_goals (
		id BIGINT PRIMARY KEY,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		sales_type VARCHAR NOT NULL,
		target_revenue DOUBLE NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS seasonal_indices (
		month INTEGER NOT NULL,
		sales_type VARCHAR NOT NULL,
		index_value DOUBLE NOT NULL,
		PRIMARY KEY (month, sales_type)
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_patterns (
		month INTEGER NOT NULL,
		week_of_month INTEGER NOT NULL,
		sales_type VARCHAR NOT NULL,
		weight DOUBLE NOT NULL,
		PRIMARY KEY (month, week_of_month, sales_type)
	)`,
	`CREATE TABLE IF NOT EXISTS growth_metrics (
		metric_type VARCHAR NOT NULL,
		sales_type VARCHAR NOT NULL,
		value DOUBLE NOT NULL,
		computed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (metric_type, sales_type)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_metadata (
		key VARCHAR PRIMARY KEY,
		value VARCHAR NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	// dashboard_sessions tracks WebSocket/dashboard client activity for the
	// Scheduler's session-cleanup and inactive-client-revocation jobs. It
	// carries no credentials — Telegram Login verification and session
	// signing are the HTTP boundary's concern, out of scope here (spec §1)
	// — this table exists purely so those jobs have something concrete to
	// expire.
	`CREATE TABLE IF NOT EXISTS dashboard_sessions (
		token VARCHAR PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE SEQUENCE IF NOT EXISTS order_products_seq`,
	`CREATE SEQUENCE IF NOT EXISTS expenses_seq`,
	`CREATE SEQUENCE IF NOT EXISTS revenue_goals_seq`,
}
