package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schemaVersion stamps the DDL below. Bump it when the schema changes; every
// statement is idempotent, so re-running the block upgrades in place.
const schemaVersion = 1

// The dynamic_properties and offer_properties columns are TEXT holding a JSON
// object, not the JSON column type: MySQL's JSON type normalizes objects and
// loses key order, and the property maps' insertion order is part of the
// contract.
//
// Secondary indexes are declared inline (KEY ...) rather than with CREATE
// INDEX IF NOT EXISTS, which Dolt accepts but stock MySQL does not.
const schema = `
-- Schema metadata
CREATE TABLE IF NOT EXISTS schema_version (
    version INT PRIMARY KEY,
    applied_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
);

-- Suppliers: one row per vendor, created on the first file processed for it.
-- The name is unique case-insensitively (ai_ci collation).
CREATE TABLE IF NOT EXISTS suppliers (
    id CHAR(36) PRIMARY KEY,
    name VARCHAR(255) COLLATE utf8mb4_0900_ai_ci NOT NULL,
    description TEXT,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_suppliers_name (name)
);

-- Offers: one row per successfully ingested price-list file
CREATE TABLE IF NOT EXISTS offers (
    id CHAR(36) PRIMARY KEY,
    supplier_id CHAR(36) NOT NULL,
    offer_name VARCHAR(255) NOT NULL,
    currency CHAR(3) NOT NULL,
    description TEXT,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_offers_supplier_offer (supplier_id, offer_name),
    FOREIGN KEY (supplier_id) REFERENCES suppliers(id) ON DELETE CASCADE
);

-- Products: catalog items shared across offers, upserted by EAN.
-- An unknown EAN is NULL, so the unique key only binds real codes.
CREATE TABLE IF NOT EXISTS products (
    id CHAR(36) PRIMARY KEY,
    ean VARCHAR(14),
    name VARCHAR(255) NOT NULL,
    dynamic_properties TEXT,
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_products_ean (ean)
);

-- Offer lines: a product at a price inside one offer. position records the
-- source file's row order.
CREATE TABLE IF NOT EXISTS product_offers (
    id CHAR(36) PRIMARY KEY,
    product_id CHAR(36) NOT NULL,
    offer_id CHAR(36) NOT NULL,
    price DECIMAL(18,2) NOT NULL DEFAULT 0,
    quantity INT NOT NULL DEFAULT 0,
    currency CHAR(3) NOT NULL,
    description TEXT,
    reference VARCHAR(255) NOT NULL DEFAULT '',
    offer_properties TEXT,
    position INT NOT NULL DEFAULT 0,
    created_at DATETIME(6) NOT NULL,
    KEY idx_product_offers_offer (offer_id),
    KEY idx_product_offers_product (product_id),
    FOREIGN KEY (offer_id) REFERENCES offers(id) ON DELETE CASCADE,
    FOREIGN KEY (product_id) REFERENCES products(id)
);
`

// initSchema applies the schema, skipping the DDL when the stamped version is
// already current.
func initSchema(ctx context.Context, db *sql.DB) error {
	var current int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current)
	if err == nil && current >= schemaVersion {
		return nil
	}
	// Either the table is missing (fresh database) or the version is stale;
	// both fall through to the idempotent DDL.

	for _, stmt := range splitStatements(schema) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || isOnlyComments(stmt) {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w\nStatement: %s", err, truncateForError(stmt))
		}
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO schema_version (version) VALUES (?) ON DUPLICATE KEY UPDATE version = version",
		schemaVersion)
	if err != nil {
		return fmt.Errorf("failed to stamp schema version: %w", err)
	}
	return nil
}

// splitStatements splits SQL text on semicolons, respecting quoted strings so
// a literal containing ';' survives intact.
func splitStatements(sqlText string) []string {
	var stmts []string
	var cur strings.Builder
	var quote byte // 0 when outside a quoted literal

	for i := 0; i < len(sqlText); i++ {
		ch := sqlText[i]
		switch {
		case quote != 0:
			cur.WriteByte(ch)
			if ch == quote && (i == 0 || sqlText[i-1] != '\\') {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			cur.WriteByte(ch)
		case ch == ';':
			stmts = append(stmts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

// isOnlyComments reports whether the statement contains nothing but blank
// lines and -- comments.
func isOnlyComments(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return false
	}
	return true
}

// truncateForError keeps failed-statement errors readable.
func truncateForError(stmt string) string {
	const max = 100
	stmt = strings.TrimSpace(stmt)
	if len(stmt) <= max {
		return stmt
	}
	return stmt[:max] + "..."
}
