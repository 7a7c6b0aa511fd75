package mysql

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

// sqlTx implements storage.Tx on a single *sql.Tx.
type sqlTx struct {
	tx *sql.Tx
}

var _ storage.Tx = (*sqlTx)(nil)

// RunInTransaction executes fn atomically. The transaction runs exactly
// once: when a commit fails with an unknown outcome the error is surfaced,
// because a blind retry could create the same offer twice.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	if s.closed.Load() {
		return fmt.Errorf("store is closed")
	}

	underlying, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = underlying.Rollback()
			panic(r)
		}
	}()

	if err := fn(&sqlTx{tx: underlying}); err != nil {
		_ = underlying.Rollback()
		return err
	}

	if err := underlying.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetOrCreateSupplier resolves a supplier by name, creating it on first use.
// Matching is case-insensitive; the stored casing is whichever spelling
// arrived first.
func (t *sqlTx) GetOrCreateSupplier(ctx context.Context, name, description string) (*types.Supplier, error) {
	supplier := &types.Supplier{}
	var desc sql.NullString
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, name, description, created_at FROM suppliers WHERE LOWER(name) = LOWER(?)",
		name,
	).Scan(&supplier.ID, &supplier.Name, &desc, &supplier.CreatedAt)
	if err == nil {
		supplier.Description = desc.String
		return supplier, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get supplier %q: %w", name, err)
	}

	supplier = &types.Supplier{
		ID:          types.NewID(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := supplier.Validate(); err != nil {
		return nil, fmt.Errorf("invalid supplier: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx,
		"INSERT INTO suppliers (id, name, description, created_at) VALUES (?, ?, ?, ?)",
		supplier.ID, supplier.Name, nullable(supplier.Description), supplier.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create supplier %q: %w", supplier.Name, err)
	}
	return supplier, nil
}

// OfferExists reports whether the supplier already has an offer of this name.
func (t *sqlTx) OfferExists(ctx context.Context, supplierID, offerName string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		"SELECT 1 FROM offers WHERE supplier_id = ? AND offer_name = ? LIMIT 1",
		supplierID, offerName,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check offer %q: %w", offerName, err)
	}
	return true, nil
}

// CreateOffer inserts a new offer. A unique-key violation on
// (supplier_id, offer_name) maps to storage.ErrDuplicateOffer so runs racing
// on the same file fail the same way an up-front OfferExists hit does.
func (t *sqlTx) CreateOffer(ctx context.Context, offer *types.Offer) error {
	if offer.ID == "" {
		offer.ID = types.NewID()
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now().UTC()
	}
	if err := offer.Validate(); err != nil {
		return fmt.Errorf("invalid offer: %w", err)
	}

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO offers (id, supplier_id, offer_name, currency, description, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		offer.ID, offer.SupplierID, offer.OfferName, offer.Currency, nullable(offer.Description), offer.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("offer %q for supplier %s: %w", offer.OfferName, offer.SupplierID, storage.ErrDuplicateOffer)
		}
		return fmt.Errorf("failed to create offer %q: %w", offer.OfferName, err)
	}
	return nil
}

// GetProductsByEANs fetches the products matching the given EANs, in chunks
// of defaultBatchSize. EANs with no product are absent from the result.
func (t *sqlTx) GetProductsByEANs(ctx context.Context, eans []string) (map[string]*types.Product, error) {
	products, err := batchIN(ctx, t.tx, eans, defaultBatchSize,
		"SELECT id, ean, name, dynamic_properties, created_at, updated_at FROM products WHERE ean IN (%s)",
		scanProductRow,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load products by ean: %w", err)
	}
	return products, nil
}

// scanProductRow reads one products row, keyed by EAN.
func scanProductRow(rows *sql.Rows) (string, *types.Product, error) {
	p := &types.Product{}
	var ean, props sql.NullString
	if err := rows.Scan(&p.ID, &ean, &p.Name, &props, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return "", nil, err
	}
	p.EAN = ean.String
	if props.Valid && props.String != "" {
		p.DynamicProperties = types.NewPropertyMap()
		if err := json.Unmarshal([]byte(props.String), p.DynamicProperties); err != nil {
			return "", nil, fmt.Errorf("corrupt dynamic_properties for product %s: %w", p.ID, err)
		}
	}
	return p.EAN, p, nil
}

// InsertProducts writes new products in one multi-row statement per chunk,
// preserving slice order. Empty EANs are stored as NULL so the unique key
// only binds real codes.
func (t *sqlTx) InsertProducts(ctx context.Context, products []*types.Product) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, p := range products {
		if p.ID == "" {
			p.ID = types.NewID()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid product %s: %w", p.ID, err)
		}
	}

	for start := 0; start < len(products); start += defaultBatchSize {
		chunk := products[start:min(start+defaultBatchSize, len(products))]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*6)
		for i, p := range chunk {
			values[i] = "(?, ?, ?, ?, ?, ?)"
			props, err := marshalProperties(p.DynamicProperties)
			if err != nil {
				return fmt.Errorf("failed to encode properties for product %s: %w", p.ID, err)
			}
			args = append(args, p.ID, nullable(p.EAN), p.Name, props, p.CreatedAt, p.UpdatedAt)
		}

		//nolint:gosec // G201: only the placeholder list is interpolated
		query := fmt.Sprintf(
			"INSERT INTO products (id, ean, name, dynamic_properties, created_at, updated_at) VALUES %s",
			strings.Join(values, ", "),
		)
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert products: %w", err)
		}
	}
	return nil
}

// UpdateProductProperties rewrites a product's name and dynamic properties
// after the caller merged new file data into them.
func (t *sqlTx) UpdateProductProperties(ctx context.Context, product *types.Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if err := product.Validate(); err != nil {
		return fmt.Errorf("invalid product %s: %w", product.ID, err)
	}
	props, err := marshalProperties(product.DynamicProperties)
	if err != nil {
		return fmt.Errorf("failed to encode properties for product %s: %w", product.ID, err)
	}

	product.UpdatedAt = time.Now().UTC()
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET name = ?, dynamic_properties = ?, updated_at = ? WHERE id = ?",
		product.Name, props, product.UpdatedAt, product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", product.ID, err)
	}
	// updated_at always moves, so zero affected rows means the id is unknown,
	// not that the update was a no-op.
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("product %s: %w", product.ID, storage.ErrNotFound)
	}
	return nil
}

// InsertProductOffers writes offer lines in one multi-row statement per
// chunk. Slice order is preserved and recorded in the position column so the
// source file's row order survives round-trips.
func (t *sqlTx) InsertProductOffers(ctx context.Context, lines []*types.ProductOffer) error {
	if len(lines) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, line := range lines {
		if line.ID == "" {
			line.ID = types.NewID()
		}
		if line.CreatedAt.IsZero() {
			line.CreatedAt = now
		}
		if err := line.Validate(); err != nil {
			return fmt.Errorf("invalid offer line %s: %w", line.ID, err)
		}
	}

	for start := 0; start < len(lines); start += defaultBatchSize {
		chunk := lines[start:min(start+defaultBatchSize, len(lines))]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*11)
		for i, line := range chunk {
			values[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
			props, err := marshalProperties(line.OfferProperties)
			if err != nil {
				return fmt.Errorf("failed to encode properties for offer line %s: %w", line.ID, err)
			}
			args = append(args,
				line.ID, line.ProductID, line.OfferID,
				line.Price.StringFixed(2), line.Quantity, line.Currency,
				nullable(line.Description), line.Reference, props,
				start+i, line.CreatedAt,
			)
		}

		//nolint:gosec // G201: only the placeholder list is interpolated
		query := fmt.Sprintf(
			"INSERT INTO product_offers (id, product_id, offer_id, price, quantity, currency, description, reference, offer_properties, position, created_at) VALUES %s",
			strings.Join(values, ", "),
		)
		if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert offer lines: %w", err)
		}
	}
	return nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// marshalProperties encodes a property map as ordered JSON, NULL when empty.
// HTML escaping is off so names like "Dolce & Gabbana" stay readable in the
// stored column.
func marshalProperties(m *types.PropertyMap) (sql.NullString, error) {
	if m.Len() == 0 {
		return sql.NullString{}, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: strings.TrimSuffix(buf.String(), "\n"), Valid: true}, nil
}

// isDuplicateEntry detects a unique-key violation without binding to a
// concrete driver error type. MySQL reports error 1062 "Duplicate entry";
// Dolt phrases the same condition as "duplicate unique key given".
func isDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "duplicate unique key")
}
