package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/normalize"
	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

// UpsertResult counts what one offer ingest wrote.
type UpsertResult struct {
	Supplier        *types.Supplier
	Offer           *types.Offer
	ProductsCreated int
	ProductsUpdated int
	OfferLines      int
}

// OfferName returns the canonical name for an offer ingested from fileName.
// The pair (supplier, offer name) is the idempotency key: a file processed
// once is rejected on every later attempt, before anything is written.
func OfferName(supplierName, fileName string) string {
	return supplierName + " - " + fileName
}

// UpsertOffer lands one file's normalized rows in the catalog inside a
// single transaction: resolve the supplier, create the offer, match rows
// against existing products by EAN, insert the rest, and link every row as
// an offer line in file order. Any failure rolls the whole file back.
//
// A duplicate offer surfaces as *types.DuplicateOfferError; every other
// failure is wrapped in a *types.ProcessingFailedError tagged with the phase
// that died ("upsert" while rows were being staged, "commit" after).
func UpsertOffer(ctx context.Context, store storage.Store, sup *config.SupplierConfig, fileName string, rows []*normalize.Row) (*UpsertResult, error) {
	res := &UpsertResult{}

	phase := "upsert"
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		supplier, err := tx.GetOrCreateSupplier(ctx, sup.Name, sup.Description)
		if err != nil {
			return fmt.Errorf("resolving supplier %q: %w", sup.Name, err)
		}
		res.Supplier = supplier

		// The stored casing names the offer, not the config casing, so a
		// reworded config keeps pointing at the same offers.
		offerName := OfferName(supplier.Name, fileName)
		exists, err := tx.OfferExists(ctx, supplier.ID, offerName)
		if err != nil {
			return fmt.Errorf("checking offer %q: %w", offerName, err)
		}
		if exists {
			return &types.DuplicateOfferError{Supplier: supplier.Name, OfferName: offerName}
		}

		offer := &types.Offer{
			SupplierID: supplier.ID,
			OfferName:  offerName,
			Currency:   strings.ToUpper(strings.TrimSpace(sup.Currency)),
		}
		if err := tx.CreateOffer(ctx, offer); err != nil {
			if errors.Is(err, storage.ErrDuplicateOffer) {
				return &types.DuplicateOfferError{Supplier: supplier.Name, OfferName: offerName}
			}
			return fmt.Errorf("creating offer %q: %w", offerName, err)
		}
		res.Offer = offer

		existing, err := tx.GetProductsByEANs(ctx, distinctEANs(rows))
		if err != nil {
			return fmt.Errorf("loading products by ean: %w", err)
		}

		plan := planRows(rows, existing, offer.ID)
		if err := tx.InsertProducts(ctx, plan.inserts); err != nil {
			return fmt.Errorf("inserting %d products: %w", len(plan.inserts), err)
		}
		for _, p := range plan.updates {
			if err := tx.UpdateProductProperties(ctx, p); err != nil {
				return fmt.Errorf("updating product %s: %w", p.ID, err)
			}
		}
		if err := tx.InsertProductOffers(ctx, plan.lines); err != nil {
			return fmt.Errorf("inserting %d offer lines: %w", len(plan.lines), err)
		}

		res.ProductsCreated = len(plan.inserts)
		res.ProductsUpdated = len(plan.updates)
		res.OfferLines = len(plan.lines)
		phase = "commit"
		return nil
	})
	if err != nil {
		if types.IsDuplicateOffer(err) {
			return res, err
		}
		// the rollback voided every row, so seen and failed coincide
		return res, &types.ProcessingFailedError{Phase: phase, RowsSeen: len(rows), RowsFailed: len(rows), Err: err}
	}
	return res, nil
}

// distinctEANs collects the unique non-empty EANs across the rows, in
// first-seen order.
func distinctEANs(rows []*normalize.Row) []string {
	seen := make(map[string]bool, len(rows))
	var eans []string
	for _, row := range rows {
		if ean := row.Product.EAN; ean != "" && !seen[ean] {
			seen[ean] = true
			eans = append(eans, ean)
		}
	}
	return eans
}

// upsertPlan is the staged write set for one offer.
type upsertPlan struct {
	inserts []*types.Product
	updates []*types.Product
	lines   []*types.ProductOffer
}

// planRows resolves every row against the catalog. Rows whose EAN matched an
// existing product merge into it, rows repeating an EAN within the file fold
// into the first row's product, and everything else becomes a new product.
// Offer lines come out in row order.
func planRows(rows []*normalize.Row, existing map[string]*types.Product, offerID string) *upsertPlan {
	plan := &upsertPlan{lines: make([]*types.ProductOffer, 0, len(rows))}
	updated := make(map[string]bool)
	queued := make(map[string]*types.Product)

	for _, row := range rows {
		product := row.Product
		switch {
		case product.EAN == "":
			// without an EAN there is nothing to match on
			product.ID = types.NewID()
			plan.inserts = append(plan.inserts, product)
		case existing[product.EAN] != nil:
			target := existing[product.EAN]
			if mergeProduct(target, product) && !updated[target.ID] {
				updated[target.ID] = true
				plan.updates = append(plan.updates, target)
			}
			product = target
		case queued[product.EAN] != nil:
			target := queued[product.EAN]
			mergeProduct(target, product)
			product = target
		default:
			product.ID = types.NewID()
			queued[product.EAN] = product
			plan.inserts = append(plan.inserts, product)
		}

		line := row.Line
		line.ProductID = product.ID
		line.OfferID = offerID
		plan.lines = append(plan.lines, line)
	}
	return plan
}

// mergeProduct folds an incoming row's extraction into a product already in
// the catalog. New property keys are added; keys the product already carries
// are replaced only when the stored value is blank. The name follows the
// incoming extraction when it is non-empty. Reports whether anything changed.
func mergeProduct(target, incoming *types.Product) bool {
	changed := false
	if incoming.Name != "" && incoming.Name != target.Name {
		target.Name = incoming.Name
		changed = true
	}
	if incoming.DynamicProperties.Len() == 0 {
		return changed
	}
	if target.DynamicProperties == nil {
		target.DynamicProperties = types.NewPropertyMap()
	}
	for _, key := range incoming.DynamicProperties.Keys() {
		val, _ := incoming.DynamicProperties.Get(key)
		if val == "" {
			continue
		}
		if cur, ok := target.DynamicProperties.Get(key); ok && cur != "" {
			continue
		}
		target.DynamicProperties.Set(key, val)
		changed = true
	}
	return changed
}
