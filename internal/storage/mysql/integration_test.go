//go:build integration

// Run with: go test -tags integration ./internal/storage/mysql
//
// Needs a working Docker daemon; testcontainers starts a disposable MySQL.

package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

func startMySQL(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithUsername("root"),
		tcmysql.WithPassword("sacks-test"),
		tcmysql.WithDatabase("sacks"),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	store, err := Open(ctx, Config{
		Addr:     fmt.Sprintf("%s:%s", host, port.Port()),
		User:     "root",
		Password: "sacks-test",
		Database: "sacks",
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMySQLStore(t *testing.T) {
	store := startMySQL(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var supplierID, offerID string

	t.Run("ingest one offer", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
			supplier, err := tx.GetOrCreateSupplier(ctx, "Acme Fragrances", "perfume wholesaler")
			if err != nil {
				return err
			}
			supplierID = supplier.ID

			offer := &types.Offer{
				SupplierID: supplier.ID,
				OfferName:  "Acme Fragrances - list.xlsx",
				Currency:   "EUR",
			}
			if err := tx.CreateOffer(ctx, offer); err != nil {
				return err
			}
			offerID = offer.ID

			props := types.NewPropertyMap()
			props.Set("Brand", "Dolce & Gabbana")
			props.Set("Size", "100")
			products := []*types.Product{
				{EAN: "4006381333931", Name: "Devotion Intense", DynamicProperties: props},
				{Name: "Unlabeled Tester"},
			}
			if err := tx.InsertProducts(ctx, products); err != nil {
				return err
			}

			lines := []*types.ProductOffer{
				{
					ProductID: products[0].ID,
					OfferID:   offer.ID,
					Price:     decimal.RequireFromString("12.50"),
					Quantity:  3,
					Currency:  "EUR",
					Reference: "REF-001",
				},
				{
					ProductID: products[1].ID,
					OfferID:   offer.ID,
					Price:     decimal.RequireFromString("8.99"),
					Quantity:  1,
					Currency:  "EUR",
					Reference: "REF-002",
				},
			}
			return tx.InsertProductOffers(ctx, lines)
		})
		if err != nil {
			t.Fatalf("ingest transaction failed: %v", err)
		}

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Suppliers != 1 || stats.Offers != 1 || stats.Products != 2 || stats.ProductOffers != 2 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("supplier lookup is case-insensitive", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
			supplier, err := tx.GetOrCreateSupplier(ctx, "ACME FRAGRANCES", "")
			if err != nil {
				return err
			}
			if supplier.ID != supplierID {
				t.Errorf("got supplier %s, want %s", supplier.ID, supplierID)
			}
			if supplier.Name != "Acme Fragrances" {
				t.Errorf("stored casing lost: %q", supplier.Name)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}
	})

	t.Run("duplicate offer is rejected", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
			exists, err := tx.OfferExists(ctx, supplierID, "Acme Fragrances - list.xlsx")
			if err != nil {
				return err
			}
			if !exists {
				t.Error("OfferExists = false for an offer just created")
			}
			return tx.CreateOffer(ctx, &types.Offer{
				SupplierID: supplierID,
				OfferName:  "Acme Fragrances - list.xlsx",
				Currency:   "EUR",
			})
		})
		if !errors.Is(err, storage.ErrDuplicateOffer) {
			t.Fatalf("got %v, want ErrDuplicateOffer", err)
		}
	})

	t.Run("products round-trip with property order", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
			found, err := tx.GetProductsByEANs(ctx, []string{"4006381333931", "0000000000000"})
			if err != nil {
				return err
			}
			if len(found) != 1 {
				t.Fatalf("expected 1 product, got %d", len(found))
			}
			p := found["4006381333931"]
			if p.Name != "Devotion Intense" {
				t.Errorf("name = %q", p.Name)
			}
			keys := p.DynamicProperties.Keys()
			if len(keys) != 2 || keys[0] != "Brand" || keys[1] != "Size" {
				t.Errorf("property order lost: %v", keys)
			}

			p.DynamicProperties.Set("Concentration", "EDP")
			return tx.UpdateProductProperties(ctx, p)
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}

		err = store.RunInTransaction(ctx, func(tx storage.Tx) error {
			found, err := tx.GetProductsByEANs(ctx, []string{"4006381333931"})
			if err != nil {
				return err
			}
			p := found["4006381333931"]
			if v, _ := p.DynamicProperties.Get("Concentration"); v != "EDP" {
				t.Errorf("update did not stick: %v", p.DynamicProperties.Keys())
			}
			return nil
		})
		if err != nil {
			t.Fatalf("transaction failed: %v", err)
		}
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		before, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}

		boom := errors.New("boom")
		err = store.RunInTransaction(ctx, func(tx storage.Tx) error {
			if err := tx.InsertProducts(ctx, []*types.Product{{Name: "Ghost"}}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("got %v, want boom", err)
		}

		after, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if *after != *before {
			t.Errorf("rollback leaked rows: before=%+v after=%+v", before, after)
		}
	})

	t.Run("unknown product update reports not found", func(t *testing.T) {
		err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
			return tx.UpdateProductProperties(ctx, &types.Product{ID: types.NewID(), Name: "Nope"})
		})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("offer lines keep file order", func(t *testing.T) {
		rows, err := store.db.QueryContext(ctx,
			"SELECT reference, price FROM product_offers WHERE offer_id = ? ORDER BY position", offerID)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		defer rows.Close()

		var refs, prices []string
		for rows.Next() {
			var ref, price string
			if err := rows.Scan(&ref, &price); err != nil {
				t.Fatalf("scan failed: %v", err)
			}
			refs = append(refs, ref)
			prices = append(prices, price)
		}
		if err := rows.Err(); err != nil {
			t.Fatalf("rows error: %v", err)
		}
		if len(refs) != 2 || refs[0] != "REF-001" || refs[1] != "REF-002" {
			t.Errorf("row order lost: %v", refs)
		}
		if len(prices) != 2 || prices[0] != "12.50" || prices[1] != "8.99" {
			t.Errorf("prices mangled: %v", prices)
		}
	})

	t.Run("reopen is idempotent", func(t *testing.T) {
		// Schema init must be a no-op on an already-initialized database.
		// The store is still open, so this exercises the version fast path
		// through a second connection.
		if err := store.Ping(ctx); err != nil {
			t.Fatalf("ping failed: %v", err)
		}
		if err := initSchema(ctx, store.db); err != nil {
			t.Fatalf("second initSchema failed: %v", err)
		}
	})
}
