package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

func TestCommitPublishesState(t *testing.T) {
	store := New()
	ctx := context.Background()

	var supplierID string
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		supplier, err := tx.GetOrCreateSupplier(ctx, "Acme", "wholesaler")
		if err != nil {
			return err
		}
		supplierID = supplier.ID
		return tx.CreateOffer(ctx, &types.Offer{
			SupplierID: supplier.ID,
			OfferName:  "Acme - list.csv",
			Currency:   "EUR",
		})
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Suppliers != 1 || stats.Offers != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	offers := store.Offers()
	if len(offers) != 1 || offers[0].SupplierID != supplierID {
		t.Errorf("committed offer not visible: %+v", offers)
	}
	if offers[0].ID == "" || offers[0].CreatedAt.IsZero() {
		t.Error("offer missing generated id or timestamp")
	}
}

func TestErrorRollsBack(t *testing.T) {
	store := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetOrCreateSupplier(ctx, "Acme", ""); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Suppliers != 0 {
		t.Errorf("rollback leaked a supplier: %+v", stats)
	}
}

func TestPanicRollsBack(t *testing.T) {
	store := New()
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		_ = store.RunInTransaction(ctx, func(tx storage.Tx) error {
			if _, err := tx.GetOrCreateSupplier(ctx, "Acme", ""); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	stats, _ := store.Stats(ctx)
	if stats.Suppliers != 0 {
		t.Errorf("panic leaked a supplier: %+v", stats)
	}
}

func TestDuplicateOffer(t *testing.T) {
	store := New()
	ctx := context.Background()

	create := func(wantExists bool) error {
		return store.RunInTransaction(ctx, func(tx storage.Tx) error {
			supplier, err := tx.GetOrCreateSupplier(ctx, "Acme", "")
			if err != nil {
				return err
			}
			exists, err := tx.OfferExists(ctx, supplier.ID, "Acme - list.csv")
			if err != nil {
				return err
			}
			if exists != wantExists {
				t.Errorf("OfferExists = %v, want %v", exists, wantExists)
			}
			return tx.CreateOffer(ctx, &types.Offer{
				SupplierID: supplier.ID,
				OfferName:  "Acme - list.csv",
				Currency:   "EUR",
			})
		})
	}

	if err := create(false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	err := create(true)
	if !errors.Is(err, storage.ErrDuplicateOffer) {
		t.Fatalf("got %v, want ErrDuplicateOffer", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Offers != 1 {
		t.Errorf("duplicate run changed state: %+v", stats)
	}
}

func TestGetOrCreateSupplierCaseInsensitive(t *testing.T) {
	store := New()
	ctx := context.Background()

	var first, second *types.Supplier
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		var err error
		first, err = tx.GetOrCreateSupplier(ctx, "Acme", "desc")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	err = store.RunInTransaction(ctx, func(tx storage.Tx) error {
		var err error
		second, err = tx.GetOrCreateSupplier(ctx, "ACME", "ignored")
		return err
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("case-insensitive match failed: %s vs %s", first.ID, second.ID)
	}
	if second.Name != "Acme" {
		t.Errorf("stored casing lost: %q", second.Name)
	}
	if len(store.Suppliers()) != 1 {
		t.Errorf("expected a single supplier, got %d", len(store.Suppliers()))
	}
}

func TestProductUpsertFlow(t *testing.T) {
	store := New()
	ctx := context.Background()

	props := types.NewPropertyMap()
	props.Set("Brand", "Chanel")
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertProducts(ctx, []*types.Product{
			{EAN: "3145891255454", Name: "No 5", DynamicProperties: props},
		})
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// A fetched product is a copy: dropping the update keeps the store as-is.
	err = store.RunInTransaction(ctx, func(tx storage.Tx) error {
		found, err := tx.GetProductsByEANs(ctx, []string{"3145891255454", "", "0000000000000"})
		if err != nil {
			return err
		}
		if len(found) != 1 {
			t.Fatalf("expected 1 product, got %d", len(found))
		}
		found["3145891255454"].DynamicProperties.Set("Size", "50")
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if _, ok := store.Products()[0].DynamicProperties.Get("Size"); ok {
		t.Error("mutation of a fetched copy leaked into the store")
	}

	// An explicit update sticks.
	err = store.RunInTransaction(ctx, func(tx storage.Tx) error {
		found, err := tx.GetProductsByEANs(ctx, []string{"3145891255454"})
		if err != nil {
			return err
		}
		p := found["3145891255454"]
		p.DynamicProperties.Set("Size", "50")
		return tx.UpdateProductProperties(ctx, p)
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if v, _ := store.Products()[0].DynamicProperties.Get("Size"); v != "50" {
		t.Errorf("update did not stick: %v", store.Products()[0].DynamicProperties.Keys())
	}

	// Unknown ids surface ErrNotFound.
	err = store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.UpdateProductProperties(ctx, &types.Product{ID: types.NewID(), Name: "Nope"})
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDuplicateEANRejected(t *testing.T) {
	store := New()
	ctx := context.Background()

	insert := func() error {
		return store.RunInTransaction(ctx, func(tx storage.Tx) error {
			return tx.InsertProducts(ctx, []*types.Product{{EAN: "4006381333931", Name: "Twin"}})
		})
	}
	if err := insert(); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := insert(); err == nil {
		t.Fatal("expected duplicate ean to be rejected")
	}

	// Products without an EAN never collide.
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertProducts(ctx, []*types.Product{{Name: "A"}, {Name: "B"}})
	})
	if err != nil {
		t.Fatalf("ean-less inserts failed: %v", err)
	}
}

func TestInsertPreservesOrder(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		supplier, err := tx.GetOrCreateSupplier(ctx, "Acme", "")
		if err != nil {
			return err
		}
		offer := &types.Offer{SupplierID: supplier.ID, OfferName: "Acme - a.csv", Currency: "EUR"}
		if err := tx.CreateOffer(ctx, offer); err != nil {
			return err
		}
		products := []*types.Product{{Name: "P1"}, {Name: "P2"}, {Name: "P3"}}
		if err := tx.InsertProducts(ctx, products); err != nil {
			return err
		}
		var lines []*types.ProductOffer
		for i, p := range products {
			lines = append(lines, &types.ProductOffer{
				ProductID: p.ID,
				OfferID:   offer.ID,
				Price:     decimal.New(int64(i+1), 0),
				Currency:  "EUR",
				Reference: p.Name,
			})
		}
		return tx.InsertProductOffers(ctx, lines)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	lines := store.ProductOffers()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, want := range []string{"P1", "P2", "P3"} {
		if lines[i].Reference != want {
			t.Errorf("line %d = %q, want %q", i, lines[i].Reference, want)
		}
	}
}

func TestClosedStore(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping on fresh store failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if err := store.Ping(ctx); err == nil {
		t.Error("ping after close should fail")
	}
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error { return nil })
	if err == nil {
		t.Error("transaction after close should fail")
	}
	if _, err := store.Stats(ctx); err == nil {
		t.Error("stats after close should fail")
	}
}

func TestCanceledContext(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		t.Fatal("callback should not run with a canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
