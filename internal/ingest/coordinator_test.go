package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sacksapp/sacks/internal/normalize"
	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/storage/memory"
	"github.com/sacksapp/sacks/internal/types"
)

func normRow(index int, ean, name string, props ...string) *normalize.Row {
	p := &types.Product{EAN: ean, Name: name}
	if len(props) > 0 {
		p.DynamicProperties = types.NewPropertyMap()
		for i := 0; i+1 < len(props); i += 2 {
			p.DynamicProperties.Set(props[i], props[i+1])
		}
	}
	return &normalize.Row{
		Index:   index,
		Product: p,
		Line:    &types.ProductOffer{Currency: "EUR", Reference: fmt.Sprintf("REF-%03d", index)},
	}
}

func TestUpsertOfferCreatesEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sup := supplierWithPatterns("Acme Fragrances", "*")

	rows := []*normalize.Row{
		normRow(2, "4006381333931", "Devotion Intense", "Brand", "Dolce & Gabbana", "Size", "100"),
		normRow(3, "", "No 5 EDP 50ml"),
	}
	rows[0].Line.Price = decimal.RequireFromString("12.50")
	rows[1].Line.Price = decimal.RequireFromString("8.99")

	res, err := UpsertOffer(ctx, store, sup, "acme_2025-01.csv", rows)
	if err != nil {
		t.Fatalf("UpsertOffer: %v", err)
	}
	if res.Offer.OfferName != "Acme Fragrances - acme_2025-01.csv" {
		t.Errorf("offer name = %q", res.Offer.OfferName)
	}
	if res.Offer.Currency != "EUR" {
		t.Errorf("offer currency = %q", res.Offer.Currency)
	}
	if res.ProductsCreated != 2 || res.ProductsUpdated != 0 || res.OfferLines != 2 {
		t.Errorf("counters = created %d, updated %d, lines %d",
			res.ProductsCreated, res.ProductsUpdated, res.OfferLines)
	}

	if n := len(store.Suppliers()); n != 1 {
		t.Fatalf("suppliers = %d, want 1", n)
	}
	if n := len(store.Products()); n != 2 {
		t.Fatalf("products = %d, want 2", n)
	}
	lines := store.ProductOffers()
	if len(lines) != 2 {
		t.Fatalf("offer lines = %d, want 2", len(lines))
	}
	for i, line := range lines {
		if line.OfferID != res.Offer.ID {
			t.Errorf("line %d points at offer %q, want %q", i, line.OfferID, res.Offer.ID)
		}
		if line.ProductID == "" {
			t.Errorf("line %d has no product id", i)
		}
	}
	if lines[0].Reference != "REF-002" || lines[1].Reference != "REF-003" {
		t.Errorf("line order = %q, %q", lines[0].Reference, lines[1].Reference)
	}
	if !lines[0].Price.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("line price = %s", lines[0].Price)
	}
}

func TestUpsertOfferDuplicateWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sup := supplierWithPatterns("Acme Fragrances", "*")

	if _, err := UpsertOffer(ctx, store, sup, "acme_2025-01.csv", []*normalize.Row{
		normRow(2, "4006381333931", "Devotion Intense"),
	}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	_, err = UpsertOffer(ctx, store, sup, "acme_2025-01.csv", []*normalize.Row{
		normRow(2, "4006381333931", "Devotion Intense"),
	})
	var dup *types.DuplicateOfferError
	if !errors.As(err, &dup) {
		t.Fatalf("second run error = %T (%v), want DuplicateOfferError", err, err)
	}
	if dup.Supplier != "Acme Fragrances" || dup.OfferName != "Acme Fragrances - acme_2025-01.csv" {
		t.Errorf("duplicate error fields = %q / %q", dup.Supplier, dup.OfferName)
	}

	after, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if *after != *before {
		t.Errorf("state changed on a duplicate: before %+v, after %+v", before, after)
	}
}

func TestUpsertOfferMergesByEAN(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sup := supplierWithPatterns("Acme Fragrances", "*")

	// seed the catalog: Gender is set, Size is present but blank
	seeded := &types.Product{EAN: "4006381333931", Name: "Old Name"}
	seeded.DynamicProperties = types.NewPropertyMap()
	seeded.DynamicProperties.Set("Gender", "Women")
	seeded.DynamicProperties.Set("Size", "")
	if err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.InsertProducts(ctx, []*types.Product{seeded})
	}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	rows := []*normalize.Row{normRow(2, "4006381333931", "New Name",
		"Size", "100", "Gender", "Men", "Brand", "Chanel")}
	res, err := UpsertOffer(ctx, store, sup, "acme_merge.csv", rows)
	if err != nil {
		t.Fatalf("UpsertOffer: %v", err)
	}
	if res.ProductsCreated != 0 || res.ProductsUpdated != 1 {
		t.Errorf("counters = created %d, updated %d, want 0/1", res.ProductsCreated, res.ProductsUpdated)
	}

	products := store.Products()
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	p := products[0]
	if p.Name != "New Name" {
		t.Errorf("name = %q, want the incoming one", p.Name)
	}
	checks := map[string]string{
		"Gender": "Women",  // already set, incoming "Men" must not win
		"Size":   "100",    // blank value filled in
		"Brand":  "Chanel", // new key added
	}
	for key, want := range checks {
		if got, _ := p.DynamicProperties.Get(key); got != want {
			t.Errorf("property %s = %q, want %q", key, got, want)
		}
	}
	wantOrder := []string{"Gender", "Size", "Brand"}
	for i, key := range p.DynamicProperties.Keys() {
		if key != wantOrder[i] {
			t.Errorf("property order = %v, want %v", p.DynamicProperties.Keys(), wantOrder)
			break
		}
	}

	line := store.ProductOffers()[0]
	if line.ProductID != p.ID {
		t.Errorf("line product = %q, want the merged product %q", line.ProductID, p.ID)
	}
}

func TestUpsertOfferUnchangedProductSkipsUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sup := supplierWithPatterns("Acme Fragrances", "*")

	if _, err := UpsertOffer(ctx, store, sup, "first.csv", []*normalize.Row{
		normRow(2, "4006381333931", "Devotion Intense", "Brand", "Dolce & Gabbana"),
	}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	res, err := UpsertOffer(ctx, store, sup, "second.csv", []*normalize.Row{
		normRow(2, "4006381333931", "Devotion Intense", "Brand", "Dolce & Gabbana"),
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.ProductsCreated != 0 || res.ProductsUpdated != 0 {
		t.Errorf("counters = created %d, updated %d, want 0/0 for identical data",
			res.ProductsCreated, res.ProductsUpdated)
	}
	if res.OfferLines != 1 {
		t.Errorf("lines = %d, want 1", res.OfferLines)
	}
	if n := len(store.Offers()); n != 2 {
		t.Errorf("offers = %d, want one per file", n)
	}
}

func TestUpsertOfferRepeatedEANSharesProduct(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sup := supplierWithPatterns("Acme Fragrances", "*")

	rows := []*normalize.Row{
		normRow(2, "4006381333931", "Devotion Intense", "Size", "100"),
		normRow(3, "4006381333931", "Devotion Intense", "Concentration", "EDP"),
	}
	res, err := UpsertOffer(ctx, store, sup, "repeat.csv", rows)
	if err != nil {
		t.Fatalf("UpsertOffer: %v", err)
	}
	if res.ProductsCreated != 1 {
		t.Errorf("products created = %d, want the rows folded into one", res.ProductsCreated)
	}
	if res.OfferLines != 2 {
		t.Errorf("lines = %d, want 2", res.OfferLines)
	}

	products := store.Products()
	if len(products) != 1 {
		t.Fatalf("products = %d, want 1", len(products))
	}
	for _, key := range []string{"Size", "Concentration"} {
		if _, ok := products[0].DynamicProperties.Get(key); !ok {
			t.Errorf("merged product is missing %s", key)
		}
	}
	lines := store.ProductOffers()
	if lines[0].ProductID != lines[1].ProductID {
		t.Errorf("lines point at different products: %q vs %q", lines[0].ProductID, lines[1].ProductID)
	}
}

// failingReadStore makes the EAN lookup inside the transaction fail.
type failingReadStore struct {
	storage.Store
}

type failingReadTx struct {
	storage.Tx
}

func (s *failingReadStore) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return fn(&failingReadTx{Tx: tx})
	})
}

func (t *failingReadTx) GetProductsByEANs(ctx context.Context, eans []string) (map[string]*types.Product, error) {
	return nil, fmt.Errorf("ean lookup exploded")
}

// commitFailStore reports a failure after the transaction callback ran.
type commitFailStore struct {
	storage.Store
}

func (s *commitFailStore) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return fmt.Errorf("failed to commit transaction: connection lost")
}

func TestUpsertOfferTagsFailedPhase(t *testing.T) {
	ctx := context.Background()
	sup := supplierWithPatterns("Acme Fragrances", "*")
	rows := []*normalize.Row{normRow(2, "4006381333931", "Devotion Intense")}

	mem := memory.New()
	_, err := UpsertOffer(ctx, &failingReadStore{Store: mem}, sup, "a.csv", rows)
	var failed *types.ProcessingFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("error = %T (%v), want ProcessingFailedError", err, err)
	}
	if failed.Phase != "upsert" {
		t.Errorf("phase = %q, want upsert", failed.Phase)
	}
	if failed.RowsSeen != 1 || failed.RowsFailed != 1 {
		t.Errorf("rows = seen %d, failed %d", failed.RowsSeen, failed.RowsFailed)
	}
	if stats, _ := mem.Stats(ctx); stats.Offers != 0 || stats.Products != 0 {
		t.Errorf("rolled-back run left rows behind: %+v", stats)
	}

	_, err = UpsertOffer(ctx, &commitFailStore{Store: memory.New()}, sup, "a.csv", rows)
	if !errors.As(err, &failed) {
		t.Fatalf("error = %T (%v), want ProcessingFailedError", err, err)
	}
	if failed.Phase != "commit" {
		t.Errorf("phase = %q, want commit", failed.Phase)
	}
}

func TestDistinctEANs(t *testing.T) {
	rows := []*normalize.Row{
		normRow(1, "111", "a"),
		normRow(2, "", "b"),
		normRow(3, "222", "c"),
		normRow(4, "111", "d"),
	}
	got := distinctEANs(rows)
	want := []string{"111", "222"}
	if len(got) != len(want) {
		t.Fatalf("distinctEANs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("distinctEANs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergeProduct(t *testing.T) {
	tests := []struct {
		name        string
		target      func() *types.Product
		incoming    func() *types.Product
		wantChanged bool
		wantName    string
		wantProps   map[string]string
	}{
		{
			name: "identical data changes nothing",
			target: func() *types.Product {
				p := &types.Product{Name: "Same"}
				p.DynamicProperties = types.NewPropertyMap()
				p.DynamicProperties.Set("Brand", "Chanel")
				return p
			},
			incoming: func() *types.Product {
				p := &types.Product{Name: "Same"}
				p.DynamicProperties = types.NewPropertyMap()
				p.DynamicProperties.Set("Brand", "Chanel")
				return p
			},
			wantChanged: false,
			wantName:    "Same",
			wantProps:   map[string]string{"Brand": "Chanel"},
		},
		{
			name:   "new key added",
			target: func() *types.Product { return &types.Product{Name: "Same"} },
			incoming: func() *types.Product {
				p := &types.Product{Name: "Same"}
				p.DynamicProperties = types.NewPropertyMap()
				p.DynamicProperties.Set("Size", "100")
				return p
			},
			wantChanged: true,
			wantName:    "Same",
			wantProps:   map[string]string{"Size": "100"},
		},
		{
			name: "existing value is kept",
			target: func() *types.Product {
				p := &types.Product{Name: "Same"}
				p.DynamicProperties = types.NewPropertyMap()
				p.DynamicProperties.Set("Gender", "Women")
				return p
			},
			incoming: func() *types.Product {
				p := &types.Product{Name: "Same"}
				p.DynamicProperties = types.NewPropertyMap()
				p.DynamicProperties.Set("Gender", "Men")
				return p
			},
			wantChanged: false,
			wantName:    "Same",
			wantProps:   map[string]string{"Gender": "Women"},
		},
		{
			name:        "incoming name wins",
			target:      func() *types.Product { return &types.Product{Name: "Old"} },
			incoming:    func() *types.Product { return &types.Product{Name: "New"} },
			wantChanged: true,
			wantName:    "New",
		},
		{
			name:        "empty incoming name is ignored",
			target:      func() *types.Product { return &types.Product{Name: "Old"} },
			incoming:    func() *types.Product { return &types.Product{} },
			wantChanged: false,
			wantName:    "Old",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.target()
			if changed := mergeProduct(target, tt.incoming()); changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if target.Name != tt.wantName {
				t.Errorf("name = %q, want %q", target.Name, tt.wantName)
			}
			for key, want := range tt.wantProps {
				if got, _ := target.DynamicProperties.Get(key); got != want {
					t.Errorf("property %s = %q, want %q", key, got, want)
				}
			}
		})
	}
}
