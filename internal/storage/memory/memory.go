// Package memory implements the storage contracts in process memory.
//
// The store keeps the full transactional semantics: a transaction works on a
// deep copy of the state and publishes it only when the callback succeeds,
// so tests and dry runs exercise the same commit/rollback behavior as the
// MySQL store.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

// Store is an in-memory storage.Store for unit tests and --dry-run
// invocations. Slices rather than maps keep entities in creation order,
// which lets tests assert ordering directly.
type Store struct {
	mu     sync.Mutex
	closed bool

	suppliers []*types.Supplier
	offers    []*types.Offer
	products  []*types.Product
	lines     []*types.ProductOffer
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{}
}

var _ storage.Store = (*Store)(nil)

// RunInTransaction runs fn against a snapshot of the store. The snapshot
// replaces the live state only when fn returns nil; an error or panic leaves
// the store untouched. The store lock is held for the whole transaction, so
// fn must not call back into the Store.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	txn := &memTx{
		suppliers: cloneSuppliers(s.suppliers),
		offers:    cloneOffers(s.offers),
		products:  cloneProducts(s.products),
		lines:     cloneLines(s.lines),
	}

	if err := fn(txn); err != nil {
		return err
	}

	s.suppliers = txn.suppliers
	s.offers = txn.offers
	s.products = txn.products
	s.lines = txn.lines
	return nil
}

// Stats counts the committed entities.
func (s *Store) Stats(ctx context.Context) (*types.CatalogStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	return &types.CatalogStats{
		Suppliers:     int64(len(s.suppliers)),
		Offers:        int64(len(s.offers)),
		Products:      int64(len(s.products)),
		ProductOffers: int64(len(s.lines)),
	}, nil
}

// Ping reports whether the store is usable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close marks the store closed. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Suppliers returns the committed suppliers in creation order.
func (s *Store) Suppliers() []*types.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSuppliers(s.suppliers)
}

// Offers returns the committed offers in creation order.
func (s *Store) Offers() []*types.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOffers(s.offers)
}

// Products returns the committed products in creation order.
func (s *Store) Products() []*types.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProducts(s.products)
}

// ProductOffers returns the committed offer lines in insertion order.
func (s *Store) ProductOffers() []*types.ProductOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.lines)
}

// memTx implements storage.Tx on copied state.
type memTx struct {
	suppliers []*types.Supplier
	offers    []*types.Offer
	products  []*types.Product
	lines     []*types.ProductOffer
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) GetOrCreateSupplier(ctx context.Context, name, description string) (*types.Supplier, error) {
	for _, sup := range t.suppliers {
		if strings.EqualFold(sup.Name, name) {
			cp := *sup
			return &cp, nil
		}
	}

	sup := &types.Supplier{
		ID:          types.NewID(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := sup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid supplier: %w", err)
	}
	t.suppliers = append(t.suppliers, sup)

	cp := *sup
	return &cp, nil
}

func (t *memTx) OfferExists(ctx context.Context, supplierID, offerName string) (bool, error) {
	for _, o := range t.offers {
		if o.SupplierID == supplierID && o.OfferName == offerName {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CreateOffer(ctx context.Context, offer *types.Offer) error {
	if offer.ID == "" {
		offer.ID = types.NewID()
	}
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now().UTC()
	}
	if err := offer.Validate(); err != nil {
		return fmt.Errorf("invalid offer: %w", err)
	}
	for _, o := range t.offers {
		if o.SupplierID == offer.SupplierID && o.OfferName == offer.OfferName {
			return fmt.Errorf("offer %q for supplier %s: %w", offer.OfferName, offer.SupplierID, storage.ErrDuplicateOffer)
		}
	}

	cp := *offer
	t.offers = append(t.offers, &cp)
	return nil
}

// GetProductsByEANs returns deep copies, mirroring the SQL store: mutating a
// returned product changes nothing until UpdateProductProperties is called.
func (t *memTx) GetProductsByEANs(ctx context.Context, eans []string) (map[string]*types.Product, error) {
	want := make(map[string]bool, len(eans))
	for _, ean := range eans {
		if ean != "" {
			want[ean] = true
		}
	}

	found := make(map[string]*types.Product, len(want))
	for _, p := range t.products {
		if p.EAN != "" && want[p.EAN] {
			found[p.EAN] = cloneProduct(p)
		}
	}
	return found, nil
}

func (t *memTx) InsertProducts(ctx context.Context, products []*types.Product) error {
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
		if p.EAN != "" {
			for _, existing := range t.products {
				if existing.EAN == p.EAN {
					return fmt.Errorf("product ean %s: duplicate entry", p.EAN)
				}
			}
		}
		t.products = append(t.products, cloneProduct(p))
	}
	return nil
}

func (t *memTx) UpdateProductProperties(ctx context.Context, product *types.Product) error {
	if product.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if err := product.Validate(); err != nil {
		return fmt.Errorf("invalid product %s: %w", product.ID, err)
	}
	for i, existing := range t.products {
		if existing.ID == product.ID {
			cp := cloneProduct(product)
			cp.CreatedAt = existing.CreatedAt
			cp.UpdatedAt = time.Now().UTC()
			t.products[i] = cp
			return nil
		}
	}
	return fmt.Errorf("product %s: %w", product.ID, storage.ErrNotFound)
}

func (t *memTx) InsertProductOffers(ctx context.Context, lines []*types.ProductOffer) error {
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
		t.lines = append(t.lines, cloneLine(line))
	}
	return nil
}

func cloneSuppliers(in []*types.Supplier) []*types.Supplier {
	out := make([]*types.Supplier, len(in))
	for i, s := range in {
		cp := *s
		out[i] = &cp
	}
	return out
}

func cloneOffers(in []*types.Offer) []*types.Offer {
	out := make([]*types.Offer, len(in))
	for i, o := range in {
		cp := *o
		out[i] = &cp
	}
	return out
}

func cloneProduct(p *types.Product) *types.Product {
	cp := *p
	cp.DynamicProperties = p.DynamicProperties.Clone()
	return &cp
}

func cloneProducts(in []*types.Product) []*types.Product {
	out := make([]*types.Product, len(in))
	for i, p := range in {
		out[i] = cloneProduct(p)
	}
	return out
}

func cloneLine(l *types.ProductOffer) *types.ProductOffer {
	cp := *l
	cp.OfferProperties = l.OfferProperties.Clone()
	return &cp
}

func cloneLines(in []*types.ProductOffer) []*types.ProductOffer {
	out := make([]*types.ProductOffer, len(in))
	for i, l := range in {
		out[i] = cloneLine(l)
	}
	return out
}
