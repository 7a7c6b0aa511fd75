// Package storage defines the persistence contracts for the sacks catalog.
//
// The concrete implementations live in the mysql and memory sub-packages.
// This package holds the interfaces and sentinel errors referenced by both
// the implementations and their consumers (internal/ingest, cmd/sacks).
package storage

import (
	"context"
	"errors"

	"github.com/sacksapp/sacks/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrDuplicateOffer is returned when an offer with the same (supplier, offer name)
// pair already exists. Re-processing a file is rejected, never merged.
var ErrDuplicateOffer = errors.New("offer already exists")

// Store is the interface satisfied by *mysql.Store and *memory.Store.
// Consumers depend on this interface rather than on a concrete type so the
// pipeline can run against either backend (or a test fake).
type Store interface {
	// RunInTransaction executes fn within a single database transaction.
	// See Tx for the exact semantics.
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error

	// Stats returns entity counts for the whole catalog.
	Stats(ctx context.Context) (*types.CatalogStats, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Tx provides atomic multi-operation support within a single database transaction.
//
// One file-processing run performs all of its writes through a single Tx so
// that a failed run leaves no partial offer behind.
//
// # Transaction Semantics
//
//   - All operations within the transaction share the same database connection
//   - Changes are not visible to other connections until commit
//   - If the callback function returns an error, the transaction is rolled back
//   - If the callback function panics, the transaction is rolled back
//   - On successful return from the callback, the transaction is committed
//   - The transaction runs exactly once; a commit whose outcome is unknown
//     surfaces as an error rather than a second attempt that could create
//     the same offer twice
//
// # Example Usage
//
//	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
//	    supplier, err := tx.GetOrCreateSupplier(ctx, "Acme", "")
//	    if err != nil {
//	        return err // Triggers rollback
//	    }
//	    offer.SupplierID = supplier.ID
//	    if err := tx.CreateOffer(ctx, offer); err != nil {
//	        return err // Triggers rollback
//	    }
//	    return nil // Triggers commit
//	})
type Tx interface {
	// Suppliers
	GetOrCreateSupplier(ctx context.Context, name, description string) (*types.Supplier, error)

	// Offers. CreateOffer reports a (supplier, name) collision as
	// ErrDuplicateOffer so racing runs fail the same way an up-front
	// OfferExists hit does.
	OfferExists(ctx context.Context, supplierID, offerName string) (bool, error)
	CreateOffer(ctx context.Context, offer *types.Offer) error

	// Products. GetProductsByEANs returns a map keyed by EAN; EANs with no
	// product are simply absent. InsertProducts preserves slice order.
	GetProductsByEANs(ctx context.Context, eans []string) (map[string]*types.Product, error)
	InsertProducts(ctx context.Context, products []*types.Product) error
	UpdateProductProperties(ctx context.Context, product *types.Product) error

	// Offer lines. Slice order is preserved, keeping the file's row order.
	InsertProductOffers(ctx context.Context, lines []*types.ProductOffer) error
}
