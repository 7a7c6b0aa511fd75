// Package types defines the core data structures of the sacks catalog.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewID returns a fresh identifier for a catalog entity. IDs are generated
// client-side so batched inserts can link rows before anything is written.
func NewID() string {
	return uuid.NewString()
}

// Supplier is a vendor whose price lists we ingest. Suppliers are created
// lazily on the first file processed for them and are never deleted by the
// ingestion path.
type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the supplier's field values.
func (s *Supplier) Validate() error {
	if len(s.Name) == 0 {
		return fmt.Errorf("supplier name is required")
	}
	if len(s.Name) > 255 {
		return fmt.Errorf("supplier name must be 255 characters or less (got %d)", len(s.Name))
	}
	return nil
}

// Offer represents one ingested price-list file for a supplier. The pair
// (SupplierID, OfferName) is unique; re-processing the same file is rejected
// rather than merged.
type Offer struct {
	ID          string    `json:"id"`
	SupplierID  string    `json:"supplier_id"`
	OfferName   string    `json:"offer_name"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the offer's field values.
func (o *Offer) Validate() error {
	if len(o.OfferName) == 0 {
		return fmt.Errorf("offer name is required")
	}
	if len(o.OfferName) > 255 {
		return fmt.Errorf("offer name must be 255 characters or less (got %d)", len(o.OfferName))
	}
	if !ValidCurrency(o.Currency) {
		return fmt.Errorf("invalid currency %q: want 3 uppercase letters", o.Currency)
	}
	return nil
}

// ValidCurrency reports whether s is a 3-letter uppercase ISO-4217 style code.
func ValidCurrency(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// Product is a catalog item identified by EAN when one is known. Products
// without an EAN are always inserted as new rows; products with one are
// upserted so repeated ingests converge on a single catalog entry.
type Product struct {
	ID                string       `json:"id"`
	EAN               string       `json:"ean,omitempty"` // empty means unknown, stored as NULL
	Name              string       `json:"name"`
	DynamicProperties *PropertyMap `json:"dynamic_properties,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Validate checks the product's field values.
func (p *Product) Validate() error {
	if len(p.Name) == 0 {
		return fmt.Errorf("product name is required")
	}
	if len(p.Name) > 255 {
		return fmt.Errorf("product name must be 255 characters or less (got %d)", len(p.Name))
	}
	if len(p.EAN) > 14 {
		return fmt.Errorf("ean must be 14 characters or less (got %d)", len(p.EAN))
	}
	return nil
}

// ProductOffer is one line of an offer: a product at a price. Lines belong
// to exactly one offer and are removed with it.
type ProductOffer struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id"`
	OfferID         string          `json:"offer_id"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description,omitempty"`
	Reference       string          `json:"reference,omitempty"` // supplier's own article number
	OfferProperties *PropertyMap    `json:"offer_properties,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Validate checks the offer line's field values.
func (po *ProductOffer) Validate() error {
	if po.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}
	if po.OfferID == "" {
		return fmt.Errorf("offer_id is required")
	}
	if po.Currency != "" && !ValidCurrency(po.Currency) {
		return fmt.Errorf("invalid currency %q: want 3 uppercase letters", po.Currency)
	}
	if po.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative (got %d)", po.Quantity)
	}
	return nil
}

// Status is the terminal state of one file-processing run.
type Status string

// Processing status constants
const (
	StatusOk             Status = "ok"
	StatusDuplicateOffer Status = "duplicate_offer"
	StatusCanceled       Status = "canceled"
	StatusFailed         Status = "failed"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusOk, StatusDuplicateOffer, StatusCanceled, StatusFailed:
		return true
	}
	return false
}

// ProcessingResult summarizes a single file-processing run. One result is
// produced per input file whether the run committed or not.
type ProcessingResult struct {
	RunID             string        `json:"run_id"`
	FilePath          string        `json:"file_path"`
	Supplier          string        `json:"supplier,omitempty"`
	OfferName         string        `json:"offer_name,omitempty"`
	Status            Status        `json:"status"`
	RowsRead          int           `json:"rows_read"`
	RowsParsed        int           `json:"rows_parsed"`
	RowsDropped       int           `json:"rows_dropped"`
	ProductsCreated   int           `json:"products_created"`
	ProductsUpdated   int           `json:"products_updated"`
	OfferLinesCreated int           `json:"offer_lines_created"`
	Warnings          []string      `json:"warnings,omitempty"`
	Errors            []string      `json:"errors,omitempty"`
	Duration          time.Duration `json:"duration_ns"`
	StartedAt         time.Time     `json:"started_at"`
}

// AddWarning appends a warning message, keeping the full list; callers that
// render results decide how many to show.
func (r *ProcessingResult) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// CatalogStats holds entity counts for the stats command.
type CatalogStats struct {
	Suppliers     int64 `json:"suppliers"`
	Offers        int64 `json:"offers"`
	Products      int64 `json:"products"`
	ProductOffers int64 `json:"product_offers"`
}
