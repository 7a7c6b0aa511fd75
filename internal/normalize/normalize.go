// Package normalize projects a parsed row's property bag into catalog
// entities: a Product candidate plus the offer line that prices it.
//
// Only persisted keys participate: "Product.<X>" fields feed the product,
// "Offer.<X>" fields feed the line, and the well-known names (EAN, Name,
// Price, Quantity, Currency, Ref, Description) are plucked into typed
// fields. Everything else lands in DynamicProperties/OfferProperties in
// first-assignment order. ".Clean" siblings are pipeline bookkeeping and
// never leave the bag.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sacksapp/sacks/internal/bag"
	"github.com/sacksapp/sacks/internal/types"
)

const (
	productPrefix = "product."
	offerPrefix   = "offer."
	cleanSuffix   = ".clean"

	maxEANLength = 14
)

// Row is one normalized data row: the product it describes and the offer
// line pricing it. IDs and timestamps are assigned later, by the upsert
// coordinator, once the product is resolved against the catalog.
type Row struct {
	Index   int // source row index, for diagnostics
	Product *types.Product
	Line    *types.ProductOffer
}

// Normalizer projects bags for one supplier. It is stateless per row and
// safe to share.
type Normalizer struct {
	fallbackCurrency string
}

// New returns a normalizer whose offer lines fall back to the supplier's
// configured currency when a row does not carry one.
func New(fallbackCurrency string) *Normalizer {
	return &Normalizer{fallbackCurrency: strings.ToUpper(strings.TrimSpace(fallbackCurrency))}
}

// Row projects one parsed bag. A nil Row means the row was dropped; the
// returned warnings say why. A non-nil Row can still carry warnings, for
// recoverable field problems like an unparsable price.
func (n *Normalizer) Row(index int, b *bag.Bag) (*Row, []string) {
	rb := &rowBuilder{
		index:   index,
		product: &types.Product{},
		line:    &types.ProductOffer{},
	}

	for _, key := range b.Keys() {
		lk := strings.ToLower(key)
		if strings.HasSuffix(lk, cleanSuffix) {
			continue
		}
		switch {
		case strings.HasPrefix(lk, productPrefix):
			rb.productField(key[len(productPrefix):], b.Value(key))
		case strings.HasPrefix(lk, offerPrefix):
			rb.offerField(key[len(offerPrefix):], b.Value(key))
		}
	}

	return rb.finish(n.fallbackCurrency)
}

// rowBuilder accumulates one row's fields while the bag is walked in
// first-assignment order.
type rowBuilder struct {
	index    int
	product  *types.Product
	line     *types.ProductOffer
	sawAny   bool
	warnings []string
}

func (rb *rowBuilder) warn(format string, args ...any) {
	rb.warnings = append(rb.warnings, fmt.Sprintf(format, args...))
}

func (rb *rowBuilder) productField(name, value string) {
	rb.sawAny = true
	switch strings.ToLower(name) {
	case "ean":
		ean := strings.TrimSpace(value)
		if len(ean) > maxEANLength {
			rb.warn("row %d: ean %q longer than %d characters, treated as unknown", rb.index, ean, maxEANLength)
			return
		}
		rb.product.EAN = ean
	case "name":
		rb.product.Name = strings.TrimSpace(value)
	case "":
		// "Product." with nothing after the dot names no property
	default:
		if rb.product.DynamicProperties == nil {
			rb.product.DynamicProperties = types.NewPropertyMap()
		}
		rb.product.DynamicProperties.Set(name, value)
	}
}

func (rb *rowBuilder) offerField(name, value string) {
	rb.sawAny = true
	switch strings.ToLower(name) {
	case "price":
		rb.setPrice(value)
	case "quantity":
		rb.setQuantity(value)
	case "currency":
		rb.setCurrency(value)
	case "ref":
		rb.line.Reference = strings.TrimSpace(value)
	case "description":
		rb.line.Description = value
	case "":
	default:
		if rb.line.OfferProperties == nil {
			rb.line.OfferProperties = types.NewPropertyMap()
		}
		rb.line.OfferProperties.Set(name, value)
	}
}

func (rb *rowBuilder) setPrice(raw string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return
	}
	d, err := parseDecimal(s)
	if err != nil {
		rb.warn("row %d: price %q is not numeric, using 0", rb.index, raw)
		return
	}
	rb.line.Price = d
}

func (rb *rowBuilder) setQuantity(raw string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return
	}
	q, err := strconv.Atoi(s)
	if err != nil {
		rb.warn("row %d: quantity %q is not an integer, using 0", rb.index, raw)
		return
	}
	if q < 0 {
		rb.warn("row %d: quantity %d is negative, using 0", rb.index, q)
		return
	}
	rb.line.Quantity = q
}

func (rb *rowBuilder) setCurrency(raw string) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return
	}
	if !types.ValidCurrency(c) {
		rb.warn("row %d: currency %q is not a 3-letter code, using the supplier's", rb.index, raw)
		return
	}
	rb.line.Currency = c
}

// finish applies fallbacks and the required-field rule. Rows without a
// product name never reach the store.
func (rb *rowBuilder) finish(fallbackCurrency string) (*Row, []string) {
	if !rb.sawAny {
		return rb.drop("nothing extracted")
	}
	if rb.product.Name == "" {
		return rb.drop("no product name extracted")
	}
	if err := rb.product.Validate(); err != nil {
		return rb.drop(err.Error())
	}
	if rb.line.Currency == "" {
		rb.line.Currency = fallbackCurrency
	}
	return &Row{Index: rb.index, Product: rb.product, Line: rb.line}, rb.warnings
}

func (rb *rowBuilder) drop(reason string) (*Row, []string) {
	err := &types.RowDroppedError{Row: rb.index, Reason: reason}
	return nil, append(rb.warnings, err.Error())
}

// parseDecimal reads an invariant-culture decimal, tolerating a lone comma
// as the decimal separator.
func parseDecimal(s string) (decimal.Decimal, error) {
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
