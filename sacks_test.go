package sacks_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sacksapp/sacks"
	"github.com/sacksapp/sacks/internal/storage/memory"
)

const testFormats = `{
  "Version": 1,
  "Suppliers": [
    {
      "Name": "Acme",
      "Currency": "EUR",
      "FileStructure": {
        "HeaderRowIndex": 0,
        "DataStartRowIndex": 1,
        "Detection": {"FileNamePatterns": ["acme-*.csv"]}
      },
      "ParserConfig": {
        "ColumnRules": [
          {"Column": "A", "Actions": [{"Op": "Assign", "Input": "Text", "Output": "Product.Name"}]},
          {"Column": "B", "Actions": [{"Op": "Assign", "Input": "Text", "Output": "Offer.Price"}]},
          {"Column": "C", "Actions": [{"Op": "Assign", "Input": "Text", "Output": "Offer.Quantity"}]}
        ]
      }
    }
  ]
}`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "supplier-formats.json"), []byte(testFormats), 0644); err != nil {
		t.Fatalf("writing configuration: %v", err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	doc, err := sacks.LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(doc.Suppliers) != 1 || doc.Suppliers[0].Name != "Acme" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestLoadConfigRejectsBadRules(t *testing.T) {
	dir := t.TempDir()
	bad := `{
  "Version": 1,
  "Suppliers": [
    {
      "Name": "X",
      "Currency": "EUR",
      "FileStructure": {"Detection": {"FileNamePatterns": ["x-*.csv"]}},
      "ParserConfig": {"ColumnRules": [
        {"Column": "A", "Actions": [{"Op": "Frobnicate", "Output": "y"}]}
      ]}
    }
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, "supplier-formats.json"), []byte(bad), 0644); err != nil {
		t.Fatalf("writing configuration: %v", err)
	}
	if _, err := sacks.LoadConfig(dir); err == nil {
		t.Fatal("LoadConfig should reject an unknown op")
	}
}

func TestOpenConfigStore(t *testing.T) {
	store, err := sacks.OpenConfigStore(writeTestConfig(t))
	if err != nil {
		t.Fatalf("OpenConfigStore failed: %v", err)
	}
	if _, ok := store.Snapshot().FindSupplier("acme"); !ok {
		t.Error("snapshot should find Acme case-insensitively")
	}
}

func TestProcessFile(t *testing.T) {
	doc, err := sacks.LoadConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	proc := sacks.NewProcessor(doc, memory.New())

	dir := t.TempDir()
	csv := "name,price,qty\nScented Candle,9.99,10\nWax Melt,3.50,25\n"
	path := filepath.Join(dir, "acme-2026-08.csv")
	if err := os.WriteFile(path, []byte(csv), 0644); err != nil {
		t.Fatalf("writing csv: %v", err)
	}

	res, err := proc.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v (result %+v)", err, res)
	}
	if res.Status != sacks.StatusOk {
		t.Errorf("Status = %q, want %q", res.Status, sacks.StatusOk)
	}
	if res.Supplier != "Acme" {
		t.Errorf("Supplier = %q, want Acme", res.Supplier)
	}
	if res.OfferName != "Acme - acme-2026-08.csv" {
		t.Errorf("OfferName = %q", res.OfferName)
	}
	if res.RowsParsed != 2 || res.ProductsCreated != 2 || res.OfferLinesCreated != 2 {
		t.Errorf("counters = %d parsed, %d products, %d lines, want 2/2/2",
			res.RowsParsed, res.ProductsCreated, res.OfferLinesCreated)
	}

	// Same file again: the offer already exists and nothing is written.
	res2, err2 := proc.ProcessFile(context.Background(), path)
	if err2 == nil {
		t.Fatal("second run should report a duplicate offer")
	}
	if res2.Status != sacks.StatusDuplicateOffer {
		t.Errorf("second run Status = %q, want %q", res2.Status, sacks.StatusDuplicateOffer)
	}
}

// The status strings are stored in results and matched by automation.
func TestStatusConstants(t *testing.T) {
	if sacks.StatusOk != "ok" {
		t.Errorf("StatusOk = %q, want %q", sacks.StatusOk, "ok")
	}
	if sacks.StatusDuplicateOffer != "duplicate_offer" {
		t.Errorf("StatusDuplicateOffer = %q, want %q", sacks.StatusDuplicateOffer, "duplicate_offer")
	}
	if sacks.StatusCanceled != "canceled" {
		t.Errorf("StatusCanceled = %q, want %q", sacks.StatusCanceled, "canceled")
	}
	if sacks.StatusFailed != "failed" {
		t.Errorf("StatusFailed = %q, want %q", sacks.StatusFailed, "failed")
	}
}
