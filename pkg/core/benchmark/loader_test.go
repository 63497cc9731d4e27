package benchmark

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "benchmarks.yaml")
	content := `
industries:
  "Widgets":
    operatingMargin: 0.33
    afterTaxROIC: 0.22
    numberOfFirms: 7
sectors:
  "Technology":
    operatingMargin: 0.19
    afterTaxROIC: 0.14
    numberOfFirms: 100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Remember and restore the mutated entries so other tests see the
	// compiled-in table.
	origSector := sectorTable["Technology"]
	defer func() {
		delete(industryTable, "Widgets")
		sectorTable["Technology"] = origSector
	}()

	if err := LoadOverlay(path); err != nil {
		t.Fatalf("overlay failed: %v", err)
	}

	b := Get("Widgets", "")
	if b.OperatingMargin != 0.33 || b.NumberOfFirms != 7 {
		t.Errorf("overlay industry not applied: %+v", b)
	}
	b = Get("", "Technology")
	if b.OperatingMargin != 0.19 {
		t.Errorf("overlay sector not applied: %+v", b)
	}
}

func TestLoadOverlayMissingFile(t *testing.T) {
	if err := LoadOverlay("/nonexistent/benchmarks.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
