package benchmark

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// resourceFile mirrors the YAML overlay format:
//
//	industries:
//	  "Software—Application": {operatingMargin: 0.22, afterTaxROIC: 0.18, numberOfFirms: 174}
//	sectors:
//	  "Technology": {operatingMargin: 0.21, afterTaxROIC: 0.16, numberOfFirms: 520}
//	market: {operatingMargin: 0.12, afterTaxROIC: 0.10, numberOfFirms: 5800}
type resourceFile struct {
	Industries map[string]Benchmark `yaml:"industries"`
	Sectors    map[string]Benchmark `yaml:"sectors"`
	Market     *Benchmark           `yaml:"market"`
}

// LoadOverlay merges entries from a YAML resource into the compiled-in table.
// Existing keys are replaced, unknown keys are added. Intended for startup
// only; the table is read-only once serving begins.
func LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read benchmark overlay: %w", err)
	}
	var res resourceFile
	if err := yaml.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("parse benchmark overlay: %w", err)
	}
	for k, v := range res.Industries {
		industryTable[k] = v
	}
	for k, v := range res.Sectors {
		sectorTable[k] = v
	}
	if res.Market != nil {
		marketAggregate = *res.Market
	}
	return nil
}
