// Package benchmark holds the industry margin and ROIC reference table used
// by the structural and market-implied validation layers. The compiled-in
// table is a condensed Damodaran-style cross-section; deployments can overlay
// entries from a YAML resource at startup.
package benchmark

import "strings"

// Benchmark is the median profile of an industry cohort.
type Benchmark struct {
	OperatingMargin float64 `yaml:"operatingMargin" json:"operatingMargin"`
	AfterTaxROIC    float64 `yaml:"afterTaxROIC" json:"afterTaxROIC"`
	NumberOfFirms   int     `yaml:"numberOfFirms" json:"numberOfFirms"`
}

// Thresholds are the warning/error lines derived from a cohort median.
type Thresholds struct {
	MarginWarning float64 `json:"marginWarning"`
	MarginError   float64 `json:"marginError"`
	ROICWarning   float64 `json:"roicWarning"`
	ROICError     float64 `json:"roicError"`
}

// marketAggregate is the ultimate fallback when neither the industry nor the
// sector is known.
var marketAggregate = Benchmark{OperatingMargin: 0.12, AfterTaxROIC: 0.10, NumberOfFirms: 5800}

var industryTable = map[string]Benchmark{
	"Software—Application":            {OperatingMargin: 0.22, AfterTaxROIC: 0.18, NumberOfFirms: 174},
	"Software—Infrastructure":         {OperatingMargin: 0.25, AfterTaxROIC: 0.17, NumberOfFirms: 82},
	"Semiconductors":                  {OperatingMargin: 0.24, AfterTaxROIC: 0.16, NumberOfFirms: 66},
	"Semiconductor Equipment":         {OperatingMargin: 0.23, AfterTaxROIC: 0.18, NumberOfFirms: 31},
	"Consumer Electronics":            {OperatingMargin: 0.15, AfterTaxROIC: 0.14, NumberOfFirms: 22},
	"Internet Content & Information":  {OperatingMargin: 0.20, AfterTaxROIC: 0.15, NumberOfFirms: 58},
	"Internet Retail":                 {OperatingMargin: 0.06, AfterTaxROIC: 0.09, NumberOfFirms: 34},
	"Drug Manufacturers—General":      {OperatingMargin: 0.26, AfterTaxROIC: 0.14, NumberOfFirms: 18},
	"Biotechnology":                   {OperatingMargin: 0.10, AfterTaxROIC: 0.08, NumberOfFirms: 600},
	"Medical Devices":                 {OperatingMargin: 0.18, AfterTaxROIC: 0.11, NumberOfFirms: 120},
	"Banks—Diversified":               {OperatingMargin: 0.30, AfterTaxROIC: 0.07, NumberOfFirms: 45},
	"Insurance—Diversified":           {OperatingMargin: 0.14, AfterTaxROIC: 0.08, NumberOfFirms: 28},
	"Asset Management":                {OperatingMargin: 0.28, AfterTaxROIC: 0.11, NumberOfFirms: 90},
	"Credit Services":                 {OperatingMargin: 0.32, AfterTaxROIC: 0.12, NumberOfFirms: 40},
	"Oil & Gas Integrated":            {OperatingMargin: 0.12, AfterTaxROIC: 0.09, NumberOfFirms: 14},
	"Oil & Gas E&P":                   {OperatingMargin: 0.18, AfterTaxROIC: 0.08, NumberOfFirms: 80},
	"Specialty Retail":                {OperatingMargin: 0.08, AfterTaxROIC: 0.12, NumberOfFirms: 60},
	"Restaurants":                     {OperatingMargin: 0.13, AfterTaxROIC: 0.13, NumberOfFirms: 42},
	"Auto Manufacturers":              {OperatingMargin: 0.07, AfterTaxROIC: 0.07, NumberOfFirms: 20},
	"Aerospace & Defense":             {OperatingMargin: 0.11, AfterTaxROIC: 0.10, NumberOfFirms: 48},
	"Railroads":                       {OperatingMargin: 0.36, AfterTaxROIC: 0.11, NumberOfFirms: 8},
	"Utilities—Regulated Electric":    {OperatingMargin: 0.22, AfterTaxROIC: 0.05, NumberOfFirms: 36},
	"Telecom Services":                {OperatingMargin: 0.17, AfterTaxROIC: 0.06, NumberOfFirms: 30},
	"Entertainment":                   {OperatingMargin: 0.12, AfterTaxROIC: 0.08, NumberOfFirms: 38},
	"Beverages—Non-Alcoholic":         {OperatingMargin: 0.21, AfterTaxROIC: 0.15, NumberOfFirms: 16},
	"Household & Personal Products":   {OperatingMargin: 0.17, AfterTaxROIC: 0.14, NumberOfFirms: 26},
	"Packaged Foods":                  {OperatingMargin: 0.12, AfterTaxROIC: 0.10, NumberOfFirms: 50},
	"Discount Stores":                 {OperatingMargin: 0.05, AfterTaxROIC: 0.12, NumberOfFirms: 10},
	"Real Estate Services":            {OperatingMargin: 0.10, AfterTaxROIC: 0.07, NumberOfFirms: 40},
	"REIT—Diversified":                {OperatingMargin: 0.28, AfterTaxROIC: 0.05, NumberOfFirms: 22},
	"Chemicals":                       {OperatingMargin: 0.13, AfterTaxROIC: 0.10, NumberOfFirms: 34},
	"Gold":                            {OperatingMargin: 0.20, AfterTaxROIC: 0.07, NumberOfFirms: 45},
}

var sectorTable = map[string]Benchmark{
	"Technology":             {OperatingMargin: 0.21, AfterTaxROIC: 0.16, NumberOfFirms: 520},
	"Healthcare":             {OperatingMargin: 0.14, AfterTaxROIC: 0.10, NumberOfFirms: 900},
	"Financial Services":     {OperatingMargin: 0.25, AfterTaxROIC: 0.09, NumberOfFirms: 640},
	"Consumer Cyclical":      {OperatingMargin: 0.09, AfterTaxROIC: 0.11, NumberOfFirms: 470},
	"Consumer Defensive":     {OperatingMargin: 0.11, AfterTaxROIC: 0.11, NumberOfFirms: 210},
	"Energy":                 {OperatingMargin: 0.14, AfterTaxROIC: 0.08, NumberOfFirms: 230},
	"Industrials":            {OperatingMargin: 0.11, AfterTaxROIC: 0.10, NumberOfFirms: 560},
	"Basic Materials":        {OperatingMargin: 0.13, AfterTaxROIC: 0.09, NumberOfFirms: 180},
	"Utilities":              {OperatingMargin: 0.20, AfterTaxROIC: 0.05, NumberOfFirms: 90},
	"Communication Services": {OperatingMargin: 0.16, AfterTaxROIC: 0.09, NumberOfFirms: 150},
	"Real Estate":            {OperatingMargin: 0.24, AfterTaxROIC: 0.06, NumberOfFirms: 240},
}

// Get resolves the benchmark for a classification. Exact industry match wins,
// then the sector default, then the market aggregate.
func Get(industry, sector string) Benchmark {
	if b, ok := industryTable[strings.TrimSpace(industry)]; ok {
		return b
	}
	if b, ok := sectorTable[strings.TrimSpace(sector)]; ok {
		return b
	}
	return marketAggregate
}

// GetThresholds derives warning/error lines from a cohort median. Floors keep
// thin-margin industries from producing degenerate thresholds; caps keep
// fat-margin industries from sanctioning implausible implied assumptions.
func GetThresholds(b Benchmark) Thresholds {
	marginBase := b.OperatingMargin
	if marginBase < 0.05 {
		marginBase = 0.05
	}
	roicBase := b.AfterTaxROIC
	if roicBase < 0.05 {
		roicBase = 0.05
	}
	t := Thresholds{
		MarginWarning: marginBase * 1.5,
		MarginError:   marginBase * 2.0,
		ROICWarning:   roicBase * 1.3,
		ROICError:     roicBase * 1.6,
	}
	if t.MarginWarning > 0.50 {
		t.MarginWarning = 0.50
	}
	if t.MarginError > 0.60 {
		t.MarginError = 0.60
	}
	if t.ROICWarning > 0.60 {
		t.ROICWarning = 0.60
	}
	if t.ROICError > 0.80 {
		t.ROICError = 0.80
	}
	return t
}
