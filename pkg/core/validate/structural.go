// Package validate implements the two cross-check layers around a DCF point
// estimate: the structural consistency audit of the assumption set (Layer B)
// and the reverse-DCF that extracts market-implied long-run assumptions
// (Layer C). Both are pure: identical inputs give identical outputs.
package validate

import (
	"fmt"

	"dcf_valuation/pkg/core/benchmark"
	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/models"
)

// GrowthConsistency compares the assumed revenue growth against the growth
// the reinvestment assumptions can actually fund at historical returns.
type GrowthConsistency struct {
	ImpliedGrowth float64 `json:"impliedGrowth"`
	AssumedGrowth float64 `json:"assumedGrowth"`
	Deviation     float64 `json:"deviation"`
	IsValid       bool    `json:"isValid"`
}

// CapexDARatio checks whether capital spending and depreciation converge.
type CapexDARatio struct {
	Current      float64 `json:"current"`
	Target       float64 `json:"target"`
	IsReasonable bool    `json:"isReasonable"`
}

// FCFQuality checks free cash flow conversion against a normal band.
type FCFQuality struct {
	FCFToNI       float64    `json:"fcfToNI"`
	IndustryRange [2]float64 `json:"industryRange"`
	IsReasonable  bool       `json:"isReasonable"`
}

// StructuralCheck is the Layer B output.
type StructuralCheck struct {
	GrowthConsistency GrowthConsistency `json:"growthConsistency"`
	CapexDARatio      CapexDARatio      `json:"capexDARatio"`
	FCFQuality        FCFQuality        `json:"fcfQuality"`
	HasWarnings       bool              `json:"hasWarnings"`
	Warnings          []string          `json:"warnings"`
}

// RunStructuralCheck audits the assumption set against accounting and
// economic identities: growth must be fundable by reinvestment, capex must
// not drift from depreciation forever, and FCF conversion must stay in a
// plausible band.
func RunStructuralCheck(inputs dcf.Inputs, result dcf.Result, fin models.FinancialData) StructuralCheck {
	check := StructuralCheck{Warnings: []string{}}

	years := inputs.ExplicitPeriodYears
	if years > len(inputs.Drivers) {
		years = len(inputs.Drivers)
	}
	if years == 0 {
		check.Warnings = append(check.Warnings, "no explicit-period drivers to audit")
		check.HasWarnings = true
		return check
	}

	var avgOpMargin, avgTax, avgCapex, avgDA, avgWC, avgGrowth float64
	for i := 0; i < years; i++ {
		d := inputs.Drivers[i]
		avgOpMargin += d.OperatingMargin
		avgTax += d.TaxRate
		avgCapex += d.CapexPercent
		avgDA += d.DAPercent
		avgWC += d.WCChangePercent
		avgGrowth += d.RevenueGrowth
	}
	fy := float64(years)
	avgOpMargin /= fy
	avgTax /= fy
	avgCapex /= fy
	avgDA /= fy
	avgWC /= fy
	avgGrowth /= fy

	// 1. Growth consistency: g = ROIC x reinvestment rate
	netNopatMargin := avgOpMargin * (1 - avgTax)
	reinvestmentRate := 0.0
	if netNopatMargin > 0 {
		if r := (avgCapex - avgDA + avgWC) / netNopatMargin; r > 0 {
			reinvestmentRate = r
		}
	}
	gc := GrowthConsistency{
		ImpliedGrowth: fin.HistoricalROIC * reinvestmentRate,
		AssumedGrowth: avgGrowth,
	}
	gc.Deviation = abs(gc.AssumedGrowth - gc.ImpliedGrowth)
	gc.IsValid = gc.Deviation < 0.05
	check.GrowthConsistency = gc
	if !gc.IsValid {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"assumed growth %.1f%% deviates %.1f%% from the %.1f%% fundable at historical ROIC and current reinvestment",
			gc.AssumedGrowth*100, gc.Deviation*100, gc.ImpliedGrowth*100))
	}

	bench := benchmark.Get(fin.Industry, fin.Sector)
	thresholds := benchmark.GetThresholds(bench)
	roicFloor := bench.AfterTaxROIC - 0.30
	if roicFloor > -0.10 {
		roicFloor = -0.10
	}
	if fin.HistoricalROIC < roicFloor || fin.HistoricalROIC > thresholds.ROICError {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"historical ROIC %.1f%% is far outside the industry norm (median %.1f%%)",
			fin.HistoricalROIC*100, bench.AfterTaxROIC*100))
	}

	// 2. CapEx vs D&A in the final year, where the two should have converged
	last := inputs.Drivers[years-1]
	ratio := 0.0
	if last.DAPercent != 0 {
		ratio = last.CapexPercent / last.DAPercent
	}
	check.CapexDARatio = CapexDARatio{
		Current:      ratio,
		Target:       1.0,
		IsReasonable: ratio >= 0.8 && ratio <= 1.5,
	}
	if !check.CapexDARatio.IsReasonable {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"terminal-year capex/D&A ratio %.2f is outside [0.8, 1.5]; steady state implies convergence", ratio))
	}

	// 3. FCF conversion in the final projection year
	fcfToNI := 0.0
	if len(result.Projections) > 0 {
		lastProj := result.Projections[len(result.Projections)-1]
		if lastProj.NOPAT > 0 {
			fcfToNI = lastProj.FCF / lastProj.NOPAT
		}
	}
	check.FCFQuality = FCFQuality{
		FCFToNI:       fcfToNI,
		IndustryRange: [2]float64{0.6, 1.2},
		IsReasonable:  fcfToNI >= 0.6 && fcfToNI <= 1.2,
	}
	if !check.FCFQuality.IsReasonable {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"FCF/NOPAT conversion %.2f is outside the normal [0.6, 1.2] band", fcfToNI))
	}

	// Model-level warnings
	if result.TerminalValuePercent > 80 {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"terminal value carries %.0f%% of enterprise value; the explicit period barely matters", result.TerminalValuePercent))
	}
	if inputs.TerminalGrowthRate >= inputs.WACC {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"terminal growth %.2f%% is not below WACC %.2f%%; the perpetuity is undefined",
			inputs.TerminalGrowthRate*100, inputs.WACC*100))
	}
	if inputs.TerminalGrowthRate > 0.04 {
		check.Warnings = append(check.Warnings, fmt.Sprintf(
			"terminal growth %.2f%% exceeds long-run nominal GDP growth", inputs.TerminalGrowthRate*100))
	}

	check.HasWarnings = len(check.Warnings) > 0
	return check
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
