package dcf

import "dcf_valuation/pkg/models"

// SensitivityGrid is a fair-value-per-share matrix over WACC (rows) and
// terminal growth (columns) around a base assumption set. Used by the report
// renderer; not part of the valuation response contract.
type SensitivityGrid struct {
	WACCs       []float64   `json:"waccs"`
	GrowthRates []float64   `json:"growthRates"`
	FairValues  [][]float64 `json:"fairValues"`
}

// Sensitivity sweeps the perpetuity model across additive deltas to the base
// WACC and terminal growth. Cells where the discount spread collapses
// (wacc - g < 0.005) are left at zero rather than reporting a sign-flipped
// perpetuity.
func Sensitivity(base Inputs, fin models.FinancialData, waccDeltas, growthDeltas []float64) SensitivityGrid {
	grid := SensitivityGrid{
		WACCs:       make([]float64, len(waccDeltas)),
		GrowthRates: make([]float64, len(growthDeltas)),
		FairValues:  make([][]float64, len(waccDeltas)),
	}
	for j, dg := range growthDeltas {
		grid.GrowthRates[j] = base.TerminalGrowthRate + dg
	}
	for i, dw := range waccDeltas {
		wacc := base.WACC + dw
		grid.WACCs[i] = wacc
		row := make([]float64, len(growthDeltas))
		for j, dg := range growthDeltas {
			g := base.TerminalGrowthRate + dg
			if wacc-g < 0.005 {
				continue
			}
			in := base.Clone()
			in.TerminalMethod = MethodPerpetuity
			in.WACC = wacc
			in.TerminalGrowthRate = g
			row[j] = Calculate(in, fin).FairValuePerShare
		}
		grid.FairValues[i] = row
	}
	return grid
}
