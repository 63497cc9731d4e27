// Package prefill turns a raw financial data bundle into a complete,
// internally consistent DCF assumption set. It is the only component that
// invents numbers: everything downstream consumes what prefill produced,
// possibly patched by caller overrides.
//
// Prefill never fails. Inputs it cannot use are replaced by documented
// defaults. The WACC and steady-state ROIC fallbacks are reported through the
// audit's warning list; the tax-rate, cost-of-debt and driver defaults apply
// without a warning.
package prefill

import (
	"fmt"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/numutil"
	"dcf_valuation/pkg/models"
)

const (
	defaultExplicitYears  = 5
	defaultTerminalGrowth = 0.025
	defaultFadeYears      = 10

	// Fallbacks used when the bundle carries nothing usable.
	fallbackWACC      = 0.10
	fallbackTaxRate   = 0.21
	fallbackROIC      = 0.10
	fallbackCostDebt  = 0.06
	defaultGrowthRate = 0.10
)

// Audit records how the WACC was composed and which fallbacks fired.
type Audit struct {
	CostOfEquity     float64  `json:"costOfEquity"`
	CostOfDebt       float64  `json:"costOfDebt"`
	EquityWeight     float64  `json:"equityWeight"`
	DebtWeight       float64  `json:"debtWeight"`
	EffectiveTaxRate float64  `json:"effectiveTaxRate"`
	CalculatedWACC   float64  `json:"calculatedWacc"`
	FinalWACC        float64  `json:"finalWacc"`
	Warnings         []string `json:"warnings"`
}

// Prefill builds the base DCF inputs for a company. Deterministic: identical
// bundles produce identical outputs.
func Prefill(symbol string, fin models.FinancialData, wacc models.WACCInputs) (dcf.Inputs, Audit) {
	audit := Audit{Warnings: []string{}}

	// 1. Cost of equity (CAPM)
	audit.CostOfEquity = wacc.RiskFreeRate + fin.Beta*wacc.MarketRiskPremium

	// 2. Cost of debt, backed out of interest expense with sanity bounds
	audit.CostOfDebt = estimateCostOfDebt(fin)

	// 3. Capital weights at market values
	totalCapital := fin.MarketCap + fin.TotalDebt
	if totalCapital > 0 {
		audit.EquityWeight = fin.MarketCap / totalCapital
	} else {
		audit.EquityWeight = 0.8
	}
	audit.DebtWeight = 1 - audit.EquityWeight

	// 4. Tax rate
	audit.EffectiveTaxRate = fin.EffectiveTaxRate
	if !numutil.IsFinite(audit.EffectiveTaxRate) {
		audit.EffectiveTaxRate = fallbackTaxRate
	}

	// 5. WACC, clamped to a plausible corporate band
	audit.CalculatedWACC = audit.EquityWeight*audit.CostOfEquity +
		audit.DebtWeight*audit.CostOfDebt*(1-audit.EffectiveTaxRate)
	if numutil.IsFinite(audit.CalculatedWACC) {
		audit.FinalWACC = numutil.Clamp(audit.CalculatedWACC, 0.06, 0.15)
	} else {
		audit.FinalWACC = fallbackWACC
		audit.Warnings = append(audit.Warnings,
			fmt.Sprintf("WACC could not be computed from inputs; falling back to default %.2f", fallbackWACC))
	}

	inputs := dcf.Inputs{
		Symbol:              symbol,
		ExplicitPeriodYears: defaultExplicitYears,
		TerminalMethod:      dcf.MethodPerpetuity,
		TerminalGrowthRate:  defaultTerminalGrowth,
		FadeYears:           defaultFadeYears,
		WACC:                audit.FinalWACC,
	}

	// 6. Revenue / income anchors: latest annual if positive, else TTM
	inputs.BaseRevenue = fin.LatestAnnualRevenue
	if inputs.BaseRevenue <= 0 {
		inputs.BaseRevenue = fin.TTMRevenue
	}
	inputs.BaseNetIncome = fin.LatestAnnualNetIncome
	if inputs.BaseNetIncome <= 0 {
		inputs.BaseNetIncome = fin.TTMNetIncome
	}

	// 7. Drivers: seeded defaults, then observed ratios where positive
	inputs.Drivers = defaultDrivers(fin, audit.EffectiveTaxRate)

	// 8. Growth path from the analyst panel
	applyAnalystGrowth(&inputs, fin)

	// 9. Terminal steady state anchored to historical returns
	roic := fin.HistoricalROIC
	if !numutil.IsFinite(roic) || roic <= 0 {
		roic = fallbackROIC
		audit.Warnings = append(audit.Warnings,
			fmt.Sprintf("historical ROIC unavailable; steady-state ROIC defaulted to %.2f", fallbackROIC))
	}
	inputs.SteadyStateROIC = roic
	inputs.FadeStartROIC = roic
	inputs.FadeStartGrowth = inputs.Drivers[len(inputs.Drivers)-1].RevenueGrowth

	return inputs, audit
}

// estimateCostOfDebt derives a pre-tax cost of debt from interest expense
// over total debt, with bounds against distorted leverage snapshots.
func estimateCostOfDebt(fin models.FinancialData) float64 {
	if fin.TotalDebt <= 0 || fin.InterestExpense < 0 {
		return fallbackCostDebt
	}
	r := fin.InterestExpense / fin.TotalDebt
	switch {
	case r < 0.02:
		return 0.04
	case r > 0.15:
		return 0.10
	default:
		return r
	}
}

func defaultDrivers(fin models.FinancialData, taxRate float64) []dcf.ValueDrivers {
	base := dcf.ValueDrivers{
		RevenueGrowth:   defaultGrowthRate,
		GrossMargin:     0.40,
		OperatingMargin: 0.20,
		TaxRate:         fallbackTaxRate,
		DAPercent:       0.03,
		CapexPercent:    0.04,
		WCChangePercent: 0.01,
	}
	if fin.GrossMargin > 0 {
		base.GrossMargin = fin.GrossMargin
	}
	if fin.OperatingMargin > 0 {
		base.OperatingMargin = fin.OperatingMargin
	}
	if taxRate > 0 {
		base.TaxRate = taxRate
	}
	if fin.HistoricalDAPercent > 0 {
		base.DAPercent = fin.HistoricalDAPercent
	}
	if fin.HistoricalCapexPercent > 0 {
		base.CapexPercent = fin.HistoricalCapexPercent
	}
	if fin.HistoricalWCChangePercent > 0 {
		base.WCChangePercent = fin.HistoricalWCChangePercent
	}

	drivers := make([]dcf.ValueDrivers, defaultExplicitYears)
	for i := range drivers {
		drivers[i] = base
	}
	return drivers
}

// applyAnalystGrowth overlays the explicit-period growth path with the
// analyst consensus. Preferred path walks year over year against the prior
// revenue level; years past the panel decay 10% per year. If the walk is not
// possible but two fiscal years exist, a single FY2/FY1 growth rate is faded
// across the period.
func applyAnalystGrowth(inputs *dcf.Inputs, fin models.FinancialData) {
	n := inputs.ExplicitPeriodYears
	if n > len(inputs.Drivers) {
		n = len(inputs.Drivers)
	}
	est := fin.AnalystEstimates

	walked := false
	if len(est) > 0 && inputs.BaseRevenue > 0 {
		prev := inputs.BaseRevenue
		lastGrowth := 0.0
		for i := 0; i < n; i++ {
			if i < len(est) && est[i].RevenueAvg > 0 && prev > 0 {
				growth := est[i].RevenueAvg/prev - 1
				inputs.Drivers[i].RevenueGrowth = growth
				prev = est[i].RevenueAvg
				lastGrowth = growth
				walked = true
			} else if walked {
				// Past the panel: decay the last observed growth.
				lastGrowth *= 0.9
				inputs.Drivers[i].RevenueGrowth = lastGrowth
			}
		}
	}
	if walked {
		return
	}

	if len(est) >= 2 && est[0].RevenueAvg > 0 && est[1].RevenueAvg > 0 {
		g := est[1].RevenueAvg/est[0].RevenueAvg - 1
		fade := []float64{1.0, 0.9, 0.8, 0.7, 0.6}
		for i := 0; i < n && i < len(fade); i++ {
			inputs.Drivers[i].RevenueGrowth = g * fade[i]
		}
		inputs.FadeStartGrowth = 0.6 * g
	}
}
