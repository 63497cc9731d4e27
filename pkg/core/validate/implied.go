package validate

import (
	"dcf_valuation/pkg/core/benchmark"
	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/numutil"
	"dcf_valuation/pkg/models"
)

// Feasibility flags mark market-implied assumptions that exceed the industry
// error thresholds (margin, ROIC) or a fixed 15% growth line. The company's
// own history is not consulted.
type Feasibility struct {
	MarginExceedsIndustryMax         bool `json:"marginExceedsIndustryMax"`
	ROICExceedsHistoricalMax         bool `json:"roicExceedsHistoricalMax"`
	GrowthExceedsHistoricalFrequency bool `json:"growthExceedsHistoricalFrequency"`
}

// MarketImplied is the Layer C output: the long-run assumptions the current
// market price implies, back-solved through Gordon growth.
type MarketImplied struct {
	ImpliedGrowthRate        float64     `json:"impliedGrowthRate"`
	ImpliedSteadyStateMargin float64     `json:"impliedSteadyStateMargin"`
	ImpliedROIC              float64     `json:"impliedROIC"`
	ImpliedFadeSpeed         float64     `json:"impliedFadeSpeed"`
	Feasibility              Feasibility `json:"feasibility"`
	HistoricalFrequency      float64     `json:"historicalFrequency"`
}

// CalculateMarketImplied inverts the Gordon model against the current price.
// Instead of asking "what is the stock worth", it asks "what must be true
// forever for the current price to be fair" and scores how often businesses
// actually deliver that.
func CalculateMarketImplied(fin models.FinancialData, wacc float64, inputs dcf.Inputs) MarketImplied {
	marketCap := fin.CurrentPrice * fin.SharesOutstanding
	ev := marketCap - fin.NetCash

	bench := benchmark.Get(fin.Industry, fin.Sector)
	thresholds := benchmark.GetThresholds(bench)

	// 1. Implied growth: EV = FCF(1+g)/(wacc-g) solved for g
	impliedGrowth := 0.0
	if fin.TTMFCF > 0 && ev > 0 {
		impliedGrowth = (ev*wacc - fin.TTMFCF) / (ev + fin.TTMFCF)
		impliedGrowth = numutil.Clamp(impliedGrowth, -0.10, 0.30)
	}

	// 2. Implied steady-state margin: scale today's margin by the gap between
	// the yield the price requires and the yield the business delivers.
	fcfYield := 0.0
	if fin.TTMFCF > 0 && ev > 0 {
		fcfYield = fin.TTMFCF / ev
	}
	currentOpMargin := 0.0
	if fin.TTMRevenue != 0 {
		currentOpMargin = fin.TTMOperatingIncome / fin.TTMRevenue
	}
	requiredFCFYield := wacc - impliedGrowth
	if requiredFCFYield < 0 {
		requiredFCFYield = 0
	}
	multiple := 1.0
	if requiredFCFYield > 0 && fcfYield > 0 {
		multiple = requiredFCFYield / fcfYield
	}
	impliedMargin := currentOpMargin * multiple

	// 3. Implied ROIC from g = ROIC x reinvestment
	reinvestment := reinvestmentRate(inputs)
	impliedROIC := 0.0
	if impliedGrowth > 0 && reinvestment > 0 {
		impliedROIC = impliedGrowth / reinvestment
	} else {
		impliedROIC = currentOpMargin * 0.8 * 2
	}

	// 4. Implied fade speed: richer multiples price in a slower fade
	fadeSpeed := 1.0
	if fin.PE > 0 {
		fadeSpeed = numutil.Clamp(20/fin.PE, 0.1, 1.0)
	}

	mi := MarketImplied{
		ImpliedGrowthRate:        impliedGrowth,
		ImpliedSteadyStateMargin: impliedMargin,
		ImpliedROIC:              impliedROIC,
		ImpliedFadeSpeed:         fadeSpeed,
		Feasibility: Feasibility{
			MarginExceedsIndustryMax:         impliedMargin > thresholds.MarginError,
			ROICExceedsHistoricalMax:         impliedROIC > thresholds.ROICError,
			GrowthExceedsHistoricalFrequency: impliedGrowth > 0.15,
		},
	}
	mi.HistoricalFrequency = historicalFrequency(impliedGrowth, impliedROIC, impliedMargin, bench, thresholds)
	return mi
}

// reinvestmentRate derives the reinvestment assumption from the input set.
// Preference order: the last explicit-year driver, the average across all
// drivers, then a 0.4 literal. The chain matters: the implied ROIC is only
// as honest as the reinvestment rate it divides by.
func reinvestmentRate(inputs dcf.Inputs) float64 {
	fromDriver := func(d dcf.ValueDrivers) float64 {
		denom := d.OperatingMargin * (1 - d.TaxRate)
		if denom == 0 {
			return 0
		}
		return (d.CapexPercent - d.DAPercent + d.WCChangePercent) / denom
	}

	if n := len(inputs.Drivers); n > 0 {
		if r := fromDriver(inputs.Drivers[n-1]); numutil.IsFinite(r) && r > 0 {
			return r
		}
		var sumNum, sumDen float64
		for _, d := range inputs.Drivers {
			sumNum += d.CapexPercent - d.DAPercent + d.WCChangePercent
			sumDen += d.OperatingMargin * (1 - d.TaxRate)
		}
		if sumDen != 0 {
			if r := sumNum / sumDen; numutil.IsFinite(r) && r > 0 {
				return r
			}
		}
	}
	return 0.4
}

// historicalFrequency scores, out of ~50, how often real businesses sustain
// the implied combination. Every aggressive implication subtracts; the floor
// is 1 so a zero never reads as "no data".
func historicalFrequency(growth, roic, margin float64, bench benchmark.Benchmark, t benchmark.Thresholds) float64 {
	score := 50.0

	switch {
	case growth > 0.20:
		score -= 30
	case growth > 0.15:
		score -= 20
	case growth > 0.10:
		score -= 10
	}

	switch {
	case roic > t.ROICError:
		score -= 25
	case roic > t.ROICWarning:
		score -= 15
	case roic > 1.2*bench.AfterTaxROIC:
		score -= 5
	}

	switch {
	case margin > t.MarginError:
		score -= 20
	case margin > t.MarginWarning:
		score -= 10
	case margin > 1.2*bench.OperatingMargin:
		score -= 5
	}

	if score < 1 {
		score = 1
	}
	return score
}
