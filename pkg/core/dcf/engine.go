package dcf

import (
	"math"

	"dcf_valuation/pkg/models"
)

// Calculate runs the explicit projection and the selected terminal mechanism.
// The engine never returns an error: degenerate denominators (wacc <= g)
// simply flow through as non-finite values, which the Monte Carlo layer
// filters and the validation layers flag.
func Calculate(inputs Inputs, fin models.FinancialData) Result {
	years := inputs.ExplicitPeriodYears
	if years > len(inputs.Drivers) {
		years = len(inputs.Drivers)
	}

	projections := make([]YearProjection, 0, years)
	prevRevenue := inputs.BaseRevenue
	explicitPV := 0.0
	var lastFCF, lastNOPAT float64

	for y := 1; y <= years; y++ {
		d := inputs.Drivers[y-1]

		revenue := prevRevenue * (1 + d.RevenueGrowth)
		deltaRevenue := revenue - prevRevenue
		operatingIncome := revenue * d.OperatingMargin
		nopat := operatingIncome * (1 - d.TaxRate)
		da := revenue * d.DAPercent
		capex := revenue * d.CapexPercent
		// Working capital scales with the revenue change, not the level.
		wcChange := deltaRevenue * d.WCChangePercent
		fcf := nopat + da - capex - wcChange

		discountFactor := math.Pow(1+inputs.WACC, float64(y))
		pv := fcf / discountFactor

		projections = append(projections, YearProjection{
			Year:            y,
			Revenue:         revenue,
			OperatingIncome: operatingIncome,
			NOPAT:           nopat,
			FCF:             fcf,
			DiscountFactor:  discountFactor,
			PresentValue:    pv,
		})

		explicitPV += pv
		prevRevenue = revenue
		lastFCF = fcf
		lastNOPAT = nopat
	}

	terminalValue := calculateTerminalValue(inputs, float64(years), lastFCF, lastNOPAT)
	terminalPV := terminalValue / math.Pow(1+inputs.WACC, float64(years))

	enterpriseValue := explicitPV + terminalPV
	equityValue := enterpriseValue + fin.NetCash

	fairValue := 0.0
	if fin.SharesOutstanding > 0 {
		fairValue = equityValue / fin.SharesOutstanding
	}
	impliedPE := 0.0
	if fin.TTMEPS > 0 {
		impliedPE = fairValue / fin.TTMEPS
	}
	impliedEVtoFCF := 0.0
	if fin.TTMFCF > 0 {
		impliedEVtoFCF = enterpriseValue / fin.TTMFCF
	}
	tvPercent := 0.0
	if enterpriseValue != 0 {
		tvPercent = 100 * terminalPV / enterpriseValue
	}

	return Result{
		EnterpriseValue:      enterpriseValue,
		EquityValue:          equityValue,
		FairValuePerShare:    fairValue,
		ExplicitPeriodPV:     explicitPV,
		TerminalValuePV:      terminalPV,
		TerminalValuePercent: tvPercent,
		ImpliedPE:            impliedPE,
		ImpliedEVtoFCF:       impliedEVtoFCF,
		Projections:          projections,
	}
}

// calculateTerminalValue returns the terminal value at the end of the
// explicit period, pre-discount. n is the explicit period length.
func calculateTerminalValue(inputs Inputs, n, lastFCF, lastNOPAT float64) float64 {
	g := inputs.TerminalGrowthRate
	wacc := inputs.WACC

	switch inputs.TerminalMethod {
	case MethodROICDriven:
		// Value driver formula: reinvestment consumes g/ROIC of NOPAT.
		reinvest := 0.0
		if inputs.SteadyStateROIC != 0 {
			reinvest = g / inputs.SteadyStateROIC
		}
		nopatNext := lastNOPAT * (1 + g)
		return nopatNext * (1 - reinvest) / (wacc - g)

	case MethodFade:
		return fadeTerminalValue(inputs, n, lastNOPAT)

	default: // perpetuity
		return lastFCF * (1 + g) / (wacc - g)
	}
}

// fadeTerminalValue interpolates growth and ROIC linearly from the explicit
// exit values to steady state over FadeYears, then caps the path with a
// Gordon tail. The fade-year flows are discounted at exponents n+1..n+K and
// re-compounded by (1+wacc)^n so the caller's uniform terminal discounting
// recovers the path's true present value.
func fadeTerminalValue(inputs Inputs, n, lastNOPAT float64) float64 {
	k := inputs.FadeYears
	if k < 1 {
		k = 1
	}
	wacc := inputs.WACC
	gEnd := inputs.TerminalGrowthRate
	gStart := inputs.FadeStartGrowth
	roicEnd := inputs.SteadyStateROIC
	roicStart := inputs.FadeStartROIC

	nopat := lastNOPAT
	pvFade := 0.0
	for y := 1; y <= k; y++ {
		fadeFactor := 1 - float64(y)/float64(k)
		gy := gEnd + (gStart-gEnd)*fadeFactor
		roicY := roicEnd + (roicStart-roicEnd)*fadeFactor

		reinvest := 0.0
		if roicY > 0.001 {
			reinvest = gy / roicY
		}
		nopat *= 1 + gy
		fcf := nopat * (1 - reinvest)
		pvFade += fcf / math.Pow(1+wacc, n+float64(y))
	}

	nopatPost := nopat * (1 + gEnd)
	reinvestPost := 0.0
	if roicEnd > 0.001 {
		reinvestPost = gEnd / roicEnd
	}
	fcfPost := nopatPost * (1 - reinvestPost)
	tvPost := fcfPost / (wacc - gEnd)
	pvPost := tvPost / math.Pow(1+wacc, n+float64(k))

	return (pvFade + pvPost) * math.Pow(1+wacc, n)
}
