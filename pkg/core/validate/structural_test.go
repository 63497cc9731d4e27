package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/models"
)

func finFixture() models.FinancialData {
	return models.FinancialData{
		Symbol:             "TEST",
		CurrentPrice:       150,
		SharesOutstanding:  2e9,
		TTMRevenue:         1e9,
		TTMOperatingIncome: 2e8,
		TTMFCF:             1.8e8,
		NetCash:            2e10,
		HistoricalROIC:     0.15,
		PE:                 18.75,
		Sector:             "Technology",
		Industry:           "Software—Application",
	}
}

func inputsFixture() dcf.Inputs {
	d := dcf.ValueDrivers{
		RevenueGrowth:   0.08,
		GrossMargin:     0.40,
		OperatingMargin: 0.20,
		TaxRate:         0.21,
		DAPercent:       0.03,
		CapexPercent:    0.04,
		WCChangePercent: 0.01,
	}
	return dcf.Inputs{
		Symbol:              "TEST",
		ExplicitPeriodYears: 5,
		Drivers:             []dcf.ValueDrivers{d, d, d, d, d},
		TerminalMethod:      dcf.MethodPerpetuity,
		TerminalGrowthRate:  0.025,
		SteadyStateROIC:     0.15,
		FadeYears:           10,
		FadeStartGrowth:     0.08,
		FadeStartROIC:       0.15,
		WACC:                0.09,
		BaseRevenue:         1e9,
	}
}

func TestGrowthConsistencyNumbers(t *testing.T) {
	in := inputsFixture()
	fin := finFixture()
	result := dcf.Calculate(in, fin)

	check := RunStructuralCheck(in, result, fin)

	// Reinvestment: (0.04 - 0.03 + 0.01) / (0.20*0.79) = 0.02/0.158
	reinvest := 0.02 / (0.20 * 0.79)
	wantImplied := 0.15 * reinvest
	assert.InDelta(t, wantImplied, check.GrowthConsistency.ImpliedGrowth, 1e-9)
	assert.InDelta(t, 0.08, check.GrowthConsistency.AssumedGrowth, 1e-12)

	dev := 0.08 - wantImplied
	if dev < 0 {
		dev = -dev
	}
	assert.InDelta(t, dev, check.GrowthConsistency.Deviation, 1e-9)
	// ~6.1% apart, past the 5% line
	assert.False(t, check.GrowthConsistency.IsValid)
	assert.True(t, check.HasWarnings)
}

func TestCapexDARatioBand(t *testing.T) {
	in := inputsFixture()
	fin := finFixture()
	result := dcf.Calculate(in, fin)

	check := RunStructuralCheck(in, result, fin)
	assert.InDelta(t, 0.04/0.03, check.CapexDARatio.Current, 1e-12)
	assert.Equal(t, 1.0, check.CapexDARatio.Target)
	assert.True(t, check.CapexDARatio.IsReasonable) // 1.33 inside [0.8, 1.5]

	in.Drivers[4].CapexPercent = 0.08
	result = dcf.Calculate(in, fin)
	check = RunStructuralCheck(in, result, fin)
	assert.False(t, check.CapexDARatio.IsReasonable)

	in.Drivers[4].DAPercent = 0
	result = dcf.Calculate(in, fin)
	check = RunStructuralCheck(in, result, fin)
	assert.Equal(t, 0.0, check.CapexDARatio.Current)
}

func TestFCFQualityUsesLastProjectionYear(t *testing.T) {
	in := inputsFixture()
	fin := finFixture()
	result := dcf.Calculate(in, fin)

	check := RunStructuralCheck(in, result, fin)
	last := result.Projections[len(result.Projections)-1]
	assert.InDelta(t, last.FCF/last.NOPAT, check.FCFQuality.FCFToNI, 1e-12)
	assert.Equal(t, [2]float64{0.6, 1.2}, check.FCFQuality.IndustryRange)
	assert.True(t, check.FCFQuality.IsReasonable)
}

func TestTerminalWarnings(t *testing.T) {
	in := inputsFixture()
	fin := finFixture()

	in.TerminalGrowthRate = 0.05 // above the 4% long-run line
	result := dcf.Calculate(in, fin)
	check := RunStructuralCheck(in, result, fin)
	require.True(t, check.HasWarnings)
	assert.True(t, containsSubstring(check.Warnings, "GDP"))

	in.TerminalGrowthRate = in.WACC
	result = dcf.Calculate(in, fin)
	check = RunStructuralCheck(in, result, fin)
	assert.True(t, containsSubstring(check.Warnings, "not below WACC"))
}

func TestROICOutlierWarning(t *testing.T) {
	in := inputsFixture()
	fin := finFixture()
	fin.HistoricalROIC = 0.95 // far beyond the industry error threshold

	result := dcf.Calculate(in, fin)
	check := RunStructuralCheck(in, result, fin)
	assert.True(t, containsSubstring(check.Warnings, "industry norm"))
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
