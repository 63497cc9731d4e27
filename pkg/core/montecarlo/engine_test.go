package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/numutil"
	"dcf_valuation/pkg/models"
)

func mcFin() models.FinancialData {
	return models.FinancialData{
		Symbol:            "TEST",
		CurrentPrice:      150,
		SharesOutstanding: 2e9,
		TTMRevenue:        1e9,
		TTMEPS:            8,
		TTMFCF:            1.8e8,
		NetCash:           2e10,
		AnalystEstimates: []models.AnalystEstimate{
			{FiscalYear: 2026, RevenueLow: 1.02e9, RevenueAvg: 1.08e9, RevenueHigh: 1.16e9, EPSLow: 7, EPSAvg: 8, EPSHigh: 9, NumAnalysts: 20},
		},
	}
}

func mcInputs() dcf.Inputs {
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
		BaseNetIncome:       1.6e8,
	}
}

func TestDefaultParamsDerivation(t *testing.T) {
	in := mcInputs()
	p := NewDefaultParams(in, nil)

	assert.Equal(t, 10000, p.Iterations)
	require.Len(t, p.Growth.Means, 5)
	assert.Equal(t, 0.08, p.Growth.Means[0])
	assert.InDelta(t, 0.08*0.35, p.Growth.StdDev, 1e-12)
	assert.InDelta(t, 0.20*0.20, p.OperatingMargin.StdDev, 1e-12)
	assert.InDelta(t, 0.09*0.15, p.WACC.StdDev, 1e-12)
	assert.Equal(t, DistLognormal, p.WACC.Distribution)
	assert.InDelta(t, 0.025*0.2, p.TerminalGrowth.StdDev, 1e-12)
	assert.Equal(t, 0.005, p.TerminalModel.MinWaccSpread)
	assert.Equal(t, 0.80, p.TerminalModel.ROICDriven.MaxReinvestmentRate)
	assert.InDelta(t, 10*0.2, p.TerminalModel.Fade.FadeYears.StdDev, 1e-12)

	// Floors kick in when the anchor is near zero
	in.Drivers[0].RevenueGrowth = 0
	in.TerminalGrowthRate = 0
	p = NewDefaultParams(in, nil)
	assert.Equal(t, 0.002, p.Growth.StdDev)
	assert.Equal(t, 0.001, p.TerminalGrowth.StdDev)
}

func TestAnalystDispersionWidensStdDev(t *testing.T) {
	in := mcInputs()
	fin := mcFin()
	p := NewDefaultParams(in, &fin)

	// (1.16e9 - 1.02e9) / 1e9 treated as a 4-sigma range
	assert.InDelta(t, 0.14/4, p.Growth.StdDev, 1e-12)
	// ((9-7)/8)/4 scaled by the year-1 margin
	assert.InDelta(t, 0.25/4*0.20, p.OperatingMargin.StdDev, 1e-12)
}

func TestSimulationSeededDeterminism(t *testing.T) {
	in := mcInputs()
	fin := mcFin()
	p := NewDefaultParams(in, &fin)
	p.Iterations = 500

	a := RunSimulation(context.Background(), p, in, fin, rand.New(rand.NewSource(7)))
	b := RunSimulation(context.Background(), p, in, fin, rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b)

	c := RunSimulation(context.Background(), p, in, fin, rand.New(rand.NewSource(8)))
	assert.NotEqual(t, a.P50, c.P50)
}

func TestDistributionInvariants(t *testing.T) {
	in := mcInputs()
	fin := mcFin()
	p := NewDefaultParams(in, &fin)
	p.Iterations = 2000

	res := RunSimulation(context.Background(), p, in, fin, rand.New(rand.NewSource(11)))
	require.NotEmpty(t, res.ValueDistribution)

	assert.True(t, res.P10 <= res.P25 && res.P25 <= res.P50 &&
		res.P50 <= res.P75 && res.P75 <= res.P90)
	assert.LessOrEqual(t, res.ValueDistribution[0], res.P10)
	assert.GreaterOrEqual(t, res.ValueDistribution[len(res.ValueDistribution)-1], res.P90)
	assert.True(t, math.IsInf(res.Mean, 0) == false && !math.IsNaN(res.Mean))
	assert.True(t, !math.IsNaN(res.StdDev) && !math.IsInf(res.StdDev, 0))

	for _, v := range res.ValueDistribution {
		assert.True(t, v > 0, "distribution value %f not strictly positive", v)
	}
	assert.True(t, res.CurrentPricePercentile >= 0 && res.CurrentPricePercentile <= 100)
}

func TestZeroIterationsReturnsZeroResult(t *testing.T) {
	in := mcInputs()
	fin := mcFin()
	p := NewDefaultParams(in, &fin)
	p.Iterations = 0

	res := RunSimulation(context.Background(), p, in, fin, rand.New(rand.NewSource(1)))
	assert.Equal(t, Result{ValueDistribution: []float64{}}, res)
}

func TestCancellationReturnsPartialAggregate(t *testing.T) {
	in := mcInputs()
	fin := mcFin()
	p := NewDefaultParams(in, &fin)
	p.Iterations = 100000

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := RunSimulation(ctx, p, in, fin, rand.New(rand.NewSource(1)))
	assert.Empty(t, res.ValueDistribution)
}

func TestFeasibilityOfFadeSamples(t *testing.T) {
	in := mcInputs()
	in.TerminalMethod = dcf.MethodFade
	fin := mcFin()
	p := NewDefaultParams(in, &fin)

	chol := cholOf(p)
	rng := rand.New(rand.NewSource(3))
	accepted := 0
	for i := 0; i < 2000; i++ {
		draw, ok := drawSample(p, dcf.MethodFade, rng, chol, 5)
		if !ok {
			continue
		}
		accepted++
		assert.GreaterOrEqual(t, draw.wacc-draw.terminalGrowth, p.TerminalModel.MinWaccSpread)
		assert.True(t, draw.steadyStateROIC > 0)
		reinvest := draw.terminalGrowth / draw.steadyStateROIC
		assert.True(t, reinvest >= 0 && reinvest <= p.TerminalModel.ROICDriven.MaxReinvestmentRate)
		assert.GreaterOrEqual(t, draw.fadeStartGrowth, draw.terminalGrowth)
		assert.GreaterOrEqual(t, draw.fadeStartROIC, draw.steadyStateROIC)
	}
	assert.True(t, accepted > 0, "no sample passed feasibility")
}

func TestSampledPathsRespectHardBounds(t *testing.T) {
	in := mcInputs()
	fin := mcFin()
	p := NewDefaultParams(in, &fin)

	chol := cholOf(p)
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 1000; i++ {
		draw, ok := drawSample(p, dcf.MethodPerpetuity, rng, chol, 5)
		if !ok {
			continue
		}
		for _, g := range draw.growthPath {
			assert.True(t, g >= p.Growth.Min && g <= p.Growth.Max)
		}
		for _, m := range draw.marginPath {
			assert.True(t, m >= p.OperatingMargin.Min && m <= p.OperatingMargin.Max)
		}
		assert.True(t, draw.wacc >= p.WACC.Min && draw.wacc <= p.WACC.Max)
		assert.True(t, draw.terminalGrowth >= p.TerminalGrowth.Min && draw.terminalGrowth <= p.TerminalGrowth.Max)
	}
}

func TestMergeOverridesDeepMerge(t *testing.T) {
	p := NewDefaultParams(mcInputs(), nil)

	merged, err := MergeOverrides(p, map[string]interface{}{
		"growth":  map[string]interface{}{"stdDev": 0.05},
		"wacc":    map[string]interface{}{"distribution": "normal"},
		"unknown": map[string]interface{}{"ignored": true},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.05, merged.Growth.StdDev)
	// Sibling fields survive the merge
	assert.Equal(t, p.Growth.Min, merged.Growth.Min)
	assert.Equal(t, p.Growth.Means, merged.Growth.Means)
	assert.Equal(t, "normal", merged.WACC.Distribution)
	assert.Equal(t, p.WACC.Mean, merged.WACC.Mean)
	// Untouched subtrees are intact
	assert.Equal(t, p.TerminalModel, merged.TerminalModel)
}

func cholOf(p Params) [][]float64 {
	return numutil.Cholesky(p.Correlation)
}
