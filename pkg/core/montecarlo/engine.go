package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/numutil"
	"dcf_valuation/pkg/models"
)

// maxAttempts bounds the feasibility rejection loop per iteration.
const maxAttempts = 25

// RunSimulation prices the fair-value distribution with a caller-owned random
// source, which makes the run reproducible under a seeded source. Cancellation
// is observed at the iteration boundary: on ctx cancel the aggregate of the
// samples completed so far is returned.
func RunSimulation(ctx context.Context, params Params, inputs dcf.Inputs, fin models.FinancialData, rng *rand.Rand) Result {
	chol := numutil.Cholesky(params.Correlation)

	years := inputs.ExplicitPeriodYears
	if years > len(inputs.Drivers) {
		years = len(inputs.Drivers)
	}

	samples := make([]float64, 0, params.Iterations)
	for i := 0; i < params.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if fv, ok := runIteration(params, inputs, fin, rng, chol, years); ok {
			samples = append(samples, fv)
		}
	}

	return aggregate(samples, fin.CurrentPrice)
}

// Run is the convenience entry point with a time-seeded source.
func Run(ctx context.Context, params Params, inputs dcf.Inputs, fin models.FinancialData) Result {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return RunSimulation(ctx, params, inputs, fin, rng)
}

// runIteration draws one feasible assumption set and prices it. Samples that
// fail the terminal feasibility constraints are redrawn up to maxAttempts;
// a degenerate DCF output (non-finite or non-positive) discards the
// iteration without retrying.
func runIteration(params Params, inputs dcf.Inputs, fin models.FinancialData, rng *rand.Rand, chol [][]float64, years int) (float64, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		draw, ok := drawSample(params, inputs.TerminalMethod, rng, chol, years)
		if !ok {
			continue
		}

		modified := inputs.Clone()
		modified.WACC = draw.wacc
		modified.TerminalGrowthRate = draw.terminalGrowth
		modified.SteadyStateROIC = draw.steadyStateROIC
		modified.FadeYears = draw.fadeYears
		modified.FadeStartGrowth = draw.fadeStartGrowth
		modified.FadeStartROIC = draw.fadeStartROIC
		for y := 0; y < years; y++ {
			modified.Drivers[y].RevenueGrowth = draw.growthPath[y]
			modified.Drivers[y].OperatingMargin = draw.marginPath[y]
		}

		result := dcf.Calculate(modified, fin)
		if numutil.IsFinite(result.FairValuePerShare) && result.FairValuePerShare > 0 {
			return result.FairValuePerShare, true
		}
		return 0, false
	}
	return 0, false
}

// sampleDraw is one fully drawn assumption set.
type sampleDraw struct {
	growthPath      []float64
	marginPath      []float64
	wacc            float64
	terminalGrowth  float64
	steadyStateROIC float64
	fadeYears       int
	fadeStartGrowth float64
	fadeStartROIC   float64
}

// drawSample produces one candidate draw and tests feasibility. The four
// latent variables share the Cholesky-correlated normals; terminal-model
// parameters draw independently.
func drawSample(params Params, method dcf.TerminalMethod, rng *rand.Rand, chol [][]float64, years int) (sampleDraw, bool) {
	z := []float64{
		numutil.StdNormal(rng),
		numutil.StdNormal(rng),
		numutil.StdNormal(rng),
		numutil.StdNormal(rng),
	}
	c := numutil.Correlate(chol, z)

	draw := sampleDraw{
		growthPath: samplePath(params.Growth, c[0], rng, years),
		marginPath: samplePath(params.OperatingMargin, c[1], rng, years),
	}

	// WACC: lognormal inversion reuses the correlated z so the dependence
	// structure survives the change of distribution.
	if params.WACC.Distribution == DistLognormal {
		draw.wacc = numutil.LognormalFromZ(params.WACC.Mean, params.WACC.StdDev, c[2])
	} else {
		draw.wacc = params.WACC.Mean + params.WACC.StdDev*c[2]
	}
	draw.wacc = clampBand(draw.wacc, params.WACC.Mean, params.WACC.StdDev, params.WACC.Min, params.WACC.Max)

	draw.terminalGrowth = clampBand(
		params.TerminalGrowth.Mean+params.TerminalGrowth.StdDev*c[3],
		params.TerminalGrowth.Mean, params.TerminalGrowth.StdDev,
		params.TerminalGrowth.Min, params.TerminalGrowth.Max)

	draw.steadyStateROIC = sampleScalar(params.TerminalModel.ROICDriven.SteadyStateROIC, rng)
	draw.fadeYears = int(math.Round(sampleScalar(params.TerminalModel.Fade.FadeYears, rng)))
	draw.fadeStartGrowth = sampleScalar(params.TerminalModel.Fade.FadeStartGrowth, rng)
	draw.fadeStartROIC = sampleScalar(params.TerminalModel.Fade.FadeStartROIC, rng)

	return draw, feasible(params, method, draw)
}

// samplePath evolves a per-year series: year 1 from the correlated draw,
// later years from an AR(1) shock blended with mean reversion toward that
// year's mean. Every year is clamped to its dynamic band.
func samplePath(p PathParams, z float64, rng *rand.Rand, years int) []float64 {
	path := make([]float64, years)
	if years == 0 {
		return path
	}

	mean0 := meanAt(p, 0)
	path[0] = clampBand(mean0+z*p.StdDev, mean0, p.StdDev, p.Min, p.Max)

	prevShock := z
	arTail := math.Sqrt(1 - p.YearCorrelation*p.YearCorrelation)
	for y := 1; y < years; y++ {
		shock := p.YearCorrelation*prevShock + arTail*numutil.StdNormal(rng)
		meanY := meanAt(p, y)
		blended := meanY + (path[y-1]-meanY)*(1-p.MeanReversion) + shock*p.StdDev
		path[y] = clampBand(blended, meanY, p.StdDev, p.Min, p.Max)
		prevShock = shock
	}
	return path
}

func sampleScalar(d ScalarDist, rng *rand.Rand) float64 {
	v := d.Mean + d.StdDev*numutil.StdNormal(rng)
	return clampBand(v, d.Mean, d.StdDev, d.Min, d.Max)
}

// clampBand intersects the hard [min, max] rectangle with the dynamic
// three-sigma band around the mean.
func clampBand(v, mean, stdDev, min, max float64) float64 {
	lo := math.Max(min, mean-3*stdDev)
	hi := math.Min(max, mean+3*stdDev)
	if lo > hi {
		// Mean sits outside the hard rectangle; the rectangle wins.
		return numutil.Clamp(v, min, max)
	}
	return numutil.Clamp(v, lo, hi)
}

func meanAt(p PathParams, year int) float64 {
	if year < len(p.Means) {
		return p.Means[year]
	}
	if n := len(p.Means); n > 0 {
		return p.Means[n-1]
	}
	return 0
}

// feasible applies the terminal-model constraints. Every accepted sample
// satisfies the discount spread; the reinvestment-based mechanisms also
// require the reinvestment rate inside [0, maxReinvestmentRate], and the
// fade mechanism a path that is monotone toward steady state.
func feasible(params Params, method dcf.TerminalMethod, d sampleDraw) bool {
	if d.wacc-d.terminalGrowth < params.TerminalModel.MinWaccSpread {
		return false
	}
	if method == dcf.MethodROICDriven || method == dcf.MethodFade {
		if d.steadyStateROIC <= 0 {
			return false
		}
		reinvest := d.terminalGrowth / d.steadyStateROIC
		if reinvest < 0 || reinvest > params.TerminalModel.ROICDriven.MaxReinvestmentRate {
			return false
		}
	}
	if method == dcf.MethodFade {
		if d.fadeStartGrowth < d.terminalGrowth {
			return false
		}
		if d.fadeStartROIC < d.steadyStateROIC {
			return false
		}
	}
	return true
}

// aggregate sorts the samples and produces summary statistics. Zero samples
// yields the all-zeros result, never an error.
func aggregate(samples []float64, currentPrice float64) Result {
	if len(samples) == 0 {
		return Result{ValueDistribution: []float64{}}
	}
	sort.Float64s(samples)

	below := 0
	for _, v := range samples {
		if v < currentPrice {
			below++
		}
	}

	return Result{
		ValueDistribution:      samples,
		P10:                    numutil.Percentile(samples, 0.10),
		P25:                    numutil.Percentile(samples, 0.25),
		P50:                    numutil.Percentile(samples, 0.50),
		P75:                    numutil.Percentile(samples, 0.75),
		P90:                    numutil.Percentile(samples, 0.90),
		Mean:                   numutil.Mean(samples),
		StdDev:                 numutil.StdDevPopulation(samples),
		CurrentPricePercentile: 100 * float64(below) / float64(len(samples)),
	}
}
