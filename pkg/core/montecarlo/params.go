// Package montecarlo samples correlated driver paths over the DCF engine and
// aggregates the resulting fair-value distribution. Four latent variables --
// first-year revenue growth, first-year operating margin, WACC and terminal
// growth -- are drawn jointly through a Cholesky factor; growth and margin
// then propagate through the explicit period under an AR(1) shock with mean
// reversion. Terminal-model parameters are drawn independently and every
// sample is rejection-tested against terminal feasibility before pricing.
package montecarlo

import (
	"encoding/json"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/numutil"
	"dcf_valuation/pkg/models"
)

// DistLognormal marks a scalar distribution as lognormal; anything else is
// treated as normal.
const DistLognormal = "lognormal"

// PathParams drives a per-year sampled series (growth or margin).
type PathParams struct {
	Means           []float64 `json:"means"`
	StdDev          float64   `json:"stdDev"`
	Min             float64   `json:"min"`
	Max             float64   `json:"max"`
	YearCorrelation float64   `json:"yearCorrelation"`
	MeanReversion   float64   `json:"meanReversion"`
}

// ScalarDist drives a single sampled quantity.
type ScalarDist struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"stdDev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Distribution string  `json:"distribution,omitempty"`
}

// ROICDrivenParams configures terminal sampling for the ROIC-driven model.
type ROICDrivenParams struct {
	SteadyStateROIC     ScalarDist `json:"steadyStateROIC"`
	MaxReinvestmentRate float64    `json:"maxReinvestmentRate"`
}

// FadeParams configures terminal sampling for the fade model.
type FadeParams struct {
	FadeYears       ScalarDist `json:"fadeYears"`
	FadeStartGrowth ScalarDist `json:"fadeStartGrowth"`
	FadeStartROIC   ScalarDist `json:"fadeStartROIC"`
}

// TerminalModelParams bundles terminal-mechanism sampling and feasibility.
type TerminalModelParams struct {
	MinWaccSpread float64          `json:"minWaccSpread"`
	ROICDriven    ROICDrivenParams `json:"roicDriven"`
	Fade          FadeParams       `json:"fade"`
}

// Params is the full simulation configuration. The correlation matrix binds
// the variables in fixed order [growth, margin, wacc, terminalGrowth].
type Params struct {
	Iterations      int                 `json:"iterations"`
	Growth          PathParams          `json:"growth"`
	OperatingMargin PathParams          `json:"operatingMargin"`
	WACC            ScalarDist          `json:"wacc"`
	TerminalGrowth  ScalarDist          `json:"terminalGrowth"`
	Correlation     [][]float64         `json:"correlation"`
	TerminalModel   TerminalModelParams `json:"terminalModel"`
}

// Result is the aggregated distribution. ValueDistribution may be emptied by
// the orchestrator when the caller did not ask for the full sample.
type Result struct {
	ValueDistribution      []float64 `json:"valueDistribution"`
	P10                    float64   `json:"p10"`
	P25                    float64   `json:"p25"`
	P50                    float64   `json:"p50"`
	P75                    float64   `json:"p75"`
	P90                    float64   `json:"p90"`
	Mean                   float64   `json:"mean"`
	StdDev                 float64   `json:"stdDev"`
	CurrentPricePercentile float64   `json:"currentPricePercentile"`
}

// defaultCorrelation binds [growth, margin, wacc, terminalGrowth]. Growth and
// margin move together, both move against the discount rate, and long-run
// growth echoes near-term growth.
func defaultCorrelation() [][]float64 {
	return [][]float64{
		{1, 0.35, -0.20, 0.45},
		{0.35, 1, -0.15, 0.25},
		{-0.20, -0.15, 1, -0.10},
		{0.45, 0.25, -0.10, 1},
	}
}

// NewDefaultParams derives the simulation configuration from an assumption
// set, widening the growth and margin dispersion from the analyst panel when
// a bundle is supplied.
func NewDefaultParams(inputs dcf.Inputs, fin *models.FinancialData) Params {
	years := inputs.ExplicitPeriodYears
	if years > len(inputs.Drivers) {
		years = len(inputs.Drivers)
	}

	growthMeans := make([]float64, years)
	marginMeans := make([]float64, years)
	for i := 0; i < years; i++ {
		growthMeans[i] = inputs.Drivers[i].RevenueGrowth
		marginMeans[i] = inputs.Drivers[i].OperatingMargin
	}
	g1 := 0.0
	m1 := 0.0
	if years > 0 {
		g1 = growthMeans[0]
		m1 = marginMeans[0]
	}

	p := Params{
		Iterations: 10000,
		Growth: PathParams{
			Means:           growthMeans,
			StdDev:          floor(abs(g1)*0.35, 0.002),
			Min:             -0.15,
			Max:             0.30,
			YearCorrelation: 0.5,
			MeanReversion:   0.35,
		},
		OperatingMargin: PathParams{
			Means:           marginMeans,
			StdDev:          floor(abs(m1)*0.20, 0.002),
			Min:             0.01,
			Max:             0.60,
			YearCorrelation: 0.5,
			MeanReversion:   0.35,
		},
		WACC: ScalarDist{
			Mean:         inputs.WACC,
			StdDev:       floor(abs(inputs.WACC)*0.15, 0.0015),
			Min:          0.02,
			Max:          0.20,
			Distribution: DistLognormal,
		},
		TerminalGrowth: ScalarDist{
			Mean:   inputs.TerminalGrowthRate,
			StdDev: floor(abs(inputs.TerminalGrowthRate)*0.2, 0.001),
			Min:    0,
			Max:    0.06,
		},
		Correlation: defaultCorrelation(),
		TerminalModel: TerminalModelParams{
			MinWaccSpread: 0.005,
			ROICDriven: ROICDrivenParams{
				SteadyStateROIC: ScalarDist{
					Mean:   inputs.SteadyStateROIC,
					StdDev: floor(abs(inputs.SteadyStateROIC)*0.25, 0.005),
					Min:    0.03,
					Max:    0.50,
				},
				MaxReinvestmentRate: 0.80,
			},
			Fade: FadeParams{
				FadeYears: ScalarDist{
					Mean:   float64(inputs.FadeYears),
					StdDev: floor(abs(float64(inputs.FadeYears))*0.2, 1),
					Min:    3,
					Max:    20,
				},
				FadeStartGrowth: ScalarDist{
					Mean:   inputs.FadeStartGrowth,
					StdDev: floor(abs(inputs.FadeStartGrowth)*0.2, 0.005),
					Min:    0,
					Max:    0.40,
				},
				FadeStartROIC: ScalarDist{
					Mean:   inputs.FadeStartROIC,
					StdDev: floor(abs(inputs.FadeStartROIC)*0.2, 0.005),
					Min:    0.03,
					Max:    0.60,
				},
			},
		},
	}

	if fin != nil {
		applyAnalystDispersion(&p, *fin, g1, m1)
	}
	return p
}

// applyAnalystDispersion widens the sampled dispersion to the spread of the
// FY1 analyst panel, treating the high-low range as roughly four standard
// deviations.
func applyAnalystDispersion(p *Params, fin models.FinancialData, g1, m1 float64) {
	if len(fin.AnalystEstimates) == 0 {
		return
	}
	fy1 := fin.AnalystEstimates[0]

	if fy1.RevenueHigh > 0 && fy1.RevenueLow > 0 && fy1.RevenueAvg > 0 && fin.TTMRevenue > 0 {
		growthRange := (fy1.RevenueHigh - fy1.RevenueLow) / fin.TTMRevenue
		p.Growth.StdDev = numutil.Clamp(growthRange/4, 0.002, abs(g1)*0.8)
	}
	if fy1.EPSHigh > 0 && fy1.EPSLow > 0 && fy1.EPSAvg > 0 {
		epsRange := (fy1.EPSHigh - fy1.EPSLow) / fy1.EPSAvg
		p.OperatingMargin.StdDev = numutil.Clamp(epsRange/4*abs(m1), 0.002, abs(m1)*0.8)
	}
}

// MergeOverrides applies a recursive patch to the parameter tree: object
// nodes merge, arrays and scalars replace, unknown keys are tolerated.
// Iterations is not clamped here (an "iterations" key is merged like any
// other); the orchestrator strips it from the overrides and clamps it
// separately so the clamp warning can cite the requested value.
func MergeOverrides(p Params, overrides map[string]interface{}) (Params, error) {
	if len(overrides) == 0 {
		return p, nil
	}
	base, err := json.Marshal(p)
	if err != nil {
		return p, err
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(base, &tree); err != nil {
		return p, err
	}
	deepMerge(tree, overrides)
	merged, err := json.Marshal(tree)
	if err != nil {
		return p, err
	}
	var out Params
	if err := json.Unmarshal(merged, &out); err != nil {
		return p, err
	}
	return out, nil
}

func deepMerge(dst, src map[string]interface{}) {
	for k, v := range src {
		if sub, ok := v.(map[string]interface{}); ok {
			if existing, ok := dst[k].(map[string]interface{}); ok {
				deepMerge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func floor(v, lo float64) float64 {
	if v < lo {
		return lo
	}
	return v
}
