package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/montecarlo"
	"dcf_valuation/pkg/core/prefill"
	"dcf_valuation/pkg/core/validate"
)

// Orchestrator wires the valuation components into one request flow. It is
// stateless across requests; the random source factory exists so tests can
// pin the Monte Carlo stream.
type Orchestrator struct {
	newRand func() *rand.Rand
	now     func() time.Time
}

// New returns an orchestrator with a time-seeded random source per request.
func New() *Orchestrator {
	return &Orchestrator{
		newRand: func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		now:     time.Now,
	}
}

// NewSeeded pins the random stream: each request draws a fresh generator
// seeded from the given seed, so identical requests reproduce identical
// distributions.
func NewSeeded(seed int64) *Orchestrator {
	return &Orchestrator{
		newRand: func() *rand.Rand { return rand.New(rand.NewSource(seed)) },
		now:     time.Now,
	}
}

// RunValuation executes the full flow: prefill, overrides, sanity clamps,
// the three terminal-method triples, one reverse-DCF pass, response assembly.
// The only error path is a structurally invalid override; every numeric
// problem surfaces through the warnings list instead.
func (o *Orchestrator) RunValuation(ctx context.Context, req Request) (*Response, error) {
	symbol := req.Symbol
	if symbol == "" {
		symbol = req.FinancialData.Symbol
	}

	// 1. Prefill base inputs; the audit's warnings seed the request warnings.
	inputs, audit := prefill.Prefill(symbol, req.FinancialData, req.WACCInputs)
	warnings := append([]string{}, audit.Warnings...)

	// 2. Caller overrides on a clone; hard failure on structural invalidity.
	effective := inputs.Clone()
	if req.Options != nil {
		if err := applyDCFOverrides(&effective, req.Options.DCF, &warnings); err != nil {
			return nil, err
		}
	}

	// 3. Sanity clamps, always applied post-override.
	if effective.TerminalGrowthRate >= effective.WACC {
		requested := effective.TerminalGrowthRate
		effective.TerminalGrowthRate = effective.WACC - 0.005
		warnings = append(warnings, fmt.Sprintf(
			"terminal growth %.4f is not below WACC %.4f; reduced to %.4f",
			requested, effective.WACC, effective.TerminalGrowthRate))
	}
	if effective.FadeStartGrowth < effective.TerminalGrowthRate {
		requested := effective.FadeStartGrowth
		effective.FadeStartGrowth = effective.TerminalGrowthRate
		warnings = append(warnings, fmt.Sprintf(
			"fade start growth %.4f raised to terminal growth %.4f; the fade path cannot start below its end state",
			requested, effective.FadeStartGrowth))
	}

	// 4. Monte Carlo overrides are shared across the three methods; the
	// iterations clamp is resolved once so its warning appears once.
	var mcOverrides map[string]interface{}
	if req.Options != nil {
		mcOverrides = req.Options.MonteCarlo
	}
	baseParams := montecarlo.NewDefaultParams(effective, &req.FinancialData)
	iterations, restOverrides, err := monteCarloIterations(baseParams.Iterations, mcOverrides, &warnings)
	if err != nil {
		return nil, err
	}

	// 5. The three terminal-method triples.
	methods := []dcf.TerminalMethod{dcf.MethodPerpetuity, dcf.MethodROICDriven, dcf.MethodFade}
	results := make(map[dcf.TerminalMethod]MethodResult, len(methods))
	paramsByMethod := make(map[dcf.TerminalMethod]montecarlo.Params, len(methods))
	for _, method := range methods {
		in := effective.Clone()
		in.TerminalMethod = method

		dcfResult := dcf.Calculate(in, req.FinancialData)
		layerB := validate.RunStructuralCheck(in, dcfResult, req.FinancialData)

		params := montecarlo.NewDefaultParams(in, &req.FinancialData)
		params, err := montecarlo.MergeOverrides(params, restOverrides)
		if err != nil {
			return nil, &OverrideError{Path: "monteCarlo", Reason: err.Error()}
		}
		params.Iterations = iterations

		mcResult := montecarlo.RunSimulation(ctx, params, in, req.FinancialData, o.newRand())
		if !req.IncludeDistribution {
			mcResult.ValueDistribution = []float64{}
		}

		results[method] = MethodResult{DCF: dcfResult, LayerB: layerB, MonteCarlo: mcResult}
		paramsByMethod[method] = params
	}

	// 6. One reverse-DCF pass against the effective discount rate.
	layerC := validate.CalculateMarketImplied(req.FinancialData, effective.WACC, effective)

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return &Response{
		Meta: Meta{
			RequestID:   requestID,
			Symbol:      symbol,
			CompanyName: req.FinancialData.CompanyName,
			GeneratedAt: o.now().UTC().Format(time.RFC3339),
			APIVersion:  APIVersion,
			CoreVersion: CoreVersion,
		},
		EffectiveInputs: EffectiveInputs{
			DCFInputs: effective,
			MonteCarloByMethod: MonteCarloByMethod{
				Perpetuity: paramsByMethod[dcf.MethodPerpetuity],
				RoicDriven: paramsByMethod[dcf.MethodROICDriven],
				Fade:       paramsByMethod[dcf.MethodFade],
			},
		},
		Results: Results{
			Perpetuity: results[dcf.MethodPerpetuity],
			RoicDriven: results[dcf.MethodROICDriven],
			Fade:       results[dcf.MethodFade],
		},
		Validation: Validation{LayerC: layerC},
		Warnings:   warnings,
	}, nil
}
