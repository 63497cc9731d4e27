package pipeline

import (
	"encoding/json"
	"fmt"
	"math"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/numutil"
)

// Options is the recognized override tree. Absent pointers are no-ops;
// unknown keys in the Monte Carlo subtree are tolerated for forward
// compatibility.
type Options struct {
	DCF        *DCFOptions            `json:"dcf,omitempty"`
	MonteCarlo map[string]interface{} `json:"monteCarlo,omitempty"`
}

// DCFOptions patches individual assumption fields. Every present value must
// be a finite number; a non-finite value fails the request with the path
// that carried it.
type DCFOptions struct {
	WACC                *float64      `json:"wacc,omitempty"`
	TerminalGrowthRate  *float64      `json:"terminalGrowthRate,omitempty"`
	SteadyStateROIC     *float64      `json:"steadyStateROIC,omitempty"`
	FadeYears           *float64      `json:"fadeYears,omitempty"`
	FadeStartGrowth     *float64      `json:"fadeStartGrowth,omitempty"`
	FadeStartROIC       *float64      `json:"fadeStartROIC,omitempty"`
	ExplicitPeriodYears *float64      `json:"explicitPeriodYears,omitempty"`
	BaseRevenue         *float64      `json:"baseRevenue,omitempty"`
	BaseNetIncome       *float64      `json:"baseNetIncome,omitempty"`
	Drivers             []DriverPatch `json:"drivers,omitempty"`
}

// DriverPatch addresses one explicit-period year by its 1-based index.
type DriverPatch struct {
	Year            *float64 `json:"year,omitempty"`
	RevenueGrowth   *float64 `json:"revenueGrowth,omitempty"`
	GrossMargin     *float64 `json:"grossMargin,omitempty"`
	OperatingMargin *float64 `json:"operatingMargin,omitempty"`
	TaxRate         *float64 `json:"taxRate,omitempty"`
	DAPercent       *float64 `json:"daPercent,omitempty"`
	CapexPercent    *float64 `json:"capexPercent,omitempty"`
	WCChangePercent *float64 `json:"wcChangePercent,omitempty"`
}

// OverrideError is the only hard failure the orchestrator produces: a
// recognized override that is structurally invalid. Path names the exact
// field, e.g. "dcf.drivers[year=3].operatingMargin".
type OverrideError struct {
	Path   string
	Reason string
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("invalid override at %s: %s", e.Path, e.Reason)
}

// applyDCFOverrides patches a cloned input set in place. Values are clamped
// into their legal ranges; only non-finite values and an out-of-range
// explicit period fail the request.
func applyDCFOverrides(inputs *dcf.Inputs, opts *DCFOptions, warnings *[]string) error {
	if opts == nil {
		return nil
	}

	setClamped := func(dst *float64, v *float64, path string, lo, hi float64) error {
		if v == nil {
			return nil
		}
		if !numutil.IsFinite(*v) {
			return &OverrideError{Path: path, Reason: "not a finite number"}
		}
		*dst = numutil.Clamp(*v, lo, hi)
		return nil
	}

	if err := setClamped(&inputs.WACC, opts.WACC, "dcf.wacc", 0.02, 0.30); err != nil {
		return err
	}
	if err := setClamped(&inputs.TerminalGrowthRate, opts.TerminalGrowthRate, "dcf.terminalGrowthRate", -0.05, 0.15); err != nil {
		return err
	}
	if err := setClamped(&inputs.SteadyStateROIC, opts.SteadyStateROIC, "dcf.steadyStateROIC", 0.001, 1); err != nil {
		return err
	}
	if opts.FadeYears != nil {
		if !numutil.IsFinite(*opts.FadeYears) {
			return &OverrideError{Path: "dcf.fadeYears", Reason: "not a finite number"}
		}
		inputs.FadeYears = int(numutil.Clamp(math.Round(*opts.FadeYears), 1, 30))
	}
	if err := setClamped(&inputs.FadeStartGrowth, opts.FadeStartGrowth, "dcf.fadeStartGrowth", -0.05, 0.50); err != nil {
		return err
	}
	if err := setClamped(&inputs.FadeStartROIC, opts.FadeStartROIC, "dcf.fadeStartROIC", 0.001, 1); err != nil {
		return err
	}
	if opts.ExplicitPeriodYears != nil {
		v := *opts.ExplicitPeriodYears
		if !numutil.IsFinite(v) {
			return &OverrideError{Path: "dcf.explicitPeriodYears", Reason: "not a finite number"}
		}
		years := int(math.Round(v))
		if years < 1 || years > len(inputs.Drivers) {
			return &OverrideError{
				Path:   "dcf.explicitPeriodYears",
				Reason: fmt.Sprintf("must be in [1, %d], got %d", len(inputs.Drivers), years),
			}
		}
		inputs.ExplicitPeriodYears = years
	}
	if opts.BaseRevenue != nil {
		if !numutil.IsFinite(*opts.BaseRevenue) {
			return &OverrideError{Path: "dcf.baseRevenue", Reason: "not a finite number"}
		}
		v := *opts.BaseRevenue
		if v < 0 {
			*warnings = append(*warnings, fmt.Sprintf("baseRevenue override %.2f is negative; using 0", v))
			v = 0
		}
		inputs.BaseRevenue = v
	}
	if opts.BaseNetIncome != nil {
		if !numutil.IsFinite(*opts.BaseNetIncome) {
			return &OverrideError{Path: "dcf.baseNetIncome", Reason: "not a finite number"}
		}
		inputs.BaseNetIncome = *opts.BaseNetIncome
	}

	return applyDriverPatches(inputs, opts.Drivers, warnings)
}

func applyDriverPatches(inputs *dcf.Inputs, patches []DriverPatch, warnings *[]string) error {
	for _, patch := range patches {
		if patch.Year == nil || !numutil.IsFinite(*patch.Year) {
			return &OverrideError{Path: "dcf.drivers[].year", Reason: "missing or non-finite year index"}
		}
		year := int(math.Round(*patch.Year))
		if year < 1 || year > len(inputs.Drivers) {
			// Out-of-range entries warn and drop rather than failing the
			// request; the original behaved this way and callers depend on it.
			*warnings = append(*warnings, fmt.Sprintf(
				"driver override for year %d ignored: explicit period has %d years", year, len(inputs.Drivers)))
			continue
		}
		d := &inputs.Drivers[year-1]

		set := func(dst *float64, v *float64, field string) error {
			if v == nil {
				return nil
			}
			if !numutil.IsFinite(*v) {
				return &OverrideError{
					Path:   fmt.Sprintf("dcf.drivers[year=%d].%s", year, field),
					Reason: "not a finite number",
				}
			}
			*dst = *v
			return nil
		}

		if err := set(&d.RevenueGrowth, patch.RevenueGrowth, "revenueGrowth"); err != nil {
			return err
		}
		if err := set(&d.GrossMargin, patch.GrossMargin, "grossMargin"); err != nil {
			return err
		}
		if err := set(&d.OperatingMargin, patch.OperatingMargin, "operatingMargin"); err != nil {
			return err
		}
		if err := set(&d.TaxRate, patch.TaxRate, "taxRate"); err != nil {
			return err
		}
		if err := set(&d.DAPercent, patch.DAPercent, "daPercent"); err != nil {
			return err
		}
		if err := set(&d.CapexPercent, patch.CapexPercent, "capexPercent"); err != nil {
			return err
		}
		if err := set(&d.WCChangePercent, patch.WCChangePercent, "wcChangePercent"); err != nil {
			return err
		}
	}
	return nil
}

// monteCarloIterations resolves the iterations override ahead of the deep
// merge so the clamp warning can cite the requested value. Returns the
// effective iteration count and the override map stripped of the key.
func monteCarloIterations(defaultIterations int, overrides map[string]interface{}, warnings *[]string) (int, map[string]interface{}, error) {
	if overrides == nil {
		return defaultIterations, nil, nil
	}
	raw, ok := overrides["iterations"]
	if !ok {
		return defaultIterations, overrides, nil
	}

	rest := make(map[string]interface{}, len(overrides))
	for k, v := range overrides {
		if k != "iterations" {
			rest[k] = v
		}
	}

	v, ok := toFloat(raw)
	if !ok || !numutil.IsFinite(v) {
		return 0, nil, &OverrideError{Path: "monteCarlo.iterations", Reason: "not a finite number"}
	}
	requested := int(math.Round(v))
	iterations := requested
	if requested < 1 {
		iterations = 1
	} else if requested > 20000 {
		iterations = 20000
	}
	if iterations != requested {
		*warnings = append(*warnings, fmt.Sprintf(
			"monteCarlo.iterations %d clamped to %d", requested, iterations))
	}
	return iterations, rest, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
