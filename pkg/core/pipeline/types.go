// Package pipeline is the request-level glue around the valuation core:
// prefill, caller overrides, the three terminal-method triples
// (DCF -> structural check -> Monte Carlo), the single reverse-DCF pass and
// the assembled response.
package pipeline

import (
	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/montecarlo"
	"dcf_valuation/pkg/core/validate"
	"dcf_valuation/pkg/models"
)

const (
	APIVersion  = "v1"
	CoreVersion = "2.1.0"
)

// Request is one valuation run. The bundle is consumed as-is; the caller owns
// currency normalization and TTM aggregation.
type Request struct {
	Symbol              string               `json:"symbol"`
	FinancialData       models.FinancialData `json:"financialData"`
	WACCInputs          models.WACCInputs    `json:"waccInputs"`
	Options             *Options             `json:"options,omitempty"`
	IncludeDistribution bool                 `json:"includeDistribution"`
	RequestID           string               `json:"requestId,omitempty"`
}

// Meta identifies a response.
type Meta struct {
	RequestID   string `json:"requestId"`
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	GeneratedAt string `json:"generatedAt"`
	APIVersion  string `json:"apiVersion"`
	CoreVersion string `json:"coreVersion"`
}

// MonteCarloByMethod exposes the effective simulation parameters per terminal
// method, after defaults and overrides.
type MonteCarloByMethod struct {
	Perpetuity montecarlo.Params `json:"perpetuity"`
	RoicDriven montecarlo.Params `json:"roicDriven"`
	Fade       montecarlo.Params `json:"fade"`
}

// EffectiveInputs is the assumption set after prefill, overrides and sanity
// clamps -- what the engines actually ran on.
type EffectiveInputs struct {
	DCFInputs          dcf.Inputs         `json:"dcfInputs"`
	MonteCarloByMethod MonteCarloByMethod `json:"monteCarloByMethod"`
}

// MethodResult is one terminal method's triple.
type MethodResult struct {
	DCF        dcf.Result               `json:"dcf"`
	LayerB     validate.StructuralCheck `json:"layerB"`
	MonteCarlo montecarlo.Result        `json:"monteCarlo"`
}

// Results carries all three terminal mechanisms so the caller sees the
// dispersion across modeling choices, not one opaque number.
type Results struct {
	Perpetuity MethodResult `json:"perpetuity"`
	RoicDriven MethodResult `json:"roicDriven"`
	Fade       MethodResult `json:"fade"`
}

// Validation carries the market-implied cross-check.
type Validation struct {
	LayerC validate.MarketImplied `json:"layerC"`
}

// Response is the full valuation report.
type Response struct {
	Meta            Meta            `json:"meta"`
	EffectiveInputs EffectiveInputs `json:"effectiveInputs"`
	Results         Results         `json:"results"`
	Validation      Validation      `json:"validation"`
	Warnings        []string        `json:"warnings"`
}
