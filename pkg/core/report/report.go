// Package report renders a valuation response into a markdown report and,
// through Goldmark, into standalone HTML. The report is a human surface over
// the response contract; nothing downstream parses it.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"dcf_valuation/pkg/core/dcf"
	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/utils"
	"dcf_valuation/pkg/models"
)

// RenderMarkdown builds the full report.
func RenderMarkdown(resp *pipeline.Response, fin models.FinancialData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Valuation Report: %s (%s)\n\n", resp.Meta.CompanyName, resp.Meta.Symbol)
	fmt.Fprintf(&b, "Generated %s | core %s | request %s\n\n",
		resp.Meta.GeneratedAt, resp.Meta.CoreVersion, resp.Meta.RequestID)
	fmt.Fprintf(&b, "Current price: %.2f %s\n\n", fin.CurrentPrice, fin.Currency)

	b.WriteString("## Fair value by terminal mechanism\n\n")
	b.WriteString("| Method | Fair value / share | vs price | TV share of EV | MC median (p50) |\n")
	b.WriteString("|---|---|---|---|---|\n")
	writeMethodRow(&b, "Gordon perpetuity", resp.Results.Perpetuity, fin.CurrentPrice)
	writeMethodRow(&b, "ROIC-driven", resp.Results.RoicDriven, fin.CurrentPrice)
	writeMethodRow(&b, "Fade to steady state", resp.Results.Fade, fin.CurrentPrice)
	b.WriteString("\n")

	b.WriteString("## Monte Carlo distribution (perpetuity)\n\n")
	mc := resp.Results.Perpetuity.MonteCarlo
	b.WriteString("| p10 | p25 | p50 | p75 | p90 | mean | stdev | price percentile |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.1f |\n\n",
		mc.P10, mc.P25, mc.P50, mc.P75, mc.P90, mc.Mean, mc.StdDev, mc.CurrentPricePercentile)

	writeStructuralSection(&b, resp)
	writeMarketImpliedSection(&b, resp)
	writeSensitivitySection(&b, resp, fin)

	if len(resp.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range resp.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	return utils.CleanMarkdown(b.String()) + "\n"
}

// RenderHTML converts the markdown report into an HTML document body.
func RenderHTML(resp *pipeline.Response, fin models.FinancialData) (string, error) {
	md := RenderMarkdown(resp, fin)
	var buf bytes.Buffer
	// GFM extension for the summary and sensitivity tables.
	converter := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := converter.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}
	return buf.String(), nil
}

func writeMethodRow(b *strings.Builder, label string, r pipeline.MethodResult, price float64) {
	upside := 0.0
	if price > 0 {
		upside = (r.DCF.FairValuePerShare/price - 1) * 100
	}
	fmt.Fprintf(b, "| %s | %.2f | %+.1f%% | %.1f%% | %.2f |\n",
		label, r.DCF.FairValuePerShare, upside, r.DCF.TerminalValuePercent, r.MonteCarlo.P50)
}

func writeStructuralSection(b *strings.Builder, resp *pipeline.Response) {
	lb := resp.Results.Perpetuity.LayerB
	b.WriteString("## Structural consistency\n\n")
	fmt.Fprintf(b, "- Growth consistency: assumed %.1f%%, fundable %.1f%% (%s)\n",
		lb.GrowthConsistency.AssumedGrowth*100, lb.GrowthConsistency.ImpliedGrowth*100,
		passFail(lb.GrowthConsistency.IsValid))
	fmt.Fprintf(b, "- CapEx/D&A: %.2f against target %.2f (%s)\n",
		lb.CapexDARatio.Current, lb.CapexDARatio.Target, passFail(lb.CapexDARatio.IsReasonable))
	fmt.Fprintf(b, "- FCF/NOPAT conversion: %.2f in band [%.1f, %.1f] (%s)\n\n",
		lb.FCFQuality.FCFToNI, lb.FCFQuality.IndustryRange[0], lb.FCFQuality.IndustryRange[1],
		passFail(lb.FCFQuality.IsReasonable))
}

func writeMarketImpliedSection(b *strings.Builder, resp *pipeline.Response) {
	mi := resp.Validation.LayerC
	b.WriteString("## Market-implied assumptions (reverse DCF)\n\n")
	fmt.Fprintf(b, "- Implied perpetual growth: %.2f%%\n", mi.ImpliedGrowthRate*100)
	fmt.Fprintf(b, "- Implied steady-state margin: %.2f%%\n", mi.ImpliedSteadyStateMargin*100)
	fmt.Fprintf(b, "- Implied ROIC: %.2f%%\n", mi.ImpliedROIC*100)
	fmt.Fprintf(b, "- Implied fade speed: %.2f\n", mi.ImpliedFadeSpeed)
	fmt.Fprintf(b, "- Historical frequency score: %.0f/50\n\n", mi.HistoricalFrequency)

	var flags []string
	if mi.Feasibility.MarginExceedsIndustryMax {
		flags = append(flags, "implied margin exceeds the industry error threshold")
	}
	if mi.Feasibility.ROICExceedsHistoricalMax {
		flags = append(flags, "implied ROIC exceeds the industry error threshold")
	}
	if mi.Feasibility.GrowthExceedsHistoricalFrequency {
		flags = append(flags, "implied growth is rarely sustained historically")
	}
	if len(flags) > 0 {
		b.WriteString("Feasibility flags:\n\n")
		for _, f := range flags {
			fmt.Fprintf(b, "- %s\n", f)
		}
		b.WriteString("\n")
	}
}

func writeSensitivitySection(b *strings.Builder, resp *pipeline.Response, fin models.FinancialData) {
	deltas := []float64{-0.01, -0.005, 0, 0.005, 0.01}
	grid := dcf.Sensitivity(resp.EffectiveInputs.DCFInputs, fin, deltas, deltas)

	b.WriteString("## Sensitivity (fair value per share, perpetuity)\n\n")
	b.WriteString("| WACC \\ g |")
	for _, g := range grid.GrowthRates {
		fmt.Fprintf(b, " %.2f%% |", g*100)
	}
	b.WriteString("\n|---|")
	for range grid.GrowthRates {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for i, w := range grid.WACCs {
		fmt.Fprintf(b, "| %.2f%% |", w*100)
		for _, v := range grid.FairValues[i] {
			if v == 0 {
				b.WriteString(" n/a |")
			} else {
				fmt.Fprintf(b, " %.2f |", v)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}
