// Command valuation runs one valuation from a scenario file and prints the
// report. Scenario files hold the financial data bundle, the WACC inputs and
// optional overrides; they may be strict JSON or analyst-edited Hjson.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/core/report"
	"dcf_valuation/pkg/core/utils"
	"dcf_valuation/pkg/models"
)

// scenario is the on-disk request format.
type scenario struct {
	Symbol              string               `json:"symbol"`
	FinancialData       models.FinancialData `json:"financialData"`
	WACCInputs          models.WACCInputs    `json:"waccInputs"`
	Options             *pipeline.Options    `json:"options"`
	IncludeDistribution bool                 `json:"includeDistribution"`
}

func main() {
	scenarioPath := flag.String("scenario", "", "scenario file (json or hjson)")
	outPath := flag.String("out", "", "write the markdown report to this file")
	htmlPath := flag.String("html", "", "write the HTML report to this file")
	seed := flag.Int64("seed", 0, "seed the Monte Carlo stream (0 = time-seeded)")
	flag.Parse()

	godotenv.Load()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: valuation -scenario <file> [-out report.md] [-html report.html] [-seed N]")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*scenarioPath)
	if err != nil {
		fatal("read scenario: %v", err)
	}
	var sc scenario
	if err := utils.SmartParse(string(raw), &sc); err != nil {
		fatal("parse scenario %s: %v", *scenarioPath, err)
	}

	orch := pipeline.New()
	if *seed != 0 {
		orch = pipeline.NewSeeded(*seed)
	}

	resp, err := orch.RunValuation(context.Background(), pipeline.Request{
		Symbol:              sc.Symbol,
		FinancialData:       sc.FinancialData,
		WACCInputs:          sc.WACCInputs,
		Options:             sc.Options,
		IncludeDistribution: sc.IncludeDistribution,
	})
	if err != nil {
		fatal("valuation: %v", err)
	}

	md := report.RenderMarkdown(resp, sc.FinancialData)
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(md), 0o644); err != nil {
			fatal("write report: %v", err)
		}
		fmt.Printf("report written to %s\n", *outPath)
	} else {
		fmt.Println(md)
	}

	if *htmlPath != "" {
		html, err := report.RenderHTML(resp, sc.FinancialData)
		if err != nil {
			fatal("render html: %v", err)
		}
		if err := os.WriteFile(*htmlPath, []byte(html), 0o644); err != nil {
			fatal("write html: %v", err)
		}
		fmt.Printf("html written to %s\n", *htmlPath)
	}

	if len(resp.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "%d warnings; see the report's warning section\n", len(resp.Warnings))
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
