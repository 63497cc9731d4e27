package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/models"
)

func reportFixture(t *testing.T) (*pipeline.Response, models.FinancialData) {
	t.Helper()
	fin := models.FinancialData{
		Symbol:                    "TEST",
		CompanyName:               "Test Corp",
		Currency:                  "USD",
		CurrentPrice:              150,
		MarketCap:                 3e11,
		SharesOutstanding:         2e9,
		Beta:                      1.1,
		TTMRevenue:                1e9,
		TTMOperatingIncome:        2e8,
		TTMNetIncome:              1.6e8,
		TTMEPS:                    8,
		TTMFCF:                    1.8e8,
		InterestExpense:           1.5e9,
		OperatingMargin:           0.20,
		GrossMargin:               0.40,
		LatestAnnualRevenue:       1e9,
		LatestAnnualNetIncome:     1.6e8,
		TotalCash:                 5e10,
		TotalDebt:                 3e10,
		NetCash:                   2e10,
		HistoricalDAPercent:       0.03,
		HistoricalCapexPercent:    0.04,
		HistoricalWCChangePercent: 0.01,
		HistoricalROIC:            0.15,
		EffectiveTaxRate:          0.21,
		PE:                        18.75,
		Sector:                    "Technology",
		Industry:                  "Software—Application",
	}
	resp, err := pipeline.NewSeeded(1).RunValuation(context.Background(), pipeline.Request{
		FinancialData: fin,
		WACCInputs:    models.WACCInputs{RiskFreeRate: 0.045, MarketRiskPremium: 0.05},
		Options: &pipeline.Options{
			MonteCarlo: map[string]interface{}{"iterations": 200.0},
		},
	})
	require.NoError(t, err)
	return resp, fin
}

func TestRenderMarkdownSections(t *testing.T) {
	resp, fin := reportFixture(t)
	md := RenderMarkdown(resp, fin)

	assert.Contains(t, md, "# Valuation Report: Test Corp (TEST)")
	assert.Contains(t, md, "## Fair value by terminal mechanism")
	assert.Contains(t, md, "Gordon perpetuity")
	assert.Contains(t, md, "ROIC-driven")
	assert.Contains(t, md, "Fade to steady state")
	assert.Contains(t, md, "## Market-implied assumptions (reverse DCF)")
	assert.Contains(t, md, "## Sensitivity (fair value per share, perpetuity)")
}

func TestRenderHTML(t *testing.T) {
	resp, fin := reportFixture(t)
	html, err := RenderHTML(resp, fin)
	require.NoError(t, err)

	assert.True(t, strings.Contains(html, "<h1") || strings.Contains(html, "<h1>"))
	assert.Contains(t, html, "<table>")
}
