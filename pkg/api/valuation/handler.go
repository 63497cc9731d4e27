// Package valuation exposes the valuation core over HTTP. Transport only:
// decode, validate, delegate to the pipeline, encode. No authentication and
// no persistence live here.
package valuation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"dcf_valuation/pkg/core/pipeline"
	"dcf_valuation/pkg/models"
)

// RunRequest is the HTTP payload for a valuation run.
type RunRequest struct {
	Symbol              string               `json:"symbol" validate:"required,max=12"`
	FinancialData       models.FinancialData `json:"financialData" validate:"required"`
	WACCInputs          models.WACCInputs    `json:"waccInputs"`
	Options             *pipeline.Options    `json:"options,omitempty"`
	IncludeDistribution bool                 `json:"includeDistribution"`
	RequestID           string               `json:"requestId,omitempty"`
}

// Handler serves the valuation endpoints.
type Handler struct {
	orch     *pipeline.Orchestrator
	logger   *zap.Logger
	validate *validator.Validate
}

func NewHandler(orch *pipeline.Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{
		orch:     orch,
		logger:   logger,
		validate: validator.New(),
	}
}

// HandleRun runs a full valuation: POST /api/valuation/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	// CORS
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.orch.RunValuation(r.Context(), pipeline.Request{
		Symbol:              req.Symbol,
		FinancialData:       req.FinancialData,
		WACCInputs:          req.WACCInputs,
		Options:             req.Options,
		IncludeDistribution: req.IncludeDistribution,
		RequestID:           req.RequestID,
	})
	if err != nil {
		var overrideErr *pipeline.OverrideError
		if errors.As(err, &overrideErr) {
			h.logger.Warn("rejected override",
				zap.String("symbol", req.Symbol),
				zap.String("path", overrideErr.Path))
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("valuation failed", zap.String("symbol", req.Symbol), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.logger.Info("valuation served",
		zap.String("symbol", resp.Meta.Symbol),
		zap.String("requestId", resp.Meta.RequestID),
		zap.Int("warnings", len(resp.Warnings)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}
