package services

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
)

// BudgetEstimator estimates the token cost of analysing one unit.
type BudgetEstimator struct {
	tokenizer driven.Tokenizer
	cfg       domain.BudgetSettings
}

// NewBudgetEstimator creates an estimator using tokenizer for content and
// document-context counts and cfg for the fixed overheads.
func NewBudgetEstimator(tokenizer driven.Tokenizer, cfg domain.BudgetSettings) *BudgetEstimator {
	if cfg.SafetyBuffer <= 0 {
		cfg.SafetyBuffer = domain.DefaultSettings().Budget.SafetyBuffer
	}
	return &BudgetEstimator{tokenizer: tokenizer, cfg: cfg}
}

// EstimateUnit returns the estimated tokens spent analysing unit: its
// content, the serialized document context, the fixed per-call overheads
// and the expected response, multiplied by the safety buffer.
func (e *BudgetEstimator) EstimateUnit(unit domain.AnalysisUnit, docCtx domain.DocumentContext) (int, error) {
	if e.tokenizer == nil {
		return 0, fmt.Errorf("%w: no tokenizer", domain.ErrTokenEstimation)
	}

	content, err := e.tokenizer.Count(unit.Content)
	if err != nil {
		return 0, fmt.Errorf("%w: count unit content: %v", domain.ErrTokenEstimation, err)
	}

	ctxJSON, err := json.Marshal(docCtx)
	if err != nil {
		return 0, fmt.Errorf("%w: serialize document context: %v", domain.ErrTokenEstimation, err)
	}
	contextTokens, err := e.tokenizer.Count(string(ctxJSON))
	if err != nil {
		return 0, fmt.Errorf("%w: count document context: %v", domain.ErrTokenEstimation, err)
	}

	sum := content +
		e.cfg.SystemPromptTokens +
		contextTokens +
		e.cfg.QueryGenTokens +
		e.cfg.ComplianceCallTokens +
		e.cfg.ResponseTokens

	return int(math.Ceil(float64(sum) * e.cfg.SafetyBuffer)), nil
}
