package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// UnitFunc analyses one unit.
type UnitFunc func(ctx context.Context, unit domain.AnalysisUnit, docCtx domain.DocumentContext) (domain.UnitResult, error)

// BatchProgressFunc reports how many units have settled.
type BatchProgressFunc func(done, total int)

// BatchPlan is the batch layout computed for one run.
type BatchPlan struct {
	// PerUnitTokens is the estimate for the representative unit.
	// Zero when estimation failed.
	PerUnitTokens int

	// BatchSize is the number of units dispatched concurrently.
	BatchSize int

	// Batches is the number of sequential batches.
	Batches int

	// Estimated is false when the fallback batch size was used.
	Estimated bool
}

// BatchOrchestrator runs unit analyses in sequential batches sized to a
// token-per-minute budget. Units within a batch run concurrently; a fixed
// cooldown separates batches.
type BatchOrchestrator struct {
	estimator *BudgetEstimator
	cfg       domain.BudgetSettings
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logger.Logger
}

// BatchOption configures a BatchOrchestrator.
type BatchOption func(*BatchOrchestrator)

// WithSleep replaces the cooldown wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) BatchOption {
	return func(o *BatchOrchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithBatchLogger sets the logger.
func WithBatchLogger(l *logger.Logger) BatchOption {
	return func(o *BatchOrchestrator) {
		o.log = l
	}
}

// NewBatchOrchestrator creates an orchestrator.
func NewBatchOrchestrator(estimator *BudgetEstimator, cfg domain.BudgetSettings, opts ...BatchOption) *BatchOrchestrator {
	o := &BatchOrchestrator{
		estimator: estimator,
		cfg:       cfg,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BatchSize returns floor(tokensPerMinute*margin/perUnit) clamped to [1, n].
func BatchSize(n, perUnit, tokensPerMinute int, margin float64) int {
	if n <= 0 {
		return 0
	}
	if perUnit <= 0 {
		return n
	}
	available := float64(tokensPerMinute) * margin
	size := int(math.Floor(available / float64(perUnit)))
	return clamp(size, 1, n)
}

// Plan sizes batches for units. The estimate is computed once on the
// longest unit and reused for every unit.
func (o *BatchOrchestrator) Plan(units []domain.AnalysisUnit, docCtx domain.DocumentContext) BatchPlan {
	n := len(units)
	if n == 0 {
		return BatchPlan{}
	}

	representative := units[0]
	for _, u := range units[1:] {
		if len(u.Content) > len(representative.Content) {
			representative = u
		}
	}

	plan := BatchPlan{}
	perUnit, err := o.estimate(representative, docCtx)
	if err != nil {
		o.log.Warn("token estimation failed, using fallback batch size %d: %v", o.cfg.FallbackBatchSize, err)
		plan.BatchSize = clamp(o.cfg.FallbackBatchSize, 1, n)
	} else {
		plan.PerUnitTokens = perUnit
		plan.BatchSize = BatchSize(n, perUnit, o.cfg.TokensPerMinute, o.cfg.SafetyMargin)
		plan.Estimated = true
	}
	plan.Batches = (n + plan.BatchSize - 1) / plan.BatchSize
	return plan
}

func (o *BatchOrchestrator) estimate(unit domain.AnalysisUnit, docCtx domain.DocumentContext) (int, error) {
	if o.estimator == nil {
		return 0, fmt.Errorf("%w: no estimator", domain.ErrTokenEstimation)
	}
	return o.estimator.EstimateUnit(unit, docCtx)
}

// Run analyses every unit and returns exactly one result per unit in input
// order. Failed or panicking units yield the fallback result. If ctx ends
// during a cooldown the remaining units are not dispatched and get the
// fallback result.
func (o *BatchOrchestrator) Run(
	ctx context.Context,
	units []domain.AnalysisUnit,
	docCtx domain.DocumentContext,
	fn UnitFunc,
	progress BatchProgressFunc,
) []domain.UnitResult {
	results := make([]domain.UnitResult, len(units))
	if len(units) == 0 {
		return results
	}

	plan := o.Plan(units, docCtx)
	o.log.Info("analysing %d units in %d batches of %d (estimate %d tokens/unit)",
		len(units), plan.Batches, plan.BatchSize, plan.PerUnitTokens)

	done := 0
	for b, start := 0, 0; start < len(units); b, start = b+1, start+plan.BatchSize {
		end := min(start+plan.BatchSize, len(units))

		// 1. Cooldown between batches, never before the first
		if b > 0 {
			o.log.Debug("batch %d/%d: cooling down for %s", b+1, plan.Batches, o.cfg.Cooldown)
			if err := o.sleep(ctx, o.cfg.Cooldown); err != nil {
				o.log.Warn("cooldown interrupted, %d units not analysed: %v", len(units)-start, err)
				for i := start; i < len(units); i++ {
					results[i] = domain.FallbackResult(units[i])
				}
				break
			}
		}

		// 2. Dispatch the batch concurrently and wait for every unit to settle
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = o.analyse(ctx, units[i], docCtx, fn)
			}(i)
		}
		wg.Wait()

		// 3. Report progress
		done = end
		if progress != nil {
			progress(done, len(units))
		}
	}

	return results
}

// analyse runs fn for one unit, converting errors and panics into the
// fallback result.
func (o *BatchOrchestrator) analyse(
	ctx context.Context, unit domain.AnalysisUnit, docCtx domain.DocumentContext, fn UnitFunc,
) (result domain.UnitResult) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Warn("unit %s panicked: %v", unit.ID, r)
			result = domain.FallbackResult(unit)
		}
	}()

	if fn == nil {
		return domain.FallbackResult(unit)
	}
	res, err := fn(ctx, unit, docCtx)
	if err != nil {
		o.log.Warn("unit %s failed: %v", unit.ID, err)
		return domain.FallbackResult(unit)
	}
	if res.UnitID == "" {
		res.UnitID = unit.ID
	}
	if res.Findings == nil {
		res.Findings = []domain.Finding{}
	}
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
