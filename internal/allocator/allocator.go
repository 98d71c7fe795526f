// Package allocator recomputes per-strategy capital weights from regime,
// performance and correlation-cluster risk. The weight computation itself
// is pure; the Allocator wrapper adds per-strategy reallocation cooldowns.
package allocator

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/pkg/models"
)

// Input is everything one allocation pass reads.
type Input struct {
	Strategies   []models.StrategyProfile
	Performance  map[string]models.StrategyPerformance
	Regime       models.RegimeState
	TotalCapital decimal.Decimal
}

// Allocator computes allocations and tracks per-strategy cooldowns.
type Allocator struct {
	cfg    config.AllocationConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastRun  map[string]time.Time
	previous map[string]models.Allocation
}

// New creates an allocator. The clock is injectable for tests.
func New(cfg config.AllocationConfig, logger *zap.Logger) *Allocator {
	return &Allocator{
		cfg:      cfg,
		logger:   logger.Named("allocator"),
		now:      time.Now,
		lastRun:  make(map[string]time.Time),
		previous: make(map[string]models.Allocation),
	}
}

// WithClock overrides the time source.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// ComputeAllocations runs one allocation pass. Strategies still inside
// their cooldown window keep their previous allocation unchanged; the
// call is an idempotent no-op for them.
func (a *Allocator) ComputeAllocations(in Input) []models.Allocation {
	now := a.now().UTC()
	weights := computeWeights(in, a.cfg)

	a.mu.Lock()
	defer a.mu.Unlock()

	cooldown := time.Duration(a.cfg.CooldownMinutes) * time.Minute
	out := make([]models.Allocation, 0, len(in.Strategies))
	for _, strat := range in.Strategies {
		if prev, ok := a.previous[strat.ID]; ok && cooldown > 0 {
			if last, ran := a.lastRun[strat.ID]; ran && now.Sub(last) < cooldown {
				out = append(out, prev)
				continue
			}
		}
		alloc := models.Allocation{
			StrategyID:    strat.ID,
			AllocationPct: weights[strat.ID],
			CapitalUSD:    in.TotalCapital.Mul(weights[strat.ID]),
			ComputedAt:    now,
		}
		a.previous[strat.ID] = alloc
		a.lastRun[strat.ID] = now
		out = append(out, alloc)
	}
	return out
}

// computeWeights is the pure allocation pipeline: base weights, regime
// bias, drawdown throttle, Sharpe floor, clipping, normalization and the
// correlation-cluster cap, in that order.
func computeWeights(in Input, cfg config.AllocationConfig) map[string]decimal.Decimal {
	minW := decimal.NewFromFloat(cfg.MinStrategyWeight)
	maxW := decimal.NewFromFloat(cfg.MaxStrategyWeight)

	weights := make(map[string]decimal.Decimal, len(in.Strategies))
	for _, strat := range in.Strategies {
		w := baseWeight(strat, cfg, minW)
		w = w.Mul(regimeScalar(strat, in.Regime, cfg))
		w = throttleDrawdown(w, in.Performance[strat.ID], cfg, minW)
		w = applySharpeFloor(w, in.Performance[strat.ID], cfg, minW)
		weights[strat.ID] = clip(w, minW, maxW)
	}

	normalize(weights, minW, maxW)
	capClusters(in.Strategies, weights, maxW)
	return weights
}

func baseWeight(strat models.StrategyProfile, cfg config.AllocationConfig, minW decimal.Decimal) decimal.Decimal {
	if base, ok := cfg.BaseWeights[strat.Type]; ok {
		return decimal.NewFromFloat(base)
	}
	return minW
}

// regimeScalar applies the configured multiplicative bias for the current
// regime. Scalars are keyed by exposure class, so a risk-off regime moves
// directionally-exposed clusters relative to market-neutral ones rather
// than shifting every weight by the same factor.
func regimeScalar(strat models.StrategyProfile, regime models.RegimeState, cfg config.AllocationConfig) decimal.Decimal {
	byClass, ok := cfg.RiskBiasScalars[string(regime.RiskBias)]
	if !ok {
		return decimal.NewFromInt(1)
	}
	scalar, ok := byClass[string(strat.ExposureClass)]
	if !ok {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(scalar)
}

// throttleDrawdown scales the weight down proportionally to how far the
// strategy's max drawdown exceeds the throttle threshold, never below the
// minimum weight.
func throttleDrawdown(w decimal.Decimal, perf models.StrategyPerformance, cfg config.AllocationConfig, minW decimal.Decimal) decimal.Decimal {
	throttle := decimal.NewFromFloat(cfg.DrawdownThrottle)
	if throttle.Sign() <= 0 || perf.MaxDrawdown.LessThan(throttle) {
		return w
	}
	// factor = throttle / drawdown: a drawdown at 2x the threshold halves
	// the weight.
	factor := throttle.Div(perf.MaxDrawdown)
	return decimal.Max(minW, w.Mul(factor))
}

// applySharpeFloor scales down, not zeroes, strategies under the Sharpe
// floor. The scale factor bottoms out at a quarter so a bad quarter does
// not erase an allocation entirely.
func applySharpeFloor(w decimal.Decimal, perf models.StrategyPerformance, cfg config.AllocationConfig, minW decimal.Decimal) decimal.Decimal {
	floor := decimal.NewFromFloat(cfg.SharpeFloor)
	if floor.Sign() <= 0 || perf.Sharpe.GreaterThanOrEqual(floor) {
		return w
	}
	factor := perf.Sharpe.Div(floor)
	quarter := decimal.NewFromFloat(0.25)
	if factor.LessThan(quarter) {
		factor = quarter
	}
	return decimal.Max(minW, w.Mul(factor))
}

func clip(w, minW, maxW decimal.Decimal) decimal.Decimal {
	return decimal.Min(decimal.Max(w, minW), maxW)
}

// normalize scales the weights to sum to one, then re-clips anything the
// scaling pushed outside [minW, maxW]. When the pre-normalization total is
// above one the division shrinks every weight, so the minimum has to be
// re-applied here just like the maximum. The result need not sum to
// exactly one.
func normalize(weights map[string]decimal.Decimal, minW, maxW decimal.Decimal) {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	if total.Sign() <= 0 {
		return
	}
	for id, w := range weights {
		weights[id] = clip(w.Div(total), minW, maxW)
	}
}

// capClusters enforces that strategies sharing a correlation cluster never
// jointly exceed the per-strategy maximum. Members are scaled down
// proportionally; the cluster cap takes precedence over the per-strategy
// minimum.
func capClusters(strategies []models.StrategyProfile, weights map[string]decimal.Decimal, maxW decimal.Decimal) {
	clusters := make(map[string][]string)
	for _, strat := range strategies {
		if strat.CorrelationCluster == "" {
			continue
		}
		clusters[strat.CorrelationCluster] = append(clusters[strat.CorrelationCluster], strat.ID)
	}

	names := make([]string, 0, len(clusters))
	for name := range clusters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ids := clusters[name]
		if len(ids) < 2 {
			continue
		}
		total := decimal.Zero
		for _, id := range ids {
			total = total.Add(weights[id])
		}
		if total.LessThanOrEqual(maxW) {
			continue
		}
		scale := maxW.Div(total)
		for _, id := range ids {
			weights[id] = weights[id].Mul(scale)
		}
	}
}
