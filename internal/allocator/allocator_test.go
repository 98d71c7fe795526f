package allocator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/pkg/models"
)

func testAllocConfig() config.AllocationConfig {
	return config.AllocationConfig{
		BaseWeights: map[string]float64{
			"spot-arb": 0.3,
			"momentum": 0.3,
			"basis":    0.2,
		},
		MaxStrategyWeight: 0.4,
		MinStrategyWeight: 0.02,
		DrawdownThrottle:  0.15,
		SharpeFloor:       0.5,
		CooldownMinutes:   60,
		RiskBiasScalars: map[string]map[string]float64{
			"risk_off": {
				"directional":    0.5,
				"market_neutral": 1.0,
			},
			"risk_on": {
				"directional":    1.2,
				"market_neutral": 1.0,
			},
		},
	}
}

func strategies() []models.StrategyProfile {
	return []models.StrategyProfile{
		{ID: "spot-arb", Type: "spot-arb", ExposureClass: models.ExposureClassMarketNeutral},
		{ID: "momentum", Type: "momentum", ExposureClass: models.ExposureClassDirectional},
		{ID: "basis", Type: "basis", ExposureClass: models.ExposureClassMarketNeutral},
	}
}

func goodPerformance(ids ...string) map[string]models.StrategyPerformance {
	perf := make(map[string]models.StrategyPerformance, len(ids))
	for _, id := range ids {
		perf[id] = models.StrategyPerformance{
			Sharpe:      decimal.NewFromFloat(1.5),
			MaxDrawdown: decimal.NewFromFloat(0.05),
		}
	}
	return perf
}

func neutralRegime() models.RegimeState {
	return models.RegimeState{RiskBias: models.RiskBiasNeutral, AsOf: time.Now().UTC()}
}

func testInput(regime models.RegimeState) Input {
	return Input{
		Strategies:   strategies(),
		Performance:  goodPerformance("spot-arb", "momentum", "basis"),
		Regime:       regime,
		TotalCapital: decimal.NewFromInt(1000000),
	}
}

func weightsByID(allocations []models.Allocation) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(allocations))
	for _, a := range allocations {
		out[a.StrategyID] = a.AllocationPct
	}
	return out
}

func TestAllocationsRespectBounds(t *testing.T) {
	a := New(testAllocConfig(), zaptest.NewLogger(t))

	allocations := a.ComputeAllocations(testInput(neutralRegime()))
	require.Len(t, allocations, 3)

	minW := decimal.NewFromFloat(0.02)
	maxW := decimal.NewFromFloat(0.4)
	total := decimal.Zero
	for _, alloc := range allocations {
		assert.True(t, alloc.AllocationPct.GreaterThanOrEqual(minW),
			"%s below minimum: %s", alloc.StrategyID, alloc.AllocationPct)
		assert.True(t, alloc.AllocationPct.LessThanOrEqual(maxW),
			"%s above maximum: %s", alloc.StrategyID, alloc.AllocationPct)
		total = total.Add(alloc.AllocationPct)
	}
	assert.True(t, total.LessThanOrEqual(decimal.NewFromFloat(1.001)))
}

// When clipped weights sum above one, normalization shrinks everything;
// low-weight strategies must still land at or above the minimum.
func TestNormalizationKeepsMinimumWeight(t *testing.T) {
	cfg := testAllocConfig()
	cfg.BaseWeights = map[string]float64{
		"spot-arb": 0.4,
		"momentum": 0.4,
		"basis":    0.4,
	}
	a := New(cfg, zaptest.NewLogger(t))

	in := testInput(neutralRegime())
	in.Strategies = append(in.Strategies, models.StrategyProfile{
		ID: "newcomer", Type: "newcomer", ExposureClass: models.ExposureClassMarketNeutral,
	})
	in.Performance["newcomer"] = models.StrategyPerformance{
		Sharpe:      decimal.NewFromFloat(1.0),
		MaxDrawdown: decimal.NewFromFloat(0.05),
	}
	weights := weightsByID(a.ComputeAllocations(in))
	require.Len(t, weights, 4)

	minW := decimal.NewFromFloat(0.02)
	maxW := decimal.NewFromFloat(0.4)
	for id, w := range weights {
		assert.True(t, w.GreaterThanOrEqual(minW), "%s below minimum: %s", id, w)
		assert.True(t, w.LessThanOrEqual(maxW), "%s above maximum: %s", id, w)
	}
}

// A risk-off regime must reduce directionally-exposed strategies relative
// to market-neutral ones, not scale everything equally.
func TestRiskOffRegimePenalizesDirectional(t *testing.T) {
	a := New(testAllocConfig(), zaptest.NewLogger(t))
	neutral := weightsByID(a.ComputeAllocations(testInput(neutralRegime())))

	b := New(testAllocConfig(), zaptest.NewLogger(t))
	riskOff := weightsByID(b.ComputeAllocations(testInput(models.RegimeState{
		RiskBias: models.RiskBiasRiskOff,
		AsOf:     time.Now().UTC(),
	})))

	// Momentum's share of the spot-arb weight shrinks under risk-off.
	neutralRatio := neutral["momentum"].Div(neutral["spot-arb"])
	riskOffRatio := riskOff["momentum"].Div(riskOff["spot-arb"])
	assert.True(t, riskOffRatio.LessThan(neutralRatio),
		"risk-off ratio %s should be below neutral ratio %s", riskOffRatio, neutralRatio)
}

func TestDrawdownThrottleScalesProportionally(t *testing.T) {
	cfg := testAllocConfig()
	a := New(cfg, zaptest.NewLogger(t))

	in := testInput(neutralRegime())
	// Momentum sits at twice the throttle threshold.
	in.Performance["momentum"] = models.StrategyPerformance{
		Sharpe:      decimal.NewFromFloat(1.5),
		MaxDrawdown: decimal.NewFromFloat(0.30),
	}
	throttled := weightsByID(a.ComputeAllocations(in))

	b := New(cfg, zaptest.NewLogger(t))
	baseline := weightsByID(b.ComputeAllocations(testInput(neutralRegime())))

	assert.True(t, throttled["momentum"].LessThan(baseline["momentum"]),
		"throttled %s vs baseline %s", throttled["momentum"], baseline["momentum"])
}

// Deeper drawdowns must never earn a larger weight.
func TestDrawdownThrottleIsMonotone(t *testing.T) {
	cfg := testAllocConfig()
	prev := decimal.NewFromInt(1)
	for _, dd := range []float64{0.15, 0.20, 0.30, 0.45} {
		a := New(cfg, zaptest.NewLogger(t))
		in := testInput(neutralRegime())
		in.Performance["momentum"] = models.StrategyPerformance{
			Sharpe:      decimal.NewFromFloat(1.5),
			MaxDrawdown: decimal.NewFromFloat(dd),
		}
		w := weightsByID(a.ComputeAllocations(in))["momentum"]
		assert.True(t, w.LessThanOrEqual(prev), "drawdown %v gave weight %s > %s", dd, w, prev)
		prev = w
	}
}

func TestSharpeFloorScalesDownNotOut(t *testing.T) {
	cfg := testAllocConfig()
	a := New(cfg, zaptest.NewLogger(t))

	in := testInput(neutralRegime())
	in.Performance["basis"] = models.StrategyPerformance{
		Sharpe:      decimal.NewFromFloat(0.1),
		MaxDrawdown: decimal.NewFromFloat(0.05),
	}
	weights := weightsByID(a.ComputeAllocations(in))

	b := New(cfg, zaptest.NewLogger(t))
	baseline := weightsByID(b.ComputeAllocations(testInput(neutralRegime())))

	assert.True(t, weights["basis"].LessThan(baseline["basis"]))
	assert.True(t, weights["basis"].GreaterThanOrEqual(decimal.NewFromFloat(0.02)),
		"floored strategies keep at least the minimum weight")
}

// Strategies sharing a correlation cluster are jointly capped, and the
// cap wins over the per-strategy minimum.
func TestCorrelatedClusterJointCap(t *testing.T) {
	cfg := testAllocConfig()
	a := New(cfg, zaptest.NewLogger(t))

	in := testInput(neutralRegime())
	for i := range in.Strategies {
		in.Strategies[i].CorrelationCluster = "carry"
	}
	weights := weightsByID(a.ComputeAllocations(in))

	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	assert.True(t, total.LessThanOrEqual(decimal.NewFromFloat(0.4).Add(decimal.NewFromFloat(0.0001))),
		"cluster total %s exceeds cap", total)
}

// Within the cooldown window a recomputation is an idempotent no-op: the
// previous allocations come back unchanged.
func TestCooldownKeepsPreviousAllocation(t *testing.T) {
	cfg := testAllocConfig()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a := New(cfg, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	first := a.ComputeAllocations(testInput(neutralRegime()))

	// Performance collapses, but only 10 minutes have passed.
	now = now.Add(10 * time.Minute)
	in := testInput(neutralRegime())
	in.Performance["momentum"] = models.StrategyPerformance{
		Sharpe:      decimal.NewFromFloat(-1),
		MaxDrawdown: decimal.NewFromFloat(0.5),
	}
	second := a.ComputeAllocations(in)
	assert.Equal(t, first, second)

	// Past the window the new inputs take effect.
	now = now.Add(time.Hour)
	third := a.ComputeAllocations(in)
	thirdW := weightsByID(third)
	firstW := weightsByID(first)
	assert.True(t, thirdW["momentum"].LessThan(firstW["momentum"]))
}

func TestAllocationCapitalMatchesWeight(t *testing.T) {
	a := New(testAllocConfig(), zaptest.NewLogger(t))

	allocations := a.ComputeAllocations(testInput(neutralRegime()))
	for _, alloc := range allocations {
		expected := decimal.NewFromInt(1000000).Mul(alloc.AllocationPct)
		assert.True(t, alloc.CapitalUSD.Equal(expected))
	}
}

func TestUnknownStrategyGetsMinimumWeight(t *testing.T) {
	a := New(testAllocConfig(), zaptest.NewLogger(t))

	in := testInput(neutralRegime())
	in.Strategies = append(in.Strategies, models.StrategyProfile{
		ID: "newcomer", Type: "newcomer", ExposureClass: models.ExposureClassMarketNeutral,
	})
	in.Performance["newcomer"] = models.StrategyPerformance{
		Sharpe: decimal.NewFromFloat(1.0),
	}
	weights := weightsByID(a.ComputeAllocations(in))

	assert.True(t, weights["newcomer"].GreaterThanOrEqual(decimal.NewFromFloat(0.02)))
	assert.True(t, weights["newcomer"].LessThan(weights["spot-arb"]))
}
