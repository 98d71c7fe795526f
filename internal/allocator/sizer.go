package allocator

import "github.com/shopspring/decimal"

// SizingMethod selects a position sizing formula.
type SizingMethod string

const (
	SizingFixedFractional SizingMethod = "fixed_fractional"
	SizingKelly           SizingMethod = "kelly"
	SizingVolatility      SizingMethod = "volatility"
	SizingEqualWeight     SizingMethod = "equal_weight"
)

// PositionSizer computes position notionals from account capital. Like
// the drawdown monitor, it is supporting analytics consumed by the
// allocator and backtests.
type PositionSizer struct {
	// RiskPerTrade is the capital fraction risked per trade for
	// fixed-fractional sizing.
	RiskPerTrade decimal.Decimal
	// KellyFraction damps the raw Kelly output; full Kelly is almost
	// always overbet.
	KellyFraction decimal.Decimal
	// TargetVol is the annualized volatility target for volatility
	// sizing.
	TargetVol decimal.Decimal
}

// FixedFractional risks RiskPerTrade of capital against the distance to
// the stop. A zero stop distance yields a zero position.
func (p *PositionSizer) FixedFractional(capital, entryPrice, stopPrice decimal.Decimal) decimal.Decimal {
	risk := entryPrice.Sub(stopPrice).Abs()
	if risk.Sign() <= 0 || capital.Sign() <= 0 {
		return decimal.Zero
	}
	riskBudget := capital.Mul(p.RiskPerTrade)
	return riskBudget.Div(risk)
}

// Kelly returns the fraction of capital to commit given win rate and the
// average win/loss ratio, damped by KellyFraction and floored at zero.
func (p *PositionSizer) Kelly(capital, winRate, winLossRatio decimal.Decimal) decimal.Decimal {
	if winLossRatio.Sign() <= 0 || capital.Sign() <= 0 {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	kelly := winRate.Sub(one.Sub(winRate).Div(winLossRatio))
	if kelly.Sign() <= 0 {
		return decimal.Zero
	}
	fraction := kelly.Mul(p.KellyFraction)
	return capital.Mul(fraction)
}

// VolatilityScaled sizes inversely to realized volatility against the
// target. Realized volatility at the target gives full capital; double
// the target gives half.
func (p *PositionSizer) VolatilityScaled(capital, realizedVol decimal.Decimal) decimal.Decimal {
	if realizedVol.Sign() <= 0 || capital.Sign() <= 0 {
		return decimal.Zero
	}
	scale := p.TargetVol.Div(realizedVol)
	one := decimal.NewFromInt(1)
	if scale.GreaterThan(one) {
		scale = one
	}
	return capital.Mul(scale)
}

// EqualWeight splits capital evenly across n positions.
func (p *PositionSizer) EqualWeight(capital decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 || capital.Sign() <= 0 {
		return decimal.Zero
	}
	return capital.Div(decimal.NewFromInt(int64(n)))
}
