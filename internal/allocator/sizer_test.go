package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testSizer() *PositionSizer {
	return &PositionSizer{
		RiskPerTrade:  decimal.NewFromFloat(0.01),
		KellyFraction: decimal.NewFromFloat(0.5),
		TargetVol:     decimal.NewFromFloat(0.2),
	}
}

func TestFixedFractional(t *testing.T) {
	s := testSizer()
	// 1% of 100k is 1000 USD of risk; a 5 USD stop distance gives 200 units.
	size := s.FixedFractional(
		decimal.NewFromInt(100000),
		decimal.NewFromInt(105),
		decimal.NewFromInt(100))
	assert.True(t, size.Equal(decimal.NewFromInt(200)), size.String())
}

func TestFixedFractionalZeroStopDistance(t *testing.T) {
	s := testSizer()
	size := s.FixedFractional(
		decimal.NewFromInt(100000),
		decimal.NewFromInt(100),
		decimal.NewFromInt(100))
	assert.True(t, size.IsZero())
}

func TestKellyDampedByFraction(t *testing.T) {
	s := testSizer()
	// Raw Kelly for 60% wins at 2:1 is 0.6 - 0.4/2 = 0.4; half Kelly
	// commits 20% of capital.
	notional := s.Kelly(
		decimal.NewFromInt(100000),
		decimal.NewFromFloat(0.6),
		decimal.NewFromInt(2))
	assert.True(t, notional.Equal(decimal.NewFromInt(20000)), notional.String())
}

func TestKellyNegativeEdgeIsZero(t *testing.T) {
	s := testSizer()
	notional := s.Kelly(
		decimal.NewFromInt(100000),
		decimal.NewFromFloat(0.3),
		decimal.NewFromInt(1))
	assert.True(t, notional.IsZero())
}

func TestVolatilityScaledCapsAtFullCapital(t *testing.T) {
	s := testSizer()

	half := s.VolatilityScaled(decimal.NewFromInt(100000), decimal.NewFromFloat(0.4))
	assert.True(t, half.Equal(decimal.NewFromInt(50000)), half.String())

	calm := s.VolatilityScaled(decimal.NewFromInt(100000), decimal.NewFromFloat(0.05))
	assert.True(t, calm.Equal(decimal.NewFromInt(100000)), "never levers past capital")
}

func TestEqualWeight(t *testing.T) {
	s := testSizer()
	assert.True(t, s.EqualWeight(decimal.NewFromInt(100000), 4).Equal(decimal.NewFromInt(25000)))
	assert.True(t, s.EqualWeight(decimal.NewFromInt(100000), 0).IsZero())
}
