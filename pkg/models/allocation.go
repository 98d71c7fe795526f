package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskBias classifies current conditions for capital allocation purposes.
type RiskBias string

const (
	RiskBiasRiskOn  RiskBias = "risk_on"
	RiskBiasNeutral RiskBias = "neutral"
	RiskBiasRiskOff RiskBias = "risk_off"
)

// RegimeState is the output of the external regime classifier.
type RegimeState struct {
	Direction  string            `json:"direction"`
	Volatility string            `json:"volatility"`
	Liquidity  string            `json:"liquidity"`
	RiskBias   RiskBias          `json:"risk_bias"`
	Details    map[string]string `json:"details,omitempty"`
	AsOf       time.Time         `json:"as_of"`
}

// ExposureClass groups strategy types by how directionally exposed their
// returns are. The allocator compares classes against each other when
// applying regime bias.
type ExposureClass string

const (
	ExposureClassDirectional   ExposureClass = "directional"
	ExposureClassMarketNeutral ExposureClass = "market_neutral"
)

// StrategyProfile identifies a running strategy for allocation purposes.
type StrategyProfile struct {
	ID                 string        `json:"id"`
	Type               string        `json:"type"`
	ExposureClass      ExposureClass `json:"exposure_class"`
	CorrelationCluster string        `json:"correlation_cluster"`
}

// StrategyPerformance is the trailing performance snapshot the allocator
// consumes. MaxDrawdown is a fraction of peak equity, not a percentage.
type StrategyPerformance struct {
	Sharpe      decimal.Decimal `json:"sharpe"`
	MaxDrawdown decimal.Decimal `json:"max_drawdown"`
	TotalReturn decimal.Decimal `json:"total_return"`
	NumTrades   int             `json:"num_trades"`
}

// Allocation is one strategy's share of total capital.
type Allocation struct {
	StrategyID    string          `json:"strategy_id"`
	AllocationPct decimal.Decimal `json:"allocation_pct"`
	CapitalUSD    decimal.Decimal `json:"capital_usd"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// SpreadObservation is a record of a detected cross-venue spread, persisted
// for analytics independent of whether the opportunity executed.
type SpreadObservation struct {
	ID         uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Instrument string          `json:"instrument" gorm:"index"`
	BuyVenue   string          `json:"buy_venue"`
	SellVenue  string          `json:"sell_venue"`
	BuyPrice   decimal.Decimal `json:"buy_price" gorm:"type:numeric"`
	SellPrice  decimal.Decimal `json:"sell_price" gorm:"type:numeric"`
	SpreadBps  decimal.Decimal `json:"spread_bps" gorm:"type:numeric"`
	NetBps     decimal.Decimal `json:"net_bps" gorm:"type:numeric"`
	Emitted    bool            `json:"emitted"`
	ObservedAt time.Time       `json:"observed_at" gorm:"index"`
}
