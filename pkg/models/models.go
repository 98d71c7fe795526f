// Package models holds the shared domain types for the execution and
// capital-allocation core. Types here carry no behavior beyond small
// state-transition and bookkeeping helpers.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionMode describes how an intent should be executed.
type ExecutionMode string

const (
	// ExecutionModeInventory means a single-leg order against existing
	// unhedged inventory is sufficient.
	ExecutionModeInventory ExecutionMode = "inventory"
	// ExecutionModeLegged means a two-leg trade is required.
	ExecutionModeLegged ExecutionMode = "legged"
)

// IntentDirection represents the direction of a trade intent.
type IntentDirection string

const (
	IntentDirectionBuy  IntentDirection = "buy"
	IntentDirectionSell IntentDirection = "sell"
)

// TradeIntent is a strategy-originated trade proposal. It is immutable after
// creation except for metadata annotations added during risk modification.
type TradeIntent struct {
	ID            uuid.UUID         `json:"id" validate:"required"`
	StrategyID    string            `json:"strategy_id" validate:"required"`
	BookID        uuid.UUID         `json:"book_id" validate:"required"`
	Instrument    string            `json:"instrument" validate:"required"`
	Direction     IntentDirection   `json:"direction" validate:"required,oneof=buy sell"`
	TargetUSD     decimal.Decimal   `json:"target_usd"`
	MaxLossUSD    decimal.Decimal   `json:"max_loss_usd"`
	Confidence    float64           `json:"confidence" validate:"gte=0,lte=1"`
	ExecutionMode ExecutionMode     `json:"execution_mode" validate:"required,oneof=inventory legged"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Annotate records a risk-modification note without touching the intent's
// economic fields.
func (t *TradeIntent) Annotate(key, value string) {
	if t.Metadata == nil {
		t.Metadata = make(map[string]string)
	}
	t.Metadata[key] = value
}

// Clone returns a deep copy so a modified intent never aliases the original.
func (t *TradeIntent) Clone() *TradeIntent {
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// SpotQuote is a single venue's top-of-book quote for an instrument.
// AgeMS must be checked against a staleness bound before the quote is used.
type SpotQuote struct {
	Venue      string          `json:"venue"`
	Instrument string          `json:"instrument"`
	BidPrice   decimal.Decimal `json:"bid_price"`
	BidSize    decimal.Decimal `json:"bid_size"`
	AskPrice   decimal.Decimal `json:"ask_price"`
	AskSize    decimal.Decimal `json:"ask_size"`
	SpreadBps  decimal.Decimal `json:"spread_bps"`
	Timestamp  time.Time       `json:"timestamp"`
	AgeMS      int64           `json:"age_ms"`
}

// Fresh reports whether the quote is younger than the given staleness bound.
func (q *SpotQuote) Fresh(maxAgeMS int64) bool {
	return q.AgeMS >= 0 && q.AgeMS <= maxAgeMS
}

// BookType classifies a capital book's mandate.
type BookType string

const (
	BookTypeHedge BookType = "hedge"
	BookTypeProp  BookType = "prop"
	BookTypeMeme  BookType = "meme"
)

// BookStatus is the lifecycle status of a book.
type BookStatus string

const (
	BookStatusActive BookStatus = "active"
	BookStatusPaused BookStatus = "paused"
	BookStatusHalted BookStatus = "halted"
)

// Book is a capital/risk-accounting unit holding exposure and limits for one
// trading mandate. Exposure is mutated only through the portfolio ledger.
type Book struct {
	ID               uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	Name             string          `json:"name"`
	Type             BookType        `json:"type"`
	CapitalAllocated decimal.Decimal `json:"capital_allocated"`
	CurrentExposure  decimal.Decimal `json:"current_exposure"`
	MaxDrawdownLimit decimal.Decimal `json:"max_drawdown_limit"`
	RiskTier         int             `json:"risk_tier"`
	Status           BookStatus      `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Headroom returns the remaining exposure capacity of the book.
func (b *Book) Headroom() decimal.Decimal {
	return b.CapitalAllocated.Sub(b.CurrentExposure)
}

// OrderSide is the side of a venue order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the compensating side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus is a venue order's status. Transitions are monotone: a terminal
// status never regresses to a non-terminal one.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// Order is one single-venue order, typically one leg of a multi-venue trade.
type Order struct {
	ID           uuid.UUID       `json:"id" gorm:"primaryKey;type:uuid"`
	VenueOrderID string          `json:"venue_order_id"`
	Venue        string          `json:"venue"`
	Instrument   string          `json:"instrument"`
	Side         OrderSide       `json:"side"`
	Size         decimal.Decimal `json:"size"`
	Price        decimal.Decimal `json:"price"`
	FilledSize   decimal.Decimal `json:"filled_size"`
	FilledPrice  decimal.Decimal `json:"filled_price"`
	Slippage     decimal.Decimal `json:"slippage"`
	LatencyMS    int64           `json:"latency_ms"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Transition moves the order to the next status, enforcing monotonicity.
// A transition out of a terminal status is rejected and the current status
// is kept.
func (o *Order) Transition(next OrderStatus) bool {
	if o.Status.Terminal() && next != o.Status {
		return false
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return true
}

// SignedFill returns the fill quantity signed by side (buys positive,
// sells negative).
func (o *Order) SignedFill() decimal.Decimal {
	if o.Side == OrderSideSell {
		return o.FilledSize.Neg()
	}
	return o.FilledSize
}

// RiskDecision is the outcome category of a risk-gate evaluation.
type RiskDecision string

const (
	RiskDecisionApprove RiskDecision = "approve"
	RiskDecisionModify  RiskDecision = "modify"
	RiskDecisionReject  RiskDecision = "reject"
)

// RiskCheckResult is produced exactly once per intent by the risk gate.
// The executor must never execute an intent without a matching approve or
// modify result.
type RiskCheckResult struct {
	Decision       RiskDecision `json:"decision"`
	IntentID       uuid.UUID    `json:"intent_id"`
	Reason         string       `json:"reason,omitempty"`
	OriginalIntent *TradeIntent `json:"original_intent"`
	ModifiedIntent *TradeIntent `json:"modified_intent,omitempty"`
	EvaluatedAt    time.Time    `json:"evaluated_at"`
}

// Effective returns the intent the executor should act on: the modified
// intent when present, else the original.
func (r *RiskCheckResult) Effective() *TradeIntent {
	if r.ModifiedIntent != nil {
		return r.ModifiedIntent
	}
	return r.OriginalIntent
}

// VenueStatus is the operational status of a venue.
type VenueStatus string

const (
	VenueStatusHealthy  VenueStatus = "healthy"
	VenueStatusDegraded VenueStatus = "degraded"
	VenueStatusDown     VenueStatus = "down"
	VenueStatusOffline  VenueStatus = "offline"
)

// VenueHealth is a venue's most recent health snapshot, refreshed by venue
// collaborators and read by the risk gate and the executor.
type VenueHealth struct {
	VenueID       string      `json:"venue_id"`
	Name          string      `json:"name"`
	Status        VenueStatus `json:"status"`
	LatencyMS     int64       `json:"latency_ms"`
	ErrorRate     float64     `json:"error_rate"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	IsEnabled     bool        `json:"is_enabled"`
}

// Tradable reports whether orders may be routed through the venue at all.
func (v *VenueHealth) Tradable() bool {
	return v.IsEnabled && (v.Status == VenueStatusHealthy || v.Status == VenueStatusDegraded)
}

// Position is an open position attributed to a book.
type Position struct {
	BookID     uuid.UUID       `json:"book_id"`
	Venue      string          `json:"venue"`
	Instrument string          `json:"instrument"`
	Quantity   decimal.Decimal `json:"quantity"`
	AvgPrice   decimal.Decimal `json:"avg_price"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
