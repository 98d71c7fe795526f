// Package executor turns approved intents into venue orders and owns the
// unwind protocol. For every intent that enters leg placement, the
// terminal state is either "all committed legs filled" or "net exposure
// change across committed legs is zero" — except the explicitly flagged
// unwind-failure case, which halts the book.
package executor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// IntentState tracks an intent through the execution lifecycle.
type IntentState string

const (
	StateCreated         IntentState = "created"
	StateGated           IntentState = "gated"
	StateLegPlacing      IntentState = "leg_placing"
	StateFilled          IntentState = "filled"
	StatePartiallyFailed IntentState = "partially_failed"
	StateSettled         IntentState = "settled"
	StateUnwinding       IntentState = "unwinding"
	StateUnwound         IntentState = "unwound"
	StateUnwindFailed    IntentState = "unwind_failed"
)

// LegPhase distinguishes forward legs from compensating orders.
type LegPhase string

const (
	PhaseLeg    LegPhase = "leg"
	PhaseUnwind LegPhase = "unwind"
)

// LegEvent records one leg or unwind attempt for audit and
// reconciliation, regardless of outcome.
type LegEvent struct {
	IntentID   uuid.UUID        `json:"intent_id"`
	Phase      LegPhase         `json:"phase"`
	Venue      string           `json:"venue"`
	Side       models.OrderSide `json:"side"`
	Size       decimal.Decimal  `json:"size"`
	FilledSize decimal.Decimal  `json:"filled_size"`
	OrderID    uuid.UUID        `json:"order_id"`
	Outcome    string           `json:"outcome"`
	Error      string           `json:"error,omitempty"`
	At         time.Time        `json:"at"`
}

// Result is the outcome of one ExecuteIntent call. Orders is empty when
// the trade was fully unwound: the caller must treat that as "no trade
// happened" even though intermediate fills occurred and are recorded in
// LegEvents.
type Result struct {
	IntentID  uuid.UUID       `json:"intent_id"`
	State     IntentState     `json:"state"`
	Orders    []*models.Order `json:"orders,omitempty"`
	LegEvents []LegEvent      `json:"leg_events"`
}

// RiskRejectionError is returned when ExecuteIntent is handed a result
// that is not an approval. It is terminal and never retried automatically.
type RiskRejectionError struct {
	IntentID uuid.UUID
	Reason   string
}

func (e *RiskRejectionError) Error() string {
	return fmt.Sprintf("executor: intent %s rejected by risk gate: %s", e.IntentID, e.Reason)
}

// UnwindFailureError is the one allowed terminal failure mode with
// residual one-sided exposure. The affected book is halted and a critical
// alert raised before this error is returned.
type UnwindFailureError struct {
	IntentID    uuid.UUID
	BookID      uuid.UUID
	ResidualUSD decimal.Decimal
}

func (e *UnwindFailureError) Error() string {
	return fmt.Sprintf("executor: unwind failed for intent %s on book %s, residual exposure %s USD",
		e.IntentID, e.BookID, e.ResidualUSD)
}

// AbortedError is returned when the time-of-use re-check fails before any
// side effect: kill switch flipped or book no longer active.
type AbortedError struct {
	IntentID uuid.UUID
	Reason   string
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("executor: intent %s aborted before placement: %s", e.IntentID, e.Reason)
}
