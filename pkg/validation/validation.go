// Package validation checks inbound domain objects before any I/O is
// issued on their behalf.
package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// ValidationError reports a malformed domain object. Intents failing
// validation are rejected before any I/O.
type ValidationError struct {
	Object string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %v", e.Object, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator wraps a configured validator instance. Construct once at
// startup and inject; no package-level state.
type Validator struct {
	v *validator.Validate
}

// New builds a validator with struct tag support.
func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// ValidateIntent checks a trade intent's structural invariants plus the
// economic ones tags cannot express.
func (val *Validator) ValidateIntent(intent *models.TradeIntent) error {
	if intent == nil {
		return &ValidationError{Object: "trade_intent", Err: fmt.Errorf("nil intent")}
	}
	if err := val.v.Struct(intent); err != nil {
		return &ValidationError{Object: "trade_intent", Err: err}
	}
	if intent.TargetUSD.Sign() <= 0 {
		return &ValidationError{Object: "trade_intent", Err: fmt.Errorf("target notional must be positive, got %s", intent.TargetUSD)}
	}
	if intent.MaxLossUSD.Sign() < 0 {
		return &ValidationError{Object: "trade_intent", Err: fmt.Errorf("max loss must not be negative, got %s", intent.MaxLossUSD)}
	}
	return nil
}
