// Package venues defines the venue adapter surface the core trades
// through, plus a registry that caches health snapshots and a circuit
// breaker wrapper for adapter calls. The core never speaks an exchange
// wire protocol itself.
package venues

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// VenueError wraps any adapter-level failure: a raised error, a timeout,
// or a rejected/zero-fill order surfaced as an error by the caller.
type VenueError struct {
	Venue string
	Op    string
	Err   error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue %s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *VenueError) Unwrap() error { return e.Err }

// Adapter is implemented per venue (Coinbase, Kraken, ...) by external
// connectivity collaborators.
type Adapter interface {
	ID() string
	Connect(ctx context.Context) error
	PlaceOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CancelOrder(ctx context.Context, venueOrderID string) (bool, error)
	GetBalance(ctx context.Context) (map[string]decimal.Decimal, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
	HealthCheck(ctx context.Context) (*models.VenueHealth, error)
}

// KillSwitch is the platform-wide trading gate.
type KillSwitch interface {
	CheckKillSwitchForTrading() (allowed bool, reason string)
}

// AlwaysOn is a kill switch that never trips; the default for tooling and
// tests that exercise other failure paths.
type AlwaysOn struct{}

func (AlwaysOn) CheckKillSwitchForTrading() (bool, string) { return true, "" }
