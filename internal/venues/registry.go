package venues

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// ErrVenueUnknown is returned for lookups of unregistered venues.
var ErrVenueUnknown = errors.New("venues: unknown venue")

// ErrVenueDisabled is returned when an adapter exists but trading through
// it is switched off.
var ErrVenueDisabled = errors.New("venues: venue disabled")

// Registry holds the configured adapters, per-venue enablement and the most
// recent health snapshot for each venue. Adapter calls issued through the
// registry pass a per-venue circuit breaker so a flapping venue cannot
// stall the execution path.
type Registry struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	adapters map[string]Adapter
	enabled  map[string]bool
	health   map[string]*models.VenueHealth
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger.Named("venues"),
		adapters: make(map[string]Adapter),
		enabled:  make(map[string]bool),
		health:   make(map[string]*models.VenueHealth),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Register adds an adapter under its venue id.
func (r *Registry) Register(adapter Adapter, enabled bool) {
	id := adapter.ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[id] = adapter
	r.enabled[id] = enabled
	r.breakers[id] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "venue-" + id,
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 >= counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("venue breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// SetEnabled flips trading enablement for a venue.
func (r *Registry) SetEnabled(venueID string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[venueID]; ok {
		r.enabled[venueID] = enabled
	}
}

// Adapter returns the adapter for an enabled venue.
func (r *Registry) Adapter(venueID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[venueID]
	if !ok {
		return nil, ErrVenueUnknown
	}
	if !r.enabled[venueID] {
		return nil, ErrVenueDisabled
	}
	return adapter, nil
}

// VenueIDs lists registered venues, enabled or not.
func (r *Registry) VenueIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	return ids
}

// PlaceOrder routes an order through the venue's adapter under its circuit
// breaker. Breaker rejections and adapter failures both surface as
// VenueError.
func (r *Registry) PlaceOrder(ctx context.Context, venueID string, order *models.Order) (*models.Order, error) {
	adapter, err := r.Adapter(venueID)
	if err != nil {
		return nil, &VenueError{Venue: venueID, Op: "place_order", Err: err}
	}
	r.mu.RLock()
	breaker := r.breakers[venueID]
	r.mu.RUnlock()

	result, err := breaker.Execute(func() (interface{}, error) {
		return adapter.PlaceOrder(ctx, order)
	})
	if err != nil {
		return nil, &VenueError{Venue: venueID, Op: "place_order", Err: err}
	}
	placed, _ := result.(*models.Order)
	return placed, nil
}

// CancelOrder routes a cancel through the adapter without breaker
// protection: cancels are part of damage control and should always be
// attempted.
func (r *Registry) CancelOrder(ctx context.Context, venueID, venueOrderID string) (bool, error) {
	adapter, err := r.Adapter(venueID)
	if err != nil {
		return false, &VenueError{Venue: venueID, Op: "cancel_order", Err: err}
	}
	return adapter.CancelOrder(ctx, venueOrderID)
}

// RefreshHealth polls every registered adapter and caches the snapshots.
// A failed health check marks the venue down rather than failing the
// refresh.
func (r *Registry) RefreshHealth(ctx context.Context) {
	for _, id := range r.VenueIDs() {
		r.mu.RLock()
		adapter := r.adapters[id]
		enabled := r.enabled[id]
		r.mu.RUnlock()

		health, err := adapter.HealthCheck(ctx)
		if err != nil {
			r.logger.Warn("venue health check failed", zap.String("venue", id), zap.Error(err))
			health = &models.VenueHealth{
				VenueID:   id,
				Status:    models.VenueStatusDown,
				IsEnabled: enabled,
			}
		} else {
			health.IsEnabled = enabled
		}
		r.mu.Lock()
		r.health[id] = health
		r.mu.Unlock()
	}
}

// Health returns the cached snapshot for one venue.
func (r *Registry) Health(venueID string) (*models.VenueHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.health[venueID]
	return h, ok
}

// HealthSnapshot returns a copy of all cached venue health records, keyed
// by venue id. The risk gate evaluates against this snapshot so no I/O
// happens during gating.
func (r *Registry) HealthSnapshot() map[string]*models.VenueHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.VenueHealth, len(r.health))
	for id, h := range r.health {
		cp := *h
		out[id] = &cp
	}
	return out
}

// SetHealth overrides a cached snapshot. Used by venue collaborators that
// push health instead of being polled.
func (r *Registry) SetHealth(health *models.VenueHealth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health[health.VenueID] = health
}
