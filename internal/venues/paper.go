package venues

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// PaperAdapter is an in-process venue simulator. Orders fill immediately at
// their limit price, balances are tracked per asset, and a per-venue basis
// offset lets two paper venues quote slightly different prices so the scanner
// has spreads to find. It exists for local runs and tests; production venues
// are wired through real adapters.
type PaperAdapter struct {
	id       string
	basisBps decimal.Decimal

	mu        sync.Mutex
	balances  map[string]decimal.Decimal
	positions map[string]*models.Position
	orders    map[string]*models.Order
	connected bool
}

// NewPaperAdapter builds a simulated venue. basisBps shifts every quoted and
// filled price by that many basis points relative to the shared mid, which is
// how paper venues disagree with one another.
func NewPaperAdapter(id string, basisBps decimal.Decimal) *PaperAdapter {
	return &PaperAdapter{
		id:        id,
		basisBps:  basisBps,
		balances:  map[string]decimal.Decimal{"USD": decimal.NewFromInt(1_000_000)},
		positions: make(map[string]*models.Position),
		orders:    make(map[string]*models.Order),
	}
}

func (p *PaperAdapter) ID() string { return p.id }

func (p *PaperAdapter) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

// SetBalance seeds an asset balance, typically before a test scenario.
func (p *PaperAdapter) SetBalance(asset string, qty decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[asset] = qty
}

// PlaceOrder fills the order in full at its limit price.
func (p *PaperAdapter) PlaceOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, &VenueError{Venue: p.id, Op: "place_order", Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	filled := *order
	filled.VenueOrderID = uuid.New().String()
	filled.FilledSize = order.Size
	filled.FilledPrice = order.Price
	filled.Slippage = decimal.Zero
	filled.LatencyMS = 1
	filled.Status = models.OrderStatusFilled
	filled.UpdatedAt = time.Now().UTC()
	p.orders[filled.VenueOrderID] = &filled

	notional := order.Size.Mul(order.Price)
	pos, ok := p.positions[order.Instrument]
	if !ok {
		pos = &models.Position{Venue: p.id, Instrument: order.Instrument}
		p.positions[order.Instrument] = pos
	}
	if order.Side == models.OrderSideBuy {
		p.balances["USD"] = p.balances["USD"].Sub(notional)
		pos.Quantity = pos.Quantity.Add(order.Size)
	} else {
		p.balances["USD"] = p.balances["USD"].Add(notional)
		pos.Quantity = pos.Quantity.Sub(order.Size)
	}
	pos.AvgPrice = order.Price
	pos.UpdatedAt = filled.UpdatedAt
	return &filled, nil
}

func (p *PaperAdapter) CancelOrder(ctx context.Context, venueOrderID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[venueOrderID]
	if !ok {
		return false, nil
	}
	// Paper fills are immediate, so cancels always lose the race.
	return o.Transition(models.OrderStatusCancelled), nil
}

func (p *PaperAdapter) GetBalance(ctx context.Context) (map[string]decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out, nil
}

func (p *PaperAdapter) GetPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (p *PaperAdapter) HealthCheck(ctx context.Context) (*models.VenueHealth, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := models.VenueStatusHealthy
	if !p.connected {
		status = models.VenueStatusOffline
	}
	return &models.VenueHealth{
		VenueID:       p.id,
		Name:          p.id,
		Status:        status,
		LatencyMS:     1,
		ErrorRate:     0,
		LastHeartbeat: time.Now().UTC(),
		IsEnabled:     true,
	}, nil
}

// PaperQuotes generates top-of-book quotes for a set of paper venues off a
// shared random-walk mid per instrument, applying each venue's basis offset.
// It backs local runs where no market-data collaborator is attached.
type PaperQuotes struct {
	mu     sync.Mutex
	mids   map[string]decimal.Decimal
	basis  map[string]decimal.Decimal
	rng    *rand.Rand
	spread decimal.Decimal
	depth  decimal.Decimal
}

// NewPaperQuotes builds a quote generator. basis maps venue id to the same
// basis-point offset the venue's PaperAdapter was built with.
func NewPaperQuotes(basis map[string]decimal.Decimal, seed int64) *PaperQuotes {
	return &PaperQuotes{
		mids:   make(map[string]decimal.Decimal),
		basis:  basis,
		rng:    rand.New(rand.NewSource(seed)),
		spread: decimal.NewFromFloat(0.0002),
		depth:  decimal.NewFromInt(25),
	}
}

// GetQuotes returns one fresh quote for the venue/instrument pair.
func (p *PaperQuotes) GetQuotes(ctx context.Context, venue, instrument string) ([]models.SpotQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mid, ok := p.mids[instrument]
	if !ok {
		mid = decimal.NewFromInt(100)
	}
	// Random walk of up to ±10 bps per poll.
	step := decimal.NewFromFloat((p.rng.Float64() - 0.5) * 0.002)
	mid = mid.Mul(decimal.NewFromInt(1).Add(step))
	p.mids[instrument] = mid

	venueMid := mid
	if off, ok := p.basis[venue]; ok {
		venueMid = mid.Mul(decimal.NewFromInt(1).Add(off.Div(decimal.NewFromInt(10000))))
	}
	half := venueMid.Mul(p.spread)
	bid := venueMid.Sub(half)
	ask := venueMid.Add(half)
	now := time.Now().UTC()
	return []models.SpotQuote{{
		Venue:      venue,
		Instrument: instrument,
		BidPrice:   bid,
		BidSize:    p.depth,
		AskPrice:   ask,
		AskSize:    p.depth,
		SpreadBps:  ask.Sub(bid).Div(venueMid).Mul(decimal.NewFromInt(10000)),
		Timestamp:  now,
		AgeMS:      1,
	}}, nil
}

// UnhedgedPosition reports no inventory; paper runs always trade legged.
func (p *PaperQuotes) UnhedgedPosition(ctx context.Context, venue, instrument string) (models.Position, error) {
	return models.Position{Venue: venue, Instrument: instrument}, nil
}
