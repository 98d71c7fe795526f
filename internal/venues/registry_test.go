package venues

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Aidin1998/arbcore/pkg/models"
)

type failingAdapter struct {
	id string
}

func (a *failingAdapter) ID() string                    { return a.id }
func (a *failingAdapter) Connect(context.Context) error { return nil }
func (a *failingAdapter) PlaceOrder(context.Context, *models.Order) (*models.Order, error) {
	return nil, errors.New("boom")
}
func (a *failingAdapter) CancelOrder(context.Context, string) (bool, error) { return false, nil }
func (a *failingAdapter) GetBalance(context.Context) (map[string]decimal.Decimal, error) {
	return nil, nil
}
func (a *failingAdapter) GetPositions(context.Context) ([]models.Position, error) { return nil, nil }
func (a *failingAdapter) HealthCheck(context.Context) (*models.VenueHealth, error) {
	return nil, errors.New("unreachable")
}

func testOrder() *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		Instrument: "BTC-USD",
		Side:       models.OrderSideBuy,
		Size:       decimal.NewFromInt(1),
		Price:      decimal.NewFromInt(100),
		Status:     models.OrderStatusOpen,
	}
}

func TestPlaceOrderUnknownVenue(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	_, err := r.PlaceOrder(context.Background(), "nowhere", testOrder())

	var venueErr *VenueError
	require.ErrorAs(t, err, &venueErr)
	assert.ErrorIs(t, err, ErrVenueUnknown)
}

func TestPlaceOrderDisabledVenue(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Register(NewPaperAdapter("alpha", decimal.Zero), false)

	_, err := r.PlaceOrder(context.Background(), "alpha", testOrder())
	assert.ErrorIs(t, err, ErrVenueDisabled)
}

func TestPlaceOrderThroughPaperAdapter(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Register(NewPaperAdapter("alpha", decimal.Zero), true)

	order := testOrder()
	placed, err := r.PlaceOrder(context.Background(), "alpha", order)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusFilled, placed.Status)
	assert.True(t, placed.FilledSize.Equal(order.Size))
	assert.True(t, placed.FilledPrice.Equal(order.Price))
	assert.NotEmpty(t, placed.VenueOrderID)
}

// Five straight failures trip the venue's breaker; subsequent calls are
// refused without reaching the adapter.
func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Register(&failingAdapter{id: "flaky"}, true)

	for i := 0; i < 5; i++ {
		_, err := r.PlaceOrder(context.Background(), "flaky", testOrder())
		require.Error(t, err)
	}

	_, err := r.PlaceOrder(context.Background(), "flaky", testOrder())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestRefreshHealthMarksFailingVenueDown(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.Register(&failingAdapter{id: "flaky"}, true)
	r.Register(NewPaperAdapter("alpha", decimal.Zero), true)

	ctx := context.Background()
	paper, err := r.Adapter("alpha")
	require.NoError(t, err)
	require.NoError(t, paper.Connect(ctx))

	r.RefreshHealth(ctx)

	flaky, ok := r.Health("flaky")
	require.True(t, ok)
	assert.Equal(t, models.VenueStatusDown, flaky.Status)
	assert.False(t, flaky.Tradable())

	alpha, ok := r.Health("alpha")
	require.True(t, ok)
	assert.Equal(t, models.VenueStatusHealthy, alpha.Status)
	assert.True(t, alpha.Tradable())
}

func TestHealthSnapshotIsACopy(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	r.SetHealth(&models.VenueHealth{VenueID: "alpha", Status: models.VenueStatusHealthy, IsEnabled: true})

	snap := r.HealthSnapshot()
	snap["alpha"].Status = models.VenueStatusDown

	h, ok := r.Health("alpha")
	require.True(t, ok)
	assert.Equal(t, models.VenueStatusHealthy, h.Status)
}

func TestPaperAdapterTracksBalancesAndPositions(t *testing.T) {
	ctx := context.Background()
	p := NewPaperAdapter("alpha", decimal.Zero)
	require.NoError(t, p.Connect(ctx))

	buy := testOrder()
	buy.Size = decimal.NewFromInt(2)
	_, err := p.PlaceOrder(ctx, buy)
	require.NoError(t, err)

	balances, err := p.GetBalance(ctx)
	require.NoError(t, err)
	assert.True(t, balances["USD"].Equal(decimal.NewFromInt(999800)))

	positions, err := p.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func TestPaperQuotesApplyBasisOffset(t *testing.T) {
	ctx := context.Background()
	q := NewPaperQuotes(map[string]decimal.Decimal{
		"cheap": decimal.NewFromInt(-8),
		"rich":  decimal.NewFromInt(8),
	}, 42)

	cheap, err := q.GetQuotes(ctx, "cheap", "BTC-USD")
	require.NoError(t, err)
	rich, err := q.GetQuotes(ctx, "rich", "BTC-USD")
	require.NoError(t, err)

	require.Len(t, cheap, 1)
	require.Len(t, rich, 1)
	assert.True(t, cheap[0].Fresh(2000))
	// The rich venue's mid drifts between polls but its basis dominates a
	// single step, so its bid clears the cheap venue's bid.
	assert.True(t, rich[0].BidPrice.GreaterThan(cheap[0].BidPrice.Mul(decimal.NewFromFloat(0.999))))
}
