package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Aidin1998/arbcore/internal/audit"
	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/internal/executor"
	"github.com/Aidin1998/arbcore/internal/ledger"
	"github.com/Aidin1998/arbcore/internal/riskgate"
	"github.com/Aidin1998/arbcore/internal/scanner"
	"github.com/Aidin1998/arbcore/internal/venues"
	"github.com/Aidin1998/arbcore/pkg/models"
	"github.com/Aidin1998/arbcore/pkg/validation"
)

type fixedQuotes struct{}

func (fixedQuotes) GetQuotes(ctx context.Context, venue, instrument string) ([]models.SpotQuote, error) {
	q := models.SpotQuote{
		Venue:      venue,
		Instrument: instrument,
		BidSize:    decimal.NewFromInt(20),
		AskSize:    decimal.NewFromInt(20),
		Timestamp:  time.Now().UTC(),
		AgeMS:      5,
	}
	switch venue {
	case "alpha":
		q.BidPrice = decimal.NewFromInt(100)
		q.AskPrice = decimal.NewFromInt(101)
	default:
		q.BidPrice = decimal.NewFromInt(103)
		q.AskPrice = decimal.NewFromInt(104)
	}
	return []models.SpotQuote{q}, nil
}

type trippedSwitch struct{}

func (trippedSwitch) CheckKillSwitchForTrading() (bool, string) { return false, "ops halt" }

func testConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	cfg.Instruments = []string{"BTC-USD"}
	return cfg
}

func newEngineFixture(t *testing.T, killSwitch venues.KillSwitch) (*Engine, *ledger.Ledger, uuid.UUID) {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := testConfig()

	led := ledger.New(log)
	book := &models.Book{
		ID:               uuid.New(),
		Name:             "prop-1",
		CapitalAllocated: decimal.NewFromInt(100000),
		Status:           models.BookStatusActive,
	}
	led.AddBook(book)

	registry := venues.NewRegistry(log)
	ctx := context.Background()
	for _, id := range []string{"alpha", "beta"} {
		adapter := venues.NewPaperAdapter(id, decimal.Zero)
		require.NoError(t, adapter.Connect(ctx))
		registry.Register(adapter, true)
	}
	registry.RefreshHealth(ctx)

	validator := validation.New()
	scn := scanner.New(cfg.Scanner, fixedQuotes{}, nil, nil, validator,
		[]string{"alpha", "beta"}, log)
	gate := riskgate.New(cfg.Risk, killSwitch, log)
	exec := executor.New(cfg.Executor, registry, led, killSwitch, audit.Nop{}, validator, log)

	eng := New(cfg, scn, gate, exec, led, registry, nil, nil, nil, nil, "alpha", log)
	return eng, led, book.ID
}

// One cycle against paper venues: the spread is detected, gated, and both
// legs settle, leaving positions on the book.
func TestCycleExecutesDetectedSpread(t *testing.T) {
	eng, led, bookID := newEngineFixture(t, venues.AlwaysOn{})

	eng.Cycle(context.Background())

	positions, err := led.ListBookPositions(bookID)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	book, err := led.GetBook(bookID)
	require.NoError(t, err)
	assert.True(t, book.CurrentExposure.Sign() > 0, "buy leg exposure stays reserved")
}

// With the kill switch engaged nothing reaches the venues.
func TestCycleKillSwitchBlocksExecution(t *testing.T) {
	eng, led, bookID := newEngineFixture(t, trippedSwitch{})

	eng.Cycle(context.Background())

	positions, err := led.ListBookPositions(bookID)
	require.NoError(t, err)
	assert.Empty(t, positions)

	book, err := led.GetBook(bookID)
	require.NoError(t, err)
	assert.True(t, book.CurrentExposure.IsZero())
}

func TestDrawdownTracker(t *testing.T) {
	tracker := NewDrawdownTracker()
	bookID := uuid.New()
	tracker.Register(bookID, decimal.NewFromFloat(0.2))

	now := time.Now().UTC()
	tracker.UpdateEquity(bookID, decimal.NewFromInt(100000), now)
	tracker.UpdateEquity(bookID, decimal.NewFromInt(90000), now.Add(time.Minute))

	assert.True(t, tracker.BookDrawdown(bookID).Equal(decimal.NewFromFloat(0.1)))
	assert.False(t, tracker.ShouldHalt(bookID))

	tracker.UpdateEquity(bookID, decimal.NewFromInt(80000), now.Add(2*time.Minute))
	assert.True(t, tracker.ShouldHalt(bookID))

	assert.True(t, tracker.BookDrawdown(uuid.New()).IsZero())
}

// A gated book over its drawdown limit never trades, even with a live
// spread on screen.
func TestCycleSkipsBookOverDrawdown(t *testing.T) {
	log := zaptest.NewLogger(t)
	cfg := testConfig()

	led := ledger.New(log)
	book := &models.Book{
		ID:               uuid.New(),
		Name:             "prop-1",
		CapitalAllocated: decimal.NewFromInt(100000),
		MaxDrawdownLimit: decimal.NewFromFloat(0.2),
		Status:           models.BookStatusActive,
	}
	led.AddBook(book)

	registry := venues.NewRegistry(log)
	ctx := context.Background()
	for _, id := range []string{"alpha", "beta"} {
		adapter := venues.NewPaperAdapter(id, decimal.Zero)
		require.NoError(t, adapter.Connect(ctx))
		registry.Register(adapter, true)
	}
	registry.RefreshHealth(ctx)

	tracker := NewDrawdownTracker()
	tracker.Register(book.ID, book.MaxDrawdownLimit)
	now := time.Now().UTC()
	tracker.UpdateEquity(book.ID, decimal.NewFromInt(100000), now)
	tracker.UpdateEquity(book.ID, decimal.NewFromInt(75000), now.Add(time.Minute))

	validator := validation.New()
	scn := scanner.New(cfg.Scanner, fixedQuotes{}, nil, nil, validator,
		[]string{"alpha", "beta"}, log)
	gate := riskgate.New(cfg.Risk, venues.AlwaysOn{}, log)
	exec := executor.New(cfg.Executor, registry, led, venues.AlwaysOn{}, audit.Nop{}, validator, log)

	eng := New(cfg, scn, gate, exec, led, registry, nil, nil, tracker, nil, "alpha", log)
	eng.Cycle(ctx)

	positions, err := led.ListBookPositions(book.ID)
	require.NoError(t, err)
	assert.Empty(t, positions)
}
