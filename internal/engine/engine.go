// Package engine runs the scan, gate, execute cycle and the periodic
// health and allocation passes. It owns no trading logic itself: it
// assembles the state snapshots its collaborators evaluate over and
// moves intents between them.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/internal/allocator"
	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/internal/executor"
	"github.com/Aidin1998/arbcore/internal/ledger"
	"github.com/Aidin1998/arbcore/internal/metrics"
	"github.com/Aidin1998/arbcore/internal/riskgate"
	"github.com/Aidin1998/arbcore/internal/scanner"
	"github.com/Aidin1998/arbcore/internal/venues"
	"github.com/Aidin1998/arbcore/pkg/models"
)

const healthRefreshInterval = 15 * time.Second

// AllocationSource supplies the strategy universe and performance data an
// allocation pass reads. Nil disables the allocation ticker.
type AllocationSource interface {
	AllocationInput(ctx context.Context) (allocator.Input, error)
}

// DrawdownSource reports the current drawdown fraction per book, usually
// backed by per-book DrawdownMonitors fed from an equity stream. Nil means
// no drawdown signal and books are gated on exposure limits only.
type DrawdownSource interface {
	BookDrawdown(bookID uuid.UUID) decimal.Decimal
}

// Engine drives the trading cycle.
type Engine struct {
	cfg       *config.Config
	scanner   *scanner.Scanner
	gate      *riskgate.Gate
	exec      *executor.Executor
	ledger    *ledger.Ledger
	registry  *venues.Registry
	allocator *allocator.Allocator
	allocSrc  AllocationSource
	drawdowns DrawdownSource
	metrics   *metrics.Metrics
	logger    *zap.Logger

	primaryVenue string
}

// New wires the engine. metrics may be nil when instrumentation is not
// wanted, allocSrc may be nil when no allocation feed is attached.
func New(
	cfg *config.Config,
	scn *scanner.Scanner,
	gate *riskgate.Gate,
	exec *executor.Executor,
	led *ledger.Ledger,
	registry *venues.Registry,
	alloc *allocator.Allocator,
	allocSrc AllocationSource,
	drawdowns DrawdownSource,
	m *metrics.Metrics,
	primaryVenue string,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:          cfg,
		scanner:      scn,
		gate:         gate,
		exec:         exec,
		ledger:       led,
		registry:     registry,
		allocator:    alloc,
		allocSrc:     allocSrc,
		drawdowns:    drawdowns,
		metrics:      m,
		primaryVenue: primaryVenue,
		logger:       logger.Named("engine"),
	}
}

// Run blocks until the context is cancelled, executing scan cycles at the
// configured interval plus periodic venue-health and allocation passes.
func (e *Engine) Run(ctx context.Context) error {
	e.registry.RefreshHealth(ctx)

	scanTicker := time.NewTicker(e.cfg.Scanner.ScanInterval)
	defer scanTicker.Stop()
	healthTicker := time.NewTicker(healthRefreshInterval)
	defer healthTicker.Stop()

	var allocCh <-chan time.Time
	if e.allocator != nil && e.allocSrc != nil {
		interval := time.Duration(e.cfg.Allocation.CooldownMinutes) * time.Minute
		if interval <= 0 {
			interval = time.Hour
		}
		allocTicker := time.NewTicker(interval)
		defer allocTicker.Stop()
		allocCh = allocTicker.C
	}

	e.logger.Info("engine started",
		zap.Duration("scan_interval", e.cfg.Scanner.ScanInterval),
		zap.Strings("instruments", e.cfg.Instruments))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return ctx.Err()
		case <-healthTicker.C:
			e.registry.RefreshHealth(ctx)
		case <-allocCh:
			e.runAllocation(ctx)
		case <-scanTicker.C:
			e.Cycle(ctx)
		}
	}
}

// Cycle runs one scan pass and pushes every emitted intent through the
// gate and, when admitted, the executor. Failures on one intent never
// abort the cycle.
func (e *Engine) Cycle(ctx context.Context) {
	books := e.ledger.ListBooks()
	intents := e.scanner.Scan(ctx, books, e.cfg.Instruments)
	if e.metrics != nil {
		e.metrics.IntentsEmitted.Add(float64(len(intents)))
	}

	for _, intent := range intents {
		e.processIntent(ctx, intent)
	}

	e.publishExposureGauges(books)
}

func (e *Engine) processIntent(ctx context.Context, intent *models.TradeIntent) {
	ectx, err := e.buildEvalContext(intent)
	if err != nil {
		e.logger.Warn("could not assemble risk context, skipping intent",
			zap.String("intent_id", intent.ID.String()),
			zap.Error(err))
		return
	}

	check := e.gate.Evaluate(intent, ectx)
	if e.metrics != nil {
		e.metrics.GateDecisions.WithLabelValues(string(check.Decision)).Inc()
	}
	if check.Decision == models.RiskDecisionReject {
		return
	}

	result, err := e.exec.ExecuteIntent(ctx, check, e.primaryVenue)
	e.recordExecution(intent, result, err)
}

func (e *Engine) recordExecution(intent *models.TradeIntent, result *executor.Result, err error) {
	if e.metrics != nil && result != nil {
		for _, ev := range result.LegEvents {
			e.metrics.LegsPlaced.WithLabelValues(ev.Venue, ev.Outcome).Inc()
			if ev.Phase == executor.PhaseUnwind {
				e.metrics.UnwindAttempts.Inc()
			}
		}
	}

	var unwindErr *executor.UnwindFailureError
	switch {
	case errors.As(err, &unwindErr):
		if e.metrics != nil {
			e.metrics.UnwindFailures.Inc()
		}
		e.logger.Error("unwind failure, book halted",
			zap.String("intent_id", intent.ID.String()),
			zap.String("residual_usd", unwindErr.ResidualUSD.String()))
	case err != nil:
		e.logger.Warn("execution failed",
			zap.String("intent_id", intent.ID.String()),
			zap.Error(err))
	case result != nil && result.State == executor.StateSettled:
		e.logger.Info("intent executed",
			zap.String("intent_id", intent.ID.String()),
			zap.Int("legs", len(result.Orders)))
	}
}

// buildEvalContext snapshots ledger and venue state for one gate pass.
// The gate itself does no I/O; everything it reads is fetched here.
func (e *Engine) buildEvalContext(intent *models.TradeIntent) (*riskgate.EvalContext, error) {
	book, err := e.ledger.GetBook(intent.BookID)
	if err != nil {
		return nil, err
	}

	totalCapital := decimal.Zero
	venueExposure := make(map[string]decimal.Decimal)
	for _, b := range e.ledger.ListBooks() {
		totalCapital = totalCapital.Add(b.CapitalAllocated)
		positions, err := e.ledger.ListBookPositions(b.ID)
		if err != nil {
			continue
		}
		for _, pos := range positions {
			notional := pos.Quantity.Mul(pos.AvgPrice).Abs()
			venueExposure[pos.Venue] = venueExposure[pos.Venue].Add(notional)
		}
	}

	aggregate := e.ledger.AggregateExposure()

	drawdown := decimal.Zero
	if e.drawdowns != nil {
		drawdown = e.drawdowns.BookDrawdown(book.ID)
	}

	return &riskgate.EvalContext{
		Book:                book,
		BookDrawdown:        drawdown,
		AggregateOpenArbUSD: aggregate,
		TotalCapitalUSD:     totalCapital,
		VenueExposureUSD:    venueExposure,
		// The core currently runs a single correlation cluster, so the
		// aggregate open notional is the cluster's exposure until a
		// multi-strategy feed attributes clusters individually.
		ClusterExposureUSD: aggregate,
		VenueHealth:        e.registry.HealthSnapshot(),
	}, nil
}

func (e *Engine) runAllocation(ctx context.Context) {
	in, err := e.allocSrc.AllocationInput(ctx)
	if err != nil {
		e.logger.Warn("allocation input unavailable", zap.Error(err))
		return
	}
	allocations := e.allocator.ComputeAllocations(in)
	if e.metrics != nil {
		e.metrics.AllocatorRuns.Inc()
	}
	for _, alloc := range allocations {
		e.logger.Info("allocation computed",
			zap.String("strategy_id", alloc.StrategyID),
			zap.String("allocation_pct", alloc.AllocationPct.String()),
			zap.String("capital_usd", alloc.CapitalUSD.String()))
	}
}

func (e *Engine) publishExposureGauges(books []*models.Book) {
	if e.metrics == nil {
		return
	}
	for _, b := range books {
		exposure, _ := b.CurrentExposure.Float64()
		e.metrics.BookExposure.WithLabelValues(b.Name).Set(exposure)
	}
}
