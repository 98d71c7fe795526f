package executor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/internal/audit"
	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/internal/ledger"
	"github.com/Aidin1998/arbcore/internal/venues"
	"github.com/Aidin1998/arbcore/pkg/models"
	"github.com/Aidin1998/arbcore/pkg/validation"
)

// Executor drives one intent through its full multi-leg lifecycle,
// including unwind. A single ExecuteIntent call owns everything: that is
// the only design that can keep the zero-net-exposure guarantee atomic.
type Executor struct {
	cfg        config.ExecutorConfig
	registry   *venues.Registry
	ledger     *ledger.Ledger
	killSwitch venues.KillSwitch
	auditor    audit.Logger
	validator  *validation.Validator
	logger     *zap.Logger
}

// New wires the executor to its collaborators.
func New(
	cfg config.ExecutorConfig,
	registry *venues.Registry,
	led *ledger.Ledger,
	killSwitch venues.KillSwitch,
	auditor audit.Logger,
	validator *validation.Validator,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		cfg:        cfg,
		registry:   registry,
		ledger:     led,
		killSwitch: killSwitch,
		auditor:    auditor,
		validator:  validator,
		logger:     logger.Named("executor"),
	}
}

// ExecuteIntent executes an approved or modified intent. It re-checks the
// kill switch and book state at time of use, reserves exposure before any
// leg, places legs in deterministic order, and unwinds on partial failure.
// A fully unwound execution returns a Result with no orders and a nil
// error: no trade happened.
func (e *Executor) ExecuteIntent(ctx context.Context, check *models.RiskCheckResult, primaryVenue string) (*Result, error) {
	if check == nil || check.Decision == models.RiskDecisionReject {
		reason := "missing risk check"
		var id uuid.UUID
		if check != nil {
			reason = check.Reason
			id = check.IntentID
		}
		return nil, &RiskRejectionError{IntentID: id, Reason: reason}
	}

	intent := check.Effective()
	if err := e.validator.ValidateIntent(intent); err != nil {
		return nil, err
	}

	// Time-of-use re-check: gating happened earlier and the world may
	// have moved. Abort here has no side effects.
	if allowed, reason := e.killSwitch.CheckKillSwitchForTrading(); !allowed {
		return nil, &AbortedError{IntentID: intent.ID, Reason: "kill switch: " + reason}
	}
	book, err := e.ledger.GetBook(intent.BookID)
	if err != nil {
		return nil, &AbortedError{IntentID: intent.ID, Reason: err.Error()}
	}
	if book.Status != models.BookStatusActive {
		return nil, &AbortedError{IntentID: intent.ID, Reason: "book " + string(book.Status)}
	}

	legs, err := buildLegs(intent, primaryVenue)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.ReserveExposure(intent.BookID, intent.TargetUSD); err != nil {
		return nil, &AbortedError{IntentID: intent.ID, Reason: "exposure reservation: " + err.Error()}
	}

	result := &Result{IntentID: intent.ID, State: StateLegPlacing}
	filled, failed := e.placeLegs(ctx, intent, legs, result)

	if !failed {
		return e.settle(intent, filled, result)
	}

	result.State = StatePartiallyFailed
	if len(filled) == 0 {
		// Nothing committed: release the full reservation and report a
		// clean no-trade outcome.
		if err := e.ledger.ReleaseExposure(intent.BookID, intent.TargetUSD); err != nil {
			e.logger.Error("failed to release exposure after clean failure",
				zap.String("intent_id", intent.ID.String()), zap.Error(err))
		}
		result.State = StateUnwound
		return result, nil
	}

	return e.unwind(ctx, intent, filled, result)
}

// placeLegs walks the planned legs in order, accumulating filled orders.
// It reports failure on the first leg that errors, rejects, times out,
// zero-fills or partially fills. A kill-switch flip between legs stops new
// placements; already-placed legs resolve through unwind.
func (e *Executor) placeLegs(ctx context.Context, intent *models.TradeIntent, legs []legPlan, result *Result) ([]*models.Order, bool) {
	var filled []*models.Order
	for _, leg := range legs {
		if allowed, reason := e.killSwitch.CheckKillSwitchForTrading(); !allowed {
			e.logger.Warn("kill switch flipped mid-execution, halting leg placement",
				zap.String("intent_id", intent.ID.String()),
				zap.String("reason", reason))
			return filled, true
		}

		order, ok := e.placeOne(ctx, intent, leg, PhaseLeg, result)
		if !ok {
			if order != nil && order.FilledSize.Sign() > 0 {
				// A partial fill commits capital without completing the
				// leg; the filled portion must be reversed.
				filled = append(filled, order)
			}
			return filled, true
		}
		filled = append(filled, order)
	}
	return filled, false
}

// placeOne places a single order under the leg deadline, records the
// attempt as a leg event, and reports whether the leg fully filled.
func (e *Executor) placeOne(ctx context.Context, intent *models.TradeIntent, leg legPlan, phase LegPhase, result *Result) (*models.Order, bool) {
	legCtx, cancel := context.WithTimeout(ctx, e.cfg.LegTimeout)
	defer cancel()

	order := &models.Order{
		ID:         uuid.New(),
		Venue:      leg.venue,
		Instrument: intent.Instrument,
		Side:       leg.side,
		Size:       leg.size,
		Price:      leg.price,
		Status:     models.OrderStatusOpen,
		CreatedAt:  time.Now().UTC(),
	}

	started := time.Now()
	placed, err := e.registry.PlaceOrder(legCtx, leg.venue, order)
	if placed != nil {
		placed.LatencyMS = time.Since(started).Milliseconds()
	}

	event := LegEvent{
		IntentID: intent.ID,
		Phase:    phase,
		Venue:    leg.venue,
		Side:     leg.side,
		Size:     leg.size,
		OrderID:  order.ID,
		At:       time.Now().UTC(),
	}

	full := false
	switch {
	case err != nil:
		event.Outcome = "error"
		event.Error = err.Error()
	case placed == nil || placed.Status == models.OrderStatusRejected:
		event.Outcome = "rejected"
	case placed.FilledSize.Sign() <= 0:
		event.Outcome = "zero_fill"
	case placed.FilledSize.LessThan(leg.size):
		event.Outcome = "partial_fill"
		event.FilledSize = placed.FilledSize
	default:
		event.Outcome = "filled"
		event.FilledSize = placed.FilledSize
		full = true
	}

	result.LegEvents = append(result.LegEvents, event)
	e.recordLegEvent(ctx, intent, placed, event)

	return placed, full
}

// settle releases exposure slack back to the ledger, records the filled
// positions and marks the intent settled.
func (e *Executor) settle(intent *models.TradeIntent, filled []*models.Order, result *Result) (*Result, error) {
	committed := decimal.Zero
	for _, order := range filled {
		if order.Side == models.OrderSideBuy {
			committed = committed.Add(order.FilledSize.Mul(order.FilledPrice))
		}
		pos := models.Position{
			Venue:      order.Venue,
			Instrument: order.Instrument,
			Quantity:   order.SignedFill(),
			AvgPrice:   order.FilledPrice,
		}
		if err := e.ledger.RecordPosition(intent.BookID, pos); err != nil {
			e.logger.Warn("failed to record position",
				zap.String("intent_id", intent.ID.String()), zap.Error(err))
		}
	}

	// An inventory-mode execution commits no fresh capital on a buy leg;
	// the reservation was protective only.
	slack := intent.TargetUSD.Sub(committed)
	if slack.Sign() > 0 {
		if err := e.ledger.ReleaseExposure(intent.BookID, slack); err != nil {
			e.logger.Error("failed to release exposure slack",
				zap.String("intent_id", intent.ID.String()), zap.Error(err))
		}
	}

	result.State = StateSettled
	result.Orders = filled
	e.logger.Info("intent settled",
		zap.String("intent_id", intent.ID.String()),
		zap.Int("legs", len(filled)),
		zap.String("committed_usd", committed.String()))
	return result, nil
}

// unwind issues compensating opposite-side orders for every filled leg,
// best-effort against the same venues, sized to exactly offset the filled
// quantity. Unwind orders are not re-gated, but venue health is consulted
// where a snapshot exists. If any leg cannot be reversed, the book is
// halted, a critical alert is raised, and the residual exposure reported.
func (e *Executor) unwind(ctx context.Context, intent *models.TradeIntent, filled []*models.Order, result *Result) (*Result, error) {
	result.State = StateUnwinding

	residual := decimal.Zero
	for i := len(filled) - 1; i >= 0; i-- {
		order := filled[i]
		if !e.reverseLeg(ctx, intent, order, result) {
			residual = residual.Add(order.FilledSize.Mul(order.FilledPrice))
		}
	}

	if residual.Sign() > 0 {
		result.State = StateUnwindFailed
		if err := e.ledger.HaltBook(intent.BookID, "unwind failure on intent "+intent.ID.String()); err != nil {
			e.logger.Error("failed to halt book after unwind failure", zap.Error(err))
		}
		// Give back everything except what is still stranded on venue.
		release := intent.TargetUSD.Sub(residual)
		if release.Sign() > 0 {
			if err := e.ledger.ReleaseExposure(intent.BookID, release); err != nil {
				e.logger.Error("failed to release exposure after unwind failure", zap.Error(err))
			}
		}
		e.auditor.CreateAlert(ctx,
			"unwind failure",
			"residual one-sided exposure of "+residual.String()+" USD on book "+intent.BookID.String(),
			audit.SeverityCritical,
			"executor",
			map[string]string{
				"intent_id":    intent.ID.String(),
				"book_id":      intent.BookID.String(),
				"residual_usd": residual.String(),
			})
		return result, &UnwindFailureError{
			IntentID:    intent.ID,
			BookID:      intent.BookID,
			ResidualUSD: residual,
		}
	}

	// Net exposure change is zero: hand back the whole reservation and
	// report that no trade happened.
	if err := e.ledger.ReleaseExposure(intent.BookID, intent.TargetUSD); err != nil {
		e.logger.Error("failed to release exposure after unwind", zap.Error(err))
	}
	result.State = StateUnwound
	result.Orders = nil
	e.logger.Info("intent fully unwound",
		zap.String("intent_id", intent.ID.String()),
		zap.Int("reversed_legs", len(filled)))
	return result, nil
}

// reverseLeg attempts the compensating order for one filled leg, retrying
// up to the configured attempt budget. Remaining quantity shrinks as
// partial reversals land.
func (e *Executor) reverseLeg(ctx context.Context, intent *models.TradeIntent, order *models.Order, result *Result) bool {
	remaining := order.FilledSize
	for attempt := 0; attempt < e.cfg.UnwindMaxAttempts && remaining.Sign() > 0; attempt++ {
		if health, ok := e.registry.Health(order.Venue); ok && !health.Tradable() {
			e.logger.Warn("unwind venue unhealthy, attempting anyway",
				zap.String("venue", order.Venue),
				zap.String("status", string(health.Status)))
		}

		leg := legPlan{
			venue: order.Venue,
			side:  order.Side.Opposite(),
			size:  remaining,
			price: order.FilledPrice,
		}
		reversed, _ := e.placeOne(ctx, intent, leg, PhaseUnwind, result)
		if reversed != nil && reversed.FilledSize.Sign() > 0 {
			remaining = remaining.Sub(reversed.FilledSize)
		}
	}
	return remaining.Sign() <= 0
}

// recordLegEvent writes the leg event to the audit trail, fire-and-forget.
func (e *Executor) recordLegEvent(ctx context.Context, intent *models.TradeIntent, order *models.Order, event LegEvent) {
	after := ""
	if order != nil {
		if raw, err := json.Marshal(order); err == nil {
			after = string(raw)
		}
	}
	action := "executor.leg_attempt"
	severity := audit.SeverityInfo
	if event.Phase == PhaseUnwind {
		action = "executor.unwind_attempt"
		severity = audit.SeverityWarning
	}
	e.auditor.AuditLog(ctx, action, "trade_intent", intent.ID.String(), "", after, severity)
}
