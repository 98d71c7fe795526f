// Package riskgate evaluates trade intents against hard limits and
// circuit breakers. Evaluation is pure and synchronous over already
// fetched state: no I/O is issued beyond logging, and a rejected intent
// must never reach the executor.
package riskgate

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/internal/venues"
	"github.com/Aidin1998/arbcore/pkg/models"
)

// Metadata keys the scanner stamps on intents and the gate reads to
// resolve routing.
const (
	MetaVenue     = "venue"
	MetaBuyVenue  = "buy_venue"
	MetaSellVenue = "sell_venue"
	MetaCluster   = "correlation_cluster"
	MetaRiskNote  = "risk_modification"
)

// EvalContext carries the pre-fetched state a single evaluation runs over.
// Callers assemble it before invoking Evaluate so the gate itself stays
// side-effect free.
type EvalContext struct {
	Book                *models.Book
	BookDrawdown        decimal.Decimal
	AggregateOpenArbUSD decimal.Decimal
	TotalCapitalUSD     decimal.Decimal
	VenueExposureUSD    map[string]decimal.Decimal
	ClusterExposureUSD  decimal.Decimal
	VenueHealth         map[string]*models.VenueHealth
}

// Gate applies the ordered limit checks.
type Gate struct {
	cfg        config.RiskConfig
	killSwitch venues.KillSwitch
	logger     *zap.Logger
}

// New creates a gate with static limits. The kill switch is the only
// collaborator and is assumed to answer without I/O.
func New(cfg config.RiskConfig, killSwitch venues.KillSwitch, logger *zap.Logger) *Gate {
	return &Gate{
		cfg:        cfg,
		killSwitch: killSwitch,
		logger:     logger.Named("riskgate"),
	}
}

// Evaluate runs the checks in order, short-circuiting on the first
// failure. The result is approve (unchanged), modify (intent resized
// downward to the largest compliant notional, never upward), or reject
// with a reason.
func (g *Gate) Evaluate(intent *models.TradeIntent, ectx *EvalContext) *models.RiskCheckResult {
	result := &models.RiskCheckResult{
		Decision:       models.RiskDecisionApprove,
		IntentID:       intent.ID,
		OriginalIntent: intent,
		EvaluatedAt:    time.Now().UTC(),
	}

	if allowed, reason := g.killSwitch.CheckKillSwitchForTrading(); !allowed {
		return g.reject(result, "kill switch engaged: "+reason)
	}

	book := ectx.Book
	if book == nil || book.ID != intent.BookID {
		return g.reject(result, "book state unavailable for intent")
	}
	if book.Status != models.BookStatusActive {
		return g.reject(result, "book not active: "+string(book.Status))
	}
	if book.MaxDrawdownLimit.Sign() > 0 && ectx.BookDrawdown.GreaterThanOrEqual(book.MaxDrawdownLimit) {
		return g.reject(result, "book over max drawdown limit")
	}

	maxCompliant := g.largestCompliantNotional(intent, ectx)
	if maxCompliant.Sign() <= 0 {
		return g.reject(result, "no compliant notional available under exposure caps")
	}

	for _, venueID := range RouteVenues(intent) {
		if reason := g.venueTripped(venueID, ectx.VenueHealth); reason != "" {
			return g.reject(result, reason)
		}
	}
	if maxCompliant.LessThan(intent.TargetUSD) {
		modified := intent.Clone()
		modified.TargetUSD = maxCompliant
		modified.Annotate(MetaRiskNote, "notional reduced from "+intent.TargetUSD.String()+" to "+maxCompliant.String())
		result.Decision = models.RiskDecisionModify
		result.ModifiedIntent = modified
		g.logger.Info("intent modified",
			zap.String("intent_id", intent.ID.String()),
			zap.String("original_usd", intent.TargetUSD.String()),
			zap.String("modified_usd", maxCompliant.String()))
		return result
	}

	return result
}

func (g *Gate) reject(result *models.RiskCheckResult, reason string) *models.RiskCheckResult {
	result.Decision = models.RiskDecisionReject
	result.Reason = reason
	g.logger.Info("intent rejected",
		zap.String("intent_id", result.IntentID.String()),
		zap.String("reason", reason))
	return result
}

// venueTripped applies the latency and error-rate circuit breakers against
// the cached health snapshot.
func (g *Gate) venueTripped(venueID string, health map[string]*models.VenueHealth) string {
	h, ok := health[venueID]
	if !ok {
		return "no health snapshot for venue " + venueID
	}
	if !h.Tradable() {
		return "venue " + venueID + " not tradable: " + string(h.Status)
	}
	if g.cfg.BreakerMaxLatencyMS > 0 && h.LatencyMS > g.cfg.BreakerMaxLatencyMS {
		return "venue " + venueID + " latency breaker tripped"
	}
	if g.cfg.BreakerMaxErrorRate > 0 && h.ErrorRate > g.cfg.BreakerMaxErrorRate {
		return "venue " + venueID + " error-rate breaker tripped"
	}
	return ""
}

// largestCompliantNotional computes the tightest of the per-arb, per-book,
// aggregate, venue-concentration and cluster caps. Resizing only ever
// shrinks an intent.
func (g *Gate) largestCompliantNotional(intent *models.TradeIntent, ectx *EvalContext) decimal.Decimal {
	limit := intent.TargetUSD

	if g.cfg.MaxArbNotionalUSD > 0 {
		limit = decimal.Min(limit, decimal.NewFromFloat(g.cfg.MaxArbNotionalUSD))
	}

	book := ectx.Book
	if g.cfg.MaxBookExposurePct > 0 {
		bookCap := book.CapitalAllocated.Mul(decimal.NewFromFloat(g.cfg.MaxBookExposurePct))
		limit = decimal.Min(limit, bookCap.Sub(book.CurrentExposure))
	}

	if g.cfg.MaxAggregateArbUSD > 0 {
		headroom := decimal.NewFromFloat(g.cfg.MaxAggregateArbUSD).Sub(ectx.AggregateOpenArbUSD)
		limit = decimal.Min(limit, headroom)
	}

	if g.cfg.MaxVenueExposurePct > 0 && ectx.TotalCapitalUSD.Sign() > 0 {
		venueCap := ectx.TotalCapitalUSD.Mul(decimal.NewFromFloat(g.cfg.MaxVenueExposurePct))
		for _, venueID := range RouteVenues(intent) {
			used := ectx.VenueExposureUSD[venueID]
			limit = decimal.Min(limit, venueCap.Sub(used))
		}
	}

	if g.cfg.MaxClusterExposurePct > 0 && ectx.TotalCapitalUSD.Sign() > 0 {
		if _, ok := intent.Metadata[MetaCluster]; ok {
			clusterCap := ectx.TotalCapitalUSD.Mul(decimal.NewFromFloat(g.cfg.MaxClusterExposurePct))
			limit = decimal.Min(limit, clusterCap.Sub(ectx.ClusterExposureUSD))
		}
	}

	if limit.Sign() < 0 {
		return decimal.Zero
	}
	return limit
}

// RouteVenues resolves the venues an intent touches from its metadata.
func RouteVenues(intent *models.TradeIntent) []string {
	seen := make(map[string]struct{}, 2)
	var out []string
	for _, key := range []string{MetaVenue, MetaBuyVenue, MetaSellVenue} {
		if v, ok := intent.Metadata[key]; ok && v != "" {
			if _, dup := seen[v]; !dup {
				seen[v] = struct{}{}
				out = append(out, v)
			}
		}
	}
	return out
}
