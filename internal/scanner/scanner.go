// Package scanner detects tradable cross-venue spreads and turns them
// into trade intents. One intent at most is emitted per instrument and
// book per cycle; spread observations are persisted for analytics whether
// or not they execute.
package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/internal/config"
	"github.com/Aidin1998/arbcore/internal/marketdata"
	"github.com/Aidin1998/arbcore/internal/riskgate"
	"github.com/Aidin1998/arbcore/pkg/models"
	"github.com/Aidin1998/arbcore/pkg/validation"
)

const bpsFactor = 10000

// ObservationStore persists detected spreads for analytics.
type ObservationStore interface {
	SaveObservation(ctx context.Context, obs *models.SpreadObservation) error
}

// candidate is one viable venue pair for an instrument.
type candidate struct {
	buy   models.SpotQuote // quote we lift the ask of
	sell  models.SpotQuote // quote we hit the bid of
	gross decimal.Decimal  // spread in bps before costs
	net   decimal.Decimal  // spread in bps net of round-trip costs
}

// Scanner computes pairwise spreads across venue quotes.
type Scanner struct {
	cfg       config.ScannerConfig
	quotes    marketdata.QuoteSource
	inventory marketdata.InventoryLookup
	store     ObservationStore
	validator *validation.Validator
	logger    *zap.Logger
	venueIDs  []string
}

// New wires a scanner to its collaborators. venueIDs fixes the venues
// considered each cycle.
func New(
	cfg config.ScannerConfig,
	quotes marketdata.QuoteSource,
	inventory marketdata.InventoryLookup,
	store ObservationStore,
	validator *validation.Validator,
	venueIDs []string,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		cfg:       cfg,
		quotes:    quotes,
		inventory: inventory,
		store:     store,
		validator: validator,
		venueIDs:  venueIDs,
		logger:    logger.Named("scanner"),
	}
}

// ScanInstrument evaluates one instrument for one book and returns zero or
// one intent. A quote-fetch failure for a venue excludes that venue for
// this cycle only and never fails the scan.
func (s *Scanner) ScanInstrument(ctx context.Context, book *models.Book, instrument string) (*models.TradeIntent, error) {
	quotes := s.collectQuotes(ctx, instrument)
	if len(quotes) < 2 {
		return nil, nil
	}

	best := s.bestCandidate(quotes)
	if best == nil {
		return nil, nil
	}

	intent, err := s.buildIntent(ctx, book, instrument, best)

	s.persistObservation(ctx, instrument, best, intent != nil)

	if err != nil {
		return nil, err
	}
	return intent, nil
}

// collectQuotes fetches fresh quotes per venue, dropping stale quotes and
// venues whose fetch failed.
func (s *Scanner) collectQuotes(ctx context.Context, instrument string) []models.SpotQuote {
	var out []models.SpotQuote
	for _, venueID := range s.venueIDs {
		quotes, err := s.quotes.GetQuotes(ctx, venueID, instrument)
		if err != nil {
			s.logger.Warn("quote fetch failed, excluding venue this cycle",
				zap.String("venue", venueID),
				zap.String("instrument", instrument),
				zap.Error(err))
			continue
		}
		for _, q := range quotes {
			if !q.Fresh(s.cfg.MaxQuoteAgeMS) {
				continue
			}
			if q.BidPrice.Sign() <= 0 || q.AskPrice.Sign() <= 0 {
				continue
			}
			out = append(out, q)
		}
	}
	return out
}

// bestCandidate scans every ordered venue pair and keeps the one with the
// highest net spread above the configured minimum.
func (s *Scanner) bestCandidate(quotes []models.SpotQuote) *candidate {
	minSpread := decimal.NewFromFloat(s.cfg.MinSpreadBps)
	costs := decimal.NewFromFloat(s.cfg.RoundTripCostBps)

	var best *candidate
	for i := range quotes {
		for j := range quotes {
			if i == j || quotes[i].Venue == quotes[j].Venue {
				continue
			}
			buy, sell := quotes[i], quotes[j]
			edge := sell.BidPrice.Sub(buy.AskPrice)
			if edge.Sign() <= 0 {
				continue
			}
			gross := edge.Div(buy.AskPrice).Mul(decimal.NewFromInt(bpsFactor))
			net := gross.Sub(costs)
			if net.LessThan(minSpread) {
				continue
			}
			if best == nil || net.GreaterThan(best.net) {
				best = &candidate{buy: buy, sell: sell, gross: gross, net: net}
			}
		}
	}
	return best
}

// buildIntent sizes the opportunity and decides the execution mode.
func (s *Scanner) buildIntent(ctx context.Context, book *models.Book, instrument string, c *candidate) (*models.TradeIntent, error) {
	notional := s.sizeNotional(c)
	if notional.LessThan(decimal.NewFromFloat(s.cfg.MinNotionalUSD)) {
		return nil, nil
	}

	mode := s.executionMode(ctx, c, notional)

	intent := &models.TradeIntent{
		ID:            uuid.New(),
		StrategyID:    "spot-arb",
		BookID:        book.ID,
		Instrument:    instrument,
		Direction:     models.IntentDirectionBuy,
		TargetUSD:     notional,
		MaxLossUSD:    notional.Mul(c.net).Div(decimal.NewFromInt(bpsFactor)),
		Confidence:    s.confidence(c),
		ExecutionMode: mode,
		Metadata: map[string]string{
			riskgate.MetaBuyVenue:  c.buy.Venue,
			riskgate.MetaSellVenue: c.sell.Venue,
			riskgate.MetaCluster:   "spot-arb",
			"buy_price":            c.buy.AskPrice.String(),
			"sell_price":           c.sell.BidPrice.String(),
			"buy_depth_usd":        c.buy.AskSize.Mul(c.buy.AskPrice).StringFixed(2),
			"sell_depth_usd":       c.sell.BidSize.Mul(c.sell.BidPrice).StringFixed(2),
			"net_spread_bps":       c.net.StringFixed(2),
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := s.validator.ValidateIntent(intent); err != nil {
		return nil, err
	}
	return intent, nil
}

// sizeNotional caps the intent at the configured notional and at what the
// thinner side of the pair can absorb.
func (s *Scanner) sizeNotional(c *candidate) decimal.Decimal {
	buyDepth := c.buy.AskSize.Mul(c.buy.AskPrice)
	sellDepth := c.sell.BidSize.Mul(c.sell.BidPrice)
	notional := decimal.Min(buyDepth, sellDepth)
	return decimal.Min(notional, decimal.NewFromFloat(s.cfg.MaxNotionalUSD))
}

// executionMode returns inventory when the book already holds enough
// unhedged position on the sell side to cover the notional with a single
// leg, else legged.
func (s *Scanner) executionMode(ctx context.Context, c *candidate, notional decimal.Decimal) models.ExecutionMode {
	if s.inventory == nil {
		return models.ExecutionModeLegged
	}
	pos, err := s.inventory.UnhedgedPosition(ctx, c.sell.Venue, c.sell.Instrument)
	if err != nil {
		s.logger.Debug("inventory lookup failed, assuming legged",
			zap.String("venue", c.sell.Venue),
			zap.Error(err))
		return models.ExecutionModeLegged
	}
	held := pos.Quantity.Mul(c.sell.BidPrice)
	if held.GreaterThanOrEqual(notional) {
		return models.ExecutionModeInventory
	}
	return models.ExecutionModeLegged
}

// confidence maps net edge onto [0,1]: at twice the minimum spread the
// scanner is fully confident.
func (s *Scanner) confidence(c *candidate) float64 {
	minSpread := s.cfg.MinSpreadBps
	if minSpread <= 0 {
		return 1
	}
	ratio, _ := c.net.Div(decimal.NewFromFloat(2 * minSpread)).Float64()
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

func (s *Scanner) persistObservation(ctx context.Context, instrument string, c *candidate, emitted bool) {
	if s.store == nil {
		return
	}
	obs := &models.SpreadObservation{
		Instrument: instrument,
		BuyVenue:   c.buy.Venue,
		SellVenue:  c.sell.Venue,
		BuyPrice:   c.buy.AskPrice,
		SellPrice:  c.sell.BidPrice,
		SpreadBps:  c.gross,
		NetBps:     c.net,
		Emitted:    emitted,
		ObservedAt: time.Now().UTC(),
	}
	if err := s.store.SaveObservation(ctx, obs); err != nil {
		s.logger.Warn("failed to persist spread observation",
			zap.String("instrument", instrument),
			zap.Error(err))
	}
}

// Scan runs ScanInstrument for every active book and instrument, returning
// all emitted intents.
func (s *Scanner) Scan(ctx context.Context, books []*models.Book, instruments []string) []*models.TradeIntent {
	var intents []*models.TradeIntent
	for _, book := range books {
		if book.Status != models.BookStatusActive {
			continue
		}
		for _, instrument := range instruments {
			intent, err := s.ScanInstrument(ctx, book, instrument)
			if err != nil {
				s.logger.Warn("scan produced invalid intent",
					zap.String("instrument", instrument),
					zap.String("book_id", book.ID.String()),
					zap.Error(err))
				continue
			}
			if intent != nil {
				intents = append(intents, intent)
			}
		}
	}
	return intents
}
