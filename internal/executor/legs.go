package executor

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Aidin1998/arbcore/internal/riskgate"
	"github.com/Aidin1998/arbcore/pkg/models"
)

// Metadata keys the scanner stamps for leg planning.
const (
	metaBuyPrice  = "buy_price"
	metaSellPrice = "sell_price"
	metaBuyDepth  = "buy_depth_usd"
	metaSellDepth = "sell_depth_usd"
)

// legPlan is one venue order the executor intends to place.
type legPlan struct {
	venue    string
	side     models.OrderSide
	size     decimal.Decimal
	price    decimal.Decimal
	depthUSD decimal.Decimal
}

// buildLegs translates an intent into its ordered leg plans. Legged
// intents produce a buy on the cheap venue and a sell on the rich venue;
// inventory intents need only the sell leg. Legs are ordered so the venue
// supplying the scarcer side goes first — an early failure then avoids
// committing capital on the harder leg — with venue id as a deterministic
// tiebreak.
func buildLegs(intent *models.TradeIntent, primaryVenue string) ([]legPlan, error) {
	meta := intent.Metadata

	buyVenue := meta[riskgate.MetaBuyVenue]
	sellVenue := meta[riskgate.MetaSellVenue]
	if sellVenue == "" {
		sellVenue = meta[riskgate.MetaVenue]
	}
	if sellVenue == "" {
		sellVenue = primaryVenue
	}

	buyPrice, err := metaPrice(meta, metaBuyPrice)
	if err != nil && intent.ExecutionMode == models.ExecutionModeLegged {
		return nil, err
	}
	sellPrice, err := metaPrice(meta, metaSellPrice)
	if err != nil {
		return nil, err
	}

	sellSize := intent.TargetUSD.Div(sellPrice)
	sellLeg := legPlan{
		venue:    sellVenue,
		side:     models.OrderSideSell,
		size:     sellSize,
		price:    sellPrice,
		depthUSD: metaDepth(meta, metaSellDepth),
	}

	if intent.ExecutionMode == models.ExecutionModeInventory {
		return []legPlan{sellLeg}, nil
	}

	if buyVenue == "" {
		return nil, fmt.Errorf("executor: legged intent %s missing buy venue", intent.ID)
	}
	buyLeg := legPlan{
		venue:    buyVenue,
		side:     models.OrderSideBuy,
		size:     intent.TargetUSD.Div(buyPrice),
		price:    buyPrice,
		depthUSD: metaDepth(meta, metaBuyDepth),
	}

	legs := []legPlan{buyLeg, sellLeg}
	sort.SliceStable(legs, func(i, j int) bool {
		di, dj := legs[i].depthUSD, legs[j].depthUSD
		if !di.Equal(dj) {
			if di.Sign() == 0 {
				return false
			}
			if dj.Sign() == 0 {
				return true
			}
			return di.LessThan(dj)
		}
		return legs[i].venue < legs[j].venue
	})
	return legs, nil
}

func metaPrice(meta map[string]string, key string) (decimal.Decimal, error) {
	raw, ok := meta[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("executor: intent metadata missing %s", key)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("executor: bad %s %q: %w", key, raw, err)
	}
	if price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("executor: %s must be positive, got %s", key, price)
	}
	return price, nil
}

func metaDepth(meta map[string]string, key string) decimal.Decimal {
	raw, ok := meta[key]
	if !ok {
		return decimal.Zero
	}
	depth, err := decimal.NewFromString(raw)
	if err != nil || depth.Sign() < 0 {
		return decimal.Zero
	}
	return depth
}
