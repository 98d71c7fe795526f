// Package marketdata defines the quote-source collaborator interface and a
// bounded fan-out for distributing quotes to in-process subscribers.
package marketdata

import (
	"context"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// QuoteSource supplies venue quotes. The market-data collaborator that
// implements it owns ingestion and normalization; freshness is
// communicated through SpotQuote.AgeMS.
type QuoteSource interface {
	GetQuotes(ctx context.Context, venue, instrument string) ([]models.SpotQuote, error)
}

// InventoryLookup reports the unhedged position a book already holds at a
// venue, used by the scanner to decide the execution mode.
type InventoryLookup interface {
	UnhedgedPosition(ctx context.Context, venue, instrument string) (models.Position, error)
}
