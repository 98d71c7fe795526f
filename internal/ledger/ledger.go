// Package ledger owns the capital books: exposure reservation and release,
// drawdown limits and halt state. Exposure mutation is serialized per book
// so two concurrent intents can never both reserve against headroom that
// only exists once.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/pkg/models"
)

var (
	// ErrBookNotFound is returned for lookups of unknown books.
	ErrBookNotFound = errors.New("ledger: book not found")
	// ErrBookNotActive is returned when reserving against a paused or
	// halted book.
	ErrBookNotActive = errors.New("ledger: book not active")
	// ErrInsufficientHeadroom is returned when a reservation would push
	// exposure past allocated capital.
	ErrInsufficientHeadroom = errors.New("ledger: insufficient exposure headroom")
)

type bookEntry struct {
	mu        sync.Mutex
	book      *models.Book
	positions []models.Position
}

// Ledger is the in-memory book registry. Each book carries its own mutex;
// operations on different books never contend.
type Ledger struct {
	logger *zap.Logger
	mu     sync.RWMutex
	books  map[uuid.UUID]*bookEntry
}

// New creates an empty ledger.
func New(logger *zap.Logger) *Ledger {
	return &Ledger{
		logger: logger.Named("ledger"),
		books:  make(map[uuid.UUID]*bookEntry),
	}
}

// AddBook registers a book. An existing book with the same id is replaced.
func (l *Ledger) AddBook(book *models.Book) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.books[book.ID] = &bookEntry{book: book}
}

func (l *Ledger) entry(bookID uuid.UUID) (*bookEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.books[bookID]
	if !ok {
		return nil, ErrBookNotFound
	}
	return e, nil
}

// GetBook returns a copy of the book's current state.
func (l *Ledger) GetBook(bookID uuid.UUID) (*models.Book, error) {
	e, err := l.entry(bookID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.book
	return &cp, nil
}

// ListBooks returns copies of all registered books.
func (l *Ledger) ListBooks() []*models.Book {
	l.mu.RLock()
	entries := make([]*bookEntry, 0, len(l.books))
	for _, e := range l.books {
		entries = append(entries, e)
	}
	l.mu.RUnlock()

	out := make([]*models.Book, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		cp := *e.book
		e.mu.Unlock()
		out = append(out, &cp)
	}
	return out
}

// ReserveExposure atomically checks headroom and increases the book's
// exposure by delta. The check and the mutation happen under the book's
// lock, so a stale snapshot can never admit two conflicting reservations.
func (l *Ledger) ReserveExposure(bookID uuid.UUID, delta decimal.Decimal) error {
	if delta.Sign() <= 0 {
		return fmt.Errorf("ledger: reserve delta must be positive, got %s", delta)
	}
	e, err := l.entry(bookID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.book.Status != models.BookStatusActive {
		return ErrBookNotActive
	}
	next := e.book.CurrentExposure.Add(delta)
	if next.GreaterThan(e.book.CapitalAllocated) {
		return ErrInsufficientHeadroom
	}
	e.book.CurrentExposure = next
	e.book.UpdatedAt = time.Now().UTC()
	return nil
}

// ReleaseExposure decreases the book's exposure by delta, clamping at
// zero. Releasing against a halted book is allowed: unwinds must always be
// able to give capital back.
func (l *Ledger) ReleaseExposure(bookID uuid.UUID, delta decimal.Decimal) error {
	if delta.Sign() < 0 {
		return fmt.Errorf("ledger: release delta must not be negative, got %s", delta)
	}
	e, err := l.entry(bookID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.book.CurrentExposure.Sub(delta)
	if next.Sign() < 0 {
		l.logger.Warn("exposure release clamped at zero",
			zap.String("book_id", bookID.String()),
			zap.String("delta", delta.String()),
			zap.String("current", e.book.CurrentExposure.String()))
		next = decimal.Zero
	}
	e.book.CurrentExposure = next
	e.book.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordPosition appends or updates a position attributed to the book.
func (l *Ledger) RecordPosition(bookID uuid.UUID, pos models.Position) error {
	e, err := l.entry(bookID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.positions {
		if e.positions[i].Venue == pos.Venue && e.positions[i].Instrument == pos.Instrument {
			e.positions[i].Quantity = e.positions[i].Quantity.Add(pos.Quantity)
			e.positions[i].AvgPrice = pos.AvgPrice
			e.positions[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	pos.BookID = bookID
	pos.UpdatedAt = time.Now().UTC()
	e.positions = append(e.positions, pos)
	return nil
}

// ListBookPositions returns copies of the book's open positions.
func (l *Ledger) ListBookPositions(bookID uuid.UUID) ([]models.Position, error) {
	e, err := l.entry(bookID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Position, len(e.positions))
	copy(out, e.positions)
	return out, nil
}

// HaltBook flags the book so no further exposure can be reserved. Used by
// the executor when an unwind fails and residual exposure remains.
func (l *Ledger) HaltBook(bookID uuid.UUID, reason string) error {
	e, err := l.entry(bookID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.book.Status = models.BookStatusHalted
	e.book.UpdatedAt = time.Now().UTC()
	l.logger.Error("book halted",
		zap.String("book_id", bookID.String()),
		zap.String("reason", reason))
	return nil
}

// AggregateExposure sums current exposure across all books. The risk gate
// checks aggregate open-arb notional against this.
func (l *Ledger) AggregateExposure() decimal.Decimal {
	total := decimal.Zero
	for _, b := range l.ListBooks() {
		total = total.Add(b.CurrentExposure)
	}
	return total
}
