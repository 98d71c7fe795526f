package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/arbcore/internal/allocator"
)

// DrawdownTracker holds one DrawdownMonitor per book and implements
// DrawdownSource. Equity updates come from whatever PnL feed the deployment
// attaches; books without updates read as zero drawdown.
type DrawdownTracker struct {
	mu       sync.RWMutex
	monitors map[uuid.UUID]*allocator.DrawdownMonitor
}

// NewDrawdownTracker creates an empty tracker.
func NewDrawdownTracker() *DrawdownTracker {
	return &DrawdownTracker{monitors: make(map[uuid.UUID]*allocator.DrawdownMonitor)}
}

// Register creates the book's monitor with its halt limit.
func (t *DrawdownTracker) Register(bookID uuid.UUID, maxDrawdownLimit decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.monitors[bookID] = allocator.NewDrawdownMonitor(maxDrawdownLimit)
}

// UpdateEquity feeds one equity sample into the book's monitor.
func (t *DrawdownTracker) UpdateEquity(bookID uuid.UUID, equity decimal.Decimal, at time.Time) {
	t.mu.RLock()
	m, ok := t.monitors[bookID]
	t.mu.RUnlock()
	if ok {
		m.Update(equity, at)
	}
}

// BookDrawdown returns the book's current drawdown fraction.
func (t *DrawdownTracker) BookDrawdown(bookID uuid.UUID) decimal.Decimal {
	t.mu.RLock()
	m, ok := t.monitors[bookID]
	t.mu.RUnlock()
	if !ok {
		return decimal.Zero
	}
	return m.CurrentDrawdown()
}

// ShouldHalt reports whether the book's drawdown breached its limit.
func (t *DrawdownTracker) ShouldHalt(bookID uuid.UUID) bool {
	t.mu.RLock()
	m, ok := t.monitors[bookID]
	t.mu.RUnlock()
	return ok && m.ShouldHalt()
}
