package allocator

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// EquityPoint is one sample of the tracked equity curve.
type EquityPoint struct {
	Equity decimal.Decimal
	At     time.Time
}

// DrawdownMonitor tracks an equity curve and signals when trading should
// halt. It is consumed by the allocator and by backtest tooling, not owned
// by them.
type DrawdownMonitor struct {
	mu       sync.Mutex
	maxLimit decimal.Decimal
	peak     decimal.Decimal
	current  decimal.Decimal
	curve    []EquityPoint
}

// NewDrawdownMonitor creates a monitor with the given drawdown limit,
// expressed as a fraction of peak equity.
func NewDrawdownMonitor(maxDrawdownLimit decimal.Decimal) *DrawdownMonitor {
	return &DrawdownMonitor{maxLimit: maxDrawdownLimit}
}

// Update records a new equity sample.
func (m *DrawdownMonitor) Update(equity decimal.Decimal, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = equity
	if equity.GreaterThan(m.peak) {
		m.peak = equity
	}
	m.curve = append(m.curve, EquityPoint{Equity: equity, At: at})
}

// CurrentDrawdown returns the drawdown from peak as a fraction. Zero when
// no samples have been recorded or equity sits at its peak.
func (m *DrawdownMonitor) CurrentDrawdown() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawdownLocked()
}

func (m *DrawdownMonitor) drawdownLocked() decimal.Decimal {
	if m.peak.Sign() <= 0 {
		return decimal.Zero
	}
	dd := m.peak.Sub(m.current).Div(m.peak)
	if dd.Sign() < 0 {
		return decimal.Zero
	}
	return dd
}

// ShouldHalt reports whether the current drawdown has reached the
// configured limit.
func (m *DrawdownMonitor) ShouldHalt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxLimit.Sign() <= 0 {
		return false
	}
	return m.drawdownLocked().GreaterThanOrEqual(m.maxLimit)
}

// Curve returns a copy of the recorded equity curve.
func (m *DrawdownMonitor) Curve() []EquityPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EquityPoint, len(m.curve))
	copy(out, m.curve)
	return out
}
