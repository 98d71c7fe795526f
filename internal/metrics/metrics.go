// Package metrics exposes the core's prometheus instrumentation. One
// Metrics value is constructed at startup and passed to the components
// that record on it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the core's counters and gauges.
type Metrics struct {
	IntentsEmitted  prometheus.Counter
	GateDecisions   *prometheus.CounterVec
	LegsPlaced      *prometheus.CounterVec
	UnwindAttempts  prometheus.Counter
	UnwindFailures  prometheus.Counter
	AllocatorRuns   prometheus.Counter
	DroppedMessages *prometheus.CounterVec
	BookExposure    *prometheus.GaugeVec
}

// New registers the core's metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IntentsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbcore_intents_emitted_total",
			Help: "Trade intents emitted by the scanner.",
		}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbcore_gate_decisions_total",
			Help: "Risk gate decisions by outcome.",
		}, []string{"decision"}),
		LegsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbcore_legs_placed_total",
			Help: "Leg placements by venue and outcome.",
		}, []string{"venue", "outcome"}),
		UnwindAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbcore_unwind_attempts_total",
			Help: "Compensating orders attempted after partial failures.",
		}),
		UnwindFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbcore_unwind_failures_total",
			Help: "Unwinds that left residual exposure and halted a book.",
		}),
		AllocatorRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arbcore_allocator_runs_total",
			Help: "Capital allocation passes completed.",
		}),
		DroppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbcore_dropped_messages_total",
			Help: "Quotes dropped by the market-data fan-out per topic.",
		}, []string{"topic"}),
		BookExposure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arbcore_book_exposure_usd",
			Help: "Current exposure per book in USD.",
		}, []string{"book"}),
	}

	reg.MustRegister(
		m.IntentsEmitted,
		m.GateDecisions,
		m.LegsPlaced,
		m.UnwindAttempts,
		m.UnwindFailures,
		m.AllocatorRuns,
		m.DroppedMessages,
		m.BookExposure,
	)
	return m
}
