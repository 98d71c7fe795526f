package marketdata

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Aidin1998/arbcore/pkg/models"
)

// Fanout distributes quotes to bounded per-subscriber channels, one topic
// per instrument. A slow subscriber loses messages and the loss is
// counted, never silently swallowed.
type Fanout struct {
	logger  *zap.Logger
	bufSize int

	mu      sync.RWMutex
	subs    map[string][]chan models.SpotQuote
	dropped map[string]*atomic.Int64
}

// NewFanout creates a fan-out whose subscriber channels hold bufSize
// quotes each.
func NewFanout(bufSize int, logger *zap.Logger) *Fanout {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Fanout{
		logger:  logger.Named("md-fanout"),
		bufSize: bufSize,
		subs:    make(map[string][]chan models.SpotQuote),
		dropped: make(map[string]*atomic.Int64),
	}
}

// Subscribe returns a receive channel for one instrument topic.
func (f *Fanout) Subscribe(instrument string) <-chan models.SpotQuote {
	ch := make(chan models.SpotQuote, f.bufSize)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[instrument] = append(f.subs[instrument], ch)
	if f.dropped[instrument] == nil {
		f.dropped[instrument] = &atomic.Int64{}
	}
	return ch
}

// Publish delivers a quote to every subscriber of its instrument without
// blocking. Full subscriber buffers increment the topic's drop counter.
func (f *Fanout) Publish(quote models.SpotQuote) {
	f.mu.RLock()
	subs := f.subs[quote.Instrument]
	counter := f.dropped[quote.Instrument]
	f.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- quote:
		default:
			if counter != nil {
				if n := counter.Add(1); n%1000 == 1 {
					f.logger.Warn("dropping quotes for slow subscriber",
						zap.String("instrument", quote.Instrument),
						zap.Int64("dropped_total", n))
				}
			}
		}
	}
}

// Dropped returns the total messages dropped for an instrument topic.
func (f *Fanout) Dropped(instrument string) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if c := f.dropped[instrument]; c != nil {
		return c.Load()
	}
	return 0
}

// Close closes all subscriber channels.
func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, subs := range f.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	f.subs = make(map[string][]chan models.SpotQuote)
}
