package venues

import (
	"context"
	"time"
)

// Backoff produces capped exponential delays for reconnecting to streaming
// collaborators. It never runs on the executor's leg-placement path.
type Backoff struct {
	Base       time.Duration
	Cap        time.Duration
	MaxRetries int

	attempt int
}

// Next returns the delay before the next attempt and whether another
// attempt is allowed.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.MaxRetries > 0 && b.attempt >= b.MaxRetries {
		return 0, false
	}
	delay := b.Base << b.attempt
	if delay > b.Cap || delay <= 0 {
		delay = b.Cap
	}
	b.attempt++
	return delay, true
}

// Reset clears the attempt counter after a successful connection.
func (b *Backoff) Reset() { b.attempt = 0 }

// Retry runs connect with capped exponential backoff until it succeeds,
// the retry budget is exhausted, or the context is cancelled.
func Retry(ctx context.Context, b *Backoff, connect func(context.Context) error) error {
	var lastErr error
	for {
		lastErr = connect(ctx)
		if lastErr == nil {
			b.Reset()
			return nil
		}
		delay, ok := b.Next()
		if !ok {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
