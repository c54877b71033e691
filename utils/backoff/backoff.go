package backoff

import (
	"context"
	"sync"
	"time"

	cbackoff "github.com/cenkalti/backoff/v4"
)

// Backoff produces increasing delays between retries of a failed call
type Backoff struct {
	mx       sync.Mutex
	max      time.Duration
	exp      *cbackoff.ExponentialBackOff
	attempts int
}

type Options struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64
	Factor float64
}

func NewBackoff(opts *Options) *Backoff {
	if opts == nil {
		opts = &Options{}
	}

	min := 100 * time.Millisecond
	if opts.Min > 0 {
		min = opts.Min
	}

	max := 10000 * time.Millisecond
	if opts.Max > 0 {
		max = opts.Max
	}

	if max < min {
		max = min
	}

	var factor float64 = 2
	if opts.Factor > 1 {
		factor = opts.Factor
	}

	var jitter float64 = 0
	if opts.Jitter > 0 && opts.Jitter <= 1 {
		jitter = opts.Jitter
	}

	exp := cbackoff.NewExponentialBackOff()
	exp.InitialInterval = min
	exp.MaxInterval = max
	exp.Multiplier = factor
	exp.RandomizationFactor = jitter
	// retries are bounded by the caller, never by elapsed time
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &Backoff{
		max: max,
		exp: exp,
	}
}

func (b *Backoff) Attempts() int {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.attempts
}

// Duration returns the delay before the next attempt. The first call
// returns the minimum delay. Jittered delays never exceed the maximum.
func (b *Backoff) Duration() time.Duration {
	b.mx.Lock()
	defer b.mx.Unlock()

	b.attempts++
	d := b.exp.NextBackOff()
	if d == cbackoff.Stop || d > b.max {
		d = b.max
	}
	return d
}

// Wait sleeps for the next duration or until the context is done
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Duration())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *Backoff) Reset() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.attempts = 0
	b.exp.Reset()
}
