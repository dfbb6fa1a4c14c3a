package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is returned when every attempt failed
var ErrExhausted = errors.New("retries exhausted")

// Policy describes a bounded exponential backoff
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       time.Duration // symmetric, applied on top of the base delay
}

// DefaultPolicy is 3 attempts, 0.5s doubling up to 5s, ±0.1s jitter
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Jitter:       100 * time.Millisecond,
	}
}

// BaseDelay is the wait after the given failed attempt (1-based), before jitter:
// min(initial * multiplier^(attempt-1), max)
func (p Policy) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// backOff adapts a Policy to backoff.BackOff
type backOff struct {
	policy  Policy
	rnd     *rand.Rand
	attempt int
}

func (b *backOff) NextBackOff() time.Duration {
	b.attempt++
	d := b.policy.BaseDelay(b.attempt)
	if b.policy.Jitter > 0 && b.rnd != nil {
		d += time.Duration((b.rnd.Float64()*2 - 1) * float64(b.policy.Jitter))
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (b *backOff) Reset() { b.attempt = 0 }

// Option customizes a Do call
type Option func(*options)

type options struct {
	rnd    *rand.Rand
	timer  backoff.Timer
	notify backoff.Notify
}

// WithRand sets the jitter source
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rnd = r } }

// WithTimer replaces the wait timer, mainly so tests never sleep
func WithTimer(t backoff.Timer) Option { return func(o *options) { o.timer = t } }

// WithNotify is called after each failed attempt with the upcoming wait
func WithNotify(n backoff.Notify) Option { return func(o *options) { o.notify = n } }

// Do runs op until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. op receives the 1-based attempt number. The returned
// int is how many attempts were made.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), opts ...Option) (T, int, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rnd == nil {
		o.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	attempts := 0
	operation := func() (T, error) {
		attempts++
		return op(ctx, attempts)
	}

	var b backoff.BackOff = &backOff{policy: p, rnd: o.rnd}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)

	res, err := backoff.RetryNotifyWithTimerAndData(operation, b, o.notify, o.timer)
	if err == nil {
		return res, attempts, nil
	}

	var zero T
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return zero, attempts, err
	}
	if attempts >= p.MaxAttempts {
		return zero, attempts, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}
	// permanent error
	return zero, attempts, err
}

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	return backoff.Permanent(err)
}
