// Package retry runs an operation a bounded number of times with a fixed
// delay between attempts. It wraps WAFFLE's retry with a constant backoff
// and logs each retried failure.
package retry

import (
	"context"
	"errors"
	"time"

	wretry "github.com/dalemusser/waffle/pantry/retry"
	"go.uber.org/zap"
)

// Default attempts and delay used by membership writes.
const (
	DefaultAttempts = 3
	DefaultDelay    = 500 * time.Millisecond
)

// Policy bounds a retry loop. A zero MaxAttempts means DefaultAttempts; a
// zero Delay retries without waiting.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Log         *zap.Logger
	// OnRetry, when set, is called after each failed attempt that will be
	// retried.
	OnRetry func(attempt int, err error)
}

// Default is 3 attempts, 500ms apart.
var Default = Policy{MaxAttempts: DefaultAttempts, Delay: DefaultDelay}

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error { return wretry.PermanentError(err) }

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool { return wretry.IsPermanent(err) }

// config turns p into a constant-backoff WAFFLE config. WAFFLE replaces a
// zero delay with its own default, so "no wait" becomes one nanosecond.
func (p Policy) config() wretry.Config {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	cfg := wretry.ConstantBackoff(delay, attempts)
	cfg.RetryIf = wretry.SkipPermanent
	cfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", wait),
			zap.Error(err))
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}
	return cfg
}

// Do invokes op up to p.MaxAttempts times, sequentially. It returns the
// first success, or the error of the final attempt. There is no wait after
// the last attempt. An error marked Permanent is returned unwrapped at once.
// Cancelling ctx aborts the wait and returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	v, err := wretry.DoWithResult(ctx, p.config(), op)
	if err == nil {
		return v, nil
	}
	var perm *wretry.Permanent
	if errors.As(err, &perm) {
		return v, perm.Err
	}
	if cerr := ctx.Err(); cerr != nil {
		return v, cerr
	}
	return v, err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
