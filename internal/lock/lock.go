package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotAcquired = errors.New("lock_not_acquired")
	ErrInvalidKey  = errors.New("lock_key_empty")
	ErrInvalidTTL  = errors.New("lock_ttl_not_positive")
)

// Locker grants short-lived exclusive ownership of a key.
// TryLock never blocks; the returned token must be passed to Release.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// Options tunes WithLock.
type Options struct {
	TTL       time.Duration
	MaxWait   time.Duration
	RetryWait time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 5 * time.Second
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 25 * time.Millisecond
	}
	return o
}

// WithLock runs fn while holding key, polling until MaxWait elapses.
func WithLock(ctx context.Context, l Locker, key string, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	token, err := acquire(ctx, l, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		// release with a fresh context so a cancelled caller does not leak the key
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.Release(releaseCtx, key, token)
	}()

	return fn(ctx)
}

func acquire(ctx context.Context, l Locker, key string, opts Options) (string, error) {
	deadline := time.Now().Add(opts.MaxWait)
	for {
		token, ok, err := l.TryLock(ctx, key, opts.TTL)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}

		timer := time.NewTimer(opts.RetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

// AutomationKey is the lock key guarding a single automation.
func AutomationKey(orgID, automationID int64) string {
	return fmt.Sprintf("recovery:automation:%d:%d", orgID, automationID)
}

// InvoiceKey is the lock key guarding automation creation for an invoice.
func InvoiceKey(orgID, invoiceID int64) string {
	return fmt.Sprintf("recovery:invoice:%d:%d", orgID, invoiceID)
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
