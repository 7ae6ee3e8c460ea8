package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/random"
)

const (
	CodeLength         = 6
	DefaultTTL         = 2 * time.Minute
	DefaultMaxAttempts = 5
)

type Notifier interface {
	SendOTP(ctx context.Context, email, code, fullName string) error
}

// Challenge is the outcome of Issue. The code is always cached when err is
// nil; DeliveryErr reports a failed hand-off to the notifier.
type Challenge struct {
	Code        string
	ExpiresAt   time.Time
	DeliveryErr error
}

func (c Challenge) Delivered() bool { return c.DeliveryErr == nil }

type Manager struct {
	Cache       cache.Store
	Notifier    Notifier
	TTL         time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewManager(c cache.Store, n Notifier, ttl time.Duration, maxAttempts int) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Manager{Cache: c, Notifier: n, TTL: ttl, MaxAttempts: maxAttempts, Now: time.Now}
}

func (m *Manager) Issue(ctx context.Context, email, fullName string) (Challenge, error) {
	code, err := random.String(CodeLength, random.Digits)
	if err != nil {
		return Challenge{}, err
	}
	if err := m.Cache.Set(ctx, cache.OTPKey(email), code, m.TTL); err != nil {
		return Challenge{}, fmt.Errorf("cache otp: %w", err)
	}
	if err := m.Cache.Del(ctx, cache.OTPAttemptsKey(email)); err != nil {
		return Challenge{}, fmt.Errorf("reset otp attempts: %w", err)
	}

	ch := Challenge{Code: code, ExpiresAt: m.Now().Add(m.TTL)}
	if m.Notifier != nil {
		ch.DeliveryErr = m.Notifier.SendOTP(ctx, email, code, fullName)
	}
	return ch, nil
}

// Verify compares the supplied code with the live challenge. A wrong code
// counts against the attempt budget; once the budget is spent the challenge
// is destroyed.
func (m *Manager) Verify(ctx context.Context, email, supplied string) (bool, error) {
	stored, ok, err := m.Cache.Get(ctx, cache.OTPKey(email))
	if err != nil {
		return false, fmt.Errorf("read otp: %w", err)
	}
	if !ok || supplied == "" {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1 {
		return true, nil
	}

	attempts, err := m.Cache.Incr(ctx, cache.OTPAttemptsKey(email), m.TTL)
	if err != nil {
		return false, fmt.Errorf("count otp attempts: %w", err)
	}
	if attempts >= int64(m.MaxAttempts) {
		if err := m.discard(ctx, email); err != nil {
			return false, err
		}
	}
	return false, nil
}

// Consume redeems the challenge: it deletes the code only if it still equals
// code, so of several requests carrying the same code exactly one gets true.
func (m *Manager) Consume(ctx context.Context, email, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	ok, err := m.Cache.CompareAndDelete(ctx, cache.OTPKey(email), code)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := m.Cache.Del(ctx, cache.OTPAttemptsKey(email)); err != nil {
		return true, fmt.Errorf("reset otp attempts: %w", err)
	}
	return true, nil
}

func (m *Manager) discard(ctx context.Context, email string) error {
	if err := m.Cache.Del(ctx, cache.OTPKey(email), cache.OTPAttemptsKey(email)); err != nil {
		return fmt.Errorf("discard otp: %w", err)
	}
	return nil
}
