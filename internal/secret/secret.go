package secret

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/random"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

const (
	DefaultLength = 16
	DefaultTTL    = time.Hour
)

var ErrEmptyKey = errors.New("member id and device id are required")

// SessionLookup is the durable side of the secret: the device session row.
type SessionLookup interface {
	LiveSecret(ctx context.Context, memberID, deviceID string, role models.Role) (string, bool, error)
}

type Provisioner struct {
	Cache    cache.Store
	Sessions SessionLookup
	TTL      time.Duration
	Length   int
}

func NewProvisioner(c cache.Store, sessions SessionLookup, ttl time.Duration) *Provisioner {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provisioner{Cache: c, Sessions: sessions, TTL: ttl, Length: DefaultLength}
}

func (p *Provisioner) Issue(ctx context.Context, memberID, deviceID string) (string, error) {
	s, err := p.Generate()
	if err != nil {
		return "", err
	}
	if err := p.Store(ctx, memberID, deviceID, s); err != nil {
		return "", err
	}
	return s, nil
}

// Generate returns a fresh secret without caching it. Callers that persist
// the session row first use Generate followed by Store.
func (p *Provisioner) Generate() (string, error) {
	n := p.Length
	if n <= 0 {
		n = DefaultLength
	}
	return random.String(n, random.Alphanumeric)
}

func (p *Provisioner) Store(ctx context.Context, memberID, deviceID, s string) error {
	if memberID == "" || deviceID == "" {
		return ErrEmptyKey
	}
	if err := p.Cache.Set(ctx, cache.SecretKey(memberID, deviceID), s, p.TTL); err != nil {
		return fmt.Errorf("cache secret: %w", err)
	}
	return nil
}

// Resolve returns the signing secret of a live device session. ok is false
// when no such session exists.
func (p *Provisioner) Resolve(ctx context.Context, memberID, deviceID string, role models.Role) (string, bool, error) {
	if memberID == "" || deviceID == "" {
		return "", false, nil
	}
	key := cache.SecretKey(memberID, deviceID)
	s, ok, err := p.Cache.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("read cached secret: %w", err)
	}
	if ok && s != "" {
		return s, true, nil
	}

	s, ok, err = p.Sessions.LiveSecret(ctx, memberID, deviceID, role)
	if err != nil {
		return "", false, fmt.Errorf("load session secret: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	l := logging.FromContext(ctx).With("svc", "secret.resolve")
	if err := p.Store(ctx, memberID, deviceID, s); err != nil {
		l.Warn("secret_recache_failed", "error", err)
		return s, true, nil
	}

	// A sign-in that replaced the row between the read and the Set has
	// already evicted; the second read catches it and drops what we cached.
	current, ok, err := p.Sessions.LiveSecret(ctx, memberID, deviceID, role)
	if err != nil || !ok || current != s {
		if err := p.Cache.Del(ctx, key); err != nil {
			l.Warn("secret_evict_failed", "error", err)
		}
	}
	if err != nil {
		return "", false, fmt.Errorf("load session secret: %w", err)
	}
	return current, ok, nil
}

func (p *Provisioner) Evict(ctx context.Context, memberID, deviceID string) error {
	return p.Cache.Del(ctx, cache.SecretKey(memberID, deviceID))
}
