package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"deskpanel/internal/auth"
	"deskpanel/internal/model"
)

// Provider yields the current authenticated profile, or nil when the session
// is unauthenticated, and performs sign-out. The policy engine treats it as
// an external capability.
type Provider interface {
	Profile(ctx context.Context) (*model.Profile, error)
	SignOut(ctx context.Context) error
}

var errNoSession = errors.New("identity: no session to sign out")

// Revoker holds the set of revoked token ids. Entries expire with the token.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ClaimsProvider resolves the profile from the verified JWT claims carried
// on the request context, honoring sign-out revocations.
type ClaimsProvider struct {
	revoker Revoker
	now     func() time.Time
}

func NewClaimsProvider(revoker Revoker) *ClaimsProvider {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &ClaimsProvider{revoker: revoker, now: func() time.Time { return time.Now().UTC() }}
}

func (p *ClaimsProvider) Profile(ctx context.Context) (*model.Profile, error) {
	claims := auth.FromContext(ctx)
	if claims == nil {
		return nil, nil
	}
	if claims.ID != "" {
		revoked, err := p.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, nil
		}
	}
	return claims.Profile(), nil
}

func (p *ClaimsProvider) SignOut(ctx context.Context) error {
	claims := auth.FromContext(ctx)
	if claims == nil || claims.ID == "" {
		return errNoSession
	}
	ttl := time.Hour
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(p.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return p.revoker.Revoke(ctx, claims.ID, ttl)
}

// MemoryRevoker is the single-instance fallback when Redis is not configured.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		revoked: make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = r.now().Add(ttl)
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if r.now().After(expiry) {
		delete(r.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// RedisRevoker shares revocations across instances with per-key TTLs.
type RedisRevoker struct {
	client *redis.Client
	prefix string
}

func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client, prefix: "deskpanel:revoked:"}
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+tokenID, "1", ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := r.client.Exists(ctx, r.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
