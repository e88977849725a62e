package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-gateway/internal/common/auth"
	"catalog-gateway/internal/models"
)

// Resolver maps the ambient caller of a request to a stable identity.
// A nil identity with a nil error means the query runs without a caller.
type Resolver interface {
	CurrentCallerIdentity(ctx context.Context) (*models.CallerIdentity, error)
}

// TokenValidator is satisfied by *auth.KeycloakClient.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

// Claim names accepted for the identity field.
const (
	ClaimEmail    = "email"
	ClaimUsername = "username"
	ClaimSubject  = "sub"
)

// KeycloakResolver introspects the caller's bearer token and caches the
// result per token until the token expires or ttl elapses, whichever is first.
type KeycloakResolver struct {
	validator TokenValidator
	claim     string
	ttl       time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]cachedIdentity
}

type cachedIdentity struct {
	identity *models.CallerIdentity
	expires  time.Time
}

func NewKeycloakResolver(validator TokenValidator, claim string, ttl time.Duration) *KeycloakResolver {
	return &KeycloakResolver{
		validator: validator,
		claim:     claim,
		ttl:       ttl,
		now:       time.Now,
		cache:     make(map[string]cachedIdentity),
	}
}

func (r *KeycloakResolver) CurrentCallerIdentity(ctx context.Context) (*models.CallerIdentity, error) {
	token := TokenFromContext(ctx)
	if token == "" {
		return nil, nil
	}

	now := r.now()
	r.mu.Lock()
	if c, ok := r.cache[token]; ok && now.Before(c.expires) {
		r.mu.Unlock()
		return c.identity, nil
	}
	r.mu.Unlock()

	info, err := r.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("introspect caller token: %w", err)
	}

	id := &models.CallerIdentity{
		Username: info.Name(),
		Email:    info.Email,
		Subject:  info.Sub,
	}
	switch r.claim {
	case ClaimUsername:
		id.Identity = id.Username
	case ClaimSubject:
		id.Identity = id.Subject
	default:
		id.Identity = id.Email
	}
	if id.Identity == "" {
		return nil, fmt.Errorf("token has no %q claim", r.claim)
	}

	expires := now.Add(r.ttl)
	if exp := info.Expiry(); !exp.IsZero() && exp.Before(expires) {
		expires = exp
	}

	r.mu.Lock()
	r.evictExpired(now)
	r.cache[token] = cachedIdentity{identity: id, expires: expires}
	r.mu.Unlock()
	return id, nil
}

func (r *KeycloakResolver) evictExpired(now time.Time) {
	for k, c := range r.cache {
		if !now.Before(c.expires) {
			delete(r.cache, k)
		}
	}
}

// HeaderResolver trusts an identity placed on the context by a fronting proxy.
type HeaderResolver struct{}

func (HeaderResolver) CurrentCallerIdentity(ctx context.Context) (*models.CallerIdentity, error) {
	user := HeaderIdentityFromContext(ctx)
	if user == "" {
		return nil, nil
	}
	return &models.CallerIdentity{Identity: user, Username: user}, nil
}

// Static always returns the same identity. Useful for system callers and tests.
type Static struct {
	Identity *models.CallerIdentity
	Err      error
}

func (s Static) CurrentCallerIdentity(context.Context) (*models.CallerIdentity, error) {
	return s.Identity, s.Err
}
