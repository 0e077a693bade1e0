package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/code-100-precent/LingRelay/pkg/cache"
)

// JWTVerifier verifies HS256 bearer tokens issued by a JWTManager.
type JWTVerifier struct {
	manager *JWTManager
}

func NewJWTVerifier(manager *JWTManager) *JWTVerifier {
	return &JWTVerifier{manager: manager}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (Principal, error) {
	if credential == "" {
		return Principal{}, ErrTokenRequired
	}
	claims, err := v.manager.ValidateToken(credential)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	p := Principal{ID: claims.Subject, IsAdmin: claims.Admin()}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// CachingVerifier memoises successful verifications keyed by a hash of the credential.
// Failures are never cached, and a cached principal is dropped once its credential expires.
type CachingVerifier struct {
	next  Verifier
	cache *cache.TTL[string, Principal]
	now   func() time.Time
}

func NewCachingVerifier(next Verifier, config cache.TTLConfig) *CachingVerifier {
	return &CachingVerifier{
		next:  next,
		cache: cache.NewTTL[string, Principal](config),
		now:   time.Now,
	}
}

func (v *CachingVerifier) Verify(ctx context.Context, credential string) (Principal, error) {
	if credential == "" {
		return Principal{}, ErrTokenRequired
	}
	key := credentialKey(credential)
	if p, ok := v.cache.Get(key); ok {
		if p.ExpiresAt.IsZero() || v.now().Before(p.ExpiresAt) {
			return p, nil
		}
		v.cache.Delete(key)
	}

	p, err := v.next.Verify(ctx, credential)
	if err != nil {
		return Principal{}, err
	}
	v.cache.Set(key, p)
	return p, nil
}

func credentialKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
