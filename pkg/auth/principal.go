package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenRequired is returned when no credential was presented.
	ErrTokenRequired = errors.New("token required")
	// ErrInvalidToken is returned when a credential fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the verified identity attached to one connection or request.
type Principal struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"isAdmin"`
	// ExpiresAt is when the credential stops being valid; zero means unknown.
	ExpiresAt time.Time `json:"-"`
}

// Verifier turns an opaque bearer credential into a Principal.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Principal, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, credential string) (Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, credential string) (Principal, error) {
	return f(ctx, credential)
}
