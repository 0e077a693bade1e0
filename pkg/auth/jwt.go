package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin marks a principal as an administrator when present in the roles claim.
const RoleAdmin = "admin"

// JWTConfig represents JWT configuration
type JWTConfig struct {
	SecretKey      string        // Secret key for signing tokens
	AccessTokenTTL time.Duration // Access token time to live
	Issuer         string        // Token issuer, enforced on validation when set
	SigningMethod  jwt.SigningMethod
}

// DefaultJWTConfig returns default JWT configuration
func DefaultJWTConfig(secretKey string) *JWTConfig {
	return &JWTConfig{
		SecretKey:      secretKey,
		AccessTokenTTL: 24 * time.Hour,
		Issuer:         "LingRelay",
		SigningMethod:  jwt.SigningMethodHS256,
	}
}

// JWTClaims represents JWT claims. The subject is the user id.
type JWTClaims struct {
	IsAdmin bool     `json:"is_admin,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Admin reports whether the claims grant administrator rights.
func (c *JWTClaims) Admin() bool {
	return c.IsAdmin || slices.Contains(c.Roles, RoleAdmin)
}

// JWTManager handles JWT operations
type JWTManager struct {
	config *JWTConfig
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(config *JWTConfig) *JWTManager {
	if config == nil {
		panic("JWTConfig cannot be nil")
	}
	if config.SecretKey == "" {
		panic("JWTConfig.SecretKey cannot be empty")
	}
	if config.SigningMethod == nil {
		config.SigningMethod = jwt.SigningMethodHS256
	}
	return &JWTManager{config: config}
}

// GenerateAccessToken signs a token for userID.
func (m *JWTManager) GenerateAccessToken(userID string, isAdmin bool, roles ...string) (string, error) {
	if userID == "" {
		return "", errors.New("user id cannot be empty")
	}
	now := time.Now()
	claims := &JWTClaims{
		IsAdmin: isAdmin,
		Roles:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(m.config.SigningMethod, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// ValidateToken validates and parses a JWT token
func (m *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
