package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig holds token verification configuration.
type VerifierConfig struct {
	// JWKSURL is the identity provider's key-set endpoint (RS256 mode).
	JWKSURL string

	// Secret enables HMAC-SHA256 verification for local development and
	// tests when no identity provider is running.
	Secret string

	// Issuer, when set, must match the token's iss claim.
	Issuer string
}

// Verifier validates bearer tokens and resolves principals.
type Verifier struct {
	cfg  VerifierConfig
	jwks *JWKSCache
}

// NewVerifier creates a Verifier. JWKSURL takes precedence over Secret.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{cfg: cfg}
	switch {
	case cfg.JWKSURL != "":
		v.jwks = NewJWKSCache(cfg.JWKSURL)
	case cfg.Secret != "":
		// HMAC mode, no key set needed.
	default:
		return nil, fmt.Errorf("auth: verifier requires JWKSURL or Secret")
	}
	return v, nil
}

// Verify parses and validates a bearer token, returning the resolved
// Principal. Signature, expiry, and (when configured) issuer are enforced.
// A token whose realm roles map to no domain role fails verification.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (Principal, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if v.jwks != nil {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v (expected RS256)", token.Header["alg"])
			}
			kid, _ := token.Header["kid"].(string)
			return v.jwks.Key(ctx, kid)
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return Principal{}, fmt.Errorf("auth: invalid token")
	}

	principal, ok := NewPrincipal(claims)
	if !ok {
		return Principal{}, fmt.Errorf("auth: no recognized realm role")
	}
	return principal, nil
}
