package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatemint/gatemint/internal/commitment"
)

// ActorClaims are the JWT claims of a Gatemint actor token. The address
// claim is the canonical hex form of the actor the bearer acts as.
type ActorClaims struct {
	jwt.RegisteredClaims
	Address string `json:"address"`
}

// ActorTokenIssuer issues and verifies actor tokens signed with RS256.
type ActorTokenIssuer struct {
	key    *rsa.PrivateKey
	pub    *rsa.PublicKey
	issuer string
	ttl    time.Duration
}

// NewActorTokenIssuer creates an ActorTokenIssuer.
//
//	issuerURL — the "iss" claim value; typically the service's base URL.
//	ttl       — token lifetime (default: 1 hour).
func NewActorTokenIssuer(key *rsa.PrivateKey, issuerURL string, ttl time.Duration) *ActorTokenIssuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &ActorTokenIssuer{
		key:    key,
		pub:    &key.PublicKey,
		issuer: issuerURL,
		ttl:    ttl,
	}
}

// Issue creates a signed actor token for the given address.
func (t *ActorTokenIssuer) Issue(addr commitment.Address) (string, error) {
	now := time.Now().UTC()
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   addr.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Address: addr.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an actor token, returning the bound address.
func (t *ActorTokenIssuer) Verify(tokenStr string) (commitment.Address, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&ActorClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.pub, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return commitment.ZeroAddress, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return commitment.ZeroAddress, fmt.Errorf("invalid token claims")
	}

	addr, err := commitment.ParseAddress(claims.Address)
	if err != nil {
		return commitment.ZeroAddress, fmt.Errorf("token address claim: %w", err)
	}
	if addr.IsZero() {
		return commitment.ZeroAddress, fmt.Errorf("token bound to the zero address")
	}
	return addr, nil
}
