package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimResolver turns a credential into the admin claim.
type ClaimResolver interface {
	Resolve(ctx context.Context, token string) (bool, error)
}

// JWTResolver verifies HMAC-signed tokens and reads a boolean claim. A
// "roles" claim listing the claim name is accepted as well.
type JWTResolver struct {
	secret []byte
	claim  string
	parser *jwt.Parser
}

// NewJWTResolver returns a resolver for tokens signed with secret. An empty
// claim selects "admin".
func NewJWTResolver(secret []byte, claim string) *JWTResolver {
	if claim == "" {
		claim = "admin"
	}
	return &JWTResolver{
		secret: secret,
		claim:  claim,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Resolve implements ClaimResolver.
func (r *JWTResolver) Resolve(ctx context.Context, token string) (bool, error) {
	claims := jwt.MapClaims{}
	_, err := r.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	switch v := claims[r.claim].(type) {
	case bool:
		if v {
			return true, nil
		}
	case string:
		if v == "true" {
			return true, nil
		}
	}
	if roles, ok := claims["roles"].([]any); ok {
		return slices.ContainsFunc(roles, func(role any) bool {
			s, ok := role.(string)
			return ok && s == r.claim
		}), nil
	}
	return false, nil
}
