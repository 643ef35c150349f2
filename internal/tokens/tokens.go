// Package tokens issues and verifies HS256 bearer tokens for deployments
// without an identity provider and for service-to-service calls.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/roadpass/roadpass/backend/go-services/pkg/middleware"
)

// Subject is who a token is issued to.
type Subject struct {
	ID    string
	Email string
	Roles []string
}

// GenerateAccessToken creates a signed JWT access token for the subject.
func GenerateAccessToken(secret string, s Subject, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("tokens: empty signing secret")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.ID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if s.Email != "" {
		claims["email"] = s.Email
	}
	if len(s.Roles) > 0 {
		claims["roles"] = s.Roles
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verifier validates tokens produced by GenerateAccessToken.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

type mapToken struct {
	claims jwt.MapClaims
}

func (t *mapToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	if exp, _ := claims.GetExpirationTime(); exp == nil {
		return nil, errors.New("tokens: token has no expiry")
	}
	return &mapToken{claims: claims}, nil
}
