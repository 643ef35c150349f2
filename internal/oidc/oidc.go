// Package oidc verifies bearer tokens issued by the identity provider.
package oidc

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/roadpass/roadpass/backend/go-services/pkg/middleware"
)

// Verifier checks Keycloak-issued tokens against the realm's published keys.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer. clientID is matched against
// the token audience unless skipClientCheck is set, which Keycloak access
// tokens need because their audience is "account".
func NewVerifier(ctx context.Context, issuer, clientID string, skipClientCheck bool) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: skipClientCheck,
	})}, nil
}

// Verify returns the verified token; *oidc.IDToken already satisfies middleware.Token.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return idToken, nil
}
