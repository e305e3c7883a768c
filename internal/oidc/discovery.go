package oidc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider is a discovered issuer: its endpoints plus the key set used to
// verify id_tokens.
type Provider struct {
	Issuer             string
	EndSessionEndpoint string

	oidc *gooidc.Provider
}

// Endpoint returns the authorization and token URLs for oauth2.Config.
func (p *Provider) Endpoint() oauth2.Endpoint {
	return p.oidc.Endpoint()
}

func (p *Provider) verifier(clientID string, now func() time.Time) *gooidc.IDTokenVerifier {
	return p.oidc.Verifier(&gooidc.Config{ClientID: clientID, Now: now})
}

// Discover loads {issuer}/.well-known/openid-configuration. The issuer in the
// document must match issuer exactly.
func Discover(ctx context.Context, client *http.Client, issuer string) (*Provider, error) {
	if client != nil {
		ctx = gooidc.ClientContext(ctx, client)
	}
	p, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := p.Claims(&extra); err != nil {
		return nil, fmt.Errorf("oidc discovery decode: %w", err)
	}
	return &Provider{Issuer: issuer, EndSessionEndpoint: extra.EndSessionEndpoint, oidc: p}, nil
}
