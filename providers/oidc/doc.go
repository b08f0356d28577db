// Package oidc implements an OpenID Connect upstream provider on top of
// github.com/coreos/go-oidc.
//
// Endpoints come from the issuer's discovery document. When the upstream
// token response carries an ID token it is verified against the issuer's
// keys and its claims identify the user; otherwise the userinfo endpoint is
// queried.
//
// # Security Features
//
//   - SSRF protection for issuer URLs (blocks private IPs, loopback, link-local)
//   - HTTPS enforcement for the issuer
//   - Size limits on scopes and group claims
//
// # Example Usage
//
//	p, err := oidc.NewProvider(ctx, &oidc.Config{
//	    Name:         "dex",
//	    IssuerURL:    "https://dex.example.com",
//	    ClientID:     "oauth2-core",
//	    ClientSecret: secret,
//	    RedirectURL:  "https://auth.example.com/callback",
//	})
package oidc
