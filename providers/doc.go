// Package providers connects the proxy grant to upstream identity providers.
//
// A Provider redeems an upstream authorization code and resolves the user
// behind the resulting token. A Registry holds the configured providers by
// name and implements the external identity capability the proxy grant
// requires, mapping upstream users to local ones.
//
// Implementations are provided in subpackages:
//   - providers/generic: plain OAuth 2.0 providers, with Google and GitHub presets
//   - providers/oidc: OpenID Connect issuers discovered with go-oidc
//   - providers/mock: func-field mock for tests
//
// Example usage:
//
//	gh, err := generic.GitHub(generic.Config{
//	    ClientID:     "your-client-id",
//	    ClientSecret: "your-client-secret",
//	    RedirectURL:  "https://auth.example.com/callback/github",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry, err := providers.NewRegistry(providers.RegistryOptions{Logger: logger}, gh)
package providers
