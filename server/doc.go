// Package server implements the three request flows of an OAuth 2.0
// authorization server on top of model.Params and model.Result:
//
//   - AuthenticateHandler validates bearer tokens (RFC 6750).
//   - AuthorizeHandler issues authorization codes and redirects back to
//     the client (RFC 6749 section 4.1).
//   - TokenHandler authenticates clients and dispatches grant types from a
//     grant.Registry (RFC 6749 sections 4 and 6).
//
// Handlers are built per request and keep no state between requests.
// Persistence is delegated to the service interfaces.
package server
