// Package google performs the OAuth2 authorization-code and refresh-token
// exchanges with Google's token endpoint.
//
// Client credentials are held server-side and sent in the form body. Tokens
// returned by this package must be persisted through the store package and
// are never handed to browser clients, with the single exception of the
// access token returned by the refresh endpoint.
package google
