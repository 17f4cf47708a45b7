// Package tokens owns the lifecycle of a user's OAuth credentials with the
// identity provider: the one-time authorization-code exchange, explicit
// refreshes, and EnsureFresh, the single way other components obtain a
// usable access token.
//
// All token table access goes through a store.Privileged accessor. Access
// and refresh tokens never leave this package except as the access token
// returned by Refresh and EnsureFresh.
package tokens
