// Package cmd implements the command-line interface for lawconnect.
//
// This package provides the following commands:
//   - serve: Start the HTTP API (OAuth exchange/refresh and email dispatch)
//   - migrate: Apply database migrations
//   - auth-url: Print the Google consent URL for a redirect URI
//   - version: Display version information
package cmd
