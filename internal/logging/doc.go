// Package logging provides structured logging helpers for the lawconnect
// services.
//
// All packages log through log/slog. This package keeps attribute names
// consistent and makes sure user identifiers, cliente ids and credentials
// never reach log output in clear text.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "oauth.exchange")
//	logger.Info("tokens stored",
//	    logging.UserHash(userID),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - user and cliente ids are hashed before logging
//   - tokens are reduced to a length marker by SanitizeToken
//   - recipient addresses are logged by domain only
package logging
