// Package server exposes the LawConnect HTTP API.
//
// Three POST endpoints are served, each answering CORS preflight requests
// and rejecting other methods with 405:
//
//	POST /oauth/exchange  {code, userId, redirectUri}
//	POST /oauth/refresh   {userId}
//	POST /email/send      {clienteId, subject, message, scheduledFor?}  (Bearer auth)
//
// Successful responses carry "success": true. Failures carry
// {"success": false, "error": ..., "code": ...} with the status derived
// from the error kind in package apperr.
//
// Requests are wrapped with panic recovery, per-client rate limiting
// (in memory, or a Redis sliding window shared across replicas), a handler
// span and HTTP metrics. Prometheus metrics are served on a separate port
// by MetricsServer, and HealthChecker provides /healthz and /readyz.
package server
