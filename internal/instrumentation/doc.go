// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the lawconnect server.
//
// # Metrics
//
// HTTP:
//   - http_requests_total: requests by method, path and status
//   - http_request_duration_seconds: request durations
//
// Identity provider:
//   - provider_token_operations_total: token endpoint calls by operation (exchange, refresh) and result
//   - provider_token_operation_duration_seconds: token endpoint call durations
//
// Mail:
//   - mail_send_total: mail API sends by status
//   - mail_send_duration_seconds: mail API send durations
//
// Dispatch:
//   - reminders_created_total: reminder rows written, by status (pending, sent)
//   - email_dispatch_total: dispatch requests by mode and error kind
//
// # Tracing
//
// Spans are created for HTTP handlers (handler/<path>), token endpoint calls
// (provider.token.<operation>) and mail sends (mail.send). Span attributes
// only ever carry hashed identifiers.
//
// # Audit
//
// Every exchange, refresh and dispatch produces one AuditEvent, including
// failures. AuditLogger hashes user and cliente ids unless IncludePII is set.
//
// # Configuration
//
// Config is built by the serve command from config.Telemetry; this package
// never reads the environment. Metrics go to a per-provider prometheus
// registry served by MetricsHandler, or to an OTLP collector. Tracing is
// either OTLP or none; with none, spans are never sampled but still carry
// trace ids for audit correlation.
//
// # Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		Enabled:         true,
//		MetricsExporter: instrumentation.ExporterPrometheus,
//		TracingExporter: instrumentation.ExporterNone,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordHTTPRequest(ctx, "POST", "/email/send", 200, time.Since(start))
package instrumentation
