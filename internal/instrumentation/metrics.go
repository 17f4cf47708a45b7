package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lawconnect/lawconnect/internal/logging"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrKind      = "kind"
	attrMode      = "mode"
	attrDomain    = "recipient_domain"
)

// Metrics records the service's OpenTelemetry metrics.
// A zero Metrics is a valid no-op recorder.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Identity provider token endpoint
	providerTokenOpsTotal   metric.Int64Counter
	providerTokenOpDuration metric.Float64Histogram

	// Mail API
	mailSendTotal    metric.Int64Counter
	mailSendDuration metric.Float64Histogram

	// Dispatch outcomes
	remindersCreatedTotal metric.Int64Counter
	dispatchTotal         metric.Int64Counter

	// detailedLabels adds high-cardinality labels (recipient domain)
	detailedLabels bool
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.providerTokenOpsTotal, err = meter.Int64Counter(
		"provider_token_operations_total",
		metric.WithDescription("Total number of token endpoint calls by operation and result"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_token_operations_total counter: %w", err)
	}

	m.providerTokenOpDuration, err = meter.Float64Histogram(
		"provider_token_operation_duration_seconds",
		metric.WithDescription("Token endpoint call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_token_operation_duration_seconds histogram: %w", err)
	}

	m.mailSendTotal, err = meter.Int64Counter(
		"mail_send_total",
		metric.WithDescription("Total number of mail API send calls by status"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_send_total counter: %w", err)
	}

	m.mailSendDuration, err = meter.Float64Histogram(
		"mail_send_duration_seconds",
		metric.WithDescription("Mail API send duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail_send_duration_seconds histogram: %w", err)
	}

	m.remindersCreatedTotal, err = meter.Int64Counter(
		"reminders_created_total",
		metric.WithDescription("Total number of reminder records created by status"),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reminders_created_total counter: %w", err)
	}

	m.dispatchTotal, err = meter.Int64Counter(
		"email_dispatch_total",
		metric.WithDescription("Total number of dispatch requests by mode and outcome kind"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create email_dispatch_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordProviderTokenOperation records a call to the token endpoint.
// operation is OperationExchange or OperationRefresh; result is one of the
// ProviderResult values.
func (m *Metrics) RecordProviderTokenOperation(ctx context.Context, operation, result string, duration time.Duration) {
	if m == nil || m.providerTokenOpsTotal == nil || m.providerTokenOpDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrResult, result),
	)
	m.providerTokenOpsTotal.Add(ctx, 1, attrs)
	m.providerTokenOpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMailSend records a mail API send call.
func (m *Metrics) RecordMailSend(ctx context.Context, status, recipient string, duration time.Duration) {
	if m == nil || m.mailSendTotal == nil || m.mailSendDuration == nil {
		return
	}

	kv := []attribute.KeyValue{attribute.String(attrStatus, status)}
	if m.detailedLabels && recipient != "" {
		domain := logging.ExtractDomain(recipient)
		if domain == "" {
			domain = unknownDomain
		}
		kv = append(kv, attribute.String(attrDomain, domain))
	}
	attrs := metric.WithAttributes(kv...)
	m.mailSendTotal.Add(ctx, 1, attrs)
	m.mailSendDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordReminderCreated records a persisted reminder by status (pending, sent).
func (m *Metrics) RecordReminderCreated(ctx context.Context, status string) {
	if m == nil || m.remindersCreatedTotal == nil {
		return
	}
	m.remindersCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordDispatch records the outcome of a dispatch request. kind is empty on success.
func (m *Metrics) RecordDispatch(ctx context.Context, mode, kind string) {
	if m == nil || m.dispatchTotal == nil {
		return
	}
	if kind == "" {
		kind = StatusSuccess
	}
	m.dispatchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrMode, mode),
		attribute.String(attrKind, kind),
	))
}
