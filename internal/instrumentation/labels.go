package instrumentation

// Outcome label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Token endpoint results.
const (
	ProviderResultSuccess  = "success"
	ProviderResultRejected = "rejected"
	ProviderResultError    = "error"
)

// Token endpoint operations.
const (
	OperationExchange = "exchange"
	OperationRefresh  = "refresh"
)

// Dispatch modes.
const (
	ModeImmediate = "immediate"
	ModeDeferred  = "deferred"
	ModeUnknown   = "unknown"
)

// unknownDomain labels mail sends whose recipient has no parsable domain.
const unknownDomain = "unknown"
