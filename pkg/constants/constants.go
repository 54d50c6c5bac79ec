// Package constants defines system-wide constants for the Benzaiten metrics gate.
package constants

// DateFormat is the canonical timestamp layout used everywhere a date crosses
// a boundary: metric dates, key expirations, and queue send stamps.
const DateFormat = "2006-01-02 15:04:05"

// Inbound header names.
const (
	HeaderAPIKey    = "X-Bztn-Key"
	HeaderSignature = "X-Bztn-Sign"
	HeaderHost      = "Host"
)

// Accepted HTTP methods for authorization decisions.
const (
	MethodGet = "GET"
	MethodPut = "PUT"
)

// Key-record location attribute names, selected by method.
const (
	LocationAttributeGet = "location_get"
	LocationAttributePut = "location_put"
)

// WildcardLocation is the scalar grant value that authorizes every location.
const WildcardLocation = "*"

// TeapotSignature is the sentinel signature that short-circuits every other
// check and returns 418. Evaluated before any store access.
const TeapotSignature = "earlgrey"

// DefaultResource is the logical resource name the ingest endpoint answers to.
const DefaultResource = "metric"

// DefaultMaxBodyBytes is the inbound body ceiling (20 MiB).
const DefaultMaxBodyBytes = 20 * 1024 * 1024

// ContextKey is the type used for values stored in a request context.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request correlation id.
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID carries the trace id when tracing is enabled.
	ContextKeyTraceID ContextKey = "trace_id"
)
