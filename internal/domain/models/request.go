package models

import "fmt"

// IngestRequest is the validated form of one inbound event. It lives for a
// single invocation; nothing here survives the call.
type IngestRequest struct {
	APIKey    string
	Signature string
	Location  string

	// Message holds the exact body bytes that were signed. Verification runs
	// over these bytes with no normalization.
	Message []byte

	Headers map[string]string
	Method  string
	Host    string

	metrics  []Metric
	presence map[Identity]struct{}
}

// DuplicateMetricError reports an identity collision inside one request.
type DuplicateMetricError struct {
	SystemKey string
}

func (e *DuplicateMetricError) Error() string {
	return fmt.Sprintf("Metric %s already exists", e.SystemKey)
}

// Add inserts a metric into the request's set. A metric whose identity is
// already present is a caller error: the insert fails, it never merges.
func (r *IngestRequest) Add(m Metric) error {
	if r.presence == nil {
		r.presence = make(map[Identity]struct{})
	}
	id := m.Identity()
	if _, exists := r.presence[id]; exists {
		return &DuplicateMetricError{SystemKey: m.SystemKey()}
	}
	r.presence[id] = struct{}{}
	r.metrics = append(r.metrics, m)
	return nil
}

// Metrics returns the accepted metrics in insertion order.
func (r *IngestRequest) Metrics() []Metric {
	return r.metrics
}

// Len returns the number of accepted metrics.
func (r *IngestRequest) Len() int {
	return len(r.metrics)
}
