// Package dto defines the transport-facing shapes of the metrics gate: the
// inbound gateway event and the JSON document carried in its body.
package dto

import "encoding/json"

// Event is the inbound gateway event the validator consumes. The HTTP
// interface builds one per request; tests build them directly.
type Event struct {
	Resource              string            `json:"resource"`
	HTTPMethod            string            `json:"httpMethod"`
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
	QueryStringParameters map[string]string `json:"queryStringParameters,omitempty"`
	Headers               map[string]string `json:"headers,omitempty"`
}

// BodyDocument is the expected JSON shape of the event body. Metrics stays
// raw so the validator can tell an absent or non-list value apart from a list
// with bad entries; the strict per-field mapping happens during conversion to
// the domain Metric.
type BodyDocument struct {
	LocationName *string         `json:"location_name"`
	Metrics      json.RawMessage `json:"metrics"`
}
