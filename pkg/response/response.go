// Package response defines the closed outcome taxonomy for the metrics gate
// and the gateway response envelope built from it. Every component maps its
// terminal states onto this table; nothing else in the repository constructs
// ad hoc status codes.
package response

import "encoding/json"

// Outcome is one named terminal state: an HTTP status code plus its canonical
// short body. Outcomes are immutable values compared by equality.
type Outcome struct {
	Status int
	Body   string
}

// The full outcome table. The set is closed: callers pick a name, they never
// assemble an Outcome from parts.
var (
	AccessGranted = Outcome{200, "Access Granted"}
	Created       = Outcome{201, "Created"}

	BadRequest       = Outcome{400, "Bad request"}
	Unauthorized     = Outcome{401, "Unauthorized"}
	InvalidKey       = Outcome{403, "Invalid API Key"}
	ExpiredKey       = Outcome{403, "Expired API Key"}
	Forbidden        = Outcome{403, "Forbidden"}
	MethodNotAllowed = Outcome{405, "Method not accepted"}
	RequestTooLarge  = Outcome{413, "Message too big for being processed"}
	Teapot           = Outcome{418, "I'm a teapot"}
	BadMapping       = Outcome{421, "Bad mapping"}

	InternalServerError = Outcome{500, "Internal Server Error"}
	ServiceUnavailable  = Outcome{503, "Service Unavailable"}
	NetworkAuthRequired = Outcome{511, "Network authentication required"}
)

// IsOK reports whether the outcome is a 2xx success.
func (o Outcome) IsOK() bool {
	return o.Status/100 == 2
}

// Response is the gateway envelope returned to the transport layer. Field
// names match the wire contract exactly.
type Response struct {
	IsBase64Encoded bool              `json:"isBase64Encoded"`
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
}

// Respond builds the envelope for an outcome with its canonical body.
func (o Outcome) Respond() Response {
	return Response{
		StatusCode: o.Status,
		Headers:    map[string]string{},
		Body:       o.Body,
	}
}

// RespondWith builds the envelope for an outcome with a caller-supplied body,
// keeping the outcome's status. Used where the canonical body is enriched
// with request detail (e.g. the offending metric).
func (o Outcome) RespondWith(body string) Response {
	r := o.Respond()
	r.Body = body
	return r
}

// WithHeader returns a copy of the response with one header added.
func (r Response) WithHeader(key, value string) Response {
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	headers[key] = value
	r.Headers = headers
	return r
}

// WithJSONBody replaces the body with the JSON encoding of v.
func (r Response) WithJSONBody(v interface{}) Response {
	data, err := json.Marshal(v)
	if err != nil {
		// A non-marshalable body is a programming error; degrade to 500.
		return InternalServerError.Respond()
	}
	r.Body = string(data)
	return r
}
