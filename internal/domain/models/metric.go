package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/benzaiten/metrics-gate/pkg/constants"
)

// Metric is one ingested sample. Identity is carried by name, location, time
// span and date; value and source never participate in equality so that a
// corrected sample cannot silently coexist with the original in one batch.
type Metric struct {
	Name     string
	TimeSpan string
	Location string
	Date     time.Time
	Value    float64
	Source   string
}

// Identity is the comparable key of a metric inside a request.
type Identity struct {
	Name     string
	TimeSpan string
	Location string
	Date     int64
}

// SystemKey is the metric system key (MSK): name@location#span. It names the
// series and deliberately excludes the timestamp.
func (m Metric) SystemKey() string {
	return fmt.Sprintf("%s@%s#%s", m.Name, m.Location, m.TimeSpan)
}

// Identity returns the dedup key for this metric.
func (m Metric) Identity() Identity {
	return Identity{
		Name:     m.Name,
		TimeSpan: m.TimeSpan,
		Location: m.Location,
		Date:     m.Date.Unix(),
	}
}

// queueMessage is the wire shape handed to the metric sink.
type queueMessage struct {
	MetricName      string  `json:"metric_name"`
	TimeSpan        string  `json:"time_span"`
	LocationName    string  `json:"location_name"`
	MetricDate      string  `json:"metric_date"`
	MetricValue     float64 `json:"metric_value"`
	MetricSource    string  `json:"metric_source"`
	MsgReceivedDate string  `json:"msg_received_date_utc"`
}

// Message renders the queue payload for this metric, stamped with the server
// receive time in the canonical date format.
func (m Metric) Message(receivedAt time.Time) ([]byte, error) {
	return json.Marshal(queueMessage{
		MetricName:      m.Name,
		TimeSpan:        m.TimeSpan,
		LocationName:    m.Location,
		MetricDate:      m.Date.UTC().Format(constants.DateFormat),
		MetricValue:     m.Value,
		MetricSource:    m.Source,
		MsgReceivedDate: receivedAt.UTC().Format(constants.DateFormat),
	})
}

// MetricFromMessage parses a queue payload back into a Metric, dropping the
// send stamp. Counterpart of Message.
func MetricFromMessage(data []byte) (Metric, error) {
	var msg queueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Metric{}, err
	}
	date, err := time.ParseInLocation(constants.DateFormat, msg.MetricDate, time.UTC)
	if err != nil {
		return Metric{}, fmt.Errorf("bad metric_date %q: %w", msg.MetricDate, err)
	}
	return Metric{
		Name:     msg.MetricName,
		TimeSpan: msg.TimeSpan,
		Location: msg.LocationName,
		Date:     date,
		Value:    msg.MetricValue,
		Source:   msg.MetricSource,
	}, nil
}

// FieldError reports a violation in one field of an inbound metric document.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// MetricFromDocument converts one untrusted metric document into a Metric.
// locationName always overwrites any location the document carries. The
// mapping is strict: a wrongly typed field, an unparsable date or a missing
// required field each fail the conversion.
func MetricFromDocument(doc map[string]interface{}, locationName string) (Metric, error) {
	name, err := stringField(doc, "metric_name")
	if err != nil {
		return Metric{}, err
	}
	span, err := stringField(doc, "time_span")
	if err != nil {
		return Metric{}, err
	}
	source, err := stringField(doc, "metric_source")
	if err != nil {
		return Metric{}, err
	}

	date, err := dateField(doc, "metric_date")
	if err != nil {
		return Metric{}, err
	}

	value, err := numberField(doc, "metric_value")
	if err != nil {
		return Metric{}, err
	}

	return Metric{
		Name:     name,
		TimeSpan: span,
		Location: locationName,
		Date:     date,
		Value:    value,
		Source:   source,
	}, nil
}

func stringField(doc map[string]interface{}, field string) (string, error) {
	raw, ok := doc[field]
	if !ok {
		return "", &FieldError{Field: field, Reason: "missing"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &FieldError{Field: field, Reason: fmt.Sprintf("should be a string, got %T", raw)}
	}
	return s, nil
}

func numberField(doc map[string]interface{}, field string) (float64, error) {
	raw, ok := doc[field]
	if !ok {
		return 0, &FieldError{Field: field, Reason: "missing"}
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, &FieldError{Field: field, Reason: fmt.Sprintf("bad number %q", v.String())}
		}
		return f, nil
	default:
		return 0, &FieldError{Field: field, Reason: fmt.Sprintf("should be a number, got %T", raw)}
	}
}

// dateField accepts the canonical string layout or an already-structured
// timestamp. A wrong type is a type violation, an unparsable string a value
// violation; both fail the conversion.
func dateField(doc map[string]interface{}, field string) (time.Time, error) {
	raw, ok := doc[field]
	if !ok {
		return time.Time{}, &FieldError{Field: field, Reason: "missing"}
	}
	switch v := raw.(type) {
	case string:
		t, err := time.ParseInLocation(constants.DateFormat, v, time.UTC)
		if err != nil {
			return time.Time{}, &FieldError{Field: field, Reason: fmt.Sprintf("%q does not match %q", v, constants.DateFormat)}
		}
		return t, nil
	case time.Time:
		return v.UTC(), nil
	default:
		return time.Time{}, &FieldError{Field: field, Reason: fmt.Sprintf("should be a string or timestamp, got %T", raw)}
	}
}
