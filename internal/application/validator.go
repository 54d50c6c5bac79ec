// Package application orchestrates one ingest invocation: event validation,
// the authorization decision, and the queue hand-off.
package application

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/benzaiten/metrics-gate/internal/application/dto"
	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/pkg/constants"
	gerrors "github.com/benzaiten/metrics-gate/pkg/errors"
	"github.com/benzaiten/metrics-gate/pkg/logger"
	"github.com/benzaiten/metrics-gate/pkg/response"
)

// ValidatorConfig bounds what the validator accepts. Built once at process
// start; no environment lookups happen inside the checks.
type ValidatorConfig struct {
	// Resource is the logical resource name the gate answers to.
	Resource string

	// MaxBodyBytes is the body ceiling. Bodies at or above it are rejected.
	MaxBodyBytes int
}

// Validator parses an untrusted inbound event into an IngestRequest, failing
// on the first violation with an error that carries its canonical response.
// It performs no I/O.
type Validator struct {
	cfg    ValidatorConfig
	logger logger.Logger
}

// NewValidator creates a request validator. Zero config fields fall back to
// the defaults.
func NewValidator(cfg ValidatorConfig, log logger.Logger) *Validator {
	if cfg.Resource == "" {
		cfg.Resource = constants.DefaultResource
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	return &Validator{cfg: cfg, logger: log.WithComponent("validator")}
}

// Parse runs the ordered checks over the event. The order is part of the
// contract: every violation has a fixed outcome, and the first one wins.
func (v *Validator) Parse(ctx context.Context, event dto.Event) (*models.IngestRequest, *gerrors.GateError) {
	if event.Resource != v.cfg.Resource {
		v.logger.Warn(ctx, "bad resource", logger.Fields{"resource": event.Resource})
		return nil, gerrors.Newf(response.BadMapping, "Bad resource: %s", event.Resource)
	}

	if event.HTTPMethod != constants.MethodPut {
		v.logger.Warn(ctx, "method not accepted", logger.Fields{"method": event.HTTPMethod})
		return nil, gerrors.Newf(response.MethodNotAllowed, "Method %s not allowed", event.HTTPMethod)
	}

	if len(event.Body) >= v.cfg.MaxBodyBytes {
		v.logger.Warn(ctx, "body over ceiling", logger.Fields{
			"size":    len(event.Body),
			"ceiling": v.cfg.MaxBodyBytes,
		})
		return nil, gerrors.New(response.RequestTooLarge, "")
	}

	if n := len(event.QueryStringParameters); n > 0 {
		return nil, gerrors.Newf(response.BadRequest, "0 parameters expected, got %d", n)
	}

	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			v.logger.Warn(ctx, "body is not valid base64", logger.Fields{"error": err.Error()})
			return nil, gerrors.New(response.BadRequest, "")
		}
		body = decoded
	}

	var doc dto.BodyDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		v.logger.Warn(ctx, "body is not a json object", logger.Fields{"error": err.Error()})
		return nil, gerrors.New(response.BadRequest, "Invalid JSON object")
	}

	apiKey := headerValue(event.Headers, constants.HeaderAPIKey)
	signature := headerValue(event.Headers, constants.HeaderSignature)
	if doc.LocationName == nil || *doc.LocationName == "" || apiKey == "" || signature == "" {
		return nil, gerrors.New(response.BadRequest, "")
	}

	// Absent, null and non-list values are all "not iterable"; an empty list
	// is fine and yields zero metrics.
	if len(doc.Metrics) == 0 || string(doc.Metrics) == "null" {
		return nil, gerrors.New(response.BadRequest, "Metrics list is empty or not iterable")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(doc.Metrics, &entries); err != nil {
		return nil, gerrors.New(response.BadRequest, "Metrics list is empty or not iterable")
	}

	req := &models.IngestRequest{
		APIKey:    apiKey,
		Signature: signature,
		Location:  *doc.LocationName,
		Message:   body,
		Headers:   event.Headers,
		Method:    event.HTTPMethod,
		Host:      headerValue(event.Headers, constants.HeaderHost),
	}

	for i, raw := range entries {
		var entry map[string]interface{}
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, gerrors.Newf(response.BadRequest, "Invalid metric #%d: not an object", i)
		}
		metric, err := models.MetricFromDocument(entry, *doc.LocationName)
		if err != nil {
			return nil, gerrors.Newf(response.BadRequest, "Invalid metric #%d: %s", i, err.Error())
		}
		if err := req.Add(metric); err != nil {
			// Identity collisions inside one batch are the caller's fault.
			return nil, gerrors.New(response.BadRequest, err.Error())
		}
	}

	return req, nil
}

// headerValue does a case-insensitive header lookup without building an
// intermediate map.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
