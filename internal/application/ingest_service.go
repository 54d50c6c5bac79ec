package application

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/benzaiten/metrics-gate/internal/application/dto"
	"github.com/benzaiten/metrics-gate/internal/domain/service"
	"github.com/benzaiten/metrics-gate/pkg/constants"
	"github.com/benzaiten/metrics-gate/pkg/logger"
	"github.com/benzaiten/metrics-gate/pkg/response"
)

// IngestResult is the success body: how many metrics were handed to the sink.
type IngestResult struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
}

// IngestService chains validation, the authorization decision and the queue
// hand-off for one inbound event. It never panics across its boundary; every
// path ends in a canonical response envelope.
type IngestService struct {
	validator  *Validator
	authorizer service.Authorizer
	sink       service.MetricSink
	logger     logger.Logger
	tracer     trace.Tracer
}

// NewIngestService wires the ingest pipeline.
func NewIngestService(v *Validator, a service.Authorizer, sink service.MetricSink, log logger.Logger) *IngestService {
	return &IngestService{
		validator:  v,
		authorizer: a,
		sink:       sink,
		logger:     log.WithComponent("ingest"),
		tracer:     otel.Tracer("metrics-gate/ingest"),
	}
}

// Handle processes one event end-to-end and returns the envelope to send back.
func (s *IngestService) Handle(ctx context.Context, event dto.Event) response.Response {
	ctx, span := s.tracer.Start(ctx, "ingest.handle")
	defer span.End()

	req, gerr := s.validator.Parse(ctx, event)
	if gerr != nil {
		span.SetAttributes(attribute.Int("ingest.status", gerr.Outcome.Status))
		return gerr.Respond()
	}

	decision := s.authorizer.Decide(ctx, service.AuthorizationQuery{
		APIKey:    req.APIKey,
		Message:   req.Message,
		Signature: req.Signature,
		Location:  req.Location,
		Method:    req.Method,
	})
	if !decision.IsOK() {
		span.SetAttributes(attribute.Int("ingest.status", decision.Status))
		return decision.Respond()
	}

	for _, m := range req.Metrics() {
		if err := s.sink.Publish(ctx, m); err != nil {
			s.logger.Error(ctx, "queue publish failed", err, logger.Fields{
				"metric": m.SystemKey(),
			})
			span.SetAttributes(attribute.Int("ingest.status", response.InternalServerError.Status))
			return response.InternalServerError.Respond()
		}
	}

	s.logger.Info(ctx, "metrics accepted", logger.Fields{
		"location":  req.Location,
		"processed": req.Len(),
	})
	span.SetAttributes(
		attribute.Int("ingest.status", response.Created.Status),
		attribute.Int("ingest.processed", req.Len()),
	)
	return response.Created.Respond().
		WithHeader(constants.HeaderAPIKey, req.APIKey).
		WithJSONBody(IngestResult{Status: "success", Processed: req.Len()})
}
