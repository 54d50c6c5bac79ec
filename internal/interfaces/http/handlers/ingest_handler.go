// Package handlers adapts HTTP requests to the ingest pipeline.
package handlers

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benzaiten/metrics-gate/internal/application"
	"github.com/benzaiten/metrics-gate/internal/application/dto"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/monitoring"
	"github.com/benzaiten/metrics-gate/pkg/logger"
	"github.com/benzaiten/metrics-gate/pkg/response"
)

// IngestHandler translates an HTTP request into a gateway event, runs the
// ingest pipeline and renders the envelope it gets back.
type IngestHandler struct {
	service      *application.IngestService
	metrics      *monitoring.Metrics
	logger       logger.Logger
	maxBodyBytes int64
}

// NewIngestHandler creates the handler. maxBodyBytes bounds how much body is
// read off the wire; the validator applies the exact ceiling afterwards.
func NewIngestHandler(svc *application.IngestService, m *monitoring.Metrics, log logger.Logger, maxBodyBytes int) *IngestHandler {
	return &IngestHandler{
		service:      svc,
		metrics:      m,
		logger:       log.WithComponent("ingest_handler"),
		maxBodyBytes: int64(maxBodyBytes),
	}
}

// Handle serves the ingest endpoint.
func (h *IngestHandler) Handle(c *gin.Context) {
	start := time.Now()

	event, err := h.event(c)
	if err != nil {
		h.logger.Warn(c.Request.Context(), "unreadable request body", logger.Fields{"error": err.Error()})
		resp := response.BadRequest.Respond()
		h.render(c, resp)
		h.metrics.RecordIngest(resp.StatusCode, time.Since(start), 0)
		return
	}

	resp := h.service.Handle(c.Request.Context(), event)
	h.render(c, resp)

	published := 0
	if resp.StatusCode == response.Created.Status {
		published = processedFrom(resp)
	}
	h.metrics.RecordIngest(resp.StatusCode, time.Since(start), published)
}

// event builds the gateway event from the raw request. The body is read with
// one byte of headroom over the ceiling so the validator can tell "at the
// limit" from "over it".
func (h *IngestHandler) event(c *gin.Context) (dto.Event, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		return dto.Event{}, err
	}

	headers := make(map[string]string, len(c.Request.Header)+1)
	for name := range c.Request.Header {
		headers[name] = c.GetHeader(name)
	}
	headers["Host"] = c.Request.Host

	var query map[string]string
	if raw := c.Request.URL.Query(); len(raw) > 0 {
		query = make(map[string]string, len(raw))
		for k, v := range raw {
			if len(v) > 0 {
				query[k] = v[0]
			}
		}
	}

	return dto.Event{
		Resource:              strings.TrimPrefix(c.FullPath(), "/"),
		HTTPMethod:            c.Request.Method,
		Body:                  string(body),
		IsBase64Encoded:       strings.EqualFold(c.GetHeader("Content-Transfer-Encoding"), "base64"),
		QueryStringParameters: query,
		Headers:               headers,
	}, nil
}

func (h *IngestHandler) render(c *gin.Context, resp response.Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	contentType := "text/plain; charset=utf-8"
	if strings.HasPrefix(resp.Body, "{") || strings.HasPrefix(resp.Body, "[") {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, []byte(resp.Body))
}

// processedFrom recovers the processed count from a success body for the
// published-metrics counter.
func processedFrom(resp response.Response) int {
	var result application.IngestResult
	if err := json.Unmarshal([]byte(resp.Body), &result); err != nil {
		return 0
	}
	return result.Processed
}
