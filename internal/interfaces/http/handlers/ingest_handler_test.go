package handlers

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzaiten/metrics-gate/internal/application"
	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/internal/domain/service"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/monitoring"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

type fakeStore struct {
	records map[string]*models.KeyRecord
	calls   int
}

func (s *fakeStore) Get(_ context.Context, apiKey string) (*models.KeyRecord, error) {
	s.calls++
	return s.records[apiKey], nil
}

type fakeSink struct {
	published []models.Metric
}

func (s *fakeSink) Publish(_ context.Context, m models.Metric) error {
	s.published = append(s.published, m)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type fixture struct {
	engine  *gin.Engine
	store   *fakeStore
	sink    *fakeSink
	private *rsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNoopLogger()

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	store := &fakeStore{records: map[string]*models.KeyRecord{
		"key-1": {
			APIKey:      "key-1",
			PubKey:      pubPEM,
			LocationPut: models.SetGrant("berlin"),
		},
	}}
	sink := &fakeSink{}

	validator := application.NewValidator(application.ValidatorConfig{
		Resource:     "metric",
		MaxBodyBytes: 1024,
	}, log)
	ingest := application.NewIngestService(validator, service.NewAuthorizer(store, log), sink, log)
	handler := NewIngestHandler(ingest, monitoring.NewMetrics(prometheus.NewRegistry()), log, 1024)

	engine := gin.New()
	engine.Any("/metric", handler.Handle)
	return &fixture{engine: engine, store: store, sink: sink, private: private}
}

func (f *fixture) sign(t *testing.T, body string) string {
	t.Helper()
	digest := sha512.Sum512([]byte(body))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.private, crypto.SHA512, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func (f *fixture) put(t *testing.T, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func validBody() string {
	return `{"location_name":"berlin","metrics":[{"metric_name":"temperature","time_span":"hourly","metric_date":"2024-03-01 12:00:00","metric_value":21.5,"metric_source":"sensor-7"}]}`
}

func TestIngestHappyPath(t *testing.T) {
	f := newFixture(t)
	body := validBody()

	rec := f.put(t, "/metric", body, map[string]string{
		"X-Bztn-Key":  "key-1",
		"X-Bztn-Sign": f.sign(t, body),
	})

	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "key-1", rec.Header().Get("X-Bztn-Key"))

	var result application.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, application.IngestResult{Status: "success", Processed: 1}, result)

	require.Len(t, f.sink.published, 1)
	assert.Equal(t, "temperature@berlin#hourly", f.sink.published[0].SystemKey())
}

func TestIngestRejectsQueryParametersBeforeStore(t *testing.T) {
	f := newFixture(t)
	body := validBody()

	rec := f.put(t, "/metric?debug=1", body, map[string]string{
		"X-Bztn-Key":  "key-1",
		"X-Bztn-Sign": f.sign(t, body),
	})

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "0 parameters expected, got 1", rec.Body.String())
	assert.Zero(t, f.store.calls)
	assert.Empty(t, f.sink.published)
}

func TestIngestMethodNotAccepted(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/metric", nil)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)

	assert.Equal(t, 405, rec.Code)
	assert.Equal(t, "Method GET not allowed", rec.Body.String())
}

func TestIngestTeapot(t *testing.T) {
	f := newFixture(t)
	body := validBody()

	rec := f.put(t, "/metric", body, map[string]string{
		"X-Bztn-Key":  "key-1",
		"X-Bztn-Sign": "earlgrey",
	})

	assert.Equal(t, 418, rec.Code)
	assert.Equal(t, "I'm a teapot", rec.Body.String())
	assert.Zero(t, f.store.calls)
}

func TestIngestBadSignature(t *testing.T) {
	f := newFixture(t)
	body := validBody()
	tampered := strings.Replace(body, "21.5", "99.9", 1)

	rec := f.put(t, "/metric", tampered, map[string]string{
		"X-Bztn-Key":  "key-1",
		"X-Bztn-Sign": f.sign(t, body),
	})

	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "Unauthorized", rec.Body.String())
	assert.Empty(t, f.sink.published)
}

func TestIngestUnknownKey(t *testing.T) {
	f := newFixture(t)
	body := validBody()

	rec := f.put(t, "/metric", body, map[string]string{
		"X-Bztn-Key":  "stranger",
		"X-Bztn-Sign": f.sign(t, body),
	})

	assert.Equal(t, 403, rec.Code)
	assert.Equal(t, "Invalid API Key", rec.Body.String())
}

func TestIngestBase64Body(t *testing.T) {
	f := newFixture(t)
	body := validBody()
	encoded := base64.StdEncoding.EncodeToString([]byte(body))

	rec := f.put(t, "/metric", encoded, map[string]string{
		"X-Bztn-Key":                "key-1",
		"X-Bztn-Sign":               f.sign(t, body),
		"Content-Transfer-Encoding": "base64",
	})

	assert.Equal(t, 201, rec.Code)
	require.Len(t, f.sink.published, 1)
}
