package service

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/internal/domain/repository"
	"github.com/benzaiten/metrics-gate/pkg/constants"
	"github.com/benzaiten/metrics-gate/pkg/logger"
	"github.com/benzaiten/metrics-gate/pkg/response"
)

type fakeStore struct {
	records map[string]*models.KeyRecord
	err     error
	calls   int
}

func (s *fakeStore) Get(_ context.Context, apiKey string) (*models.KeyRecord, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records[apiKey], nil
}

type keyPair struct {
	private *rsa.PrivateKey
	public  []byte
}

func newKeyPair(t *testing.T) keyPair {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	require.NoError(t, err)
	public := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return keyPair{private: private, public: public}
}

func (k keyPair) sign(t *testing.T, message []byte) string {
	t.Helper()
	digest := sha512.Sum512(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.private, crypto.SHA512, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func futureDate() string {
	return time.Now().UTC().Add(24 * time.Hour).Format(constants.DateFormat)
}

func newTestAuthorizer(store repository.KeyRecordStore) Authorizer {
	return NewAuthorizer(store, logger.NewNoopLogger())
}

func TestDecideRejectsUnknownMethod(t *testing.T) {
	store := &fakeStore{}
	a := newTestAuthorizer(store)

	got := a.Decide(context.Background(), AuthorizationQuery{Method: "POST"})
	assert.Equal(t, response.MethodNotAllowed, got)
	assert.Zero(t, store.calls)
}

func TestDecideTeapotBeforeStore(t *testing.T) {
	store := &fakeStore{err: errors.New("store must not be called")}
	a := newTestAuthorizer(store)

	got := a.Decide(context.Background(), AuthorizationQuery{
		APIKey:    "whatever",
		Signature: "earlgrey",
		Method:    constants.MethodPut,
	})
	assert.Equal(t, response.Teapot, got)
	assert.Zero(t, store.calls)
}

func TestDecideStoreFaultMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want response.Outcome
	}{
		{"throttled", repository.NewStoreError(repository.StoreThrottled, errors.New("busy")), response.ServiceUnavailable},
		{"unauthorized", repository.NewStoreError(repository.StoreUnauthorized, errors.New("denied")), response.NetworkAuthRequired},
		{"internal", repository.NewStoreError(repository.StoreInternal, errors.New("boom")), response.InternalServerError},
		{"unclassified", errors.New("raw"), response.InternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAuthorizer(&fakeStore{err: tc.err})
			got := a.Decide(context.Background(), AuthorizationQuery{Method: constants.MethodPut, Signature: "sig"})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecideUnknownKey(t *testing.T) {
	a := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{}})

	got := a.Decide(context.Background(), AuthorizationQuery{
		APIKey:    "nope",
		Signature: "sig",
		Method:    constants.MethodPut,
	})
	assert.Equal(t, response.InvalidKey, got)
}

func TestDecideExpiration(t *testing.T) {
	pair := newKeyPair(t)
	message := []byte("payload")

	record := func(expiration string) *models.KeyRecord {
		return &models.KeyRecord{
			APIKey:            "key-1",
			PubKey:            pair.public,
			LocationPut:       models.ScalarGrant("*"),
			ExpirationDateUTC: expiration,
		}
	}
	query := AuthorizationQuery{
		APIKey:    "key-1",
		Message:   message,
		Signature: pair.sign(t, message),
		Location:  "berlin",
		Method:    constants.MethodPut,
	}

	t.Run("expired key", func(t *testing.T) {
		a := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": record("2020-01-01 00:00:00"),
		}})
		assert.Equal(t, response.ExpiredKey, a.Decide(context.Background(), query))
	})

	t.Run("unparsable expiration is a server fault", func(t *testing.T) {
		a := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": record("next tuesday"),
		}})
		assert.Equal(t, response.InternalServerError, a.Decide(context.Background(), query))
	})

	t.Run("future expiration passes", func(t *testing.T) {
		a := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": record(futureDate()),
		}})
		assert.Equal(t, response.AccessGranted, a.Decide(context.Background(), query))
	})

	t.Run("no expiration never expires", func(t *testing.T) {
		a := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": record(""),
		}})
		assert.Equal(t, response.AccessGranted, a.Decide(context.Background(), query))
	})
}

func TestDecideLocationGrants(t *testing.T) {
	pair := newKeyPair(t)
	message := []byte("payload")
	signature := pair.sign(t, message)

	query := func(location string) AuthorizationQuery {
		return AuthorizationQuery{
			APIKey:    "key-1",
			Message:   message,
			Signature: signature,
			Location:  location,
			Method:    constants.MethodPut,
		}
	}
	withGrant := func(grant models.LocationGrant) Authorizer {
		return newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": {APIKey: "key-1", PubKey: pair.public, LocationPut: grant},
		}})
	}

	t.Run("wildcard scalar passes any location", func(t *testing.T) {
		a := withGrant(models.ScalarGrant("*"))
		assert.Equal(t, response.AccessGranted, a.Decide(context.Background(), query("anywhere")))
	})

	t.Run("non-wildcard scalar never matches", func(t *testing.T) {
		a := withGrant(models.ScalarGrant("berlin"))
		assert.Equal(t, response.Forbidden, a.Decide(context.Background(), query("berlin")))
	})

	t.Run("set membership passes", func(t *testing.T) {
		a := withGrant(models.SetGrant("berlin", "tokyo"))
		assert.Equal(t, response.AccessGranted, a.Decide(context.Background(), query("tokyo")))
	})

	t.Run("set membership is exact", func(t *testing.T) {
		a := withGrant(models.SetGrant("berlin", "tokyo"))
		assert.Equal(t, response.Forbidden, a.Decide(context.Background(), query("Tokyo")))
		assert.Equal(t, response.Forbidden, a.Decide(context.Background(), query("tok")))
	})

	t.Run("malformed grant is a server fault", func(t *testing.T) {
		a := withGrant(models.LocationGrant{})
		assert.Equal(t, response.InternalServerError, a.Decide(context.Background(), query("berlin")))
	})
}

func TestDecideSignature(t *testing.T) {
	pair := newKeyPair(t)
	message := []byte(`{"location_name":"berlin","metrics":[]}`)

	store := &fakeStore{records: map[string]*models.KeyRecord{
		"key-1": {APIKey: "key-1", PubKey: pair.public, LocationPut: models.ScalarGrant("*")},
	}}
	a := newTestAuthorizer(store)

	query := func(message []byte, signature string) AuthorizationQuery {
		return AuthorizationQuery{
			APIKey:    "key-1",
			Message:   message,
			Signature: signature,
			Location:  "berlin",
			Method:    constants.MethodPut,
		}
	}

	t.Run("valid signature grants access", func(t *testing.T) {
		got := a.Decide(context.Background(), query(message, pair.sign(t, message)))
		assert.Equal(t, response.AccessGranted, got)
	})

	t.Run("signature over different bytes fails", func(t *testing.T) {
		got := a.Decide(context.Background(), query([]byte("tampered"), pair.sign(t, message)))
		assert.Equal(t, response.Unauthorized, got)
	})

	t.Run("signature from another key fails", func(t *testing.T) {
		other := newKeyPair(t)
		got := a.Decide(context.Background(), query(message, other.sign(t, message)))
		assert.Equal(t, response.Unauthorized, got)
	})

	t.Run("signature that is not base64 fails", func(t *testing.T) {
		got := a.Decide(context.Background(), query(message, "%%% not base64 %%%"))
		assert.Equal(t, response.Unauthorized, got)
	})

	t.Run("unreadable key bytes fail closed", func(t *testing.T) {
		broken := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": {APIKey: "key-1", PubKey: []byte("garbage"), LocationPut: models.ScalarGrant("*")},
		}})
		got := broken.Decide(context.Background(), query(message, pair.sign(t, message)))
		assert.Equal(t, response.Unauthorized, got)
	})

	t.Run("missing public key is a server fault", func(t *testing.T) {
		missing := newTestAuthorizer(&fakeStore{records: map[string]*models.KeyRecord{
			"key-1": {APIKey: "key-1", LocationPut: models.ScalarGrant("*")},
		}})
		got := missing.Decide(context.Background(), query(message, pair.sign(t, message)))
		assert.Equal(t, response.InternalServerError, got)
	})
}

func TestParseRSAPublicKeyAcceptsDERAndPKCS1(t *testing.T) {
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&private.PublicKey)
	require.NoError(t, err)
	key, err := parseRSAPublicKey(der)
	require.NoError(t, err)
	assert.True(t, key.Equal(&private.PublicKey))

	pkcs1 := x509.MarshalPKCS1PublicKey(&private.PublicKey)
	key, err = parseRSAPublicKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(&private.PublicKey))
}
