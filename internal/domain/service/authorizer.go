package service

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/benzaiten/metrics-gate/internal/domain/repository"
	"github.com/benzaiten/metrics-gate/pkg/constants"
	"github.com/benzaiten/metrics-gate/pkg/logger"
	"github.com/benzaiten/metrics-gate/pkg/response"
)

// AuthorizationQuery carries one access question: may this key, proving
// itself with this signature over these exact message bytes, touch this
// location with this method. Built per call, never persisted.
type AuthorizationQuery struct {
	APIKey    string
	Message   []byte
	Signature string
	Location  string
	Method    string
}

// Authorizer answers authorization queries with a terminal outcome. Every
// branch of the decision tree returns exactly once; nothing is retried here.
type Authorizer interface {
	Decide(ctx context.Context, q AuthorizationQuery) response.Outcome
}

type authorizer struct {
	store  repository.KeyRecordStore
	logger logger.Logger
	tracer trace.Tracer
}

// NewAuthorizer creates the authorization engine over a key-record store.
func NewAuthorizer(store repository.KeyRecordStore, log logger.Logger) Authorizer {
	return &authorizer{
		store:  store,
		logger: log.WithComponent("authorizer"),
		tracer: otel.Tracer("metrics-gate/authorizer"),
	}
}

// Decide walks the decision tree: method gate, teapot sentinel, store read,
// expiration, location grant, then signature verification. The sentinel is
// checked before any store access on purpose.
func (a *authorizer) Decide(ctx context.Context, q AuthorizationQuery) response.Outcome {
	ctx, span := a.tracer.Start(ctx, "authorizer.decide",
		trace.WithAttributes(
			attribute.String("method", q.Method),
			attribute.String("location", q.Location),
		))
	defer span.End()

	if q.Method != constants.MethodGet && q.Method != constants.MethodPut {
		a.logger.Warn(ctx, "invalid method", logger.Fields{"method": q.Method})
		return a.settle(span, response.MethodNotAllowed)
	}

	if q.Signature == constants.TeapotSignature {
		a.logger.Info(ctx, "teapot")
		return a.settle(span, response.Teapot)
	}

	record, err := a.store.Get(ctx, q.APIKey)
	if err != nil {
		a.logger.Error(ctx, "error getting api key", err)
		switch repository.KindOf(err) {
		case repository.StoreThrottled:
			return a.settle(span, response.ServiceUnavailable)
		case repository.StoreUnauthorized:
			return a.settle(span, response.NetworkAuthRequired)
		default:
			return a.settle(span, response.InternalServerError)
		}
	}

	if record == nil {
		a.logger.Info(ctx, "api key not found")
		return a.settle(span, response.InvalidKey)
	}

	if record.ExpirationDateUTC != "" {
		expiration, err := time.ParseInLocation(constants.DateFormat, record.ExpirationDateUTC, time.UTC)
		if err != nil {
			// A stored expiration we cannot read is a data-integrity fault,
			// not a client error.
			a.logger.Error(ctx, "unreadable expiration date", err)
			return a.settle(span, response.InternalServerError)
		}
		if expiration.Before(time.Now().UTC()) {
			return a.settle(span, response.ExpiredKey)
		}
	}

	grant := record.Grant(q.Method)
	switch {
	case grant.IsMalformed():
		a.logger.Error(ctx, "malformed location grant", errMalformedGrant)
		return a.settle(span, response.InternalServerError)
	case grant.Scalar != nil:
		// A non-wildcard scalar never matches a requested location.
		if *grant.Scalar != constants.WildcardLocation {
			a.logger.Warn(ctx, "scalar grant is not the wildcard")
			return a.settle(span, response.Forbidden)
		}
	default:
		if !containsLocation(grant.Set, q.Location) {
			return a.settle(span, response.Forbidden)
		}
	}

	if len(record.PubKey) == 0 {
		a.logger.Error(ctx, "key record has no public key", errMissingPubKey)
		return a.settle(span, response.InternalServerError)
	}

	if err := verifySignature(record.PubKey, q.Message, q.Signature); err != nil {
		// Bad signature, bad base64 and unreadable key bytes collapse into
		// one outcome so callers learn nothing about which check failed.
		a.logger.Info(ctx, "signature check failed", logger.Fields{"reason": err.Error()})
		return a.settle(span, response.Unauthorized)
	}

	return a.settle(span, response.AccessGranted)
}

func (a *authorizer) settle(span trace.Span, outcome response.Outcome) response.Outcome {
	span.SetAttributes(attribute.Int("decision.status", outcome.Status))
	return outcome
}

var (
	errMalformedGrant = errors.New("location attribute is neither scalar nor set")
	errMissingPubKey  = errors.New("pub_key attribute missing or empty")
)

func containsLocation(set []string, location string) bool {
	for _, l := range set {
		if l == location {
			return true
		}
	}
	return false
}

// verifySignature checks a PKCS#1 v1.5 RSA signature over the SHA-512 digest
// of the exact message bytes. The signature arrives base64-encoded; the key
// bytes may be PEM or raw DER, PKIX or PKCS#1.
func verifySignature(pubKey, message []byte, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not valid base64: %w", err)
	}

	key, err := parseRSAPublicKey(pubKey)
	if err != nil {
		return err
	}

	digest := sha512.Sum512(message)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA512, digest[:], sig); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

func parseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not RSA")
		}
		return rsaKey, nil
	}

	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("unreadable public key bytes: %w", err)
	}
	return key, nil
}
