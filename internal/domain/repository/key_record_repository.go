// Package repository declares the narrow persistence capabilities the domain
// needs. Implementations live under internal/infrastructure.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/benzaiten/metrics-gate/internal/domain/models"
)

// KeyRecordStore is the read-only lookup capability over the external
// key-record store. A missing key is (nil, nil), not an error.
type KeyRecordStore interface {
	Get(ctx context.Context, apiKey string) (*models.KeyRecord, error)
}

// StoreErrorKind classifies store faults by how the caller should react.
type StoreErrorKind int

const (
	// StoreInternal is a non-retryable store fault.
	StoreInternal StoreErrorKind = iota

	// StoreThrottled is a transient capacity fault, retry-worthy upstream.
	StoreThrottled

	// StoreUnauthorized means the gate itself is not allowed to read the
	// store.
	StoreUnauthorized
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreThrottled:
		return "throttled"
	case StoreUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// StoreError wraps a store fault with its kind.
type StoreError struct {
	Kind  StoreErrorKind
	cause error
}

// NewStoreError builds a StoreError around a cause.
func NewStoreError(kind StoreErrorKind, cause error) *StoreError {
	return &StoreError{Kind: kind, cause: cause}
}

func (e *StoreError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("key record store %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("key record store %s", e.Kind)
}

func (e *StoreError) Unwrap() error {
	return e.cause
}

// KindOf extracts the kind from an error chain; anything that is not a
// StoreError counts as internal.
func KindOf(err error) StoreErrorKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return StoreInternal
}
