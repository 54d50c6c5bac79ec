package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/internal/domain/repository"
	"github.com/benzaiten/metrics-gate/internal/infrastructure/monitoring"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

// SQLSTATE classes the engine must tell apart. Class 53 covers capacity
// faults, 55P03 is lock_not_available, 42501 is insufficient_privilege.
const (
	sqlstateClassCapacity     = "53"
	sqlstateLockNotAvailable  = "55P03"
	sqlstateInsufficientPrivs = "42501"
)

// KeyRecordRepository is the PostgreSQL KeyRecordStore. Reads only; the gate
// never writes key records.
type KeyRecordRepository struct {
	db      *gorm.DB
	metrics *monitoring.Metrics
	logger  logger.Logger
}

// NewKeyRecordRepository creates the store over an open gorm handle. metrics
// may be nil.
func NewKeyRecordRepository(db *gorm.DB, m *monitoring.Metrics, log logger.Logger) repository.KeyRecordStore {
	return &KeyRecordRepository{db: db, metrics: m, logger: log.WithComponent("key_record_store")}
}

// Get fetches the record for an API key. A missing key is (nil, nil); store
// faults come back classified so the engine can map them to an outcome.
func (r *KeyRecordRepository) Get(ctx context.Context, apiKey string) (*models.KeyRecord, error) {
	var record models.KeyRecord
	err := r.db.WithContext(ctx).
		Select("api_key", "pub_key", "location_get", "location_put", "expiration_date_utc").
		Where("api_key = ?", apiKey).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		fault := classify(err)
		if r.metrics != nil {
			r.metrics.RecordStoreFault(repository.KindOf(fault).String())
		}
		return nil, fault
	}
	return &record, nil
}

// classify maps driver errors onto store fault kinds.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case len(code) >= 2 && code[:2] == sqlstateClassCapacity,
			code == sqlstateLockNotAvailable:
			return repository.NewStoreError(repository.StoreThrottled, err)
		case code == sqlstateInsufficientPrivs:
			return repository.NewStoreError(repository.StoreUnauthorized, err)
		}
	}
	return repository.NewStoreError(repository.StoreInternal, err)
}
