package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/edu-admin/internal/logging"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("record already exists")
)

// Store owns the gorm handle and the retry policy shared by every repository.
type Store struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewStore wraps an open gorm connection. The connection should be opened
// with TranslateError enabled so duplicate keys surface as ErrConflict.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:             db,
		logger:         logger.Named("repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures every table used by the application exists.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Organization{},
		&Department{},
		&Class{},
		&Student{},
		&Staff{},
		&Account{},
		&FaceRecord{},
		&FaceVerification{},
	)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) execute(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	return s.executeWithRetry(ctx, operation, logging.RequestIDFromContext(ctx), func() error {
		return translate(fn(s.db.WithContext(ctx)))
	})
}

func (s *Store) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	backoff := s.initialBackoff
	opLogger := logging.WithOperation(s.logger, operation, requestID)
	attempts := s.retryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= s.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == attempts-1 {
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
				opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			}
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
