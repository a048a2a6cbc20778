package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/edu-admin/internal/logging"
)

type transientTestError struct{}

func (transientTestError) Error() string   { return "transient" }
func (transientTestError) Timeout() bool   { return true }
func (transientTestError) Temporary() bool { return true }

func newTestStore(attempts int) *Store {
	return &Store{
		logger:         zap.NewNop(),
		retryAttempts:  attempts,
		initialBackoff: time.Millisecond,
		maxBackoff:     2 * time.Millisecond,
	}
}

func TestExecuteWithRetryRetriesTransientErrors(t *testing.T) {
	store := newTestStore(3)

	attempts := 0
	err := store.executeWithRetry(context.Background(), "test.operation", "req-1", func() error {
		attempts++
		if attempts < 2 {
			return transientTestError{}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetryReturnsOperationError(t *testing.T) {
	store := newTestStore(2)

	attempts := 0
	err := store.executeWithRetry(context.Background(), "test.operation", "req-2", func() error {
		attempts++
		return errors.New("boom")
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}

	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "test.operation" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
	if opErr.RequestID != "req-2" {
		t.Fatalf("unexpected request id: %s", opErr.RequestID)
	}
}

func TestExecuteWithRetryStopsOnCancelledContext(t *testing.T) {
	store := newTestStore(5)
	store.initialBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := store.executeWithRetry(ctx, "test.operation", "", func() error {
		attempts++
		cancel()
		return transientTestError{}
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestTranslateMapsGormErrors(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{gorm.ErrRecordNotFound, ErrNotFound},
		{fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), ErrConflict},
	}
	for _, tc := range cases {
		if got := translate(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("translate(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	other := errors.New("other")
	if got := translate(other); got != other {
		t.Fatalf("expected passthrough, got %v", got)
	}
	if translate(nil) != nil {
		t.Fatal("expected nil passthrough")
	}
}
