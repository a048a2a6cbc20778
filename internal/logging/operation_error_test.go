package logging

import (
	"errors"
	"testing"
)

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("noop", "", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorFormatting(t *testing.T) {
	base := errors.New("boom")

	err := NewOperationError("usecase.upload_face", "req-9", base)
	if got, want := err.Error(), "usecase.upload_face (request_id=req-9): boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to reach the wrapped error")
	}

	err = NewOperationError("storage.put", "", base)
	if got, want := err.Error(), "storage.put: boom"; got != want {
		t.Fatalf("unexpected message %q, want %q", got, want)
	}
}
