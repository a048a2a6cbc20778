package faceencoder

import (
	"errors"
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	d, err := Distance([]float32{0, 0}, []float32{3, 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 5 {
		t.Fatalf("expected 5, got %v", d)
	}

	if _, err := Distance([]float32{1}, []float32{1, 2}); !errors.Is(err, ErrVectorLength) {
		t.Fatalf("expected ErrVectorLength, got %v", err)
	}
}

func TestConfidenceIsClamped(t *testing.T) {
	if got := Confidence(0); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := Confidence(1.7); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := Confidence(0.25); math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %v", got)
	}
}

func TestVectorPacking(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := UnmarshalVector(MarshalVector(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: got %v want %v", i, out[i], in[i])
		}
	}

	if _, err := UnmarshalVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated vector")
	}
}

func TestResultEncoded(t *testing.T) {
	var nilResult *Result
	if nilResult.Encoded() {
		t.Fatal("nil result must not be encoded")
	}
	if (&Result{Faces: 1}).Encoded() {
		t.Fatal("face without vector must not be encoded")
	}
	if !(&Result{Faces: 1, Vector: []float32{1}}).Encoded() {
		t.Fatal("expected encoded result")
	}
}
