package faceencoder

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
)

// Result is what the encoder reports for one image.
type Result struct {
	// Faces is the number of faces the detector located.
	Faces int
	// Vector is the descriptor of the most prominent face. It is empty when no
	// face was found or the face could not be encoded.
	Vector []float32
}

// Encoded reports whether the image produced a usable descriptor.
func (r *Result) Encoded() bool {
	return r != nil && r.Faces > 0 && len(r.Vector) > 0
}

// Client computes face descriptors.
type Client interface {
	Encode(ctx context.Context, image []byte) (*Result, error)
}

var ErrVectorLength = errors.New("face vectors differ in length")

// Distance returns the Euclidean distance between two descriptors.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, ErrVectorLength
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Confidence maps a distance onto [0, 1], where 1 is an exact match.
func Confidence(distance float64) float64 {
	return math.Max(0, math.Min(1, 1-distance))
}

// MarshalVector packs a descriptor as little-endian float32 values.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// UnmarshalVector reverses MarshalVector.
func UnmarshalVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, errors.New("encoded vector has a partial value")
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
