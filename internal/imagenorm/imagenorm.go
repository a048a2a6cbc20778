// Package imagenorm validates uploaded face images and rewrites them into the
// single format the encoder and the object store expect.
package imagenorm

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

const ContentType = "image/jpeg"

var (
	ErrEmpty       = errors.New("image is empty")
	ErrUnsupported = errors.New("only JPEG and PNG images are accepted")
)

// Sniff returns the detected content type, rejecting anything but JPEG/PNG.
func Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png":
		return ct, nil
	default:
		return "", fmt.Errorf("%w (got %s)", ErrUnsupported, ct)
	}
}

// Normalize decodes data, applies EXIF orientation, shrinks it to fit within
// maxDim on both axes and re-encodes it as JPEG.
func Normalize(data []byte, maxDim int) ([]byte, error) {
	if _, err := Sniff(data); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return EncodeJPEG(Fit(img, maxDim))
}

// Fit shrinks img so neither side exceeds maxDim. Smaller images are returned
// unchanged.
func Fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	if maxDim <= 0 || (b.Dx() <= maxDim && b.Dy() <= maxDim) {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// EncodeJPEG encodes img at the quality used for stored faces.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDataURL accepts either a bare base64 string or a data URL such as the
// one produced by a browser webcam screenshot.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.Contains(s[:comma], ";base64") {
			return nil, errors.New("data url is not base64 encoded")
		}
		s = s[comma+1:]
	}
	if s == "" {
		return nil, ErrEmpty
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}
