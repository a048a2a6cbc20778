package apiclient

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

// FaceRequest is one image submitted for verification or upload.
type FaceRequest struct {
	Identifier string
	IDType     string
	Image      []byte
	Filename   string
}

// VerifyResult is the verify-face response.
type VerifyResult struct {
	RequestID string `json:"request_id"`
	Encoded   bool   `json:"encoded"`
	Faces     int    `json:"faces"`
	Message   string `json:"message"`
}

// Recognition is the recognize-face response.
type Recognition struct {
	Status     string  `json:"status"`
	Identifier string  `json:"identifier"`
	IDType     string  `json:"id_type"`
	Confidence float64 `json:"confidence"`
	ImageURL   string  `json:"image_url"`
}

// MetricsSummary is the face-metrics response.
type MetricsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	EncodedRequests  int64   `json:"encoded_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AverageFaces     float64 `json:"average_faces"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
}

func (r FaceRequest) fields() map[string]string {
	return map[string]string{"identifier": r.Identifier, "id_type": r.IDType}
}

func (r FaceRequest) filename() string {
	if r.Filename != "" {
		return r.Filename
	}
	return "face.jpg"
}

// VerifyFace asks the server whether the image carries an encodable face.
func (c *Client) VerifyFace(ctx context.Context, req FaceRequest) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.postMultipart(ctx, "/api/verify-face", req.fields(), "face", req.filename(), imageContentType(req.Image), req.Image, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadFace stores the image against the identifier.
func (c *Client) UploadFace(ctx context.Context, req FaceRequest) error {
	return c.postMultipart(ctx, "/api/upload-face", req.fields(), "face", req.filename(), imageContentType(req.Image), req.Image, nil)
}

// RecognizeFace matches an image against every enrolled face.
func (c *Client) RecognizeFace(ctx context.Context, image []byte) (*Recognition, error) {
	in := map[string]string{
		"image": "data:" + imageContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image),
	}
	var out Recognition
	if err := c.doJSON(ctx, http.MethodPost, "/api/recognize-face", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FaceMetrics(ctx context.Context) (*MetricsSummary, error) {
	var out MetricsSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/face-metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func imageContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "image/png") {
		return "image/png"
	}
	return "image/jpeg"
}
