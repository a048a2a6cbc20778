// Package enrollment tracks face images captured for a student or staff
// record while the enrollment form is open.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/example/edu-admin/internal/apiclient"
	"github.com/example/edu-admin/internal/imagenorm"
)

// ErrNoStream is returned by a FrameSource that has no active stream.
var ErrNoStream = errors.New("no active camera stream")

// Status is the state of one capture slot.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusVerified   Status = "verified"
	StatusUnverified Status = "unverified"
	StatusUploading  Status = "uploading"
	StatusError      Status = "error"
)

const (
	msgCaptured       = "Image captured"
	msgNoFile         = "No file selected"
	msgMissingInput   = "Missing image or identifier"
	msgVerified       = "Verified"
	msgNoFace         = "Verification failed: no usable face"
	msgNotVerified    = "Cannot upload: not verified"
	msgMissingID      = "Cannot upload: missing identifier"
	msgUploaded       = "Uploaded"
	msgUploading      = "Uploading"
	msgVerifyErrorFmt = "Error verifying image: %v"
	msgUploadErrorFmt = "Upload failed: %v"
)

// FaceService is the server side of the verify and upload round trips.
// *apiclient.Client satisfies it.
type FaceService interface {
	VerifyFace(ctx context.Context, req apiclient.FaceRequest) (*apiclient.VerifyResult, error)
	UploadFace(ctx context.Context, req apiclient.FaceRequest) error
}

// FrameSource yields single frames from a camera.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

// Snapshot is a copy of a slot's observable state.
type Snapshot struct {
	Index      int
	Status     Status
	Message    string
	HasImage   bool
	Size       int
	Filename   string
	Identifier string
}

// Slot manages one image from acquisition to upload. Slots never observe
// each other. Network calls run without holding the lock, so concurrent calls
// on the same slot resolve as "last response wins".
type Slot struct {
	index   int
	idType  string
	service FaceService

	mu       sync.Mutex
	image    []byte
	filename string
	status   Status
	message  string
	// generation changes whenever the image is replaced; responses for an
	// older generation are dropped.
	generation uint64
	boundID    string
}

func NewSlot(index int, idType string, service FaceService) *Slot {
	return &Slot{index: index, idType: idType, service: service, status: StatusIdle}
}

// Capture reads one frame from src and stores it as the slot image. It
// reports false, leaving the slot untouched, when no frame could be taken.
func (s *Slot) Capture(ctx context.Context, src FrameSource) bool {
	return s.capture(ctx, src, "")
}

func (s *Slot) capture(ctx context.Context, src FrameSource, bindID string) bool {
	if src == nil {
		return false
	}
	frame, err := src.Frame(ctx)
	if err != nil || frame == nil {
		return false
	}
	data, err := imagenorm.EncodeJPEG(frame)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(data, "capture.jpg", bindID)
	s.message = msgCaptured
	return true
}

// SelectFile replaces the slot image with a chosen file. Empty data clears it.
func (s *Slot) SelectFile(name string, data []byte) {
	s.selectFile(name, data, "")
}

func (s *Slot) selectFile(name string, data []byte, bindID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(data) == 0 {
		s.replace(nil, "", "")
		s.message = msgNoFile
		return
	}
	s.replace(append([]byte(nil), data...), name, bindID)
	s.message = "File selected: " + name
}

// replace must be called with s.mu held.
func (s *Slot) replace(data []byte, filename, bindID string) {
	s.image = data
	s.filename = filename
	s.status = StatusIdle
	s.boundID = bindID
	s.generation++
}

// Verify sends the current image to the verification endpoint.
func (s *Slot) Verify(ctx context.Context, identifier string) Status {
	s.mu.Lock()
	if len(s.image) == 0 || strings.TrimSpace(identifier) == "" {
		s.status = StatusError
		s.message = msgMissingInput
		s.mu.Unlock()
		return StatusError
	}
	req := s.requestLocked(identifier)
	gen := s.generation
	s.mu.Unlock()

	result, err := s.service.VerifyFace(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return s.status
	}
	switch {
	case err != nil:
		s.status = StatusError
		s.message = fmt.Sprintf(msgVerifyErrorFmt, err)
	case result == nil:
		s.status = StatusError
		s.message = fmt.Sprintf(msgVerifyErrorFmt, "empty response")
	case result.Encoded:
		s.status = StatusVerified
		s.message = msgVerified
	default:
		s.status = StatusUnverified
		s.message = msgNoFace
	}
	return s.status
}

// Upload stores the verified image on the server. From any status other than
// verified it only updates the message.
func (s *Slot) Upload(ctx context.Context, identifier string) Status {
	s.mu.Lock()
	if s.status != StatusVerified || len(s.image) == 0 {
		s.message = msgNotVerified
		status := s.status
		s.mu.Unlock()
		return status
	}
	if strings.TrimSpace(identifier) == "" {
		s.message = msgMissingID
		s.mu.Unlock()
		return s.status
	}
	req := s.requestLocked(identifier)
	gen := s.generation
	s.status = StatusUploading
	s.message = msgUploading
	s.mu.Unlock()

	err := s.service.UploadFace(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return s.status
	}
	if err != nil {
		s.status = StatusError
		s.message = fmt.Sprintf(msgUploadErrorFmt, err)
		return s.status
	}
	s.status = StatusVerified
	s.message = msgUploaded
	return s.status
}

// requestLocked builds a request carrying the slot's own copy of the image.
func (s *Slot) requestLocked(identifier string) apiclient.FaceRequest {
	return apiclient.FaceRequest{
		Identifier: strings.TrimSpace(identifier),
		IDType:     s.idType,
		Image:      s.image,
		Filename:   s.filename,
	}
}

// BoundIdentifier returns the identifier recorded when the image was acquired,
// if the slot was filled in bound mode.
func (s *Slot) BoundIdentifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundID
}

func (s *Slot) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Slot) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *Slot) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Index:      s.index,
		Status:     s.status,
		Message:    s.message,
		HasImage:   len(s.image) > 0,
		Size:       len(s.image),
		Filename:   s.filename,
		Identifier: s.boundID,
	}
}
