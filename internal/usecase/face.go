package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/faceencoder"
	"github.com/example/edu-admin/internal/imagenorm"
	"github.com/example/edu-admin/internal/logging"
	"github.com/example/edu-admin/internal/repository"
)

// Identifier types accepted by the face endpoints.
const (
	IDTypeStudent = "student"
	IDTypeStaff   = "staff"
)

// Recognition outcomes.
const (
	RecognitionNoFace       = "no_face"
	RecognitionNoEncoding   = "no_encoding"
	RecognitionRecognized   = "recognized"
	RecognitionUnrecognized = "unrecognized"
)

const maxIdentifierLength = 128

// FaceRepository defines the persistence operations needed by the face flow.
type FaceRepository interface {
	SaveFace(ctx context.Context, face *repository.FaceRecord) error
	ListFaces(ctx context.Context, idType string) ([]*repository.FaceRecord, error)
	FindDuplicatesByHash(ctx context.Context, idType, identifier, hash string) ([]*repository.FaceRecord, error)
	SaveVerification(ctx context.Context, log *repository.FaceVerification) error
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// ObjectStore holds the enrolled face images.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// FaceOptions tunes matching and caching.
type FaceOptions struct {
	Tolerance    float64
	CacheTTL     time.Duration
	PresignTTL   time.Duration
	MaxDimension int
}

// FaceInput is one image submitted for an identifier.
type FaceInput struct {
	Identifier string
	IDType     string
	Image      []byte
}

// VerifyResult reports whether an image carries an encodable face.
type VerifyResult struct {
	RequestID string
	Encoded   bool
	Faces     int
	Message   string
}

// UploadResult describes a stored face.
type UploadResult struct {
	ID        uuid.UUID
	ObjectKey string
	Duplicate bool
}

// Recognition is the outcome of matching a probe image against enrolled faces.
type Recognition struct {
	Status     string
	Identifier string
	IDType     string
	Confidence float64
	Distance   float64
	ImageURL   string
}

// FaceUseCase verifies, stores and recognises face images.
type FaceUseCase struct {
	repo    FaceRepository
	cache   Cache
	encoder faceencoder.Client
	objects ObjectStore
	logger  *zap.Logger
	opts    FaceOptions
	retry   retryPolicy
	now     func() time.Time
}

type cachedEncoding struct {
	Faces  int       `json:"faces"`
	Vector []float32 `json:"vector"`
}

// NewFaceUseCase constructs a new use case instance.
func NewFaceUseCase(repo FaceRepository, cache Cache, encoder faceencoder.Client, objects ObjectStore, opts FaceOptions, logger *zap.Logger) *FaceUseCase {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 0.6
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = 1024
	}
	return &FaceUseCase{
		repo:    repo,
		cache:   cache,
		encoder: encoder,
		objects: objects,
		logger:  logger.Named("face_usecase"),
		opts:    opts,
		retry:   defaultRetry,
		now:     time.Now,
	}
}

// VerifyFace checks that the image carries a face the encoder can describe.
// Nothing is persisted apart from the verification log; the encoding is cached
// so a following upload of the same bytes skips the encoder.
func (uc *FaceUseCase) VerifyFace(ctx context.Context, in FaceInput) (*VerifyResult, error) {
	requestID := requestIDFrom(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.verify_face", requestID)

	normalized, err := uc.prepare(in)
	if err != nil {
		return nil, err
	}

	start := uc.now()
	result, err := uc.encoder.Encode(ctx, normalized)
	if err != nil {
		opLogger.Error("face encoding failed", zap.Error(err))
		return nil, errors.Join(ErrEncoder, err)
	}
	latency := uc.now().Sub(start)

	hash := sha1Hex(in.Image)
	if result.Encoded() {
		uc.storeEncoding(ctx, requestID, hash, result)
	}

	message := describe(result)
	entry := &repository.FaceVerification{
		RequestID:  requestID,
		Identifier: in.Identifier,
		IDType:     in.IDType,
		Encoded:    result.Encoded(),
		Faces:      result.Faces,
		LatencyMs:  latency.Milliseconds(),
		SHA1Hash:   hash,
		Details:    fmt.Sprintf("encoded:%t faces:%d hash:%s", result.Encoded(), result.Faces, hash),
		CreatedAt:  uc.now().UTC(),
	}
	if err := uc.repo.SaveVerification(ctx, entry); err != nil {
		wrapped := logging.NewOperationError("usecase.save_verification", requestID, err)
		opLogger.Error("failed to persist verification log", zap.Error(wrapped))
		return nil, wrapped
	}

	opLogger.Info("face verified",
		zap.String("identifier", in.Identifier),
		zap.Bool("encoded", result.Encoded()),
		zap.Int("faces", result.Faces),
		zap.Duration("latency", latency),
	)
	return &VerifyResult{
		RequestID: requestID,
		Encoded:   result.Encoded(),
		Faces:     result.Faces,
		Message:   message,
	}, nil
}

// UploadFace stores a face image against an identifier. The identifier does
// not have to belong to an existing record yet.
func (uc *FaceUseCase) UploadFace(ctx context.Context, in FaceInput) (*UploadResult, error) {
	requestID := requestIDFrom(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.upload_face", requestID)

	normalized, err := uc.prepare(in)
	if err != nil {
		return nil, err
	}

	hash := sha1Hex(in.Image)
	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, in.IDType, in.Identifier, hash)
	if err != nil {
		return nil, err
	}
	if len(duplicates) > 0 {
		opLogger.Info("face already stored", zap.String("face_id", duplicates[0].ID.String()))
		return &UploadResult{ID: duplicates[0].ID, ObjectKey: duplicates[0].ObjectKey, Duplicate: true}, nil
	}

	vector, err := uc.encodingFor(ctx, requestID, hash, normalized)
	if err != nil {
		return nil, err
	}

	key := objectKey(in.IDType, in.Identifier)
	if err := uc.objects.Put(ctx, key, normalized, imagenorm.ContentType); err != nil {
		wrapped := logging.NewOperationError("usecase.store_face_image", requestID, err)
		opLogger.Error("failed to store face image", zap.Error(wrapped))
		return nil, wrapped
	}

	face := &repository.FaceRecord{
		ID:         uuid.New(),
		Identifier: in.Identifier,
		IDType:     in.IDType,
		ObjectKey:  key,
		Encoding:   faceencoder.MarshalVector(vector),
		SHA1Hash:   hash,
		CreatedAt:  uc.now().UTC(),
	}
	if err := uc.repo.SaveFace(ctx, face); err != nil {
		if rmErr := uc.objects.Remove(ctx, key); rmErr != nil {
			opLogger.Warn("failed to remove orphaned face image", zap.Error(rmErr), zap.String("object_key", key))
		}
		return nil, err
	}

	opLogger.Info("face uploaded",
		zap.String("identifier", in.Identifier),
		zap.String("id_type", in.IDType),
		zap.String("object_key", key),
	)
	return &UploadResult{ID: face.ID, ObjectKey: key}, nil
}

// RecognizeFace matches a base64 image (optionally a data URL) against every
// enrolled face and returns the closest one within tolerance.
func (uc *FaceUseCase) RecognizeFace(ctx context.Context, encodedImage string) (*Recognition, error) {
	requestID := requestIDFrom(ctx)
	opLogger := logging.WithOperation(uc.logger, "usecase.recognize_face", requestID)

	raw, err := imagenorm.DecodeDataURL(encodedImage)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	normalized, err := imagenorm.Normalize(raw, uc.opts.MaxDimension)
	if err != nil {
		return nil, invalidf("%v", err)
	}

	result, err := uc.encoder.Encode(ctx, normalized)
	if err != nil {
		opLogger.Error("face encoding failed", zap.Error(err))
		return nil, errors.Join(ErrEncoder, err)
	}
	switch {
	case result.Faces == 0:
		return &Recognition{Status: RecognitionNoFace}, nil
	case len(result.Vector) == 0:
		return &Recognition{Status: RecognitionNoEncoding}, nil
	}

	faces, err := uc.repo.ListFaces(ctx, "")
	if err != nil {
		return nil, err
	}

	var best *repository.FaceRecord
	bestDistance := math.Inf(1)
	for _, face := range faces {
		vector, err := faceencoder.UnmarshalVector(face.Encoding)
		if err != nil {
			opLogger.Warn("skipping corrupt face encoding", zap.String("face_id", face.ID.String()), zap.Error(err))
			continue
		}
		d, err := faceencoder.Distance(result.Vector, vector)
		if err != nil {
			continue
		}
		if d < bestDistance {
			best, bestDistance = face, d
		}
	}

	if best == nil || bestDistance > uc.opts.Tolerance {
		opLogger.Info("face not recognized", zap.Int("candidates", len(faces)))
		return &Recognition{Status: RecognitionUnrecognized}, nil
	}

	rec := &Recognition{
		Status:     RecognitionRecognized,
		Identifier: best.Identifier,
		IDType:     best.IDType,
		Confidence: faceencoder.Confidence(bestDistance),
		Distance:   bestDistance,
	}
	if link, err := uc.objects.PresignedURL(ctx, best.ObjectKey, uc.opts.PresignTTL); err != nil {
		opLogger.Warn("failed to presign face image", zap.Error(err))
	} else {
		rec.ImageURL = link
	}

	opLogger.Info("face recognized",
		zap.String("identifier", rec.Identifier),
		zap.String("id_type", rec.IDType),
		zap.Float64("distance", bestDistance),
	)
	return rec, nil
}

func (uc *FaceUseCase) prepare(in FaceInput) ([]byte, error) {
	if err := validateFaceInput(in); err != nil {
		return nil, err
	}
	normalized, err := imagenorm.Normalize(in.Image, uc.opts.MaxDimension)
	if err != nil {
		return nil, invalidf("%v", err)
	}
	return normalized, nil
}

// encodingFor returns the cached descriptor for the image hash, or computes it.
func (uc *FaceUseCase) encodingFor(ctx context.Context, requestID, hash string, normalized []byte) ([]float32, error) {
	key := encodingCacheKey(hash)
	var cached string
	err := uc.retry.do(ctx, uc.logger, requestID, "cache.get.encoding", func() error {
		v, err := uc.cache.Get(ctx, key)
		cached = v
		return err
	})
	if err == nil {
		var payload cachedEncoding
		if jsonErr := json.Unmarshal([]byte(cached), &payload); jsonErr == nil && len(payload.Vector) > 0 {
			return payload.Vector, nil
		}
		logging.WithOperation(uc.logger, "usecase.upload_face", requestID).Warn("failed to decode cached encoding")
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.upload_face", requestID).Warn("failed to read cache", zap.Error(err))
	}

	result, err := uc.encoder.Encode(ctx, normalized)
	if err != nil {
		return nil, errors.Join(ErrEncoder, err)
	}
	if !result.Encoded() {
		return nil, ErrNoFace
	}
	uc.storeEncoding(ctx, requestID, hash, result)
	return result.Vector, nil
}

func (uc *FaceUseCase) storeEncoding(ctx context.Context, requestID, hash string, result *faceencoder.Result) {
	payload, err := json.Marshal(cachedEncoding{Faces: result.Faces, Vector: result.Vector})
	if err != nil {
		return
	}
	err = uc.retry.do(ctx, uc.logger, requestID, "cache.set.encoding", func() error {
		return uc.cache.Set(ctx, encodingCacheKey(hash), string(payload), uc.opts.CacheTTL)
	})
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.cache_encoding", requestID).Warn("failed to cache face encoding", zap.Error(err))
	}
}

func validateFaceInput(in FaceInput) error {
	switch {
	case strings.TrimSpace(in.Identifier) == "":
		return invalidf("identifier is required")
	case len(in.Identifier) > maxIdentifierLength:
		return invalidf("identifier is longer than %d characters", maxIdentifierLength)
	case in.IDType != IDTypeStudent && in.IDType != IDTypeStaff:
		return invalidf("id_type must be %q or %q", IDTypeStudent, IDTypeStaff)
	case len(in.Image) == 0:
		return invalidf("face image is required")
	}
	return nil
}

func describe(result *faceencoder.Result) string {
	switch {
	case result.Faces == 0:
		return "No face detected"
	case !result.Encoded():
		return "Face could not be encoded"
	case result.Faces > 1:
		return "Multiple faces detected; the most prominent one was encoded"
	default:
		return "Face encoded"
	}
}

func encodingCacheKey(hash string) string {
	return "face:encoding:" + hash
}

func objectKey(idType, identifier string) string {
	return fmt.Sprintf("faces/%s/%s/%s.jpg", idType, url.PathEscape(identifier), ksuid.New().String())
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func requestIDFrom(ctx context.Context) string {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
