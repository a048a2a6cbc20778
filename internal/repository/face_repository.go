package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FaceRepository persists enrolled face encodings and verification logs.
type FaceRepository struct {
	store *Store
}

// NewFaceRepository creates a repository on top of the shared store.
func NewFaceRepository(store *Store) *FaceRepository {
	return &FaceRepository{store: store}
}

// MetricsAggregation is the raw aggregate over verification logs.
type MetricsAggregation struct {
	TotalCount       int64
	EncodedCount     int64
	AverageFaces     float64
	AverageLatencyMs float64
}

// SaveFace stores a new face record.
func (r *FaceRepository) SaveFace(ctx context.Context, face *FaceRecord) error {
	if face.ID == uuid.Nil {
		face.ID = uuid.New()
	}
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now().UTC()
	}
	return r.store.execute(ctx, "repository.save_face", func(tx *gorm.DB) error {
		return tx.Create(face).Error
	})
}

// ListFaces returns every enrolled face, optionally restricted to one id type.
func (r *FaceRepository) ListFaces(ctx context.Context, idType string) ([]*FaceRecord, error) {
	var faces []*FaceRecord
	err := r.store.execute(ctx, "repository.list_faces", func(tx *gorm.DB) error {
		q := tx.Order("created_at ASC")
		if idType != "" {
			q = q.Where("id_type = ?", idType)
		}
		return q.Find(&faces).Error
	})
	return faces, err
}

// ListFacesOlderThan returns faces created before the cutoff.
func (r *FaceRepository) ListFacesOlderThan(ctx context.Context, cutoff time.Time) ([]*FaceRecord, error) {
	var faces []*FaceRecord
	err := r.store.execute(ctx, "repository.list_faces_older_than", func(tx *gorm.DB) error {
		return tx.Where("created_at < ?", cutoff).Order("created_at ASC").Find(&faces).Error
	})
	return faces, err
}

// DeleteFace removes a face record by id.
func (r *FaceRepository) DeleteFace(ctx context.Context, id uuid.UUID) error {
	return remove[FaceRecord](ctx, r.store, "repository.delete_face", id)
}

// SaveVerification persists a verification log entry.
func (r *FaceRepository) SaveVerification(ctx context.Context, log *FaceVerification) error {
	return r.store.execute(ctx, "repository.save_verification", func(tx *gorm.DB) error {
		return tx.Create(log).Error
	})
}

// FindDuplicatesByHash returns faces for the same owner that were stored from
// byte-identical images.
func (r *FaceRepository) FindDuplicatesByHash(ctx context.Context, idType, identifier, hash string) ([]*FaceRecord, error) {
	var faces []*FaceRecord
	err := r.store.execute(ctx, "repository.find_duplicates_by_hash", func(tx *gorm.DB) error {
		return tx.Where("id_type = ? AND identifier = ? AND sha1_hash = ?", idType, identifier, hash).
			Order("created_at ASC").
			Find(&faces).Error
	})
	return faces, err
}

// AggregateMetrics summarises all verification logs.
func (r *FaceRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.store.execute(ctx, "repository.aggregate_metrics", func(tx *gorm.DB) error {
		return tx.Model(&FaceVerification{}).
			Select("COUNT(*) AS total_count, " +
				"COALESCE(SUM(CASE WHEN encoded THEN 1 ELSE 0 END), 0) AS encoded_count, " +
				"COALESCE(AVG(faces), 0) AS average_faces, " +
				"COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
