package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/logging"
	"github.com/example/edu-admin/internal/repository"
)

// FaceStore lists and deletes stored face records.
type FaceStore interface {
	ListFacesOlderThan(ctx context.Context, cutoff time.Time) ([]*repository.FaceRecord, error)
	DeleteFace(ctx context.Context, id uuid.UUID) error
}

// Directory answers whether a face owner still exists.
type Directory interface {
	IdentifierExists(ctx context.Context, idType, identifier string) (bool, error)
}

// ObjectRemover deletes stored images.
type ObjectRemover interface {
	Remove(ctx context.Context, key string) error
}

// SweepResult summarises one orphan sweep.
type SweepResult struct {
	Scanned int
	Removed int
	Failed  int
}

type Scheduler struct {
	cron    *cron.Cron
	spec    string
	minAge  time.Duration
	timeout time.Duration
	faces   FaceStore
	dir     Directory
	objects ObjectRemover
	logger  *zap.Logger
	now     func() time.Time
}

func NewScheduler(spec string, minAge time.Duration, faces FaceStore, dir Directory, objects ObjectRemover, logger *zap.Logger) *Scheduler {
	if minAge <= 0 {
		minAge = 24 * time.Hour
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		spec:    spec,
		minAge:  minAge,
		timeout: 10 * time.Minute,
		faces:   faces,
		dir:     dir,
		objects: objects,
		logger:  logger.Named("jobs"),
		now:     time.Now,
	}
}

// Start registers the sweep. An empty spec disables the scheduler.
func (s *Scheduler) Start() error {
	if s.spec == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec), zap.Duration("min_age", s.minAge))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = logging.ContextWithRequestID(ctx, "sweep-"+uuid.NewString())

	if _, err := s.SweepOrphanFaces(ctx); err != nil {
		s.logger.Error("orphan face sweep failed", zap.Error(err))
	}
}

// SweepOrphanFaces removes face records, and their images, whose identifier
// no longer belongs to a student or staff member.
func (s *Scheduler) SweepOrphanFaces(ctx context.Context) (SweepResult, error) {
	requestID := logging.RequestIDFromContext(ctx)
	opLogger := logging.WithOperation(s.logger, "jobs.sweep_orphan_faces", requestID)

	var result SweepResult
	faces, err := s.faces.ListFacesOlderThan(ctx, s.now().Add(-s.minAge))
	if err != nil {
		return result, logging.NewOperationError("jobs.list_faces", requestID, err)
	}

	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		exists, err := s.dir.IdentifierExists(ctx, face.IDType, face.Identifier)
		if err != nil {
			result.Failed++
			opLogger.Warn("identifier lookup failed", zap.String("face_id", face.ID.String()), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		if err := s.objects.Remove(ctx, face.ObjectKey); err != nil {
			result.Failed++
			opLogger.Warn("failed to remove face image", zap.String("object_key", face.ObjectKey), zap.Error(err))
			continue
		}
		if err := s.faces.DeleteFace(ctx, face.ID); err != nil {
			result.Failed++
			opLogger.Warn("failed to delete face record", zap.String("face_id", face.ID.String()), zap.Error(err))
			continue
		}
		result.Removed++
	}

	opLogger.Info("orphan face sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("removed", result.Removed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
