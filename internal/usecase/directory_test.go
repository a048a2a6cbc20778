package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/repository"
)

// stubDirectory embeds the interface so tests only implement what they use.
type stubDirectory struct {
	DirectoryRepository
	students    []*repository.Student
	createErr   error
	counts      *repository.OrganizationCounts
	countsCalls int
}

func (s *stubDirectory) CreateStudent(ctx context.Context, student *repository.Student) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.students = append(s.students, student)
	return nil
}

func (s *stubDirectory) CountsByOrganization(ctx context.Context, orgID uuid.UUID) (*repository.OrganizationCounts, error) {
	s.countsCalls++
	return s.counts, nil
}

func validStudent(orgID uuid.UUID) *repository.Student {
	return &repository.Student{
		OrganizationID: orgID,
		RollNumber:     "R100",
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
	}
}

func TestCreateStudentValidates(t *testing.T) {
	repo := &stubDirectory{}
	uc := NewDirectoryUseCase(repo, newStubCache(), zap.NewNop())

	bad := validStudent(uuid.New())
	bad.Email = "not-an-email"
	bad.RollNumber = ""
	err := uc.CreateStudent(context.Background(), bad)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(repo.students) != 0 {
		t.Fatal("invalid student must not be saved")
	}

	missingOrg := validStudent(uuid.Nil)
	if err := uc.CreateStudent(context.Background(), missingOrg); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing organization, got %v", err)
	}
}

func TestCreateStudentInvalidatesDashboard(t *testing.T) {
	orgID := uuid.New()
	cache := newStubCache()
	cache.values[dashboardCacheKey(orgID)] = `{"totalStudents":1}`
	uc := NewDirectoryUseCase(&stubDirectory{}, cache, zap.NewNop())

	if err := uc.CreateStudent(context.Background(), validStudent(orgID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cache.values[dashboardCacheKey(orgID)]; ok {
		t.Fatal("expected dashboard cache entry to be removed")
	}
}

func TestCreateStudentPassesConflictThrough(t *testing.T) {
	uc := NewDirectoryUseCase(&stubDirectory{createErr: repository.ErrConflict}, newStubCache(), zap.NewNop())
	if err := uc.CreateStudent(context.Background(), validStudent(uuid.New())); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDashboardCachesSummary(t *testing.T) {
	orgID := uuid.New()
	repo := &stubDirectory{counts: &repository.OrganizationCounts{
		Students: 3, Staff: 2, Departments: 2, Classes: 1,
		ByDept: []repository.DepartmentCount{{Name: "Math", Students: 2}, {Name: "Physics", Students: 1}},
	}}
	uc := NewDirectoryUseCase(repo, newStubCache(), zap.NewNop())

	first, err := uc.Dashboard(context.Background(), orgID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := uc.Dashboard(context.Background(), orgID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.countsCalls != 1 {
		t.Fatalf("expected second call to hit the cache, got %d repository calls", repo.countsCalls)
	}
	if first.TotalStudents != 3 || second.TotalStaff != 2 || len(second.DepartmentData) != 2 || second.DepartmentData[0].Name != "Math" {
		t.Fatalf("unexpected summaries %+v / %+v", first, second)
	}
}

func TestDashboardEmptyDepartmentsIsNotNil(t *testing.T) {
	uc := NewDirectoryUseCase(&stubDirectory{counts: &repository.OrganizationCounts{}}, newStubCache(), zap.NewNop())
	summary, err := uc.Dashboard(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.DepartmentData == nil {
		t.Fatal("departmentData should serialise as an empty list")
	}
}
