package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/logging"
	"github.com/example/edu-admin/internal/repository"
)

// DirectoryRepository is the persistence surface for organizations and their members.
type DirectoryRepository interface {
	ListOrganizations(ctx context.Context) ([]repository.Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*repository.Organization, error)
	CreateOrganization(ctx context.Context, org *repository.Organization) error
	UpdateOrganization(ctx context.Context, id uuid.UUID, org *repository.Organization) error
	DeleteOrganization(ctx context.Context, id uuid.UUID) error

	ListDepartments(ctx context.Context, orgID uuid.UUID) ([]repository.Department, error)
	CreateDepartment(ctx context.Context, dept *repository.Department) error
	UpdateDepartment(ctx context.Context, id uuid.UUID, dept *repository.Department) error
	DeleteDepartment(ctx context.Context, id uuid.UUID) error

	ListClasses(ctx context.Context, orgID uuid.UUID) ([]repository.Class, error)
	CreateClass(ctx context.Context, class *repository.Class) error
	UpdateClass(ctx context.Context, id uuid.UUID, class *repository.Class) error
	DeleteClass(ctx context.Context, id uuid.UUID) error

	ListStudents(ctx context.Context, orgID uuid.UUID) ([]repository.Student, error)
	GetStudentByRoll(ctx context.Context, rollNumber string) (*repository.Student, error)
	CreateStudent(ctx context.Context, student *repository.Student) error
	UpdateStudent(ctx context.Context, id uuid.UUID, student *repository.Student) error
	DeleteStudent(ctx context.Context, id uuid.UUID) error

	ListStaff(ctx context.Context, orgID uuid.UUID) ([]repository.Staff, error)
	GetStaffByEmployeeID(ctx context.Context, employeeID string) (*repository.Staff, error)
	CreateStaff(ctx context.Context, staff *repository.Staff) error
	UpdateStaff(ctx context.Context, id uuid.UUID, staff *repository.Staff) error
	DeleteStaff(ctx context.Context, id uuid.UUID) error

	CountsByOrganization(ctx context.Context, orgID uuid.UUID) (*repository.OrganizationCounts, error)
}

// DepartmentStat is one bar of the dashboard chart.
type DepartmentStat struct {
	Name     string `json:"name"`
	Students int64  `json:"students"`
}

// DashboardSummary is the dashboard payload for one organization.
type DashboardSummary struct {
	TotalStudents    int64            `json:"totalStudents"`
	TotalStaff       int64            `json:"totalStaff"`
	TotalDepartments int64            `json:"totalDepartments"`
	TotalClasses     int64            `json:"totalClasses"`
	DepartmentData   []DepartmentStat `json:"departmentData"`
}

const dashboardCacheTTL = 30 * time.Second

// DirectoryUseCase validates and persists directory records.
type DirectoryUseCase struct {
	repo     DirectoryRepository
	cache    Cache
	validate *validator.Validate
	logger   *zap.Logger
	retry    retryPolicy
}

func NewDirectoryUseCase(repo DirectoryRepository, cache Cache, logger *zap.Logger) *DirectoryUseCase {
	return &DirectoryUseCase{
		repo:     repo,
		cache:    cache,
		validate: validator.New(),
		logger:   logger.Named("directory_usecase"),
		retry:    defaultRetry,
	}
}

func (uc *DirectoryUseCase) check(v any) error {
	if err := uc.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func (uc *DirectoryUseCase) ListOrganizations(ctx context.Context) ([]repository.Organization, error) {
	return uc.repo.ListOrganizations(ctx)
}

func (uc *DirectoryUseCase) GetOrganization(ctx context.Context, id uuid.UUID) (*repository.Organization, error) {
	return uc.repo.GetOrganization(ctx, id)
}

func (uc *DirectoryUseCase) CreateOrganization(ctx context.Context, org *repository.Organization) error {
	if err := uc.check(org); err != nil {
		return err
	}
	return uc.repo.CreateOrganization(ctx, org)
}

func (uc *DirectoryUseCase) UpdateOrganization(ctx context.Context, id uuid.UUID, org *repository.Organization) error {
	if err := uc.check(org); err != nil {
		return err
	}
	return uc.repo.UpdateOrganization(ctx, id, org)
}

func (uc *DirectoryUseCase) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	if err := uc.repo.DeleteOrganization(ctx, id); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, id)
	return nil
}

func (uc *DirectoryUseCase) ListDepartments(ctx context.Context, orgID uuid.UUID) ([]repository.Department, error) {
	return uc.repo.ListDepartments(ctx, orgID)
}

func (uc *DirectoryUseCase) CreateDepartment(ctx context.Context, dept *repository.Department) error {
	if err := uc.check(dept); err != nil {
		return err
	}
	if err := uc.repo.CreateDepartment(ctx, dept); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, dept.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) UpdateDepartment(ctx context.Context, id uuid.UUID, dept *repository.Department) error {
	if err := uc.check(dept); err != nil {
		return err
	}
	if err := uc.repo.UpdateDepartment(ctx, id, dept); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, dept.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	return uc.repo.DeleteDepartment(ctx, id)
}

func (uc *DirectoryUseCase) ListClasses(ctx context.Context, orgID uuid.UUID) ([]repository.Class, error) {
	return uc.repo.ListClasses(ctx, orgID)
}

func (uc *DirectoryUseCase) CreateClass(ctx context.Context, class *repository.Class) error {
	if err := uc.check(class); err != nil {
		return err
	}
	if err := uc.repo.CreateClass(ctx, class); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, class.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) UpdateClass(ctx context.Context, id uuid.UUID, class *repository.Class) error {
	if err := uc.check(class); err != nil {
		return err
	}
	return uc.repo.UpdateClass(ctx, id, class)
}

func (uc *DirectoryUseCase) DeleteClass(ctx context.Context, id uuid.UUID) error {
	return uc.repo.DeleteClass(ctx, id)
}

func (uc *DirectoryUseCase) ListStudents(ctx context.Context, orgID uuid.UUID) ([]repository.Student, error) {
	return uc.repo.ListStudents(ctx, orgID)
}

func (uc *DirectoryUseCase) GetStudentByRoll(ctx context.Context, rollNumber string) (*repository.Student, error) {
	if rollNumber == "" {
		return nil, invalidf("roll number is required")
	}
	return uc.repo.GetStudentByRoll(ctx, rollNumber)
}

func (uc *DirectoryUseCase) CreateStudent(ctx context.Context, student *repository.Student) error {
	if err := uc.check(student); err != nil {
		return err
	}
	if err := uc.repo.CreateStudent(ctx, student); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, student.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) UpdateStudent(ctx context.Context, id uuid.UUID, student *repository.Student) error {
	if err := uc.check(student); err != nil {
		return err
	}
	if err := uc.repo.UpdateStudent(ctx, id, student); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, student.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	return uc.repo.DeleteStudent(ctx, id)
}

func (uc *DirectoryUseCase) ListStaff(ctx context.Context, orgID uuid.UUID) ([]repository.Staff, error) {
	return uc.repo.ListStaff(ctx, orgID)
}

func (uc *DirectoryUseCase) GetStaffByEmployeeID(ctx context.Context, employeeID string) (*repository.Staff, error) {
	if employeeID == "" {
		return nil, invalidf("employee id is required")
	}
	return uc.repo.GetStaffByEmployeeID(ctx, employeeID)
}

func (uc *DirectoryUseCase) CreateStaff(ctx context.Context, staff *repository.Staff) error {
	if err := uc.check(staff); err != nil {
		return err
	}
	if err := uc.repo.CreateStaff(ctx, staff); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, staff.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) UpdateStaff(ctx context.Context, id uuid.UUID, staff *repository.Staff) error {
	if err := uc.check(staff); err != nil {
		return err
	}
	if err := uc.repo.UpdateStaff(ctx, id, staff); err != nil {
		return err
	}
	uc.invalidateDashboard(ctx, staff.OrganizationID)
	return nil
}

func (uc *DirectoryUseCase) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	return uc.repo.DeleteStaff(ctx, id)
}

// Dashboard returns totals for an organization. Results are cached briefly;
// deletes expire naturally with the cache TTL.
func (uc *DirectoryUseCase) Dashboard(ctx context.Context, orgID uuid.UUID) (*DashboardSummary, error) {
	requestID := requestIDFrom(ctx)
	key := dashboardCacheKey(orgID)

	var cached string
	err := uc.retry.do(ctx, uc.logger, requestID, "cache.get.dashboard", func() error {
		v, err := uc.cache.Get(ctx, key)
		cached = v
		return err
	})
	if err == nil {
		var summary DashboardSummary
		if jsonErr := json.Unmarshal([]byte(cached), &summary); jsonErr == nil {
			return &summary, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.dashboard", requestID).Warn("failed to read dashboard cache", zap.Error(err))
	}

	counts, err := uc.repo.CountsByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	summary := &DashboardSummary{
		TotalStudents:    counts.Students,
		TotalStaff:       counts.Staff,
		TotalDepartments: counts.Departments,
		TotalClasses:     counts.Classes,
		DepartmentData:   make([]DepartmentStat, 0, len(counts.ByDept)),
	}
	for _, d := range counts.ByDept {
		summary.DepartmentData = append(summary.DepartmentData, DepartmentStat{Name: d.Name, Students: d.Students})
	}

	if payload, err := json.Marshal(summary); err == nil {
		if err := uc.retry.do(ctx, uc.logger, requestID, "cache.set.dashboard", func() error {
			return uc.cache.Set(ctx, key, string(payload), dashboardCacheTTL)
		}); err != nil {
			logging.WithOperation(uc.logger, "usecase.dashboard", requestID).Warn("failed to cache dashboard", zap.Error(err))
		}
	}
	return summary, nil
}

func (uc *DirectoryUseCase) invalidateDashboard(ctx context.Context, orgID uuid.UUID) {
	if err := uc.cache.Del(ctx, dashboardCacheKey(orgID)); err != nil {
		logging.WithOperation(uc.logger, "usecase.invalidate_dashboard", requestIDFrom(ctx)).
			Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func dashboardCacheKey(orgID uuid.UUID) string {
	return "dashboard:" + orgID.String()
}
