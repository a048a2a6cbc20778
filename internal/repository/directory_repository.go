package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DirectoryRepository persists organizations and the people and groupings that
// belong to them.
type DirectoryRepository struct {
	store *Store
}

// NewDirectoryRepository creates a repository on top of the shared store.
func NewDirectoryRepository(store *Store) *DirectoryRepository {
	return &DirectoryRepository{store: store}
}

// DepartmentCount is the number of students enrolled in one department.
type DepartmentCount struct {
	Name     string `json:"name"`
	Students int64  `json:"students"`
}

// OrganizationCounts aggregates the dashboard totals for one organization.
type OrganizationCounts struct {
	Students    int64
	Staff       int64
	Departments int64
	Classes     int64
	ByDept      []DepartmentCount
}

func (r *DirectoryRepository) ListOrganizations(ctx context.Context) ([]Organization, error) {
	var orgs []Organization
	err := r.store.execute(ctx, "repository.list_organizations", func(tx *gorm.DB) error {
		return tx.Order("created_at DESC").Find(&orgs).Error
	})
	return orgs, err
}

func (r *DirectoryRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return get[Organization](ctx, r.store, "repository.get_organization", "id = ?", id)
}

func (r *DirectoryRepository) CreateOrganization(ctx context.Context, org *Organization) error {
	return create(ctx, r.store, "repository.create_organization", org)
}

func (r *DirectoryRepository) UpdateOrganization(ctx context.Context, id uuid.UUID, org *Organization) error {
	return update(ctx, r.store, "repository.update_organization", id, org)
}

func (r *DirectoryRepository) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return remove[Organization](ctx, r.store, "repository.delete_organization", id)
}

func (r *DirectoryRepository) ListDepartments(ctx context.Context, orgID uuid.UUID) ([]Department, error) {
	return listByOrg[Department](ctx, r.store, "repository.list_departments", orgID, "name ASC")
}

func (r *DirectoryRepository) CreateDepartment(ctx context.Context, dept *Department) error {
	return create(ctx, r.store, "repository.create_department", dept)
}

func (r *DirectoryRepository) UpdateDepartment(ctx context.Context, id uuid.UUID, dept *Department) error {
	return update(ctx, r.store, "repository.update_department", id, dept)
}

func (r *DirectoryRepository) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	return remove[Department](ctx, r.store, "repository.delete_department", id)
}

func (r *DirectoryRepository) ListClasses(ctx context.Context, orgID uuid.UUID) ([]Class, error) {
	return listByOrg[Class](ctx, r.store, "repository.list_classes", orgID, "name ASC")
}

func (r *DirectoryRepository) CreateClass(ctx context.Context, class *Class) error {
	return create(ctx, r.store, "repository.create_class", class)
}

func (r *DirectoryRepository) UpdateClass(ctx context.Context, id uuid.UUID, class *Class) error {
	return update(ctx, r.store, "repository.update_class", id, class)
}

func (r *DirectoryRepository) DeleteClass(ctx context.Context, id uuid.UUID) error {
	return remove[Class](ctx, r.store, "repository.delete_class", id)
}

func (r *DirectoryRepository) ListStudents(ctx context.Context, orgID uuid.UUID) ([]Student, error) {
	return listByOrg[Student](ctx, r.store, "repository.list_students", orgID, "roll_number ASC")
}

func (r *DirectoryRepository) GetStudentByRoll(ctx context.Context, rollNumber string) (*Student, error) {
	return get[Student](ctx, r.store, "repository.get_student_by_roll", "roll_number = ?", rollNumber)
}

func (r *DirectoryRepository) CreateStudent(ctx context.Context, student *Student) error {
	return create(ctx, r.store, "repository.create_student", student)
}

func (r *DirectoryRepository) UpdateStudent(ctx context.Context, id uuid.UUID, student *Student) error {
	return update(ctx, r.store, "repository.update_student", id, student)
}

func (r *DirectoryRepository) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	return remove[Student](ctx, r.store, "repository.delete_student", id)
}

func (r *DirectoryRepository) ListStaff(ctx context.Context, orgID uuid.UUID) ([]Staff, error) {
	return listByOrg[Staff](ctx, r.store, "repository.list_staff", orgID, "employee_id ASC")
}

func (r *DirectoryRepository) GetStaffByEmployeeID(ctx context.Context, employeeID string) (*Staff, error) {
	return get[Staff](ctx, r.store, "repository.get_staff_by_employee_id", "employee_id = ?", employeeID)
}

func (r *DirectoryRepository) CreateStaff(ctx context.Context, staff *Staff) error {
	return create(ctx, r.store, "repository.create_staff", staff)
}

func (r *DirectoryRepository) UpdateStaff(ctx context.Context, id uuid.UUID, staff *Staff) error {
	return update(ctx, r.store, "repository.update_staff", id, staff)
}

func (r *DirectoryRepository) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	return remove[Staff](ctx, r.store, "repository.delete_staff", id)
}

// CountsByOrganization collects the dashboard totals in a single transaction.
func (r *DirectoryRepository) CountsByOrganization(ctx context.Context, orgID uuid.UUID) (*OrganizationCounts, error) {
	counts := &OrganizationCounts{}
	err := r.store.execute(ctx, "repository.counts_by_organization", func(tx *gorm.DB) error {
		return tx.Transaction(func(tx *gorm.DB) error {
			for _, c := range []struct {
				model any
				dst   *int64
			}{
				{&Student{}, &counts.Students},
				{&Staff{}, &counts.Staff},
				{&Department{}, &counts.Departments},
				{&Class{}, &counts.Classes},
			} {
				if err := tx.Model(c.model).Where("organization_id = ?", orgID).Count(c.dst).Error; err != nil {
					return err
				}
			}

			counts.ByDept = counts.ByDept[:0]
			return tx.Table("departments AS d").
				Select("d.name AS name, COUNT(s.id) AS students").
				Joins("LEFT JOIN students AS s ON s.department_id = d.id").
				Where("d.organization_id = ?", orgID).
				Group("d.id, d.name").
				Order("d.name ASC").
				Scan(&counts.ByDept).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// IdentifierExists reports whether a student roll number or staff employee id
// is still present in the directory.
func (r *DirectoryRepository) IdentifierExists(ctx context.Context, idType, identifier string) (bool, error) {
	var n int64
	err := r.store.execute(ctx, "repository.identifier_exists", func(tx *gorm.DB) error {
		switch idType {
		case "student":
			return tx.Model(&Student{}).Where("roll_number = ?", identifier).Count(&n).Error
		case "staff":
			return tx.Model(&Staff{}).Where("employee_id = ?", identifier).Count(&n).Error
		default:
			return nil
		}
	})
	return n > 0, err
}

func get[T any](ctx context.Context, s *Store, operation, query string, args ...any) (*T, error) {
	var row T
	err := s.execute(ctx, operation, func(tx *gorm.DB) error {
		return tx.Where(query, args...).First(&row).Error
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func listByOrg[T any](ctx context.Context, s *Store, operation string, orgID uuid.UUID, order string) ([]T, error) {
	rows := make([]T, 0)
	err := s.execute(ctx, operation, func(tx *gorm.DB) error {
		return tx.Where("organization_id = ?", orgID).Order(order).Find(&rows).Error
	})
	return rows, err
}

func create[T any](ctx context.Context, s *Store, operation string, row *T) error {
	return s.execute(ctx, operation, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
}

// update overwrites every column except the key and creation time, then
// reloads the row so the caller sees the stored state.
func update[T any](ctx context.Context, s *Store, operation string, id uuid.UUID, row *T) error {
	return s.execute(ctx, operation, func(tx *gorm.DB) error {
		res := tx.Model(new(T)).Where("id = ?", id).Select("*").Omit("id", "created_at").Updates(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).First(row).Error
	})
}

func remove[T any](ctx context.Context, s *Store, operation string, id uuid.UUID) error {
	return s.execute(ctx, operation, func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(new(T))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
