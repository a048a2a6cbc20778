package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the identifier and creation timestamp shared by directory rows.
type Base struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// BeforeCreate assigns a random identifier when the caller left it empty.
func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type Organization struct {
	Base
	Name    string `gorm:"type:text;not null" json:"name" validate:"required,max=200"`
	Address string `gorm:"type:text" json:"address"`
	Contact string `gorm:"type:text" json:"contact"`
	Logo    string `gorm:"type:text" json:"logo,omitempty"`
}

func (Organization) TableName() string { return "organizations" }

type Department struct {
	Base
	OrganizationID   uuid.UUID `gorm:"type:uuid;index" json:"organization_id" validate:"required"`
	Name             string    `gorm:"type:text;not null" json:"name" validate:"required,max=200"`
	Code             string    `gorm:"type:text;index" json:"code"`
	Description      string    `gorm:"type:text" json:"description"`
	HeadOfDepartment string    `gorm:"type:text" json:"head_of_department"`
}

func (Department) TableName() string { return "departments" }

type Class struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index" json:"organization_id" validate:"required"`
	DepartmentID   *uuid.UUID `gorm:"type:uuid;index" json:"department_id"`
	Name           string     `gorm:"type:text" json:"name" validate:"required,max=200"`
	Code           string     `gorm:"type:text;index" json:"code"`
	Semester       string     `gorm:"type:text" json:"semester"`
	Section        string     `gorm:"type:text" json:"section"`
	AcademicYear   string     `gorm:"type:text" json:"academic_year"`
	Capacity       int        `json:"capacity" validate:"gte=0"`
	Description    string     `gorm:"type:text" json:"description"`
}

func (Class) TableName() string { return "classes" }

type Student struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index" json:"organization_id" validate:"required"`
	DepartmentID   *uuid.UUID `gorm:"type:uuid;index" json:"department_id"`
	ClassID        *uuid.UUID `gorm:"type:uuid;index" json:"class_id"`
	RollNumber     string     `gorm:"type:text;uniqueIndex;not null" json:"roll_number" validate:"required,max=128"`
	FullName       string     `gorm:"type:text;not null" json:"full_name" validate:"required"`
	Email          string     `gorm:"type:text;uniqueIndex;not null" json:"email" validate:"required,email"`
	Phone          string     `gorm:"type:text" json:"phone"`
	Address        string     `gorm:"type:text" json:"address"`
	Course         string     `gorm:"type:text" json:"course"`
	Semester       string     `gorm:"type:text" json:"semester"`
	Gender         string     `gorm:"type:text" json:"gender"`
	DateOfBirth    string     `gorm:"type:text" json:"date_of_birth"`
}

func (Student) TableName() string { return "students" }

type Staff struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;index" json:"organization_id" validate:"required"`
	DepartmentID   *uuid.UUID `gorm:"type:uuid;index" json:"department_id"`
	EmployeeID     string     `gorm:"type:text;uniqueIndex;not null" json:"employee_id" validate:"required,max=128"`
	FullName       string     `gorm:"type:text;not null" json:"full_name" validate:"required"`
	Email          string     `gorm:"type:text;index" json:"email" validate:"omitempty,email"`
	Phone          string     `gorm:"type:text" json:"phone"`
	Role           string     `gorm:"type:text" json:"role"`
	Designation    string     `gorm:"type:text" json:"designation"`
	Qualification  string     `gorm:"type:text" json:"qualification"`
	Experience     float64    `json:"experience" validate:"gte=0"`
	Address        string     `gorm:"type:text" json:"address"`
	DateOfBirth    string     `gorm:"type:text" json:"date_of_birth"`
	Gender         string     `gorm:"type:text" json:"gender"`
	JoiningDate    string     `gorm:"type:text" json:"joining_date"`
}

func (Staff) TableName() string { return "staff" }

// Account roles.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Account is a login for the dashboard. Administrators sign in with their
// email, students with their registration number.
type Account struct {
	Base
	Name         string `gorm:"type:text;not null"`
	Login        string `gorm:"type:text;uniqueIndex;not null"`
	Role         string `gorm:"type:text;not null"`
	PasswordHash []byte `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// FaceRecord is a stored, encoded face image for a student or staff member.
type FaceRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Identifier string    `gorm:"column:identifier;index:idx_face_owner;size:128;not null"`
	IDType     string    `gorm:"column:id_type;index:idx_face_owner;size:16;not null"`
	ObjectKey  string    `gorm:"column:object_key;size:512;not null"`
	Encoding   []byte    `gorm:"column:encoding;not null"`
	SHA1Hash   string    `gorm:"column:sha1_hash;size:40;index"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (FaceRecord) TableName() string { return "face_records" }

// FaceVerification logs one verify-face request and its outcome.
type FaceVerification struct {
	ID         uint      `gorm:"primaryKey"`
	RequestID  string    `gorm:"column:request_id;uniqueIndex;size:64"`
	Identifier string    `gorm:"column:identifier;size:128"`
	IDType     string    `gorm:"column:id_type;size:16"`
	Encoded    bool      `gorm:"column:encoded"`
	Faces      int       `gorm:"column:faces"`
	LatencyMs  int64     `gorm:"column:latency_ms"`
	SHA1Hash   string    `gorm:"column:sha1_hash;size:40;index"`
	Details    string    `gorm:"column:details;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (FaceVerification) TableName() string { return "face_verifications" }
