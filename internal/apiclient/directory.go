package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

// Student mirrors the server's student resource.
type Student struct {
	ID             string  `json:"id,omitempty"`
	OrganizationID string  `json:"organization_id"`
	DepartmentID   *string `json:"department_id,omitempty"`
	ClassID        *string `json:"class_id,omitempty"`
	RollNumber     string  `json:"roll_number"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email"`
	Phone          string  `json:"phone,omitempty"`
	Course         string  `json:"course,omitempty"`
	Semester       string  `json:"semester,omitempty"`
	Gender         string  `json:"gender,omitempty"`
	DateOfBirth    string  `json:"date_of_birth,omitempty"`
}

// Staff mirrors the server's staff resource.
type Staff struct {
	ID             string  `json:"id,omitempty"`
	OrganizationID string  `json:"organization_id"`
	DepartmentID   *string `json:"department_id,omitempty"`
	EmployeeID     string  `json:"employee_id"`
	FullName       string  `json:"full_name"`
	Email          string  `json:"email,omitempty"`
	Phone          string  `json:"phone,omitempty"`
	Role           string  `json:"role,omitempty"`
	Designation    string  `json:"designation,omitempty"`
	JoiningDate    string  `json:"joining_date,omitempty"`
}

type DepartmentStat struct {
	Name     string `json:"name"`
	Students int64  `json:"students"`
}

// Dashboard is the per-organization summary.
type Dashboard struct {
	TotalStudents    int64            `json:"totalStudents"`
	TotalStaff       int64            `json:"totalStaff"`
	TotalDepartments int64            `json:"totalDepartments"`
	TotalClasses     int64            `json:"totalClasses"`
	DepartmentData   []DepartmentStat `json:"departmentData"`
}

func (c *Client) CreateStudent(ctx context.Context, s *Student) (*Student, error) {
	var out Student
	if err := c.doJSON(ctx, http.MethodPost, "/api/students", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateStaff(ctx context.Context, s *Staff) (*Staff, error) {
	var out Staff
	if err := c.doJSON(ctx, http.MethodPost, "/api/staff", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StudentByRoll(ctx context.Context, roll string) (*Student, error) {
	var out Student
	if err := c.doJSON(ctx, http.MethodGet, "/api/students/by-roll/"+url.PathEscape(roll), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StaffByEmployeeID(ctx context.Context, employeeID string) (*Staff, error) {
	var out Staff
	if err := c.doJSON(ctx, http.MethodGet, "/api/staff/employee/"+url.PathEscape(employeeID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dashboard(ctx context.Context, orgID string) (*Dashboard, error) {
	var out Dashboard
	if err := c.doJSON(ctx, http.MethodGet, "/api/dashboard/"+url.PathEscape(orgID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
