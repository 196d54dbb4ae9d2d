package model

import (
	"strings"
	"time"
)

type Student struct {
	ID             string                 `json:"id" db:"id"`
	TenantID       string                 `json:"tenant_id" db:"tenant_id"`
	FirstName      string                 `json:"first_name" db:"first_name"`
	LastName       string                 `json:"last_name" db:"last_name"`
	Phone          string                 `json:"phone" db:"phone"`
	SecondaryPhone string                 `json:"secondary_phone,omitempty" db:"secondary_phone"`
	Email          string                 `json:"email,omitempty" db:"email"`
	PhotoURL       string                 `json:"photo_url,omitempty" db:"photo_url"`
	Notes          string                 `json:"notes,omitempty" db:"notes"`
	BirthDate      *time.Time             `json:"birth_date,omitempty" db:"birth_date"`
	CustomFields   map[string]interface{} `json:"custom_fields,omitempty"`
	IsActive       bool                   `json:"is_active" db:"is_active"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
}

func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// ExtractedStudent holds normalized field values pulled from one dataset row,
// ready for persistence.
type ExtractedStudent struct {
	FirstName      string
	LastName       string
	Phone          string
	SecondaryPhone string
	Email          string
	PhotoURL       string
	Notes          string
	BirthDate      *time.Time
	CustomFields   map[string]interface{}
}

func (e ExtractedStudent) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

type Branch struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

type Course struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`
	BranchID string `json:"branch_id" db:"branch_id"`
	Name     string `json:"name" db:"name"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// Occurrence is one dated class instance generated from a course's schedule
// template. Generation itself is a separate batch job; this side only reads
// occurrences and maintains their rosters.
type Occurrence struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	CourseID   string    `json:"course_id" db:"course_id"`
	CourseName string    `json:"course_name" db:"course_name"`
	StartsAt   time.Time `json:"starts_at" db:"starts_at"`
}

func (o *Occurrence) Label() string {
	return o.CourseName + " " + o.StartsAt.Format("2006-01-02 15:04")
}
