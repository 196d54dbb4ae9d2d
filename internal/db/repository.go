package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"
)

type Repository interface {
	// Import runs
	CreateRun(ctx context.Context, run *model.ImportRun) error
	GetRun(ctx context.Context, id string) (*model.ImportRun, error)
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, errorMessage *string) error
	UpdateRunCounts(ctx context.Context, id string, total, created, updated, failed int) error

	// Students
	ListActiveStudents(ctx context.Context, tenantID string) ([]model.Student, error)
	InsertStudent(ctx context.Context, s *model.Student) error
	UpdateStudent(ctx context.Context, s *model.Student) error

	// Lookup entities
	ListActiveBranches(ctx context.Context, tenantID string) ([]model.Branch, error)
	ListActiveCourses(ctx context.Context, tenantID string) ([]model.Course, error)
	ListUpcomingOccurrences(ctx context.Context, tenantID string, from time.Time) ([]model.Occurrence, error)
	ListFutureOccurrences(ctx context.Context, courseID string, from time.Time) ([]model.Occurrence, error)

	// Rosters
	ListRoster(ctx context.Context, target model.EnrollmentTarget) ([]string, error)
	AddRosterMember(ctx context.Context, target model.EnrollmentTarget, studentID string) error
	RemoveRosterMember(ctx context.Context, target model.EnrollmentTarget, studentID string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateRun(ctx context.Context, run *model.ImportRun) error {
	query := `INSERT INTO import_runs (id, tenant_id, file_name, s3_path, status, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, NOW(), NOW())`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.TenantID, run.FileName, run.S3Path, run.Status)
	return err
}

func (r *repository) GetRun(ctx context.Context, id string) (*model.ImportRun, error) {
	query := `SELECT id, tenant_id, file_name, s3_path, status, total_rows, created_count,
			  updated_count, failed_count, error_message, created_at, updated_at, enrolled_at
			  FROM import_runs WHERE id = ?`

	var run model.ImportRun
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.TenantID, &run.FileName, &run.S3Path, &run.Status,
		&run.TotalRows, &run.CreatedCount, &run.UpdatedCount, &run.FailedCount,
		&run.ErrorMessage, &run.CreatedAt, &run.UpdatedAt, &run.EnrolledAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, errorMessage *string) error {
	query := `UPDATE import_runs SET status = ?, error_message = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, status, errorMessage, id)
	return err
}

func (r *repository) UpdateRunCounts(ctx context.Context, id string, total, created, updated, failed int) error {
	query := `UPDATE import_runs SET total_rows = ?, created_count = ?, updated_count = ?,
			  failed_count = ?, updated_at = NOW() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, total, created, updated, failed, id)
	return err
}

func (r *repository) ListActiveStudents(ctx context.Context, tenantID string) ([]model.Student, error) {
	query := `SELECT id, tenant_id, first_name, last_name, phone, secondary_phone, email,
			  photo_url, notes, birth_date, custom_fields, is_active, created_at, updated_at
			  FROM students WHERE tenant_id = ? AND is_active = 1`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		var customJSON sql.NullString
		err := rows.Scan(&s.ID, &s.TenantID, &s.FirstName, &s.LastName, &s.Phone,
			&s.SecondaryPhone, &s.Email, &s.PhotoURL, &s.Notes, &s.BirthDate,
			&customJSON, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if customJSON.Valid && customJSON.String != "" {
			if err := json.Unmarshal([]byte(customJSON.String), &s.CustomFields); err != nil {
				return nil, fmt.Errorf("decoding custom fields of student %s: %w", s.ID, err)
			}
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (r *repository) InsertStudent(ctx context.Context, s *model.Student) error {
	customJSON, err := marshalCustomFields(s.CustomFields)
	if err != nil {
		return err
	}

	query := `INSERT INTO students (id, tenant_id, first_name, last_name, phone, secondary_phone,
			  email, photo_url, notes, birth_date, custom_fields, is_active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, s.ID, s.TenantID, s.FirstName, s.LastName, s.Phone,
		s.SecondaryPhone, s.Email, s.PhotoURL, s.Notes, s.BirthDate, customJSON,
		s.IsActive, s.CreatedAt, s.UpdatedAt)
	return err
}

// UpdateStudent overwrites mutable fields; created_at is deliberately left
// untouched.
func (r *repository) UpdateStudent(ctx context.Context, s *model.Student) error {
	customJSON, err := marshalCustomFields(s.CustomFields)
	if err != nil {
		return err
	}

	query := `UPDATE students SET first_name = ?, last_name = ?, phone = ?, secondary_phone = ?,
			  email = ?, photo_url = ?, notes = ?, birth_date = ?, custom_fields = ?, updated_at = ?
			  WHERE id = ?`
	_, err = r.db.ExecContext(ctx, query, s.FirstName, s.LastName, s.Phone, s.SecondaryPhone,
		s.Email, s.PhotoURL, s.Notes, s.BirthDate, customJSON, s.UpdatedAt, s.ID)
	return err
}

func marshalCustomFields(fields map[string]interface{}) (sql.NullString, error) {
	if len(fields) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding custom fields: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func (r *repository) ListActiveBranches(ctx context.Context, tenantID string) ([]model.Branch, error) {
	query := `SELECT id, tenant_id, name, is_active FROM branches WHERE tenant_id = ? AND is_active = 1`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Name, &b.IsActive); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (r *repository) ListActiveCourses(ctx context.Context, tenantID string) ([]model.Course, error) {
	query := `SELECT id, tenant_id, branch_id, name, is_active FROM courses WHERE tenant_id = ? AND is_active = 1`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.TenantID, &c.BranchID, &c.Name, &c.IsActive); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *repository) ListUpcomingOccurrences(ctx context.Context, tenantID string, from time.Time) ([]model.Occurrence, error) {
	query := `SELECT o.id, o.tenant_id, o.course_id, c.name, o.starts_at
			  FROM occurrences o JOIN courses c ON c.id = o.course_id
			  WHERE o.tenant_id = ? AND o.starts_at >= ?
			  ORDER BY o.starts_at`
	return r.scanOccurrences(ctx, query, tenantID, from)
}

func (r *repository) ListFutureOccurrences(ctx context.Context, courseID string, from time.Time) ([]model.Occurrence, error) {
	query := `SELECT o.id, o.tenant_id, o.course_id, c.name, o.starts_at
			  FROM occurrences o JOIN courses c ON c.id = o.course_id
			  WHERE o.course_id = ? AND o.starts_at >= ?
			  ORDER BY o.starts_at`
	return r.scanOccurrences(ctx, query, courseID, from)
}

func (r *repository) scanOccurrences(ctx context.Context, query string, args ...interface{}) ([]model.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occurrences []model.Occurrence
	for rows.Next() {
		var o model.Occurrence
		if err := rows.Scan(&o.ID, &o.TenantID, &o.CourseID, &o.CourseName, &o.StartsAt); err != nil {
			return nil, err
		}
		occurrences = append(occurrences, o)
	}
	return occurrences, rows.Err()
}

func rosterTable(kind model.TargetKind) (table, column string, err error) {
	switch kind {
	case model.TargetCourse:
		return "course_enrollments", "course_id", nil
	case model.TargetOccurrence:
		return "occurrence_rosters", "occurrence_id", nil
	default:
		return "", "", fmt.Errorf("unknown target kind: %s", kind)
	}
}

func (r *repository) ListRoster(ctx context.Context, target model.EnrollmentTarget) ([]string, error) {
	table, column, err := rosterTable(target.Kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT student_id FROM %s WHERE %s = ?`, table, column)
	rows, err := r.db.QueryContext(ctx, query, target.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

func (r *repository) AddRosterMember(ctx context.Context, target model.EnrollmentTarget, studentID string) error {
	table, column, err := rosterTable(target.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s, student_id, created_at) VALUES (?, ?, NOW())`, table, column)
	_, err = r.db.ExecContext(ctx, query, target.ID, studentID)
	return err
}

func (r *repository) RemoveRosterMember(ctx context.Context, target model.EnrollmentTarget, studentID string) error {
	table, column, err := rosterTable(target.Kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ? AND student_id = ?`, table, column)
	_, err = r.db.ExecContext(ctx, query, target.ID, studentID)
	return err
}
