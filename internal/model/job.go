package model

import "time"

type ImportJob struct {
	RunID    string `json:"run_id"`
	TenantID string `json:"tenant_id"`
	S3Path   string `json:"s3_path"`
	FileName string `json:"file_name"`
}

type EnrollmentJob struct {
	RunID         string    `json:"run_id"`
	TenantID      string    `json:"tenant_id"`
	StudentIDs    []string  `json:"student_ids"`
	CourseIDs     []string  `json:"course_ids,omitempty"`
	OccurrenceIDs []string  `json:"occurrence_ids,omitempty"`
	EffectiveDate time.Time `json:"effective_date"`
}
