package model

import "time"

type RunStatus string

const (
	RunStatusUploaded   RunStatus = "UPLOADED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusImported   RunStatus = "IMPORTED"
	RunStatusFailed     RunStatus = "FAILED"
	RunStatusEnrolled   RunStatus = "ENROLLED"
)

// ImportRun tracks one uploaded file through the pipeline.
type ImportRun struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	FileName     string     `json:"file_name" db:"file_name"`
	S3Path       string     `json:"s3_path" db:"s3_path"`
	Status       RunStatus  `json:"status" db:"status"`
	TotalRows    int        `json:"total_rows" db:"total_rows"`
	CreatedCount int        `json:"created_count" db:"created_count"`
	UpdatedCount int        `json:"updated_count" db:"updated_count"`
	FailedCount  int        `json:"failed_count" db:"failed_count"`
	ErrorMessage *string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	EnrolledAt   *time.Time `json:"enrolled_at,omitempty" db:"enrolled_at"`
}
