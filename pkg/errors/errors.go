package errors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFileFormat    = errors.New("invalid file format")
	ErrEmptyDataset         = errors.New("dataset contains no data rows")
	ErrRunNotFound          = errors.New("import run not found")
	ErrRunNotReady          = errors.New("import run is not ready for this operation")
	ErrCreateNotSupported   = errors.New("creating entities from file values is not supported")
	ErrUnknownField         = errors.New("unknown field key")
	ErrStepGateFailed       = errors.New("step requirements not met")
	ErrTerminalStep         = errors.New("cannot navigate back from a terminal step")
	ErrSearchTermTooShort   = errors.New("search term must be at least 2 characters")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

type EnrollmentCode string

const (
	EnrollAlreadyEnrolled EnrollmentCode = "already_enrolled"
	EnrollTargetNotFound  EnrollmentCode = "target_not_found"
	EnrollFailed          EnrollmentCode = "failed"
)

// EnrollmentError carries a machine-readable code so callers can tell an
// existing membership apart from a real write failure without inspecting
// message text.
type EnrollmentError struct {
	Code      EnrollmentCode
	TargetID  string
	StudentID string
	Err       error
}

func (e *EnrollmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrollment %s: student %s, target %s: %v", e.Code, e.StudentID, e.TargetID, e.Err)
	}
	return fmt.Sprintf("enrollment %s: student %s, target %s", e.Code, e.StudentID, e.TargetID)
}

func (e *EnrollmentError) Unwrap() error {
	return e.Err
}

func NewEnrollmentError(code EnrollmentCode, targetID, studentID string, err error) error {
	return &EnrollmentError{Code: code, TargetID: targetID, StudentID: studentID, Err: err}
}

func IsAlreadyEnrolled(err error) bool {
	var ee *EnrollmentError
	return errors.As(err, &ee) && ee.Code == EnrollAlreadyEnrolled
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}
