package enroll

import (
	"context"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"
)

// Enroller is the enrollment capability. Implementations must signal an
// existing membership with errors.EnrollAlreadyEnrolled so outcomes can be
// classified without message matching.
type Enroller interface {
	Enroll(ctx context.Context, target model.EnrollmentTarget, studentID string, effective time.Time) error
	Unenroll(ctx context.Context, target model.EnrollmentTarget, studentID string, effective time.Time) error
	ListActiveEnrollments(ctx context.Context, target model.EnrollmentTarget, asOf time.Time) ([]string, error)
	// FutureOccurrences lists the materialized occurrences of a course on or
	// after the given date, for roster propagation.
	FutureOccurrences(ctx context.Context, courseID string, from time.Time) ([]model.Occurrence, error)
}

// RosterStore is the persistence surface behind the default Enroller.
type RosterStore interface {
	ListRoster(ctx context.Context, target model.EnrollmentTarget) ([]string, error)
	AddRosterMember(ctx context.Context, target model.EnrollmentTarget, studentID string) error
	RemoveRosterMember(ctx context.Context, target model.EnrollmentTarget, studentID string) error
	ListFutureOccurrences(ctx context.Context, courseID string, from time.Time) ([]model.Occurrence, error)
}

type storeEnroller struct {
	store RosterStore
}

func NewEnroller(store RosterStore) Enroller {
	return &storeEnroller{store: store}
}

func (e *storeEnroller) Enroll(ctx context.Context, target model.EnrollmentTarget, studentID string, effective time.Time) error {
	roster, err := e.store.ListRoster(ctx, target)
	if err != nil {
		return errors.NewEnrollmentError(errors.EnrollFailed, target.ID, studentID, err)
	}
	for _, member := range roster {
		if member == studentID {
			return errors.NewEnrollmentError(errors.EnrollAlreadyEnrolled, target.ID, studentID, nil)
		}
	}
	if err := e.store.AddRosterMember(ctx, target, studentID); err != nil {
		return errors.NewEnrollmentError(errors.EnrollFailed, target.ID, studentID, err)
	}
	return nil
}

// Unenroll is idempotent: removing an absent member is not an error.
func (e *storeEnroller) Unenroll(ctx context.Context, target model.EnrollmentTarget, studentID string, effective time.Time) error {
	if err := e.store.RemoveRosterMember(ctx, target, studentID); err != nil {
		return errors.NewEnrollmentError(errors.EnrollFailed, target.ID, studentID, err)
	}
	return nil
}

func (e *storeEnroller) ListActiveEnrollments(ctx context.Context, target model.EnrollmentTarget, asOf time.Time) ([]string, error) {
	return e.store.ListRoster(ctx, target)
}

func (e *storeEnroller) FutureOccurrences(ctx context.Context, courseID string, from time.Time) ([]model.Occurrence, error) {
	return e.store.ListFutureOccurrences(ctx, courseID, from)
}
