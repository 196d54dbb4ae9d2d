package enroll

import (
	"context"
	"fmt"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"

	"github.com/rs/zerolog"
)

const defaultFailureDetailLimit = 20

// Candidate is one enrollment-eligible student: newly created, updated, or a
// pre-existing record retained from the skipped-duplicates bucket.
type Candidate struct {
	StudentID string
	Name      string
	Ref       model.RowRef
}

// Candidates builds the synchronizer input from an import result plus the
// skipped duplicates, each of which carries its pre-existing student's id.
func Candidates(result *model.ImportResult, skippedDuplicates []model.RowRecord) []Candidate {
	var out []Candidate
	for _, o := range result.Created {
		out = append(out, Candidate{StudentID: o.StudentID, Name: o.Record.Extracted.FullName(), Ref: o.Record.Ref})
	}
	for _, o := range result.Updated {
		out = append(out, Candidate{StudentID: o.StudentID, Name: o.Record.Extracted.FullName(), Ref: o.Record.Ref})
	}
	for _, rec := range skippedDuplicates {
		if rec.Duplicate == nil {
			continue
		}
		out = append(out, Candidate{StudentID: rec.Duplicate.ID, Name: rec.Duplicate.FullName(), Ref: rec.Ref})
	}
	return out
}

// MappedEnrollment is one row's resolved targets in mapped mode: at most one
// course and at most one occurrence per row.
type MappedEnrollment struct {
	Student      Candidate
	CourseID     string
	OccurrenceID string
}

// MappedEnrollments correlates import outcomes with the ids resolved from
// each row's own course and occurrence cells, keyed by source index. A row
// whose cells resolved to nothing contributes no entries; multi-value cells
// contribute one entry per resolved id.
func MappedEnrollments(result *model.ImportResult, skippedDuplicates []model.RowRecord, ids map[int]map[string][]string) []MappedEnrollment {
	var out []MappedEnrollment
	for _, student := range Candidates(result, skippedDuplicates) {
		rowIDs := ids[student.Ref.SourceIndex]
		for _, id := range rowIDs[model.FieldCourse] {
			out = append(out, MappedEnrollment{Student: student, CourseID: id})
		}
		for _, id := range rowIDs[model.FieldOccurrence] {
			out = append(out, MappedEnrollment{Student: student, OccurrenceID: id})
		}
	}
	return out
}

// Progress reports processed versus total enrollment pairs.
type Progress func(processed, total int)

// Synchronizer performs per-(student, target) enrollment and mirrors
// course-level enrollment into the course's future occurrences.
type Synchronizer struct {
	enroller    Enroller
	detailLimit int
	log         zerolog.Logger
}

type SynchronizerOption func(*Synchronizer)

// WithFailureDetailLimit bounds the per-target failure list.
func WithFailureDetailLimit(n int) SynchronizerOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.detailLimit = n
		}
	}
}

func NewSynchronizer(enroller Enroller, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		enroller:    enroller,
		detailLimit: defaultFailureDetailLimit,
		log:         logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncBulk enrolls every student into every target in the cross product.
func (s *Synchronizer) SyncBulk(
	ctx context.Context,
	targets []model.EnrollmentTarget,
	students []Candidate,
	effective time.Time,
	progress Progress,
) *model.EnrollmentReport {
	report := &model.EnrollmentReport{}
	total := len(targets) * len(students)
	processed := 0

	for _, target := range targets {
		summary := model.TargetSummary{Target: target}
		for _, student := range students {
			s.enrollOne(ctx, target, student, effective, &summary)
			processed++
			if progress != nil {
				progress(processed, total)
			}
		}
		s.fold(report, summary)
	}

	s.log.Info().
		Int("successful", report.Successful).
		Int("already_enrolled", report.AlreadyEnrolled).
		Int("failed", len(report.Failed)).
		Msg("Bulk enrollment completed")
	return report
}

// SyncMapped enrolls each row's student into the targets resolved from its
// own file data. Rows without a resolved target are simply absent from the
// input, never counted as failures.
func (s *Synchronizer) SyncMapped(
	ctx context.Context,
	rows []MappedEnrollment,
	effective time.Time,
	progress Progress,
) *model.EnrollmentReport {
	report := &model.EnrollmentReport{}
	summaries := make(map[model.EnrollmentTarget]*model.TargetSummary)
	var order []model.EnrollmentTarget

	summaryFor := func(target model.EnrollmentTarget) *model.TargetSummary {
		if sum, ok := summaries[target]; ok {
			return sum
		}
		sum := &model.TargetSummary{Target: target}
		summaries[target] = sum
		order = append(order, target)
		return sum
	}

	total := 0
	for _, row := range rows {
		if row.CourseID != "" {
			total++
		}
		if row.OccurrenceID != "" {
			total++
		}
	}

	processed := 0
	for _, row := range rows {
		if row.CourseID != "" {
			target := model.CourseTarget(row.CourseID)
			s.enrollOne(ctx, target, row.Student, effective, summaryFor(target))
			processed++
			if progress != nil {
				progress(processed, total)
			}
		}
		if row.OccurrenceID != "" {
			target := model.OccurrenceTarget(row.OccurrenceID)
			s.enrollOne(ctx, target, row.Student, effective, summaryFor(target))
			processed++
			if progress != nil {
				progress(processed, total)
			}
		}
	}

	for _, target := range order {
		s.fold(report, *summaries[target])
	}

	s.log.Info().
		Int("successful", report.Successful).
		Int("already_enrolled", report.AlreadyEnrolled).
		Int("failed", len(report.Failed)).
		Msg("Mapped enrollment completed")
	return report
}

// enrollOne attempts one (student, target) pair and classifies the outcome.
// Anything that is neither success nor an existing membership is a generic
// failure.
func (s *Synchronizer) enrollOne(
	ctx context.Context,
	target model.EnrollmentTarget,
	student Candidate,
	effective time.Time,
	summary *model.TargetSummary,
) {
	err := s.enroller.Enroll(ctx, target, student.StudentID, effective)
	switch {
	case err == nil:
		summary.Successful++
		if target.Kind == model.TargetCourse {
			s.propagateToOccurrences(ctx, target.ID, student, effective, summary)
		}
	case errors.IsAlreadyEnrolled(err):
		summary.AlreadyEnrolled++
	default:
		s.addFailure(summary, student, err.Error())
	}
}

// propagateToOccurrences mirrors a new course enrollment into every future
// occurrence generated from that course, so attendance-taking reflects the
// new roster immediately. Existing occurrence memberships are left alone.
func (s *Synchronizer) propagateToOccurrences(
	ctx context.Context,
	courseID string,
	student Candidate,
	effective time.Time,
	summary *model.TargetSummary,
) {
	occurrences, err := s.enroller.FutureOccurrences(ctx, courseID, effective)
	if err != nil {
		s.addFailure(summary, student, fmt.Sprintf("listing occurrences of course %s: %v", courseID, err))
		return
	}

	for _, occ := range occurrences {
		err := s.enroller.Enroll(ctx, model.OccurrenceTarget(occ.ID), student.StudentID, effective)
		if err != nil && !errors.IsAlreadyEnrolled(err) {
			s.addFailure(summary, student, fmt.Sprintf("occurrence %s: %v", occ.ID, err))
		}
	}
}

// UnenrollCourse is the symmetric removal path: it takes the student off the
// course and out of every future occurrence on or after the effective date.
func (s *Synchronizer) UnenrollCourse(ctx context.Context, courseID, studentID string, effective time.Time) error {
	if err := s.enroller.Unenroll(ctx, model.CourseTarget(courseID), studentID, effective); err != nil {
		return err
	}

	occurrences, err := s.enroller.FutureOccurrences(ctx, courseID, effective)
	if err != nil {
		return fmt.Errorf("listing occurrences of course %s: %w", courseID, err)
	}

	for _, occ := range occurrences {
		if err := s.enroller.Unenroll(ctx, model.OccurrenceTarget(occ.ID), studentID, effective); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) addFailure(summary *model.TargetSummary, student Candidate, reason string) {
	if len(summary.Failed) < s.detailLimit {
		summary.Failed = append(summary.Failed, model.EnrollmentFailure{
			StudentID:   student.StudentID,
			StudentName: student.Name,
			Reason:      reason,
		})
	}
}

func (s *Synchronizer) fold(report *model.EnrollmentReport, summary model.TargetSummary) {
	report.Successful += summary.Successful
	report.AlreadyEnrolled += summary.AlreadyEnrolled
	report.Failed = append(report.Failed, summary.Failed...)
	report.Details = append(report.Details, summary)
}
