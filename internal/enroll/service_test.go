package enroll

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRosterStore keeps rosters in memory behind the production Enroller, so
// the tests exercise the real membership-check and classification path.
type fakeRosterStore struct {
	rosters     map[model.EnrollmentTarget][]string
	occurrences map[string][]model.Occurrence
	failAdd     map[string]bool
}

func newFakeRosterStore() *fakeRosterStore {
	return &fakeRosterStore{
		rosters:     make(map[model.EnrollmentTarget][]string),
		occurrences: make(map[string][]model.Occurrence),
		failAdd:     make(map[string]bool),
	}
}

func (f *fakeRosterStore) ListRoster(_ context.Context, target model.EnrollmentTarget) ([]string, error) {
	return f.rosters[target], nil
}

func (f *fakeRosterStore) AddRosterMember(_ context.Context, target model.EnrollmentTarget, studentID string) error {
	if f.failAdd[studentID] {
		return fmt.Errorf("database gone away")
	}
	f.rosters[target] = append(f.rosters[target], studentID)
	return nil
}

func (f *fakeRosterStore) RemoveRosterMember(_ context.Context, target model.EnrollmentTarget, studentID string) error {
	members := f.rosters[target]
	for i, m := range members {
		if m == studentID {
			f.rosters[target] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeRosterStore) ListFutureOccurrences(_ context.Context, courseID string, _ time.Time) ([]model.Occurrence, error) {
	return f.occurrences[courseID], nil
}

func (f *fakeRosterStore) snapshot() map[model.EnrollmentTarget][]string {
	out := make(map[model.EnrollmentTarget][]string, len(f.rosters))
	for target, members := range f.rosters {
		out[target] = append([]string(nil), members...)
	}
	return out
}

func candidates(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{StudentID: id, Name: "Student " + id}
	}
	return out
}

var effective = time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

func TestSyncBulkCrossProduct(t *testing.T) {
	store := newFakeRosterStore()
	s := NewSynchronizer(NewEnroller(store))

	targets := []model.EnrollmentTarget{model.CourseTarget("c1"), model.CourseTarget("c2")}
	report := s.SyncBulk(context.Background(), targets, candidates("s1", "s2"), effective, nil)

	assert.Equal(t, 4, report.Successful)
	assert.Zero(t, report.AlreadyEnrolled)
	assert.Empty(t, report.Failed)
	require.Len(t, report.Details, 2)
	assert.ElementsMatch(t, []string{"s1", "s2"}, store.rosters[model.CourseTarget("c1")])
	assert.ElementsMatch(t, []string{"s1", "s2"}, store.rosters[model.CourseTarget("c2")])
}

func TestSyncBulkNeverDoubleEnrolls(t *testing.T) {
	store := newFakeRosterStore()
	store.rosters[model.CourseTarget("c1")] = []string{"s1"}
	s := NewSynchronizer(NewEnroller(store))

	report := s.SyncBulk(context.Background(),
		[]model.EnrollmentTarget{model.CourseTarget("c1")},
		candidates("s1", "s2"), effective, nil)

	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.AlreadyEnrolled)
	assert.Empty(t, report.Failed, "an existing membership is not a failure")
	assert.Equal(t, []string{"s1", "s2"}, store.rosters[model.CourseTarget("c1")],
		"roster cardinality must not grow for an existing member")
}

func TestSyncBulkPropagatesToFutureOccurrences(t *testing.T) {
	store := newFakeRosterStore()
	store.occurrences["c1"] = []model.Occurrence{
		{ID: "o1", CourseID: "c1"},
		{ID: "o2", CourseID: "c1"},
	}
	s := NewSynchronizer(NewEnroller(store))

	s.SyncBulk(context.Background(),
		[]model.EnrollmentTarget{model.CourseTarget("c1")},
		candidates("s1"), effective, nil)

	assert.Equal(t, []string{"s1"}, store.rosters[model.OccurrenceTarget("o1")])
	assert.Equal(t, []string{"s1"}, store.rosters[model.OccurrenceTarget("o2")])
}

func TestUnenrollCourseIsSymmetric(t *testing.T) {
	store := newFakeRosterStore()
	store.occurrences["c1"] = []model.Occurrence{
		{ID: "o1", CourseID: "c1"},
		{ID: "o2", CourseID: "c1"},
	}
	s := NewSynchronizer(NewEnroller(store))

	before := store.snapshot()
	s.SyncBulk(context.Background(),
		[]model.EnrollmentTarget{model.CourseTarget("c1")},
		candidates("s1"), effective, nil)

	require.NoError(t, s.UnenrollCourse(context.Background(), "c1", "s1", effective))

	after := store.snapshot()
	for target, members := range after {
		assert.ElementsMatch(t, before[target], members, "target %v", target)
	}
}

func TestSyncBulkBoundsFailureDetails(t *testing.T) {
	store := newFakeRosterStore()
	store.failAdd["s1"] = true
	store.failAdd["s2"] = true
	store.failAdd["s3"] = true
	s := NewSynchronizer(NewEnroller(store), WithFailureDetailLimit(2))

	report := s.SyncBulk(context.Background(),
		[]model.EnrollmentTarget{model.CourseTarget("c1")},
		candidates("s1", "s2", "s3"), effective, nil)

	assert.Zero(t, report.Successful)
	assert.Len(t, report.Failed, 2)
	require.Len(t, report.Details, 1)
	assert.Len(t, report.Details[0].Failed, 2)
	assert.NotEmpty(t, report.Failed[0].Reason)
}

func TestSyncBulkProgress(t *testing.T) {
	store := newFakeRosterStore()
	s := NewSynchronizer(NewEnroller(store))

	var calls [][2]int
	s.SyncBulk(context.Background(),
		[]model.EnrollmentTarget{model.CourseTarget("c1")},
		candidates("s1", "s2"), effective,
		func(processed, total int) { calls = append(calls, [2]int{processed, total}) })

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestSyncMappedPerRowTargets(t *testing.T) {
	store := newFakeRosterStore()
	s := NewSynchronizer(NewEnroller(store))

	rows := []MappedEnrollment{
		{Student: Candidate{StudentID: "s1"}, CourseID: "c1", OccurrenceID: "o1"},
		{Student: Candidate{StudentID: "s2"}, CourseID: "c2"},
		// No resolved target: absent from the counts entirely.
		{Student: Candidate{StudentID: "s3"}},
	}
	report := s.SyncMapped(context.Background(), rows, effective, nil)

	assert.Equal(t, 3, report.Successful)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []string{"s1"}, store.rosters[model.CourseTarget("c1")])
	assert.Equal(t, []string{"s1"}, store.rosters[model.OccurrenceTarget("o1")])
	assert.Equal(t, []string{"s2"}, store.rosters[model.CourseTarget("c2")])
	assert.Len(t, report.Details, 3)
}

func TestSyncMappedGroupsSummariesByTarget(t *testing.T) {
	store := newFakeRosterStore()
	s := NewSynchronizer(NewEnroller(store))

	rows := []MappedEnrollment{
		{Student: Candidate{StudentID: "s1"}, CourseID: "c1"},
		{Student: Candidate{StudentID: "s2"}, CourseID: "c1"},
	}
	report := s.SyncMapped(context.Background(), rows, effective, nil)

	require.Len(t, report.Details, 1)
	assert.Equal(t, model.CourseTarget("c1"), report.Details[0].Target)
	assert.Equal(t, 2, report.Details[0].Successful)
}

func TestCandidatesCoverAllImportOutcomes(t *testing.T) {
	result := &model.ImportResult{
		Created: []model.RowOutcome{{StudentID: "s1", Record: model.RowRecord{Ref: model.NewRowRef(0)}}},
		Updated: []model.RowOutcome{{StudentID: "s2", Record: model.RowRecord{Ref: model.NewRowRef(1)}}},
		Failed:  []model.RowOutcome{{Record: model.RowRecord{Ref: model.NewRowRef(2)}, Err: "boom"}},
	}
	skipped := []model.RowRecord{
		{Ref: model.NewRowRef(3), Duplicate: &model.Student{ID: "s3", FirstName: "Dana"}},
	}

	out := Candidates(result, skipped)

	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.StudentID
	}
	// Failed rows produce no candidate; skipped duplicates enroll their
	// pre-existing student.
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)
}

func TestMappedEnrollmentsCorrelateRowsByIndex(t *testing.T) {
	result := &model.ImportResult{
		Created: []model.RowOutcome{
			{StudentID: "s1", Record: model.RowRecord{Ref: model.NewRowRef(0)}},
			{StudentID: "s2", Record: model.RowRecord{Ref: model.NewRowRef(1)}},
		},
	}
	skipped := []model.RowRecord{
		{Ref: model.NewRowRef(3), Duplicate: &model.Student{ID: "s4"}},
	}
	ids := map[int]map[string][]string{
		0: {model.FieldCourse: {"c1", "c2"}, model.FieldOccurrence: {"o1"}},
		3: {model.FieldCourse: {"c1"}},
	}

	mapped := MappedEnrollments(result, skipped, ids)

	// Row 0 fans out per resolved id, row 1 had nothing resolved, and the
	// skipped duplicate keeps its own row's course.
	require.Len(t, mapped, 4)
	assert.Equal(t, MappedEnrollment{Student: mapped[0].Student, CourseID: "c1"}, mapped[0])
	assert.Equal(t, "s1", mapped[0].Student.StudentID)
	assert.Equal(t, "c2", mapped[1].CourseID)
	assert.Equal(t, "o1", mapped[2].OccurrenceID)
	assert.Equal(t, "s4", mapped[3].Student.StudentID)
	assert.Equal(t, "c1", mapped[3].CourseID)

	for _, m := range mapped {
		assert.NotEqual(t, "s2", m.Student.StudentID, "rows with no resolved targets contribute nothing")
	}
}
