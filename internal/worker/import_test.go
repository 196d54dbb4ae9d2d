package worker

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/config"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/dataset"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/db"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/enroll"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// memRepo backs the pipeline with in-memory state; only the methods the
// import path touches are implemented.
type memRepo struct {
	db.Repository
	statuses    []model.RunStatus
	statusErrs  map[model.RunStatus]error
	counts      []int
	students    []model.Student
	courses     []model.Course
	occurrences []model.Occurrence
	inserted    []*model.Student
	rosters     map[model.EnrollmentTarget][]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		statusErrs: make(map[model.RunStatus]error),
		rosters:    make(map[model.EnrollmentTarget][]string),
	}
}

func (r *memRepo) UpdateRunStatus(_ context.Context, _ string, status model.RunStatus, _ *string) error {
	r.statuses = append(r.statuses, status)
	return r.statusErrs[status]
}

func (r *memRepo) UpdateRunCounts(_ context.Context, _ string, total, created, updated, failed int) error {
	r.counts = []int{total, created, updated, failed}
	return nil
}

func (r *memRepo) ListActiveStudents(_ context.Context, _ string) ([]model.Student, error) {
	return r.students, nil
}

func (r *memRepo) InsertStudent(_ context.Context, s *model.Student) error {
	r.inserted = append(r.inserted, s)
	return nil
}

func (r *memRepo) ListActiveBranches(_ context.Context, _ string) ([]model.Branch, error) {
	return nil, nil
}

func (r *memRepo) ListActiveCourses(_ context.Context, _ string) ([]model.Course, error) {
	return r.courses, nil
}

func (r *memRepo) ListUpcomingOccurrences(_ context.Context, _ string, _ time.Time) ([]model.Occurrence, error) {
	return r.occurrences, nil
}

func (r *memRepo) ListFutureOccurrences(_ context.Context, courseID string, _ time.Time) ([]model.Occurrence, error) {
	var out []model.Occurrence
	for _, o := range r.occurrences {
		if o.CourseID == courseID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) ListRoster(_ context.Context, target model.EnrollmentTarget) ([]string, error) {
	return r.rosters[target], nil
}

func (r *memRepo) AddRosterMember(_ context.Context, target model.EnrollmentTarget, studentID string) error {
	r.rosters[target] = append(r.rosters[target], studentID)
	return nil
}

func (r *memRepo) RemoveRosterMember(_ context.Context, target model.EnrollmentTarget, studentID string) error {
	members := r.rosters[target]
	for i, m := range members {
		if m == studentID {
			r.rosters[target] = append(members[:i], members[i+1:]...)
			break
		}
	}
	return nil
}

type memStorage struct {
	storage.Storage
	data []byte
	err  error
}

func (s *memStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func testWorker(repo *memRepo, store *memStorage) *ImportWorker {
	cfg := &config.Config{}
	return &ImportWorker{
		cfg:          cfg,
		repo:         repo,
		storage:      store,
		normalizer:   dataset.NewExcelNormalizer(),
		synchronizer: enroll.NewSynchronizer(enroll.NewEnroller(repo)),
	}
}

func studentWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestProcessRunImportsAndEnrollsMappedRows(t *testing.T) {
	startsAt := time.Date(2030, time.January, 7, 10, 0, 0, 0, time.UTC)
	occurrence := model.Occurrence{ID: "o1", CourseID: "c1", CourseName: "Intro A", StartsAt: startsAt}

	repo := newMemRepo()
	repo.courses = []model.Course{{ID: "c1", Name: "Intro A", IsActive: true}}
	repo.occurrences = []model.Occurrence{occurrence}

	data := studentWorkbook(t, [][]interface{}{
		{"Full Name", "Phone", "Birth Year", "Course", "Class Session"},
		{"Dana Cohen", "0501234567", "2012", "Intro A", occurrence.Label()},
	})
	w := testWorker(repo, &memStorage{data: data})

	job := model.ImportJob{RunID: "r1", TenantID: "t1", S3Path: "uploads/students.xlsx", FileName: "students.xlsx"}
	require.NoError(t, w.processRun(context.Background(), job))

	assert.Equal(t, []model.RunStatus{
		model.RunStatusProcessing,
		model.RunStatusImported,
		model.RunStatusEnrolled,
	}, repo.statuses)
	assert.Equal(t, []int{1, 1, 0, 0}, repo.counts)

	require.Len(t, repo.inserted, 1)
	studentID := repo.inserted[0].ID
	assert.Equal(t, "Dana", repo.inserted[0].FirstName)

	// The row's own course and session cells drove the enrollment.
	assert.Equal(t, []string{studentID}, repo.rosters[model.CourseTarget("c1")])
	assert.Equal(t, []string{studentID}, repo.rosters[model.OccurrenceTarget("o1")])
}

func TestProcessRunWithoutRelationalColumnsSkipsEnrollment(t *testing.T) {
	repo := newMemRepo()
	data := studentWorkbook(t, [][]interface{}{
		{"Full Name", "Phone", "Birth Year"},
		{"Dana Cohen", "0501234567", "2012"},
	})
	w := testWorker(repo, &memStorage{data: data})

	job := model.ImportJob{RunID: "r1", TenantID: "t1", S3Path: "uploads/students.xlsx", FileName: "students.xlsx"}
	require.NoError(t, w.processRun(context.Background(), job))

	assert.Equal(t, []model.RunStatus{
		model.RunStatusProcessing,
		model.RunStatusImported,
	}, repo.statuses)
	assert.Empty(t, repo.rosters)
}

func TestProcessRunMarksFailureEvenWhenStatusWriteFails(t *testing.T) {
	repo := newMemRepo()
	repo.statusErrs[model.RunStatusFailed] = stderrors.New("connection lost")
	w := testWorker(repo, &memStorage{err: stderrors.New("object missing")})

	job := model.ImportJob{RunID: "r1", TenantID: "t1", S3Path: "uploads/gone.xlsx", FileName: "gone.xlsx"}
	err := w.processRun(context.Background(), job)

	// The pipeline error is the one reported; the failed status write is
	// attempted and its own error only logged.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "downloading")
	assert.Equal(t, []model.RunStatus{
		model.RunStatusProcessing,
		model.RunStatusFailed,
	}, repo.statuses)
}
