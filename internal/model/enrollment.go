package model

type TargetKind string

const (
	TargetCourse     TargetKind = "course"
	TargetOccurrence TargetKind = "occurrence"
)

// EnrollmentTarget is a destination a student can be enrolled into: a course
// or a single generated occurrence.
type EnrollmentTarget struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func CourseTarget(id string) EnrollmentTarget {
	return EnrollmentTarget{Kind: TargetCourse, ID: id}
}

func OccurrenceTarget(id string) EnrollmentTarget {
	return EnrollmentTarget{Kind: TargetOccurrence, ID: id}
}

type EnrollmentFailure struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	Reason      string `json:"reason"`
}

// TargetSummary is the per-target breakdown. Failed is bounded by the
// synchronizer to keep reporting compact.
type TargetSummary struct {
	Target          EnrollmentTarget    `json:"target"`
	TargetName      string              `json:"target_name,omitempty"`
	Successful      int                 `json:"successful"`
	AlreadyEnrolled int                 `json:"already_enrolled"`
	Failed          []EnrollmentFailure `json:"failed,omitempty"`
}

type EnrollmentReport struct {
	Successful      int                 `json:"successful_enrollments"`
	AlreadyEnrolled int                 `json:"already_enrolled"`
	Failed          []EnrollmentFailure `json:"failed,omitempty"`
	Details         []TargetSummary     `json:"details"`
}
