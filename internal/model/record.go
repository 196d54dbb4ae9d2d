package model

// RowRecord is the per-row artifact produced by validation. Immutable once
// classified: it lands in exactly one of the report's three buckets.
type RowRecord struct {
	Ref       RowRef
	Raw       []Cell
	Extracted ExtractedStudent
	Errors    []string
	Warnings  []string
	// Duplicate references the pre-existing student whose normalized phone
	// matches this row. Informational: a duplicate row is never invalid on
	// that account alone.
	Duplicate *Student
}

func (r RowRecord) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidationReport partitions the dataset rows. The buckets are disjoint and
// their sizes sum to TotalRows.
type ValidationReport struct {
	Valid      []RowRecord
	Invalid    []RowRecord
	Duplicates []RowRecord
	TotalRows  int
}

// DuplicateDecision is the caller's per-row arbitration for duplicate rows.
type DuplicateDecision int

const (
	DuplicateSkip DuplicateDecision = iota
	DuplicateUpdate
)

// RowOutcome records what the executor did with one row.
type RowOutcome struct {
	Record    RowRecord
	StudentID string
	Err       string
}

// ImportResult is produced once by the executor and never mutated afterward.
type ImportResult struct {
	Created []RowOutcome
	Updated []RowOutcome
	Failed  []RowOutcome
}

func (r *ImportResult) Counts() (created, updated, failed int) {
	return len(r.Created), len(r.Updated), len(r.Failed)
}
