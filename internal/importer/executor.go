package importer

import (
	"context"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultBatchSize = 10

// StudentStore is the narrow persistence surface the executor writes through.
type StudentStore interface {
	InsertStudent(ctx context.Context, s *model.Student) error
	UpdateStudent(ctx context.Context, s *model.Student) error
}

// Progress reports (processed, total) after each batch.
type Progress func(processed, total int)

// Executor persists classified rows in fixed-size sequential batches.
// A row failure never aborts its batch or the remaining batches.
type Executor struct {
	store      StudentStore
	batchSize  int
	batchDelay time.Duration
	now        func() time.Time
	newID      func() string
	log        zerolog.Logger
}

type ExecutorOption func(*Executor)

func WithBatchSize(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithBatchDelay inserts a cooperative pause between batches. Zero disables
// it; correctness never depends on it.
func WithBatchDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.batchDelay = d }
}

func NewExecutor(store StudentStore, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:     store,
		batchSize: defaultBatchSize,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		log:       logger.Get(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type workItem struct {
	record model.RowRecord
	update bool
}

// Execute imports the valid rows plus the duplicate rows the caller decided
// to update. Duplicate rows without an update decision are not imported;
// they come back as skipped duplicates, still eligible for enrollment as
// pre-existing students.
func (e *Executor) Execute(
	ctx context.Context,
	tenantID string,
	valid []model.RowRecord,
	duplicates []model.RowRecord,
	decisions map[int]model.DuplicateDecision,
	progress Progress,
) (*model.ImportResult, []model.RowRecord) {
	items := make([]workItem, 0, len(valid)+len(duplicates))
	var skipped []model.RowRecord

	for _, record := range valid {
		items = append(items, workItem{record: record})
	}
	for _, record := range duplicates {
		if decisions[record.Ref.SourceIndex] == model.DuplicateUpdate {
			items = append(items, workItem{record: record, update: true})
		} else {
			skipped = append(skipped, record)
		}
	}

	result := &model.ImportResult{}
	total := len(items)
	processed := 0

	for start := 0; start < total; start += e.batchSize {
		end := start + e.batchSize
		if end > total {
			end = total
		}

		for _, item := range items[start:end] {
			e.processRow(ctx, tenantID, item, result)
			processed++
		}

		if progress != nil {
			progress(processed, total)
		}
		if e.batchDelay > 0 && end < total {
			time.Sleep(e.batchDelay)
		}
	}

	created, updated, failed := result.Counts()
	e.log.Info().
		Int("created", created).
		Int("updated", updated).
		Int("failed", failed).
		Int("skipped_duplicates", len(skipped)).
		Msg("Import executed")
	return result, skipped
}

func (e *Executor) processRow(ctx context.Context, tenantID string, item workItem, result *model.ImportResult) {
	if item.update {
		student := applyExtracted(item.record.Duplicate, item.record.Extracted, e.now())
		if err := e.store.UpdateStudent(ctx, student); err != nil {
			e.log.Error().Err(err).Int("row", item.record.Ref.DisplayNumber).Msg("Failed to update student")
			result.Failed = append(result.Failed, model.RowOutcome{Record: item.record, Err: err.Error()})
			return
		}
		result.Updated = append(result.Updated, model.RowOutcome{Record: item.record, StudentID: student.ID})
		return
	}

	student := newStudent(tenantID, item.record.Extracted, e.newID(), e.now())
	if err := e.store.InsertStudent(ctx, student); err != nil {
		e.log.Error().Err(err).Int("row", item.record.Ref.DisplayNumber).Msg("Failed to insert student")
		result.Failed = append(result.Failed, model.RowOutcome{Record: item.record, Err: err.Error()})
		return
	}
	result.Created = append(result.Created, model.RowOutcome{Record: item.record, StudentID: student.ID})
}

func newStudent(tenantID string, ex model.ExtractedStudent, id string, now time.Time) *model.Student {
	return &model.Student{
		ID:             id,
		TenantID:       tenantID,
		FirstName:      ex.FirstName,
		LastName:       ex.LastName,
		Phone:          ex.Phone,
		SecondaryPhone: ex.SecondaryPhone,
		Email:          ex.Email,
		PhotoURL:       ex.PhotoURL,
		Notes:          ex.Notes,
		BirthDate:      ex.BirthDate,
		CustomFields:   ex.CustomFields,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// applyExtracted overwrites the mutable fields of an existing student while
// preserving its identity and original creation timestamp.
func applyExtracted(existing *model.Student, ex model.ExtractedStudent, now time.Time) *model.Student {
	updated := *existing
	updated.FirstName = ex.FirstName
	updated.LastName = ex.LastName
	updated.Phone = ex.Phone
	if ex.SecondaryPhone != "" {
		updated.SecondaryPhone = ex.SecondaryPhone
	}
	if ex.Email != "" {
		updated.Email = ex.Email
	}
	if ex.PhotoURL != "" {
		updated.PhotoURL = ex.PhotoURL
	}
	if ex.Notes != "" {
		updated.Notes = ex.Notes
	}
	if ex.BirthDate != nil {
		updated.BirthDate = ex.BirthDate
	}
	if len(ex.CustomFields) > 0 {
		merged := make(map[string]interface{}, len(existing.CustomFields)+len(ex.CustomFields))
		for k, val := range existing.CustomFields {
			merged[k] = val
		}
		for k, val := range ex.CustomFields {
			merged[k] = val
		}
		updated.CustomFields = merged
	}
	updated.UpdatedAt = now
	return &updated
}
