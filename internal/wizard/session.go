package wizard

import (
	"fmt"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/resolve"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Step int

const (
	StepUpload Step = iota
	StepColumnMapping
	StepValueMapping
	StepValidation
	StepImport
	StepEnrollment
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepColumnMapping:
		return "column_mapping"
	case StepValueMapping:
		return "value_mapping"
	case StepValidation:
		return "validation"
	case StepImport:
		return "import"
	case StepEnrollment:
		return "enrollment"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Session owns all wizard state for one import: the dataset, the mappings,
// the resolver caches, and the stage outputs. Owned by the caller and passed
// into each component; nothing here is process-wide.
type Session struct {
	ID       uuid.UUID
	TenantID string

	fields         []model.FieldDescriptor
	withEnrollment bool

	step        Step
	dataset     *model.ParsedDataset
	mapping     *model.ColumnMapping
	autoMatched []string
	resolver    *resolve.Resolver

	report            *model.ValidationReport
	result            *model.ImportResult
	skippedDuplicates []model.RowRecord
	enrollment        *model.EnrollmentReport

	log zerolog.Logger
}

type SessionOption func(*Session)

// WithEnrollment enables the terminal enrollment sub-flow; it is entered
// only from the dedicated import surface, not the generic importer.
func WithEnrollment() SessionOption {
	return func(s *Session) { s.withEnrollment = true }
}

func NewSession(tenantID string, fields []model.FieldDescriptor, resolver *resolve.Resolver, opts ...SessionOption) *Session {
	s := &Session{
		ID:       uuid.New(),
		TenantID: tenantID,
		fields:   fields,
		step:     StepUpload,
		mapping:  model.NewColumnMapping(),
		resolver: resolver,
		log:      logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Step() Step                      { return s.step }
func (s *Session) Dataset() *model.ParsedDataset   { return s.dataset }
func (s *Session) Mapping() *model.ColumnMapping   { return s.mapping }
func (s *Session) AutoMatched() []string           { return s.autoMatched }
func (s *Session) Resolver() *resolve.Resolver     { return s.resolver }
func (s *Session) Report() *model.ValidationReport { return s.report }
func (s *Session) Result() *model.ImportResult     { return s.result }
func (s *Session) Skipped() []model.RowRecord      { return s.skippedDuplicates }
func (s *Session) Fields() []model.FieldDescriptor { return s.fields }
func (s *Session) Enrollment() *model.EnrollmentReport {
	return s.enrollment
}

// SetDataset attaches the normalized upload. Allowed only at the upload step.
func (s *Session) SetDataset(ds *model.ParsedDataset) error {
	if s.step != StepUpload {
		return fmt.Errorf("%w: dataset can only be set at the upload step", errors.ErrStepGateFailed)
	}
	if ds == nil || ds.TotalRows == 0 {
		return errors.ErrEmptyDataset
	}
	s.dataset = ds
	return nil
}

// SetAutoMatched records the matcher's initial assignment.
func (s *Session) SetAutoMatched(keys []string) {
	s.autoMatched = keys
}

// SetColumn records a user mapping choice. Changing a relational field's
// column invalidates that field's cached value-mapping auto-matches.
func (s *Session) SetColumn(key string, col int) error {
	field, ok := s.fieldByKey(key)
	if !ok {
		return errors.ErrUnknownField
	}

	prev, had := s.mapping.Column(key)
	s.mapping.Set(key, col)

	if field.Relational != nil && had && prev != col && s.resolver != nil {
		s.resolver.InvalidateField(key)
	}
	return nil
}

// SetCustomColumn maps a user-defined extra attribute to a column.
func (s *Session) SetCustomColumn(name string, col int) {
	s.mapping.CustomFields[name] = col
}

func (s *Session) SetValidationReport(report *model.ValidationReport) {
	s.report = report
}

func (s *Session) SetImportResult(result *model.ImportResult, skipped []model.RowRecord) {
	s.result = result
	s.skippedDuplicates = skipped
}

func (s *Session) SetEnrollmentReport(report *model.EnrollmentReport) {
	s.enrollment = report
}

func (s *Session) hasRelationalFields() bool {
	for _, f := range s.fields {
		if f.Relational != nil {
			return true
		}
	}
	return false
}

func (s *Session) fieldByKey(key string) (model.FieldDescriptor, bool) {
	for _, f := range s.fields {
		if f.Key == key {
			return f, true
		}
	}
	return model.FieldDescriptor{}, false
}

// Advance moves to the next step if the current step's gate passes.
func (s *Session) Advance() error {
	switch s.step {
	case StepUpload:
		if s.dataset == nil {
			return fmt.Errorf("%w: no dataset uploaded", errors.ErrStepGateFailed)
		}
		s.step = StepColumnMapping

	case StepColumnMapping:
		if missing := s.mapping.MissingRequired(s.fields); len(missing) > 0 {
			return fmt.Errorf("%w: required fields not mapped: %v", errors.ErrStepGateFailed, missing)
		}
		if s.hasRelationalFields() {
			s.step = StepValueMapping
		} else {
			s.step = StepValidation
		}

	case StepValueMapping:
		s.step = StepValidation

	case StepValidation:
		if s.report == nil {
			return fmt.Errorf("%w: rows have not been validated", errors.ErrStepGateFailed)
		}
		if len(s.report.Valid)+len(s.report.Duplicates) == 0 {
			return fmt.Errorf("%w: no importable rows", errors.ErrStepGateFailed)
		}
		s.step = StepImport

	case StepImport:
		if !s.withEnrollment {
			return fmt.Errorf("%w: import is the final step of this flow", errors.ErrStepGateFailed)
		}
		if s.result == nil {
			return fmt.Errorf("%w: import has not been executed", errors.ErrStepGateFailed)
		}
		s.step = StepEnrollment

	case StepEnrollment:
		return fmt.Errorf("%w: enrollment is the final step", errors.ErrStepGateFailed)
	}

	s.log.Debug().Str("step", s.step.String()).Msg("Wizard advanced")
	return nil
}

// Back navigates one step backward. Upstream data (dataset, mappings, value
// decisions) is kept; downstream artifacts are discarded so they get
// recomputed on the way forward. The two terminal states allow no return.
func (s *Session) Back() error {
	switch s.step {
	case StepUpload:
		return fmt.Errorf("%w: already at the first step", errors.ErrStepGateFailed)
	case StepImport, StepEnrollment:
		return errors.ErrTerminalStep

	case StepColumnMapping:
		s.step = StepUpload

	case StepValueMapping:
		s.report = nil
		s.step = StepColumnMapping

	case StepValidation:
		s.report = nil
		if s.hasRelationalFields() {
			s.step = StepValueMapping
		} else {
			s.step = StepColumnMapping
		}
	}

	s.log.Debug().Str("step", s.step.String()).Msg("Wizard stepped back")
	return nil
}
