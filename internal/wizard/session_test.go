package wizard

import (
	"context"
	"testing"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/resolve"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainFields() []model.FieldDescriptor {
	return []model.FieldDescriptor{
		{Key: model.FieldFullName, Label: "Full Name", Required: true},
		{Key: model.FieldPhone, Label: "Phone", Required: true},
		{Key: model.FieldBirthYear, Label: "Birth Year", Required: true},
	}
}

func relationalFields() []model.FieldDescriptor {
	return append(plainFields(), model.FieldDescriptor{
		Key: model.FieldCourse, Label: "Course",
		Relational: &model.RelationalFieldConfig{Entity: model.EntityCourse, Separator: ","},
	})
}

func sampleDataset() *model.ParsedDataset {
	return &model.ParsedDataset{
		FileName:  "students.xlsx",
		Headers:   []string{"Full Name", "Phone", "Birth Year", "Course"},
		Rows:      [][]model.Cell{{"Dana Cohen", "0501234567", "2012", "Intro A"}},
		TotalRows: 1,
	}
}

func mapRequired(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SetColumn(model.FieldFullName, 0))
	require.NoError(t, s.SetColumn(model.FieldPhone, 1))
	require.NoError(t, s.SetColumn(model.FieldBirthYear, 2))
}

func validReport() *model.ValidationReport {
	return &model.ValidationReport{
		Valid:     []model.RowRecord{{Ref: model.NewRowRef(0)}},
		TotalRows: 1,
	}
}

func TestAdvanceGates(t *testing.T) {
	s := NewSession("t1", plainFields(), nil)

	// Upload requires a dataset.
	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())
	assert.Equal(t, StepColumnMapping, s.Step())

	// Column mapping requires every required field.
	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)
	mapRequired(t, s)
	require.NoError(t, s.Advance())

	// No relational fields: value mapping is skipped.
	assert.Equal(t, StepValidation, s.Step())

	// Validation requires a report with at least one importable row.
	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)
	s.SetValidationReport(&model.ValidationReport{
		Invalid:   []model.RowRecord{{Ref: model.NewRowRef(0)}},
		TotalRows: 1,
	})
	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)

	s.SetValidationReport(validReport())
	require.NoError(t, s.Advance())
	assert.Equal(t, StepImport, s.Step())
}

func TestAdvanceThroughValueMapping(t *testing.T) {
	s := NewSession("t1", relationalFields(), nil)
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())
	mapRequired(t, s)

	require.NoError(t, s.Advance())
	assert.Equal(t, StepValueMapping, s.Step())
	require.NoError(t, s.Advance())
	assert.Equal(t, StepValidation, s.Step())
}

func TestImportIsTerminalWithoutEnrollment(t *testing.T) {
	s := NewSession("t1", plainFields(), nil)
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())
	mapRequired(t, s)
	require.NoError(t, s.Advance())
	s.SetValidationReport(validReport())
	require.NoError(t, s.Advance())

	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)
	assert.ErrorIs(t, s.Back(), errors.ErrTerminalStep)
}

func TestEnrollmentFlow(t *testing.T) {
	s := NewSession("t1", plainFields(), nil, WithEnrollment())
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())
	mapRequired(t, s)
	require.NoError(t, s.Advance())
	s.SetValidationReport(validReport())
	require.NoError(t, s.Advance())

	// Enrollment is reachable only after the import executed.
	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)
	s.SetImportResult(&model.ImportResult{}, nil)
	require.NoError(t, s.Advance())
	assert.Equal(t, StepEnrollment, s.Step())

	assert.ErrorIs(t, s.Advance(), errors.ErrStepGateFailed)
	assert.ErrorIs(t, s.Back(), errors.ErrTerminalStep)
}

func TestBackDiscardsValidationReport(t *testing.T) {
	s := NewSession("t1", plainFields(), nil)
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())
	mapRequired(t, s)
	require.NoError(t, s.Advance())
	s.SetValidationReport(validReport())

	require.NoError(t, s.Back())
	assert.Equal(t, StepColumnMapping, s.Step())
	assert.Nil(t, s.Report(), "stage output behind the new position is discarded")
	assert.True(t, s.Mapping().IsMapped(model.FieldFullName), "upstream choices survive")

	require.NoError(t, s.Back())
	assert.Equal(t, StepUpload, s.Step())
	assert.ErrorIs(t, s.Back(), errors.ErrStepGateFailed)
	assert.NotNil(t, s.Dataset())
}

func TestSetDatasetOnlyAtUpload(t *testing.T) {
	s := NewSession("t1", plainFields(), nil)
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())

	assert.ErrorIs(t, s.SetDataset(sampleDataset()), errors.ErrStepGateFailed)
}

func TestSetDatasetRejectsEmpty(t *testing.T) {
	s := NewSession("t1", plainFields(), nil)
	err := s.SetDataset(&model.ParsedDataset{Headers: []string{"Name"}})
	assert.ErrorIs(t, err, errors.ErrEmptyDataset)
}

type stubSource struct{}

func (stubSource) List(_ context.Context, _, _ string) ([]model.SystemOption, error) {
	return []model.SystemOption{{ID: "c1", Name: "Intro A"}}, nil
}

func TestSetColumnInvalidatesResolverField(t *testing.T) {
	fields := relationalFields()
	resolver := resolve.New("t1", fields, stubSource{}, nil)
	require.NoError(t, resolver.LoadOptions(context.Background()))

	s := NewSession("t1", fields, resolver)
	require.NoError(t, s.SetDataset(sampleDataset()))
	require.NoError(t, s.Advance())
	mapRequired(t, s)
	require.NoError(t, s.SetColumn(model.FieldCourse, 3))
	require.NoError(t, resolver.AutoMatch(context.Background(), s.Dataset(), s.Mapping()))

	_, ok := resolver.Value(model.FieldCourse, "Intro A")
	require.True(t, ok)

	// Re-pointing the relational column drops its cached auto-matches.
	require.NoError(t, s.SetColumn(model.FieldCourse, 2))
	_, ok = resolver.Value(model.FieldCourse, "Intro A")
	assert.False(t, ok)

	assert.ErrorIs(t, s.SetColumn("bogus", 0), errors.ErrUnknownField)
}
