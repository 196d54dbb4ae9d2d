package importer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"

	"github.com/rs/zerolog"
)

const (
	minPhoneDigits = 9
	maxPhoneDigits = 15
	minBirthYear   = 1900
)

// ExistingIndex is a precomputed normalized-phone index over the existing
// active students of one tenant, used for duplicate detection.
type ExistingIndex struct {
	byPhone map[string]*model.Student
}

func NewExistingIndex(students []model.Student) *ExistingIndex {
	idx := &ExistingIndex{byPhone: make(map[string]*model.Student, len(students))}
	for i := range students {
		s := &students[i]
		if !s.IsActive {
			continue
		}
		if phone := digitsOnly(s.Phone); phone != "" {
			idx.byPhone[phone] = s
		}
	}
	return idx
}

// MatchPhone returns the existing student carrying the given normalized
// phone, or nil.
func (idx *ExistingIndex) MatchPhone(normalized string) *model.Student {
	if normalized == "" {
		return nil
	}
	return idx.byPhone[normalized]
}

// Validator extracts typed field values from dataset rows, enforces
// required-field and format rules, and classifies each row against the
// existing record set.
type Validator struct {
	mapping  *model.ColumnMapping
	existing *ExistingIndex
	now      func() time.Time
	log      zerolog.Logger
}

func NewValidator(mapping *model.ColumnMapping, existing *ExistingIndex) *Validator {
	if existing == nil {
		existing = NewExistingIndex(nil)
	}
	return &Validator{
		mapping:  mapping,
		existing: existing,
		now:      time.Now,
		log:      logger.Get(),
	}
}

// Validate classifies every row into exactly one of valid, invalid or
// duplicates. Any error forces invalid regardless of a duplicate match;
// a duplicate match alone never invalidates a row.
func (v *Validator) Validate(rows []model.SourceRow) *model.ValidationReport {
	report := &model.ValidationReport{TotalRows: len(rows)}

	for _, row := range rows {
		record := v.validateRow(row)
		switch {
		case len(record.Errors) > 0:
			report.Invalid = append(report.Invalid, record)
		case record.Duplicate != nil:
			report.Duplicates = append(report.Duplicates, record)
		default:
			report.Valid = append(report.Valid, record)
		}
	}

	v.log.Debug().
		Int("valid", len(report.Valid)).
		Int("invalid", len(report.Invalid)).
		Int("duplicates", len(report.Duplicates)).
		Msg("Rows classified")
	return report
}

func (v *Validator) validateRow(row model.SourceRow) model.RowRecord {
	record := model.RowRecord{Ref: row.Ref, Raw: row.Cells}

	v.extractName(row, &record)
	v.extractPhone(row, &record)
	v.extractBirthDate(row, &record)
	v.extractOptional(row, &record)
	v.extractCustomFields(row, &record)

	// Duplicate detection runs even for rows that already failed a check:
	// the warning is informational either way, but invalidity wins for
	// disposition.
	if existing := v.existing.MatchPhone(record.Extracted.Phone); existing != nil {
		record.Duplicate = existing
		record.Warnings = append(record.Warnings,
			fmt.Sprintf("phone matches existing student %s", existing.FullName()))
	}

	return record
}

func (v *Validator) extractName(row model.SourceRow, record *model.RowRecord) {
	col, ok := v.mapping.Column(model.FieldFullName)
	if !ok {
		record.Errors = append(record.Errors, "name column is not mapped")
		return
	}

	name := row.CellAt(col).Trimmed()
	if name == "" {
		record.Errors = append(record.Errors, "missing name")
		return
	}

	parts := strings.Fields(name)
	record.Extracted.FirstName = parts[0]
	if len(parts) > 1 {
		record.Extracted.LastName = strings.Join(parts[1:], " ")
	}
}

func (v *Validator) extractPhone(row model.SourceRow, record *model.RowRecord) {
	col, ok := v.mapping.Column(model.FieldPhone)
	if !ok {
		record.Errors = append(record.Errors, "phone column is not mapped")
		return
	}

	raw := row.CellAt(col).Trimmed()
	if raw == "" {
		record.Errors = append(record.Errors, "missing phone")
		return
	}

	phone := digitsOnly(raw)
	if len(phone) < minPhoneDigits || len(phone) > maxPhoneDigits {
		record.Errors = append(record.Errors, fmt.Sprintf("invalid phone number: %s", raw))
		return
	}
	record.Extracted.Phone = phone
}

func (v *Validator) extractBirthDate(row model.SourceRow, record *model.RowRecord) {
	col, ok := v.mapping.Column(model.FieldBirthYear)
	if !ok {
		record.Errors = append(record.Errors, "birth year column is not mapped")
		return
	}

	raw := row.CellAt(col).Trimmed()
	if raw == "" {
		record.Errors = append(record.Errors, "missing birth year")
		return
	}

	year, err := strconv.Atoi(raw)
	if err != nil {
		record.Errors = append(record.Errors, fmt.Sprintf("invalid birth year: %s", raw))
		return
	}
	if year < minBirthYear || year > v.now().Year() {
		record.Errors = append(record.Errors, fmt.Sprintf("birth year out of range: %d", year))
		return
	}

	// Year-only input maps to January 1st of that year.
	date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	record.Extracted.BirthDate = &date
}

func (v *Validator) extractOptional(row model.SourceRow, record *model.RowRecord) {
	if col, ok := v.mapping.Column(model.FieldSecondaryPhone); ok {
		if raw := row.CellAt(col).Trimmed(); raw != "" {
			phone := digitsOnly(raw)
			if len(phone) >= minPhoneDigits && len(phone) <= maxPhoneDigits {
				record.Extracted.SecondaryPhone = phone
			} else {
				record.Warnings = append(record.Warnings, fmt.Sprintf("invalid secondary phone dropped: %s", raw))
			}
		}
	}

	if col, ok := v.mapping.Column(model.FieldEmail); ok {
		record.Extracted.Email = row.CellAt(col).Trimmed()
	}

	if col, ok := v.mapping.Column(model.FieldNotes); ok {
		record.Extracted.Notes = row.CellAt(col).Trimmed()
	}

	if col, ok := v.mapping.Column(model.FieldPhotoURL); ok {
		if raw := row.CellAt(col).Trimmed(); raw != "" {
			if isHTTPURL(raw) {
				record.Extracted.PhotoURL = raw
			} else {
				record.Warnings = append(record.Warnings, fmt.Sprintf("photo URL dropped, not http(s): %s", raw))
			}
		}
	}
}

func (v *Validator) extractCustomFields(row model.SourceRow, record *model.RowRecord) {
	if len(v.mapping.CustomFields) == 0 {
		return
	}
	record.Extracted.CustomFields = make(map[string]interface{}, len(v.mapping.CustomFields))
	for name, col := range v.mapping.CustomFields {
		if raw := row.CellAt(col).Trimmed(); raw != "" {
			record.Extracted.CustomFields[name] = coerceValue(raw)
		}
	}
}

// coerceValue applies best-effort typing to a custom field value: boolean
// tokens first, then numbers, else the string itself. The recognized token
// set is the English true/yes/y and false/no/n, case-insensitive; "1" and
// "0" deliberately fall through to the numeric branch. Other locales keep
// their cell text as a plain string rather than guessing.
func coerceValue(raw string) interface{} {
	switch strings.ToLower(raw) {
	case "true", "yes", "y":
		return true
	case "false", "no", "n":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
