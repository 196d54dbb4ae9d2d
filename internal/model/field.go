package model

// Student import field keys.
const (
	FieldFullName       = "fullName"
	FieldPhone          = "phone"
	FieldBirthYear      = "birthYear"
	FieldSecondaryPhone = "secondaryPhone"
	FieldEmail          = "email"
	FieldPhotoURL       = "photoUrl"
	FieldNotes          = "notes"
	FieldBranch         = "branch"
	FieldCourse         = "course"
	FieldOccurrence     = "occurrence"
)

// Lookup entity names served by option sources.
const (
	EntityBranch     = "branch"
	EntityCourse     = "course"
	EntityOccurrence = "occurrence"
)

// RelationalFieldConfig declares how raw file text for a reference field is
// resolved against system entities.
type RelationalFieldConfig struct {
	// Entity names the lookup source (course, branch, occurrence).
	Entity string
	// Separator, when set, splits a cell into multiple raw values.
	Separator string
	// DependsOn names the parent field whose resolved id narrows this
	// field's option set. ParentAttr is the option attribute holding the
	// parent's id.
	DependsOn  string
	ParentAttr string
	// Remote marks option sets too large to bulk-load; resolution goes
	// through on-demand search instead.
	Remote bool
}

type FieldDescriptor struct {
	Key      string
	Label    string
	Aliases  []string
	Required bool
	// Relational is nil for plain value fields.
	Relational *RelationalFieldConfig
}

// StudentImportFields is the descriptor set driving the student import wizard.
func StudentImportFields() []FieldDescriptor {
	return []FieldDescriptor{
		{Key: FieldFullName, Label: "Full Name", Aliases: []string{"name", "student name", "full name"}, Required: true},
		{Key: FieldPhone, Label: "Phone", Aliases: []string{"phone number", "mobile", "cell"}, Required: true},
		{Key: FieldBirthYear, Label: "Birth Year", Aliases: []string{"year of birth", "birth year", "born"}, Required: true},
		{Key: FieldSecondaryPhone, Label: "Secondary Phone", Aliases: []string{"phone 2", "parent phone"}},
		{Key: FieldEmail, Label: "Email", Aliases: []string{"email address", "mail"}},
		{Key: FieldPhotoURL, Label: "Photo", Aliases: []string{"photo url", "picture", "image"}},
		{Key: FieldNotes, Label: "Notes", Aliases: []string{"comments", "remarks"}},
		{Key: FieldBranch, Label: "Branch", Aliases: []string{"location", "site"},
			Relational: &RelationalFieldConfig{Entity: EntityBranch}},
		{Key: FieldCourse, Label: "Course", Aliases: []string{"courses", "class", "group"},
			Relational: &RelationalFieldConfig{Entity: EntityCourse, Separator: ","}},
		{Key: FieldOccurrence, Label: "Class Session", Aliases: []string{"session", "lesson"},
			Relational: &RelationalFieldConfig{Entity: EntityOccurrence, DependsOn: FieldCourse, ParentAttr: "courseId"}},
	}
}

// ColumnMapping assigns logical field keys to dataset column indices.
// Absence of a key means the field is unmapped. CustomFields carries
// user-defined extra attributes by display name.
type ColumnMapping struct {
	Fields       map[string]int
	CustomFields map[string]int
}

func NewColumnMapping() *ColumnMapping {
	return &ColumnMapping{
		Fields:       make(map[string]int),
		CustomFields: make(map[string]int),
	}
}

func (m *ColumnMapping) Column(key string) (int, bool) {
	col, ok := m.Fields[key]
	return col, ok
}

func (m *ColumnMapping) IsMapped(key string) bool {
	_, ok := m.Fields[key]
	return ok
}

func (m *ColumnMapping) Set(key string, col int) {
	m.Fields[key] = col
}

func (m *ColumnMapping) Unset(key string) {
	delete(m.Fields, key)
}

// MissingRequired lists required descriptor keys with no column assigned.
func (m *ColumnMapping) MissingRequired(fields []FieldDescriptor) []string {
	var missing []string
	for _, f := range fields {
		if f.Required && !m.IsMapped(f.Key) {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// HasRelational reports whether any relational descriptor field is mapped.
func (m *ColumnMapping) HasRelational(fields []FieldDescriptor) bool {
	for _, f := range fields {
		if f.Relational != nil && m.IsMapped(f.Key) {
			return true
		}
	}
	return false
}
