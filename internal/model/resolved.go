package model

import "fmt"

type ResolutionKind int

const (
	// ResolutionNone is the zero value: no decision exists for the raw value.
	ResolutionNone ResolutionKind = iota
	ResolutionResolved
	ResolutionSkipped
	ResolutionCreate
)

// ResolvedValue is the decision attached to one raw file value of a
// relational field. The tagged form makes the unsupported create path a
// checkable case instead of a sentinel string mixed in with real ids.
type ResolvedValue struct {
	Kind ResolutionKind
	ID   string
}

func Resolved(id string) ResolvedValue {
	return ResolvedValue{Kind: ResolutionResolved, ID: id}
}

func Skipped() ResolvedValue {
	return ResolvedValue{Kind: ResolutionSkipped}
}

func CreateRequested() ResolvedValue {
	return ResolvedValue{Kind: ResolutionCreate}
}

func (v ResolvedValue) IsResolved() bool {
	return v.Kind == ResolutionResolved
}

func (v ResolvedValue) IsSkipped() bool {
	return v.Kind == ResolutionSkipped
}

func (v ResolvedValue) IsZero() bool {
	return v.Kind == ResolutionNone
}

func (v ResolvedValue) String() string {
	switch v.Kind {
	case ResolutionResolved:
		return fmt.Sprintf("resolved(%s)", v.ID)
	case ResolutionSkipped:
		return "skipped"
	case ResolutionCreate:
		return "create-requested"
	default:
		return "unresolved"
	}
}

// SystemOption is a lightweight projection of a system entity used for
// matching and display. Original retains attributes needed by filter
// predicates, e.g. the parent id of a dependent option.
type SystemOption struct {
	ID       string
	Name     string
	Original map[string]interface{}
}

// Attr returns a string attribute from the retained original record.
func (o SystemOption) Attr(key string) string {
	if o.Original == nil {
		return ""
	}
	switch v := o.Original[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}
