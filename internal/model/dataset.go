package model

import "strings"

// Cell is a single spreadsheet value. The normalizer flattens every scalar
// to its string form; typed interpretation happens during extraction.
type Cell string

func (c Cell) String() string {
	return string(c)
}

func (c Cell) Trimmed() string {
	return strings.TrimSpace(string(c))
}

func (c Cell) IsEmpty() bool {
	return c.Trimmed() == ""
}

// RowRef pairs a row's position in the data slice with the row number a user
// sees in the spreadsheet (header is row 1, so data row 0 displays as 2).
// Computed once at ingestion and carried through every downstream structure.
type RowRef struct {
	SourceIndex   int `json:"source_index"`
	DisplayNumber int `json:"display_number"`
}

func NewRowRef(sourceIndex int) RowRef {
	return RowRef{SourceIndex: sourceIndex, DisplayNumber: sourceIndex + 2}
}

// ParsedDataset is the normalized form of an uploaded spreadsheet.
// Immutable once produced.
type ParsedDataset struct {
	FileName  string
	Headers   []string
	Rows      [][]Cell
	TotalRows int
}

// CellAt is bounds-safe: ragged rows read as empty cells.
func (d *ParsedDataset) CellAt(row, col int) Cell {
	if row < 0 || row >= len(d.Rows) || col < 0 {
		return ""
	}
	r := d.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// SourceRow carries one dataset row together with its stable reference.
type SourceRow struct {
	Ref   RowRef
	Cells []Cell
}

func (r SourceRow) CellAt(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// SourceRows materializes the dataset rows with their references attached.
func (d *ParsedDataset) SourceRows() []SourceRow {
	rows := make([]SourceRow, len(d.Rows))
	for i, cells := range d.Rows {
		rows[i] = SourceRow{Ref: NewRowRef(i), Cells: cells}
	}
	return rows
}
