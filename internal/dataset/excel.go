package dataset

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// ExcelNormalizer reads the first worksheet of an xlsx file. Row 1 is the
// header; everything below is data.
type ExcelNormalizer struct{}

func NewExcelNormalizer() *ExcelNormalizer {
	return &ExcelNormalizer{}
}

func (n *ExcelNormalizer) Normalize(ctx context.Context, fileName string, data []byte) (*model.ParsedDataset, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ErrInvalidFileFormat
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	if len(rows) == 0 {
		return nil, errors.ErrInvalidFileFormat
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	// Blank rows are kept so that a data row's slice index always lines up
	// with its spreadsheet position; downstream row references depend on it.
	var dataRows [][]model.Cell
	for _, row := range rows[1:] {
		cells := make([]model.Cell, len(row))
		for i, v := range row {
			cells[i] = model.Cell(v)
		}
		dataRows = append(dataRows, cells)
	}

	if len(dataRows) == 0 {
		return nil, errors.ErrEmptyDataset
	}

	return &model.ParsedDataset{
		FileName:  fileName,
		Headers:   headers,
		Rows:      dataRows,
		TotalRows: len(dataRows),
	}, nil
}
