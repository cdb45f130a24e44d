// Package csvcodec converts between catalog CSV files and domain records.
package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sakashimaa/inventory-audit/internal/domain"
)

const (
	ColumnID       = "id"
	ColumnName     = "name"
	ColumnCategory = "category"
	ColumnBrand    = "brand"
	ColumnUnit     = "unit"
	ColumnStock    = "stock"
	ColumnStatus   = "status"
	ColumnImage    = "image"
)

const byteOrderMark = "\ufeff"

// ReadProducts parses a whole import file before anything is applied. The
// first row is the header; columns are matched by name, case-insensitively,
// and unknown columns are ignored. Structural problems (no header, no name
// column, broken quoting) fail with domain.ErrMalformedInput. Rows shorter
// than the header read the missing cells as empty.
func ReadProducts(r io.Reader) ([]domain.RawProductRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}

	index := make(map[string]int, len(header))
	for i, column := range header {
		if i == 0 {
			column = strings.TrimPrefix(column, byteOrderMark)
		}
		column = strings.ToLower(strings.TrimSpace(column))
		if _, dup := index[column]; !dup {
			index[column] = i
		}
	}

	if _, ok := index[ColumnName]; !ok {
		return nil, fmt.Errorf("%w: header has no %q column", domain.ErrMalformedInput, ColumnName)
	}

	cell := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]domain.RawProductRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}

		line, _ := reader.FieldPos(0)

		records = append(records, domain.RawProductRecord{
			Line:     line,
			Name:     cell(row, ColumnName),
			Category: cell(row, ColumnCategory),
			Brand:    cell(row, ColumnBrand),
			Unit:     cell(row, ColumnUnit),
			Stock:    cell(row, ColumnStock),
			Image:    cell(row, ColumnImage),
		})
	}

	return records, nil
}
