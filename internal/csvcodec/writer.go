package csvcodec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sakashimaa/inventory-audit/internal/domain"
)

var exportHeader = []string{
	ColumnID,
	ColumnName,
	ColumnCategory,
	ColumnBrand,
	ColumnUnit,
	ColumnStock,
	ColumnStatus,
	ColumnImage,
}

// WriteProducts writes the catalog in a layout ReadProducts accepts, so an
// export can be re-imported.
func WriteProducts(w io.Writer, products []domain.Product) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("error writing csv header: %w", err)
	}

	for i := range products {
		p := &products[i]
		row := []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			p.Category,
			p.Brand,
			p.Unit,
			strconv.FormatInt(p.Stock, 10),
			p.Status(),
			p.Image,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing product %d: %w", p.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
