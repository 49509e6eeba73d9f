package invoice

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/meligy89/invoice-app/internal/parsing"
)

// csvHeader is the column layout of the item table export.
var csvHeader = []string{"name", "quantity", "unit_price", "total_price"}

// writeItemsCSV renders the item table as CSV, amounts fixed to two decimal
// places.
func writeItemsCSV(items []parsing.Item) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, item := range items {
		row := []string{
			item.Name,
			strconv.Itoa(item.Quantity),
			item.UnitPrice.StringFixed(2),
			item.TotalPrice.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
