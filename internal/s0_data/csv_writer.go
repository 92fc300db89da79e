package s0_data

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

// yahooColumns is the header order written for price files.
var yahooColumns = []string{
	contracts.ColumnOpen,
	contracts.ColumnHigh,
	contracts.ColumnLow,
	contracts.ColumnClose,
	contracts.ColumnAdjClose,
	contracts.ColumnVolume,
}

// WritePriceCSV writes table as <dir>/<code>.csv in the Yahoo Finance layout.
// Missing values are written as "null".
func WritePriceCSV(dir string, table *contracts.PriceTable) (string, error) {
	if err := table.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create price dir: %w", err)
	}

	path := filepath.Join(dir, table.Code+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cols := make([]string, 0, len(yahooColumns))
	for _, c := range yahooColumns {
		if _, ok := table.Columns[c]; ok {
			cols = append(cols, c)
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{contracts.ColumnDate}, cols...)); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(cols)+1)
	for i, date := range table.Dates {
		record[0] = date
		for j, c := range cols {
			record[j+1] = formatCell(table.Columns[c][i])
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	return path, nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "null"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
