package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// CSVSource reads one CSV file per instrument from a directory.
// The filename stem is the instrument code.
// ⭐ SSOT: 파일 기반 시세 소스
type CSVSource struct {
	dir    string
	ext    string
	logger *logger.Logger
}

// NewCSVSource creates a source over dir/*.ext
func NewCSVSource(dir, ext string, log *logger.Logger) *CSVSource {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "csv"
	}
	return &CSVSource{dir: dir, ext: ext, logger: log}
}

// Codes lists the instrument codes found in the directory, sorted
func (s *CSVSource) Codes(ctx context.Context) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*."+s.ext))
	if err != nil {
		return nil, fmt.Errorf("glob price files: %w", err)
	}

	codes := make([]string, 0, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		codes = append(codes, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	sort.Strings(codes)

	s.logger.WithFields(map[string]interface{}{
		"dir":   s.dir,
		"count": len(codes),
	}).Debug("Discovered price files")

	return codes, nil
}

// Load reads <dir>/<code>.<ext>
func (s *CSVSource) Load(ctx context.Context, code string) (*contracts.PriceTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.path(code)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	table, gaps, err := readPriceCSV(code, f)
	if err != nil {
		return nil, err
	}
	if gaps > 0 {
		s.logger.WithFields(map[string]interface{}{
			"code":  code,
			"cells": gaps,
		}).Warn("Unparseable price cells treated as gaps")
	}

	s.logger.WithFields(map[string]interface{}{
		"code":    code,
		"rows":    table.Len(),
		"columns": table.ColumnNames(),
	}).Debug("Loaded price file")

	return table, nil
}

func (s *CSVSource) path(code string) string {
	return filepath.Join(s.dir, code+"."+s.ext)
}

// ReadPriceCSV parses a CSV with a Date column and numeric value columns.
// Empty, "null" and "NaN" cells become NaN. A column whose first data row is
// non-numeric text is dropped; a later unparseable cell in a numeric column
// becomes NaN.
func ReadPriceCSV(code string, r io.Reader) (*contracts.PriceTable, error) {
	table, _, err := readPriceCSV(code, r)
	return table, err
}

// readPriceCSV also reports how many numeric cells could not be parsed
func readPriceCSV(code string, r io.Reader) (*contracts.PriceTable, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, &contracts.FormatError{Code: code, Reason: "empty file"}
		}
		return nil, 0, fmt.Errorf("read header [%s]: %w", code, err)
	}

	dateIdx := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if strings.EqualFold(h, contracts.ColumnDate) {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, 0, &contracts.FormatError{
			Code:   code,
			Value:  strings.Join(header, ","),
			Reason: "no Date column",
		}
	}

	table := contracts.NewPriceTable(code)
	values := make([][]float64, len(header))
	numeric := make([]bool, len(header))
	for i := range numeric {
		numeric[i] = i != dateIdx && header[i] != ""
	}

	line := 1
	gaps := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, 0, fmt.Errorf("read %s line %d: %w", code, line, err)
		}
		if len(record) <= dateIdx {
			return nil, 0, &contracts.FormatError{Code: code, Value: strings.Join(record, ","), Reason: fmt.Sprintf("line %d has no date", line)}
		}

		table.Dates = append(table.Dates, strings.TrimSpace(record[dateIdx]))
		for i := range header {
			if !numeric[i] {
				continue
			}
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			v, ok := parseCell(cell)
			if !ok {
				// 첫 행이 텍스트면 텍스트 컬럼, 이후 셀은 결측 처리
				if line == 2 {
					numeric[i] = false
					values[i] = nil
					continue
				}
				v = math.NaN()
				gaps++
			}
			values[i] = append(values[i], v)
		}
	}

	for i, name := range header {
		if numeric[i] {
			table.Columns[name] = values[i]
		}
	}

	return table, gaps, nil
}

func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "nan", "na", "n/a", "-":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
