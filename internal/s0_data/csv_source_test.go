package s0_data

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

const yahooSample = `Date,Open,High,Low,Close,Adj Close,Volume
2020-01-02,10,11,9,10.5,10,1000
2020-01-03,10.5,12,10,11.5,null,1200
2020-01-06,11,12,10.5,12,11.8,900
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadPriceCSV(t *testing.T) {
	table, err := ReadPriceCSV("AAA", strings.NewReader(yahooSample))
	require.NoError(t, err)

	assert.Equal(t, "AAA", table.Code)
	assert.Equal(t, []string{"2020-01-02", "2020-01-03", "2020-01-06"}, table.Dates)
	assert.Equal(t, []string{"Adj Close", "Close", "High", "Low", "Open", "Volume"}, table.ColumnNames())

	adj := table.Columns[contracts.ColumnAdjClose]
	assert.Equal(t, 10.0, adj[0])
	assert.True(t, math.IsNaN(adj[1]))
	assert.Equal(t, 11.8, adj[2])
	assert.NoError(t, table.Validate())
}

func TestReadPriceCSV_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty file", "", "empty file"},
		{"no date column", "Day,Close\n2020-01-02,10\n", "no Date column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPriceCSV("BBB", strings.NewReader(tt.input))
			var formatErr *contracts.FormatError
			require.True(t, errors.As(err, &formatErr), "got %v", err)
			assert.Equal(t, "BBB", formatErr.Code)
			assert.Equal(t, tt.reason, formatErr.Reason)
		})
	}
}

func TestReadPriceCSV_DropsTextColumns(t *testing.T) {
	input := "date,Name,Close\n2020-01-02,Alpha,10\n2020-01-03,Alpha,\n"
	table, err := ReadPriceCSV("CCC", strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"Close"}, table.ColumnNames())
	closes := table.Columns["Close"]
	assert.Equal(t, 10.0, closes[0])
	assert.True(t, math.IsNaN(closes[1]))
}

func TestReadPriceCSV_BadCellBecomesGap(t *testing.T) {
	input := "Date,Adj Close\n2020-01-02,10\n2020-01-03,abc\n2020-01-06,11\n"
	table, err := ReadPriceCSV("DDD", strings.NewReader(input))
	require.NoError(t, err)

	require.Contains(t, table.Columns, contracts.ColumnAdjClose)
	adj := table.Columns[contracts.ColumnAdjClose]
	require.Len(t, adj, 3)
	assert.Equal(t, 10.0, adj[0])
	assert.True(t, math.IsNaN(adj[1]))
	assert.Equal(t, 11.0, adj[2])
	assert.NoError(t, table.Validate())
}

func TestCSVSource_LogsBadCells(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "DDD.csv", "Date,Adj Close\n2020-01-02,10\n2020-01-03,abc\n2020-01-06,11\n")

	var buf bytes.Buffer
	src := NewCSVSource(dir, "csv", logger.NewWithWriter(&buf, "warn"))

	table, err := src.Load(context.Background(), "DDD")
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Contains(t, buf.String(), "Unparseable price cells treated as gaps")
	assert.Contains(t, buf.String(), "DDD")
}

func TestCSVSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BBB.csv", yahooSample)
	writeFile(t, dir, "AAA.csv", yahooSample)
	writeFile(t, dir, "notes.txt", "ignored")

	src := NewCSVSource(dir, ".csv", logger.NewNop())
	ctx := context.Background()

	codes, err := src.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, codes)

	table, err := src.Load(ctx, "BBB")
	require.NoError(t, err)
	assert.Equal(t, "BBB", table.Code)
	assert.Equal(t, 3, table.Len())

	_, err = src.Load(ctx, "ZZZ")
	assert.Error(t, err)
}

func TestCSVSource_CustomExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "005930.txt", yahooSample)
	writeFile(t, dir, "AAA.csv", yahooSample)

	codes, err := NewCSVSource(dir, "txt", logger.NewNop()).Codes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"005930"}, codes)
}

func TestWritePriceCSV_RoundTrip(t *testing.T) {
	original, err := ReadPriceCSV("AAA", strings.NewReader(yahooSample))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WritePriceCSV(dir, original)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "AAA.csv"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "Date,Open,High,Low,Close,Adj Close,Volume\n"))
	assert.Contains(t, string(raw), "2020-01-03,10.5,12,10,11.5,null,1200")

	reloaded, err := NewCSVSource(dir, "csv", logger.NewNop()).Load(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, original.Dates, reloaded.Dates)
	assert.Equal(t, original.Columns[contracts.ColumnClose], reloaded.Columns[contracts.ColumnClose])
	assert.True(t, math.IsNaN(reloaded.Columns[contracts.ColumnAdjClose][1]))
}
