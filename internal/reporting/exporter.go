package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/strategyconfig"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// Supported export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Summary is the JSON sidecar written next to every export
type Summary struct {
	GeneratedAt time.Time                        `json:"generated_at"`
	Result      *backtest.Result                 `json:"result"`
	DataGaps    []string                         `json:"data_gaps,omitempty"`
	Snapshot    *strategyconfig.DecisionSnapshot `json:"snapshot,omitempty"`
}

// Exporter writes backtest reports into a directory
type Exporter struct {
	dir    string
	logger *logger.Logger
	now    func() time.Time
}

// NewExporter creates an exporter rooted at dir
func NewExporter(dir string, log *logger.Logger) *Exporter {
	return &Exporter{dir: dir, logger: log, now: time.Now}
}

// Export writes the requested formats plus summary.json and returns the written paths.
// 파일명: momentum_<YYYYMMDD_HHMMSS>_<kind>.<ext>
func (e *Exporter) Export(result *backtest.Result, formats []string, snapshot *strategyconfig.DecisionSnapshot) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	stamp := e.now().Format("20060102_150405")
	name := func(kind, ext string) string {
		return filepath.Join(e.dir, fmt.Sprintf("momentum_%s_%s.%s", stamp, kind, ext))
	}

	var paths []string
	for _, format := range formats {
		switch format {
		case FormatCSV:
			if result.Book != nil {
				p := name("book", "csv")
				if err := writeFile(p, func(f *os.File) error { return WriteTradeBookCSV(f, result.Book) }); err != nil {
					return paths, err
				}
				paths = append(paths, p)
			}

			p := name("trades", "csv")
			if err := writeFile(p, func(f *os.File) error { return WriteTradesCSV(f, result.Trades) }); err != nil {
				return paths, err
			}
			paths = append(paths, p)

			p = name("closes", "csv")
			if err := writeFile(p, func(f *os.File) error { return WriteCloseDaysCSV(f, result.CloseDays) }); err != nil {
				return paths, err
			}
			paths = append(paths, p)

		case FormatXLSX:
			p := name("report", "xlsx")
			if err := WriteXLSX(p, result, snapshot); err != nil {
				return paths, err
			}
			paths = append(paths, p)

		default:
			return paths, fmt.Errorf("unknown report format %q", format)
		}
	}

	summary := Summary{GeneratedAt: e.now(), Result: result, Snapshot: snapshot}
	for _, gap := range result.DataGaps {
		summary.DataGaps = append(summary.DataGaps, gap.Error())
	}
	p := name("summary", "json")
	if err := writeFile(p, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		return paths, err
	}
	paths = append(paths, p)

	e.logger.WithFields(map[string]interface{}{
		"dir":   e.dir,
		"files": len(paths),
	}).Info("Reports exported")

	return paths, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
