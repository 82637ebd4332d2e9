package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sbnpy/clubsight/internal/domain/ingest/prober"
)

// ErrShape is wrapped by loader errors caused by header/data misalignment.
var ErrShape = fmt.Errorf("table shape mismatch")

// Load dispatches on the file extension. data must be the full upload; every
// loader works in memory, matching the single-table resource model.
func Load(filename string, data []byte, layout Layout, logger *slog.Logger) (*RawTable, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return LoadCSV(data, layout, logger)
	case ".xls":
		return LoadXLS(data, "", layout, logger)
	default:
		return LoadExcel(data, "", layout, logger)
	}
}

// LoadCSV probes the encoding and delimiter, then parses the byte stream into
// a RawTable according to the layout.
func LoadCSV(data []byte, layout Layout, logger *slog.Logger) (*RawTable, error) {
	text, enc, err := prober.Probe(data)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	if len(lines) > 0 {
		lines[0] = strings.TrimPrefix(lines[0], "\uFEFF")
	}

	headerRow := 0
	if layout == LayoutStackedHeader {
		headerRow = stackedGroupRow
	}
	if len(lines) <= headerRow {
		return nil, prober.NewUnreadableFileError(data, fmt.Sprintf("header row %d missing", headerRow))
	}

	delim, count := prober.DetectDelimiter(lines[headerRow])
	if count < 1 {
		return nil, prober.NewUnreadableFileError(data, "no delimiter yields at least 2 columns")
	}
	logger.Debug("csv probed",
		slog.String("encoding", enc),
		slog.String("delimiter", string(delim)),
		slog.Int("header_row", headerRow),
	)

	rows, err := parseCSVLines(lines, delim)
	if err != nil {
		return nil, prober.NewUnreadableFileError(data, err.Error())
	}
	return buildFromRows(rows, layout, logger)
}

func parseCSVLines(lines []string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv parse: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// buildFromRows assembles a RawTable from pre-split rows (CSV lines or
// spreadsheet rows) using the layout's header offsets.
func buildFromRows(rows [][]string, layout Layout, logger *slog.Logger) (*RawTable, error) {
	switch layout {
	case LayoutStackedHeader:
		return buildStacked(rows, logger)
	default:
		return buildFlat(rows, logger)
	}
}

func buildFlat(rows [][]string, logger *slog.Logger) (*RawTable, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no header row", ErrShape)
	}
	t := &RawTable{Columns: MakeUnique(trimAll(rows[0]))}
	appendRows(t, rows[1:], logger)
	return t, nil
}

func buildStacked(rows [][]string, logger *slog.Logger) (*RawTable, error) {
	if len(rows) <= stackedSubRow {
		return nil, fmt.Errorf("%w: stacked header needs rows %d and %d", ErrShape, stackedGroupRow, stackedSubRow)
	}
	group := MakeUnique(trimAll(rows[stackedGroupRow]))
	sub := trimAll(rows[stackedSubRow])
	if len(sub) != len(group) {
		logger.Warn("stacked sub-header width differs from group header",
			slog.Int("group", len(group)),
			slog.Int("sub", len(sub)),
		)
		sub, _ = fit(sub, len(group))
	}
	t := &RawTable{Columns: group, SubHeader: sub}
	if len(rows) > stackedDataRow {
		appendRows(t, rows[stackedDataRow:], logger)
	}
	return t, nil
}

func appendRows(t *RawTable, rows [][]string, logger *slog.Logger) {
	width := len(t.Columns)
	for i, row := range rows {
		fitted, adjusted := fit(row, width)
		if adjusted {
			t.PaddedRows++
			logger.Warn("row width adjusted to header",
				slog.Int("row", i),
				slog.Int("cells", len(row)),
				slog.Int("columns", width),
			)
		}
		t.Rows = append(t.Rows, fitted)
	}
}
