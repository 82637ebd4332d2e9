package table

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Sheet-name fragments that identify a turnover sheet in a workbook.
var turnoverSheetHints = []string{"chiffre", "affaires", "ca", "ventes"}

// FindSheet applies the turnover-sheet heuristic: first sheet whose name
// contains a known fragment, else the last sheet in the workbook.
func FindSheet(names []string) string {
	if len(names) == 0 {
		return ""
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, hint := range turnoverSheetHints {
			if strings.Contains(lower, hint) {
				return name
			}
		}
	}
	return names[len(names)-1]
}

// LoadExcel reads an XLSX workbook. An empty sheet name selects the sheet via
// FindSheet.
func LoadExcel(data []byte, sheet string, layout Layout, logger *slog.Logger) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = FindSheet(f.GetSheetList())
	}
	if sheet == "" {
		return nil, fmt.Errorf("xlsx workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	logger.Debug("xlsx sheet loaded", slog.String("sheet", sheet), slog.Int("rows", len(rows)))
	return buildFromRows(rows, layout, logger)
}

// LoadXLS reads a legacy BIFF workbook via extrame/xls. The same header
// offsets apply as for XLSX.
func LoadXLS(data []byte, sheet string, layout Layout, logger *slog.Logger) (*RawTable, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	names := make([]string, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		if ws := wb.GetSheet(i); ws != nil {
			names = append(names, ws.Name)
		}
	}
	if sheet == "" {
		sheet = FindSheet(names)
	}

	var ws *xls.WorkSheet
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil && s.Name == sheet {
			ws = s
			break
		}
	}
	if ws == nil {
		return nil, fmt.Errorf("xls workbook has no sheet %q", sheet)
	}

	var rows [][]string
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	logger.Debug("xls sheet loaded", slog.String("sheet", sheet), slog.Int("rows", len(rows)))
	return buildFromRows(rows, layout, logger)
}
