// Package export writes analysis reports to Excel workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sbnpy/clubsight/internal/domain/report"
)

// Excel caps sheet names at 31 characters.
const maxSheetNameLen = 31

var invalidSheetChars = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ",
)

// SheetName sanitizes a table name into a legal, truncated sheet name.
func SheetName(name string) string {
	s := strings.TrimSpace(invalidSheetChars.Replace(name))
	if s == "" {
		s = "Feuille"
	}
	runes := []rune(s)
	if len(runes) > maxSheetNameLen {
		s = string(runes[:maxSheetNameLen])
	}
	return s
}

// Write renders every table of the report as one workbook sheet. Numeric
// cells stay numeric so the spreadsheet can keep computing on them.
func Write(w io.Writer, rep *report.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]int)
	for i, tbl := range rep.Tables {
		name := uniqueSheetName(used, SheetName(tbl.Name))
		var err error
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeTable(f, name, tbl); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, tbl *report.Table) error {
	for c, col := range tbl.Columns {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	for r, row := range tbl.Rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if v.IsNumber {
				err = f.SetCellValue(sheet, cell, v.Number)
			} else {
				err = f.SetCellValue(sheet, cell, v.Text)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// uniqueSheetName suffixes duplicates the same way duplicate columns are
// suffixed on ingest, still honoring the sheet name limit.
func uniqueSheetName(used map[string]int, name string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	suffix := fmt.Sprintf("_%d", n)
	runes := []rune(name)
	if len(runes)+len(suffix) > maxSheetNameLen {
		runes = runes[:maxSheetNameLen-len(suffix)]
	}
	return string(runes) + suffix
}
