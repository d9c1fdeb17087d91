package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/model"
)

// AllSheet is the workbook sheet listing every job.
const AllSheet = "All"

const maxSheetName = 31

var xlsxHeader = []string{"Title", "Employer", "Location", "Categories", "Published", "Source", "URL"}

// WriteXLSX writes a workbook with an "All" sheet and one sheet per label.
// A job with several labels appears on each of their sheets.
func WriteXLSX(path string, jobs []model.ClassifiedJob) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AllSheet); err != nil {
		return fmt.Errorf("xlsx rename sheet: %w", err)
	}
	if err := writeSheet(f, AllSheet, jobs); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(AllSheet): true}
	for _, lc := range CountLabels(jobs) {
		name := sheetName(lc.Label, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("xlsx sheet %q: %w", name, err)
		}
		var rows []model.ClassifiedJob
		for _, j := range jobs {
			if j.HasCategory(lc.Label) {
				rows = append(rows, j)
			}
		}
		if err := writeSheet(f, name, rows); err != nil {
			return err
		}
	}

	if idx, err := f.GetSheetIndex(AllSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return atomicfile.WriteFile(path, buf.Bytes(), 0o644)
}

func writeSheet(f *excelize.File, sheet string, jobs []model.ClassifiedJob) error {
	for i, h := range xlsxHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx %s header: %w", sheet, err)
		}
	}

	for r, j := range jobs {
		row := r + 2
		values := []any{j.Title, j.Employer, j.Location, strings.Join(j.Categories, ", "), j.PublicationDate, j.Source, j.ViewURL()}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("xlsx %s row %d: %w", sheet, row, err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 48) // title
	_ = f.SetColWidth(sheet, "B", "C", 28)
	_ = f.SetColWidth(sheet, "D", "D", 30)
	_ = f.SetColWidth(sheet, "E", "F", 14)
	_ = f.SetColWidth(sheet, "G", "G", 60) // url
	return nil
}

// sheetName turns a label into a unique, valid sheet name.
func sheetName(label string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	name = strings.Trim(name, "'")
	if name == "" {
		name = "Label"
	}
	name = truncateRunes(name, maxSheetName)

	base := name
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
