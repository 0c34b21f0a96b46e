// Package report renders canonical mismatches into an Excel workbook.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/jobtrees/canonical-checker/internal/checker"
)

const (
	// DefaultPath is the workbook written in the working directory.
	DefaultPath = "canonical_mismatches.xlsx"
	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// NoDataSheet is the only sheet of a workbook without mismatches.
	NoDataSheet = "No Data"

	defaultSheet = "Sheet1"
	maxNameRunes = 25
)

// Headers are the column titles of every sheet.
var Headers = []string{"Sitemap URL", "Canonical URL", "Status Code"}

var invalidSheetChars = strings.NewReplacer(
	":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

// SheetLabel names the sheet for the sitemap at the 1-based index: the last
// path segment with ".xml" and "sitemap_" removed, cut to 25 characters.
func SheetLabel(index int, rootURL string) string {
	name := strings.TrimSpace(rootURL)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, ".xml", "")
	name = strings.ReplaceAll(name, "sitemap_", "")
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = string(runes[:maxNameRunes])
	}
	label := invalidSheetChars.Replace(fmt.Sprintf("%d_%s", index, name))
	return strings.Trim(label, "'")
}

// Writer implements checker.ReportWriter with excelize.
type Writer struct{}

// NewWriter returns a Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Write renders one sheet per report with mismatches, or a single header-only
// "No Data" sheet when there are none, and saves the workbook to path.
func (w *Writer) Write(path string, reports []checker.SitemapReport) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	first := true
	for _, r := range reports {
		if len(r.Mismatches) == 0 {
			continue
		}
		label := r.Label
		if label == "" {
			label = SheetLabel(r.Index, r.RootURL)
		}
		if err := addSheet(f, label, first); err != nil {
			return err
		}
		first = false
		if err := writeRows(f, label, bold, r.Mismatches); err != nil {
			return err
		}
	}
	if first {
		if err := addSheet(f, NoDataSheet, true); err != nil {
			return err
		}
		if err := writeRows(f, NoDataSheet, bold, nil); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func addSheet(f *excelize.File, name string, first bool) error {
	if first {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("rename sheet %q: %w", name, err)
		}
		return nil
	}
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, records []checker.MismatchRecord) error {
	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header on %q: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("style header on %q: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", "B", 70); err != nil {
		return fmt.Errorf("size columns on %q: %w", sheet, err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("resolve cell: %w", err)
		}
		row := []any{rec.SourceURL, rec.CanonicalURL, rec.StatusCode}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d on %q: %w", i+2, sheet, err)
		}
	}
	return nil
}
