// Package excel exports dataset info tables to spreadsheets and reads them
// back from spreadsheets or CSV files.
package excel

import (
	"context"
	"fmt"

	"gammastack/internal"
	"gammastack/internal/errors"
	"gammastack/ports"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the longest sheet name Excel accepts
const maxSheetName = 31

// InfoExporter writes info tables to an xlsx workbook
type InfoExporter struct {
	logger *internal.Logger // Logger for controlled verbosity
}

var _ ports.InfoExporter = (*InfoExporter)(nil)

// NewInfoExporter creates an exporter
func NewInfoExporter() *InfoExporter {
	return &InfoExporter{logger: internal.DefaultLogger.With("excel")}
}

// WithLogger replaces the exporter logger
func (e *InfoExporter) WithLogger(logger *internal.Logger) *InfoExporter {
	e.logger = logger
	return e
}

// ExportInfo writes one sheet per table with a header row. Undefined values
// are left as empty cells.
func (e *InfoExporter) ExportInfo(ctx context.Context, path string, sheets []ports.InfoSheet) error {
	if len(sheets) == 0 {
		return errors.ValidationError("no info tables to export")
	}
	seen := make(map[string]bool, len(sheets))
	for _, s := range sheets {
		if s.Name == "" || len(s.Name) > maxSheetName {
			return errors.ValidationError(fmt.Sprintf("invalid sheet name %q", s.Name))
		}
		if seen[s.Name] {
			return errors.ValidationError(fmt.Sprintf("duplicate sheet name %q", s.Name))
		}
		seen[s.Name] = true
	}

	f := excelize.NewFile()
	defer f.Close()

	headers := make([]interface{}, len(infoColumns))
	for i, c := range infoColumns {
		headers[i] = c.header
	}

	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return errors.Wrapf(err, "failed to name sheet %s", sheet.Name)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return errors.Wrapf(err, "failed to create sheet %s", sheet.Name)
		}

		if err := f.SetSheetRow(sheet.Name, "A1", &headers); err != nil {
			return errors.Wrapf(err, "failed to write header of %s", sheet.Name)
		}
		for r := range sheet.Rows {
			values := make([]interface{}, len(infoColumns))
			for c, col := range infoColumns {
				values[c] = col.value(&sheet.Rows[r])
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return errors.Wrapf(err, "failed to address row %d", r)
			}
			if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
				return errors.Wrapf(err, "failed to write row %d of %s", r, sheet.Name)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.IOError(path, err)
	}
	e.logger.Info("Exported %d info tables to %s", len(sheets), path)
	return nil
}
