package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gammastack/domain/dataset"
	"gammastack/internal"
	"gammastack/internal/errors"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.DefaultLogger.With("excel")}
}

// Sheets lists the sheet names; a CSV file has a single unnamed sheet
func (r *DataReader) Sheets() ([]string, error) {
	if r.fileType == "csv" {
		return []string{""}, nil
	}
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.IOError(r.filePath, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadData reads one sheet into structured format. The sheet name is
// ignored for CSV files.
func (r *DataReader) ReadData(sheet string) (*SheetData, error) {
	r.logger.Debug("Reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); err != nil {
		return nil, errors.IOError(r.filePath, err)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData(sheet)
	default:
		return nil, errors.FormatError(r.filePath, "unsupported file type "+r.fileType)
	}
}

// readExcelData reads the raw cell values of one sheet
func (r *DataReader) readExcelData(sheet string) (*SheetData, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.IOError(r.filePath, err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.FormatError(r.filePath, fmt.Sprintf("failed to read sheet %s: %v", sheet, err))
	}
	r.logger.Debug("Sheet %s read (%d rows)", sheet, len(rows))
	if len(rows) < 1 {
		return nil, errors.FormatError(r.filePath, "sheet "+sheet+" has no header row")
	}
	return r.processRows(rows), nil
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*SheetData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.IOError(r.filePath, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.FormatError(r.filePath, err.Error())
	}
	if len(rows) < 1 {
		return nil, errors.FormatError(r.filePath, "CSV file has no header row")
	}
	return r.processRows(rows), nil
}

// processRows converts raw string rows into SheetData format
func (r *DataReader) processRows(rows [][]string) *SheetData {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}
	return &SheetData{Headers: headers, Rows: dataRows}
}

// ReadInfo reads an info table written by ExportInfo. Columns that are
// missing keep their zero value; empty float cells read back as NaN.
func (r *DataReader) ReadInfo(sheet string) ([]dataset.Info, error) {
	data, err := r.ReadData(sheet)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(data.Headers, "name") {
		return nil, errors.FormatError(r.filePath, "missing name column")
	}

	out := make([]dataset.Info, len(data.Rows))
	for i, row := range data.Rows {
		for _, col := range infoColumns {
			if !slices.Contains(data.Headers, col.header) {
				continue
			}
			// trailing empty cells are not returned at all
			s := row[col.header]
			if err := col.set(&out[i], s); err != nil {
				return nil, errors.FormatError(r.filePath, fmt.Sprintf("row %d column %s: %v", i+2, col.header, err))
			}
		}
	}
	return out, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
