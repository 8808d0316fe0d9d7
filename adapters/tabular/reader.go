package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"mlgate/domain/core"
	"mlgate/domain/dataset"
	"mlgate/internal"
	"mlgate/internal/errors"

	"github.com/xuri/excelize/v2"
)

// File types understood by DataReader
const (
	FileTypeCSV  = "csv"
	FileTypeXLSX = "xlsx"
)

// DataReader parses delimited text and spreadsheet files into numeric tables
type DataReader struct {
	filePath  string
	fileType  string
	delimiter rune
	logger    *internal.Logger
}

// NewDataReader picks the file type from the extension. Anything other than
// .xlsx is treated as delimited text.
func NewDataReader(filePath string, delimiter rune, logger *internal.Logger) *DataReader {
	fileType := FileTypeCSV
	if strings.EqualFold(filepath.Ext(filePath), ".xlsx") {
		fileType = FileTypeXLSX
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &DataReader{filePath: filePath, fileType: fileType, delimiter: delimiter, logger: logger}
}

// FileType returns "csv" or "xlsx"
func (r *DataReader) FileType() string {
	return r.fileType
}

// ReadTable reads the whole file into a table
func (r *DataReader) ReadTable() (*dataset.Table, error) {
	switch r.fileType {
	case FileTypeXLSX:
		return r.readExcelData()
	default:
		data, err := os.ReadFile(r.filePath)
		if err != nil {
			return nil, errors.FileSystemError(fmt.Sprintf("failed to read %s", r.filePath), err)
		}
		return r.Parse(data)
	}
}

// Parse decodes already-loaded bytes in the reader's format
func (r *DataReader) Parse(data []byte) (*dataset.Table, error) {
	if r.fileType == FileTypeXLSX {
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.SchemaError("failed to open spreadsheet", err)
		}
		defer f.Close()
		return r.readSheet(f)
	}
	return r.readCSVData(bytes.NewReader(data))
}

func (r *DataReader) readExcelData() (*dataset.Table, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.FileSystemError(fmt.Sprintf("failed to open spreadsheet %s", r.filePath), err)
	}
	defer f.Close()
	r.logger.Debug("[DataReader] spreadsheet opened in %s", time.Since(startTime))

	return r.readSheet(f)
}

// readSheet uses the first sheet of the workbook
func (r *DataReader) readSheet(f *excelize.File) (*dataset.Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.SchemaError("spreadsheet has no sheets", core.ErrMalformedTable)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.SchemaError(fmt.Sprintf("failed to read sheet %s", sheets[0]), err)
	}
	r.logger.Debug("[DataReader] sheet %s read (%d rows)", sheets[0], len(rows))
	return r.processRows(rows)
}

func (r *DataReader) readCSVData(src io.Reader) (*dataset.Table, error) {
	reader := csv.NewReader(src)
	reader.Comma = r.delimiter

	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.SchemaError("failed to parse delimited file", fmt.Errorf("%w: %v", core.ErrMalformedTable, err))
	}
	r.logger.Debug("[DataReader] delimited file read in %s (%d rows)", time.Since(readStart), len(rows))

	return r.processRows(rows)
}

// processRows converts raw string rows into a numeric column-major table.
// The first row holds headers.
func (r *DataReader) processRows(rows [][]string) (*dataset.Table, error) {
	if len(rows) < 2 {
		return nil, errors.SchemaError("file must have a header row and at least one data row", core.ErrInsufficientData)
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}
	if len(headers) < 2 {
		return nil, errors.SchemaError(
			fmt.Sprintf("found %d column(s) %q, expected at least 2; check that the delimiter is %q", len(headers), headers, string(r.delimiter)),
			core.ErrMalformedTable)
	}

	columns := make([][]float64, len(headers))
	for j := range columns {
		columns[j] = make([]float64, 0, len(rows)-1)
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		for j, header := range headers {
			cell := ""
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.SchemaError(
					fmt.Sprintf("row %d column %q: value %q is not numeric", i+1, header, cell),
					core.ErrNonNumeric)
			}
			columns[j] = append(columns[j], v)
		}
	}

	table, err := dataset.NewTable(headers, columns)
	if err != nil {
		return nil, errors.SchemaError("invalid table", err)
	}

	r.logger.Debug("[DataReader] %s processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), table.NumCols(), table.NumRows())
	return table, nil
}
