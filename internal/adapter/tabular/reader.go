// Package tabular loads header-first tables from delimited text or .xlsx
// spreadsheets into domain.Table values.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/couchcryptid/demand-siting/internal/domain"
	"github.com/xuri/excelize/v2"
)

const bom = "\ufeff"

// ErrEmpty is returned when a file has no header row.
var ErrEmpty = errors.New("table has no header row")

// Open reads the file at path, choosing a reader by extension. delimiter
// applies to text files; zero means comma.
func Open(path string, delimiter rune) (domain.Table, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(path)
	default:
		rows, err = readDelimited(path, delimiter)
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", path, err)
	}

	t, err := build(name, rows)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ParseDelimiter validates a one-character delimiter setting.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return ',', nil
	}
	if s == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

func readDelimited(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseDelimited(f, delimiter)
}

func parseDelimited(r io.Reader, delimiter rune) ([][]string, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func readSpreadsheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

// build trims the header, strips a leading BOM, and pads short rows to the
// header width. Fully blank rows are skipped.
func build(name string, rows [][]string) (domain.Table, error) {
	if len(rows) == 0 || isBlank(rows[0]) {
		return domain.Table{}, ErrEmpty
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		header[i] = strings.TrimSpace(h)
	}

	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		body = append(body, row)
	}

	return domain.Table{Name: name, Header: header, Rows: body}, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
