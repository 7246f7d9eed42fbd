package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"bookstats/internal/models"
)

// DefaultSheet is the sheet name every weekly export uses
const DefaultSheet = "Export"

func readSource(path, sheet string) (table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path, sheet)
	case ".csv":
		return readCSV(path)
	}
	return table{}, &models.SourceFormatError{File: filepath.Base(path), Reason: "unsupported file type"}
}

func readXLSX(path, sheet string) (table, error) {
	file := filepath.Base(path)
	f, err := excelize.OpenFile(path)
	if err != nil {
		return table{}, &models.SourceFormatError{File: file, Reason: "cannot open workbook", Err: err}
	}
	defer f.Close()

	name := ""
	for _, s := range f.GetSheetList() {
		if strings.EqualFold(s, sheet) {
			name = s
			break
		}
	}
	if name == "" {
		return table{}, &models.SourceFormatError{File: file, Reason: fmt.Sprintf("no %q sheet", sheet)}
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return table{}, &models.SourceFormatError{File: file, Reason: "cannot read sheet", Err: err}
	}
	if len(rows) == 0 {
		return table{}, &models.SourceFormatError{File: file, Reason: "empty sheet"}
	}
	return table{headers: rows[0], rows: rows[1:]}, nil
}

func readCSV(path string) (table, error) {
	file := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return table{}, &models.SourceFormatError{File: file, Reason: "cannot read file", Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var t table
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table{}, &models.SourceFormatError{File: file, Reason: "malformed csv", Err: err}
		}
		if t.headers == nil {
			t.headers = rec
			continue
		}
		t.rows = append(t.rows, rec)
	}
	if t.headers == nil {
		return table{}, &models.SourceFormatError{File: file, Reason: "empty file"}
	}
	return t, nil
}

// sniffDelimiter picks ';' for Italian-locale exports, ',' otherwise
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
