package knowledge

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ParseCSV reads a sheet from CSV data. The first record is the header row;
// cells beyond the header width are dropped, missing cells stay empty.
func ParseCSV(sheet string, reader io.Reader) ([]Row, error) {
	parser := csv.NewReader(reader)
	parser.FieldsPerRecord = -1
	parser.TrimLeadingSpace = true

	header, err := parser.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header for %s: %w", sheet, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := parser.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row for %s: %w", sheet, err)
		}
		columns := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(record) {
				columns[name] = strings.TrimSpace(record[i])
			} else {
				columns[name] = ""
			}
		}
		rows = append(rows, Row{Sheet: sheet, Columns: columns})
	}
	return rows, nil
}

// ImportFile loads one <sheet>.csv file into the mirror.
func (s *SQLite) ImportFile(ctx context.Context, path string) (string, error) {
	sheet := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open sheet file: %w", err)
	}
	defer file.Close()

	rows, err := ParseCSV(sheet, file)
	if err != nil {
		return "", err
	}
	if err := s.ReplaceSheet(ctx, sheet, rows); err != nil {
		return "", err
	}
	return sheet, nil
}

// ImportDir loads every *.csv file in dir as a sheet named after the file.
func (s *SQLite) ImportDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sheets dir: %w", err)
	}

	var imported []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		sheet, err := s.ImportFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return imported, err
		}
		imported = append(imported, sheet)
	}
	return imported, nil
}
