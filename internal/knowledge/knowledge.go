// Package knowledge exposes the spreadsheet-backed catalog data as read-only
// named sheets of string rows.
package knowledge

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable reports that the knowledge store cannot serve a query.
// Callers are expected to degrade gracefully rather than surface it.
var ErrUnavailable = errors.New("knowledge store unavailable")

// Row is one spreadsheet row: column name → cell value. Rows remember the
// sheet they came from.
type Row struct {
	Sheet   string
	Columns map[string]string
}

// Get returns the trimmed cell value for the given column.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Columns[column])
}

// Store is a read-only view over named tabular sheets.
type Store interface {
	ListSheets(ctx context.Context) ([]string, error)
	Rows(ctx context.Context, sheet string) ([]Row, error)
}
