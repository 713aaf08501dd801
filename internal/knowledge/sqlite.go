package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// SQLite mirrors imported sheets into a local database so queries stay fast
// and available while the upstream spreadsheet is unreachable.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) AutoMigrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sheets (
			name TEXT PRIMARY KEY,
			imported_at TEXT NOT NULL DEFAULT (datetime('now'))
		);`,
		`CREATE TABLE IF NOT EXISTS sheet_rows (
			sheet TEXT NOT NULL,
			position INTEGER NOT NULL,
			columns TEXT NOT NULL,
			PRIMARY KEY (sheet, position),
			FOREIGN KEY (sheet) REFERENCES sheets(name) ON DELETE CASCADE
		);`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migrate knowledge schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ReplaceSheet swaps the stored rows for a sheet in one transaction, keeping
// source order so match results stay deterministic.
func (s *SQLite) ReplaceSheet(ctx context.Context, sheet string, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sheet import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO sheets (name) VALUES (?) ON CONFLICT(name) DO UPDATE SET imported_at = datetime('now')`, sheet); err != nil {
		return fmt.Errorf("upsert sheet %s: %w", sheet, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE sheet = ?`, sheet); err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheet, err)
	}
	for position, row := range rows {
		encoded, err := json.Marshal(row.Columns)
		if err != nil {
			return fmt.Errorf("encode row %d of %s: %w", position, sheet, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sheet_rows (sheet, position, columns) VALUES (?, ?, ?)`, sheet, position, string(encoded)); err != nil {
			return fmt.Errorf("insert row %d of %s: %w", position, sheet, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListSheets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sheets`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sheets: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scan sheet name: %v", ErrUnavailable, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sheets: %v", ErrUnavailable, err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *SQLite) Rows(ctx context.Context, sheet string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT columns FROM sheet_rows WHERE sheet = ? ORDER BY position`, sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: query sheet %s: %v", ErrUnavailable, sheet, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("%w: scan row of %s: %v", ErrUnavailable, sheet, err)
		}
		columns := map[string]string{}
		if err := json.Unmarshal([]byte(encoded), &columns); err != nil {
			return nil, fmt.Errorf("%w: decode row of %s: %v", ErrUnavailable, sheet, err)
		}
		result = append(result, Row{Sheet: sheet, Columns: columns})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate sheet %s: %v", ErrUnavailable, sheet, err)
	}
	return result, nil
}
