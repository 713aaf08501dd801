package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "knowledge.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestParseCSV(t *testing.T) {
	data := "品名,價格\nX尾燈,500\n方向燈, 250 \n"
	rows, err := ParseCSV("products", strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Sheet != "products" {
		t.Fatalf("expected sheet name carried on row, got %q", rows[0].Sheet)
	}
	if rows[0].Get("品名") != "X尾燈" || rows[0].Get("價格") != "500" {
		t.Fatalf("unexpected first row: %v", rows[0].Columns)
	}
	if rows[1].Get("價格") != "250" {
		t.Fatalf("expected trimmed cell, got %q", rows[1].Get("價格"))
	}
}

func TestParseCSVRaggedRecords(t *testing.T) {
	data := "品名,價格\n只有名字\n"
	rows, err := ParseCSV("products", strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows[0].Get("品名") != "只有名字" || rows[0].Get("價格") != "" {
		t.Fatalf("expected missing cell to stay empty: %v", rows[0].Columns)
	}
}

func TestReplaceSheetPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows := []Row{
		{Columns: map[string]string{"品名": "A", "價格": "100"}},
		{Columns: map[string]string{"品名": "B", "價格": "200"}},
		{Columns: map[string]string{"品名": "C", "價格": "300"}},
	}
	if err := store.ReplaceSheet(ctx, "products", rows); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := store.Rows(ctx, "products")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i, name := range []string{"A", "B", "C"} {
		if got[i].Get("品名") != name {
			t.Fatalf("row %d: expected %q, got %q", i, name, got[i].Get("品名"))
		}
	}

	// A second replace fully swaps the contents.
	if err := store.ReplaceSheet(ctx, "products", rows[:1]); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, err = store.Rows(ctx, "products")
	if err != nil {
		t.Fatalf("rows after replace: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row after replace, got %d", len(got))
	}
}

func TestImportDir(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "faq.csv"), []byte("關鍵字,回覆\n營業時間,每日10:30開始營業\n"), 0o644); err != nil {
		t.Fatalf("write sheet: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}

	imported, err := store.ImportDir(ctx, dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(imported) != 1 || imported[0] != "faq" {
		t.Fatalf("expected faq import only, got %v", imported)
	}

	sheets, err := store.ListSheets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sheets) != 1 || sheets[0] != "faq" {
		t.Fatalf("unexpected sheets %v", sheets)
	}
}

func TestFetchSheet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("品名,價格\n霧燈,800\n"))
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)
	rows, err := fetcher.FetchSheet(context.Background(), "products", server.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 1 || rows[0].Get("品名") != "霧燈" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestFetchSheetServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewFetcher(5 * time.Second)
	if _, err := fetcher.FetchSheet(context.Background(), "products", server.URL); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
