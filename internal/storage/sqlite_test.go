package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSQLiteBootstrapsEventsTable(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "events.db")
	db, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='events';").Scan(&name); err != nil {
		t.Fatalf("events table missing: %v", err)
	}

	rows, err := db.Query("SELECT name, pk FROM pragma_table_info('events') WHERE pk > 0 ORDER BY pk;")
	if err != nil {
		t.Fatalf("table_info: %v", err)
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var col string
		var pos int
		if err := rows.Scan(&col, &pos); err != nil {
			t.Fatalf("scan: %v", err)
		}
		pk = append(pk, col)
	}
	if len(pk) != 2 || pk[0] != "delivery_id" || pk[1] != "action" {
		t.Fatalf("expected primary key (delivery_id, action), got %v", pk)
	}
}

func TestOpenSQLiteIsReentrant(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "events.db")
	for i := 0; i < 2; i++ {
		db, err := OpenSQLite(context.Background(), dbPath)
		if err != nil {
			t.Fatalf("OpenSQLite #%d: %v", i+1, err)
		}
		_ = db.Close()
	}
}

func TestOpenSQLiteEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLite(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
