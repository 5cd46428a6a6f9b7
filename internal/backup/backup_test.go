package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"
)

func setupBackupTest(t *testing.T) (*Manager, string, *time.Time) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "estimator.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE kv (key TEXT PRIMARY KEY, value BLOB)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('ee.estimate:5.totals', '{"labor_hours_pricing_sheet":5}')`); err != nil {
		t.Fatalf("failed to insert row: %v", err)
	}

	clock := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)
	mgr := NewManager(dbPath)
	mgr.now = func() time.Time { return clock }
	return mgr, dbPath, &clock
}

func countRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&n); err != nil {
		t.Fatalf("failed to query %s: %v", path, err)
	}
	return n
}

func TestCreate(t *testing.T) {
	mgr, _, _ := setupBackupTest(t)

	path, err := mgr.Create("Pre Reset!")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if got := filepath.Base(path); got != "estimator-20261018-120000-pre-reset.db" {
		t.Errorf("backup name = %q", got)
	}
	if n := countRows(t, path); n != 1 {
		t.Errorf("backup has %d rows, want 1", n)
	}

	// same second, same reason
	second, err := mgr.Create("pre-reset")
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(second); got != "estimator-20261018-120000-pre-reset.1.db" {
		t.Errorf("second backup name = %q", got)
	}
}

func TestCreateMissingStore(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "nope.db"))
	if _, err := mgr.Create(""); err == nil {
		t.Fatal("expected error backing up a missing store")
	}
}

func TestListOrderAndRotation(t *testing.T) {
	mgr, _, clock := setupBackupTest(t)

	for i := 0; i < MaxBackups+2; i++ {
		if _, err := mgr.Create("manual"); err != nil {
			t.Fatal(err)
		}
		*clock = clock.Add(time.Minute)
	}
	for _, name := range []string{"notes.txt", "estimator-garbage.db", "estimator-20261018-120000.json"} {
		if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	list, err := mgr.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != MaxBackups {
		t.Fatalf("List() returned %d backups, want %d", len(list), MaxBackups)
	}
	newest := time.Date(2026, 10, 18, 12, MaxBackups+1, 0, 0, time.Local)
	oldest := time.Date(2026, 10, 18, 12, 2, 0, 0, time.Local)
	if !list[0].Taken.Equal(newest) || !list[len(list)-1].Taken.Equal(oldest) {
		t.Errorf("List() order = %v .. %v", list[0].Taken, list[len(list)-1].Taken)
	}
	if list[0].Reason != "manual" || list[0].Size == 0 {
		t.Errorf("List()[0] = %+v", list[0])
	}
}

func TestListMissingDir(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "estimator.db"))
	list, err := mgr.List()
	if err != nil || list != nil {
		t.Errorf("List() = %v, %v", list, err)
	}
}

func TestRestore(t *testing.T) {
	mgr, dbPath, clock := setupBackupTest(t)

	saved, err := mgr.Create("before-edit")
	if err != nil {
		t.Fatal(err)
	}
	*clock = clock.Add(time.Hour)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('ee.fast.totals', '{}')`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	current, err := mgr.Restore(saved)
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if n := countRows(t, dbPath); n != 1 {
		t.Errorf("restored store has %d rows, want 1", n)
	}
	if !strings.Contains(filepath.Base(current), "pre-restore") {
		t.Errorf("pre-restore backup = %q", current)
	}
	if n := countRows(t, current); n != 2 {
		t.Errorf("pre-restore backup has %d rows, want 2", n)
	}
}

func TestRestoreRejectsInvalid(t *testing.T) {
	mgr, _, _ := setupBackupTest(t)
	bad := filepath.Join(t.TempDir(), "bad.db")
	if err := os.WriteFile(bad, []byte("SQLite format 3\x00garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Restore(bad); err == nil {
		t.Error("expected error restoring a corrupt database")
	}
	if _, err := mgr.Restore(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error restoring a missing file")
	}
}

func TestJSONStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimator.json")
	original := []byte(`{"ee.fast.totals":"e30="}`)
	if err := os.WriteFile(path, original, 0600); err != nil {
		t.Fatal(err)
	}
	mgr := NewManager(path)

	saved, err := mgr.Create("")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if filepath.Ext(saved) != ".json" {
		t.Errorf("backup %q does not keep the store extension", saved)
	}

	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Restore(saved); err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	got, _ := os.ReadFile(path)
	if diff := cmp.Diff(string(original), string(got)); diff != "" {
		t.Errorf("restored content mismatch (-want +got):\n%s", diff)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"truncated`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Restore(bad); err == nil {
		t.Error("expected error restoring invalid JSON")
	}
}
