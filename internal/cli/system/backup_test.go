package system

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/storage"
)

func TestBackupCommands(t *testing.T) {
	ctx, out, dbPath := setupSQLiteTest(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Store.Set("ee.estimate:5.totals", []byte(`{"labor_hours_pricing_sheet":5}`)); err != nil {
		t.Fatal(err)
	}

	if err := (&BackupCreateCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup create failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(filepath.Dir(dbPath), "backups"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("backup dir entries = %v, %v", entries, err)
	}
	name := entries[0].Name()

	out.Reset()
	if err := (&BackupListCmd{}).Run(ctx); err != nil {
		t.Fatalf("backup list failed: %v", err)
	}
	if !strings.Contains(out.String(), name) || !strings.Contains(out.String(), "manual") {
		t.Errorf("list output = %q", out.String())
	}

	if err := ctx.Store.Delete("ee.estimate:5.totals"); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := (&BackupRestoreCmd{BackupFile: name, Yes: true}).Run(ctx); err != nil {
		t.Fatalf("backup restore failed: %v", err)
	}
	if !strings.Contains(out.String(), "Storage restored successfully") {
		t.Errorf("restore output = %q", out.String())
	}
	if _, ok, err := ctx.Store.Get("ee.estimate:5.totals"); err != nil || !ok {
		t.Errorf("restored key missing: ok=%v err=%v", ok, err)
	}
}

func TestBackupRestore_NotFound(t *testing.T) {
	ctx, _, _ := setupSQLiteTest(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	err := (&BackupRestoreCmd{BackupFile: "estimator-20260101-000000.db", Yes: true}).Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "backup file not found") {
		t.Errorf("Run() = %v, want not found", err)
	}
}

func TestBackupCommands_UnsupportedBackend(t *testing.T) {
	ctx, _ := setupSystemTest(t, storage.NewMemoryStore())
	if err := (&BackupCreateCmd{}).Run(ctx); !errors.Is(err, apperrors.ErrUnsupportedBackend) {
		t.Errorf("Run() = %v, want ErrUnsupportedBackend", err)
	}
}

func TestInitCmd_ForceBacksUp(t *testing.T) {
	ctx, out, dbPath := setupSQLiteTest(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("force init failed: %v", err)
	}
	if !strings.Contains(out.String(), "Backed up existing storage") {
		t.Errorf("output = %q", out.String())
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(dbPath), "backups", "estimator-*-pre-init.db"))
	if len(matches) != 1 {
		t.Errorf("pre-init backups = %v", matches)
	}
}
