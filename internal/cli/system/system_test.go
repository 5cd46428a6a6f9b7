package system

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/storage/sqlite"
)

func setupSystemTest(t *testing.T, store storage.Backend) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	gokeyring.MockInit()
	var out bytes.Buffer
	ctx := &cli.Context{
		Store:     store,
		ConfigDir: t.TempDir(),
		Out:       &out,
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return ctx, &out
}

func setupSQLiteTest(t *testing.T) (*cli.Context, *bytes.Buffer, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx, out := setupSystemTest(t, sqlite.NewStore(dbPath))
	return ctx, out, dbPath
}

func TestInitCmd_Success(t *testing.T) {
	ctx, out, dbPath := setupSQLiteTest(t)

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}
	if !strings.Contains(out.String(), "Initialized estimator storage") {
		t.Errorf("output = %q", out.String())
	}
}

func TestInitCmd_ForceDeletesExisting(t *testing.T) {
	ctx, out, _ := setupSQLiteTest(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}
	if err := ctx.Store.Set("ee.fast.totals", []byte(`{"labor_hours_pricing_sheet":2}`)); err != nil {
		t.Fatal(err)
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("force init failed: %v", err)
	}
	if !strings.Contains(out.String(), "Deleted existing storage") {
		t.Errorf("output = %q", out.String())
	}
	if keys, _ := ctx.Store.Keys("ee."); len(keys) != 0 {
		t.Errorf("keys survived force init: %v", keys)
	}
}

func TestInitCmd_ForceRefusesSameSource(t *testing.T) {
	ctx, _, dbPath := setupSQLiteTest(t)
	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := (&InitCmd{Force: true, Source: dbPath}).Run(ctx); err == nil {
		t.Error("expected an error when source and destination match")
	}
}

func TestInitCmd_CopiesSource(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "old.json")
	src := storage.NewJSONStore(srcPath)
	if err := src.Init(); err != nil {
		t.Fatal(err)
	}
	settings := models.DefaultSettings()
	settings.LaborRate = 72
	if err := src.SaveSettings(settings); err != nil {
		t.Fatal(err)
	}
	for key, value := range map[string]string{
		"ee.estimate:3.totals": `{"labor_hours_pricing_sheet":4}`,
		"ee.fast.grid.v1":      `{"v":1,"rows":[]}`,
	} {
		if err := src.Set(key, []byte(value)); err != nil {
			t.Fatal(err)
		}
	}

	dst := storage.NewMemoryStore()
	ctx, out := setupSystemTest(t, dst)
	if err := (&InitCmd{Source: srcPath}).Run(ctx); err != nil {
		t.Fatalf("init with source failed: %v", err)
	}

	if keys, _ := dst.Keys(""); len(keys) != 2 {
		t.Errorf("copied keys = %v", keys)
	}
	got, _ := dst.GetSettings()
	if got.LaborRate != 72 {
		t.Errorf("labor rate = %v, want 72", got.LaborRate)
	}
	if !strings.Contains(out.String(), "Copied 2 keys") {
		t.Errorf("output = %q", out.String())
	}
}

func TestMigrateCmd(t *testing.T) {
	ctx, out, _ := setupSQLiteTest(t)
	if err := ctx.Store.Init(); err != nil {
		t.Fatal(err)
	}
	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out.String(), "up to date") {
		t.Errorf("output = %q", out.String())
	}
}

func TestMigrateCmd_UnsupportedBackend(t *testing.T) {
	ctx, _ := setupSystemTest(t, storage.NewMemoryStore())
	if err := (&MigrateCmd{}).Run(ctx); err == nil {
		t.Error("expected an error for the memory backend")
	}
}

func TestDoctorCmd_HealthyDB(t *testing.T) {
	ctx, out, _ := setupSQLiteTest(t)
	if err := ctx.Store.Init(); err != nil {
		t.Fatal(err)
	}

	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Errorf("doctor failed on a healthy database: %v\n%s", err, out.String())
	}
	for _, want := range []string{
		"Log file: " + filepath.Join(ctx.ConfigDir, "logs", "estimator.log"),
		"✓ Storage reachable: OK",
		"✓ Schema version: OK",
		"✓ Migrations complete: OK",
		"✓ Data validation: OK",
		"⚠ Catalog configured: WARNING",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDoctorCmd_SkipsSchemaForMemory(t *testing.T) {
	ctx, out := setupSystemTest(t, storage.NewMemoryStore())
	if err := (&DoctorCmd{}).Run(ctx); err != nil {
		t.Errorf("doctor failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "⊘ Schema version: SKIPPED") {
		t.Errorf("output = %s", out.String())
	}
}

func TestDoctorCmd_ReportsConflicts(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.SetRaw("estimateData", []byte(`{}`))
	ctx, out := setupSystemTest(t, mem)

	if err := (&DoctorCmd{}).Run(ctx); err == nil {
		t.Error("expected doctor to fail on legacy keys")
	}
	if !strings.Contains(out.String(), "❌ Data validation: FAIL") {
		t.Errorf("output = %s", out.String())
	}
}

func TestValidateCmd(t *testing.T) {
	mem := storage.NewMemoryStore()
	mem.SetRaw("ee.estimate:8.estimateData", []byte(`{"adjustments":[{"label":"Safety","percent":150,"hours":0}]}`))
	ctx, out := setupSystemTest(t, mem)

	err := (&ValidateCmd{}).Run(ctx)
	if err == nil {
		t.Fatal("expected conflicts")
	}
	if !strings.Contains(out.String(), "[estimate:8]") {
		t.Errorf("report = %s", out.String())
	}
}

func TestValidateCmd_Clean(t *testing.T) {
	ctx, out := setupSystemTest(t, storage.NewMemoryStore())
	if err := (&ValidateCmd{}).Run(ctx); err != nil {
		t.Errorf("validate failed: %v", err)
	}
	if !strings.Contains(out.String(), "No conflicts detected.") {
		t.Errorf("report = %s", out.String())
	}
}

func TestCopyKeys(t *testing.T) {
	src := storage.NewMemoryStore()
	src.SetRaw("ee.fast.totals", []byte(`{}`))
	src.SetRaw("ee.estimate:1.grid.v1", []byte(`{"v":1}`))
	src.SetRaw("unrelated", []byte(`x`))
	dst := storage.NewMemoryStore()

	n, err := CopyKeys(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("copied %d keys, want 2", n)
	}
	if _, ok, _ := dst.Get("unrelated"); ok {
		t.Error("copied a key outside the estimator keyspace")
	}
}
