package settings

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/julianstephens/estimator/internal/cli"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	var out bytes.Buffer
	return &cli.Context{Store: store, Out: &out}, &out
}

func ptr[T any](v T) *T { return &v }

func TestSettingsCmd_List(t *testing.T) {
	ctx, out := setupTestDB(t)

	if err := (&SettingsCmd{List: true}).Run(ctx); err != nil {
		t.Fatalf("settings list failed: %v", err)
	}
	for _, want := range []string{"Current Settings:", "Overhead:          30%", "Margin:            10%"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestSettingsCmd_Update(t *testing.T) {
	ctx, out := setupTestDB(t)

	cmd := &SettingsCmd{
		LaborRate:       ptr(85.5),
		OverheadPercent: ptr(25),
		MarginPercent:   ptr(15),
		SalesTaxPercent: ptr(8.25),
	}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("settings update failed: %v", err)
	}
	if !strings.Contains(out.String(), "Settings updated successfully.") {
		t.Errorf("output = %q", out.String())
	}

	got, err := ctx.Store.(storage.SettingsStore).GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	if got.LaborRate != 85.5 || got.OverheadPercent != 25 || got.MarginPercent != 15 || got.SalesTaxPercent != 8.25 {
		t.Errorf("saved settings = %+v", got)
	}
}

func TestSettingsCmd_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cmd  SettingsCmd
		want string
	}{
		{"overhead not offered", SettingsCmd{OverheadPercent: ptr(33)}, "is not one of"},
		{"margin outside table", SettingsCmd{MarginPercent: ptr(0)}, "has no markup entry"},
		{"adder out of range", SettingsCmd{MiscPercent: ptr(120.0)}, "misc percent must be between 0 and 100"},
		{"negative labor rate", SettingsCmd{LaborRate: ptr(-1.0)}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := setupTestDB(t)
			before, _ := ctx.Store.(storage.SettingsStore).GetSettings()

			cmd := tt.cmd
			err := cmd.Run(ctx)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Run() error = %v, want %q", err, tt.want)
			}
			after, _ := ctx.Store.(storage.SettingsStore).GetSettings()
			if after != before {
				t.Errorf("settings changed on rejected update: %+v", after)
			}
		})
	}
}

func TestSettingsCmd_NoChanges(t *testing.T) {
	ctx, out := setupTestDB(t)
	if err := (&SettingsCmd{}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No changes specified") {
		t.Errorf("output = %q", out.String())
	}
}

type bareBackend struct {
	storage.Backend
}

func TestSettingsCmd_UnsupportedBackend(t *testing.T) {
	ctx := &cli.Context{Store: bareBackend{storage.NewMemoryStore()}}
	if err := (&SettingsCmd{List: true}).Run(ctx); !errors.Is(err, apperrors.ErrUnsupportedBackend) {
		t.Errorf("Run() = %v, want ErrUnsupportedBackend", err)
	}
}
