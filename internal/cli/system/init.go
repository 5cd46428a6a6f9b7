package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/storage/postgres"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing storage before initialization."`
	Source string `help:"Source database path or connection string to copy estimates and settings from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	out := ctx.Stdout()

	if c.Force && cli.IsFileBacked(ctx.Store) {
		dbPath := ctx.Store.Path()
		// Don't delete if it's the source (user error protection)
		if c.Source != "" {
			absDbPath, err := filepath.Abs(dbPath)
			if err == nil {
				dbPath = absDbPath
			}
			absSource, err := filepath.Abs(cli.ExpandHome(c.Source))
			if err == nil && absSource == dbPath {
				return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			saved, err := ctx.Snapshot("pre-init")
			if err != nil {
				return fmt.Errorf("failed to back up existing storage: %w", err)
			}
			fmt.Fprintf(out, "Backed up existing storage to: %s\n", saved)
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing storage: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing storage: %w", err)
			}
			fmt.Fprintf(out, "Deleted existing storage at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing storage: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Initialized %s storage at: %s\n", constants.AppName, ctx.Store.Path())

	if c.Source != "" {
		fmt.Fprintf(out, "Copying data from: %s\n", c.Source)
		if err := c.copyData(ctx, c.Source); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Fprintln(out, "Migration completed successfully!")
	}

	return nil
}

func (c *InitCmd) copyData(ctx *cli.Context, sourcePath string) error {
	out := ctx.Stdout()
	if cli.IsPostgres(sourcePath) {
		if valid, err := postgres.ValidateConnString(sourcePath); !valid {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("PostgreSQL source connection string contains embedded credentials. Use environment variables or .pgpass instead")
			}
			return err
		}
	}
	source, err := cli.OpenBackend(sourcePath, false)
	if err != nil {
		return err
	}
	if err := source.Load(); err != nil {
		return fmt.Errorf("failed to load source storage: %w", err)
	}
	defer source.Close()

	if from, ok := source.(storage.SettingsStore); ok {
		if to, ok := ctx.Store.(storage.SettingsStore); ok {
			fmt.Fprintln(out, "  Copying settings...")
			settings, err := from.GetSettings()
			if err != nil {
				return fmt.Errorf("failed to get settings from source: %w", err)
			}
			if err := to.SaveSettings(settings); err != nil {
				return fmt.Errorf("failed to save settings to destination: %w", err)
			}
		}
	}

	fmt.Fprintln(out, "  Copying estimates...")
	n, err := CopyKeys(source, ctx.Store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "    Copied %d keys\n", n)
	return nil
}

// CopyKeys copies every scoped key from src to dst.
func CopyKeys(src, dst storage.Backend) (int, error) {
	keys, err := src.Keys(constants.KeyRoot + ".")
	if err != nil {
		return 0, fmt.Errorf("failed to list source keys: %w", err)
	}
	n := 0
	for _, key := range keys {
		value, ok, err := src.Get(key)
		if err != nil {
			return n, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		if err := dst.Set(key, value); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", key, err)
		}
		n++
	}
	return n, nil
}
