package system

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/estimator/internal/backup"
	"github.com/julianstephens/estimator/internal/cli"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/instances"
)

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	if !cli.IsFileBacked(ctx.Store) {
		return nil, fmt.Errorf("backups are only supported for SQLite and JSON storage: %w", apperrors.ErrUnsupportedBackend)
	}
	return backup.NewManager(ctx.Store.Path()), nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path, err := mgr.Create("manual")
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Fprintf(ctx.Stdout(), "✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	list, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	out := ctx.Stdout()

	if len(list) == 0 {
		fmt.Fprintln(out, "No backups found.")
		fmt.Fprintf(out, "Backups are stored in: %s\n", mgr.Dir())
		return nil
	}

	fmt.Fprintf(out, "Available backups (%d total, keeping most recent %d):\n\n", len(list), backup.MaxBackups)
	for _, b := range list {
		reason := b.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(out, "  %s  %-12s  %s  (%s)\n",
			b.Taken.Format("2006-01-02 15:04:05"), reason, filepath.Base(b.Path), humanize.Bytes(uint64(b.Size)))
	}
	fmt.Fprintf(out, "\nBackup directory: %s\n", mgr.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `help:"Skip the confirmation prompt." short:"y"`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	out := ctx.Stdout()

	path, err := resolveBackup(mgr, c.BackupFile)
	if err != nil {
		return err
	}
	running, err := instances.List(ctx.InstancesDir())
	if err != nil {
		return fmt.Errorf("failed to check running sessions: %w", err)
	}
	if len(running) > 0 {
		return fmt.Errorf("%d estimator session(s) are running; close them before restoring", len(running))
	}

	if !c.Yes {
		fmt.Fprintln(out, "⚠️  WARNING: This will replace your current storage with the backup.")
		fmt.Fprintln(out, "A backup of your current storage will be created before restoring.")
		fmt.Fprintf(out, "\nRestore from: %s\n", path)
		fmt.Fprint(out, "Continue? [y/N]: ")

		response, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close storage: %v\n", err)
	}
	current, err := mgr.Restore(path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to reopen restored storage: %w", err)
	}

	if current != "" {
		fmt.Fprintf(out, "Created backup of current storage: %s\n", filepath.Base(current))
	}
	fmt.Fprintln(out, "✓ Storage restored successfully!")
	return nil
}

// resolveBackup accepts an absolute path, a path relative to the working
// directory, or a file name inside the backup directory.
func resolveBackup(mgr *backup.Manager, name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("backup file not found: %s", name)
		}
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		return filepath.Abs(name)
	}
	candidate := filepath.Join(mgr.Dir(), name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", mgr.Dir())
}
