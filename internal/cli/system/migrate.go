package system

import (
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
)

// migrator is implemented by the SQL backends.
type migrator interface {
	Migrate(logFn func(string)) (int, error)
}

type schemaReporter interface {
	SchemaVersions() (current, latest int, err error)
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	m, ok := ctx.Store.(migrator)
	if !ok {
		return fmt.Errorf("migrate command only supports SQLite and PostgreSQL storage")
	}
	out := ctx.Stdout()

	if r, ok := ctx.Store.(schemaReporter); ok {
		if current, latest, err := r.SchemaVersions(); err == nil && current < latest {
			saved, err := ctx.Snapshot("pre-migrate")
			if err != nil {
				return fmt.Errorf("failed to back up before migrating: %w", err)
			}
			if saved != "" {
				fmt.Fprintf(out, "Backed up storage to: %s\n", saved)
			}
		}
	}

	count, err := m.Migrate(func(msg string) {
		fmt.Fprintln(out, msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Fprintln(out, "No migrations to apply. Database is up to date.")
	} else {
		fmt.Fprintf(out, "\nSuccessfully applied %d migration(s).\n", count)
	}

	return nil
}
