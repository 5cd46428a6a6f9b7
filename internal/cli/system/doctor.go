package system

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/instances"
	"github.com/julianstephens/estimator/internal/keyring"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/namespace"
)

// errSkipped marks a check that does not apply to the configured backend.
var errSkipped = errors.New("not applicable")

type check struct {
	name string
	// warn checks report problems without failing the command
	warn bool
	// needsStore checks are skipped when storage is unreachable
	needsStore bool
	run        func(ctx *cli.Context) error
}

var doctorChecks = []check{
	{name: "Schema version", needsStore: true, run: checkSchemaVersion},
	{name: "Migrations complete", needsStore: true, run: checkMigrationsComplete},
	{name: "Data validation", needsStore: true, run: checkValidation},
	{name: "OS keyring", warn: true, run: checkKeyring},
	{name: "Catalog configured", warn: true, run: checkCatalog},
	{name: "Other sessions", warn: true, run: checkInstances},
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	out := ctx.Stdout()
	fmt.Fprintln(out, "Running diagnostics...")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Backend: %s (%s)\n", cli.DescribeBackend(ctx.Store), ctx.Store.Path())
	fmt.Fprintf(out, "  Log file: %s\n\n", logger.Path(ctx.ConfigDir))

	hasError := false
	reachable := true
	if err := checkStoreReachable(ctx); err != nil {
		report(out, "Storage reachable", err, false)
		hasError = true
		reachable = false
	} else {
		report(out, "Storage reachable", nil, false)
	}

	for _, c := range doctorChecks {
		if c.needsStore && !reachable {
			fmt.Fprintf(out, "⊘ %s: SKIPPED (storage not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		report(out, c.name, err, c.warn)
		if err != nil && !errors.Is(err, errSkipped) && !c.warn {
			hasError = true
		}
	}

	fmt.Fprintln(out)
	if hasError {
		return fmt.Errorf("diagnostics found problems")
	}
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func report(out io.Writer, name string, err error, warn bool) {
	switch {
	case err == nil:
		fmt.Fprintf(out, "✓ %s: OK\n", name)
	case errors.Is(err, errSkipped):
		fmt.Fprintf(out, "⊘ %s: SKIPPED (%v)\n", name, err)
	case warn:
		fmt.Fprintf(out, "⚠ %s: WARNING\n", name)
		fmt.Fprintf(out, "   %v\n", err)
	default:
		fmt.Fprintf(out, "❌ %s: FAIL\n", name)
		fmt.Fprintf(out, "   Error: %v\n", err)
	}
}

func checkStoreReachable(ctx *cli.Context) error {
	if ctx.Store == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := ctx.Store.Keys("")
	return err
}

func schemaVersions(ctx *cli.Context) (int, int, error) {
	r, ok := ctx.Store.(schemaReporter)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s storage has no schema", errSkipped, cli.DescribeBackend(ctx.Store))
	}
	return r.SchemaVersions()
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, err := schemaVersions(ctx)
	if err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported (%d); upgrade the client", current, latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	current, latest, err := schemaVersions(ctx)
	if err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("%d pending migration(s) (run 'estimator migrate')", latest-current)
	}
	return nil
}

func checkValidation(ctx *cli.Context) error {
	result, err := validateStore(ctx.Store)
	if err != nil {
		return err
	}
	if result.HasConflicts() {
		return errors.New(strings.TrimSpace(result.FormatReport()))
	}
	return nil
}

func checkKeyring(*cli.Context) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	return nil
}

func checkCatalog(ctx *cli.Context) error {
	if _, err := ctx.Catalog(); err != nil {
		return fmt.Errorf("%v (set --api-url or run 'estimator catalog import')", err)
	}
	return nil
}

func checkInstances(ctx *cli.Context) error {
	scope := namespace.Resolve(ctx.EstimateID).Scope
	others, err := instances.Others(ctx.InstancesDir(), scope)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		pids := make([]string, len(others))
		for i, o := range others {
			pids[i] = fmt.Sprint(o.PID)
		}
		return fmt.Errorf("%d other session(s) editing %s (pid %s)", len(others), scope, strings.Join(pids, ", "))
	}
	return nil
}
