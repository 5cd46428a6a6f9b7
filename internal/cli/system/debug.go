package system

import (
	"encoding/json"
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/storage"
)

type DebugCmd struct {
	DBPath       DebugDBPathCmd       `cmd:"" name:"db-path" help:"Show storage path."`
	Keys         DebugKeysCmd         `cmd:"" help:"List stored keys."`
	DumpScope    DebugDumpScopeCmd    `cmd:"" help:"Dump one scope as JSON."`
	DumpSettings DebugDumpSettingsCmd `cmd:"" help:"Dump pricing settings as JSON."`
}

func printJSON(ctx *cli.Context, v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(ctx.Stdout(), string(jsonBytes))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(ctx, map[string]string{
		"backend": cli.DescribeBackend(ctx.Store),
		"path":    ctx.Store.Path(),
	})
}

type DebugKeysCmd struct {
	Prefix string `arg:"" optional:"" help:"Only keys starting with this prefix."`
}

func (cmd *DebugKeysCmd) Run(ctx *cli.Context) error {
	keys, err := ctx.Store.Keys(cmd.Prefix)
	if err != nil {
		return err
	}
	if keys == nil {
		keys = []string{}
	}
	return printJSON(ctx, keys)
}

// scopeDump is the stored state of one scope.
type scopeDump struct {
	Scope    string                   `json:"scope"`
	Grid     []models.GridRow         `json:"grid"`
	Totals   *models.GridTotals       `json:"totals"`
	Document *models.EstimateDocument `json:"document"`
}

type DebugDumpScopeCmd struct {
	Fast bool `help:"Dump the unsaved session instead of --estimate."`
}

func (cmd *DebugDumpScopeCmd) Run(ctx *cli.Context) error {
	keys := namespace.FastKeys()
	if !cmd.Fast {
		if err := ctx.RequireEstimate(); err != nil {
			return err
		}
		keys = namespace.Resolve(ctx.EstimateID)
	}

	store := storage.NewStore(ctx.Store, nil)
	dump := scopeDump{Scope: keys.Scope}
	dump.Grid, _ = store.ReadGrid(keys)
	if t, ok := store.ReadTotals(keys); ok {
		dump.Totals = &t
	}
	if doc, ok := store.ReadDocument(keys); ok {
		dump.Document = &doc
	}
	return printJSON(ctx, dump)
}

type DebugDumpSettingsCmd struct{}

func (cmd *DebugDumpSettingsCmd) Run(ctx *cli.Context) error {
	ss, ok := ctx.Store.(storage.SettingsStore)
	if !ok {
		return apperrors.ErrUnsupportedBackend
	}
	settings, err := ss.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	return printJSON(ctx, settings)
}
