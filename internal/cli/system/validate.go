package system

import (
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/namespace"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/validation"
)

type ValidateCmd struct{}

func (c *ValidateCmd) Run(ctx *cli.Context) error {
	result, err := validateStore(ctx.Store)
	if err != nil {
		return err
	}
	fmt.Fprint(ctx.Stdout(), result.FormatReport())
	if result.HasConflicts() {
		return fmt.Errorf("found %d conflict(s)", len(result.Conflicts))
	}
	return nil
}

// validateStore checks every stored scope, the pricing settings, and the
// unscoped legacy keys.
func validateStore(backend storage.Backend) (validation.ValidationResult, error) {
	result := validation.ValidationResult{Conflicts: []validation.Conflict{}}
	v := validation.New()

	keys, err := backend.Keys("")
	if err != nil {
		return result, fmt.Errorf("failed to list keys: %w", err)
	}

	store := storage.NewStore(backend, nil)
	for _, scope := range namespace.Scopes(keys) {
		data := validation.ScopeData{Scope: scope.Scope}
		data.Grid, _ = store.ReadGrid(scope)
		data.GridTotals, _ = store.ReadTotals(scope)
		data.Document, _ = store.ReadDocument(scope)
		result.Merge(v.ValidateScope(data))
	}

	if ss, ok := backend.(storage.SettingsStore); ok {
		settings, err := ss.GetSettings()
		if err != nil {
			return result, fmt.Errorf("failed to get settings: %w", err)
		}
		result.Merge(v.ValidateSettings(settings))
	}

	var legacy []string
	for _, key := range namespace.LegacyKeys {
		if store.Has(key) {
			legacy = append(legacy, key)
		}
	}
	result.Merge(v.ValidateLegacyKeys(legacy))

	return result, nil
}
