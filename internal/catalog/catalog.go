// Package catalog provides the material, assembly, and direct job expense
// choices the estimate pages select from.
package catalog

import (
	"context"
	"strings"

	"github.com/julianstephens/estimator/internal/constants"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/models"
)

// Source answers catalog lookups. Implementations: api.Client (remote),
// Workbook (xlsx seed), and Cache (memoising wrapper).
type Source interface {
	MaterialTypes(ctx context.Context) ([]string, error)
	MaterialDescriptions(ctx context.Context, materialType string) ([]models.MaterialOption, error)
	Assemblies(ctx context.Context) ([]models.Assembly, error)
	AssemblyRollup(ctx context.Context, assemblyID string) (models.AssemblyRollup, error)
	DjeCategories(ctx context.Context) ([]string, error)
	DjeSubcategories(ctx context.Context, category string) ([]string, error)
	DjeDescriptions(ctx context.Context, category, subcategory string) ([]models.DjeOption, error)
}

// WithAssemblies puts the assemblies pseudo-type first and drops blanks and
// duplicates, keeping first-seen order.
func WithAssemblies(types []string) []string {
	out := []string{constants.AssembliesType}
	seen := map[string]bool{strings.ToLower(constants.AssembliesType): true}
	for _, t := range types {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

// Offline is the Source used when neither an API nor a seed workbook is
// configured. Every lookup fails, which the pages show as a load error.
type Offline struct{}

func (Offline) MaterialTypes(context.Context) ([]string, error) {
	return nil, apperrors.ErrCatalogUnavailable
}

func (Offline) MaterialDescriptions(context.Context, string) ([]models.MaterialOption, error) {
	return nil, apperrors.ErrCatalogUnavailable
}

func (Offline) Assemblies(context.Context) ([]models.Assembly, error) {
	return nil, apperrors.ErrCatalogUnavailable
}

func (Offline) AssemblyRollup(context.Context, string) (models.AssemblyRollup, error) {
	return models.AssemblyRollup{}, apperrors.ErrCatalogUnavailable
}

func (Offline) DjeCategories(context.Context) ([]string, error) {
	return nil, apperrors.ErrCatalogUnavailable
}

func (Offline) DjeSubcategories(context.Context, string) ([]string, error) {
	return nil, apperrors.ErrCatalogUnavailable
}

func (Offline) DjeDescriptions(context.Context, string, string) ([]models.DjeOption, error) {
	return nil, apperrors.ErrCatalogUnavailable
}
