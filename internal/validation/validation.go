package validation

import (
	"fmt"
	"math"
	"slices"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictFinalHoursDrift     ConflictType = "final_hours_drift"
	ConflictEstimatedHoursDrift ConflictType = "estimated_hours_drift"
	ConflictDjeTotalDrift       ConflictType = "dje_total_drift"
	ConflictUnknownLaborFactor  ConflictType = "unknown_labor_factor"
	ConflictPercentOutOfRange   ConflictType = "percent_out_of_range"
	ConflictMarginOutsideTable  ConflictType = "margin_outside_table"
	ConflictOverheadNotOffered  ConflictType = "overhead_not_offered"
	ConflictLegacyKeys          ConflictType = "legacy_keys"
)

// Conflict represents an inconsistency found in stored estimate data
type Conflict struct {
	Type        ConflictType
	Description string
	Scope       string
	Items       []string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// Merge appends the conflicts of other.
func (vr *ValidationResult) Merge(other ValidationResult) {
	vr.Conflicts = append(vr.Conflicts, other.Conflicts...)
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	report := "Conflicts detected:\n"
	for _, c := range vr.Conflicts {
		if c.Scope != "" {
			report += fmt.Sprintf("- [%s] %s\n", c.Scope, c.Description)
			continue
		}
		report += fmt.Sprintf("- %s\n", c.Description)
	}
	return report
}

// ScopeData is everything stored for one scope.
type ScopeData struct {
	Scope      string
	Grid       []models.GridRow
	GridTotals models.GridTotals
	Document   models.EstimateDocument
}

// tolerance for comparing stored money and hour figures
const epsilon = 0.005

func drifted(a, b float64) bool {
	return math.Abs(a-b) > epsilon
}

// MarginInTable reports whether p has an entry in the markup table.
func MarginInTable(p int) bool {
	if p >= 1 && p <= constants.MaxContiguousMarginPercent {
		return true
	}
	return p == constants.FullMarginPercent || slices.Contains(constants.ExtraMarginPercents, p)
}

// Validator checks stored estimate data for inconsistencies
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateScope checks the grid and document of one scope.
func (v *Validator) ValidateScope(d ScopeData) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}
	add := func(typ ConflictType, items []string, format string, args ...any) {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        typ,
			Description: fmt.Sprintf(format, args...),
			Scope:       d.Scope,
			Items:       items,
		})
	}

	for i, r := range d.Grid {
		if r.IsBlank() {
			continue
		}
		if !models.IsLaborFactor(r.LaborAdjustmentFactor) {
			add(ConflictUnknownLaborFactor, []string{fmt.Sprint(i)},
				"Grid row %d has labor factor %v, which is not offered", i+1, r.LaborAdjustmentFactor)
		}
	}

	if d.Grid != nil {
		_, labor := models.SumGrid(d.Grid)
		if drifted(labor, d.GridTotals.LaborHours) {
			add(ConflictEstimatedHoursDrift, nil,
				"Stored estimated hours %.2f differ from the grid rows (%.2f)", d.GridTotals.LaborHours, labor)
		}
	}

	t := d.Document.Totals
	if want := t.Estimated + t.Adjustments + t.Additional; drifted(t.Final, want) {
		add(ConflictFinalHoursDrift, nil,
			"Final hours %.2f do not equal estimated + adjustments + additional (%.2f)", t.Final, want)
	}

	for _, table := range []struct {
		name string
		rows []models.AdjustmentRow
	}{
		{"adjustments", d.Document.Adjustments},
		{"additional labor", d.Document.AdditionalLabor},
	} {
		for i, r := range table.rows {
			if r.Percent < 0 || r.Percent > 100 {
				add(ConflictPercentOutOfRange, []string{r.Label},
					"%s row %d (%q) has percent %d outside 0..100", table.name, i+1, r.Label, r.Percent)
			}
		}
	}

	var dje float64
	for _, r := range d.Document.Costs.Rows {
		r.Recompute()
		dje += r.Extension
	}
	if drifted(dje, d.Document.Costs.Total) {
		add(ConflictDjeTotalDrift, nil,
			"DJE total %.2f differs from the sum of its rows (%.2f)", d.Document.Costs.Total, dje)
	}

	if d.Document.PricingSource != "" {
		result.Merge(v.validatePricing(d.Scope, d.Document.Materials.MarginPercent, d.Document.Materials.OverheadPercent))
	}
	return result
}

// ValidateSettings checks the application pricing defaults.
func (v *Validator) ValidateSettings(s models.Settings) ValidationResult {
	return v.validatePricing("settings", s.MarginPercent, s.OverheadPercent)
}

func (v *Validator) validatePricing(scope string, margin, overhead float64) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}
	if margin != math.Trunc(margin) || !MarginInTable(int(margin)) {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictMarginOutsideTable,
			Description: fmt.Sprintf("Margin %v%% has no markup entry and prices at cost", margin),
			Scope:       scope,
		})
	}
	if overhead != math.Trunc(overhead) || !slices.Contains(constants.OverheadOptions, int(overhead)) {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictOverheadNotOffered,
			Description: fmt.Sprintf("Overhead %v%% is not one of %v", overhead, constants.OverheadOptions),
			Scope:       scope,
		})
	}
	return result
}

// ValidateLegacyKeys reports unscoped keys left by older builds.
func (v *Validator) ValidateLegacyKeys(present []string) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}
	if len(present) > 0 {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictLegacyKeys,
			Description: fmt.Sprintf("Unscoped legacy keys present: %v (run `estimator reset --legacy`)", present),
			Items:       present,
		})
	}
	return result
}
