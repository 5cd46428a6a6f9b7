package validation

import (
	"strings"
	"testing"

	"github.com/julianstephens/estimator/internal/models"
)

func hasConflict(result ValidationResult, typ ConflictType) bool {
	for _, c := range result.Conflicts {
		if c.Type == typ {
			return true
		}
	}
	return false
}

func consistentScope() ScopeData {
	row := models.GridRow{MaterialType: "Wire", Quantity: 10, UnitCost: 2.5, LaborUnitHours: 0.5, LaborAdjustmentFactor: 1}
	row.Recompute()
	return ScopeData{
		Scope:      "estimate:7",
		Grid:       []models.GridRow{row, models.NewGridRow()},
		GridTotals: models.GridTotals{MaterialCost: 25, LaborHours: 5},
		Document: models.EstimateDocument{
			Adjustments: []models.AdjustmentRow{{Label: "Building Conditions", Percent: 10, Hours: 0.5}},
			Totals:      models.LaborTotals{Estimated: 5, Adjustments: 0.5, Final: 5.5},
			Costs: models.DjeCosts{
				Total: 90,
				Rows:  []models.DjeRow{{CategoryID: "Equipment", Quantity: 3, Multiplier: 2, UnitCost: 15}},
			},
		},
	}
}

func TestValidateScope_Consistent(t *testing.T) {
	result := New().ValidateScope(consistentScope())
	if result.HasConflicts() {
		t.Errorf("unexpected conflicts:\n%s", result.FormatReport())
	}
	if got := result.FormatReport(); got != "No conflicts detected." {
		t.Errorf("FormatReport = %q", got)
	}
}

func TestValidateScope_Drift(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ScopeData)
		want   ConflictType
	}{
		{
			name:   "final hours",
			mutate: func(d *ScopeData) { d.Document.Totals.Final = 9 },
			want:   ConflictFinalHoursDrift,
		},
		{
			name:   "estimated hours",
			mutate: func(d *ScopeData) { d.GridTotals.LaborHours = 4 },
			want:   ConflictEstimatedHoursDrift,
		},
		{
			name:   "dje total",
			mutate: func(d *ScopeData) { d.Document.Costs.Total = 100 },
			want:   ConflictDjeTotalDrift,
		},
		{
			name:   "labor factor",
			mutate: func(d *ScopeData) { d.Grid[0].LaborAdjustmentFactor = 1.3 },
			want:   ConflictUnknownLaborFactor,
		},
		{
			name:   "percent",
			mutate: func(d *ScopeData) { d.Document.Adjustments[0].Percent = 140 },
			want:   ConflictPercentOutOfRange,
		},
		{
			name: "margin",
			mutate: func(d *ScopeData) {
				d.Document.PricingSource = "settings"
				d.Document.Materials.MarginPercent = 57
				d.Document.Materials.OverheadPercent = 30
			},
			want: ConflictMarginOutsideTable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := consistentScope()
			tt.mutate(&d)
			result := New().ValidateScope(d)
			if !hasConflict(result, tt.want) {
				t.Errorf("expected %s conflict, got:\n%s", tt.want, result.FormatReport())
			}
			if len(result.Conflicts) != 1 {
				t.Errorf("expected exactly one conflict, got %d", len(result.Conflicts))
			}
		})
	}
}

func TestValidateScope_UnseededPricingIgnored(t *testing.T) {
	d := consistentScope()
	d.Document.Materials.MarginPercent = 57
	if result := New().ValidateScope(d); result.HasConflicts() {
		t.Errorf("unseeded materials block validated:\n%s", result.FormatReport())
	}
}

func TestValidateSettings(t *testing.T) {
	v := New()
	if result := v.ValidateSettings(models.DefaultSettings()); result.HasConflicts() {
		t.Errorf("defaults have conflicts:\n%s", result.FormatReport())
	}

	s := models.DefaultSettings()
	s.MarginPercent = 12.5
	s.OverheadPercent = 33
	result := v.ValidateSettings(s)
	if !hasConflict(result, ConflictMarginOutsideTable) || !hasConflict(result, ConflictOverheadNotOffered) {
		t.Errorf("expected margin and overhead conflicts, got:\n%s", result.FormatReport())
	}
	if !strings.Contains(result.FormatReport(), "[settings]") {
		t.Errorf("report missing scope: %s", result.FormatReport())
	}
}

func TestMarginInTable(t *testing.T) {
	for _, p := range []int{1, 10, 25, 30, 40, 50, 100} {
		if !MarginInTable(p) {
			t.Errorf("MarginInTable(%d) = false", p)
		}
	}
	for _, p := range []int{0, 26, 35, 57, 99, 101} {
		if MarginInTable(p) {
			t.Errorf("MarginInTable(%d) = true", p)
		}
	}
}

func TestValidateLegacyKeys(t *testing.T) {
	v := New()
	if r := v.ValidateLegacyKeys(nil); r.HasConflicts() {
		t.Error("no keys reported a conflict")
	}
	r := v.ValidateLegacyKeys([]string{"estimateData"})
	if !hasConflict(r, ConflictLegacyKeys) {
		t.Error("legacy keys not reported")
	}
}
