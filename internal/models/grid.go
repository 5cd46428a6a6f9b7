package models

import "github.com/julianstephens/estimator/internal/constants"

// GridRow is one line of the material/labor grid. The extension fields are
// derived and never persisted; Recompute rebuilds them from the inputs.
type GridRow struct {
	Notes                 string  `json:"notes"`
	MaterialType          string  `json:"type"`
	DescriptionID         string  `json:"descValue"`
	DescriptionLabel      string  `json:"descText"`
	Quantity              int     `json:"qty"`
	LaborAdjustmentFactor float64 `json:"ladj"`
	UnitCost              float64 `json:"unitCost,omitempty"`
	LaborUnitHours        float64 `json:"laborUnit,omitempty"`
	Unit                  string  `json:"unit,omitempty"`
	MaterialExtension     float64 `json:"-"`
	LaborHoursExtension   float64 `json:"-"`
}

// NewGridRow returns a blank row with the default labor factor.
func NewGridRow() GridRow {
	return GridRow{LaborAdjustmentFactor: constants.DefaultLaborFactor}
}

// Factor returns the row's labor adjustment factor, falling back to the
// default for values outside the allowed set.
func (r GridRow) Factor() float64 {
	if IsLaborFactor(r.LaborAdjustmentFactor) {
		return r.LaborAdjustmentFactor
	}
	return constants.DefaultLaborFactor
}

// Recompute derives both extensions from quantity, unit cost, labor unit
// hours and the labor factor.
func (r *GridRow) Recompute() {
	if r.Quantity < 0 {
		r.Quantity = 0
	}
	r.LaborAdjustmentFactor = r.Factor()
	q := float64(r.Quantity)
	r.MaterialExtension = q * r.UnitCost
	r.LaborHoursExtension = q * r.LaborUnitHours * r.LaborAdjustmentFactor
}

// ClearDescription drops the selected description and everything derived
// from it, including quantity.
func (r *GridRow) ClearDescription() {
	r.DescriptionID = ""
	r.DescriptionLabel = ""
	r.UnitCost = 0
	r.LaborUnitHours = 0
	r.Unit = ""
	r.Quantity = 0
	r.Recompute()
}

// ClearType drops the material type along with the description.
func (r *GridRow) ClearType() {
	r.MaterialType = ""
	r.ClearDescription()
}

// IsBlank reports whether the row carries no user input at all.
func (r GridRow) IsBlank() bool {
	return r.Notes == "" && r.MaterialType == "" && r.DescriptionID == "" && r.Quantity == 0
}

// IsLaborFactor reports whether f is one of the allowed labor factors.
func IsLaborFactor(f float64) bool {
	for _, v := range constants.LaborFactors {
		if v == f {
			return true
		}
	}
	return false
}

// GridEnvelope is the versioned on-disk form of the grid.
type GridEnvelope struct {
	V    int       `json:"v"`
	Rows []GridRow `json:"rows"`
}

// GridTotals are the header totals the grid publishes for the other pages.
type GridTotals struct {
	MaterialCost float64 `json:"material_cost_price_sheet"`
	LaborHours   float64 `json:"labor_hours_pricing_sheet"`
	UpdatedAt    int64   `json:"updated_at"`
}

// SumGrid totals the extensions across rows.
func SumGrid(rows []GridRow) (material, labor float64) {
	for _, r := range rows {
		material += r.MaterialExtension
		labor += r.LaborHoursExtension
	}
	return material, labor
}
