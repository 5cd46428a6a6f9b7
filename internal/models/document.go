package models

// AdjustmentRow is one line of a labor adjustment table.
type AdjustmentRow struct {
	Label   string  `json:"label"`
	Percent int     `json:"percent"`
	Hours   float64 `json:"hours"`
}

// LaborTotals is the hours block of the estimate document.
type LaborTotals struct {
	Estimated   float64 `json:"estimated"`
	Adjustments float64 `json:"adjustments"`
	Additional  float64 `json:"additional"`
	Final       float64 `json:"final"`
	LaborRate   float64 `json:"laborRate"`
}

// Normalize re-derives Final from its parts.
func (t *LaborTotals) Normalize() {
	t.Final = t.Estimated + t.Adjustments + t.Additional
}

// MaterialAdders holds the percentage configuration of the pricing pyramid.
type MaterialAdders struct {
	MiscPercent       float64 `json:"misc_percent"`
	SmallToolsPercent float64 `json:"small_tools_percent"`
	LargeToolsPercent float64 `json:"large_tools_percent"`
	WasteTheftPercent float64 `json:"waste_theft_percent"`
	SalesTaxPercent   float64 `json:"sales_tax_percent"`
	OverheadPercent   float64 `json:"overhead_percent"`
	MarginPercent     float64 `json:"margin_percent"`
}

// DjeRow is one direct job expense line.
type DjeRow struct {
	Notes            string  `json:"notes"`
	CategoryID       string  `json:"cat_id"`
	SubcategoryID    string  `json:"sub_id"`
	DescriptionID    string  `json:"desc_id"`
	DescriptionLabel string  `json:"desc_text,omitempty"`
	Quantity         int     `json:"qty"`
	Multiplier       int     `json:"multi"`
	UnitCost         float64 `json:"unit_cost"`
	Extension        float64 `json:"-"`
}

// NewDjeRow returns a blank DJE row with the default multiplier.
func NewDjeRow() DjeRow {
	return DjeRow{Multiplier: 1}
}

// Recompute derives the extension.
func (r *DjeRow) Recompute() {
	if r.Quantity < 0 {
		r.Quantity = 0
	}
	if r.Multiplier < 1 {
		r.Multiplier = 1
	}
	r.Extension = float64(r.Quantity) * float64(r.Multiplier) * r.UnitCost
}

// IsBlank reports whether the row carries no user input.
func (r DjeRow) IsBlank() bool {
	return r.Notes == "" && r.CategoryID == "" && r.Quantity == 0
}

// DjeCosts is the costs block of the estimate document.
type DjeCosts struct {
	Total float64  `json:"dje"`
	Rows  []DjeRow `json:"dje_rows"`
}

// EstimateDocument is the per-scope aggregate document. Each engine owns one
// slice of it: labor tables own Adjustments/AdditionalLabor and the hour
// totals, DJE owns Costs, the summary owns Materials and the labor rate.
type EstimateDocument struct {
	Adjustments     []AdjustmentRow `json:"adjustments"`
	AdditionalLabor []AdjustmentRow `json:"additionalLabor"`
	Totals          LaborTotals     `json:"totals"`
	Materials       MaterialAdders  `json:"materials"`
	Costs           DjeCosts        `json:"costs"`
	// PricingSource records where Materials was seeded from; empty means
	// the block has never been seeded.
	PricingSource string `json:"pricingSource,omitempty"`
}

// Clone returns a deep copy.
func (d EstimateDocument) Clone() EstimateDocument {
	out := d
	out.Adjustments = append([]AdjustmentRow(nil), d.Adjustments...)
	out.AdditionalLabor = append([]AdjustmentRow(nil), d.AdditionalLabor...)
	out.Costs.Rows = append([]DjeRow(nil), d.Costs.Rows...)
	return out
}

// IsEmpty reports whether the document carries any user data.
func (d EstimateDocument) IsEmpty() bool {
	for _, r := range d.Adjustments {
		if r.Percent != 0 || r.Hours != 0 {
			return false
		}
	}
	for _, r := range d.AdditionalLabor {
		if r.Percent != 0 || r.Hours != 0 {
			return false
		}
	}
	for _, r := range d.Costs.Rows {
		if !r.IsBlank() {
			return false
		}
	}
	return d.Costs.Total == 0 && d.Totals == (LaborTotals{}) && d.PricingSource == ""
}

// EstimateTotals is the read-only aggregate view the summary computes from.
type EstimateTotals struct {
	EstimatedHours       float64
	AdjustmentsHours     float64
	AdditionalHours      float64
	FinalHours           float64
	MaterialCostFromGrid float64
	DjeTotal             float64
	LaborRate            float64
	MaterialAdders       MaterialAdders
}

// Recompute re-derives FinalHours from its parts.
func (t *EstimateTotals) Recompute() {
	t.FinalHours = t.EstimatedHours + t.AdjustmentsHours + t.AdditionalHours
}

// CollectTotals assembles EstimateTotals from the document and grid totals.
// Grid totals win for the estimated hours once the grid has written them.
func CollectTotals(doc EstimateDocument, grid GridTotals) EstimateTotals {
	estimated := doc.Totals.Estimated
	if grid.UpdatedAt != 0 {
		estimated = grid.LaborHours
	}
	t := EstimateTotals{
		EstimatedHours:       estimated,
		AdjustmentsHours:     doc.Totals.Adjustments,
		AdditionalHours:      doc.Totals.Additional,
		MaterialCostFromGrid: grid.MaterialCost,
		DjeTotal:             doc.Costs.Total,
		LaborRate:            doc.Totals.LaborRate,
		MaterialAdders:       doc.Materials,
	}
	t.Recompute()
	return t
}
