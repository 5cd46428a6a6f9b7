package models

// MaterialOption is a description choice for a material type. Prices and
// labor are already normalised to a single each.
type MaterialOption struct {
	ID             string  `json:"id"`
	Description    string  `json:"item_description"`
	UnitPrice      float64 `json:"price_each"`
	LaborUnitHours float64 `json:"labor_each"`
	Unit           string  `json:"unit"`
	PackSize       int     `json:"unit_quantity_size,omitempty"`
}

// Assembly is a bundled set of materials priced through a rollup.
type Assembly struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AssemblyRollup is the per-each cost of an assembly.
type AssemblyRollup struct {
	AssemblyID        string  `json:"assembly_id"`
	MaterialCostTotal float64 `json:"material_cost_total"`
	LaborHoursTotal   float64 `json:"labor_hours_total"`
	ComponentCount    int     `json:"component_count"`
}

// DjeOption is a leaf choice of the DJE cascade.
type DjeOption struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	UnitCost    float64 `json:"cost"`
}

// PerEach divides a pack price by its pack size. Non-positive sizes count as one.
func PerEach(value float64, packSize int) float64 {
	if packSize <= 0 {
		packSize = 1
	}
	return value / float64(packSize)
}
