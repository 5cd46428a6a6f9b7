package models

// SummaryExport is the frozen summary state stored alongside a saved payload.
type SummaryExport struct {
	Controls map[string]float64 `json:"controls"`
	Cells    map[string]string  `json:"cells"`
}

// Payload bundles everything an explicit save sends to the server.
type Payload struct {
	Grid          GridEnvelope     `json:"grid"`
	Totals        GridTotals       `json:"totals"`
	EstimateData  EstimateDocument `json:"estimateData"`
	SummaryExport *SummaryExport   `json:"summary_export,omitempty"`
}

// IsEmpty reports whether the payload carries no grid rows and an empty document.
func (p Payload) IsEmpty() bool {
	for _, r := range p.Grid.Rows {
		if !r.IsBlank() {
			return false
		}
	}
	return p.EstimateData.IsEmpty() && p.Totals.UpdatedAt == 0
}
