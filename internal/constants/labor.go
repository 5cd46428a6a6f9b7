package constants

// DefaultAdjustmentLabels seeds the general labor adjustments table.
var DefaultAdjustmentLabels = []string{
	"Building Conditions",
	"Change Orders",
	"Embedded and exposed Wiring",
	"Construction Schedule",
	"Job Location",
	"Safety",
	"Teamwork",
	"Temperature",
	"Materials Handler",
	"Subcontract Supervision",
}

// DefaultAdditionalLaborLabels seeds the additional labor table.
var DefaultAdditionalLaborLabels = []string{
	"As-Built Drawings",
	"Overtime Hours",
	"Environmentally Hazardous Material Disposal",
	"Excavation, Trenching, and Backfill",
	"Superintendent",
	"Materials Handler",
	"Testing/QAQC",
	"Safety",
	"Subcontract Supervision",
	"Training",
}

const (
	MinPercent = 0
	MaxPercent = 100
)
