package constants

// Default pricing settings applied when neither the estimate document nor a
// server snapshot provides a value.
const (
	DefaultLaborRate           = 0.0
	DefaultOverheadPercent     = 30
	DefaultMarginPercent       = 10
	DefaultMiscPercent         = 0.0
	DefaultSmallToolsPercent   = 0.0
	DefaultLargeToolsPercent   = 0.0
	DefaultWasteTheftPercent   = 0.0
	DefaultSalesTaxPercent     = 0.0
	HoursPerManDay             = 8
	OneManDayDivisor           = 8
	TwoManDayDivisor           = 16
	FourManDayDivisor          = 32
	FailClosedMarkup           = 1.0
	FullMarginMarkup           = 200.0
	FullMarginPercent          = 100
	MaxContiguousMarginPercent = 25
)

// OverheadOptions lists the overhead percentages the summary accepts.
var OverheadOptions = []int{10, 15, 20, 25, 30, 35, 40}

// ExtraMarginPercents lists the table entries beyond the contiguous 1..25 range.
var ExtraMarginPercents = []int{30, 40, 50}

// Settings keys stored in the settings table
const (
	SettingLaborRate         = "labor_rate"
	SettingOverheadPercent   = "overhead_percent"
	SettingMarginPercent     = "margin_percent"
	SettingMiscPercent       = "misc_percent"
	SettingSmallToolsPercent = "small_tools_percent"
	SettingLargeToolsPercent = "large_tools_percent"
	SettingWasteTheftPercent = "waste_theft_percent"
	SettingSalesTaxPercent   = "sales_tax_percent"
)
