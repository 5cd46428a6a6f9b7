package models

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/estimator/internal/constants"
)

// Settings represents application-wide pricing defaults
type Settings struct {
	LaborRate         float64 `json:"labor_rate"`          // dollars per labor hour
	OverheadPercent   float64 `json:"overhead_percent"`    // one of constants.OverheadOptions
	MarginPercent     float64 `json:"margin_percent"`      // target profit margin
	MiscPercent       float64 `json:"misc_percent"`        // misc material adder
	SmallToolsPercent float64 `json:"small_tools_percent"` // small tools adder
	LargeToolsPercent float64 `json:"large_tools_percent"` // large tools adder
	WasteTheftPercent float64 `json:"waste_theft_percent"` // waste and theft adder
	SalesTaxPercent   float64 `json:"sales_tax_percent"`   // tax on taxable material
}

// DefaultSettings returns the built-in pricing defaults.
func DefaultSettings() Settings {
	return Settings{
		LaborRate:         constants.DefaultLaborRate,
		OverheadPercent:   constants.DefaultOverheadPercent,
		MarginPercent:     constants.DefaultMarginPercent,
		MiscPercent:       constants.DefaultMiscPercent,
		SmallToolsPercent: constants.DefaultSmallToolsPercent,
		LargeToolsPercent: constants.DefaultLargeToolsPercent,
		WasteTheftPercent: constants.DefaultWasteTheftPercent,
		SalesTaxPercent:   constants.DefaultSalesTaxPercent,
	}
}

// Adders projects the settings onto the document's materials block.
func (s Settings) Adders() MaterialAdders {
	return MaterialAdders{
		MiscPercent:       s.MiscPercent,
		SmallToolsPercent: s.SmallToolsPercent,
		LargeToolsPercent: s.LargeToolsPercent,
		WasteTheftPercent: s.WasteTheftPercent,
		SalesTaxPercent:   s.SalesTaxPercent,
		OverheadPercent:   s.OverheadPercent,
		MarginPercent:     s.MarginPercent,
	}
}

// ToMap flattens settings into key/value rows for the settings table.
func (s Settings) ToMap() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		constants.SettingLaborRate:         f(s.LaborRate),
		constants.SettingOverheadPercent:   f(s.OverheadPercent),
		constants.SettingMarginPercent:     f(s.MarginPercent),
		constants.SettingMiscPercent:       f(s.MiscPercent),
		constants.SettingSmallToolsPercent: f(s.SmallToolsPercent),
		constants.SettingLargeToolsPercent: f(s.LargeToolsPercent),
		constants.SettingWasteTheftPercent: f(s.WasteTheftPercent),
		constants.SettingSalesTaxPercent:   f(s.SalesTaxPercent),
	}
}

// MapToSettings converts key/value rows to a Settings struct. Missing keys
// keep their defaults; unknown keys are ignored.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := DefaultSettings()
	targets := map[string]*float64{
		constants.SettingLaborRate:         &settings.LaborRate,
		constants.SettingOverheadPercent:   &settings.OverheadPercent,
		constants.SettingMarginPercent:     &settings.MarginPercent,
		constants.SettingMiscPercent:       &settings.MiscPercent,
		constants.SettingSmallToolsPercent: &settings.SmallToolsPercent,
		constants.SettingLargeToolsPercent: &settings.LargeToolsPercent,
		constants.SettingWasteTheftPercent: &settings.WasteTheftPercent,
		constants.SettingSalesTaxPercent:   &settings.SalesTaxPercent,
	}
	for key, value := range data {
		dst, ok := targets[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = v
	}
	return settings, nil
}

// SettingsSnapshot is the pricing block an estimate was created with.
type SettingsSnapshot struct {
	Pricing Settings `json:"pricing"`
	Version int      `json:"settings_version,omitempty"`
	// Source is "estimate" when read from the estimate itself and
	// "settings" when it fell back to the organisation settings.
	Source string `json:"-"`
}
