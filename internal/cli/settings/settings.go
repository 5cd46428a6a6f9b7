package settings

import (
	"fmt"

	"github.com/julianstephens/estimator/internal/cli"
	"github.com/julianstephens/estimator/internal/constants"
	apperrors "github.com/julianstephens/estimator/internal/errors"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/storage"
	"github.com/julianstephens/estimator/internal/summary"
	"github.com/julianstephens/estimator/internal/validation"
)

// SettingsCmd shows or changes the pricing defaults new estimates start
// from.
type SettingsCmd struct {
	List bool `help:"List current settings."`

	LaborRate         *float64 `help:"Dollars per labor hour."`
	OverheadPercent   *int     `help:"Overhead percent (one of the offered options)."`
	MarginPercent     *int     `help:"Target profit margin percent."`
	MiscPercent       *float64 `help:"Misc material adder percent."`
	SmallToolsPercent *float64 `help:"Small tools adder percent."`
	LargeToolsPercent *float64 `help:"Large tools adder percent."`
	WasteTheftPercent *float64 `help:"Waste and theft adder percent."`
	SalesTaxPercent   *float64 `help:"Sales tax percent on taxable material."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	store, ok := ctx.Store.(storage.SettingsStore)
	if !ok {
		return apperrors.ErrUnsupportedBackend
	}
	settings, err := store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	out := ctx.Stdout()

	if c.List {
		fmt.Fprintln(out, "Current Settings:")
		fmt.Fprintf(out, "  Labor Rate:        %s/hr\n", summary.FormatUSD(settings.LaborRate))
		fmt.Fprintf(out, "  Overhead:          %g%%\n", settings.OverheadPercent)
		fmt.Fprintf(out, "  Margin:            %g%%\n", settings.MarginPercent)
		fmt.Fprintln(out, "\nMaterial Adders:")
		fmt.Fprintf(out, "  Misc:              %g%%\n", settings.MiscPercent)
		fmt.Fprintf(out, "  Small Tools:       %g%%\n", settings.SmallToolsPercent)
		fmt.Fprintf(out, "  Large Tools:       %g%%\n", settings.LargeToolsPercent)
		fmt.Fprintf(out, "  Waste/Theft:       %g%%\n", settings.WasteTheftPercent)
		fmt.Fprintf(out, "  Sales Tax:         %g%%\n", settings.SalesTaxPercent)
		return nil
	}

	updated, err := c.apply(&settings)
	if err != nil {
		return err
	}
	if !updated {
		fmt.Fprintln(out, "No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}

	result := validation.New().ValidateSettings(settings)
	if result.HasConflicts() {
		return fmt.Errorf("invalid settings:\n%s", result.FormatReport())
	}
	if err := store.SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Fprintln(out, "Settings updated successfully.")
	return nil
}

func (c *SettingsCmd) apply(s *models.Settings) (bool, error) {
	updated := false
	if c.LaborRate != nil {
		if *c.LaborRate < 0 {
			return false, fmt.Errorf("labor rate must not be negative")
		}
		s.LaborRate = *c.LaborRate
		updated = true
	}
	if c.OverheadPercent != nil {
		s.OverheadPercent = float64(*c.OverheadPercent)
		updated = true
	}
	if c.MarginPercent != nil {
		s.MarginPercent = float64(*c.MarginPercent)
		updated = true
	}

	adders := []struct {
		name string
		flag *float64
		dst  *float64
	}{
		{"misc", c.MiscPercent, &s.MiscPercent},
		{"small tools", c.SmallToolsPercent, &s.SmallToolsPercent},
		{"large tools", c.LargeToolsPercent, &s.LargeToolsPercent},
		{"waste/theft", c.WasteTheftPercent, &s.WasteTheftPercent},
		{"sales tax", c.SalesTaxPercent, &s.SalesTaxPercent},
	}
	for _, a := range adders {
		if a.flag == nil {
			continue
		}
		if *a.flag < constants.MinPercent || *a.flag > constants.MaxPercent {
			return false, fmt.Errorf("%s percent must be between %d and %d", a.name, constants.MinPercent, constants.MaxPercent)
		}
		*a.dst = *a.flag
		updated = true
	}
	return updated, nil
}
