package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/summary"
)

// cellEdit is the sheet cell an open form writes to.
type cellEdit struct {
	page    constants.SessionState
	row     int
	col     int
	title   string
	value   string
	options []huh.Option[string]
}

func newCellForm(e *cellEdit) *huh.Form {
	var field huh.Field
	if e.options != nil {
		field = huh.NewSelect[string]().
			Title(e.title).
			Options(e.options...).
			Height(12).
			Value(&e.value)
	} else {
		field = huh.NewInput().
			Title(e.title).
			Value(&e.value)
	}
	return huh.NewForm(huh.NewGroup(field))
}

func stringOptions(values []string) []huh.Option[string] {
	opts := make([]huh.Option[string], len(values))
	for i, v := range values {
		opts[i] = huh.NewOption(v, v)
	}
	return opts
}

func materialOptions(items []models.MaterialOption) []huh.Option[string] {
	opts := make([]huh.Option[string], len(items))
	for i, it := range items {
		label := it.Description
		if it.Unit != "" {
			label = fmt.Sprintf("%s (%s, %s)", it.Description, summary.FormatUSD(it.UnitPrice), it.Unit)
		}
		opts[i] = huh.NewOption(label, it.ID)
	}
	return opts
}

func djeOptions(items []models.DjeOption) []huh.Option[string] {
	opts := make([]huh.Option[string], len(items))
	for i, it := range items {
		opts[i] = huh.NewOption(fmt.Sprintf("%s (%s)", it.Description, summary.FormatUSD(it.UnitCost)), it.ID)
	}
	return opts
}

func factorOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], len(constants.LaborFactors))
	for i, f := range constants.LaborFactors {
		opts[i] = huh.NewOption(formatFactor(f)+"x", formatFactor(f))
	}
	return opts
}

// controlsForm holds the summary pricing controls while they are edited.
type controlsForm struct {
	LaborRate  string
	Overhead   int
	Margin     int
	Misc       string
	SmallTools string
	LargeTools string
	WasteTheft string
	SalesTax   string
}

func newControlsForm(v summary.View) *controlsForm {
	a := v.Totals.MaterialAdders
	pct := func(f float64) string { return strconv.Itoa(int(f)) }
	return &controlsForm{
		LaborRate:  strconv.FormatFloat(v.Totals.LaborRate, 'f', -1, 64),
		Overhead:   v.Pyramid.OverheadPercent,
		Margin:     int(a.MarginPercent),
		Misc:       pct(a.MiscPercent),
		SmallTools: pct(a.SmallToolsPercent),
		LargeTools: pct(a.LargeToolsPercent),
		WasteTheft: pct(a.WasteTheftPercent),
		SalesTax:   pct(a.SalesTaxPercent),
	}
}

func validatePercent(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("enter a whole percent")
	}
	if p < constants.MinPercent || p > constants.MaxPercent {
		return fmt.Errorf("percent must be between %d and %d", constants.MinPercent, constants.MaxPercent)
	}
	return nil
}

func validateMoney(s string) error {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || v < 0 {
		return fmt.Errorf("enter a dollar amount")
	}
	return nil
}

func intOptions(values []int, suffix string) []huh.Option[int] {
	opts := make([]huh.Option[int], len(values))
	for i, v := range values {
		opts[i] = huh.NewOption(strconv.Itoa(v)+suffix, v)
	}
	return opts
}

func (fm *controlsForm) form() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Labor rate ($/hr)").
				Value(&fm.LaborRate).
				Validate(validateMoney),
			huh.NewSelect[int]().
				Title("Overhead").
				Options(intOptions(constants.OverheadOptions, "%")...).
				Value(&fm.Overhead),
			huh.NewSelect[int]().
				Title("Profit margin").
				Options(intOptions(summary.MarginOptions(), "%")...).
				Height(8).
				Value(&fm.Margin),
		),
		huh.NewGroup(
			huh.NewInput().Title("Misc material (%)").Value(&fm.Misc).Validate(validatePercent),
			huh.NewInput().Title("Small tools (%)").Value(&fm.SmallTools).Validate(validatePercent),
			huh.NewInput().Title("Large tools (%)").Value(&fm.LargeTools).Validate(validatePercent),
			huh.NewInput().Title("Waste/theft (%)").Value(&fm.WasteTheft).Validate(validatePercent),
			huh.NewInput().Title("Sales tax (%)").Value(&fm.SalesTax).Validate(validatePercent),
		),
	)
}

// apply writes the form back through the aggregator.
func (fm *controlsForm) apply(agg *summary.Aggregator) error {
	agg.SetLaborRate(fm.LaborRate)
	agg.SetOverheadPercent(fm.Overhead)
	agg.SetMarginPercent(fm.Margin)
	for _, adder := range []struct {
		name  string
		value string
	}{
		{summary.AdderMisc, fm.Misc},
		{summary.AdderSmallTools, fm.SmallTools},
		{summary.AdderLargeTools, fm.LargeTools},
		{summary.AdderWasteTheft, fm.WasteTheft},
		{summary.AdderSalesTax, fm.SalesTax},
	} {
		p, _ := strconv.Atoi(strings.TrimSpace(adder.value))
		if _, err := agg.SetAdderPercent(adder.name, p); err != nil {
			return err
		}
	}
	return nil
}
