package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
)

// Export cell names, in the order WriteCSV emits them.
const (
	CellEstimatedHours  = "labor-hours-pricing-sheet"
	CellAdjustedHours   = "summaryAdjustedHours"
	CellAdditionalHours = "summaryAdditionalHours"
	CellTotalHours      = "summaryTotalHours"
	CellLaborCost       = "summaryTotalLaborCost"
	CellMaterialBase    = "material-cost-price-sheet"
	CellMisc            = "miscMaterialValue"
	CellSmallTools      = "smallToolsValue"
	CellLargeTools      = "largeToolsValue"
	CellWasteTheft      = "wasteTheftValue"
	CellTaxable         = "taxableMaterialValue"
	CellSalesTax        = "salesTaxValue"
	CellTotalMaterial   = "totalMaterialCostValue"
	CellDje             = "djeValue"
	CellPrimeCost       = "primeCostValue"
	CellOverhead        = "overheadValue"
	CellBreakEven       = "breakEvenValue"
	CellMarkup          = "markupValue"
	CellProfit          = "profitMarginValue"
	CellSalesPrice      = "estimatedSalesPriceValue"
	CellOneManDays      = "oneManDays"
	CellTwoManDays      = "twoManDays"
	CellFourManDays     = "fourManDays"
)

var controlOrder = []string{
	constants.SettingLaborRate,
	constants.SettingMarginPercent,
	constants.SettingOverheadPercent,
	constants.SettingMiscPercent,
	constants.SettingSmallToolsPercent,
	constants.SettingLargeToolsPercent,
	constants.SettingWasteTheftPercent,
	constants.SettingSalesTaxPercent,
}

var cellOrder = []string{
	CellEstimatedHours, CellAdjustedHours, CellAdditionalHours, CellTotalHours,
	CellLaborCost, CellMaterialBase, CellMisc, CellSmallTools, CellLargeTools,
	CellWasteTheft, CellTaxable, CellSalesTax, CellTotalMaterial, CellDje,
	CellPrimeCost, CellOverhead, CellBreakEven, CellMarkup, CellProfit,
	CellSalesPrice, CellOneManDays, CellTwoManDays, CellFourManDays,
}

// Controls are the pricing inputs of v keyed by setting name.
func (v View) Controls() map[string]float64 {
	m := v.Totals.MaterialAdders
	return map[string]float64{
		constants.SettingLaborRate:         v.Totals.LaborRate,
		constants.SettingMarginPercent:     m.MarginPercent,
		constants.SettingOverheadPercent:   float64(v.Pyramid.OverheadPercent),
		constants.SettingMiscPercent:       m.MiscPercent,
		constants.SettingSmallToolsPercent: m.SmallToolsPercent,
		constants.SettingLargeToolsPercent: m.LargeToolsPercent,
		constants.SettingWasteTheftPercent: m.WasteTheftPercent,
		constants.SettingSalesTaxPercent:   m.SalesTaxPercent,
	}
}

// Cells are the displayed figures of v, formatted as shown.
func (v View) Cells() map[string]string {
	t, p, d := v.Totals, v.Pyramid, v.Days
	return map[string]string{
		CellEstimatedHours:  FormatHours(t.EstimatedHours),
		CellAdjustedHours:   FormatHours(t.AdjustmentsHours),
		CellAdditionalHours: FormatHours(t.AdditionalHours),
		CellTotalHours:      FormatHours(t.FinalHours),
		CellLaborCost:       FormatUSD(p.LaborCost),
		CellMaterialBase:    FormatUSD(p.MaterialBase),
		CellMisc:            FormatUSD(p.Misc),
		CellSmallTools:      FormatUSD(p.SmallTools),
		CellLargeTools:      FormatUSD(p.LargeTools),
		CellWasteTheft:      FormatUSD(p.WasteTheft),
		CellTaxable:         FormatUSD(p.Taxable),
		CellSalesTax:        FormatUSD(p.SalesTax),
		CellTotalMaterial:   FormatUSD(p.TotalMaterial),
		CellDje:             FormatUSD(p.Dje),
		CellPrimeCost:       FormatUSD(p.PrimeCost),
		CellOverhead:        FormatUSD(p.Overhead),
		CellBreakEven:       FormatUSD(p.BreakEven),
		CellMarkup:          fmt.Sprintf("%.2f%%", p.MarkupPercent()),
		CellProfit:          FormatUSD(p.Profit),
		CellSalesPrice:      FormatUSD(p.SalesPrice),
		CellOneManDays:      FormatDays(d.OneMan),
		CellTwoManDays:      FormatDays(d.TwoMan),
		CellFourManDays:     FormatDays(d.FourMan),
	}
}

// Export freezes v for embedding in a saved payload.
func (v View) Export() *models.SummaryExport {
	return &models.SummaryExport{Controls: v.Controls(), Cells: v.Cells()}
}

// ExportControls returns the controls of the current view.
func (a *Aggregator) ExportControls() map[string]float64 {
	return a.View().Controls()
}

// ExportCells returns the formatted cells of the current view.
func (a *Aggregator) ExportCells() map[string]string {
	return a.View().Cells()
}

// ordered returns the known keys of m in order, then any others sorted.
func ordered[V any](m map[string]V, known []string) []string {
	keys := make([]string, 0, len(m))
	for _, k := range known {
		if _, ok := m[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range m {
		if !slices.Contains(known, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

// WriteCSV writes exp as section,key,value rows: controls first, then cells,
// each in display order.
func WriteCSV(w io.Writer, exp models.SummaryExport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"section", "key", "value"}); err != nil {
		return err
	}
	for _, k := range ordered(exp.Controls, controlOrder) {
		value := strconv.FormatFloat(exp.Controls[k], 'f', -1, 64)
		if err := cw.Write([]string{"controls", k, value}); err != nil {
			return err
		}
	}
	for _, k := range ordered(exp.Cells, cellOrder) {
		if err := cw.Write([]string{"cells", k, exp.Cells[k]}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
