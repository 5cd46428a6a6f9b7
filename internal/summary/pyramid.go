// Package summary derives the pricing pyramid from the persisted estimate
// totals and renders it for display and export.
package summary

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/validation"
)

// Inputs are the figures the pyramid is computed from.
type Inputs struct {
	MaterialBase float64
	FinalHours   float64
	LaborRate    float64
	DjeTotal     float64
	Adders       models.MaterialAdders
}

// InputsFrom projects aggregate totals onto pyramid inputs.
func InputsFrom(t models.EstimateTotals) Inputs {
	t.Recompute()
	return Inputs{
		MaterialBase: t.MaterialCostFromGrid,
		FinalHours:   t.FinalHours,
		LaborRate:    t.LaborRate,
		DjeTotal:     t.DjeTotal,
		Adders:       t.MaterialAdders,
	}
}

// Pyramid holds every stage of the price build-up.
type Pyramid struct {
	MaterialBase    float64
	Misc            float64
	SmallTools      float64
	LargeTools      float64
	WasteTheft      float64
	Taxable         float64
	SalesTax        float64
	TotalMaterial   float64
	LaborCost       float64
	Dje             float64
	PrimeCost       float64
	OverheadPercent int
	Overhead        float64
	BreakEven       float64
	Markup          float64
	Profit          float64
	SalesPrice      float64
}

// MarkupPercent is the markup expressed as a percentage over break-even.
func (p Pyramid) MarkupPercent() float64 {
	return p.Markup*100 - 100
}

func percentOf(pct, base float64) float64 {
	return pct / 100 * base
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute runs the pyramid. Every stage depends only on the stage before it
// and one percentage.
func Compute(in Inputs) Pyramid {
	p := Pyramid{MaterialBase: in.MaterialBase, Dje: in.DjeTotal}
	a := in.Adders

	p.Misc = percentOf(a.MiscPercent, in.MaterialBase)
	p.SmallTools = percentOf(a.SmallToolsPercent, in.MaterialBase)
	p.LargeTools = percentOf(a.LargeToolsPercent, in.MaterialBase)
	p.WasteTheft = percentOf(a.WasteTheftPercent, in.MaterialBase)
	p.Taxable = in.MaterialBase + p.Misc + p.SmallTools + p.LargeTools + p.WasteTheft
	p.SalesTax = percentOf(a.SalesTaxPercent, p.Taxable)
	p.TotalMaterial = p.Taxable + p.SalesTax

	p.LaborCost = in.FinalHours * in.LaborRate
	p.PrimeCost = p.LaborCost + p.TotalMaterial + in.DjeTotal

	p.OverheadPercent = OverheadPercent(a.OverheadPercent)
	p.Overhead = percentOf(float64(p.OverheadPercent), p.PrimeCost)
	p.BreakEven = p.PrimeCost + p.Overhead

	p.Markup = MarkupMultiplier(a.MarginPercent)
	p.Profit = p.BreakEven * (p.Markup - 1)
	p.SalesPrice = p.BreakEven + p.Profit
	return p
}

// MarkupMultiplier looks up the markup for a target margin. Margins without
// a table entry, including fractional ones, resolve to 1.0.
func MarkupMultiplier(margin float64) float64 {
	if margin != math.Trunc(margin) {
		return constants.FailClosedMarkup
	}
	m := int(margin)
	if !validation.MarginInTable(m) {
		return constants.FailClosedMarkup
	}
	if m == constants.FullMarginPercent {
		return constants.FullMarginMarkup
	}
	return round2(1 / (1 - float64(m)/100))
}

// MarginOptions lists every margin with a markup entry in ascending order.
func MarginOptions() []int {
	out := make([]int, 0, constants.MaxContiguousMarginPercent+len(constants.ExtraMarginPercents)+1)
	for m := 1; m <= constants.MaxContiguousMarginPercent; m++ {
		out = append(out, m)
	}
	out = append(out, constants.ExtraMarginPercents...)
	return append(out, constants.FullMarginPercent)
}

// OverheadPercent returns p when it is an offered overhead option and the
// default otherwise.
func OverheadPercent(p float64) int {
	if p == math.Trunc(p) && slices.Contains(constants.OverheadOptions, int(p)) {
		return int(p)
	}
	return constants.DefaultOverheadPercent
}

// Days are the labor-day equivalents of the final hours.
type Days struct {
	OneMan  float64
	TwoMan  float64
	FourMan float64
}

func LaborDays(finalHours float64) Days {
	return Days{
		OneMan:  finalHours / constants.OneManDayDivisor,
		TwoMan:  finalHours / constants.TwoManDayDivisor,
		FourMan: finalHours / constants.FourManDayDivisor,
	}
}

// FormatDays renders days to one decimal, dropping a trailing ".0", with a
// singular label for exactly one day.
func FormatDays(days float64) string {
	s := strconv.FormatFloat(math.Round(days*10)/10, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "1" {
		return "1 day"
	}
	return s + " days"
}

// FormatUSD renders v as dollars with thousands separators.
func FormatUSD(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// FormatHours renders an hour figure to two decimals.
func FormatHours(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
