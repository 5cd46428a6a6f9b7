package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/grid"
	"github.com/julianstephens/estimator/internal/labor"
	"github.com/julianstephens/estimator/internal/summary"
)

// Editable columns of each sheet.
const (
	colNotes = iota + 1
	colType
	colDescription
	colQuantity
	colFactor
)

const (
	colLabel = iota + 1
	colPercent
	colHours
)

const (
	colDjeNotes = iota + 1
	colCategory
	colSubcategory
	colDjeDescription
	colDjeQuantity
	colMultiplier
)

type column struct {
	title    string
	width    int
	editable bool
}

var gridColumns = []column{
	{"#", 3, false},
	{"Notes", 16, true},
	{"Type", 14, true},
	{"Description", 28, true},
	{"Qty", 6, true},
	{"L.Adj", 6, true},
	{"Material", 12, false},
	{"Labor hrs", 10, false},
}

var laborColumns = []column{
	{"#", 3, false},
	{"Item", 40, true},
	{"%", 5, true},
	{"Hours", 10, true},
}

var djeColumns = []column{
	{"#", 3, false},
	{"Notes", 14, true},
	{"Category", 14, true},
	{"Subcategory", 14, true},
	{"Description", 24, true},
	{"Qty", 6, true},
	{"Multi", 6, true},
	{"Unit cost", 11, false},
	{"Extension", 12, false},
}

func sheetColumns(state constants.SessionState) []column {
	switch state {
	case constants.StateGrid:
		return gridColumns
	case constants.StateAdjustments, constants.StateAdditionalLabor:
		return laborColumns
	case constants.StateDje:
		return djeColumns
	}
	return nil
}

// tableColumns marks the focused column in its header.
func tableColumns(cols []column, focused int) []table.Column {
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		title := c.title
		if i == focused {
			title = "▸" + title
		}
		out[i] = table.Column{Title: title, Width: c.width}
	}
	return out
}

// nextEditable returns the editable column after (dir > 0) or before col.
func nextEditable(cols []column, col, dir int) int {
	for i := col + dir; i >= 0 && i < len(cols); i += dir {
		if cols[i].editable {
			return i
		}
	}
	return col
}

func firstEditable(cols []column) int {
	for i, c := range cols {
		if c.editable {
			return i
		}
	}
	return 0
}

func blankZero(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (m Model) gridRows() []table.Row {
	rows := m.app.Grid.Rows()
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		desc := r.DescriptionLabel
		if r.DescriptionID == "" && r.MaterialType != "" {
			desc = m.app.Grid.Options(i).Placeholder()
		}
		out[i] = table.Row{
			strconv.Itoa(i + 1),
			r.Notes,
			r.MaterialType,
			desc,
			blankZero(r.Quantity),
			formatFactor(r.Factor()),
			summary.FormatUSD(r.MaterialExtension),
			summary.FormatHours(r.LaborHoursExtension),
		}
	}
	return out
}

func laborRows(e *labor.Engine) []table.Row {
	rows := e.Rows()
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row{
			strconv.Itoa(i + 1),
			r.Label,
			blankZero(r.Percent),
			summary.FormatHours(r.Hours),
		}
	}
	return out
}

func (m Model) djeRows() []table.Row {
	rows := m.app.Dje.Rows()
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		ch := m.app.Dje.Choices(i)
		sub, desc := r.SubcategoryID, r.DescriptionLabel
		if r.CategoryID != "" && sub == "" {
			sub = stateHint(ch.SubState, len(ch.Subcategories))
		}
		if r.SubcategoryID != "" && r.DescriptionID == "" {
			desc = stateHint(ch.DescState, len(ch.Descriptions))
		}
		out[i] = table.Row{
			strconv.Itoa(i + 1),
			r.Notes,
			r.CategoryID,
			sub,
			desc,
			blankZero(r.Quantity),
			strconv.Itoa(r.Multiplier),
			summary.FormatUSD(r.UnitCost),
			summary.FormatUSD(r.Extension),
		}
	}
	return out
}

// stateHint is the placeholder of a cascade column that has no selection.
func stateHint(s grid.OptionState, n int) string {
	switch s {
	case grid.OptionsLoading:
		return constants.PlaceholderLoading
	case grid.OptionsError:
		return constants.PlaceholderError
	case grid.OptionsReady:
		if n == 0 {
			return constants.PlaceholderNoMatches
		}
	}
	return ""
}

func (m Model) sheetRows() []table.Row {
	switch m.state {
	case constants.StateGrid:
		return m.gridRows()
	case constants.StateAdjustments:
		return laborRows(m.app.Adjustments)
	case constants.StateAdditionalLabor:
		return laborRows(m.app.Additional)
	case constants.StateDje:
		return m.djeRows()
	}
	return nil
}

// sheetFooter is the running total shown under each sheet.
func (m Model) sheetFooter() string {
	switch m.state {
	case constants.StateGrid:
		t := m.app.Grid.Totals()
		return fmt.Sprintf("Material %s   Labor %s hrs", summary.FormatUSD(t.MaterialCost), summary.FormatHours(t.LaborHours))
	case constants.StateAdjustments, constants.StateAdditionalLabor:
		e := m.laborEngine()
		return fmt.Sprintf("Base %s hrs   %s total %s hrs", summary.FormatHours(e.BaseHours()), e.Kind(), summary.FormatHours(e.Total()))
	case constants.StateDje:
		return "Direct job expenses " + summary.FormatUSD(m.app.Dje.Total())
	}
	return ""
}

func (m Model) laborEngine() *labor.Engine {
	if m.state == constants.StateAdditionalLabor {
		return m.app.Additional
	}
	return m.app.Adjustments
}
