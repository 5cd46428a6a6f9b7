package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/grid"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/tui/components/summary"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(msg.Height-10, 3))
		m.summary.SetSize(msg.Width-4, max(msg.Height-8, 3))
		return m, nil

	case fetchDoneMsg:
		if msg.apply != nil {
			msg.apply()
		}
		if i, ok := m.app.Grid.TakeFocus(); ok && m.state == constants.StateGrid {
			m.table.SetCursor(i)
			m.col = colQuantity
		}
		m.refresh()
		return m, nil

	case choicesMsg:
		if m.state != m.page || msg.edit.page != m.page {
			return m, nil
		}
		if msg.err != nil {
			logger.Warn("Failed to load choices", "field", msg.edit.title, "error", msg.err)
			m.status = constants.PlaceholderError
			return m, nil
		}
		if len(msg.values) == 0 {
			m.status = constants.PlaceholderNoMatches
			return m, nil
		}
		e := msg.edit
		e.options = stringOptions(msg.values)
		return m.openCellForm(&e)

	case refreshMsg:
		m.refresh()
		return m, nil

	case summary.EditControlsMsg:
		return m.openControls()
	}

	switch m.state {
	case constants.StatePicker, constants.StateControls:
		return m.updateForm(msg)
	case constants.StateConfirmReset:
		return m.updateConfirmReset(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Quit):
		m.quitting = true
		m.app.Hide()
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Tab):
		m.switchPage(1)
		return m, nil
	case key.Matches(keyMsg, m.keys.ShiftTab):
		m.switchPage(-1)
		return m, nil
	case key.Matches(keyMsg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(keyMsg, m.keys.Reset):
		m.state = constants.StateConfirmReset
		return m, nil
	}

	if m.state == constants.StateSummary {
		var cmd tea.Cmd
		m.summary, cmd = m.summary.Update(keyMsg)
		return m, cmd
	}

	cols := sheetColumns(m.state)
	switch {
	case key.Matches(keyMsg, m.keys.Left):
		m.col = nextEditable(cols, m.col, -1)
		m.refresh()
		return m, nil
	case key.Matches(keyMsg, m.keys.Right):
		m.col = nextEditable(cols, m.col, 1)
		m.refresh()
		return m, nil
	case key.Matches(keyMsg, m.keys.Enter):
		return m.beginEdit()
	case key.Matches(keyMsg, m.keys.Add) && m.state == constants.StateGrid:
		m.app.Grid.Dispatch(grid.AppendRow{})
		m.refresh()
		m.table.SetCursor(len(m.table.Rows()) - 1)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(keyMsg)
	return m, cmd
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEsc {
		return m.closeForm(), nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		var next tea.Cmd
		if m.state == constants.StateControls {
			if err := m.controls.apply(m.app.Summary); err != nil {
				m.status = err.Error()
			}
		} else if m.edit != nil {
			next = m.commitEdit(*m.edit)
		}
		m = m.closeForm()
		return m, next
	case huh.StateAborted:
		return m.closeForm(), nil
	}
	return m, cmd
}

func (m Model) closeForm() Model {
	m.state = m.page
	m.form = nil
	m.edit = nil
	m.controls = nil
	m.refresh()
	return m
}

func (m Model) updateConfirmReset(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "y", "Y":
		removed := m.app.Sequencer.HardReset()
		m.status = fmt.Sprintf("Reset estimate (%d keys removed)", removed)
		m.state = m.page
		m.refresh()
	case "n", "N", "esc", "q":
		m.state = m.page
	}
	return m, nil
}

func (m Model) openCellForm(e *cellEdit) (tea.Model, tea.Cmd) {
	m.edit = e
	m.form = newCellForm(e)
	m.state = constants.StatePicker
	m.status = ""
	return m, m.form.Init()
}

func (m Model) openControls() (tea.Model, tea.Cmd) {
	m.controls = newControlsForm(m.app.Summary.View())
	m.form = m.controls.form()
	m.state = constants.StateControls
	m.status = ""
	return m, m.form.Init()
}

// beginEdit opens the editor for the focused cell. Catalog-backed selects
// load their options first.
func (m Model) beginEdit() (tea.Model, tea.Cmd) {
	row := m.table.Cursor()
	cols := sheetColumns(m.state)
	if row < 0 || m.col >= len(cols) || !cols[m.col].editable {
		return m, nil
	}
	e := cellEdit{page: m.state, row: row, col: m.col, title: cols[m.col].title}

	switch m.state {
	case constants.StateGrid:
		r, ok := m.app.Grid.Row(row)
		if !ok {
			return m, nil
		}
		switch m.col {
		case colNotes:
			e.value = r.Notes
		case colType:
			e.value = r.MaterialType
			return m, m.loadChoices(e, m.app.Grid.MaterialTypes)
		case colDescription:
			opts := m.app.Grid.Options(row)
			if r.MaterialType == "" {
				m.status = "Pick a type first"
				return m, nil
			}
			if opts.Disabled() || len(opts.Items) == 0 {
				m.status = opts.Placeholder()
				return m, nil
			}
			e.value = r.DescriptionID
			e.options = materialOptions(opts.Items)
		case colQuantity:
			e.value = blankZero(r.Quantity)
		case colFactor:
			e.value = formatFactor(r.Factor())
			e.options = factorOptions()
		}

	case constants.StateAdjustments, constants.StateAdditionalLabor:
		rows := m.laborEngine().Rows()
		if row >= len(rows) {
			return m, nil
		}
		r := rows[row]
		switch m.col {
		case colLabel:
			e.value = r.Label
		case colPercent:
			e.value = blankZero(r.Percent)
		case colHours:
			e.value = strconv.FormatFloat(r.Hours, 'f', -1, 64)
		}

	case constants.StateDje:
		rows := m.app.Dje.Rows()
		if row >= len(rows) {
			return m, nil
		}
		r := rows[row]
		ch := m.app.Dje.Choices(row)
		switch m.col {
		case colDjeNotes:
			e.value = r.Notes
		case colCategory:
			e.value = r.CategoryID
			return m, m.loadChoices(e, m.app.Dje.Categories)
		case colSubcategory:
			if len(ch.Subcategories) == 0 {
				m.status = stateHint(ch.SubState, 0)
				return m, nil
			}
			e.value = r.SubcategoryID
			e.options = stringOptions(ch.Subcategories)
		case colDjeDescription:
			if len(ch.Descriptions) == 0 {
				m.status = stateHint(ch.DescState, 0)
				return m, nil
			}
			e.value = r.DescriptionID
			e.options = djeOptions(ch.Descriptions)
		case colDjeQuantity:
			e.value = blankZero(r.Quantity)
		case colMultiplier:
			e.value = strconv.Itoa(r.Multiplier)
		}
	}

	return m.openCellForm(&e)
}

// commitEdit hands the edited value to the owning engine.
func (m Model) commitEdit(e cellEdit) tea.Cmd {
	switch e.page {
	case constants.StateGrid:
		var cmd grid.Command
		switch e.col {
		case colNotes:
			cmd = grid.SetNotes{Index: e.row, Text: e.value}
		case colType:
			cmd = grid.SetMaterialType{Index: e.row, Type: e.value}
		case colDescription:
			cmd = grid.SetDescription{Index: e.row, ID: e.value}
		case colQuantity:
			cmd = grid.SetQuantity{Index: e.row, Raw: e.value}
		case colFactor:
			f, err := strconv.ParseFloat(e.value, 64)
			if err != nil {
				return nil
			}
			cmd = grid.SetLaborFactor{Index: e.row, Factor: f}
		}
		return m.runFetch(m.app.Grid.Dispatch(cmd))

	case constants.StateAdjustments, constants.StateAdditionalLabor:
		engine := m.app.Adjustments
		if e.page == constants.StateAdditionalLabor {
			engine = m.app.Additional
		}
		switch e.col {
		case colLabel:
			engine.OnRowTextInput(e.row, e.value)
		case colPercent:
			p, _ := strconv.Atoi(e.value)
			engine.OnPercentChange(e.row, p)
		case colHours:
			engine.OnHoursInput(e.row, e.value)
		}

	case constants.StateDje:
		switch e.col {
		case colDjeNotes:
			m.app.Dje.OnNotesInput(e.row, e.value)
		case colCategory:
			return m.runFetch(m.app.Dje.OnCategoryChange(e.row, e.value))
		case colSubcategory:
			return m.runFetch(m.app.Dje.OnSubcategoryChange(e.row, e.value))
		case colDjeDescription:
			m.app.Dje.OnDescriptionChange(e.row, e.value)
		case colDjeQuantity:
			m.app.Dje.OnQuantityInput(e.row, e.value)
		case colMultiplier:
			m.app.Dje.OnMultiplierInput(e.row, e.value)
		}
	}
	return nil
}
