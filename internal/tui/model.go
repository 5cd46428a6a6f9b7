package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/estimator/internal/app"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/grid"
	"github.com/julianstephens/estimator/internal/tui/components/summary"
)

// pages in tab order
var pages = []struct {
	state constants.SessionState
	title string
}{
	{constants.StateGrid, "Grid"},
	{constants.StateAdjustments, "Adjustments"},
	{constants.StateAdditionalLabor, "Additional Labor"},
	{constants.StateDje, "DJE"},
	{constants.StateSummary, "Summary"},
}

// fetchDoneMsg carries the result of a catalog lookup back to Update.
type fetchDoneMsg struct {
	apply func()
}

// choicesMsg opens a select once its option list has loaded.
type choicesMsg struct {
	edit   cellEdit
	values []string
	err    error
}

// refreshMsg repaints after another process changed the store.
type refreshMsg struct{}

type Model struct {
	app      *app.App
	ctx      context.Context
	state    constants.SessionState
	page     constants.SessionState
	keys     KeyMap
	help     help.Model
	table    table.Model
	col      int
	summary  summary.Model
	form     *huh.Form
	edit     *cellEdit
	controls *controlsForm
	title    string
	warning  string
	status   string
	quitting bool
	width    int
	height   int
}

// Options tune the model.
type Options struct {
	// Title names the scope in the header.
	Title string
	// Warning is shown above every page, e.g. for other live sessions.
	Warning string
}

func NewModel(ctx context.Context, a *app.App, opts Options) Model {
	t := table.New(
		table.WithFocused(true),
		table.WithHeight(12),
	)
	m := Model{
		app:     a,
		ctx:     ctx,
		state:   constants.StateGrid,
		page:    constants.StateGrid,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		table:   t,
		col:     firstEditable(gridColumns),
		summary: summary.New(0, 0),
		title:   opts.Title,
		warning: opts.Warning,
	}
	m.refresh()
	return m
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case constants.StateGrid:
		keys = append(keys, m.keys.Enter, m.keys.Add)
	case constants.StateAdjustments, constants.StateAdditionalLabor, constants.StateDje:
		keys = append(keys, m.keys.Enter)
	case constants.StateSummary:
		keys = append(keys, m.keys.Controls)
	}
	return append(keys, m.keys.Reset)
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help, m.keys.Reset}
	navigation := []key.Binding{m.keys.Up, m.keys.Down, m.keys.Left, m.keys.Right, m.keys.Enter}

	var actions []key.Binding
	switch m.state {
	case constants.StateGrid:
		actions = []key.Binding{m.keys.Add}
	case constants.StateSummary:
		actions = []key.Binding{m.keys.Controls}
	}

	return [][]key.Binding{global, navigation, actions}
}

// Init runs the DJE hydration lookups left pending by boot.
func (m Model) Init() tea.Cmd {
	return m.runFetch(m.app.Hydrate)
}

func (m Model) runFetch(f grid.Fetch) tea.Cmd {
	if f == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return fetchDoneMsg{apply: f(ctx)}
	}
}

func (m Model) loadChoices(e cellEdit, load func(context.Context) ([]string, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		values, err := load(ctx)
		return choicesMsg{edit: e, values: values, err: err}
	}
}

// isSheet reports whether the page is a table.
func isSheet(s constants.SessionState) bool {
	return s == constants.StateGrid || s == constants.StateAdjustments ||
		s == constants.StateAdditionalLabor || s == constants.StateDje
}

// refresh rebuilds the visible page from the engines.
func (m *Model) refresh() {
	if isSheet(m.state) {
		cursor := m.table.Cursor()
		m.table.SetRows(nil)
		m.table.SetColumns(tableColumns(sheetColumns(m.state), m.col))
		m.table.SetRows(m.sheetRows())
		if n := len(m.table.Rows()); cursor >= n {
			cursor = n - 1
		}
		if cursor < 0 {
			cursor = 0
		}
		m.table.SetCursor(cursor)
	}
	m.summary.SetView(m.app.Summary.View())
}

// switchPage moves to the page at offset dir in tab order.
func (m *Model) switchPage(dir int) {
	idx := 0
	for i, p := range pages {
		if p.state == m.state {
			idx = i
		}
	}
	next := pages[(idx+dir+len(pages))%len(pages)].state

	m.app.Hide()
	m.state = next
	m.page = next
	m.app.Show()

	if isSheet(next) {
		m.col = firstEditable(sheetColumns(next))
		m.table.SetCursor(0)
	}
	m.status = ""
	m.refresh()
}
