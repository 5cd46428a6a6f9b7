package summary

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	pricing "github.com/julianstephens/estimator/internal/summary"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(28)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true).
			Width(16).
			Align(lipgloss.Right)

	totalStyle = valueStyle.
			Foreground(lipgloss.Color("42"))
)

// EditControlsMsg asks the parent to open the pricing controls form.
type EditControlsMsg struct{}

type Model struct {
	viewport viewport.Model
	view     pricing.View
	width    int
	height   int
}

func New(width, height int) Model {
	return Model{viewport: viewport.New(width, height)}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "c" {
		return m, func() tea.Msg { return EditControlsMsg{} }
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

func (m *Model) SetView(v pricing.View) {
	m.view = v
	m.Render()
}

// Content renders the summary without the viewport frame.
func (m Model) Content() string {
	t := m.view.Totals
	p := m.view.Pyramid
	d := m.view.Days
	a := t.MaterialAdders

	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	section := func(title string) {
		b.WriteString(titleStyle.Render(title) + "\n")
	}

	section("Labor")
	line("Estimated hours", pricing.FormatHours(t.EstimatedHours))
	line("Adjustments", pricing.FormatHours(t.AdjustmentsHours))
	line("Additional labor", pricing.FormatHours(t.AdditionalHours))
	line("Total hours", pricing.FormatHours(t.FinalHours))
	line("Labor rate", pricing.FormatUSD(t.LaborRate))
	line("Labor cost", pricing.FormatUSD(p.LaborCost))
	line("One man", pricing.FormatDays(d.OneMan))
	line("Two men", pricing.FormatDays(d.TwoMan))
	line("Four men", pricing.FormatDays(d.FourMan))

	section("Material")
	line("Material from grid", pricing.FormatUSD(p.MaterialBase))
	line(fmt.Sprintf("Misc (%g%%)", a.MiscPercent), pricing.FormatUSD(p.Misc))
	line(fmt.Sprintf("Small tools (%g%%)", a.SmallToolsPercent), pricing.FormatUSD(p.SmallTools))
	line(fmt.Sprintf("Large tools (%g%%)", a.LargeToolsPercent), pricing.FormatUSD(p.LargeTools))
	line(fmt.Sprintf("Waste/theft (%g%%)", a.WasteTheftPercent), pricing.FormatUSD(p.WasteTheft))
	line("Taxable material", pricing.FormatUSD(p.Taxable))
	line(fmt.Sprintf("Sales tax (%g%%)", a.SalesTaxPercent), pricing.FormatUSD(p.SalesTax))
	line("Total material", pricing.FormatUSD(p.TotalMaterial))

	section("Price")
	line("Direct job expenses", pricing.FormatUSD(p.Dje))
	line("Prime cost", pricing.FormatUSD(p.PrimeCost))
	line(fmt.Sprintf("Overhead (%d%%)", p.OverheadPercent), pricing.FormatUSD(p.Overhead))
	line("Break-even", pricing.FormatUSD(p.BreakEven))
	line(fmt.Sprintf("Markup (%g%% margin)", a.MarginPercent), pricing.FormatUSD(p.Markup))
	line("Profit", pricing.FormatUSD(p.Profit))
	b.WriteString(labelStyle.Render("Estimated sales price") + totalStyle.Render(pricing.FormatUSD(p.SalesPrice)) + "\n")

	return b.String()
}

func (m *Model) Render() {
	m.viewport.SetContent(m.Content())
}
