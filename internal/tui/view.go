package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/estimator/internal/constants"
	pricing "github.com/julianstephens/estimator/internal/summary"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case constants.StateGrid, constants.StateAdjustments, constants.StateAdditionalLabor, constants.StateDje:
		content = m.viewSheet()
	case constants.StateSummary:
		content = docStyle.Render(m.summary.View())
	case constants.StatePicker, constants.StateControls:
		content = docStyle.Render(m.form.View())
	case constants.StateConfirmReset:
		content = m.viewConfirmReset()
	}

	var banner string
	if m.warning != "" {
		banner = warningStyle.Render("⚠ " + m.warning)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		banner,
		content,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	var tabs []string
	for _, p := range pages {
		if p.state == m.page {
			tabs = append(tabs, activeTabStyle.Render(p.title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(p.title))
		}
	}
	if m.title != "" {
		tabs = append(tabs, scopeStyle.Render(m.title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewSheet() string {
	return docStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		m.table.View(),
		footerStyle.Render(m.sheetFooter()),
	))
}

// viewStatus shows the last action result and the running sales price.
func (m Model) viewStatus() string {
	price := "Sales price " + pricing.FormatUSD(m.app.Summary.View().Pyramid.SalesPrice)
	if m.status == "" {
		return footerStyle.Render(price)
	}
	return footerStyle.Render(m.status + "   " + price)
}

func (m Model) viewConfirmReset() string {
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render("Clear every page of this estimate?"),
			"",
			"Unsaved and saved local data for this scope is removed.",
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}
