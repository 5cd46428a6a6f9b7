package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/estimator/internal/app"
	"github.com/julianstephens/estimator/internal/catalog"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/storage"
)

type fakeSource struct {
	catalog.Offline
}

func (fakeSource) MaterialTypes(ctx context.Context) ([]string, error) {
	return catalog.WithAssemblies([]string{"Wire"}), nil
}

func (fakeSource) MaterialDescriptions(ctx context.Context, typ string) ([]models.MaterialOption, error) {
	return []models.MaterialOption{
		{ID: "w12", Description: "12/2 NM-B", UnitPrice: 2.5, LaborUnitHours: 0.5, Unit: "1"},
	}, nil
}

func (fakeSource) DjeCategories(ctx context.Context) ([]string, error) {
	return []string{"Equipment"}, nil
}

func (fakeSource) DjeSubcategories(ctx context.Context, category string) ([]string, error) {
	return []string{"Lifts"}, nil
}

func (fakeSource) DjeDescriptions(ctx context.Context, category, subcategory string) ([]models.DjeOption, error) {
	return []models.DjeOption{{ID: "l1", Description: "Scissor lift", UnitCost: 300}}, nil
}

func setupTuiTest(t *testing.T) Model {
	t.Helper()
	a := app.Open(context.Background(), storage.NewMemoryStore(), app.Config{
		EstimateID: "5",
		Catalog:    fakeSource{},
		Delay:      time.Hour,
	})
	t.Cleanup(a.Close)
	return NewModel(context.Background(), a, Options{Title: "estimate 5"})
}

// send runs msg through Update and then every command it returns, the way
// the program loop would.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		if _, ok := out.(fetchDoneMsg); !ok {
			if _, ok := out.(choicesMsg); !ok {
				break
			}
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

// commit applies an edit and settles any lookup it starts.
func commit(t *testing.T, m Model, e cellEdit) Model {
	t.Helper()
	if cmd := m.commitEdit(e); cmd != nil {
		m = send(t, m, cmd())
	}
	return m
}

func TestSwitchPage(t *testing.T) {
	m := setupTuiTest(t)

	tests := []struct {
		key  tea.KeyMsg
		want constants.SessionState
	}{
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateAdjustments},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateAdditionalLabor},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateDje},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateSummary},
		{tea.KeyMsg{Type: tea.KeyTab}, constants.StateGrid},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, constants.StateSummary},
	}
	for _, tt := range tests {
		m = send(t, m, tt.key)
		if m.state != tt.want || m.page != tt.want {
			t.Fatalf("after %v state = %v, want %v", tt.key, m.state, tt.want)
		}
	}
}

func TestColumnNavigation(t *testing.T) {
	m := setupTuiTest(t)
	if m.col != colNotes {
		t.Fatalf("initial col = %d", m.col)
	}

	right := tea.KeyMsg{Type: tea.KeyRight}
	for range 10 {
		m = send(t, m, right)
	}
	if m.col != colFactor {
		t.Errorf("col = %d, want last editable %d", m.col, colFactor)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.col != colQuantity {
		t.Errorf("col = %d, want %d", m.col, colQuantity)
	}
}

func TestGridEditFlow(t *testing.T) {
	m := setupTuiTest(t)

	m = commit(t, m, cellEdit{page: constants.StateGrid, row: 0, col: colType, value: "Wire"})
	if opts := m.app.Grid.Options(0); len(opts.Items) != 1 {
		t.Fatalf("options = %+v", opts)
	}

	m = commit(t, m, cellEdit{page: constants.StateGrid, row: 0, col: colDescription, value: "w12"})
	m = send(t, m, fetchDoneMsg{})
	if m.col != colQuantity {
		t.Errorf("focus col = %d, want quantity", m.col)
	}

	m = commit(t, m, cellEdit{page: constants.StateGrid, row: 0, col: colQuantity, value: "4"})
	m = commit(t, m, cellEdit{page: constants.StateGrid, row: 0, col: colFactor, value: "2"})

	row, _ := m.app.Grid.Row(0)
	if row.MaterialExtension != 10 || row.LaborHoursExtension != 4 {
		t.Errorf("row = %+v", row)
	}
	if got := m.app.Summary.View().Totals.MaterialCostFromGrid; got != 10 {
		t.Errorf("summary material = %v, want 10", got)
	}
}

func TestLaborEdits(t *testing.T) {
	m := setupTuiTest(t)
	m = commit(t, m, cellEdit{page: constants.StateAdditionalLabor, row: 0, col: colHours, value: "3"})
	m = commit(t, m, cellEdit{page: constants.StateAdjustments, row: 1, col: colHours, value: "1.5"})

	if got := m.app.Summary.View().Totals.FinalHours; got != 4.5 {
		t.Errorf("final hours = %v, want 4.5", got)
	}
}

func TestDjeCascade(t *testing.T) {
	m := setupTuiTest(t)

	m = commit(t, m, cellEdit{page: constants.StateDje, row: 0, col: colCategory, value: "Equipment"})
	if ch := m.app.Dje.Choices(0); len(ch.Subcategories) != 1 {
		t.Fatalf("choices = %+v", ch)
	}
	m = commit(t, m, cellEdit{page: constants.StateDje, row: 0, col: colSubcategory, value: "Lifts"})
	m = commit(t, m, cellEdit{page: constants.StateDje, row: 0, col: colDjeDescription, value: "l1"})
	m = commit(t, m, cellEdit{page: constants.StateDje, row: 0, col: colDjeQuantity, value: "2"})

	if got := m.app.Dje.Total(); got != 600 {
		t.Errorf("dje total = %v, want 600", got)
	}
}

func TestChoicesOpenPicker(t *testing.T) {
	m := setupTuiTest(t)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if m.col != colType {
		t.Fatalf("col = %d", m.col)
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != constants.StatePicker || m.edit == nil {
		t.Fatalf("state = %v, edit = %v", m.state, m.edit)
	}
	if len(m.edit.options) != 2 {
		t.Errorf("options = %d, want assemblies plus Wire", len(m.edit.options))
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != constants.StateGrid || m.form != nil {
		t.Errorf("esc left state %v", m.state)
	}
}

func TestDescriptionNeedsType(t *testing.T) {
	m := setupTuiTest(t)
	m.col = colDescription

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != constants.StateGrid {
		t.Errorf("state = %v, want grid", m.state)
	}
	if m.status == "" {
		t.Error("no status shown")
	}
}

func TestConfirmReset(t *testing.T) {
	m := setupTuiTest(t)
	m = commit(t, m, cellEdit{page: constants.StateGrid, row: 0, col: colNotes, value: "panel"})

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	if m.state != constants.StateConfirmReset {
		t.Fatalf("state = %v", m.state)
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if row, _ := m.app.Grid.Row(0); row.Notes != "panel" {
		t.Fatal("declined reset cleared the grid")
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	if m.state != constants.StateGrid {
		t.Errorf("state = %v", m.state)
	}
	if row, _ := m.app.Grid.Row(0); row.Notes != "" {
		t.Errorf("notes = %q after reset", row.Notes)
	}
}

func TestControlsApply(t *testing.T) {
	m := setupTuiTest(t)
	fm := newControlsForm(m.app.Summary.View())
	fm.LaborRate = "$85"
	fm.Overhead = 20
	fm.Margin = 15
	fm.SalesTax = "8"
	if err := fm.apply(m.app.Summary); err != nil {
		t.Fatal(err)
	}

	v := m.app.Summary.View()
	if v.Totals.LaborRate != 85 || v.Pyramid.OverheadPercent != 20 {
		t.Errorf("totals = %+v, overhead %d", v.Totals, v.Pyramid.OverheadPercent)
	}
	if a := v.Totals.MaterialAdders; a.MarginPercent != 15 || a.SalesTaxPercent != 8 {
		t.Errorf("adders = %+v", a)
	}
}

func TestValidatePercent(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"0", false},
		{"100", false},
		{"101", true},
		{"-1", true},
		{"abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if err := validatePercent(tt.in); (err != nil) != tt.wantErr {
				t.Errorf("validatePercent(%q) = %v", tt.in, err)
			}
		})
	}
}

func TestViewRendersPages(t *testing.T) {
	m := setupTuiTest(t)
	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	for range pages {
		if m.View() == "" {
			t.Errorf("empty view for state %v", m.state)
		}
		m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	}
}
