// Package labor implements the two percentage-driven labor tables: general
// adjustments against the grid's estimated hours, and additional labor
// against the adjusted total.
package labor

import (
	"math"
	"strings"
	"sync"

	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/validation"
	"github.com/julianstephens/estimator/internal/workspace"
)

// Kind selects which table an Engine drives.
type Kind int

const (
	KindAdjustments Kind = iota
	KindAdditionalLabor
)

func (k Kind) String() string {
	if k == KindAdditionalLabor {
		return "additional labor"
	}
	return "adjustments"
}

// Labels returns the default row labels of the table.
func (k Kind) Labels() []string {
	if k == KindAdditionalLabor {
		return constants.DefaultAdditionalLaborLabels
	}
	return constants.DefaultAdjustmentLabels
}

func (k Kind) rows(doc *models.EstimateDocument) *[]models.AdjustmentRow {
	if k == KindAdditionalLabor {
		return &doc.AdditionalLabor
	}
	return &doc.Adjustments
}

func (k Kind) total(t *models.LaborTotals) *float64 {
	if k == KindAdditionalLabor {
		return &t.Additional
	}
	return &t.Adjustments
}

// DefaultRows is the default label set followed by one blank row.
func (k Kind) DefaultRows() []models.AdjustmentRow {
	labels := k.Labels()
	rows := make([]models.AdjustmentRow, 0, len(labels)+1)
	for _, l := range labels {
		rows = append(rows, models.AdjustmentRow{Label: l})
	}
	return append(rows, models.AdjustmentRow{})
}

// Engine drives one labor table stored in the workspace document.
type Engine struct {
	ws   *workspace.Workspace
	kind Kind

	mu       sync.Mutex
	expanded map[int]bool
}

// New returns an engine for kind, seeding the default rows when the
// document has none.
func New(ws *workspace.Workspace, kind Kind) *Engine {
	e := &Engine{ws: ws, kind: kind, expanded: make(map[int]bool)}
	doc := ws.Document()
	if len(*kind.rows(&doc)) == 0 {
		ws.UpdateDocument(func(doc *models.EstimateDocument) {
			*kind.rows(doc) = kind.DefaultRows()
		})
	}
	return e
}

func (e *Engine) Kind() Kind { return e.kind }

// Rows returns a copy of the table.
func (e *Engine) Rows() []models.AdjustmentRow {
	doc := e.ws.Document()
	return *e.kind.rows(&doc)
}

// Total is the sum of the table's hours as last recomputed.
func (e *Engine) Total() float64 {
	doc := e.ws.Document()
	return *e.kind.total(&doc.Totals)
}

// BaseHours is the figure percentages apply to: the grid's estimated hours
// for adjustments, and estimated plus adjustments for additional labor.
func (e *Engine) BaseHours() float64 {
	t := e.ws.Totals()
	if e.kind == KindAdditionalLabor {
		return t.EstimatedHours + t.AdjustmentsHours
	}
	return t.EstimatedHours
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// OnRowTextInput sets a row label. Non-blank text in the last row appends
// one blank row, once per row.
func (e *Engine) OnRowTextInput(i int, text string) {
	grow := false
	if strings.TrimSpace(text) != "" {
		e.mu.Lock()
		if i == len(e.Rows())-1 && !e.expanded[i] {
			e.expanded[i] = true
			grow = true
		}
		e.mu.Unlock()
	}

	e.update(func(rows *[]models.AdjustmentRow) {
		if i < 0 || i >= len(*rows) {
			return
		}
		(*rows)[i].Label = text
		if grow {
			*rows = append(*rows, models.AdjustmentRow{})
		}
	})
}

// OnPercentChange sets a row's percent and derives its hours from the
// current base.
func (e *Engine) OnPercentChange(i int, percent int) {
	percent = validation.Percent(percent)
	base := e.BaseHours()
	e.update(func(rows *[]models.AdjustmentRow) {
		if i < 0 || i >= len(*rows) {
			return
		}
		(*rows)[i].Percent = percent
		(*rows)[i].Hours = round2(float64(percent) / 100 * base)
	})
}

// OnHoursInput sets a row's hours by hand. The percent no longer applies
// and is cleared.
func (e *Engine) OnHoursInput(i int, raw string) {
	hours := round2(validation.Hours(raw))
	e.update(func(rows *[]models.AdjustmentRow) {
		if i < 0 || i >= len(*rows) {
			return
		}
		(*rows)[i].Percent = 0
		(*rows)[i].Hours = hours
	})
}

// SyncBase re-derives the hours of percent-driven rows after the base
// changed elsewhere.
func (e *Engine) SyncBase() {
	base := e.BaseHours()
	e.update(func(rows *[]models.AdjustmentRow) {
		for i := range *rows {
			if p := (*rows)[i].Percent; p > 0 {
				(*rows)[i].Hours = round2(float64(p) / 100 * base)
			}
		}
	})
}

// RecomputeTotals sums the table into the document and publishes the result.
func (e *Engine) RecomputeTotals() {
	e.update(func(*[]models.AdjustmentRow) {})
}

// Reset restores the default rows with zero percents and hours and re-arms
// autogrow.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.expanded = make(map[int]bool)
	e.mu.Unlock()

	e.update(func(rows *[]models.AdjustmentRow) {
		*rows = e.kind.DefaultRows()
	})
}

// update mutates the table, then re-derives its total and the final hours
// in the same document write.
func (e *Engine) update(fn func(rows *[]models.AdjustmentRow)) {
	estimated := e.ws.Totals().EstimatedHours
	doc := e.ws.UpdateDocument(func(doc *models.EstimateDocument) {
		rows := e.kind.rows(doc)
		fn(rows)
		var sum float64
		for _, r := range *rows {
			sum += r.Hours
		}
		*e.kind.total(&doc.Totals) = round2(sum)
		doc.Totals.Estimated = estimated
	})
	e.ws.Bus().Publish(constants.EventTotalsChanged, models.CollectTotals(doc, e.ws.GridTotals()))
}
