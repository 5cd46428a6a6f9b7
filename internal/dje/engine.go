// Package dje is the direct job expense table: a category, subcategory and
// description cascade per row, with quantity and multiplier inputs.
package dje

import (
	"context"
	"strings"
	"sync"

	"github.com/julianstephens/estimator/internal/bus"
	"github.com/julianstephens/estimator/internal/catalog"
	"github.com/julianstephens/estimator/internal/constants"
	"github.com/julianstephens/estimator/internal/grid"
	"github.com/julianstephens/estimator/internal/logger"
	"github.com/julianstephens/estimator/internal/models"
	"github.com/julianstephens/estimator/internal/validation"
	"github.com/julianstephens/estimator/internal/workspace"
)

// Fetch is deferred catalog work; see grid.Fetch.
type Fetch = grid.Fetch

// Choices are the cascade lists loaded for one row.
type Choices struct {
	SubState      grid.OptionState
	Subcategories []string
	DescState     grid.OptionState
	Descriptions  []models.DjeOption
}

func (c Choices) find(id string) (models.DjeOption, bool) {
	for _, d := range c.Descriptions {
		if d.ID == id {
			return d, true
		}
	}
	return models.DjeOption{}, false
}

// Engine owns the DJE rows of one workspace. Rows live in the estimate
// document under costs.dje_rows.
type Engine struct {
	ws  *workspace.Workspace
	src catalog.Source

	mu       sync.Mutex
	rows     []models.DjeRow
	choices  []Choices
	expanded map[int]bool

	unsubscribe func()
}

// New creates a table of blank rows and subscribes it to remote document
// changes.
func New(ws *workspace.Workspace, src catalog.Source) *Engine {
	e := &Engine{ws: ws, src: src}
	e.resetRows()
	e.unsubscribe = ws.Bus().Subscribe(constants.EventStorage, e.onStorage)
	return e
}

func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

func (e *Engine) resetRows() {
	e.rows = make([]models.DjeRow, constants.DjeInitialRows)
	for i := range e.rows {
		e.rows[i] = models.NewDjeRow()
	}
	e.choices = make([]Choices, len(e.rows))
	e.expanded = make(map[int]bool)
}

// Hydrate restores the rows saved in the document. The returned Fetch
// reloads the cascade lists of every restored selection.
func (e *Engine) Hydrate() Fetch {
	saved := e.ws.Document().Costs.Rows

	e.mu.Lock()
	n := max(constants.DjeInitialRows, len(saved))
	e.rows = make([]models.DjeRow, n)
	for i := range e.rows {
		if i < len(saved) {
			e.rows[i] = saved[i]
		} else {
			e.rows[i] = models.NewDjeRow()
		}
		e.rows[i].Recompute()
	}
	e.choices = make([]Choices, n)
	e.expanded = make(map[int]bool)
	rows := e.copyLocked()
	e.mu.Unlock()

	var fetches []Fetch
	for i, r := range rows {
		if r.CategoryID == "" {
			continue
		}
		fetches = append(fetches, e.fetchSubcategories(i, r.CategoryID))
		if r.SubcategoryID != "" {
			fetches = append(fetches, e.fetchDescriptions(i, r.CategoryID, r.SubcategoryID))
		}
	}
	if len(fetches) == 0 {
		return nil
	}
	return func(ctx context.Context) func() {
		applies := make([]func(), 0, len(fetches))
		for _, f := range fetches {
			applies = append(applies, f(ctx))
		}
		return func() {
			for _, apply := range applies {
				apply()
			}
		}
	}
}

// Reset trims the table to its initial blank rows and re-arms autogrow.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.resetRows()
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

// Rows returns a copy of every row.
func (e *Engine) Rows() []models.DjeRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyLocked()
}

func (e *Engine) Choices(i int) Choices {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.valid(i) {
		return Choices{}
	}
	return e.choices[i]
}

// Total is the sum of every row's extension.
func (e *Engine) Total() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return total(e.rows)
}

// Categories lists the top level of the cascade.
func (e *Engine) Categories(ctx context.Context) ([]string, error) {
	return e.src.DjeCategories(ctx)
}

func total(rows []models.DjeRow) float64 {
	var sum float64
	for _, r := range rows {
		sum += r.Extension
	}
	return sum
}

func (e *Engine) valid(i int) bool {
	return i >= 0 && i < len(e.rows)
}

func (e *Engine) copyLocked() []models.DjeRow {
	return append([]models.DjeRow(nil), e.rows...)
}

func (e *Engine) autogrowLocked(i int) {
	if i != len(e.rows)-1 || e.expanded[i] {
		return
	}
	e.expanded[i] = true
	e.rows = append(e.rows, models.NewDjeRow())
	e.choices = append(e.choices, Choices{})
}

// commit writes the rows and their total into the document and announces
// the new total. Callers must not hold e.mu.
func (e *Engine) commit(rows []models.DjeRow) {
	sum := total(rows)
	e.ws.UpdateDocument(func(doc *models.EstimateDocument) {
		doc.Costs.Rows = rows
		doc.Costs.Total = sum
	})
	e.ws.Bus().Publish(constants.EventDjeChanged, sum)
}

// OnNotesInput stores a row's notes. Non-blank notes in the last row grow
// the table.
func (e *Engine) OnNotesInput(i int, text string) {
	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return
	}
	e.rows[i].Notes = text
	if strings.TrimSpace(text) != "" {
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
}

// OnQuantityInput sanitises raw to a whole count and returns the cleaned
// text for the control.
func (e *Engine) OnQuantityInput(i int, raw string) string {
	clean, qty := validation.Count(raw)
	e.edit(i, clean != "", func(r *models.DjeRow) { r.Quantity = qty })
	return clean
}

// OnMultiplierInput sanitises raw to a whole multiplier of at least one and
// returns the cleaned text for the control.
func (e *Engine) OnMultiplierInput(i int, raw string) string {
	clean, multi := validation.Multiplier(raw)
	e.edit(i, true, func(r *models.DjeRow) { r.Multiplier = multi })
	return clean
}

func (e *Engine) edit(i int, grow bool, fn func(*models.DjeRow)) {
	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return
	}
	fn(&e.rows[i])
	e.rows[i].Recompute()
	if grow {
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
}

// OnCategoryChange selects a category. Everything below it in the cascade
// is cleared; a non-empty category starts loading its subcategories.
func (e *Engine) OnCategoryChange(i int, category string) Fetch {
	category = strings.TrimSpace(category)

	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return nil
	}
	row := &e.rows[i]
	row.CategoryID = category
	row.SubcategoryID = ""
	row.DescriptionID = ""
	row.DescriptionLabel = ""
	row.UnitCost = 0
	row.Recompute()
	e.choices[i] = Choices{}
	if category != "" {
		e.choices[i].SubState = grid.OptionsLoading
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
	if category == "" {
		return nil
	}
	return e.fetchSubcategories(i, category)
}

// OnSubcategoryChange selects a subcategory and starts loading its
// descriptions. The description and unit cost are cleared.
func (e *Engine) OnSubcategoryChange(i int, subcategory string) Fetch {
	subcategory = strings.TrimSpace(subcategory)

	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return nil
	}
	row := &e.rows[i]
	category := row.CategoryID
	row.SubcategoryID = subcategory
	row.DescriptionID = ""
	row.DescriptionLabel = ""
	row.UnitCost = 0
	row.Recompute()
	e.choices[i].Descriptions = nil
	e.choices[i].DescState = grid.OptionsIdle
	load := category != "" && subcategory != ""
	if load {
		e.choices[i].DescState = grid.OptionsLoading
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
	if !load {
		return nil
	}
	return e.fetchDescriptions(i, category, subcategory)
}

// OnDescriptionChange selects a description and takes its unit cost from
// the loaded list. The cost is not editable.
func (e *Engine) OnDescriptionChange(i int, id string) {
	e.mu.Lock()
	if !e.valid(i) {
		e.mu.Unlock()
		return
	}
	row := &e.rows[i]
	if row.CategoryID == "" || row.SubcategoryID == "" {
		e.mu.Unlock()
		return
	}
	opt, found := e.choices[i].find(id)
	if id != "" && !found {
		logger.Warn("DJE description not among loaded options", "row", i, "id", id)
	}
	row.DescriptionID = id
	row.DescriptionLabel = opt.Description
	row.UnitCost = opt.UnitCost
	row.Recompute()
	if id != "" {
		e.autogrowLocked(i)
	}
	rows := e.copyLocked()
	e.mu.Unlock()

	e.commit(rows)
}

func (e *Engine) fetchSubcategories(i int, category string) Fetch {
	return func(ctx context.Context) func() {
		subs, err := e.src.DjeSubcategories(ctx, category)
		if err != nil {
			logger.Warn("Failed to load DJE subcategories", "category", category, "row", i, "error", err)
		}
		return func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if !e.valid(i) || e.rows[i].CategoryID != category {
				return
			}
			if err != nil {
				e.choices[i].SubState = grid.OptionsError
				return
			}
			e.choices[i].SubState = grid.OptionsReady
			e.choices[i].Subcategories = subs
		}
	}
}

func (e *Engine) fetchDescriptions(i int, category, subcategory string) Fetch {
	return func(ctx context.Context) func() {
		descs, err := e.src.DjeDescriptions(ctx, category, subcategory)
		if err != nil {
			logger.Warn("Failed to load DJE descriptions", "category", category, "subcategory", subcategory, "row", i, "error", err)
		}
		return func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if !e.valid(i) || e.rows[i].CategoryID != category || e.rows[i].SubcategoryID != subcategory {
				return
			}
			if err != nil {
				e.choices[i].DescState = grid.OptionsError
				return
			}
			e.choices[i].DescState = grid.OptionsReady
			e.choices[i].Descriptions = descs
		}
	}
}

// onStorage re-reads the rows after another instance rewrote the document.
// The workspace has already reloaded it by the time this runs.
func (e *Engine) onStorage(ev bus.Event) {
	if !ev.Remote {
		return
	}
	change, ok := ev.Detail.(bus.StorageChange)
	if !ok || change.Key != e.ws.Keys().DocumentKey {
		return
	}
	saved := e.ws.Document().Costs.Rows

	e.mu.Lock()
	defer e.mu.Unlock()
	n := max(constants.DjeInitialRows, len(saved))
	rows := make([]models.DjeRow, n)
	choices := make([]Choices, n)
	for i := range rows {
		if i < len(saved) {
			rows[i] = saved[i]
		} else {
			rows[i] = models.NewDjeRow()
		}
		rows[i].Recompute()
		// keep loaded lists while the selection still matches
		if i < len(e.rows) && e.rows[i].CategoryID == rows[i].CategoryID {
			choices[i] = e.choices[i]
			if e.rows[i].SubcategoryID != rows[i].SubcategoryID {
				choices[i].Descriptions = nil
				choices[i].DescState = grid.OptionsIdle
			}
		}
	}
	e.rows = rows
	e.choices = choices
}
